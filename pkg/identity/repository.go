package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pickwire/platform/pkg/common/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already registered")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex"`
	Name         string
	Role         string `gorm:"index"`
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&UserModel{})
}

type CreateUserInput struct {
	Email        string
	Name         string
	Role         string
	PasswordHash string
}

func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	now := time.Now().UTC()
	user := UserModel{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         input.Name,
		Role:         input.Role,
		PasswordHash: input.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.User{}, ErrEmailAlreadyExists
		}
		return models.User{}, err
	}

	return user.toDomain(), nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*UserModel, error) {
	var user UserModel
	result := r.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, result.Error
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*UserModel, error) {
	var user UserModel
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, result.Error
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func (u *UserModel) toDomain() models.User {
	return models.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
