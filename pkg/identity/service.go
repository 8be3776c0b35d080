package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pickwire/platform/pkg/common/models"
	"github.com/pickwire/platform/pkg/gateway/auth"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBootstrapNotAllowed = errors.New("platform already bootstrapped")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

type Service struct {
	repo *Repository
	jwt  *auth.JWTManager
	oidc *auth.OIDCAuthenticator
}

// NewService wires the login/registration flow. oidc may be nil when no
// identity provider is configured; password login still works.
func NewService(repo *Repository, jwt *auth.JWTManager, oidc *auth.OIDCAuthenticator) *Service {
	return &Service{repo: repo, jwt: jwt, oidc: oidc}
}

// Bootstrap creates the first admin account. Allowed exactly once, on an
// empty user table.
func (s *Service) Bootstrap(ctx context.Context, req models.BootstrapRequest) (models.User, error) {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	if count > 0 {
		return models.User{}, ErrBootstrapNotAllowed
	}
	if req.AdminEmail == "" || req.AdminPassword == "" {
		return models.User{}, fmt.Errorf("admin email and password required")
	}

	return s.createUser(ctx, req.AdminEmail, req.AdminName, models.RoleAdmin, req.AdminPassword)
}

// RegisterUser creates an account on behalf of an admin actor.
func (s *Service) RegisterUser(ctx context.Context, actor *auth.Claims, req models.RegisterUserRequest) (models.User, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return models.User{}, fmt.Errorf("insufficient permissions")
	}

	role := req.Role
	if role == "" {
		role = models.RoleEditor
	}
	if role != models.RoleAdmin && role != models.RoleEditor {
		return models.User{}, fmt.Errorf("unknown role %q", role)
	}

	return s.createUser(ctx, req.Email, req.Name, role, req.Password)
}

func (s *Service) createUser(ctx context.Context, email, name, role, password string) (models.User, error) {
	if strings.TrimSpace(email) == "" {
		return models.User{}, fmt.Errorf("email required")
	}
	if password == "" {
		return models.User{}, fmt.Errorf("password required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	return s.repo.CreateUser(ctx, CreateUserInput{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
	})
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.LoginResponse{}, ErrInvalidCredentials
		}
		return models.LoginResponse{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return models.LoginResponse{}, ErrInvalidCredentials
	}

	return s.issueFor(user)
}

// LoginWithOIDC completes the authorization-code flow. Only existing accounts
// may sign in through the provider; SSO does not auto-provision users.
func (s *Service) LoginWithOIDC(ctx context.Context, code string) (models.LoginResponse, error) {
	if s.oidc == nil {
		return models.LoginResponse{}, errors.New("OIDC login not configured")
	}

	claims, err := s.oidc.Exchange(ctx, code)
	if err != nil {
		return models.LoginResponse{}, err
	}

	user, err := s.repo.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.LoginResponse{}, ErrInvalidCredentials
		}
		return models.LoginResponse{}, err
	}

	return s.issueFor(user)
}

func (s *Service) AuthCodeURL(state string) (string, error) {
	if s.oidc == nil {
		return "", errors.New("OIDC login not configured")
	}
	return s.oidc.AuthCodeURL(state), nil
}

func (s *Service) issueFor(user *UserModel) (models.LoginResponse, error) {
	domain := user.toDomain()
	token, err := s.jwt.IssueToken(domain)
	if err != nil {
		return models.LoginResponse{}, err
	}
	return models.LoginResponse{Token: token, User: domain}, nil
}
