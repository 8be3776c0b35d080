package importer

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&reportModel{}, &pickModel{})
}

// FindConflict checks for an existing report on either uniqueness mechanism:
// (period_key, version) or permalink. Runs on the caller's transaction so the
// pre-check and the write observe the same snapshot.
func (r *Repository) FindConflict(tx *gorm.DB, periodKey, version, permalink string) (string, error) {
	var existing reportModel
	result := tx.
		Where("(period_key = ? AND version = ?) OR permalink = ?", periodKey, version, permalink).
		First(&existing)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}

	if existing.PeriodKey == periodKey && existing.Version == version {
		return fmt.Sprintf("report already exists for (period_key=%s, version=%s)", periodKey, version), nil
	}
	return fmt.Sprintf("permalink %q already exists", permalink), nil
}

// InsertReportWithPicks writes the header row and its detail rows. The caller
// wraps this in a scope that can be rolled back as a unit.
func (r *Repository) InsertReportWithPicks(tx *gorm.DB, report *reportModel, picks []pickModel) error {
	if err := tx.Create(report).Error; err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	if err := tx.Create(&picks).Error; err != nil {
		return fmt.Errorf("inserting picks: %w", err)
	}
	return nil
}

// isDuplicateErr recognizes a uniqueness violation surfaced at write time.
// A lost race on (period_key, version) or permalink lands here and is treated
// identically to a duplicate detected in advance. The message sniffing covers
// drivers that do not translate to gorm.ErrDuplicatedKey.
func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
