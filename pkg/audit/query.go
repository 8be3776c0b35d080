package audit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pickwire/platform/pkg/common/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("import attempt not found")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listColumns deliberately leaves out raw_payload: attempts can carry multi-MiB
// snapshots and list responses must stay cheap.
var listColumns = []string{
	"attempt_id", "actor_id", "filename", "declared_checksum", "schema_version",
	"status", "error_detail", "report_id", "permalink", "started_at", "finished_at",
}

// QueryService is the read-only side of the audit trail, serving the admin
// console. Access control lives in the gateway middleware, not here.
type QueryService struct {
	db *gorm.DB
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{db: db}
}

func (s *QueryService) List(ctx context.Context, filter models.AttemptFilter) (models.AttemptPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	query := s.db.WithContext(ctx).Model(&Record{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.StartedAfter != nil {
		query = query.Where("started_at >= ?", *filter.StartedAfter)
	}
	if filter.StartedBefore != nil {
		query = query.Where("started_at <= ?", *filter.StartedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return models.AttemptPage{}, err
	}

	var rows []Record
	err := query.
		Select(listColumns).
		Order("started_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return models.AttemptPage{}, err
	}

	items := make([]models.ImportAttempt, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toDomain(false))
	}

	return models.AttemptPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *QueryService) Get(ctx context.Context, attemptID uuid.UUID) (models.ImportAttempt, error) {
	var rec Record
	result := s.db.WithContext(ctx).First(&rec, "attempt_id = ?", attemptID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.ImportAttempt{}, ErrNotFound
	}
	if result.Error != nil {
		return models.ImportAttempt{}, result.Error
	}
	return rec.toDomain(true), nil
}
