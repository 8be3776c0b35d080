package reports

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/pickwire/platform/pkg/common/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("report not found")

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	maxHistoryEntries = 100
)

// Repository reads exclusively from the denormalized view; the reports and
// picks base tables belong to the import pipeline.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListReports(ctx context.Context, page, pageSize int) (ReportPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&viewRow{}).Distinct("report_id").Count(&total).Error; err != nil {
		return ReportPage{}, err
	}

	var rows []viewRow
	err := r.db.WithContext(ctx).Model(&viewRow{}).
		Select("report_id, permalink, period_key, version, title, published_at").
		Group("report_id, permalink, period_key, version, title, published_at").
		Order("published_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return ReportPage{}, err
	}

	items := make([]models.Report, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].header())
	}

	return ReportPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (r *Repository) GetByPermalink(ctx context.Context, permalink string) (models.ReportDetail, error) {
	var rows []viewRow
	err := r.db.WithContext(ctx).
		Where("permalink = ?", permalink).
		Find(&rows).Error
	if err != nil {
		return models.ReportDetail{}, err
	}
	if len(rows) == 0 {
		return models.ReportDetail{}, ErrNotFound
	}

	detail := models.ReportDetail{
		Report: rows[0].header(),
		Picks:  make([]models.Pick, 0, len(rows)),
	}
	for i := range rows {
		detail.Picks = append(detail.Picks, rows[i].pick())
	}
	sort.Slice(detail.Picks, func(i, j int) bool {
		return detail.Picks[i].Ticker < detail.Picks[j].Ticker
	})

	return detail, nil
}

func (r *Repository) TickerHistory(ctx context.Context, ticker string) ([]TickerHistoryEntry, error) {
	var rows []viewRow
	err := r.db.WithContext(ctx).
		Where("ticker = ?", strings.ToUpper(strings.TrimSpace(ticker))).
		Order("published_at DESC").
		Limit(maxHistoryEntries).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]TickerHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, TickerHistoryEntry{
			Permalink:       row.Permalink,
			PeriodKey:       row.PeriodKey,
			PublishedAt:     row.PublishedAt,
			Exchange:        row.Exchange,
			Side:            row.Side,
			TargetChangePct: row.TargetChangePct,
			Rationale:       row.Rationale,
		})
	}
	return entries, nil
}
