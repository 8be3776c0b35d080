package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/pickwire/platform/pkg/common/models"
)

// viewRow is one row of the denormalized read view: one pick with its
// report's period and date fields flattened in. The table is derived state,
// rebuilt by the materializer and never hand-edited.
type viewRow struct {
	PickID          uuid.UUID `gorm:"type:uuid;primaryKey;column:pick_id"`
	ReportID        uuid.UUID `gorm:"type:uuid;column:report_id;index"`
	Permalink       string    `gorm:"column:permalink;index"`
	PeriodKey       string    `gorm:"column:period_key;index"`
	Version         string    `gorm:"column:version"`
	Title           string    `gorm:"column:title"`
	PublishedAt     time.Time `gorm:"column:published_at;index"`
	Ticker          string    `gorm:"column:ticker;index"`
	Exchange        string    `gorm:"column:exchange"`
	Side            string    `gorm:"column:side"`
	TargetChangePct float64   `gorm:"column:target_change_pct"`
	Rationale       string    `gorm:"column:rationale"`
}

func (viewRow) TableName() string { return "report_pick_view" }

func (v *viewRow) header() models.Report {
	return models.Report{
		ID:          v.ReportID,
		Permalink:   v.Permalink,
		PeriodKey:   v.PeriodKey,
		Version:     v.Version,
		Title:       v.Title,
		PublishedAt: v.PublishedAt,
	}
}

func (v *viewRow) pick() models.Pick {
	return models.Pick{
		ID:              v.PickID,
		ReportID:        v.ReportID,
		Ticker:          v.Ticker,
		Exchange:        v.Exchange,
		Side:            v.Side,
		TargetChangePct: v.TargetChangePct,
		Rationale:       v.Rationale,
	}
}

type ReportPage struct {
	Items    []models.Report `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// TickerHistoryEntry is one historical pick of a ticker across reports.
type TickerHistoryEntry struct {
	Permalink       string    `json:"permalink"`
	PeriodKey       string    `json:"period_key"`
	PublishedAt     time.Time `json:"published_at"`
	Exchange        string    `json:"exchange"`
	Side            string    `json:"side"`
	TargetChangePct float64   `json:"target_change_pct"`
	Rationale       string    `json:"rationale"`
}
