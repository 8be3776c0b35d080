package importer

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pickwire/platform/pkg/common/models"
)

type reportModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:report_id"`
	Permalink   string    `gorm:"column:permalink;uniqueIndex"`
	PeriodKey   string    `gorm:"column:period_key;uniqueIndex:idx_reports_period_version"`
	Version     string    `gorm:"column:version;uniqueIndex:idx_reports_period_version"`
	Title       string    `gorm:"column:title"`
	Summary     string    `gorm:"column:summary;type:text"`
	PublishedAt time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (reportModel) TableName() string { return "reports" }

type pickModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;column:pick_id"`
	ReportID        uuid.UUID `gorm:"type:uuid;column:report_id;uniqueIndex:idx_picks_report_ticker_side"`
	Ticker          string    `gorm:"column:ticker;uniqueIndex:idx_picks_report_ticker_side"`
	Exchange        string    `gorm:"column:exchange"`
	Side            string    `gorm:"column:side;uniqueIndex:idx_picks_report_ticker_side"`
	TargetChangePct float64   `gorm:"column:target_change_pct"`
	Rationale       string    `gorm:"column:rationale;type:text"`

	Report reportModel `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

func (pickModel) TableName() string { return "picks" }

// buildRows derives the server-controlled fields and materializes the header
// and detail rows for one validated payload. Reports are immutable once
// written, so everything derived here is derived exactly once.
func buildRows(payload *ReportPayload) (*reportModel, []pickModel) {
	now := time.Now().UTC()
	periodKey := PeriodKey(payload.PublishedAt)

	report := &reportModel{
		ID:          uuid.New(),
		Permalink:   derivePermalink(payload.Title, periodKey),
		PeriodKey:   periodKey,
		Version:     payload.Version,
		Title:       payload.Title,
		Summary:     payload.Summary,
		PublishedAt: payload.PublishedAt.UTC(),
		CreatedAt:   now,
	}

	picks := make([]pickModel, 0, len(payload.Picks))
	for _, p := range payload.Picks {
		picks = append(picks, pickModel{
			ID:              uuid.New(),
			ReportID:        report.ID,
			Ticker:          strings.ToUpper(strings.TrimSpace(p.Ticker)),
			Exchange:        strings.ToUpper(strings.TrimSpace(p.Exchange)),
			Side:            strings.ToLower(strings.TrimSpace(p.Side)),
			TargetChangePct: p.TargetChangePct,
			Rationale:       p.Rationale,
		})
	}

	return report, picks
}

func derivePermalink(title, periodKey string) string {
	return slugify(title) + "-" + strings.ToLower(periodKey)
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (r *reportModel) toDomain() models.Report {
	return models.Report{
		ID:          r.ID,
		Permalink:   r.Permalink,
		PeriodKey:   r.PeriodKey,
		Version:     r.Version,
		Title:       r.Title,
		Summary:     r.Summary,
		PublishedAt: r.PublishedAt,
		CreatedAt:   r.CreatedAt,
	}
}
