package reports

import (
	"context"

	"github.com/pickwire/platform/pkg/common/logger"
	"gorm.io/gorm"
)

// Materializer rebuilds the report_pick_view projection from the reports and
// picks tables. The rebuild runs in one transaction (readers never observe a
// half-empty view) and is idempotent, so re-running after a partial failure
// is always safe. Only the import engine triggers it, on success only.
type Materializer struct {
	db    *gorm.DB
	cache *Service
}

func NewMaterializer(db *gorm.DB, cache *Service) *Materializer {
	return &Materializer{db: db, cache: cache}
}

func (m *Materializer) AutoMigrate() error {
	return m.db.AutoMigrate(&viewRow{})
}

func (m *Materializer) Refresh(ctx context.Context) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM report_pick_view`).Error; err != nil {
			return err
		}
		return tx.Exec(`
			INSERT INTO report_pick_view
				(pick_id, report_id, permalink, period_key, version, title, published_at,
				 ticker, exchange, side, target_change_pct, rationale)
			SELECT p.pick_id, r.report_id, r.permalink, r.period_key, r.version, r.title, r.published_at,
				 p.ticker, p.exchange, p.side, p.target_change_pct, p.rationale
			FROM reports r
			JOIN picks p ON p.report_id = r.report_id`).Error
	})
	if err != nil {
		return err
	}

	if m.cache != nil {
		m.cache.InvalidateCache(ctx)
	}

	logger.Log.Debug("read view refreshed")
	return nil
}
