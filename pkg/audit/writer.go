package audit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const maxRawPayloadBytes = 5 * 1024 * 1024

var ErrPayloadTooLarge = errors.New("raw payload exceeds retention cap")

// Writer is the append-only side of the audit trail. The import engine calls
// AppendTx inside its outer transaction so the attempt row commits with it;
// Append exists as a fallback path on a fresh connection.
type Writer struct {
	db *gorm.DB
}

func NewWriter(db *gorm.DB) *Writer {
	return &Writer{db: db}
}

func (w *Writer) AutoMigrate() error {
	if err := w.db.AutoMigrate(&Record{}); err != nil {
		return err
	}
	// actor_id references users and is nulled when the admin is removed. The
	// constraint is only installable when the identity schema shares the
	// database, which is the production layout.
	if w.db.Dialector.Name() == "postgres" && w.db.Migrator().HasTable("users") {
		return w.db.Exec(`ALTER TABLE import_attempts
			DROP CONSTRAINT IF EXISTS fk_import_attempts_actor,
			ADD CONSTRAINT fk_import_attempts_actor
				FOREIGN KEY (actor_id) REFERENCES users(id) ON DELETE SET NULL`).Error
	}
	return nil
}

func (w *Writer) Append(ctx context.Context, rec *Record) error {
	return w.AppendTx(w.db.WithContext(ctx), rec)
}

func (w *Writer) AppendTx(tx *gorm.DB, rec *Record) error {
	if len(rec.RawPayload) > maxRawPayloadBytes {
		// Keep the attempt row, drop the oversized payload snapshot.
		rec.RawPayload = nil
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}
	return tx.Create(rec).Error
}
