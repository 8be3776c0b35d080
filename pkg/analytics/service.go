package analytics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pickwire/platform/pkg/common/kafka"
	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/common/models"
	"gorm.io/datatypes"
)

const maxBatchSize = 100

var (
	ErrEmptyBatch    = errors.New("empty event batch")
	ErrBatchTooLarge = errors.New("event batch too large")
)

// Service is the event sink: HTTP batches go out to Kafka, and the consumer
// side lands them in Postgres. Losing an event here is acceptable; blocking a
// page load is not.
type Service struct {
	producer *kafka.Producer
	repo     *Repository
}

func NewService(producer *kafka.Producer, repo *Repository) *Service {
	return &Service{producer: producer, repo: repo}
}

// Ingest publishes a batch of client events. Returns the number accepted;
// individual publish failures are logged and skipped.
func (s *Service) Ingest(ctx context.Context, actorID *uuid.UUID, batch []EventInput) (int, error) {
	if len(batch) == 0 {
		return 0, ErrEmptyBatch
	}
	if len(batch) > maxBatchSize {
		return 0, ErrBatchTooLarge
	}

	accepted := 0
	for _, input := range batch {
		if strings.TrimSpace(input.Name) == "" {
			continue
		}
		occurredAt := input.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}

		data := map[string]interface{}{
			"name":        input.Name,
			"properties":  input.Properties,
			"occurred_at": occurredAt,
		}
		if actorID != nil {
			data["actor_id"] = actorID.String()
		}

		if err := s.producer.PublishEvent(ctx, input.Type, "web", data); err != nil {
			logger.Log.WithError(err).WithField("event_name", input.Name).Warn("dropping analytics event")
			continue
		}
		accepted++
	}

	return accepted, nil
}

// HandleEvent is the consumer-side handler persisting one Kafka envelope.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	row := &eventModel{
		ID:         uuid.New(),
		Type:       event.Type,
		OccurredAt: event.Timestamp,
		ReceivedAt: time.Now().UTC(),
	}

	if name, ok := event.Data["name"].(string); ok {
		row.Name = name
	}
	if props, ok := event.Data["properties"].(map[string]interface{}); ok {
		row.Properties = datatypes.JSONMap(props)
	}
	if rawActor, ok := event.Data["actor_id"].(string); ok {
		if actorID, err := uuid.Parse(rawActor); err == nil {
			row.ActorID = &actorID
		}
	}
	if rawOccurred, ok := event.Data["occurred_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, rawOccurred); err == nil {
			row.OccurredAt = ts
		}
	}

	return s.repo.Insert(ctx, row)
}
