package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pickwire/platform/pkg/common/logger"
	"github.com/pickwire/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "reports:"

// Service fronts the view repository with a Redis TTL cache. The cache is an
// optimization only: any Redis failure falls through to the database.
type Service struct {
	repo  *Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewService(repo *Repository, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

func (s *Service) ListReports(ctx context.Context, page, pageSize int) (ReportPage, error) {
	key := fmt.Sprintf("%slist:p%d:s%d", cacheKeyPrefix, page, pageSize)
	var out ReportPage
	err := s.cached(ctx, key, &out, func() (interface{}, error) {
		return s.repo.ListReports(ctx, page, pageSize)
	})
	return out, err
}

func (s *Service) GetByPermalink(ctx context.Context, permalink string) (models.ReportDetail, error) {
	key := cacheKeyPrefix + "permalink:" + permalink
	var out models.ReportDetail
	err := s.cached(ctx, key, &out, func() (interface{}, error) {
		return s.repo.GetByPermalink(ctx, permalink)
	})
	return out, err
}

func (s *Service) TickerHistory(ctx context.Context, ticker string) ([]TickerHistoryEntry, error) {
	// Per-ticker traffic is long-tail; not worth cache slots.
	return s.repo.TickerHistory(ctx, ticker)
}

// InvalidateCache drops every cached read. Called by the materializer after a
// rebuild so readers never serve the previous generation past the refresh.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Log.WithError(err).Warn("failed to drop cached report entry")
		}
	}
	if err := iter.Err(); err != nil {
		logger.Log.WithError(err).Warn("report cache invalidation scan failed")
	}
}

// cached fills dest from Redis when possible, otherwise from fill, writing the
// result back with the service TTL. Sentinel errors from fill (ErrNotFound)
// pass through uncached.
func (s *Service) cached(ctx context.Context, key string, dest interface{}, fill func() (interface{}, error)) error {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			if jsonErr := json.Unmarshal(data, dest); jsonErr == nil {
				return nil
			}
		} else if err != redis.Nil {
			logger.Log.WithError(err).Warn("report cache read failed")
		}
	}

	value, err := fill()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
			logger.Log.WithError(err).Warn("report cache write failed")
		}
	}

	return nil
}
