package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"voice-server/internal/observability"

	"github.com/redis/go-redis/v9"
)

const window = time.Minute

// WindowStore is the subset of sorted-set operations the sliding window needs.
type WindowStore interface {
	ZRemRangeByScore(ctx context.Context, key, min, max string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZAdd(ctx context.Context, key string, members ...redis.Z) error
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed      bool      `json:"allowed"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	ResetAt      time.Time `json:"reset_at"`
	RetryAfterMs int       `json:"retry_after_ms,omitempty"`
}

// Service limits how often a caller may trigger outbound calls
type Service struct {
	store  WindowStore
	limit  int
	prefix string
	now    func() time.Time
	logger *observability.Logger
}

func NewService(store WindowStore, limit int, prefix string, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		limit:  limit,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

// CheckRateLimit records one request for subject and reports whether it fits in
// the one minute sliding window.
func (s *Service) CheckRateLimit(ctx context.Context, subject string) (RateLimitResult, error) {
	key := fmt.Sprintf("rl:%s:%s", s.prefix, subject)
	now := s.now()
	nowMs := now.UnixMilli()
	windowStartMs := now.Add(-window).UnixMilli()

	if err := s.store.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStartMs, 10)); err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to remove old entries: %w", err)
	}

	count, err := s.store.ZCard(ctx, key)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to count requests: %w", err)
	}

	if int(count) >= s.limit {
		oldest, err := s.store.ZRange(ctx, key, 0, 0)
		if err != nil || len(oldest) == 0 {
			return RateLimitResult{
				Limit:        s.limit,
				ResetAt:      now.Add(window),
				RetryAfterMs: int(window.Milliseconds()),
			}, nil
		}

		oldestMs, err := strconv.ParseInt(oldest[0], 10, 64)
		if err != nil {
			oldestMs = nowMs
		}
		resetAt := time.UnixMilli(oldestMs).Add(window)
		retryAfter := max(resetAt.Sub(now), 0)

		return RateLimitResult{
			Limit:        s.limit,
			ResetAt:      resetAt,
			RetryAfterMs: int(retryAfter.Milliseconds()),
		}, nil
	}

	member := strconv.FormatInt(nowMs, 10)
	if err := s.store.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member}); err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to add request: %w", err)
	}

	if err := s.store.Expire(ctx, key, 2*window); err != nil {
		s.logger.Warn(ctx, "failed to set expiration on rate limit key",
			observability.Field{Key: "error", Value: err.Error()})
	}

	return RateLimitResult{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - int(count) - 1,
		ResetAt:   now.Add(window),
	}, nil
}
