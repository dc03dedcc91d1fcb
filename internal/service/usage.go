package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/storage"
	"go.uber.org/zap"
)

// UsageService reports and records API usage.
type UsageService struct {
	store storage.Storage
	log   *zap.Logger
	loc   *time.Location
	now   func() time.Time
}

// NewUsageService creates a new UsageService. Day and month boundaries are taken in loc.
func NewUsageService(store storage.Storage, log *zap.Logger, loc *time.Location) *UsageService {
	if loc == nil {
		loc = time.Local
	}
	return &UsageService{
		store: store,
		log:   log.Named("usage"),
		loc:   loc,
		now:   time.Now,
	}
}

// Stats returns customerID's request counts and the informational daily quota.
// RateLimitReset is the next midnight, or nil when there were no requests today.
func (s *UsageService) Stats(ctx context.Context, customerID string) (*domain.UsageStats, error) {
	now := s.now().In(s.loc)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	today, err := s.store.CountUsage(ctx, customerID, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("counting today's usage: %w", err)
	}
	thisMonth, err := s.store.CountUsage(ctx, customerID, startOfMonth)
	if err != nil {
		return nil, fmt.Errorf("counting this month's usage: %w", err)
	}
	allTime, err := s.store.CountUsage(ctx, customerID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("counting all usage: %w", err)
	}

	stats := &domain.UsageStats{
		Today:            today,
		ThisMonth:        thisMonth,
		AllTime:          allTime,
		CurrentRateLimit: domain.DailyRequestQuota - today,
	}
	if today > 0 {
		reset := startOfDay.AddDate(0, 0, 1)
		stats.RateLimitReset = &reset
	}
	return stats, nil
}

// Record appends a usage event for the holder of apiKey and stamps the key's
// last use, in one transaction. Revoked keys are rejected with domain.ErrUnauthorized.
func (s *UsageService) Record(ctx context.Context, apiKey, endpoint string, success bool) (*domain.UsageEvent, error) {
	if !IsAPIKey(apiKey) {
		return nil, fmt.Errorf("malformed api key: %w", domain.ErrInvalidInput)
	}
	hash := domain.HashAPIKey(apiKey)
	at := s.now().UTC()

	var event *domain.UsageEvent
	err := inTx(ctx, s.store, func(tx storage.Transaction) error {
		key, err := tx.GetAPIKeyByHash(ctx, hash)
		if err != nil {
			return err
		}
		if key.Revoked {
			return fmt.Errorf("api key %d is revoked: %w", key.ID, domain.ErrUnauthorized)
		}

		event = &domain.UsageEvent{
			CustomerID: key.CustomerID,
			APIKeyHash: hash,
			Timestamp:  at,
			Endpoint:   endpoint,
			Success:    success,
		}
		if err := tx.CreateUsageEvent(ctx, event); err != nil {
			return fmt.Errorf("creating usage event: %w", err)
		}
		if err := tx.UpdateAPIKeyLastUsed(ctx, key.ID, at); err != nil {
			return fmt.Errorf("updating key last use: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("usage recorded",
		zap.String("customer_id", event.CustomerID), zap.String("endpoint", endpoint))
	return event, nil
}
