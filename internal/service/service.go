// Package service implements the portal's operations on top of the storage layer.
package service

import (
	"context"
	"time"

	"github.com/bcnelson/support-portal/internal/metrics"
	"github.com/bcnelson/support-portal/internal/storage"
	"go.uber.org/zap"
)

// Services bundles the portal's services so they can be handed to the router together.
type Services struct {
	Keys    *KeyService
	Usage   *UsageService
	Billing *BillingService
	Tickets *TicketService
}

// New creates all services over a single store.
// loc is the reference timezone for usage reporting; m may be nil.
func New(store storage.Storage, log *zap.Logger, m *metrics.Metrics, loc *time.Location) *Services {
	return &Services{
		Keys:    NewKeyService(store, log, m),
		Usage:   NewUsageService(store, log, loc),
		Billing: NewBillingService(store, log),
		Tickets: NewTicketService(store, log, m),
	}
}

// inTx runs fn inside a store transaction, committing if fn succeeds.
func inTx(ctx context.Context, store storage.Storage, fn func(tx storage.Transaction) error) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
