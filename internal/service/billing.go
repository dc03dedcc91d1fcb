package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBillingStatus is stored for records added without a status.
const DefaultBillingStatus = "paid"

// BillingService reads billing records.
type BillingService struct {
	store storage.Storage
	log   *zap.Logger
	now   func() time.Time
}

// NewBillingService creates a new BillingService.
func NewBillingService(store storage.Storage, log *zap.Logger) *BillingService {
	return &BillingService{
		store: store,
		log:   log.Named("billing"),
		now:   time.Now,
	}
}

// History returns customerID's most recent invoices, newest first.
func (s *BillingService) History(ctx context.Context, customerID string) ([]domain.BillingHistoryItem, error) {
	records, err := s.store.ListBillingRecords(ctx, customerID, domain.BillingHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("listing billing records: %w", err)
	}

	items := make([]domain.BillingHistoryItem, 0, len(records))
	for _, r := range records {
		description := domain.DefaultBillingDescription
		if r.Description != nil && *r.Description != "" {
			description = *r.Description
		}
		items = append(items, domain.BillingHistoryItem{
			InvoiceID:   r.InvoiceID,
			Date:        r.CreatedAt,
			Amount:      r.Amount,
			Status:      r.Status,
			Description: description,
		})
	}
	return items, nil
}

// Add stores a billing record on behalf of the billing system.
// Missing invoice ids, statuses and dates are filled in.
func (s *BillingService) Add(ctx context.Context, record *domain.BillingRecord) error {
	if strings.TrimSpace(record.CustomerID) == "" {
		return fmt.Errorf("customer id is required: %w", domain.ErrInvalidInput)
	}
	if record.InvoiceID == "" {
		record.InvoiceID = "inv_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if record.Status == "" {
		record.Status = DefaultBillingStatus
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	if err := s.store.CreateBillingRecord(ctx, record); err != nil {
		return fmt.Errorf("creating billing record: %w", err)
	}

	s.log.Info("billing record added",
		zap.String("customer_id", record.CustomerID),
		zap.String("invoice_id", record.InvoiceID),
		zap.Float64("amount", record.Amount))
	return nil
}
