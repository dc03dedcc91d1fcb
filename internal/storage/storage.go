package storage

import (
	"context"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	// GetActiveAPIKey returns the non-revoked key with the given hash owned by customerID.
	GetActiveAPIKey(ctx context.Context, customerID, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context, customerID string) ([]*domain.APIKey, error)
	// RevokeAPIKey reports whether a non-revoked key owned by customerID was revoked.
	RevokeAPIKey(ctx context.Context, customerID string, id int64) (bool, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error

	// Usage
	CreateUsageEvent(ctx context.Context, event *domain.UsageEvent) error
	// CountUsage counts events for customerID at or after since. A zero since counts all events.
	CountUsage(ctx context.Context, customerID string, since time.Time) (int, error)

	// Billing
	CreateBillingRecord(ctx context.Context, record *domain.BillingRecord) error
	ListBillingRecords(ctx context.Context, customerID string, limit int) ([]*domain.BillingRecord, error)

	// Tickets
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	GetTicket(ctx context.Context, customerID string, id int64) (*domain.Ticket, error)
	ListTickets(ctx context.Context, customerID string) ([]*domain.Ticket, error)
	CreateTicketResponse(ctx context.Context, resp *domain.TicketResponse) error
	ListTicketResponses(ctx context.Context, ticketID int64) ([]*domain.TicketResponse, error)

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
