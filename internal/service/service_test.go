package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/metrics"
	"github.com/bcnelson/support-portal/internal/storage"
	"github.com/bcnelson/support-portal/internal/storage/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errInjected = errors.New("injected failure")

// failingStore wraps the memory store and fails selected writes inside transactions.
type failingStore struct {
	*memory.Store
	failCreateKey      bool
	failTicketResponse bool
}

func (f *failingStore) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := f.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Transaction: tx, store: f}, nil
}

type failingTx struct {
	storage.Transaction
	store *failingStore
}

func (t *failingTx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	if t.store.failCreateKey {
		return errInjected
	}
	return t.Transaction.CreateAPIKey(ctx, key)
}

func (t *failingTx) CreateTicketResponse(ctx context.Context, resp *domain.TicketResponse) error {
	if t.store.failTicketResponse {
		return errInjected
	}
	return t.Transaction.CreateTicketResponse(ctx, resp)
}

func newTestServices(t *testing.T, store storage.Storage) *Services {
	t.Helper()
	return New(store, zap.NewNop(), metrics.New(), time.UTC)
}

func strPtr(s string) *string { return &s }

func activeKeys(t *testing.T, store storage.Storage, customerID string) []*domain.APIKey {
	t.Helper()
	keys, err := store.ListAPIKeys(context.Background(), customerID)
	require.NoError(t, err)
	var active []*domain.APIKey
	for _, k := range keys {
		if !k.Revoked {
			active = append(active, k)
		}
	}
	return active
}
