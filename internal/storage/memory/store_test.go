package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(customerID, hash string, at time.Time) *domain.APIKey {
	return &domain.APIKey{CustomerID: customerID, KeyHash: hash, Name: "k", CreatedAt: at}
}

func TestAPIKeyUniqueHash(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateAPIKey(ctx, newKey("c1", "h1", now)))
	err := s.CreateAPIKey(ctx, newKey("c2", "h1", now))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestListAPIKeysOrderAndCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	older := newKey("c1", "h1", now.Add(-time.Hour))
	tieA := newKey("c1", "h2", now)
	tieB := newKey("c1", "h3", now)
	for _, k := range []*domain.APIKey{older, tieA, tieB} {
		require.NoError(t, s.CreateAPIKey(ctx, k))
	}
	require.NoError(t, s.CreateAPIKey(ctx, newKey("c2", "h4", now)))

	keys, err := s.ListAPIKeys(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, []int64{tieB.ID, tieA.ID, older.ID}, []int64{keys[0].ID, keys[1].ID, keys[2].ID})

	// Returned records are copies
	keys[0].Revoked = true
	again, _ := s.ListAPIKeys(ctx, "c1")
	assert.False(t, again[0].Revoked)
}

func TestRevokeAPIKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := newKey("c1", "h1", time.Now())
	require.NoError(t, s.CreateAPIKey(ctx, key))

	revoked, err := s.RevokeAPIKey(ctx, "c2", key.ID)
	require.NoError(t, err)
	assert.False(t, revoked, "foreign customer")

	revoked, err = s.RevokeAPIKey(ctx, "c1", key.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.RevokeAPIKey(ctx, "c1", key.ID)
	require.NoError(t, err)
	assert.False(t, revoked, "already revoked")

	_, err = s.GetActiveAPIKey(ctx, "c1", "h1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.GetAPIKeyByHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestCountUsage(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, at := range []time.Time{now, now.Add(-time.Hour), now.Add(-48 * time.Hour)} {
		require.NoError(t, s.CreateUsageEvent(ctx, &domain.UsageEvent{CustomerID: "c1", Timestamp: at}))
	}
	require.NoError(t, s.CreateUsageEvent(ctx, &domain.UsageEvent{CustomerID: "c2", Timestamp: now}))

	n, err := s.CountUsage(ctx, "c1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountUsage(ctx, "c1", now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The bound is inclusive
	n, err = s.CountUsage(ctx, "c1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBillingLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateBillingRecord(ctx, &domain.BillingRecord{
			CustomerID: "c1", InvoiceID: "inv", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := s.ListBillingRecords(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))
}

func TestTicketResponses(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	ticket := &domain.Ticket{CustomerID: "c1", Subject: "s", Message: "m", Status: domain.TicketStatusOpen, CreatedAt: now}
	require.NoError(t, s.CreateTicket(ctx, ticket))

	second := &domain.TicketResponse{TicketID: ticket.ID, Message: "second", CreatedAt: now.Add(time.Minute)}
	first := &domain.TicketResponse{TicketID: ticket.ID, Message: "first", CreatedAt: now}
	require.NoError(t, s.CreateTicketResponse(ctx, second))
	require.NoError(t, s.CreateTicketResponse(ctx, first))

	responses, err := s.ListTicketResponses(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "first", responses[0].Message)
	assert.Equal(t, "second", responses[1].Message)

	err = s.CreateTicketResponse(ctx, &domain.TicketResponse{TicketID: 999, Message: "x", CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetTicket(ctx, "c2", ticket.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransactionCommit(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	key := newKey("c1", "h1", time.Now())
	require.NoError(t, tx.CreateAPIKey(ctx, key))

	// Writes stay private until commit
	inTx, err := tx.ListAPIKeys(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, inTx, 1)
	outside, err := s.ListAPIKeys(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, outside)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback(), "rollback after commit is a no-op")

	outside, err = s.ListAPIKeys(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, outside, 1)
}

func TestTransactionRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := newKey("c1", "h1", time.Now())
	require.NoError(t, s.CreateAPIKey(ctx, key))

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.RevokeAPIKey(ctx, "c1", key.ID)
	require.NoError(t, err)
	require.NoError(t, tx.CreateAPIKey(ctx, newKey("c1", "h2", time.Now())))
	require.NoError(t, tx.Rollback())

	keys, err := s.ListAPIKeys(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Revoked)

	// The store is usable again after rollback
	require.NoError(t, s.CreateAPIKey(ctx, newKey("c1", "h3", time.Now())))
}

func TestTransactionsSerialize(t *testing.T) {
	s := New()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.BeginTx(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			defer tx.Rollback()
			if err := tx.CreateUsageEvent(ctx, &domain.UsageEvent{CustomerID: "c1", Endpoint: "/v1", Timestamp: time.Now()}); err != nil {
				t.Error(err)
			}
			if err := tx.Commit(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	n, err := s.CountUsage(ctx, "c1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, workers, n)
}
