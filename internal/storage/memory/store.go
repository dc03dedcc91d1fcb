package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
//
// Transactions work on a private copy of the data that replaces the store's
// contents on commit. Transactions and non-transactional writes are serialized
// by txMu, so a goroutine holding an open transaction must not write to the
// store directly.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	data *tables
}

type tables struct {
	apiKeys   map[int64]*domain.APIKey
	usage     map[int64]*domain.UsageEvent
	billing   map[int64]*domain.BillingRecord
	tickets   map[int64]*domain.Ticket
	responses map[int64]*domain.TicketResponse
	lastID    int64
}

func newTables() *tables {
	return &tables{
		apiKeys:   make(map[int64]*domain.APIKey),
		usage:     make(map[int64]*domain.UsageEvent),
		billing:   make(map[int64]*domain.BillingRecord),
		tickets:   make(map[int64]*domain.Ticket),
		responses: make(map[int64]*domain.TicketResponse),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for id, v := range t.apiKeys {
		cp := *v
		c.apiKeys[id] = &cp
	}
	for id, v := range t.usage {
		cp := *v
		c.usage[id] = &cp
	}
	for id, v := range t.billing {
		cp := *v
		c.billing[id] = &cp
	}
	for id, v := range t.tickets {
		cp := *v
		c.tickets[id] = &cp
	}
	for id, v := range t.responses {
		cp := *v
		c.responses[id] = &cp
	}
	c.lastID = t.lastID
	return c
}

func (t *tables) nextID() int64 {
	t.lastID++
	return t.lastID
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{data: newTables()}
}

func (s *Store) Close() error { return nil }

// BeginTx starts a transaction. It blocks until any other open transaction ends.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	s.txMu.Lock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	return &Tx{parent: s, view: &Store{data: snapshot}}, nil
}

// write runs fn against the live tables, serialized with transactions.
func (s *Store) write(fn func(t *tables) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.writeLocked(fn)
}

func (s *Store) writeLocked(fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// Tx is a transaction over a private copy of the store.
type Tx struct {
	parent *Store
	view   *Store
	done   bool
}

// Commit publishes the transaction's writes.
func (t *Tx) Commit() error {
	if t.done {
		return domain.ErrInvalidInput
	}
	t.done = true
	t.parent.mu.Lock()
	t.parent.data = t.view.data
	t.parent.mu.Unlock()
	t.parent.txMu.Unlock()
	return nil
}

// Rollback discards the transaction's writes. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.parent.txMu.Unlock()
	return nil
}

func (t *Tx) Close() error { return nil }

func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// Tx methods run against the private copy, which no other goroutine can see.
func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return t.view.writeLocked(func(d *tables) error { return createAPIKey(d, key) })
}
func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return t.view.GetAPIKeyByHash(ctx, keyHash)
}
func (t *Tx) GetActiveAPIKey(ctx context.Context, customerID, keyHash string) (*domain.APIKey, error) {
	return t.view.GetActiveAPIKey(ctx, customerID, keyHash)
}
func (t *Tx) ListAPIKeys(ctx context.Context, customerID string) ([]*domain.APIKey, error) {
	return t.view.ListAPIKeys(ctx, customerID)
}
func (t *Tx) RevokeAPIKey(ctx context.Context, customerID string, id int64) (bool, error) {
	var revoked bool
	err := t.view.writeLocked(func(d *tables) error {
		revoked = revokeAPIKey(d, customerID, id)
		return nil
	})
	return revoked, err
}
func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error {
	return t.view.writeLocked(func(d *tables) error { return updateAPIKeyLastUsed(d, id, at) })
}
func (t *Tx) CreateUsageEvent(ctx context.Context, event *domain.UsageEvent) error {
	return t.view.writeLocked(func(d *tables) error { return createUsageEvent(d, event) })
}
func (t *Tx) CountUsage(ctx context.Context, customerID string, since time.Time) (int, error) {
	return t.view.CountUsage(ctx, customerID, since)
}
func (t *Tx) CreateBillingRecord(ctx context.Context, record *domain.BillingRecord) error {
	return t.view.writeLocked(func(d *tables) error { return createBillingRecord(d, record) })
}
func (t *Tx) ListBillingRecords(ctx context.Context, customerID string, limit int) ([]*domain.BillingRecord, error) {
	return t.view.ListBillingRecords(ctx, customerID, limit)
}
func (t *Tx) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return t.view.writeLocked(func(d *tables) error { return createTicket(d, ticket) })
}
func (t *Tx) GetTicket(ctx context.Context, customerID string, id int64) (*domain.Ticket, error) {
	return t.view.GetTicket(ctx, customerID, id)
}
func (t *Tx) ListTickets(ctx context.Context, customerID string) ([]*domain.Ticket, error) {
	return t.view.ListTickets(ctx, customerID)
}
func (t *Tx) CreateTicketResponse(ctx context.Context, resp *domain.TicketResponse) error {
	return t.view.writeLocked(func(d *tables) error { return createTicketResponse(d, resp) })
}
func (t *Tx) ListTicketResponses(ctx context.Context, ticketID int64) ([]*domain.TicketResponse, error) {
	return t.view.ListTicketResponses(ctx, ticketID)
}

// ============================================
// API Keys
// ============================================

func createAPIKey(d *tables, key *domain.APIKey) error {
	for _, k := range d.apiKeys {
		if k.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	key.ID = d.nextID()
	cp := *key
	d.apiKeys[key.ID] = &cp
	return nil
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return s.write(func(d *tables) error { return createAPIKey(d, key) })
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var found *domain.APIKey
	s.read(func(d *tables) {
		for _, k := range d.apiKeys {
			if k.KeyHash == keyHash {
				cp := *k
				found = &cp
				return
			}
		}
	})
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (s *Store) GetActiveAPIKey(ctx context.Context, customerID, keyHash string) (*domain.APIKey, error) {
	key, err := s.GetAPIKeyByHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}
	if key.CustomerID != customerID || key.Revoked {
		return nil, domain.ErrNotFound
	}
	return key, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, customerID string) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	s.read(func(d *tables) {
		for _, k := range d.apiKeys {
			if k.CustomerID == customerID {
				cp := *k
				keys = append(keys, &cp)
			}
		}
	})
	sort.Slice(keys, func(i, j int) bool {
		return newerFirst(keys[i].CreatedAt, keys[i].ID, keys[j].CreatedAt, keys[j].ID)
	})
	return keys, nil
}

func revokeAPIKey(d *tables, customerID string, id int64) bool {
	k, ok := d.apiKeys[id]
	if !ok || k.CustomerID != customerID || k.Revoked {
		return false
	}
	k.Revoked = true
	return true
}

func (s *Store) RevokeAPIKey(ctx context.Context, customerID string, id int64) (bool, error) {
	var revoked bool
	err := s.write(func(d *tables) error {
		revoked = revokeAPIKey(d, customerID, id)
		return nil
	})
	return revoked, err
}

func updateAPIKeyLastUsed(d *tables, id int64, at time.Time) error {
	k, ok := d.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	k.LastUsed = &at
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error {
	return s.write(func(d *tables) error { return updateAPIKeyLastUsed(d, id, at) })
}

// ============================================
// Usage
// ============================================

func createUsageEvent(d *tables, event *domain.UsageEvent) error {
	event.ID = d.nextID()
	cp := *event
	d.usage[event.ID] = &cp
	return nil
}

func (s *Store) CreateUsageEvent(ctx context.Context, event *domain.UsageEvent) error {
	return s.write(func(d *tables) error { return createUsageEvent(d, event) })
}

func (s *Store) CountUsage(ctx context.Context, customerID string, since time.Time) (int, error) {
	var count int
	s.read(func(d *tables) {
		for _, e := range d.usage {
			if e.CustomerID != customerID {
				continue
			}
			if !since.IsZero() && e.Timestamp.Before(since) {
				continue
			}
			count++
		}
	})
	return count, nil
}

// ============================================
// Billing
// ============================================

func createBillingRecord(d *tables, record *domain.BillingRecord) error {
	record.ID = d.nextID()
	cp := *record
	d.billing[record.ID] = &cp
	return nil
}

func (s *Store) CreateBillingRecord(ctx context.Context, record *domain.BillingRecord) error {
	return s.write(func(d *tables) error { return createBillingRecord(d, record) })
}

func (s *Store) ListBillingRecords(ctx context.Context, customerID string, limit int) ([]*domain.BillingRecord, error) {
	records := []*domain.BillingRecord{}
	s.read(func(d *tables) {
		for _, r := range d.billing {
			if r.CustomerID == customerID {
				cp := *r
				records = append(records, &cp)
			}
		}
	})
	sort.Slice(records, func(i, j int) bool {
		return newerFirst(records[i].CreatedAt, records[i].ID, records[j].CreatedAt, records[j].ID)
	})
	if limit >= 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ============================================
// Tickets
// ============================================

func createTicket(d *tables, ticket *domain.Ticket) error {
	ticket.ID = d.nextID()
	cp := *ticket
	d.tickets[ticket.ID] = &cp
	return nil
}

func (s *Store) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return s.write(func(d *tables) error { return createTicket(d, ticket) })
}

func (s *Store) GetTicket(ctx context.Context, customerID string, id int64) (*domain.Ticket, error) {
	var found *domain.Ticket
	s.read(func(d *tables) {
		if t, ok := d.tickets[id]; ok && t.CustomerID == customerID {
			cp := *t
			found = &cp
		}
	})
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListTickets(ctx context.Context, customerID string) ([]*domain.Ticket, error) {
	tickets := []*domain.Ticket{}
	s.read(func(d *tables) {
		for _, t := range d.tickets {
			if t.CustomerID == customerID {
				cp := *t
				tickets = append(tickets, &cp)
			}
		}
	})
	sort.Slice(tickets, func(i, j int) bool {
		return newerFirst(tickets[i].CreatedAt, tickets[i].ID, tickets[j].CreatedAt, tickets[j].ID)
	})
	return tickets, nil
}

func createTicketResponse(d *tables, resp *domain.TicketResponse) error {
	if _, ok := d.tickets[resp.TicketID]; !ok {
		return domain.ErrNotFound
	}
	resp.ID = d.nextID()
	cp := *resp
	d.responses[resp.ID] = &cp
	return nil
}

func (s *Store) CreateTicketResponse(ctx context.Context, resp *domain.TicketResponse) error {
	return s.write(func(d *tables) error { return createTicketResponse(d, resp) })
}

func (s *Store) ListTicketResponses(ctx context.Context, ticketID int64) ([]*domain.TicketResponse, error) {
	responses := []*domain.TicketResponse{}
	s.read(func(d *tables) {
		for _, r := range d.responses {
			if r.TicketID == ticketID {
				cp := *r
				responses = append(responses, &cp)
			}
		}
	})
	sort.Slice(responses, func(i, j int) bool {
		return newerFirst(responses[j].CreatedAt, responses[j].ID, responses[i].CreatedAt, responses[i].ID)
	})
	return responses, nil
}

// newerFirst orders by creation time descending, then by id descending.
func newerFirst(aTime time.Time, aID int64, bTime time.Time, bID int64) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

var (
	_ storage.Storage     = (*Store)(nil)
	_ storage.Transaction = (*Tx)(nil)
)
