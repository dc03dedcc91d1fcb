package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var embedMigrations embed.FS

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New connects to the database and brings the schema up to date.
func New(driver, dsn string) (*Store, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db.DB, driver); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, driver: driver}, nil
}

// Open connects to the database without running migrations.
func Open(driver, dsn string) (*sqlx.DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if driver == DriverSQLite {
		// A single connection serializes writers instead of failing with SQLITE_BUSY,
		// and keeps ":memory:" databases alive across queries.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	return db, nil
}

// Migrate applies all pending migrations for the driver's dialect.
func Migrate(db *sql.DB, driver string) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir(driver)); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// MigrationStatus prints the applied state of every migration.
func MigrationStatus(db *sql.DB, driver string) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.Status(db, migrationsDir(driver))
}

func migrationsDir(driver string) string {
	return "migrations/" + driver
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// API Keys
// ============================================

const apiKeyColumns = `id, customer_id, key_hash, COALESCE(name, '') AS name, created_at, last_used, revoked`

func createAPIKey(ctx context.Context, db dbInterface, key *domain.APIKey) error {
	err := db.GetContext(ctx, &key.ID,
		`INSERT INTO api_keys (customer_id, key_hash, name, created_at, last_used, revoked)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		key.CustomerID, key.KeyHash, key.Name, key.CreatedAt, key.LastUsed, key.Revoked)
	return wrapUniqueError(err)
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, s.db, key)
}

func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, t.tx, key)
}

func getAPIKeyByHash(ctx context.Context, db dbInterface, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.GetContext(ctx, &key,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, s.db, keyHash)
}

func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, t.tx, keyHash)
}

func getActiveAPIKey(ctx context.Context, db dbInterface, customerID, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.GetContext(ctx, &key,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE customer_id = $1 AND key_hash = $2 AND revoked = FALSE`, customerID, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) GetActiveAPIKey(ctx context.Context, customerID, keyHash string) (*domain.APIKey, error) {
	return getActiveAPIKey(ctx, s.db, customerID, keyHash)
}

func (t *Tx) GetActiveAPIKey(ctx context.Context, customerID, keyHash string) (*domain.APIKey, error) {
	return getActiveAPIKey(ctx, t.tx, customerID, keyHash)
}

func listAPIKeys(ctx context.Context, db dbInterface, customerID string) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	err := db.SelectContext(ctx, &keys,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE customer_id = $1
		 ORDER BY created_at DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, customerID string) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, s.db, customerID)
}

func (t *Tx) ListAPIKeys(ctx context.Context, customerID string) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, t.tx, customerID)
}

func revokeAPIKey(ctx context.Context, db dbInterface, customerID string, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE api_keys SET revoked = TRUE WHERE id = $1 AND customer_id = $2 AND revoked = FALSE`,
		id, customerID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) RevokeAPIKey(ctx context.Context, customerID string, id int64) (bool, error) {
	return revokeAPIKey(ctx, s.db, customerID, id)
}

func (t *Tx) RevokeAPIKey(ctx context.Context, customerID string, id int64) (bool, error) {
	return revokeAPIKey(ctx, t.tx, customerID, id)
}

func updateAPIKeyLastUsed(ctx context.Context, db dbInterface, id int64, at time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error {
	return updateAPIKeyLastUsed(ctx, s.db, id, at)
}

func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id int64, at time.Time) error {
	return updateAPIKeyLastUsed(ctx, t.tx, id, at)
}

// ============================================
// Usage
// ============================================

func createUsageEvent(ctx context.Context, db dbInterface, event *domain.UsageEvent) error {
	return db.GetContext(ctx, &event.ID,
		`INSERT INTO usage (customer_id, api_key_hash, timestamp, endpoint, success)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		event.CustomerID, event.APIKeyHash, event.Timestamp, event.Endpoint, event.Success)
}

func (s *Store) CreateUsageEvent(ctx context.Context, event *domain.UsageEvent) error {
	return createUsageEvent(ctx, s.db, event)
}

func (t *Tx) CreateUsageEvent(ctx context.Context, event *domain.UsageEvent) error {
	return createUsageEvent(ctx, t.tx, event)
}

func countUsage(ctx context.Context, db dbInterface, customerID string, since time.Time) (int, error) {
	var count int
	if since.IsZero() {
		err := db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM usage WHERE customer_id = $1`, customerID)
		return count, err
	}
	err := db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM usage WHERE customer_id = $1 AND timestamp >= $2`,
		customerID, since.UTC())
	return count, err
}

func (s *Store) CountUsage(ctx context.Context, customerID string, since time.Time) (int, error) {
	return countUsage(ctx, s.db, customerID, since)
}

func (t *Tx) CountUsage(ctx context.Context, customerID string, since time.Time) (int, error) {
	return countUsage(ctx, t.tx, customerID, since)
}

// ============================================
// Billing
// ============================================

func createBillingRecord(ctx context.Context, db dbInterface, record *domain.BillingRecord) error {
	return db.GetContext(ctx, &record.ID,
		`INSERT INTO billing (customer_id, invoice_id, amount, status, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		record.CustomerID, record.InvoiceID, record.Amount, record.Status, record.Description, record.CreatedAt)
}

func (s *Store) CreateBillingRecord(ctx context.Context, record *domain.BillingRecord) error {
	return createBillingRecord(ctx, s.db, record)
}

func (t *Tx) CreateBillingRecord(ctx context.Context, record *domain.BillingRecord) error {
	return createBillingRecord(ctx, t.tx, record)
}

func listBillingRecords(ctx context.Context, db dbInterface, customerID string, limit int) ([]*domain.BillingRecord, error) {
	records := []*domain.BillingRecord{}
	err := db.SelectContext(ctx, &records,
		`SELECT id, customer_id, invoice_id, amount, status, description, created_at
		 FROM billing WHERE customer_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) ListBillingRecords(ctx context.Context, customerID string, limit int) ([]*domain.BillingRecord, error) {
	return listBillingRecords(ctx, s.db, customerID, limit)
}

func (t *Tx) ListBillingRecords(ctx context.Context, customerID string, limit int) ([]*domain.BillingRecord, error) {
	return listBillingRecords(ctx, t.tx, customerID, limit)
}

// ============================================
// Tickets
// ============================================

const ticketColumns = `id, customer_id, subject, message, COALESCE(category, '') AS category,
	status, ai_responded, created_at, resolved_at`

func createTicket(ctx context.Context, db dbInterface, ticket *domain.Ticket) error {
	return db.GetContext(ctx, &ticket.ID,
		`INSERT INTO tickets (customer_id, subject, message, category, status, ai_responded, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		ticket.CustomerID, ticket.Subject, ticket.Message, ticket.Category,
		string(ticket.Status), ticket.AIResponded, ticket.CreatedAt)
}

func (s *Store) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return createTicket(ctx, s.db, ticket)
}

func (t *Tx) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return createTicket(ctx, t.tx, ticket)
}

func getTicket(ctx context.Context, db dbInterface, customerID string, id int64) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := db.GetContext(ctx, &ticket,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 AND customer_id = $2`, id, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, customerID string, id int64) (*domain.Ticket, error) {
	return getTicket(ctx, s.db, customerID, id)
}

func (t *Tx) GetTicket(ctx context.Context, customerID string, id int64) (*domain.Ticket, error) {
	return getTicket(ctx, t.tx, customerID, id)
}

func listTickets(ctx context.Context, db dbInterface, customerID string) ([]*domain.Ticket, error) {
	tickets := []*domain.Ticket{}
	err := db.SelectContext(ctx, &tickets,
		`SELECT `+ticketColumns+` FROM tickets WHERE customer_id = $1
		 ORDER BY created_at DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) ListTickets(ctx context.Context, customerID string) ([]*domain.Ticket, error) {
	return listTickets(ctx, s.db, customerID)
}

func (t *Tx) ListTickets(ctx context.Context, customerID string) ([]*domain.Ticket, error) {
	return listTickets(ctx, t.tx, customerID)
}

func createTicketResponse(ctx context.Context, db dbInterface, resp *domain.TicketResponse) error {
	return db.GetContext(ctx, &resp.ID,
		`INSERT INTO ticket_responses (ticket_id, from_agent, message, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		resp.TicketID, resp.FromAgent, resp.Message, resp.CreatedAt)
}

func (s *Store) CreateTicketResponse(ctx context.Context, resp *domain.TicketResponse) error {
	return createTicketResponse(ctx, s.db, resp)
}

func (t *Tx) CreateTicketResponse(ctx context.Context, resp *domain.TicketResponse) error {
	return createTicketResponse(ctx, t.tx, resp)
}

func listTicketResponses(ctx context.Context, db dbInterface, ticketID int64) ([]*domain.TicketResponse, error) {
	responses := []*domain.TicketResponse{}
	err := db.SelectContext(ctx, &responses,
		`SELECT id, ticket_id, from_agent, message, created_at FROM ticket_responses
		 WHERE ticket_id = $1 ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	return responses, nil
}

func (s *Store) ListTicketResponses(ctx context.Context, ticketID int64) ([]*domain.TicketResponse, error) {
	return listTicketResponses(ctx, s.db, ticketID)
}

func (t *Tx) ListTicketResponses(ctx context.Context, ticketID int64) ([]*domain.TicketResponse, error) {
	return listTicketResponses(ctx, t.tx, ticketID)
}

var (
	_ storage.Storage     = (*Store)(nil)
	_ storage.Transaction = (*Tx)(nil)
)
