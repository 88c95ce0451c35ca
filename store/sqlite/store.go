// Package sqlite implements store.Store on SQLite using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/id"
	ledgerstore "github.com/xraph/bankledger/store"
	"github.com/xraph/bankledger/transfer"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path with foreign keys, WAL journaling
// and a busy timeout enabled. The schema is created by Migrate.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger/sqlite: database path is required")
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: open: %w", err)
	}
	// SQLite has a single writer; one connection keeps transactions and
	// in-memory databases consistent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger/sqlite: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := applyMigrations(ctx, s.db, Migrations); err != nil {
		return fmt.Errorf("ledger/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Transactions ====================

type txKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger/sqlite: begin: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger/sqlite: commit: %w", err)
	}
	return nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO ledger_accounts (id, balance, transfers_received, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Balance, a.TransfersReceived, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ledger.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("ledger/sqlite: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	a := new(account.Account)
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, balance, transfers_received, created_at FROM ledger_accounts WHERE id = ?`,
		accountID,
	).Scan(&a.ID, &a.Balance, &a.TransfersReceived, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: get account: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE ledger_accounts SET balance = ?, transfers_received = ? WHERE id = ?`,
		a.Balance, a.TransfersReceived, a.ID,
	)
	if err != nil {
		return fmt.Errorf("ledger/sqlite: update account: %w", err)
	}
	return requireRow(res, ledger.ErrAccountNotFound)
}

func (s *Store) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, balance, transfers_received, created_at FROM ledger_accounts ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: list accounts: %w", err)
	}
	defer rows.Close()

	result := make([]*account.Account, 0)
	for rows.Next() {
		a := new(account.Account)
		if err := rows.Scan(&a.ID, &a.Balance, &a.TransfersReceived, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger/sqlite: scan account: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) AppendTransaction(ctx context.Context, t *account.Transaction) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO ledger_transactions (id, account_id, timestamp, amount, action, transfer_key)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.AccountID, t.Timestamp, t.Amount, string(t.Action), t.TransferKey,
	)
	if isForeignKeyViolation(err) {
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger/sqlite: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]*account.Transaction, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, account_id, timestamp, amount, action, transfer_key
		 FROM ledger_transactions WHERE account_id = ? ORDER BY seq`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: list transactions: %w", err)
	}
	defer rows.Close()

	result := make([]*account.Transaction, 0)
	for rows.Next() {
		var (
			t      account.Transaction
			rawID  string
			action string
		)
		if err := rows.Scan(&rawID, &t.AccountID, &t.Timestamp, &t.Amount, &action, &t.TransferKey); err != nil {
			return nil, fmt.Errorf("ledger/sqlite: scan transaction: %w", err)
		}
		if t.ID, err = id.ParseTransactionID(rawID); err != nil {
			return nil, fmt.Errorf("ledger/sqlite: parse transaction id: %w", err)
		}
		t.Action = account.Action(action)
		result = append(result, &t)
	}
	return result, rows.Err()
}

func (s *Store) ActivityTotals(ctx context.Context) (map[string]int64, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT account_id, amount FROM ledger_transactions`,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: activity totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var (
			accountID string
			amount    int64
		)
		if err := rows.Scan(&accountID, &amount); err != nil {
			return nil, fmt.Errorf("ledger/sqlite: scan total: %w", err)
		}
		// SQLite's SUM errors on integer overflow; totals saturate instead.
		totals[accountID] = account.AddActivity(totals[accountID], amount)
	}
	return totals, rows.Err()
}

// ==================== Transfer Store ====================

const transferColumns = `id, transfer_key, sender, recipient, amount, created_at, expires_at, status, resolved_at`

func (s *Store) CreateTransfer(ctx context.Context, t *transfer.Transfer) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO ledger_transfers (`+transferColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Key, t.From, t.To, t.Amount, t.CreatedAt, t.ExpiresAt, string(t.Status), t.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	if isForeignKeyViolation(err) {
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger/sqlite: create transfer: %w", err)
	}
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, recipient, key string) (*transfer.Transfer, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM ledger_transfers WHERE recipient = ? AND transfer_key = ?`,
		recipient, key,
	)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: get transfer: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTransfer(ctx context.Context, t *transfer.Transfer) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE ledger_transfers SET status = ?, resolved_at = ? WHERE recipient = ? AND transfer_key = ?`,
		string(t.Status), t.ResolvedAt, t.To, t.Key,
	)
	if err != nil {
		return fmt.Errorf("ledger/sqlite: update transfer: %w", err)
	}
	return requireRow(res, ledger.ErrTransferNotFound)
}

func (s *Store) ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Transfer, error) {
	var (
		where []string
		args  []any
	)
	if opts.From != "" {
		where = append(where, "sender = ?")
		args = append(args, opts.From)
	}
	if opts.To != "" {
		where = append(where, "recipient = ?")
		args = append(args, opts.To)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	query := `SELECT ` + transferColumns + ` FROM ledger_transfers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: list transfers: %w", err)
	}
	defer rows.Close()

	result := make([]*transfer.Transfer, 0)
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger/sqlite: scan transfer: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) PutStub(ctx context.Context, st *transfer.Stub) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO ledger_transfer_stubs (sender, transfer_key, recipient, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (sender, transfer_key) DO UPDATE SET recipient = excluded.recipient, expires_at = excluded.expires_at`,
		st.Sender, st.Key, st.Recipient, st.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("ledger/sqlite: put stub: %w", err)
	}
	return nil
}

func (s *Store) GetStub(ctx context.Context, sender, key string) (*transfer.Stub, error) {
	st := &transfer.Stub{Sender: sender, Key: key}
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT recipient, expires_at FROM ledger_transfer_stubs WHERE sender = ? AND transfer_key = ?`,
		sender, key,
	).Scan(&st.Recipient, &st.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: get stub: %w", err)
	}
	return st, nil
}

// ==================== Helpers ====================

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row scanner) (*transfer.Transfer, error) {
	var (
		t      transfer.Transfer
		rawID  string
		status string
	)
	if err := row.Scan(&rawID, &t.Key, &t.From, &t.To, &t.Amount, &t.CreatedAt, &t.ExpiresAt, &status, &t.ResolvedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseTransferID(rawID)
	if err != nil {
		return nil, err
	}
	t.ID = parsed
	t.Status = transfer.Status(status)
	return &t, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func sqliteCode(err error) (int, bool) {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code(), true
	}
	return 0, false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
