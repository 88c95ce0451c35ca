// Package postgres implements store.Store on PostgreSQL using a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/id"
	ledgerstore "github.com/xraph/bankledger/store"
	"github.com/xraph/bankledger/transfer"
)

// PostgreSQL error codes mapped onto ledger sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses connString, connects a pool and pings it.
func Open(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger/postgres: ping: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pgx pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := applyMigrations(ctx, s.pool, Migrations); err != nil {
		return fmt.Errorf("ledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Transactions ====================

type txKey struct{}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// RunInTx runs fn inside a serializable transaction. Nested calls join the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("ledger/postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger/postgres: commit: %w", err)
	}
	return nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO ledger_accounts (id, balance, transfers_received, created_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Balance, a.TransfersReceived, a.CreatedAt,
	)
	if pgCode(err) == codeUniqueViolation {
		return ledger.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("ledger/postgres: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	a := new(account.Account)
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT id, balance, transfers_received, created_at FROM ledger_accounts WHERE id = $1`,
		accountID,
	).Scan(&a.ID, &a.Balance, &a.TransfersReceived, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: get account: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE ledger_accounts SET balance = $1, transfers_received = $2 WHERE id = $3`,
		a.Balance, a.TransfersReceived, a.ID,
	)
	if err != nil {
		return fmt.Errorf("ledger/postgres: update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT id, balance, transfers_received, created_at FROM ledger_accounts ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: list accounts: %w", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*account.Account, error) {
		a := new(account.Account)
		err := row.Scan(&a.ID, &a.Balance, &a.TransfersReceived, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: scan accounts: %w", err)
	}
	return result, nil
}

func (s *Store) AppendTransaction(ctx context.Context, t *account.Transaction) error {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO ledger_transactions (id, account_id, timestamp, amount, action, transfer_key)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID.String(), t.AccountID, t.Timestamp, t.Amount, string(t.Action), t.TransferKey,
	)
	if pgCode(err) == codeForeignKeyViolation {
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger/postgres: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]*account.Transaction, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT id, account_id, timestamp, amount, action, transfer_key
		 FROM ledger_transactions WHERE account_id = $1 ORDER BY seq`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: list transactions: %w", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*account.Transaction, error) {
		var (
			t      account.Transaction
			rawID  string
			action string
		)
		if err := row.Scan(&rawID, &t.AccountID, &t.Timestamp, &t.Amount, &action, &t.TransferKey); err != nil {
			return nil, err
		}
		parsed, err := id.ParseTransactionID(rawID)
		if err != nil {
			return nil, err
		}
		t.ID = parsed
		t.Action = account.Action(action)
		return &t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: scan transactions: %w", err)
	}
	return result, nil
}

func (s *Store) ActivityTotals(ctx context.Context) (map[string]int64, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT account_id, LEAST(SUM(amount), 9223372036854775807)::BIGINT FROM ledger_transactions GROUP BY account_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: activity totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var (
			accountID string
			total     int64
		)
		if err := rows.Scan(&accountID, &total); err != nil {
			return nil, fmt.Errorf("ledger/postgres: scan total: %w", err)
		}
		totals[accountID] = total
	}
	return totals, rows.Err()
}

// ==================== Transfer Store ====================

const transferColumns = `id, transfer_key, sender, recipient, amount, created_at, expires_at, status, resolved_at`

func (s *Store) CreateTransfer(ctx context.Context, t *transfer.Transfer) error {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO ledger_transfers (`+transferColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID.String(), t.Key, t.From, t.To, t.Amount, t.CreatedAt, t.ExpiresAt, string(t.Status), t.ResolvedAt,
	)
	switch pgCode(err) {
	case codeUniqueViolation:
		return ledger.ErrAlreadyExists
	case codeForeignKeyViolation:
		return ledger.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger/postgres: create transfer: %w", err)
	}
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, recipient, key string) (*transfer.Transfer, error) {
	row := s.conn(ctx).QueryRow(ctx,
		`SELECT `+transferColumns+` FROM ledger_transfers WHERE recipient = $1 AND transfer_key = $2`,
		recipient, key,
	)
	t, err := scanTransfer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: get transfer: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTransfer(ctx context.Context, t *transfer.Transfer) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE ledger_transfers SET status = $1, resolved_at = $2 WHERE recipient = $3 AND transfer_key = $4`,
		string(t.Status), t.ResolvedAt, t.To, t.Key,
	)
	if err != nil {
		return fmt.Errorf("ledger/postgres: update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrTransferNotFound
	}
	return nil
}

func (s *Store) ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Transfer, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, clause+" = $"+strconv.Itoa(len(args)))
	}
	if opts.From != "" {
		add("sender", opts.From)
	}
	if opts.To != "" {
		add("recipient", opts.To)
	}
	if opts.Status != "" {
		add("status", string(opts.Status))
	}

	query := `SELECT ` + transferColumns + ` FROM ledger_transfers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: list transfers: %w", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*transfer.Transfer, error) {
		return scanTransfer(row)
	})
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: scan transfers: %w", err)
	}
	return result, nil
}

func (s *Store) PutStub(ctx context.Context, st *transfer.Stub) error {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO ledger_transfer_stubs (sender, transfer_key, recipient, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (sender, transfer_key) DO UPDATE SET recipient = EXCLUDED.recipient, expires_at = EXCLUDED.expires_at`,
		st.Sender, st.Key, st.Recipient, st.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("ledger/postgres: put stub: %w", err)
	}
	return nil
}

func (s *Store) GetStub(ctx context.Context, sender, key string) (*transfer.Stub, error) {
	st := &transfer.Stub{Sender: sender, Key: key}
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT recipient, expires_at FROM ledger_transfer_stubs WHERE sender = $1 AND transfer_key = $2`,
		sender, key,
	).Scan(&st.Recipient, &st.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: get stub: %w", err)
	}
	return st, nil
}

// ==================== Helpers ====================

func scanTransfer(row pgx.Row) (*transfer.Transfer, error) {
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

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
