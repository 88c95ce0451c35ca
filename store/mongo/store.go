// Package mongo implements store.Store on MongoDB using the official v2
// driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	ledgerstore "github.com/xraph/bankledger/store"
	"github.com/xraph/bankledger/transfer"
)

// Collection name constants.
const (
	colAccounts     = "ledger_accounts"
	colTransactions = "ledger_transactions"
	colTransfers    = "ledger_transfers"
	colStubs        = "ledger_transfer_stubs"
	colCounters     = "ledger_counters"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	standalone bool
}

// Option configures a Store.
type Option func(*Store)

// WithStandalone runs RunInTx without a session transaction. Standalone
// servers do not support transactions, so writes inside RunInTx are then
// applied one by one.
func WithStandalone() Option {
	return func(s *Store) { s.standalone = true }
}

// Open connects to uri and returns a store over the named database.
func Open(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ledger/mongo: ping: %w", err)
	}
	return New(client, database, opts...), nil
}

// New creates a store over an existing client.
func New(client *mongo.Client, database string, opts ...Option) *Store {
	s := &Store{
		client: client,
		db:     client.Database(database),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// RunInTx runs fn inside a session transaction. Nested calls join the
// outer session.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.standalone || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("ledger/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	seq, err := s.nextSeq(ctx, colAccounts)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(colAccounts).InsertOne(ctx, toAccountModel(a, seq))
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("ledger/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).FindOne(ctx, bson.M{"_id": accountID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get account: %w", err)
	}
	return fromAccountModel(&m), nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	res, err := s.db.Collection(colAccounts).UpdateOne(ctx,
		bson.M{"_id": a.ID},
		bson.M{"$set": bson.M{
			"balance":            a.Balance,
			"transfers_received": a.TransfersReceived,
		}},
	)
	if err != nil {
		return fmt.Errorf("ledger/mongo: update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	var models []accountModel
	if err := s.findSorted(ctx, colAccounts, bson.M{}, &models); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		result[i] = fromAccountModel(&models[i])
	}
	return result, nil
}

func (s *Store) AppendTransaction(ctx context.Context, t *account.Transaction) error {
	n, err := s.db.Collection(colAccounts).CountDocuments(ctx, bson.M{"_id": t.AccountID})
	if err != nil {
		return fmt.Errorf("ledger/mongo: append transaction: %w", err)
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}

	seq, err := s.nextSeq(ctx, colTransactions)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(colTransactions).InsertOne(ctx, toTransactionModel(t, seq)); err != nil {
		return fmt.Errorf("ledger/mongo: append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]*account.Transaction, error) {
	var models []transactionModel
	if err := s.findSorted(ctx, colTransactions, bson.M{"account_id": accountID}, &models); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list transactions: %w", err)
	}

	result := make([]*account.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("ledger/mongo: decode transaction: %w", err)
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) ActivityTotals(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$account_id"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
		// $sum widens to a double on overflow; clamp it back to int64.
		{{Key: "$set", Value: bson.D{
			{Key: "total", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{"$total", float64(math.MaxInt64)}}},
				int64(math.MaxInt64),
				"$total",
			}}}},
		}}},
	}

	cursor, err := s.db.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: activity totals: %w", err)
	}
	var rows []totalModel
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("ledger/mongo: activity totals: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	for _, r := range rows {
		totals[r.AccountID] = r.Total
	}
	return totals, nil
}

// ==================== Transfer Store ====================

func (s *Store) CreateTransfer(ctx context.Context, t *transfer.Transfer) error {
	seq, err := s.nextSeq(ctx, colTransfers)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(colTransfers).InsertOne(ctx, toTransferModel(t, seq))
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("ledger/mongo: create transfer: %w", err)
	}
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, recipient, key string) (*transfer.Transfer, error) {
	var m transferModel
	err := s.db.Collection(colTransfers).
		FindOne(ctx, bson.M{"recipient": recipient, "transfer_key": key}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrTransferNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get transfer: %w", err)
	}
	return fromTransferModel(&m)
}

func (s *Store) UpdateTransfer(ctx context.Context, t *transfer.Transfer) error {
	res, err := s.db.Collection(colTransfers).UpdateOne(ctx,
		bson.M{"recipient": t.To, "transfer_key": t.Key},
		bson.M{"$set": bson.M{
			"status":      string(t.Status),
			"resolved_at": t.ResolvedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("ledger/mongo: update transfer: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrTransferNotFound
	}
	return nil
}

func (s *Store) ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Transfer, error) {
	filter := bson.M{}
	if opts.From != "" {
		filter["sender"] = opts.From
	}
	if opts.To != "" {
		filter["recipient"] = opts.To
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	var models []transferModel
	if err := s.findSorted(ctx, colTransfers, filter, &models); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list transfers: %w", err)
	}

	result := make([]*transfer.Transfer, len(models))
	for i := range models {
		t, err := fromTransferModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("ledger/mongo: decode transfer: %w", err)
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) PutStub(ctx context.Context, st *transfer.Stub) error {
	_, err := s.db.Collection(colStubs).ReplaceOne(ctx,
		bson.M{"sender": st.Sender, "transfer_key": st.Key},
		toStubModel(st),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ledger/mongo: put stub: %w", err)
	}
	return nil
}

func (s *Store) GetStub(ctx context.Context, sender, key string) (*transfer.Stub, error) {
	var m stubModel
	err := s.db.Collection(colStubs).
		FindOne(ctx, bson.M{"sender": sender, "transfer_key": key}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrTransferNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get stub: %w", err)
	}
	return fromStubModel(&m), nil
}

// ==================== Helpers ====================

// nextSeq returns the next value of the named insertion-order counter.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("ledger/mongo: next %s seq: %w", name, err)
	}
	return counter.Value, nil
}

func (s *Store) findSorted(ctx context.Context, col string, filter bson.M, out any) error {
	cursor, err := s.db.Collection(col).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "seq", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "seq", Value: 1}}},
		},
		colTransfers: {
			{
				Keys:    bson.D{{Key: "recipient", Value: 1}, {Key: "transfer_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "sender", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "seq", Value: 1}}},
		},
		colStubs: {
			{
				Keys:    bson.D{{Key: "sender", Value: 1}, {Key: "transfer_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
