package mongo

import (
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/id"
	"github.com/xraph/bankledger/transfer"
)

// ==================== Account models ====================

type accountModel struct {
	ID                string `bson:"_id"`
	Seq               int64  `bson:"seq"`
	Balance           int64  `bson:"balance"`
	TransfersReceived int64  `bson:"transfers_received"`
	CreatedAt         int64  `bson:"created_at"`
}

func toAccountModel(a *account.Account, seq int64) *accountModel {
	return &accountModel{
		ID:                a.ID,
		Seq:               seq,
		Balance:           a.Balance,
		TransfersReceived: a.TransfersReceived,
		CreatedAt:         a.CreatedAt,
	}
}

func fromAccountModel(m *accountModel) *account.Account {
	return &account.Account{
		ID:                m.ID,
		Balance:           m.Balance,
		TransfersReceived: m.TransfersReceived,
		CreatedAt:         m.CreatedAt,
	}
}

// ==================== Transaction models ====================

type transactionModel struct {
	ID          string `bson:"_id"`
	Seq         int64  `bson:"seq"`
	AccountID   string `bson:"account_id"`
	Timestamp   int64  `bson:"timestamp"`
	Amount      int64  `bson:"amount"`
	Action      string `bson:"action"`
	TransferKey string `bson:"transfer_key,omitempty"`
}

func toTransactionModel(t *account.Transaction, seq int64) *transactionModel {
	return &transactionModel{
		ID:          t.ID.String(),
		Seq:         seq,
		AccountID:   t.AccountID,
		Timestamp:   t.Timestamp,
		Amount:      t.Amount,
		Action:      string(t.Action),
		TransferKey: t.TransferKey,
	}
}

func fromTransactionModel(m *transactionModel) (*account.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	return &account.Transaction{
		ID:          txnID,
		AccountID:   m.AccountID,
		Timestamp:   m.Timestamp,
		Amount:      m.Amount,
		Action:      account.Action(m.Action),
		TransferKey: m.TransferKey,
	}, nil
}

// ==================== Transfer models ====================

type transferModel struct {
	ID         string `bson:"_id"`
	Seq        int64  `bson:"seq"`
	Key        string `bson:"transfer_key"`
	Sender     string `bson:"sender"`
	Recipient  string `bson:"recipient"`
	Amount     int64  `bson:"amount"`
	CreatedAt  int64  `bson:"created_at"`
	ExpiresAt  int64  `bson:"expires_at"`
	Status     string `bson:"status"`
	ResolvedAt int64  `bson:"resolved_at"`
}

func toTransferModel(t *transfer.Transfer, seq int64) *transferModel {
	return &transferModel{
		ID:         t.ID.String(),
		Seq:        seq,
		Key:        t.Key,
		Sender:     t.From,
		Recipient:  t.To,
		Amount:     t.Amount,
		CreatedAt:  t.CreatedAt,
		ExpiresAt:  t.ExpiresAt,
		Status:     string(t.Status),
		ResolvedAt: t.ResolvedAt,
	}
}

func fromTransferModel(m *transferModel) (*transfer.Transfer, error) {
	transferID, err := id.ParseTransferID(m.ID)
	if err != nil {
		return nil, err
	}
	return &transfer.Transfer{
		ID:         transferID,
		Key:        m.Key,
		From:       m.Sender,
		To:         m.Recipient,
		Amount:     m.Amount,
		CreatedAt:  m.CreatedAt,
		ExpiresAt:  m.ExpiresAt,
		Status:     transfer.Status(m.Status),
		ResolvedAt: m.ResolvedAt,
	}, nil
}

type stubModel struct {
	Sender    string `bson:"sender"`
	Key       string `bson:"transfer_key"`
	Recipient string `bson:"recipient"`
	ExpiresAt int64  `bson:"expires_at"`
}

func toStubModel(s *transfer.Stub) *stubModel {
	return &stubModel{
		Sender:    s.Sender,
		Key:       s.Key,
		Recipient: s.Recipient,
		ExpiresAt: s.ExpiresAt,
	}
}

func fromStubModel(m *stubModel) *transfer.Stub {
	return &transfer.Stub{
		Sender:    m.Sender,
		Key:       m.Key,
		Recipient: m.Recipient,
		ExpiresAt: m.ExpiresAt,
	}
}

type totalModel struct {
	AccountID string `bson:"_id"`
	Total     int64  `bson:"total"`
}
