// Package store persists wallets, accounts, transactions, transfers and
// authorizations, and provides the atomic unit every mutating ledger
// operation runs in.
package store

import (
	"context"
	"time"

	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
)

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	AccountID string
	UserID    string
	Type      domain.TransactionType
	Status    domain.TransactionStatus
	Currency  money.Currency
	Processor domain.Processor
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// FeeFilter narrows fee aggregations.
type FeeFilter struct {
	Currency money.Currency
	From     *time.Time
	To       *time.Time
}

// FeeSummaryRow aggregates collected fees per currency and type.
type FeeSummaryRow struct {
	Currency  money.Currency         `json:"currency"`
	Type      domain.TransactionType `json:"type"`
	Count     int64                  `json:"count"`
	TotalFees money.Money            `json:"total_fees"`
}

// ProcessorRow aggregates volume per payment processor and currency.
type ProcessorRow struct {
	Processor domain.Processor `json:"processor"`
	Currency  money.Currency   `json:"currency"`
	Count     int64            `json:"count"`
	Volume    money.Money      `json:"volume"`
	TotalFees money.Money      `json:"total_fees"`
}

// Tx is the handle available inside an atomic unit. Accounts returned by
// Account are locked for the duration of the unit.
type Tx interface {
	// Account returns the locked account row.
	Account(ctx context.Context, id string) (*domain.WalletAccount, error)
	// WalletStatus returns the status of the wallet owning an account.
	WalletStatus(ctx context.Context, walletID string) (domain.WalletStatus, error)
	// SaveAccount persists adjusted balances.
	SaveAccount(ctx context.Context, account *domain.WalletAccount) error
	// InsertTransaction writes the paired transaction record.
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	// UpdateTransaction persists a status/fee transition.
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	// TransactionForUpdate returns a locked transaction row.
	TransactionForUpdate(ctx context.Context, id string) (*domain.Transaction, error)
	// InsertTransfer writes a transfer group record.
	InsertTransfer(ctx context.Context, transfer *domain.Transfer) error
}

// Store is the durable wallet ledger. Postgres backs production; an
// in-memory implementation backs unit tests.
type Store interface {
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	GetWallet(ctx context.Context, id string) (*domain.Wallet, error)
	GetWalletByUser(ctx context.Context, userID string) (*domain.Wallet, error)
	SetWalletStatus(ctx context.Context, id string, status domain.WalletStatus) error

	// CreateAccount fails with DuplicateAccount when an account already
	// exists for the (wallet, currency) pair.
	CreateAccount(ctx context.Context, account *domain.WalletAccount) error
	GetAccount(ctx context.Context, id string) (*domain.WalletAccount, error)
	FindAccount(ctx context.Context, walletID string, currency money.Currency) (*domain.WalletAccount, error)

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	FindTransferByReference(ctx context.Context, reference string) (*domain.Transfer, error)
	TransferLegs(ctx context.Context, transferID string) ([]*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, int64, error)
	FeeSummary(ctx context.Context, filter FeeFilter) ([]FeeSummaryRow, error)
	ProcessorBreakdown(ctx context.Context) ([]ProcessorRow, error)

	CreateAuthorization(ctx context.Context, auth *domain.Authorization) error
	GetAuthorization(ctx context.Context, id string) (*domain.Authorization, error)
	FindAuthorizationByKey(ctx context.Context, key string) (*domain.Authorization, error)
	// UpdateAuthorization persists a state transition guarded by the
	// expected current status; a stale expectation fails with
	// InvalidState. This is what keeps the expiry sweep from trampling
	// in-flight captures.
	UpdateAuthorization(ctx context.Context, auth *domain.Authorization, from domain.AuthorizationStatus) error
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Authorization, error)

	// Atomic runs fn as a single all-or-nothing unit with the named
	// accounts locked in lexicographic ID order. Concurrent units on
	// overlapping accounts serialize; disjoint units run in parallel.
	Atomic(ctx context.Context, accountIDs []string, fn func(ctx context.Context, tx Tx) error) error
}
