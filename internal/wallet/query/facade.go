// Package query is the read-only facade over the ledger: balances,
// transaction history and fee reporting.
package query

import (
	"context"
	"log/slog"

	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
	"walletledger/internal/wallet/store"
)

// Facade provides read-only ledger access.
type Facade struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a query facade.
func New(st store.Store, logger *slog.Logger) *Facade {
	return &Facade{store: st, logger: logger}
}

// Balance is a point-in-time view of one account's funds.
type Balance struct {
	AccountID string         `json:"account_id"`
	WalletID  string         `json:"wallet_id"`
	Currency  money.Currency `json:"currency"`
	Balance   money.Money    `json:"balance"`
	Available money.Money    `json:"available_balance"`
	Pending   money.Money    `json:"pending"`
}

// GetWallet retrieves a wallet by ID.
func (f *Facade) GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error) {
	return f.store.GetWallet(ctx, walletID)
}

// GetWalletByUser retrieves the wallet owned by a user.
func (f *Facade) GetWalletByUser(ctx context.Context, userID string) (*domain.Wallet, error) {
	return f.store.GetWalletByUser(ctx, userID)
}

// GetAccount retrieves an account by ID.
func (f *Facade) GetAccount(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	return f.store.GetAccount(ctx, accountID)
}

// GetBalance returns the balances of one account. Pending is the slice
// of the ledger balance not yet spendable.
func (f *Facade) GetBalance(ctx context.Context, accountID string) (*Balance, error) {
	account, err := f.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return balanceOf(account), nil
}

// GetBalanceByCurrency resolves a user's account for one currency and
// returns its balances.
func (f *Facade) GetBalanceByCurrency(ctx context.Context, userID string, currency money.Currency) (*Balance, error) {
	wallet, err := f.store.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	account, err := f.store.FindAccount(ctx, wallet.ID, currency)
	if err != nil {
		return nil, err
	}
	return balanceOf(account), nil
}

func balanceOf(account *domain.WalletAccount) *Balance {
	return &Balance{
		AccountID: account.ID,
		WalletID:  account.WalletID,
		Currency:  account.Currency,
		Balance:   account.Balance,
		Available: account.Available,
		Pending:   account.Balance.MustSub(account.Available),
	}
}

// GetTransaction retrieves a transaction by ID.
func (f *Facade) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return f.store.GetTransaction(ctx, transactionID)
}

// GetTransfer retrieves a transfer group with both legs.
func (f *Facade) GetTransfer(ctx context.Context, transferID string) ([]*domain.Transaction, error) {
	return f.store.TransferLegs(ctx, transferID)
}

// ListTransactions returns filtered transaction history, newest first.
func (f *Facade) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*domain.Transaction, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return f.store.ListTransactions(ctx, filter)
}

// FeeSummary aggregates collected fees per currency and type.
func (f *Facade) FeeSummary(ctx context.Context, filter store.FeeFilter) ([]store.FeeSummaryRow, error) {
	return f.store.FeeSummary(ctx, filter)
}

// ProcessorBreakdown aggregates completed volume per payment processor.
func (f *Facade) ProcessorBreakdown(ctx context.Context) ([]store.ProcessorRow, error) {
	return f.store.ProcessorBreakdown(ctx)
}
