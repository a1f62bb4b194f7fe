// Package domain contains the wallet ledger's core types and state machines.
package domain

import (
	"time"

	"walletledger/internal/common/money"
)

// WalletStatus represents the lifecycle status of a wallet
type WalletStatus string

const (
	WalletStatusActive   WalletStatus = "active"
	WalletStatusInactive WalletStatus = "inactive"
	WalletStatusFrozen   WalletStatus = "frozen"
)

// Wallet owns one account per currency for a single user.
type Wallet struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Status    WalletStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
}

// NewWallet creates an active wallet for a user.
func NewWallet(id, userID string) (*Wallet, error) {
	if id == "" {
		return nil, E(KindInvalidState, "id is required")
	}
	if userID == "" {
		return nil, E(KindInvalidState, "user_id is required")
	}
	now := time.Now().UTC()
	return &Wallet{
		ID:        id,
		UserID:    userID,
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanMutate reports whether balance-changing operations are allowed.
// Frozen and inactive wallets reject all mutations.
func (w *Wallet) CanMutate() bool {
	return w.Status == WalletStatusActive && w.DeletedAt == nil
}

// WalletAccount holds balances for one (wallet, currency) pair.
// Balance is the ledger total including pending funds; Available is the
// settled, spendable subset. Invariant: 0 <= Available <= Balance.
type WalletAccount struct {
	ID        string         `json:"id"`
	WalletID  string         `json:"wallet_id"`
	Currency  money.Currency `json:"currency"`
	Balance   money.Money    `json:"balance"`
	Available money.Money    `json:"available_balance"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
}

// NewWalletAccount creates a zero-balance account for a wallet currency.
func NewWalletAccount(id, walletID string, currency money.Currency) (*WalletAccount, error) {
	if id == "" {
		return nil, E(KindInvalidState, "id is required")
	}
	if walletID == "" {
		return nil, E(KindInvalidState, "wallet_id is required")
	}
	if !money.IsValidCurrency(currency) {
		return nil, E(KindInvalidAmount, "unsupported currency %q", currency)
	}
	now := time.Now().UTC()
	return &WalletAccount{
		ID:        id,
		WalletID:  walletID,
		Currency:  currency,
		Balance:   money.Zero(currency),
		Available: money.Zero(currency),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CheckInvariant validates 0 <= available <= balance.
func (a *WalletAccount) CheckInvariant() error {
	if a.Balance.IsNegative() {
		return E(KindInsufficientFunds, "balance would become negative on account %s", a.ID)
	}
	if a.Available.IsNegative() {
		return E(KindInsufficientFunds, "available balance would become negative on account %s", a.ID)
	}
	if a.Available.GreaterThan(a.Balance) {
		return E(KindInvalidState, "available balance exceeds ledger balance on account %s", a.ID)
	}
	return nil
}

// Apply adjusts the balances by the given deltas and re-validates the
// account invariant. Either delta may be negative.
func (a *WalletAccount) Apply(balanceDelta, availableDelta money.Money) error {
	newBalance, err := a.Balance.Add(balanceDelta)
	if err != nil {
		return Wrap(KindCurrencyMismatch, err, "balance adjustment")
	}
	newAvailable, err := a.Available.Add(availableDelta)
	if err != nil {
		return Wrap(KindCurrencyMismatch, err, "available balance adjustment")
	}
	prev := *a
	a.Balance = newBalance
	a.Available = newAvailable
	if err := a.CheckInvariant(); err != nil {
		*a = prev
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	return nil
}
