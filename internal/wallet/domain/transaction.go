package domain

import (
	"time"

	"walletledger/internal/common/money"
)

// TransactionType represents the business type of a transaction
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
	TypePayment    TransactionType = "payment"
	TypeFee        TransactionType = "fee"
	TypeRefund     TransactionType = "refund"
)

// Direction represents which side of the account a transaction touches
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// TransactionStatus represents the settlement status of a transaction
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusReversed  TransactionStatus = "reversed"
)

// Processor identifies the external payment processor, carried as a
// reporting dimension only.
type Processor string

const (
	ProcessorBraintree Processor = "braintree"
	ProcessorStripe    Processor = "stripe"
	ProcessorAdyen     Processor = "adyen"
	ProcessorRazorpay  Processor = "razorpay"
)

// Transaction is a single ledger movement on a wallet account.
// Invariant: Gross = Net + Fee, all three non-negative. Immutable once
// terminal except for status transitions and settled_at.
type Transaction struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"wallet_account_id"`
	Type        TransactionType   `json:"type"`
	Direction   Direction         `json:"direction"`
	Status      TransactionStatus `json:"status"`
	Gross       money.Money       `json:"gross_amount"`
	Fee         money.Money       `json:"fee"`
	Net         money.Money       `json:"net_amount"`
	Currency    money.Currency    `json:"currency"`
	TransferID  string            `json:"transfer_id,omitempty"`
	ReversalOf  string            `json:"reversal_of,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Processor   Processor         `json:"processor,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	SettledAt   *time.Time        `json:"settled_at,omitempty"`
}

// NewTransaction builds a transaction and validates the amount invariant.
func NewTransaction(id, accountID string, txType TransactionType, direction Direction, gross, fee money.Money) (*Transaction, error) {
	if id == "" {
		return nil, E(KindInvalidState, "id is required")
	}
	if accountID == "" {
		return nil, E(KindInvalidState, "wallet_account_id is required")
	}
	if gross.Currency != fee.Currency {
		return nil, E(KindCurrencyMismatch, "fee currency %s does not match amount currency %s", fee.Currency, gross.Currency)
	}
	if gross.IsNegative() || fee.IsNegative() {
		return nil, E(KindInvalidAmount, "amounts must be non-negative")
	}
	net, err := gross.Sub(fee)
	if err != nil {
		return nil, Wrap(KindCurrencyMismatch, err, "computing net amount")
	}
	if net.IsNegative() {
		return nil, E(KindInvalidAmount, "fee exceeds gross amount")
	}
	now := time.Now().UTC()
	return &Transaction{
		ID:        id,
		AccountID: accountID,
		Type:      txType,
		Direction: direction,
		Status:    StatusPending,
		Gross:     gross,
		Fee:       fee,
		Net:       net,
		Currency:  gross.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CheckInvariant validates gross = net + fee with all three non-negative.
func (t *Transaction) CheckInvariant() error {
	if t.Gross.IsNegative() || t.Fee.IsNegative() || t.Net.IsNegative() {
		return E(KindInvalidAmount, "transaction %s has negative amounts", t.ID)
	}
	sum, err := t.Net.Add(t.Fee)
	if err != nil {
		return Wrap(KindCurrencyMismatch, err, "transaction %s", t.ID)
	}
	if !sum.Equal(t.Gross) {
		return E(KindInvalidState, "transaction %s violates gross = net + fee", t.ID)
	}
	return nil
}

// IsTerminal reports whether the transaction reached a final status.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusReversed:
		return true
	}
	return false
}

// Complete marks a pending transaction completed and stamps settled_at.
func (t *Transaction) Complete() error {
	if t.Status != StatusPending {
		return E(KindInvalidState, "transaction %s is %s, only pending transactions can complete", t.ID, t.Status)
	}
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.SettledAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkReversed flags a completed transaction as reversed.
func (t *Transaction) MarkReversed() error {
	if t.Status == StatusReversed {
		return E(KindAlreadyReversed, "transaction %s is already reversed", t.ID)
	}
	if t.Status != StatusCompleted {
		return E(KindInvalidState, "transaction %s is %s, only completed transactions can be reversed", t.ID, t.Status)
	}
	t.Status = StatusReversed
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Resplit adjusts the fee/net split of a pending transaction, keeping
// the gross amount fixed.
func (t *Transaction) Resplit(fee money.Money) error {
	if t.Status != StatusPending {
		return E(KindInvalidState, "transaction %s is %s, fee can only change while pending", t.ID, t.Status)
	}
	if fee.IsNegative() {
		return E(KindInvalidAmount, "fee must be non-negative")
	}
	net, err := t.Gross.Sub(fee)
	if err != nil {
		return Wrap(KindCurrencyMismatch, err, "fee adjustment on transaction %s", t.ID)
	}
	if net.IsNegative() {
		return E(KindInvalidAmount, "fee exceeds gross amount")
	}
	t.Fee = fee
	t.Net = net
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Transfer groups the two legs of a wallet-to-wallet movement. Both legs
// share its ID and commit together or not at all.
type Transfer struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTransfer creates a transfer group with an idempotency reference.
func NewTransfer(id, reference string) (*Transfer, error) {
	if id == "" {
		return nil, E(KindInvalidState, "id is required")
	}
	if reference == "" {
		return nil, E(KindInvalidState, "reference is required")
	}
	return &Transfer{
		ID:        id,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}, nil
}
