// Package events defines the envelope and payloads published on the
// message bus after ledger mutations commit.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is the envelope every published message carries.
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType, aggregateType, aggregateID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation adds correlation and causation IDs
func (e *Event) WithCorrelation(correlationID, causationID string) *Event {
	e.CorrelationID = correlationID
	e.CausationID = causationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher publishes events to a message broker. Publishing happens
// after the database commit; a failed publish is logged, never rolled
// back into the ledger.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Event types
const (
	EventWalletCreated  = "wallet.created"
	EventAccountCreated = "wallet.account.created"
	EventWalletCredited = "wallet.credited"
	EventWalletDebited  = "wallet.debited"

	EventDepositSettled      = "wallet.deposit.settled"
	EventTransferCompleted   = "wallet.transfer.completed"
	EventTransactionReversed = "wallet.transaction.reversed"
	EventFeeAdjusted         = "wallet.fee.adjusted"

	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentReleased   = "payment.released"
	EventPaymentExpired    = "payment.expired"
)

// Event payloads

// BalanceChangeData is the data for wallet.credited and wallet.debited.
type BalanceChangeData struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Type          string `json:"type"`
	Gross         string `json:"gross_amount"`
	Fee           string `json:"fee"`
	Net           string `json:"net_amount"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference,omitempty"`
	Balance       string `json:"balance"`
	Available     string `json:"available_balance"`
}

// TransferCompletedData is the data for wallet.transfer.completed.
type TransferCompletedData struct {
	TransferID    string `json:"transfer_id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
}

// TransactionReversedData is the data for wallet.transaction.reversed.
type TransactionReversedData struct {
	TransactionID string `json:"transaction_id"`
	ReversalID    string `json:"reversal_id"`
	AccountID     string `json:"account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

// AuthorizationData is the data for payment.* events.
type AuthorizationData struct {
	AuthorizationID string `json:"authorization_id"`
	AccountID       string `json:"account_id"`
	Processor       string `json:"processor"`
	Authorized      string `json:"authorized_amount"`
	Captured        string `json:"captured_amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}
