package domain

import (
	"time"

	"walletledger/internal/common/money"
)

// AuthorizationStatus represents the state of a payment hold
type AuthorizationStatus string

const (
	AuthStatusAuthorized        AuthorizationStatus = "authorized"
	AuthStatusPartiallyCaptured AuthorizationStatus = "partially_captured"
	AuthStatusCaptured          AuthorizationStatus = "captured"
	AuthStatusReleased          AuthorizationStatus = "released"
	AuthStatusExpired           AuthorizationStatus = "expired"
)

// Authorization is a reserved-but-not-yet-captured amount against a
// payment method. It transitions to captured or released, never both.
type Authorization struct {
	ID             string              `json:"id"`
	AccountID      string              `json:"wallet_account_id"`
	Processor      Processor           `json:"processor"`
	ProcessorRef   string              `json:"processor_transaction_id,omitempty"`
	Status         AuthorizationStatus `json:"status"`
	Authorized     money.Money         `json:"authorized_amount"`
	Captured       money.Money         `json:"captured_amount"`
	Currency       money.Currency      `json:"currency"`
	MethodToken    string              `json:"-"`
	PlatformRef    string              `json:"platform_ref,omitempty"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
	ExpiresAt      time.Time           `json:"expires_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewAuthorization creates an authorization hold in the authorized state.
func NewAuthorization(id, accountID string, processor Processor, amount money.Money, window time.Duration) (*Authorization, error) {
	if id == "" {
		return nil, E(KindInvalidState, "id is required")
	}
	if accountID == "" {
		return nil, E(KindInvalidState, "wallet_account_id is required")
	}
	if !amount.IsPositive() {
		return nil, E(KindInvalidAmount, "authorization amount must be positive")
	}
	now := time.Now().UTC()
	return &Authorization{
		ID:         id,
		AccountID:  accountID,
		Processor:  processor,
		Status:     AuthStatusAuthorized,
		Authorized: amount,
		Captured:   money.Zero(amount.Currency),
		Currency:   amount.Currency,
		ExpiresAt:  now.Add(window),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Remaining returns the uncaptured portion of the hold.
func (a *Authorization) Remaining() money.Money {
	return a.Authorized.MustSub(a.Captured)
}

// Capturable reports whether the authorization accepts captures.
func (a *Authorization) Capturable() bool {
	return a.Status == AuthStatusAuthorized || a.Status == AuthStatusPartiallyCaptured
}

// Capture records a captured amount, transitioning to captured when the
// full authorized amount has been drawn.
func (a *Authorization) Capture(amount money.Money, now time.Time) error {
	if a.Status == AuthStatusExpired {
		return E(KindAuthorizationExpired, "authorization %s has expired", a.ID)
	}
	if !a.Capturable() {
		return E(KindInvalidState, "authorization %s is %s, cannot capture", a.ID, a.Status)
	}
	if now.After(a.ExpiresAt) {
		return E(KindAuthorizationExpired, "authorization %s expired at %s", a.ID, a.ExpiresAt.Format(time.RFC3339))
	}
	if !amount.IsPositive() {
		return E(KindInvalidAmount, "capture amount must be positive")
	}
	if amount.Currency != a.Currency {
		return E(KindCurrencyMismatch, "capture currency %s does not match authorization currency %s", amount.Currency, a.Currency)
	}
	if amount.GreaterThan(a.Remaining()) {
		return E(KindOverCapture, "capture of %s exceeds remaining authorization %s", amount, a.Remaining())
	}
	a.Captured = a.Captured.MustAdd(amount)
	if a.Captured.Equal(a.Authorized) {
		a.Status = AuthStatusCaptured
	} else {
		a.Status = AuthStatusPartiallyCaptured
	}
	a.UpdatedAt = now
	return nil
}

// Release releases the uncaptured remainder. Releasing an already
// released authorization is a no-op so retried calls stay safe.
func (a *Authorization) Release(now time.Time) error {
	if a.Status == AuthStatusReleased {
		return nil
	}
	if !a.Capturable() {
		return E(KindInvalidState, "authorization %s is %s, cannot release", a.ID, a.Status)
	}
	a.Status = AuthStatusReleased
	a.UpdatedAt = now
	return nil
}

// Expire transitions a stale authorization to expired. The sweep relies
// on this state guard rather than locking against in-flight captures.
func (a *Authorization) Expire(now time.Time) error {
	if !a.Capturable() {
		return E(KindInvalidState, "authorization %s is %s, cannot expire", a.ID, a.Status)
	}
	if now.Before(a.ExpiresAt) {
		return E(KindInvalidState, "authorization %s has not reached its expiry window", a.ID)
	}
	a.Status = AuthStatusExpired
	a.UpdatedAt = now
	return nil
}

// SameRequest reports whether a retried authorize call carries the same
// parameters as this authorization. Exact duplicates replay the prior
// result; conflicting payloads are rejected.
func (a *Authorization) SameRequest(accountID string, amount money.Money) bool {
	return a.AccountID == accountID && a.Authorized.Equal(amount)
}
