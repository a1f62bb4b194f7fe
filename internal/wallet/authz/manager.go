// Package authz manages payment authorization holds: reserve at the
// processor, capture in part or full within the expiry window, release
// or expire the remainder.
package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"walletledger/internal/common/events"
	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
	"walletledger/internal/wallet/store"
)

// Manager provides authorization operations.
type Manager struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	window    time.Duration
}

// Config tunes authorization behavior.
type Config struct {
	// Window is how long a hold stays capturable.
	Window time.Duration `envconfig:"AUTH_WINDOW" default:"168h"`
	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration `envconfig:"AUTH_SWEEP_INTERVAL" default:"1m"`
	// SweepBatch bounds how many stale holds one sweep pass expires.
	SweepBatch int `envconfig:"AUTH_SWEEP_BATCH" default:"100"`
}

// New creates an authorization manager.
func New(st store.Store, publisher events.Publisher, window time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		store:     st,
		publisher: publisher,
		logger:    logger,
		window:    window,
	}
}

// AuthorizeRequest reserves an amount against a payment method.
type AuthorizeRequest struct {
	AccountID      string
	Amount         money.Money
	Processor      domain.Processor
	MethodToken    string
	PlatformRef    string
	IdempotencyKey string
}

// Authorize places a hold. Retries with the same idempotency key and
// parameters return the original hold; conflicting parameters are
// rejected.
func (m *Manager) Authorize(ctx context.Context, req AuthorizeRequest) (*domain.Authorization, error) {
	if req.IdempotencyKey != "" {
		existing, err := m.store.FindAuthorizationByKey(ctx, req.IdempotencyKey)
		if err == nil {
			if existing.SameRequest(req.AccountID, req.Amount) {
				return existing, nil
			}
			return nil, domain.E(domain.KindDuplicateIdempotencyKey,
				"idempotency key was used with different parameters")
		}
		if !domain.IsKind(err, domain.KindNotFound) {
			return nil, err
		}
	}

	account, err := m.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Currency != req.Amount.Currency {
		return nil, domain.E(domain.KindCurrencyMismatch,
			"account %s holds %s, amount is %s", account.ID, account.Currency, req.Amount.Currency)
	}

	auth, err := domain.NewAuthorization(ulid.Make().String(), req.AccountID, req.Processor, req.Amount, m.window)
	if err != nil {
		return nil, err
	}
	auth.MethodToken = req.MethodToken
	auth.PlatformRef = req.PlatformRef
	auth.IdempotencyKey = req.IdempotencyKey

	if err := m.store.CreateAuthorization(ctx, auth); err != nil {
		if domain.IsKind(err, domain.KindDuplicateIdempotencyKey) && req.IdempotencyKey != "" {
			// Lost a race with a concurrent retry.
			if existing, fErr := m.store.FindAuthorizationByKey(ctx, req.IdempotencyKey); fErr == nil && existing.SameRequest(req.AccountID, req.Amount) {
				return existing, nil
			}
		}
		return nil, err
	}

	m.logger.Info("authorization created",
		"authorization_id", auth.ID,
		"account_id", auth.AccountID,
		"amount", auth.Authorized,
		"expires_at", auth.ExpiresAt,
	)
	m.publishAuth(ctx, events.EventPaymentAuthorized, auth)
	return auth, nil
}

// Charge authorizes and immediately captures the full amount in one call.
func (m *Manager) Charge(ctx context.Context, req AuthorizeRequest) (*domain.Authorization, *domain.Transaction, error) {
	auth, err := m.Authorize(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if auth.Status == domain.AuthStatusCaptured {
		// Idempotent replay of a completed charge.
		return auth, nil, nil
	}
	txn, err := m.Capture(ctx, auth.ID, auth.Remaining())
	if err != nil {
		return nil, nil, err
	}
	captured, err := m.store.GetAuthorization(ctx, auth.ID)
	if err != nil {
		return nil, nil, err
	}
	return captured, txn, nil
}

// Capture draws part or all of a hold. Captured funds settle into the
// account as a completed payment transaction.
func (m *Manager) Capture(ctx context.Context, authorizationID string, amount money.Money) (*domain.Transaction, error) {
	auth, err := m.store.GetAuthorization(ctx, authorizationID)
	if err != nil {
		return nil, err
	}

	// The ledger credit must be known to pass before the hold
	// transitions; a rejection discovered after UpdateAuthorization would
	// leave a captured hold with no ledger record and no retry path.
	account, err := m.store.GetAccount(ctx, auth.AccountID)
	if err != nil {
		return nil, err
	}
	if account.DeletedAt != nil {
		return nil, domain.E(domain.KindNotFound, "account %s not found", account.ID)
	}
	wallet, err := m.store.GetWallet(ctx, account.WalletID)
	if err != nil {
		return nil, err
	}
	if wallet.Status == domain.WalletStatusFrozen {
		return nil, domain.E(domain.KindAccountFrozen, "wallet %s is frozen", wallet.ID)
	}
	if !wallet.CanMutate() {
		return nil, domain.E(domain.KindInvalidState, "wallet %s is %s", wallet.ID, wallet.Status)
	}

	now := time.Now().UTC()
	prior := auth.Status
	if err := auth.Capture(amount, now); err != nil {
		if domain.IsKind(err, domain.KindAuthorizationExpired) {
			m.expireNow(ctx, auth, prior, now)
		}
		return nil, err
	}
	if err := m.store.UpdateAuthorization(ctx, auth, prior); err != nil {
		return nil, err
	}

	txn, err := m.recordCapture(ctx, auth, amount)
	if err != nil {
		return nil, err
	}

	m.logger.Info("authorization captured",
		"authorization_id", auth.ID,
		"amount", amount,
		"captured_total", auth.Captured,
		"status", auth.Status,
	)
	m.publishAuth(ctx, events.EventPaymentCaptured, auth)
	return txn, nil
}

// Release gives back the uncaptured remainder. Releasing twice is a
// harmless no-op.
func (m *Manager) Release(ctx context.Context, authorizationID string) (*domain.Authorization, error) {
	auth, err := m.store.GetAuthorization(ctx, authorizationID)
	if err != nil {
		return nil, err
	}
	if auth.Status == domain.AuthStatusReleased {
		return auth, nil
	}

	prior := auth.Status
	if err := auth.Release(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := m.store.UpdateAuthorization(ctx, auth, prior); err != nil {
		return nil, err
	}

	m.logger.Info("authorization released", "authorization_id", auth.ID)
	m.publishAuth(ctx, events.EventPaymentReleased, auth)
	return auth, nil
}

// Get retrieves an authorization by ID.
func (m *Manager) Get(ctx context.Context, authorizationID string) (*domain.Authorization, error) {
	return m.store.GetAuthorization(ctx, authorizationID)
}

// recordCapture writes the ledger side of a capture: a completed payment
// credit on the linked account.
func (m *Manager) recordCapture(ctx context.Context, auth *domain.Authorization, amount money.Money) (*domain.Transaction, error) {
	txn, err := domain.NewTransaction(ulid.Make().String(), auth.AccountID, domain.TypePayment, domain.DirectionCredit, amount, money.Zero(amount.Currency))
	if err != nil {
		return nil, err
	}
	txn.Processor = auth.Processor
	txn.Description = "capture"
	txn.Metadata = map[string]string{"authorization_id": auth.ID}
	if err := txn.Complete(); err != nil {
		return nil, err
	}

	err = m.store.Atomic(ctx, []string{auth.AccountID}, func(ctx context.Context, tx store.Tx) error {
		account, err := tx.Account(ctx, auth.AccountID)
		if err != nil {
			return err
		}
		// Re-checked under the account lock; a status change since the
		// pre-capture validation loses the race here.
		status, err := tx.WalletStatus(ctx, account.WalletID)
		if err != nil {
			return err
		}
		switch status {
		case domain.WalletStatusActive:
		case domain.WalletStatusFrozen:
			return domain.E(domain.KindAccountFrozen, "wallet %s is frozen", account.WalletID)
		default:
			return domain.E(domain.KindInvalidState, "wallet %s is %s", account.WalletID, status)
		}
		if err := account.Apply(amount, amount); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// expireNow persists the expired state discovered during a capture
// attempt. Best effort; the sweep will catch it otherwise.
func (m *Manager) expireNow(ctx context.Context, auth *domain.Authorization, prior domain.AuthorizationStatus, now time.Time) {
	if err := auth.Expire(now); err != nil {
		return
	}
	if err := m.store.UpdateAuthorization(ctx, auth, prior); err != nil {
		m.logger.Debug("could not persist expiry", "authorization_id", auth.ID, "error", err)
		return
	}
	m.publishAuth(ctx, events.EventPaymentExpired, auth)
}

// Sweeper periodically expires stale holds.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(manager *Manager, interval time.Duration, batch int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		batch:    batch,
		logger:   logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweep started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			if n, err := s.manager.SweepExpired(ctx, s.batch); err != nil {
				s.logger.Error("expiry sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Info("expired stale authorizations", "count", n)
			}
		}
	}
}

// SweepExpired expires stale holds in one pass, returning how many it
// transitioned. A hold that races a concurrent capture is skipped; the
// state-guarded update makes the loser of the race harmless.
func (m *Manager) SweepExpired(ctx context.Context, batch int) (int, error) {
	stale, err := m.store.ListExpirable(ctx, time.Now().UTC(), batch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, auth := range stale {
		prior := auth.Status
		if err := auth.Expire(time.Now().UTC()); err != nil {
			continue
		}
		if err := m.store.UpdateAuthorization(ctx, auth, prior); err != nil {
			if domain.IsKind(err, domain.KindInvalidState) {
				m.logger.Debug("authorization transitioned during sweep", "authorization_id", auth.ID)
				continue
			}
			return expired, err
		}
		expired++
		m.publishAuth(ctx, events.EventPaymentExpired, auth)
	}
	return expired, nil
}

func (m *Manager) publishAuth(ctx context.Context, eventType string, auth *domain.Authorization) {
	if m.publisher == nil {
		return
	}
	event, err := events.NewEvent(eventType, "authorization", auth.ID, events.AuthorizationData{
		AuthorizationID: auth.ID,
		AccountID:       auth.AccountID,
		Processor:       string(auth.Processor),
		Authorized:      auth.Authorized.Decimal(),
		Captured:        auth.Captured.Decimal(),
		Currency:        string(auth.Currency),
		Status:          string(auth.Status),
	})
	if err != nil {
		m.logger.Error("building event", "type", eventType, "error", err)
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Error("publishing event", "type", eventType, "error", err)
	}
}
