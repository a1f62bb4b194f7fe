package authz

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
	"walletledger/internal/wallet/store"
)

func newTestManager(t *testing.T, window time.Duration) (*Manager, *store.Memory, string) {
	t.Helper()
	st := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := New(st, nil, window, logger)

	ctx := context.Background()
	wallet, err := domain.NewWallet("w1", "user1")
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	if err := st.CreateWallet(ctx, wallet); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	account, err := domain.NewWalletAccount("acct1", wallet.ID, money.USD)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	if err := st.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return mgr, st, account.ID
}

func TestAuthorizeCaptureFlow(t *testing.T) {
	mgr, st, accountID := newTestManager(t, time.Hour)
	ctx := context.Background()

	auth, err := mgr.Authorize(ctx, AuthorizeRequest{
		AccountID: accountID,
		Amount:    money.FromMajor(100, money.USD),
		Processor: domain.ProcessorStripe,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if auth.Status != domain.AuthStatusAuthorized {
		t.Fatalf("expected authorized, got %s", auth.Status)
	}

	txn, err := mgr.Capture(ctx, auth.ID, money.FromMajor(60, money.USD))
	if err != nil {
		t.Fatalf("capture 60: %v", err)
	}
	if txn.Type != domain.TypePayment || txn.Direction != domain.DirectionCredit {
		t.Fatalf("unexpected ledger record: %+v", txn)
	}
	if txn.Processor != domain.ProcessorStripe {
		t.Fatalf("expected processor carried through, got %q", txn.Processor)
	}

	// Captured funds settle into the account.
	account, err := st.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Units != 600_000 || account.Available.Units != 600_000 {
		t.Fatalf("expected 60.0000 settled, got %s / %s", account.Balance, account.Available)
	}

	if _, err := mgr.Capture(ctx, auth.ID, money.FromMajor(41, money.USD)); !domain.IsKind(err, domain.KindOverCapture) {
		t.Fatalf("expected OVER_CAPTURE, got %v", err)
	}

	if _, err := mgr.Capture(ctx, auth.ID, money.FromMajor(40, money.USD)); err != nil {
		t.Fatalf("capture 40: %v", err)
	}
	final, err := mgr.Get(ctx, auth.ID)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if final.Status != domain.AuthStatusCaptured {
		t.Fatalf("expected captured, got %s", final.Status)
	}
}

func TestAuthorizeIdempotencyKey(t *testing.T) {
	mgr, _, accountID := newTestManager(t, time.Hour)
	ctx := context.Background()

	req := AuthorizeRequest{
		AccountID:      accountID,
		Amount:         money.FromMajor(50, money.USD),
		Processor:      domain.ProcessorAdyen,
		IdempotencyKey: "key-1",
	}
	first, err := mgr.Authorize(ctx, req)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	second, err := mgr.Authorize(ctx, req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new hold: %s != %s", second.ID, first.ID)
	}

	req.Amount = money.FromMajor(75, money.USD)
	if _, err := mgr.Authorize(ctx, req); !domain.IsKind(err, domain.KindDuplicateIdempotencyKey) {
		t.Fatalf("expected DUPLICATE_IDEMPOTENCY_KEY, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	mgr, _, accountID := newTestManager(t, time.Hour)
	ctx := context.Background()

	auth, err := mgr.Authorize(ctx, AuthorizeRequest{
		AccountID: accountID,
		Amount:    money.FromMajor(20, money.USD),
		Processor: domain.ProcessorBraintree,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	released, err := mgr.Release(ctx, auth.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != domain.AuthStatusReleased {
		t.Fatalf("expected released, got %s", released.Status)
	}

	again, err := mgr.Release(ctx, auth.ID)
	if err != nil {
		t.Fatalf("second release: %v", err)
	}
	if again.Status != domain.AuthStatusReleased {
		t.Fatalf("expected released, got %s", again.Status)
	}

	if _, err := mgr.Capture(ctx, auth.ID, money.FromMajor(1, money.USD)); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE capturing a released hold, got %v", err)
	}
}

func TestChargeCapturesImmediately(t *testing.T) {
	mgr, st, accountID := newTestManager(t, time.Hour)
	ctx := context.Background()

	auth, txn, err := mgr.Charge(ctx, AuthorizeRequest{
		AccountID: accountID,
		Amount:    money.FromMajor(25, money.USD),
		Processor: domain.ProcessorRazorpay,
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if auth.Status != domain.AuthStatusCaptured {
		t.Fatalf("expected captured, got %s", auth.Status)
	}
	if txn == nil || !txn.Gross.Equal(money.FromMajor(25, money.USD)) {
		t.Fatalf("unexpected ledger record: %+v", txn)
	}

	account, err := st.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Available.Units != 250_000 {
		t.Fatalf("expected 25.0000 available, got %s", account.Available)
	}
}

func TestCaptureOnFrozenWalletLeavesHoldIntact(t *testing.T) {
	mgr, st, accountID := newTestManager(t, time.Hour)
	ctx := context.Background()

	auth, err := mgr.Authorize(ctx, AuthorizeRequest{
		AccountID: accountID,
		Amount:    money.FromMajor(100, money.USD),
		Processor: domain.ProcessorStripe,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if err := st.SetWalletStatus(ctx, "w1", domain.WalletStatusFrozen); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if _, err := mgr.Capture(ctx, auth.ID, money.FromMajor(100, money.USD)); !domain.IsKind(err, domain.KindAccountFrozen) {
		t.Fatalf("expected ACCOUNT_FROZEN, got %v", err)
	}

	// The rejected capture must not transition the hold or move funds.
	held, err := st.GetAuthorization(ctx, auth.ID)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if held.Status != domain.AuthStatusAuthorized || !held.Captured.IsZero() {
		t.Fatalf("hold changed by rejected capture: status=%s captured=%s", held.Status, held.Captured)
	}
	account, err := st.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Units != 0 {
		t.Fatalf("funds moved on rejected capture: %s", account.Balance)
	}

	// The hold stays capturable once the wallet thaws.
	if err := st.SetWalletStatus(ctx, "w1", domain.WalletStatusActive); err != nil {
		t.Fatalf("thaw: %v", err)
	}
	if _, err := mgr.Capture(ctx, auth.ID, money.FromMajor(100, money.USD)); err != nil {
		t.Fatalf("capture after thaw: %v", err)
	}
	final, err := st.GetAuthorization(ctx, auth.ID)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if final.Status != domain.AuthStatusCaptured {
		t.Fatalf("expected captured, got %s", final.Status)
	}
}

func TestCaptureOnInactiveWalletLeavesHoldIntact(t *testing.T) {
	mgr, st, accountID := newTestManager(t, time.Hour)
	ctx := context.Background()

	auth, err := mgr.Authorize(ctx, AuthorizeRequest{
		AccountID: accountID,
		Amount:    money.FromMajor(40, money.USD),
		Processor: domain.ProcessorAdyen,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if err := st.SetWalletStatus(ctx, "w1", domain.WalletStatusInactive); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := mgr.Capture(ctx, auth.ID, money.FromMajor(40, money.USD)); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
	held, err := st.GetAuthorization(ctx, auth.ID)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if held.Status != domain.AuthStatusAuthorized {
		t.Fatalf("hold changed by rejected capture: %s", held.Status)
	}
}

func TestSweepExpiresStaleHolds(t *testing.T) {
	mgr, st, accountID := newTestManager(t, -time.Minute) // already expired
	ctx := context.Background()

	auth, err := mgr.Authorize(ctx, AuthorizeRequest{
		AccountID: accountID,
		Amount:    money.FromMajor(30, money.USD),
		Processor: domain.ProcessorStripe,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	n, err := mgr.SweepExpired(ctx, 10)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	expired, err := st.GetAuthorization(ctx, auth.ID)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if expired.Status != domain.AuthStatusExpired {
		t.Fatalf("expected expired, got %s", expired.Status)
	}

	// A second pass finds nothing.
	n, err = mgr.SweepExpired(ctx, 10)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 expired, got %d", n)
	}
}

func TestCaptureAfterWindowExpiresHold(t *testing.T) {
	mgr, st, accountID := newTestManager(t, -time.Minute)
	ctx := context.Background()

	auth, err := mgr.Authorize(ctx, AuthorizeRequest{
		AccountID: accountID,
		Amount:    money.FromMajor(10, money.USD),
		Processor: domain.ProcessorStripe,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if _, err := mgr.Capture(ctx, auth.ID, money.FromMajor(5, money.USD)); !domain.IsKind(err, domain.KindAuthorizationExpired) {
		t.Fatalf("expected AUTHORIZATION_EXPIRED, got %v", err)
	}

	// The failed capture persists the expiry eagerly.
	stale, err := st.GetAuthorization(ctx, auth.ID)
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if stale.Status != domain.AuthStatusExpired {
		t.Fatalf("expected expired, got %s", stale.Status)
	}
}
