package domain

import (
	"testing"
	"time"

	"walletledger/internal/common/money"
)

func newTestAuth(t *testing.T, major int64) *Authorization {
	t.Helper()
	auth, err := NewAuthorization("auth1", "acct1", ProcessorStripe, money.FromMajor(major, money.USD), time.Hour)
	if err != nil {
		t.Fatalf("new authorization: %v", err)
	}
	return auth
}

func TestCaptureLifecycle(t *testing.T) {
	auth := newTestAuth(t, 100)
	now := time.Now().UTC()

	if err := auth.Capture(money.FromMajor(60, money.USD), now); err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if auth.Status != AuthStatusPartiallyCaptured {
		t.Fatalf("expected partially_captured, got %s", auth.Status)
	}
	if auth.Remaining().Units != 400_000 {
		t.Fatalf("expected 40.0000 remaining, got %s", auth.Remaining())
	}

	if err := auth.Capture(money.FromMajor(41, money.USD), now); !IsKind(err, KindOverCapture) {
		t.Fatalf("expected OVER_CAPTURE, got %v", err)
	}

	if err := auth.Capture(money.FromMajor(40, money.USD), now); err != nil {
		t.Fatalf("final capture: %v", err)
	}
	if auth.Status != AuthStatusCaptured {
		t.Fatalf("expected captured, got %s", auth.Status)
	}

	if err := auth.Capture(money.FromMajor(1, money.USD), now); !IsKind(err, KindInvalidState) {
		t.Fatalf("expected INVALID_STATE capturing a captured hold, got %v", err)
	}
}

func TestCaptureValidation(t *testing.T) {
	now := time.Now().UTC()

	auth := newTestAuth(t, 100)
	if err := auth.Capture(money.Zero(money.USD), now); !IsKind(err, KindInvalidAmount) {
		t.Fatalf("expected INVALID_AMOUNT for zero capture, got %v", err)
	}
	if err := auth.Capture(money.FromMajor(10, money.EUR), now); !IsKind(err, KindCurrencyMismatch) {
		t.Fatalf("expected CURRENCY_MISMATCH, got %v", err)
	}
}

func TestCaptureAfterExpiry(t *testing.T) {
	auth := newTestAuth(t, 100)
	late := auth.ExpiresAt.Add(time.Minute)

	if err := auth.Capture(money.FromMajor(10, money.USD), late); !IsKind(err, KindAuthorizationExpired) {
		t.Fatalf("expected AUTHORIZATION_EXPIRED, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	auth := newTestAuth(t, 100)
	now := time.Now().UTC()

	if err := auth.Release(now); err != nil {
		t.Fatalf("release: %v", err)
	}
	if auth.Status != AuthStatusReleased {
		t.Fatalf("expected released, got %s", auth.Status)
	}
	if err := auth.Release(now); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}

	if err := auth.Capture(money.FromMajor(1, money.USD), now); !IsKind(err, KindInvalidState) {
		t.Fatalf("expected INVALID_STATE capturing a released hold, got %v", err)
	}
}

func TestExpireRequiresStaleWindow(t *testing.T) {
	auth := newTestAuth(t, 100)

	if err := auth.Expire(time.Now().UTC()); !IsKind(err, KindInvalidState) {
		t.Fatalf("expected INVALID_STATE before window closes, got %v", err)
	}
	if err := auth.Expire(auth.ExpiresAt.Add(time.Second)); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if auth.Status != AuthStatusExpired {
		t.Fatalf("expected expired, got %s", auth.Status)
	}
}

func TestPartialCaptureThenExpire(t *testing.T) {
	auth := newTestAuth(t, 100)
	now := time.Now().UTC()

	if err := auth.Capture(money.FromMajor(30, money.USD), now); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if err := auth.Expire(auth.ExpiresAt.Add(time.Second)); err != nil {
		t.Fatalf("expire partially captured hold: %v", err)
	}
	// Captured funds stay captured; only the remainder lapses.
	if auth.Captured.Units != 300_000 {
		t.Fatalf("captured amount changed: %s", auth.Captured)
	}
}
