package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
	"walletledger/internal/wallet/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, nil, logger), st
}

func newFundedAccount(t *testing.T, eng *Engine, userID string, major int64) *domain.WalletAccount {
	t.Helper()
	ctx := context.Background()

	wallet, err := eng.CreateWallet(ctx, userID)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	account, err := eng.CreateAccount(ctx, wallet.ID, money.USD)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if major > 0 {
		txn, err := eng.Deposit(ctx, DepositRequest{
			AccountID: account.ID,
			Amount:    money.FromMajor(major, money.USD),
		})
		if err != nil {
			t.Fatalf("seed deposit: %v", err)
		}
		if _, err := eng.SettleDeposit(ctx, txn.ID); err != nil {
			t.Fatalf("settle seed deposit: %v", err)
		}
	}
	return account
}

func accountBalances(t *testing.T, st *store.Memory, accountID string) (balance, available int64) {
	t.Helper()
	account, err := st.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account.Balance.Units, account.Available.Units
}

func TestDepositPendingThenSettle(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 0)

	txn, err := eng.Deposit(ctx, DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(100, money.USD),
		Fee:       money.New(25_000, money.USD), // 2.50
		Reference: "dep-1",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if txn.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", txn.Status)
	}

	balance, available := accountBalances(t, st, account.ID)
	if balance != 975_000 || available != 0 {
		t.Fatalf("expected 97.5000 / 0.0000, got %d / %d", balance, available)
	}

	settled, err := eng.SettleDeposit(ctx, txn.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}

	balance, available = accountBalances(t, st, account.ID)
	if balance != 975_000 || available != 975_000 {
		t.Fatalf("expected 97.5000 / 97.5000, got %d / %d", balance, available)
	}

	if _, err := eng.SettleDeposit(ctx, txn.ID); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE on double settle, got %v", err)
	}
}

func TestDepositIdempotentReplay(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 0)

	req := DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(50, money.USD),
		Reference: "dep-retry",
	}
	first, err := eng.Deposit(ctx, req)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	second, err := eng.Deposit(ctx, req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new transaction: %s != %s", second.ID, first.ID)
	}

	// The balance moved exactly once.
	balance, _ := accountBalances(t, st, account.ID)
	if balance != 500_000 {
		t.Fatalf("expected 50.0000, got %d", balance)
	}

	// Same reference with a different amount is a conflict.
	req.Amount = money.FromMajor(60, money.USD)
	if _, err := eng.Deposit(ctx, req); !domain.IsKind(err, domain.KindDuplicateReference) {
		t.Fatalf("expected DUPLICATE_REFERENCE, got %v", err)
	}
}

func TestWithdrawFeeOnTop(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 100)

	txn, err := eng.Withdraw(ctx, WithdrawRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(50, money.USD),
		Fee:       money.FromMajor(1, money.USD),
		Reference: "wd-1",
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if txn.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", txn.Status)
	}
	if txn.Gross.Units != 510_000 || txn.Net.Units != 500_000 {
		t.Fatalf("expected gross 51.0000 net 50.0000, got %s / %s", txn.Gross, txn.Net)
	}

	balance, available := accountBalances(t, st, account.ID)
	if balance != 490_000 || available != 490_000 {
		t.Fatalf("expected 49.0000 / 49.0000, got %d / %d", balance, available)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 10)

	_, err := eng.Withdraw(ctx, WithdrawRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(10, money.USD),
		Fee:       money.FromMajor(1, money.USD),
	})
	if !domain.IsKind(err, domain.KindInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}

	// Nothing moved.
	balance, available := accountBalances(t, st, account.ID)
	if balance != 100_000 || available != 100_000 {
		t.Fatalf("balances changed: %d / %d", balance, available)
	}
}

func TestPendingFundsAreNotSpendable(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 0)

	if _, err := eng.Deposit(ctx, DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(100, money.USD),
	}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := eng.Withdraw(ctx, WithdrawRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(50, money.USD),
	})
	if !domain.IsKind(err, domain.KindInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS on unsettled funds, got %v", err)
	}
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	from := newFundedAccount(t, eng, "alice", 100)
	to := newFundedAccount(t, eng, "bob", 0)

	result, err := eng.Transfer(ctx, TransferRequest{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        money.FromMajor(30, money.USD),
		Fee:           money.FromMajor(1, money.USD),
		Reference:     "tr-1",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if result.Debit.TransferID != result.Transfer.ID || result.Credit.TransferID != result.Transfer.ID {
		t.Fatal("legs not linked to transfer group")
	}

	fromBalance, _ := accountBalances(t, st, from.ID)
	toBalance, _ := accountBalances(t, st, to.ID)
	if fromBalance != 690_000 {
		t.Fatalf("expected sender at 69.0000, got %d", fromBalance)
	}
	if toBalance != 300_000 {
		t.Fatalf("expected receiver at 30.0000, got %d", toBalance)
	}

	// Replay returns the same transfer.
	replay, err := eng.Transfer(ctx, TransferRequest{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        money.FromMajor(30, money.USD),
		Fee:           money.FromMajor(1, money.USD),
		Reference:     "tr-1",
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Transfer.ID != result.Transfer.ID {
		t.Fatalf("replay created a new transfer: %s != %s", replay.Transfer.ID, result.Transfer.ID)
	}
	fromBalance, _ = accountBalances(t, st, from.ID)
	if fromBalance != 690_000 {
		t.Fatalf("replay moved funds again: %d", fromBalance)
	}
}

func TestTransferFailureLeavesBothSidesUntouched(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	from := newFundedAccount(t, eng, "alice", 10)
	to := newFundedAccount(t, eng, "bob", 5)

	_, err := eng.Transfer(ctx, TransferRequest{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        money.FromMajor(50, money.USD),
		Reference:     "tr-fail",
	})
	if !domain.IsKind(err, domain.KindInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}

	fromBalance, _ := accountBalances(t, st, from.ID)
	toBalance, _ := accountBalances(t, st, to.ID)
	if fromBalance != 100_000 || toBalance != 50_000 {
		t.Fatalf("balances changed on failed transfer: %d / %d", fromBalance, toBalance)
	}
	if _, err := st.FindTransferByReference(ctx, "tr-fail"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("failed transfer left a record: %v", err)
	}
}

func TestConcurrentOpposingTransfers(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	a := newFundedAccount(t, eng, "alice", 100)
	b := newFundedAccount(t, eng, "bob", 100)

	// Opposing directions exercise the lock ordering; this deadlocks if
	// accounts are locked in request order instead of ID order.
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, err := eng.Transfer(ctx, TransferRequest{
				FromAccountID: a.ID,
				ToAccountID:   b.ID,
				Amount:        money.FromMajor(1, money.USD),
				Reference:     "ab-" + string(rune('a'+n)),
			})
			errs <- err
		}(i)
		go func(n int) {
			defer wg.Done()
			_, err := eng.Transfer(ctx, TransferRequest{
				FromAccountID: b.ID,
				ToAccountID:   a.ID,
				Amount:        money.FromMajor(1, money.USD),
				Reference:     "ba-" + string(rune('a'+n)),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("transfer failed: %v", err)
		}
	}

	aBalance, _ := accountBalances(t, st, a.ID)
	bBalance, _ := accountBalances(t, st, b.ID)
	if aBalance+bBalance != 2_000_000 {
		t.Fatalf("funds not conserved: %d + %d", aBalance, bBalance)
	}
}

func TestReverseRestoresBalances(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 100)

	txn, err := eng.Withdraw(ctx, WithdrawRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(40, money.USD),
		Fee:       money.FromMajor(2, money.USD),
		Reference: "wd-rev",
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	reversal, err := eng.Reverse(ctx, txn.ID, "customer dispute")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversal.Type != domain.TypeRefund || reversal.ReversalOf != txn.ID {
		t.Fatalf("unexpected reversal record: %+v", reversal)
	}

	balance, available := accountBalances(t, st, account.ID)
	if balance != 1_000_000 || available != 1_000_000 {
		t.Fatalf("expected 100.0000 restored, got %d / %d", balance, available)
	}

	original, err := st.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Status != domain.StatusReversed {
		t.Fatalf("expected reversed, got %s", original.Status)
	}

	if _, err := eng.Reverse(ctx, txn.ID, "again"); !domain.IsKind(err, domain.KindAlreadyReversed) {
		t.Fatalf("expected ALREADY_REVERSED, got %v", err)
	}
}

func TestReverseSettledDepositRestoresBalances(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 100)

	txn, err := eng.Deposit(ctx, DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(50, money.USD),
		Fee:       money.FromMajor(2, money.USD),
		Reference: "dep-rev",
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := eng.SettleDeposit(ctx, txn.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	balance, available := accountBalances(t, st, account.ID)
	if balance != 1_480_000 || available != 1_480_000 {
		t.Fatalf("expected 148.0000 settled, got %d / %d", balance, available)
	}

	reversal, err := eng.Reverse(ctx, txn.ID, "chargeback")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversal.Direction != domain.DirectionDebit || reversal.ReversalOf != txn.ID {
		t.Fatalf("unexpected reversal record: %+v", reversal)
	}
	if reversal.Net.Units != 480_000 {
		t.Fatalf("expected reversal of net 48.0000, got %s", reversal.Net)
	}

	// Both balances return to their pre-deposit values.
	balance, available = accountBalances(t, st, account.ID)
	if balance != 1_000_000 || available != 1_000_000 {
		t.Fatalf("expected 100.0000 restored, got %d / %d", balance, available)
	}

	// A pending deposit cannot be reversed.
	pending, err := eng.Deposit(ctx, DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(10, money.USD),
	})
	if err != nil {
		t.Fatalf("pending deposit: %v", err)
	}
	if _, err := eng.Reverse(ctx, pending.ID, "too early"); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE reversing a pending deposit, got %v", err)
	}
}

func TestReverseTransferRestoresBothLegs(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	from := newFundedAccount(t, eng, "alice", 100)
	to := newFundedAccount(t, eng, "bob", 0)

	result, err := eng.Transfer(ctx, TransferRequest{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        money.FromMajor(25, money.USD),
		Reference:     "tr-rev",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if _, err := eng.Reverse(ctx, result.Debit.ID, "fraud"); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	fromBalance, _ := accountBalances(t, st, from.ID)
	toBalance, _ := accountBalances(t, st, to.ID)
	if fromBalance != 1_000_000 || toBalance != 0 {
		t.Fatalf("expected balances restored, got %d / %d", fromBalance, toBalance)
	}

	legs, err := st.TransferLegs(ctx, result.Transfer.ID)
	if err != nil {
		t.Fatalf("transfer legs: %v", err)
	}
	for _, leg := range legs {
		if leg.Status != domain.StatusReversed {
			t.Fatalf("leg %s not reversed: %s", leg.ID, leg.Status)
		}
	}
}

func TestApplyFeeOnPendingDeposit(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 0)

	txn, err := eng.Deposit(ctx, DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(100, money.USD),
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	adjusted, err := eng.ApplyFee(ctx, txn.ID, money.FromMajor(3, money.USD))
	if err != nil {
		t.Fatalf("apply fee: %v", err)
	}
	if adjusted.Net.Units != 970_000 {
		t.Fatalf("expected net 97.0000, got %s", adjusted.Net)
	}

	balance, _ := accountBalances(t, st, account.ID)
	if balance != 970_000 {
		t.Fatalf("expected balance 97.0000, got %d", balance)
	}

	// Settled deposits keep their fee.
	if _, err := eng.SettleDeposit(ctx, txn.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if _, err := eng.ApplyFee(ctx, txn.ID, money.FromMajor(5, money.USD)); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}

func TestFrozenWalletRejectsMutations(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 50)

	if err := eng.SetWalletStatus(ctx, account.WalletID, domain.WalletStatusFrozen); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if _, err := eng.Deposit(ctx, DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(10, money.USD),
	}); !domain.IsKind(err, domain.KindAccountFrozen) {
		t.Fatalf("expected ACCOUNT_FROZEN on deposit, got %v", err)
	}
	if _, err := eng.Withdraw(ctx, WithdrawRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(10, money.USD),
	}); !domain.IsKind(err, domain.KindAccountFrozen) {
		t.Fatalf("expected ACCOUNT_FROZEN on withdraw, got %v", err)
	}

	// Thawed wallets resume.
	if err := eng.SetWalletStatus(ctx, account.WalletID, domain.WalletStatusActive); err != nil {
		t.Fatalf("thaw: %v", err)
	}
	if _, err := eng.Withdraw(ctx, WithdrawRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(10, money.USD),
	}); err != nil {
		t.Fatalf("withdraw after thaw: %v", err)
	}
}

func TestDepositCurrencyMismatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	account := newFundedAccount(t, eng, "user1", 0)

	_, err := eng.Deposit(ctx, DepositRequest{
		AccountID: account.ID,
		Amount:    money.FromMajor(10, money.EUR),
		Fee:       money.Zero(money.EUR),
	})
	if !domain.IsKind(err, domain.KindCurrencyMismatch) {
		t.Fatalf("expected CURRENCY_MISMATCH, got %v", err)
	}
}

func TestOneWalletPerUser(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.CreateWallet(ctx, "user1"); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := eng.CreateWallet(ctx, "user1"); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE for second wallet, got %v", err)
	}
}

func TestOneAccountPerCurrency(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	wallet, err := eng.CreateWallet(ctx, "user1")
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := eng.CreateAccount(ctx, wallet.ID, money.USD); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := eng.CreateAccount(ctx, wallet.ID, money.USD); !domain.IsKind(err, domain.KindDuplicateAccount) {
		t.Fatalf("expected DUPLICATE_ACCOUNT, got %v", err)
	}
	// A different currency is fine.
	if _, err := eng.CreateAccount(ctx, wallet.ID, money.EUR); err != nil {
		t.Fatalf("create EUR account: %v", err)
	}
}
