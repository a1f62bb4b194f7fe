package store

import (
	"context"
	"testing"
	"time"

	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
)

func seedAccount(t *testing.T, st *Memory, walletID, accountID string, major int64) {
	t.Helper()
	ctx := context.Background()

	wallet, err := domain.NewWallet(walletID, "user-"+walletID)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	if err := st.CreateWallet(ctx, wallet); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	account, err := domain.NewWalletAccount(accountID, walletID, money.USD)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	account.Balance = money.FromMajor(major, money.USD)
	account.Available = money.FromMajor(major, money.USD)
	if err := st.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
}

func TestAtomicRollsBackOnError(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	seedAccount(t, st, "w1", "acct1", 100)

	err := st.Atomic(ctx, []string{"acct1"}, func(ctx context.Context, tx Tx) error {
		account, err := tx.Account(ctx, "acct1")
		if err != nil {
			return err
		}
		if err := account.Apply(money.FromMajor(-50, money.USD), money.FromMajor(-50, money.USD)); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return domain.E(domain.KindInvalidState, "forced failure")
	})
	if !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected forced failure, got %v", err)
	}

	account, err := st.GetAccount(ctx, "acct1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Units != 1_000_000 {
		t.Fatalf("balance changed after rollback: %s", account.Balance)
	}
}

func TestAtomicCommitsTogether(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	seedAccount(t, st, "w1", "acct1", 100)

	txn, err := domain.NewTransaction("tx1", "acct1", domain.TypeWithdrawal, domain.DirectionDebit, money.FromMajor(30, money.USD), money.Zero(money.USD))
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}

	err = st.Atomic(ctx, []string{"acct1"}, func(ctx context.Context, tx Tx) error {
		account, err := tx.Account(ctx, "acct1")
		if err != nil {
			return err
		}
		if err := account.Apply(money.FromMajor(-30, money.USD), money.FromMajor(-30, money.USD)); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}

	account, _ := st.GetAccount(ctx, "acct1")
	if account.Balance.Units != 700_000 {
		t.Fatalf("expected 70.0000, got %s", account.Balance)
	}
	if _, err := st.GetTransaction(ctx, "tx1"); err != nil {
		t.Fatalf("transaction not committed: %v", err)
	}
}

func TestDuplicateReferenceRejected(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	seedAccount(t, st, "w1", "acct1", 100)

	insert := func(id string) error {
		txn, err := domain.NewTransaction(id, "acct1", domain.TypeDeposit, domain.DirectionCredit, money.FromMajor(10, money.USD), money.Zero(money.USD))
		if err != nil {
			return err
		}
		txn.Reference = "ref-1"
		return st.Atomic(ctx, []string{"acct1"}, func(ctx context.Context, tx Tx) error {
			return tx.InsertTransaction(ctx, txn)
		})
	}

	if err := insert("tx1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert("tx2"); !domain.IsKind(err, domain.KindDuplicateReference) {
		t.Fatalf("expected DUPLICATE_REFERENCE, got %v", err)
	}
}

func TestCancelledContextSurfacesTimeout(t *testing.T) {
	st := NewMemory()
	seedAccount(t, st, "w1", "acct1", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := st.Atomic(ctx, []string{"acct1"}, func(ctx context.Context, tx Tx) error {
		return nil
	})
	if !domain.IsKind(err, domain.KindTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	seedAccount(t, st, "w1", "acct1", 0)
	seedAccount(t, st, "w2", "acct2", 0)

	mk := func(id, accountID string, txType domain.TransactionType, processor domain.Processor) {
		txn, err := domain.NewTransaction(id, accountID, txType, domain.DirectionCredit, money.FromMajor(10, money.USD), money.FromMajor(1, money.USD))
		if err != nil {
			t.Fatalf("new transaction: %v", err)
		}
		txn.Processor = processor
		if err := txn.Complete(); err != nil {
			t.Fatalf("complete: %v", err)
		}
		err = st.Atomic(ctx, []string{accountID}, func(ctx context.Context, tx Tx) error {
			return tx.InsertTransaction(ctx, txn)
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	mk("tx1", "acct1", domain.TypeDeposit, domain.ProcessorStripe)
	mk("tx2", "acct1", domain.TypePayment, domain.ProcessorAdyen)
	mk("tx3", "acct2", domain.TypeDeposit, domain.ProcessorStripe)

	got, total, err := st.ListTransactions(ctx, TransactionFilter{AccountID: "acct1"})
	if err != nil {
		t.Fatalf("list by account: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("expected 2 for acct1, got %d", total)
	}

	got, total, err = st.ListTransactions(ctx, TransactionFilter{Processor: domain.ProcessorStripe})
	if err != nil {
		t.Fatalf("list by processor: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 stripe transactions, got %d", total)
	}

	got, total, err = st.ListTransactions(ctx, TransactionFilter{UserID: "user-w2"})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if total != 1 || got[0].ID != "tx3" {
		t.Fatalf("expected tx3 for user-w2, got %v", got)
	}

	// Pagination.
	got, total, err = st.ListTransactions(ctx, TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list paginated: %v", err)
	}
	if total != 3 || len(got) != 2 {
		t.Fatalf("expected total 3 page 2, got %d / %d", total, len(got))
	}
}

func TestFeeSummaryAggregates(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	seedAccount(t, st, "w1", "acct1", 0)

	mk := func(id string, txType domain.TransactionType, feeMajor int64, complete bool) {
		txn, err := domain.NewTransaction(id, "acct1", txType, domain.DirectionCredit, money.FromMajor(100, money.USD), money.FromMajor(feeMajor, money.USD))
		if err != nil {
			t.Fatalf("new transaction: %v", err)
		}
		if complete {
			if err := txn.Complete(); err != nil {
				t.Fatalf("complete: %v", err)
			}
		}
		err = st.Atomic(ctx, []string{"acct1"}, func(ctx context.Context, tx Tx) error {
			return tx.InsertTransaction(ctx, txn)
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	mk("tx1", domain.TypeDeposit, 2, true)
	mk("tx2", domain.TypeDeposit, 3, true)
	mk("tx3", domain.TypeWithdrawal, 1, true)
	mk("tx4", domain.TypeDeposit, 5, false) // pending fees do not count
	mk("tx5", domain.TypeDeposit, 0, true)  // no fee

	rows, err := st.FeeSummary(ctx, FeeFilter{})
	if err != nil {
		t.Fatalf("fee summary: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	for _, row := range rows {
		switch row.Type {
		case domain.TypeDeposit:
			if row.Count != 2 || row.TotalFees.Units != 50_000 {
				t.Fatalf("deposit row wrong: %+v", row)
			}
		case domain.TypeWithdrawal:
			if row.Count != 1 || row.TotalFees.Units != 10_000 {
				t.Fatalf("withdrawal row wrong: %+v", row)
			}
		default:
			t.Fatalf("unexpected row type %s", row.Type)
		}
	}
}

func TestUpdateAuthorizationStateGuard(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	seedAccount(t, st, "w1", "acct1", 0)

	auth, err := domain.NewAuthorization("auth1", "acct1", domain.ProcessorStripe, money.FromMajor(50, money.USD), time.Hour)
	if err != nil {
		t.Fatalf("new authorization: %v", err)
	}
	if err := st.CreateAuthorization(ctx, auth); err != nil {
		t.Fatalf("create authorization: %v", err)
	}

	// A transition guarded on the wrong prior state is rejected.
	stale := *auth
	stale.Status = domain.AuthStatusReleased
	if err := st.UpdateAuthorization(ctx, &stale, domain.AuthStatusPartiallyCaptured); !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}

	// The correct guard passes.
	if err := st.UpdateAuthorization(ctx, &stale, domain.AuthStatusAuthorized); err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	got, err := st.GetAuthorization(ctx, "auth1")
	if err != nil {
		t.Fatalf("get authorization: %v", err)
	}
	if got.Status != domain.AuthStatusReleased {
		t.Fatalf("expected released, got %s", got.Status)
	}
}
