package query

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
	"walletledger/internal/wallet/store"
)

func newTestFacade(t *testing.T) (*Facade, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, logger), st
}

func seedAccount(t *testing.T, st *store.Memory, walletID, userID, accountID string, currency money.Currency, balance, available int64) {
	t.Helper()
	ctx := context.Background()

	if _, err := st.GetWallet(ctx, walletID); err != nil {
		wallet, err := domain.NewWallet(walletID, userID)
		if err != nil {
			t.Fatalf("new wallet: %v", err)
		}
		if err := st.CreateWallet(ctx, wallet); err != nil {
			t.Fatalf("create wallet: %v", err)
		}
	}
	account, err := domain.NewWalletAccount(accountID, walletID, currency)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	account.Balance = money.Money{Units: balance, Currency: currency}
	account.Available = money.Money{Units: available, Currency: currency}
	if err := st.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
}

func insertTransaction(t *testing.T, st *store.Memory, id, accountID string, txType domain.TransactionType, amountMajor, feeMajor int64, processor domain.Processor) {
	t.Helper()
	txn, err := domain.NewTransaction(id, accountID, txType, domain.DirectionCredit, money.FromMajor(amountMajor, money.USD), money.FromMajor(feeMajor, money.USD))
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	txn.Processor = processor
	if err := txn.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	err = st.Atomic(context.Background(), []string{accountID}, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
}

func TestGetBalanceComputesPending(t *testing.T) {
	f, st := newTestFacade(t)
	seedAccount(t, st, "w1", "user1", "acct1", money.USD, 1_000_000, 600_000)

	balance, err := f.GetBalance(context.Background(), "acct1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Balance.Units != 1_000_000 {
		t.Fatalf("balance: %s", balance.Balance)
	}
	if balance.Available.Units != 600_000 {
		t.Fatalf("available: %s", balance.Available)
	}
	if balance.Pending.Units != 400_000 {
		t.Fatalf("pending should be balance minus available, got %s", balance.Pending)
	}
}

func TestGetBalanceByCurrency(t *testing.T) {
	f, st := newTestFacade(t)
	seedAccount(t, st, "w1", "user1", "acct-usd", money.USD, 500_000, 500_000)
	seedAccount(t, st, "w1", "user1", "acct-eur", money.EUR, 300_000, 300_000)
	ctx := context.Background()

	balance, err := f.GetBalanceByCurrency(ctx, "user1", money.EUR)
	if err != nil {
		t.Fatalf("get balance by currency: %v", err)
	}
	if balance.AccountID != "acct-eur" || balance.Balance.Units != 300_000 {
		t.Fatalf("wrong account resolved: %+v", balance)
	}

	if _, err := f.GetBalanceByCurrency(ctx, "user1", money.GBP); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NOT_FOUND for unopened currency, got %v", err)
	}
	if _, err := f.GetBalanceByCurrency(ctx, "nobody", money.USD); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown user, got %v", err)
	}
}

func TestListTransactionsClampsLimit(t *testing.T) {
	f, st := newTestFacade(t)
	seedAccount(t, st, "w1", "user1", "acct1", money.USD, 0, 0)
	for i := 0; i < 3; i++ {
		insertTransaction(t, st, "tx"+string(rune('a'+i)), "acct1", domain.TypeDeposit, 10, 0, "")
	}

	got, total, err := f.ListTransactions(context.Background(), store.TransactionFilter{AccountID: "acct1", Limit: 2000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(got) != 3 {
		t.Fatalf("expected 3 transactions, got %d / %d", total, len(got))
	}
}

func TestFeeSummaryAndProcessorBreakdown(t *testing.T) {
	f, st := newTestFacade(t)
	seedAccount(t, st, "w1", "user1", "acct1", money.USD, 0, 0)

	insertTransaction(t, st, "tx1", "acct1", domain.TypeDeposit, 100, 2, domain.ProcessorStripe)
	insertTransaction(t, st, "tx2", "acct1", domain.TypeDeposit, 50, 1, domain.ProcessorStripe)
	insertTransaction(t, st, "tx3", "acct1", domain.TypePayment, 80, 4, domain.ProcessorAdyen)

	rows, err := f.FeeSummary(context.Background(), store.FeeFilter{})
	if err != nil {
		t.Fatalf("fee summary: %v", err)
	}
	var depositFees, paymentFees int64
	for _, row := range rows {
		switch row.Type {
		case domain.TypeDeposit:
			depositFees = row.TotalFees.Units
		case domain.TypePayment:
			paymentFees = row.TotalFees.Units
		}
	}
	if depositFees != 30_000 || paymentFees != 40_000 {
		t.Fatalf("fee totals wrong: deposit=%d payment=%d", depositFees, paymentFees)
	}

	breakdown, err := f.ProcessorBreakdown(context.Background())
	if err != nil {
		t.Fatalf("processor breakdown: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("expected 2 processors, got %d", len(breakdown))
	}
	for _, row := range breakdown {
		switch row.Processor {
		case domain.ProcessorStripe:
			if row.Count != 2 || row.Volume.Units != 1_500_000 {
				t.Fatalf("stripe row wrong: %+v", row)
			}
		case domain.ProcessorAdyen:
			if row.Count != 1 || row.Volume.Units != 800_000 {
				t.Fatalf("adyen row wrong: %+v", row)
			}
		default:
			t.Fatalf("unexpected processor %s", row.Processor)
		}
	}
}
