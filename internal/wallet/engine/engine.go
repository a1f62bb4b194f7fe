// Package engine executes balance-changing ledger operations. Every
// mutation runs inside a store atomic unit so the balance adjustment and
// its transaction record commit together or not at all.
package engine

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"walletledger/internal/common/events"
	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
	"walletledger/internal/wallet/store"
)

// Engine provides wallet and transaction operations.
type Engine struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
}

// New creates a transaction engine.
func New(st store.Store, publisher events.Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		store:     st,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateWallet creates a wallet for a user. Each user gets at most one.
func (e *Engine) CreateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if existing, err := e.store.GetWalletByUser(ctx, userID); err == nil {
		return nil, domain.E(domain.KindInvalidState, "user %s already has wallet %s", userID, existing.ID)
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	wallet, err := domain.NewWallet(ulid.Make().String(), userID)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}

	e.logger.Info("wallet created", "wallet_id", wallet.ID, "user_id", userID)
	e.publish(ctx, events.EventWalletCreated, "wallet", wallet.ID, wallet)
	return wallet, nil
}

// CreateAccount opens a currency account under a wallet. The store
// enforces one account per (wallet, currency) pair.
func (e *Engine) CreateAccount(ctx context.Context, walletID string, currency money.Currency) (*domain.WalletAccount, error) {
	wallet, err := e.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.DeletedAt != nil {
		return nil, domain.E(domain.KindNotFound, "wallet %s not found", walletID)
	}

	account, err := domain.NewWalletAccount(ulid.Make().String(), walletID, currency)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	e.logger.Info("wallet account created",
		"account_id", account.ID,
		"wallet_id", walletID,
		"currency", currency,
	)
	e.publish(ctx, events.EventAccountCreated, "wallet_account", account.ID, account)
	return account, nil
}

// SetWalletStatus transitions a wallet between active, inactive and frozen.
func (e *Engine) SetWalletStatus(ctx context.Context, walletID string, status domain.WalletStatus) error {
	switch status {
	case domain.WalletStatusActive, domain.WalletStatusInactive, domain.WalletStatusFrozen:
	default:
		return domain.E(domain.KindInvalidState, "unknown wallet status %q", status)
	}
	if err := e.store.SetWalletStatus(ctx, walletID, status); err != nil {
		return err
	}
	e.logger.Info("wallet status changed", "wallet_id", walletID, "status", status)
	return nil
}

// DepositRequest credits funds into an account. The deposit lands
// pending: the ledger balance grows by the net amount immediately, the
// available balance only once the deposit settles.
type DepositRequest struct {
	AccountID   string
	Amount      money.Money
	Fee         money.Money
	Reference   string
	Processor   domain.Processor
	Description string
	Metadata    map[string]string
}

// Deposit records an incoming credit. Retries with the same reference
// and parameters replay the original transaction.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.E(domain.KindInvalidAmount, "deposit amount must be positive")
	}
	fee := normalizeFee(req.Fee, req.Amount.Currency)
	if existing, err := e.replayByReference(ctx, req.Reference, req.AccountID, domain.TypeDeposit, req.Amount); existing != nil || err != nil {
		return existing, err
	}

	txn, err := domain.NewTransaction(ulid.Make().String(), req.AccountID, domain.TypeDeposit, domain.DirectionCredit, req.Amount, fee)
	if err != nil {
		return nil, err
	}
	txn.Reference = req.Reference
	txn.Processor = req.Processor
	txn.Description = req.Description
	txn.Metadata = req.Metadata

	var account *domain.WalletAccount
	err = e.store.Atomic(ctx, []string{req.AccountID}, func(ctx context.Context, tx store.Tx) error {
		var err error
		account, err = e.mutableAccount(ctx, tx, req.AccountID, req.Amount.Currency)
		if err != nil {
			return err
		}
		// Pending funds raise the ledger balance, not the spendable one.
		if err := account.Apply(txn.Net, money.Zero(account.Currency)); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		if domain.IsKind(err, domain.KindDuplicateReference) {
			// Lost a race with a concurrent retry; replay its result.
			if existing, rErr := e.replayByReference(ctx, req.Reference, req.AccountID, domain.TypeDeposit, req.Amount); existing != nil {
				return existing, rErr
			}
		}
		return nil, err
	}

	e.logger.Info("deposit recorded",
		"transaction_id", txn.ID,
		"account_id", req.AccountID,
		"gross", txn.Gross,
		"fee", txn.Fee,
	)
	e.publishBalanceChange(ctx, events.EventWalletCredited, txn, account)
	return txn, nil
}

// SettleDeposit completes a pending deposit, releasing its net amount
// into the available balance.
func (e *Engine) SettleDeposit(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var txn *domain.Transaction
	var account *domain.WalletAccount

	getAcct, err := e.accountForTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	err = e.store.Atomic(ctx, []string{getAcct}, func(ctx context.Context, tx store.Tx) error {
		var err error
		txn, err = tx.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Type != domain.TypeDeposit {
			return domain.E(domain.KindInvalidState, "transaction %s is a %s, only deposits settle", txn.ID, txn.Type)
		}
		if err := txn.Complete(); err != nil {
			return err
		}
		account, err = tx.Account(ctx, txn.AccountID)
		if err != nil {
			return err
		}
		if err := account.Apply(money.Zero(account.Currency), txn.Net); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return tx.UpdateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("deposit settled", "transaction_id", txn.ID, "account_id", txn.AccountID)
	e.publishBalanceChange(ctx, events.EventDepositSettled, txn, account)
	return txn, nil
}

// WithdrawRequest debits funds out of an account. The fee is charged on
// top: amount + fee leaves the wallet, the counterparty receives amount.
type WithdrawRequest struct {
	AccountID   string
	Amount      money.Money
	Fee         money.Money
	Reference   string
	Processor   domain.Processor
	Description string
	Metadata    map[string]string
}

// Withdraw debits the available balance and completes immediately.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error) {
	return e.debit(ctx, domain.TypeWithdrawal, req.AccountID, req.Amount, req.Fee, req.Reference, req.Processor, req.Description, req.Metadata)
}

// PayRequest spends funds from an account toward a merchant or platform.
type PayRequest struct {
	AccountID   string
	Amount      money.Money
	Fee         money.Money
	Reference   string
	Processor   domain.Processor
	Description string
	Metadata    map[string]string
}

// Pay debits the account for a payment and completes immediately.
func (e *Engine) Pay(ctx context.Context, req PayRequest) (*domain.Transaction, error) {
	return e.debit(ctx, domain.TypePayment, req.AccountID, req.Amount, req.Fee, req.Reference, req.Processor, req.Description, req.Metadata)
}

func (e *Engine) debit(ctx context.Context, txType domain.TransactionType, accountID string, amount, fee money.Money, reference string, processor domain.Processor, description string, metadata map[string]string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.E(domain.KindInvalidAmount, "%s amount must be positive", txType)
	}
	fee = normalizeFee(fee, amount.Currency)
	gross, err := amount.Add(fee)
	if err != nil {
		return nil, domain.Wrap(domain.KindCurrencyMismatch, err, "fee currency")
	}
	if existing, err := e.replayByReference(ctx, reference, accountID, txType, gross); existing != nil || err != nil {
		return existing, err
	}

	txn, err := domain.NewTransaction(ulid.Make().String(), accountID, txType, domain.DirectionDebit, gross, fee)
	if err != nil {
		return nil, err
	}
	txn.Reference = reference
	txn.Processor = processor
	txn.Description = description
	txn.Metadata = metadata
	if err := txn.Complete(); err != nil {
		return nil, err
	}

	var account *domain.WalletAccount
	err = e.store.Atomic(ctx, []string{accountID}, func(ctx context.Context, tx store.Tx) error {
		var err error
		account, err = e.mutableAccount(ctx, tx, accountID, amount.Currency)
		if err != nil {
			return err
		}
		if gross.GreaterThan(account.Available) {
			return domain.E(domain.KindInsufficientFunds,
				"account %s has %s available, %s required", accountID, account.Available, gross)
		}
		if err := account.Apply(gross.Negate(), gross.Negate()); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		if domain.IsKind(err, domain.KindDuplicateReference) {
			if existing, rErr := e.replayByReference(ctx, reference, accountID, txType, gross); existing != nil {
				return existing, rErr
			}
		}
		return nil, err
	}

	e.logger.Info("debit recorded",
		"transaction_id", txn.ID,
		"type", txType,
		"account_id", accountID,
		"gross", txn.Gross,
	)
	e.publishBalanceChange(ctx, events.EventWalletDebited, txn, account)
	return txn, nil
}

// TransferRequest moves funds between two accounts in one atomic unit.
// The fee is charged to the sender on top of the transferred amount.
type TransferRequest struct {
	FromAccountID string
	ToAccountID   string
	Amount        money.Money
	Fee           money.Money
	Reference     string
	Description   string
}

// TransferResult carries the transfer group and both legs.
type TransferResult struct {
	Transfer *domain.Transfer    `json:"transfer"`
	Debit    *domain.Transaction `json:"debit"`
	Credit   *domain.Transaction `json:"credit"`
}

// Transfer moves funds wallet-to-wallet. Both legs commit together; a
// failure on either side leaves both accounts untouched.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.E(domain.KindInvalidAmount, "transfer amount must be positive")
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, domain.E(domain.KindInvalidState, "cannot transfer an account to itself")
	}
	if req.Reference == "" {
		return nil, domain.E(domain.KindInvalidState, "reference is required")
	}

	if existing, err := e.store.FindTransferByReference(ctx, req.Reference); err == nil {
		return e.replayTransfer(ctx, existing, req)
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	fee := normalizeFee(req.Fee, req.Amount.Currency)
	debitGross, err := req.Amount.Add(fee)
	if err != nil {
		return nil, domain.Wrap(domain.KindCurrencyMismatch, err, "fee currency")
	}

	transfer, err := domain.NewTransfer(ulid.Make().String(), req.Reference)
	if err != nil {
		return nil, err
	}

	debit, err := domain.NewTransaction(ulid.Make().String(), req.FromAccountID, domain.TypeTransfer, domain.DirectionDebit, debitGross, fee)
	if err != nil {
		return nil, err
	}
	credit, err := domain.NewTransaction(ulid.Make().String(), req.ToAccountID, domain.TypeTransfer, domain.DirectionCredit, req.Amount, money.Zero(req.Amount.Currency))
	if err != nil {
		return nil, err
	}
	debit.TransferID = transfer.ID
	credit.TransferID = transfer.ID
	debit.Description = req.Description
	credit.Description = req.Description
	if err := debit.Complete(); err != nil {
		return nil, err
	}
	if err := credit.Complete(); err != nil {
		return nil, err
	}

	err = e.store.Atomic(ctx, []string{req.FromAccountID, req.ToAccountID}, func(ctx context.Context, tx store.Tx) error {
		from, err := e.mutableAccount(ctx, tx, req.FromAccountID, req.Amount.Currency)
		if err != nil {
			return err
		}
		to, err := e.mutableAccount(ctx, tx, req.ToAccountID, req.Amount.Currency)
		if err != nil {
			return err
		}
		if debitGross.GreaterThan(from.Available) {
			return domain.E(domain.KindInsufficientFunds,
				"account %s has %s available, %s required", from.ID, from.Available, debitGross)
		}
		if err := from.Apply(debitGross.Negate(), debitGross.Negate()); err != nil {
			return err
		}
		if err := to.Apply(req.Amount, req.Amount); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, from); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, to); err != nil {
			return err
		}
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, debit); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, credit)
	})
	if err != nil {
		if domain.IsKind(err, domain.KindDuplicateReference) {
			if existing, fErr := e.store.FindTransferByReference(ctx, req.Reference); fErr == nil {
				return e.replayTransfer(ctx, existing, req)
			}
		}
		return nil, err
	}

	e.logger.Info("transfer completed",
		"transfer_id", transfer.ID,
		"from", req.FromAccountID,
		"to", req.ToAccountID,
		"amount", req.Amount,
	)
	e.publishTransfer(ctx, transfer, debit, credit)
	return &TransferResult{Transfer: transfer, Debit: debit, Credit: credit}, nil
}

// Reverse undoes a completed transaction by writing a compensating
// refund and restoring the balances it moved. Transfer legs reverse as a
// pair.
func (e *Engine) Reverse(ctx context.Context, transactionID, reason string) (*domain.Transaction, error) {
	original, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if original.TransferID != "" {
		return e.reverseTransfer(ctx, original, reason)
	}

	var reversal *domain.Transaction
	var account *domain.WalletAccount
	err = e.store.Atomic(ctx, []string{original.AccountID}, func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := locked.MarkReversed(); err != nil {
			return err
		}

		reversal, err = compensating(locked, reason)
		if err != nil {
			return err
		}

		account, err = tx.Account(ctx, locked.AccountID)
		if err != nil {
			return err
		}
		balanceDelta, availableDelta := appliedDeltas(locked)
		if err := account.Apply(balanceDelta.Negate(), availableDelta.Negate()); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, locked); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, reversal)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("transaction reversed",
		"transaction_id", transactionID,
		"reversal_id", reversal.ID,
	)
	e.publishReversal(ctx, transactionID, reversal)
	return reversal, nil
}

func (e *Engine) reverseTransfer(ctx context.Context, leg *domain.Transaction, reason string) (*domain.Transaction, error) {
	legs, err := e.store.TransferLegs(ctx, leg.TransferID)
	if err != nil {
		return nil, err
	}

	accountIDs := make([]string, 0, len(legs))
	for _, l := range legs {
		accountIDs = append(accountIDs, l.AccountID)
	}

	var requested *domain.Transaction
	err = e.store.Atomic(ctx, accountIDs, func(ctx context.Context, tx store.Tx) error {
		for _, l := range legs {
			locked, err := tx.TransactionForUpdate(ctx, l.ID)
			if err != nil {
				return err
			}
			if err := locked.MarkReversed(); err != nil {
				return err
			}

			reversal, err := compensating(locked, reason)
			if err != nil {
				return err
			}

			account, err := tx.Account(ctx, locked.AccountID)
			if err != nil {
				return err
			}
			balanceDelta, availableDelta := appliedDeltas(locked)
			if err := account.Apply(balanceDelta.Negate(), availableDelta.Negate()); err != nil {
				return err
			}
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
			if err := tx.UpdateTransaction(ctx, locked); err != nil {
				return err
			}
			if err := tx.InsertTransaction(ctx, reversal); err != nil {
				return err
			}
			if locked.ID == leg.ID {
				requested = reversal
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("transfer reversed", "transfer_id", leg.TransferID)
	e.publishReversal(ctx, leg.ID, requested)
	return requested, nil
}

// ApplyFee adjusts the fee split of a pending deposit, keeping the gross
// amount fixed. The ledger balance shifts by the change in net.
func (e *Engine) ApplyFee(ctx context.Context, transactionID string, fee money.Money) (*domain.Transaction, error) {
	accountID, err := e.accountForTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	var txn *domain.Transaction
	var account *domain.WalletAccount
	err = e.store.Atomic(ctx, []string{accountID}, func(ctx context.Context, tx store.Tx) error {
		var err error
		txn, err = tx.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		oldNet := txn.Net
		if err := txn.Resplit(fee); err != nil {
			return err
		}
		delta, err := txn.Net.Sub(oldNet)
		if err != nil {
			return domain.Wrap(domain.KindCurrencyMismatch, err, "fee adjustment")
		}

		account, err = tx.Account(ctx, txn.AccountID)
		if err != nil {
			return err
		}
		// Pending deposits carried old net in the ledger balance only.
		if err := account.Apply(delta, money.Zero(account.Currency)); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		return tx.UpdateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("fee adjusted",
		"transaction_id", transactionID,
		"fee", txn.Fee,
		"net", txn.Net,
	)
	e.publish(ctx, events.EventFeeAdjusted, "transaction", txn.ID, txn)
	return txn, nil
}

// Helpers

// normalizeFee lets callers omit the fee entirely; a zero value takes
// the amount's currency.
func normalizeFee(fee money.Money, currency money.Currency) money.Money {
	if fee.Currency == "" && fee.IsZero() {
		return money.Zero(currency)
	}
	return fee
}

// mutableAccount loads a locked account and verifies its wallet accepts
// balance mutations and the currency matches.
func (e *Engine) mutableAccount(ctx context.Context, tx store.Tx, accountID string, currency money.Currency) (*domain.WalletAccount, error) {
	account, err := tx.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.DeletedAt != nil {
		return nil, domain.E(domain.KindNotFound, "account %s not found", accountID)
	}
	if account.Currency != currency {
		return nil, domain.E(domain.KindCurrencyMismatch,
			"account %s holds %s, amount is %s", accountID, account.Currency, currency)
	}
	status, err := tx.WalletStatus(ctx, account.WalletID)
	if err != nil {
		return nil, err
	}
	switch status {
	case domain.WalletStatusActive:
		return account, nil
	case domain.WalletStatusFrozen:
		return nil, domain.E(domain.KindAccountFrozen, "wallet %s is frozen", account.WalletID)
	default:
		return nil, domain.E(domain.KindInvalidState, "wallet %s is %s", account.WalletID, status)
	}
}

// replayByReference checks for a prior transaction with the same
// reference. An exact duplicate replays the original result; a
// conflicting payload is rejected.
func (e *Engine) replayByReference(ctx context.Context, reference, accountID string, txType domain.TransactionType, gross money.Money) (*domain.Transaction, error) {
	if reference == "" {
		return nil, nil
	}
	existing, err := e.store.FindTransactionByReference(ctx, reference)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.AccountID == accountID && existing.Type == txType && existing.Gross.Equal(gross) {
		return existing, nil
	}
	return nil, domain.E(domain.KindDuplicateReference,
		"reference %s was used with different parameters", reference)
}

func (e *Engine) replayTransfer(ctx context.Context, transfer *domain.Transfer, req TransferRequest) (*TransferResult, error) {
	legs, err := e.store.TransferLegs(ctx, transfer.ID)
	if err != nil {
		return nil, err
	}
	result := &TransferResult{Transfer: transfer}
	for _, l := range legs {
		if l.Direction == domain.DirectionDebit {
			result.Debit = l
		} else {
			result.Credit = l
		}
	}
	if result.Debit == nil || result.Credit == nil {
		return nil, domain.E(domain.KindInvalidState, "transfer %s is missing a leg", transfer.ID)
	}
	if result.Debit.AccountID != req.FromAccountID ||
		result.Credit.AccountID != req.ToAccountID ||
		!result.Credit.Gross.Equal(req.Amount) {
		return nil, domain.E(domain.KindDuplicateReference,
			"reference %s was used with different parameters", req.Reference)
	}
	return result, nil
}

func (e *Engine) accountForTransaction(ctx context.Context, transactionID string) (string, error) {
	txn, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return "", err
	}
	return txn.AccountID, nil
}

// compensating builds the refund record that undoes a transaction.
func compensating(original *domain.Transaction, reason string) (*domain.Transaction, error) {
	direction := domain.DirectionCredit
	if original.Direction == domain.DirectionCredit {
		direction = domain.DirectionDebit
	}
	balanceDelta, _ := appliedDeltas(original)
	amount := balanceDelta
	if amount.IsNegative() {
		amount = amount.Negate()
	}
	reversal, err := domain.NewTransaction(ulid.Make().String(), original.AccountID, domain.TypeRefund, direction, amount, money.Zero(original.Currency))
	if err != nil {
		return nil, err
	}
	reversal.ReversalOf = original.ID
	reversal.Description = reason
	if err := reversal.Complete(); err != nil {
		return nil, err
	}
	return reversal, nil
}

// appliedDeltas returns the balance and available deltas a completed
// transaction applied when it was recorded.
func appliedDeltas(t *domain.Transaction) (balance, available money.Money) {
	if t.Direction == domain.DirectionCredit {
		// Credits move the net amount; availability depends on settlement.
		if t.SettledAt != nil || t.Status == domain.StatusReversed {
			return t.Net, t.Net
		}
		return t.Net, money.Zero(t.Currency)
	}
	return t.Gross.Negate(), t.Gross.Negate()
}

// Event publishing. Publish failures are logged and swallowed: the
// ledger committed, the bus catches up.

func (e *Engine) publish(ctx context.Context, eventType, aggregateType, aggregateID string, data interface{}) {
	if e.publisher == nil {
		return
	}
	event, err := events.NewEvent(eventType, aggregateType, aggregateID, data)
	if err != nil {
		e.logger.Error("building event", "type", eventType, "error", err)
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("publishing event", "type", eventType, "error", err)
	}
}

func (e *Engine) publishBalanceChange(ctx context.Context, eventType string, txn *domain.Transaction, account *domain.WalletAccount) {
	e.publish(ctx, eventType, "transaction", txn.ID, events.BalanceChangeData{
		TransactionID: txn.ID,
		AccountID:     txn.AccountID,
		Type:          string(txn.Type),
		Gross:         txn.Gross.Decimal(),
		Fee:           txn.Fee.Decimal(),
		Net:           txn.Net.Decimal(),
		Currency:      string(txn.Currency),
		Reference:     txn.Reference,
		Balance:       account.Balance.Decimal(),
		Available:     account.Available.Decimal(),
	})
}

func (e *Engine) publishTransfer(ctx context.Context, transfer *domain.Transfer, debit, credit *domain.Transaction) {
	e.publish(ctx, events.EventTransferCompleted, "transfer", transfer.ID, events.TransferCompletedData{
		TransferID:    transfer.ID,
		FromAccountID: debit.AccountID,
		ToAccountID:   credit.AccountID,
		Amount:        credit.Gross.Decimal(),
		Currency:      string(credit.Currency),
		Reference:     transfer.Reference,
	})
}

func (e *Engine) publishReversal(ctx context.Context, originalID string, reversal *domain.Transaction) {
	e.publish(ctx, events.EventTransactionReversed, "transaction", originalID, events.TransactionReversedData{
		TransactionID: originalID,
		ReversalID:    reversal.ID,
		AccountID:     reversal.AccountID,
		Amount:        reversal.Gross.Decimal(),
		Currency:      string(reversal.Currency),
	})
}
