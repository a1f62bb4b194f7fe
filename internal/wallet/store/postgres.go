package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"walletledger/internal/common/database"
	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
)

// Postgres is the production Store backed by a pgx connection pool.
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

// CreateWallet inserts a new wallet row.
func (s *Postgres) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.Exec(ctx, query,
		wallet.ID, wallet.UserID, wallet.Status, wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Wrap(domain.KindInvalidState, err, "wallet %s already exists", wallet.ID)
		}
		return fmt.Errorf("creating wallet: %w", err)
	}
	return nil
}

// GetWallet retrieves a wallet by ID.
func (s *Postgres) GetWallet(ctx context.Context, id string) (*domain.Wallet, error) {
	query := `
		SELECT id, user_id, status, created_at, updated_at, deleted_at
		FROM wallets
		WHERE id = $1
	`
	return scanWallet(s.db.QueryRow(ctx, query, id), id)
}

// GetWalletByUser retrieves the wallet owned by a user.
func (s *Postgres) GetWalletByUser(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `
		SELECT id, user_id, status, created_at, updated_at, deleted_at
		FROM wallets
		WHERE user_id = $1 AND deleted_at IS NULL
	`
	return scanWallet(s.db.QueryRow(ctx, query, userID), userID)
}

// SetWalletStatus updates a wallet's status.
func (s *Postgres) SetWalletStatus(ctx context.Context, id string, status domain.WalletStatus) error {
	query := `
		UPDATE wallets SET status = $1, updated_at = $2 WHERE id = $3
	`
	tag, err := s.db.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating wallet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.KindNotFound, "wallet %s not found", id)
	}
	return nil
}

// CreateAccount inserts a new wallet account row.
func (s *Postgres) CreateAccount(ctx context.Context, account *domain.WalletAccount) error {
	query := `
		INSERT INTO wallet_accounts (id, wallet_id, currency, balance, available_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		account.ID, account.WalletID, account.Currency,
		account.Balance.Decimal(), account.Available.Decimal(),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Wrap(domain.KindDuplicateAccount, err,
				"account already exists for wallet %s in %s", account.WalletID, account.Currency)
		}
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Postgres) GetAccount(ctx context.Context, id string) (*domain.WalletAccount, error) {
	query := accountSelect + ` WHERE id = $1`
	return scanAccountRow(s.db.QueryRow(ctx, query, id), id)
}

// FindAccount retrieves the account for a (wallet, currency) pair.
func (s *Postgres) FindAccount(ctx context.Context, walletID string, currency money.Currency) (*domain.WalletAccount, error) {
	query := accountSelect + ` WHERE wallet_id = $1 AND currency = $2`
	return scanAccountRow(s.db.QueryRow(ctx, query, walletID, currency), walletID)
}

const accountSelect = `
	SELECT id, wallet_id, currency, balance, available_balance, created_at, updated_at, deleted_at
	FROM wallet_accounts
`

const transactionSelect = `
	SELECT id, wallet_account_id, type, direction, status, gross_amount, fee, net_amount,
		   currency, transfer_id, reversal_of, reference, processor, description, metadata,
		   created_at, updated_at, settled_at
	FROM transactions
`

// GetTransaction retrieves a transaction by ID.
func (s *Postgres) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := transactionSelect + ` WHERE id = $1`
	return scanTransaction(s.db.QueryRow(ctx, query, id))
}

// FindTransactionByReference retrieves a transaction by idempotency reference.
func (s *Postgres) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := transactionSelect + ` WHERE reference = $1`
	return scanTransaction(s.db.QueryRow(ctx, query, reference))
}

// FindTransferByReference retrieves a transfer group by reference.
func (s *Postgres) FindTransferByReference(ctx context.Context, reference string) (*domain.Transfer, error) {
	query := `SELECT id, reference, created_at FROM transfers WHERE reference = $1`
	var t domain.Transfer
	err := s.db.QueryRow(ctx, query, reference).Scan(&t.ID, &t.Reference, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "no transfer with reference %s", reference)
		}
		return nil, fmt.Errorf("scanning transfer: %w", err)
	}
	return &t, nil
}

// TransferLegs returns both legs of a transfer group.
func (s *Postgres) TransferLegs(ctx context.Context, transferID string) ([]*domain.Transaction, error) {
	query := transactionSelect + ` WHERE transfer_id = $1 ORDER BY id`
	rows, err := s.db.Query(ctx, query, transferID)
	if err != nil {
		return nil, fmt.Errorf("listing transfer legs: %w", err)
	}
	defer rows.Close()

	legs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, domain.E(domain.KindNotFound, "transfer %s not found", transferID)
	}
	return legs, nil
}

// ListTransactions returns filtered transactions, newest first, plus the
// total match count.
func (s *Postgres) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, int64, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	argIdx := 1

	add := func(clause string, value interface{}) {
		where += fmt.Sprintf(clause, argIdx)
		args = append(args, value)
		argIdx++
	}

	if filter.AccountID != "" {
		add(` AND t.wallet_account_id = $%d`, filter.AccountID)
	}
	if filter.UserID != "" {
		add(` AND t.wallet_account_id IN (
			SELECT a.id FROM wallet_accounts a
			JOIN wallets w ON w.id = a.wallet_id
			WHERE w.user_id = $%d)`, filter.UserID)
	}
	if filter.Type != "" {
		add(` AND t.type = $%d`, filter.Type)
	}
	if filter.Status != "" {
		add(` AND t.status = $%d`, filter.Status)
	}
	if filter.Currency != "" {
		add(` AND t.currency = $%d`, filter.Currency)
	}
	if filter.Processor != "" {
		add(` AND t.processor = $%d`, filter.Processor)
	}
	if filter.From != nil {
		add(` AND t.created_at >= $%d`, *filter.From)
	}
	if filter.To != nil {
		add(` AND t.created_at <= $%d`, *filter.To)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions t` + where
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting transactions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT t.id, t.wallet_account_id, t.type, t.direction, t.status, t.gross_amount,
			   t.fee, t.net_amount, t.currency, t.transfer_id, t.reversal_of, t.reference,
			   t.processor, t.description, t.metadata, t.created_at, t.updated_at, t.settled_at
		FROM transactions t` + where +
		fmt.Sprintf(` ORDER BY t.created_at DESC, t.id DESC LIMIT %d OFFSET %d`, limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	transactions, err := scanTransactions(rows)
	return transactions, total, err
}

// FeeSummary aggregates collected fees per currency and transaction type.
func (s *Postgres) FeeSummary(ctx context.Context, filter FeeFilter) ([]FeeSummaryRow, error) {
	where := ` WHERE status = 'completed' AND fee > 0`
	var args []interface{}
	argIdx := 1

	if filter.Currency != "" {
		where += fmt.Sprintf(` AND currency = $%d`, argIdx)
		args = append(args, filter.Currency)
		argIdx++
	}
	if filter.From != nil {
		where += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		where += fmt.Sprintf(` AND created_at <= $%d`, argIdx)
		args = append(args, *filter.To)
	}

	query := `
		SELECT currency, type, COUNT(*), SUM(fee)
		FROM transactions` + where + `
		GROUP BY currency, type
		ORDER BY currency, type
	`
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating fees: %w", err)
	}
	defer rows.Close()

	var out []FeeSummaryRow
	for rows.Next() {
		var row FeeSummaryRow
		var fees string
		if err := rows.Scan(&row.Currency, &row.Type, &row.Count, &fees); err != nil {
			return nil, fmt.Errorf("scanning fee summary: %w", err)
		}
		row.TotalFees, err = money.Parse(fees, row.Currency)
		if err != nil {
			return nil, fmt.Errorf("parsing fee total: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ProcessorBreakdown aggregates completed volume per payment processor.
func (s *Postgres) ProcessorBreakdown(ctx context.Context) ([]ProcessorRow, error) {
	query := `
		SELECT processor, currency, COUNT(*), SUM(gross_amount), SUM(fee)
		FROM transactions
		WHERE status = 'completed' AND processor IS NOT NULL
		GROUP BY processor, currency
		ORDER BY processor, currency
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregating processor volume: %w", err)
	}
	defer rows.Close()

	var out []ProcessorRow
	for rows.Next() {
		var row ProcessorRow
		var volume, fees string
		if err := rows.Scan(&row.Processor, &row.Currency, &row.Count, &volume, &fees); err != nil {
			return nil, fmt.Errorf("scanning processor row: %w", err)
		}
		if row.Volume, err = money.Parse(volume, row.Currency); err != nil {
			return nil, fmt.Errorf("parsing processor volume: %w", err)
		}
		if row.TotalFees, err = money.Parse(fees, row.Currency); err != nil {
			return nil, fmt.Errorf("parsing processor fees: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CreateAuthorization inserts a new authorization hold.
func (s *Postgres) CreateAuthorization(ctx context.Context, auth *domain.Authorization) error {
	query := `
		INSERT INTO authorizations (
			id, wallet_account_id, processor, processor_ref, status,
			authorized_amount, captured_amount, currency, method_token,
			platform_ref, idempotency_key, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.Exec(ctx, query,
		auth.ID, auth.AccountID, auth.Processor, nullable(auth.ProcessorRef), auth.Status,
		auth.Authorized.Decimal(), auth.Captured.Decimal(), auth.Currency, nullable(auth.MethodToken),
		nullable(auth.PlatformRef), nullable(auth.IdempotencyKey), auth.ExpiresAt,
		auth.CreatedAt, auth.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Wrap(domain.KindDuplicateIdempotencyKey, err, "idempotency key already used")
		}
		return fmt.Errorf("creating authorization: %w", err)
	}
	return nil
}

const authorizationSelect = `
	SELECT id, wallet_account_id, processor, processor_ref, status,
		   authorized_amount, captured_amount, currency, method_token,
		   platform_ref, idempotency_key, expires_at, created_at, updated_at
	FROM authorizations
`

// GetAuthorization retrieves an authorization by ID.
func (s *Postgres) GetAuthorization(ctx context.Context, id string) (*domain.Authorization, error) {
	query := authorizationSelect + ` WHERE id = $1`
	return scanAuthorization(s.db.QueryRow(ctx, query, id))
}

// FindAuthorizationByKey retrieves an authorization by idempotency key.
func (s *Postgres) FindAuthorizationByKey(ctx context.Context, key string) (*domain.Authorization, error) {
	query := authorizationSelect + ` WHERE idempotency_key = $1`
	return scanAuthorization(s.db.QueryRow(ctx, query, key))
}

// UpdateAuthorization persists a state transition. The WHERE clause on
// the expected prior status makes concurrent transitions lose cleanly
// instead of overwriting each other.
func (s *Postgres) UpdateAuthorization(ctx context.Context, auth *domain.Authorization, from domain.AuthorizationStatus) error {
	query := `
		UPDATE authorizations
		SET status = $1, captured_amount = $2, processor_ref = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	tag, err := s.db.Exec(ctx, query,
		auth.Status, auth.Captured.Decimal(), nullable(auth.ProcessorRef), auth.UpdatedAt,
		auth.ID, from,
	)
	if err != nil {
		return fmt.Errorf("updating authorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, getErr := s.GetAuthorization(ctx, auth.ID)
		if getErr != nil {
			return getErr
		}
		return domain.E(domain.KindInvalidState,
			"authorization %s is %s, expected %s", auth.ID, current.Status, from)
	}
	return nil
}

// ListExpirable returns capturable authorizations past their expiry window.
func (s *Postgres) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Authorization, error) {
	query := authorizationSelect + `
		WHERE status IN ('authorized', 'partially_captured') AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expirable authorizations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Authorization
	for rows.Next() {
		auth, err := scanAuthorizationRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, auth)
	}
	return out, rows.Err()
}

// Atomic runs fn in a database transaction with the named account rows
// locked in lexicographic ID order.
func (s *Postgres) Atomic(ctx context.Context, accountIDs []string, fn func(ctx context.Context, tx Tx) error) error {
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	err := s.db.WithTx(ctx, func(pgtx pgx.Tx) error {
		if len(ids) > 0 {
			// Locking ORDER BY id keeps overlapping units deadlock-free.
			rows, err := pgtx.Query(ctx, `
				SELECT id FROM wallet_accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE
			`, ids)
			if err != nil {
				return fmt.Errorf("locking accounts: %w", err)
			}
			locked := 0
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return fmt.Errorf("scanning locked account: %w", err)
				}
				locked++
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return fmt.Errorf("locking accounts: %w", err)
			}
			distinct := 1
			for i := 1; i < len(ids); i++ {
				if ids[i] != ids[i-1] {
					distinct++
				}
			}
			if locked != distinct {
				return domain.E(domain.KindNotFound, "one or more accounts not found")
			}
		}
		return fn(ctx, &pgTx{tx: pgtx})
	})
	if err != nil {
		if database.IsTimeout(err) {
			return domain.Wrap(domain.KindTimeout, err, "operation exceeded its time bound")
		}
		return err
	}
	return nil
}

// pgTx adapts a pgx transaction to the Tx interface.
type pgTx struct {
	tx pgx.Tx
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) Account(ctx context.Context, id string) (*domain.WalletAccount, error) {
	query := accountSelect + ` WHERE id = $1`
	return scanAccountRow(t.tx.QueryRow(ctx, query, id), id)
}

func (t *pgTx) WalletStatus(ctx context.Context, walletID string) (domain.WalletStatus, error) {
	var status domain.WalletStatus
	err := t.tx.QueryRow(ctx, `SELECT status FROM wallets WHERE id = $1`, walletID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.E(domain.KindNotFound, "wallet %s not found", walletID)
		}
		return "", fmt.Errorf("reading wallet status: %w", err)
	}
	return status, nil
}

func (t *pgTx) SaveAccount(ctx context.Context, account *domain.WalletAccount) error {
	query := `
		UPDATE wallet_accounts
		SET balance = $1, available_balance = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := t.tx.Exec(ctx, query,
		account.Balance.Decimal(), account.Available.Decimal(), account.UpdatedAt, account.ID,
	)
	if err != nil {
		if database.IsCheckViolation(err) {
			return domain.Wrap(domain.KindInsufficientFunds, err, "balance constraint violated on account %s", account.ID)
		}
		return fmt.Errorf("saving account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.KindNotFound, "account %s not found", account.ID)
	}
	return nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, wallet_account_id, type, direction, status, gross_amount, fee, net_amount,
			currency, transfer_id, reversal_of, reference, processor, description, metadata,
			created_at, updated_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := t.tx.Exec(ctx, query,
		txn.ID, txn.AccountID, txn.Type, txn.Direction, txn.Status,
		txn.Gross.Decimal(), txn.Fee.Decimal(), txn.Net.Decimal(), txn.Currency,
		nullable(txn.TransferID), nullable(txn.ReversalOf), nullable(txn.Reference),
		nullable(string(txn.Processor)), nullable(txn.Description), txn.Metadata,
		txn.CreatedAt, txn.UpdatedAt, txn.SettledAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Wrap(domain.KindDuplicateReference, err, "reference %s already used", txn.Reference)
		}
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $1, fee = $2, net_amount = $3, updated_at = $4, settled_at = $5
		WHERE id = $6
	`
	tag, err := t.tx.Exec(ctx, query,
		txn.Status, txn.Fee.Decimal(), txn.Net.Decimal(), txn.UpdatedAt, txn.SettledAt, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.KindNotFound, "transaction %s not found", txn.ID)
	}
	return nil
}

func (t *pgTx) TransactionForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	query := transactionSelect + ` WHERE id = $1 FOR UPDATE`
	return scanTransaction(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTx) InsertTransfer(ctx context.Context, transfer *domain.Transfer) error {
	query := `INSERT INTO transfers (id, reference, created_at) VALUES ($1, $2, $3)`
	_, err := t.tx.Exec(ctx, query, transfer.ID, transfer.Reference, transfer.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Wrap(domain.KindDuplicateReference, err, "transfer reference %s already used", transfer.Reference)
		}
		return fmt.Errorf("inserting transfer: %w", err)
	}
	return nil
}

// Scan helpers

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanWallet(row pgx.Row, key string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Status, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "wallet %s not found", key)
		}
		return nil, fmt.Errorf("scanning wallet: %w", err)
	}
	return &w, nil
}

func scanAccountRow(row pgx.Row, key string) (*domain.WalletAccount, error) {
	var a domain.WalletAccount
	var balance, available string
	var currency string
	err := row.Scan(&a.ID, &a.WalletID, &currency, &balance, &available,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "account %s not found", key)
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	a.Currency = money.Currency(currency)
	if a.Balance, err = money.Parse(balance, a.Currency); err != nil {
		return nil, fmt.Errorf("parsing balance: %w", err)
	}
	if a.Available, err = money.Parse(available, a.Currency); err != nil {
		return nil, fmt.Errorf("parsing available balance: %w", err)
	}
	return &a, nil
}

func scanTransactionFrom(scan func(dest ...interface{}) error) (*domain.Transaction, error) {
	var t domain.Transaction
	var gross, fee, net, currency string
	var transferID, reversalOf, reference, processor, description *string
	err := scan(
		&t.ID, &t.AccountID, &t.Type, &t.Direction, &t.Status,
		&gross, &fee, &net, &currency,
		&transferID, &reversalOf, &reference, &processor, &description, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt, &t.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	t.Currency = money.Currency(currency)
	if t.Gross, err = money.Parse(gross, t.Currency); err != nil {
		return nil, fmt.Errorf("parsing gross amount: %w", err)
	}
	if t.Fee, err = money.Parse(fee, t.Currency); err != nil {
		return nil, fmt.Errorf("parsing fee: %w", err)
	}
	if t.Net, err = money.Parse(net, t.Currency); err != nil {
		return nil, fmt.Errorf("parsing net amount: %w", err)
	}
	t.TransferID = deref(transferID)
	t.ReversalOf = deref(reversalOf)
	t.Reference = deref(reference)
	t.Processor = domain.Processor(deref(processor))
	t.Description = deref(description)
	return &t, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionFrom(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "transaction not found")
		}
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}
	return t, nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransactionFrom(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanAuthorizationFrom(scan func(dest ...interface{}) error) (*domain.Authorization, error) {
	var a domain.Authorization
	var authorized, captured, currency string
	var processorRef, methodToken, platformRef, idempotencyKey *string
	err := scan(
		&a.ID, &a.AccountID, &a.Processor, &processorRef, &a.Status,
		&authorized, &captured, &currency, &methodToken,
		&platformRef, &idempotencyKey, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Currency = money.Currency(currency)
	if a.Authorized, err = money.Parse(authorized, a.Currency); err != nil {
		return nil, fmt.Errorf("parsing authorized amount: %w", err)
	}
	if a.Captured, err = money.Parse(captured, a.Currency); err != nil {
		return nil, fmt.Errorf("parsing captured amount: %w", err)
	}
	a.ProcessorRef = deref(processorRef)
	a.MethodToken = deref(methodToken)
	a.PlatformRef = deref(platformRef)
	a.IdempotencyKey = deref(idempotencyKey)
	return &a, nil
}

func scanAuthorization(row pgx.Row) (*domain.Authorization, error) {
	a, err := scanAuthorizationFrom(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "authorization not found")
		}
		return nil, fmt.Errorf("scanning authorization: %w", err)
	}
	return a, nil
}

func scanAuthorizationRows(rows pgx.Rows) (*domain.Authorization, error) {
	a, err := scanAuthorizationFrom(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("scanning authorization: %w", err)
	}
	return a, nil
}
