package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"walletledger/internal/common/money"
	"walletledger/internal/wallet/domain"
)

// Memory is a concurrency-safe in-memory Store used by unit tests and
// local development. It honors the same locking order and atomicity
// guarantees as the Postgres implementation.
type Memory struct {
	mu sync.RWMutex

	wallets        map[string]*domain.Wallet
	accounts       map[string]*domain.WalletAccount
	accountByPair  map[string]string // walletID + "/" + currency -> accountID
	transactions   map[string]*domain.Transaction
	txByReference  map[string]string
	transfers      map[string]*domain.Transfer
	trByReference  map[string]string
	authorizations map[string]*domain.Authorization
	authByKey      map[string]string

	lockMu       sync.Mutex
	accountLocks map[string]*sync.Mutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		wallets:        make(map[string]*domain.Wallet),
		accounts:       make(map[string]*domain.WalletAccount),
		accountByPair:  make(map[string]string),
		transactions:   make(map[string]*domain.Transaction),
		txByReference:  make(map[string]string),
		transfers:      make(map[string]*domain.Transfer),
		trByReference:  make(map[string]string),
		authorizations: make(map[string]*domain.Authorization),
		authByKey:      make(map[string]string),
		accountLocks:   make(map[string]*sync.Mutex),
	}
}

var _ Store = (*Memory)(nil)

func pairKey(walletID string, currency money.Currency) string {
	return walletID + "/" + string(currency)
}

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	return &c
}

func cloneAccount(a *domain.WalletAccount) *domain.WalletAccount {
	c := *a
	return &c
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneTransfer(t *domain.Transfer) *domain.Transfer {
	c := *t
	return &c
}

func cloneAuthorization(a *domain.Authorization) *domain.Authorization {
	c := *a
	return &c
}

// CreateWallet stores a new wallet.
func (m *Memory) CreateWallet(_ context.Context, wallet *domain.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.wallets[wallet.ID]; exists {
		return domain.E(domain.KindInvalidState, "wallet %s already exists", wallet.ID)
	}
	m.wallets[wallet.ID] = cloneWallet(wallet)
	return nil
}

// GetWallet retrieves a wallet by ID.
func (m *Memory) GetWallet(_ context.Context, id string) (*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "wallet %s not found", id)
	}
	return cloneWallet(w), nil
}

// GetWalletByUser retrieves the wallet owned by a user.
func (m *Memory) GetWalletByUser(_ context.Context, userID string) (*domain.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.wallets {
		if w.UserID == userID && w.DeletedAt == nil {
			return cloneWallet(w), nil
		}
	}
	return nil, domain.E(domain.KindNotFound, "no wallet for user %s", userID)
}

// SetWalletStatus updates a wallet's status.
func (m *Memory) SetWalletStatus(_ context.Context, id string, status domain.WalletStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return domain.E(domain.KindNotFound, "wallet %s not found", id)
	}
	w.Status = status
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateAccount stores a new wallet account, enforcing one account per
// (wallet, currency) pair.
func (m *Memory) CreateAccount(_ context.Context, account *domain.WalletAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[account.WalletID]; !ok {
		return domain.E(domain.KindNotFound, "wallet %s not found", account.WalletID)
	}
	key := pairKey(account.WalletID, account.Currency)
	if _, exists := m.accountByPair[key]; exists {
		return domain.E(domain.KindDuplicateAccount, "account already exists for wallet %s in %s", account.WalletID, account.Currency)
	}
	m.accounts[account.ID] = cloneAccount(account)
	m.accountByPair[key] = account.ID
	return nil
}

// GetAccount retrieves an account by ID.
func (m *Memory) GetAccount(_ context.Context, id string) (*domain.WalletAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "account %s not found", id)
	}
	return cloneAccount(a), nil
}

// FindAccount retrieves the account for a (wallet, currency) pair.
func (m *Memory) FindAccount(_ context.Context, walletID string, currency money.Currency) (*domain.WalletAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.accountByPair[pairKey(walletID, currency)]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "no %s account for wallet %s", currency, walletID)
	}
	return cloneAccount(m.accounts[id]), nil
}

// GetTransaction retrieves a transaction by ID.
func (m *Memory) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "transaction %s not found", id)
	}
	return cloneTransaction(t), nil
}

// FindTransactionByReference retrieves a transaction by its idempotency
// reference.
func (m *Memory) FindTransactionByReference(_ context.Context, reference string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.txByReference[reference]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "no transaction with reference %s", reference)
	}
	return cloneTransaction(m.transactions[id]), nil
}

// FindTransferByReference retrieves a transfer group by reference.
func (m *Memory) FindTransferByReference(_ context.Context, reference string) (*domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.trByReference[reference]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "no transfer with reference %s", reference)
	}
	return cloneTransfer(m.transfers[id]), nil
}

// TransferLegs returns both legs of a transfer group.
func (m *Memory) TransferLegs(_ context.Context, transferID string) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var legs []*domain.Transaction
	for _, t := range m.transactions {
		if t.TransferID == transferID {
			legs = append(legs, cloneTransaction(t))
		}
	}
	if len(legs) == 0 {
		return nil, domain.E(domain.KindNotFound, "transfer %s not found", transferID)
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].ID < legs[j].ID })
	return legs, nil
}

func (m *Memory) matchesFilter(t *domain.Transaction, filter TransactionFilter) bool {
	if filter.AccountID != "" && t.AccountID != filter.AccountID {
		return false
	}
	if filter.UserID != "" {
		acct, ok := m.accounts[t.AccountID]
		if !ok {
			return false
		}
		w, ok := m.wallets[acct.WalletID]
		if !ok || w.UserID != filter.UserID {
			return false
		}
	}
	if filter.Type != "" && t.Type != filter.Type {
		return false
	}
	if filter.Status != "" && t.Status != filter.Status {
		return false
	}
	if filter.Currency != "" && t.Currency != filter.Currency {
		return false
	}
	if filter.Processor != "" && t.Processor != filter.Processor {
		return false
	}
	if filter.From != nil && t.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && t.CreatedAt.After(*filter.To) {
		return false
	}
	return true
}

// ListTransactions returns filtered transactions, newest first.
func (m *Memory) ListTransactions(_ context.Context, filter TransactionFilter) ([]*domain.Transaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Transaction
	for _, t := range m.transactions {
		if m.matchesFilter(t, filter) {
			matched = append(matched, cloneTransaction(t))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// FeeSummary aggregates collected fees on completed transactions.
func (m *Memory) FeeSummary(_ context.Context, filter FeeFilter) ([]FeeSummaryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type key struct {
		currency money.Currency
		txType   domain.TransactionType
	}
	buckets := make(map[key]*FeeSummaryRow)
	for _, t := range m.transactions {
		if t.Status != domain.StatusCompleted || t.Fee.IsZero() {
			continue
		}
		if filter.Currency != "" && t.Currency != filter.Currency {
			continue
		}
		if filter.From != nil && t.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.CreatedAt.After(*filter.To) {
			continue
		}
		k := key{t.Currency, t.Type}
		row, ok := buckets[k]
		if !ok {
			row = &FeeSummaryRow{Currency: t.Currency, Type: t.Type, TotalFees: money.Zero(t.Currency)}
			buckets[k] = row
		}
		row.Count++
		row.TotalFees = row.TotalFees.MustAdd(t.Fee)
	}

	rows := make([]FeeSummaryRow, 0, len(buckets))
	for _, row := range buckets {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Currency != rows[j].Currency {
			return rows[i].Currency < rows[j].Currency
		}
		return rows[i].Type < rows[j].Type
	})
	return rows, nil
}

// ProcessorBreakdown aggregates completed volume per processor.
func (m *Memory) ProcessorBreakdown(_ context.Context) ([]ProcessorRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type key struct {
		processor domain.Processor
		currency  money.Currency
	}
	buckets := make(map[key]*ProcessorRow)
	for _, t := range m.transactions {
		if t.Status != domain.StatusCompleted || t.Processor == "" {
			continue
		}
		k := key{t.Processor, t.Currency}
		row, ok := buckets[k]
		if !ok {
			row = &ProcessorRow{
				Processor: t.Processor,
				Currency:  t.Currency,
				Volume:    money.Zero(t.Currency),
				TotalFees: money.Zero(t.Currency),
			}
			buckets[k] = row
		}
		row.Count++
		row.Volume = row.Volume.MustAdd(t.Gross)
		row.TotalFees = row.TotalFees.MustAdd(t.Fee)
	}

	rows := make([]ProcessorRow, 0, len(buckets))
	for _, row := range buckets {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Processor != rows[j].Processor {
			return rows[i].Processor < rows[j].Processor
		}
		return rows[i].Currency < rows[j].Currency
	})
	return rows, nil
}

// CreateAuthorization stores a new authorization hold.
func (m *Memory) CreateAuthorization(_ context.Context, auth *domain.Authorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.authorizations[auth.ID]; exists {
		return domain.E(domain.KindInvalidState, "authorization %s already exists", auth.ID)
	}
	if auth.IdempotencyKey != "" {
		if _, exists := m.authByKey[auth.IdempotencyKey]; exists {
			return domain.E(domain.KindDuplicateIdempotencyKey, "idempotency key already used")
		}
		m.authByKey[auth.IdempotencyKey] = auth.ID
	}
	m.authorizations[auth.ID] = cloneAuthorization(auth)
	return nil
}

// GetAuthorization retrieves an authorization by ID.
func (m *Memory) GetAuthorization(_ context.Context, id string) (*domain.Authorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.authorizations[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "authorization %s not found", id)
	}
	return cloneAuthorization(a), nil
}

// FindAuthorizationByKey retrieves an authorization by idempotency key.
func (m *Memory) FindAuthorizationByKey(_ context.Context, key string) (*domain.Authorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.authByKey[key]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "no authorization for idempotency key")
	}
	return cloneAuthorization(m.authorizations[id]), nil
}

// UpdateAuthorization persists a state transition guarded by the
// expected current status.
func (m *Memory) UpdateAuthorization(_ context.Context, auth *domain.Authorization, from domain.AuthorizationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.authorizations[auth.ID]
	if !ok {
		return domain.E(domain.KindNotFound, "authorization %s not found", auth.ID)
	}
	if current.Status != from {
		return domain.E(domain.KindInvalidState, "authorization %s is %s, expected %s", auth.ID, current.Status, from)
	}
	m.authorizations[auth.ID] = cloneAuthorization(auth)
	return nil
}

// ListExpirable returns capturable authorizations whose window closed
// before the cutoff.
func (m *Memory) ListExpirable(_ context.Context, cutoff time.Time, limit int) ([]*domain.Authorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Authorization
	for _, a := range m.authorizations {
		if a.Capturable() && a.ExpiresAt.Before(cutoff) {
			out = append(out, cloneAuthorization(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) accountLock(id string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.accountLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.accountLocks[id] = l
	}
	return l
}

// Atomic runs fn as an all-or-nothing unit. Account locks are acquired
// in lexicographic ID order so overlapping units cannot deadlock.
func (m *Memory) Atomic(ctx context.Context, accountIDs []string, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindTimeout, err, "operation cancelled")
	}

	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		l := m.accountLock(id)
		l.Lock()
		defer l.Unlock()
	}

	tx := &memTx{
		store:    m,
		accounts: make(map[string]*domain.WalletAccount),
		updated:  make(map[string]*domain.Transaction),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindTimeout, err, "operation cancelled before commit")
	}
	return tx.commit()
}

// memTx stages mutations and commits them atomically.
type memTx struct {
	store     *Memory
	accounts  map[string]*domain.WalletAccount
	inserted  []*domain.Transaction
	updated   map[string]*domain.Transaction
	transfers []*domain.Transfer
}

var _ Tx = (*memTx)(nil)

func (t *memTx) Account(_ context.Context, id string) (*domain.WalletAccount, error) {
	if a, ok := t.accounts[id]; ok {
		return a, nil
	}
	t.store.mu.RLock()
	a, ok := t.store.accounts[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, domain.E(domain.KindNotFound, "account %s not found", id)
	}
	staged := cloneAccount(a)
	t.accounts[id] = staged
	return staged, nil
}

func (t *memTx) WalletStatus(_ context.Context, walletID string) (domain.WalletStatus, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	w, ok := t.store.wallets[walletID]
	if !ok {
		return "", domain.E(domain.KindNotFound, "wallet %s not found", walletID)
	}
	return w.Status, nil
}

func (t *memTx) SaveAccount(_ context.Context, account *domain.WalletAccount) error {
	t.accounts[account.ID] = account
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx *domain.Transaction) error {
	if tx.Reference != "" {
		t.store.mu.RLock()
		_, exists := t.store.txByReference[tx.Reference]
		t.store.mu.RUnlock()
		if exists {
			return domain.E(domain.KindDuplicateReference, "reference %s already used", tx.Reference)
		}
		for _, staged := range t.inserted {
			if staged.Reference == tx.Reference {
				return domain.E(domain.KindDuplicateReference, "reference %s already used", tx.Reference)
			}
		}
	}
	t.inserted = append(t.inserted, cloneTransaction(tx))
	return nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tx *domain.Transaction) error {
	t.updated[tx.ID] = cloneTransaction(tx)
	return nil
}

func (t *memTx) TransactionForUpdate(_ context.Context, id string) (*domain.Transaction, error) {
	if tx, ok := t.updated[id]; ok {
		return cloneTransaction(tx), nil
	}
	t.store.mu.RLock()
	tx, ok := t.store.transactions[id]
	t.store.mu.RUnlock()
	if !ok {
		return nil, domain.E(domain.KindNotFound, "transaction %s not found", id)
	}
	return cloneTransaction(tx), nil
}

func (t *memTx) InsertTransfer(_ context.Context, transfer *domain.Transfer) error {
	t.store.mu.RLock()
	_, exists := t.store.trByReference[transfer.Reference]
	t.store.mu.RUnlock()
	if exists {
		return domain.E(domain.KindDuplicateReference, "transfer reference %s already used", transfer.Reference)
	}
	t.transfers = append(t.transfers, cloneTransfer(transfer))
	return nil
}

func (t *memTx) commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, tx := range t.inserted {
		if tx.Reference != "" {
			if _, exists := t.store.txByReference[tx.Reference]; exists {
				return domain.E(domain.KindDuplicateReference, "reference %s already used", tx.Reference)
			}
		}
	}
	for _, tr := range t.transfers {
		if _, exists := t.store.trByReference[tr.Reference]; exists {
			return domain.E(domain.KindDuplicateReference, "transfer reference %s already used", tr.Reference)
		}
	}

	for id, a := range t.accounts {
		t.store.accounts[id] = cloneAccount(a)
	}
	for _, tr := range t.transfers {
		t.store.transfers[tr.ID] = tr
		t.store.trByReference[tr.Reference] = tr.ID
	}
	for _, tx := range t.inserted {
		t.store.transactions[tx.ID] = tx
		if tx.Reference != "" {
			t.store.txByReference[tx.Reference] = tx.ID
		}
	}
	for id, tx := range t.updated {
		t.store.transactions[id] = tx
	}
	return nil
}
