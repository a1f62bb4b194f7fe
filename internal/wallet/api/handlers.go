// Package api exposes the wallet ledger over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"walletledger/internal/common/api"
	"walletledger/internal/common/money"
	"walletledger/internal/wallet/authz"
	"walletledger/internal/wallet/domain"
	"walletledger/internal/wallet/engine"
	"walletledger/internal/wallet/query"
	"walletledger/internal/wallet/store"
)

// Handler serves wallet endpoints.
type Handler struct {
	engine *engine.Engine
	authz  *authz.Manager
	query  *query.Facade
	logger *slog.Logger
}

// NewHandler creates the wallet HTTP handler.
func NewHandler(eng *engine.Engine, mgr *authz.Manager, q *query.Facade, logger *slog.Logger) *Handler {
	return &Handler{
		engine: eng,
		authz:  mgr,
		query:  q,
		logger: logger,
	}
}

// Routes mounts all wallet endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/wallets", func(r chi.Router) {
		r.Post("/", h.createWallet)
		r.Get("/", h.getWalletByUser)
		r.Get("/{walletID}", h.getWallet)
		r.Patch("/{walletID}/status", h.setWalletStatus)

		r.Post("/accounts", h.createAccount)
		r.Get("/accounts/{accountID}", h.getAccount)
		r.Get("/accounts/{accountID}/balance", h.getBalance)

		r.Post("/deposit", h.deposit)
		r.Post("/withdraw", h.withdraw)
		r.Post("/pay", h.pay)
		r.Post("/transfer", h.transfer)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/{transactionID}", h.getTransaction)
		r.Post("/{transactionID}/settle", h.settleDeposit)
		r.Post("/{transactionID}/reverse", h.reverse)
	})

	r.Get("/transfers/{transferID}", h.getTransfer)

	r.Route("/payments", func(r chi.Router) {
		r.Post("/authorize", h.authorize)
		r.Post("/charge", h.charge)
		r.Get("/{authorizationID}", h.getAuthorization)
		r.Post("/{authorizationID}/capture", h.capture)
		r.Post("/{authorizationID}/release", h.release)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/transactions", h.listTransactions)
		r.Post("/transactions/{transactionID}/fee", h.applyFee)
		r.Get("/fees/summary", h.feeSummary)
		r.Get("/fees/processor-breakdown", h.processorBreakdown)
	})

	return r
}

// Wallet endpoints

type createWalletRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

func (h *Handler) createWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	wallet, err := h.engine.CreateWallet(r.Context(), req.UserID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	// Optionally open the first currency account in the same call.
	if req.Currency != "" {
		if _, err := h.engine.CreateAccount(r.Context(), wallet.ID, money.Currency(req.Currency)); err != nil {
			api.WriteDomainError(w, err)
			return
		}
	}

	api.WriteData(w, http.StatusCreated, wallet)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.query.GetWallet(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, wallet)
}

func (h *Handler) getWalletByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.BadRequest(w, "user_id is required")
		return
	}

	if currency := r.URL.Query().Get("currency"); currency != "" {
		balance, err := h.query.GetBalanceByCurrency(r.Context(), userID, money.Currency(currency))
		if err != nil {
			api.WriteDomainError(w, err)
			return
		}
		api.WriteData(w, http.StatusOK, balance)
		return
	}

	wallet, err := h.query.GetWalletByUser(r.Context(), userID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, wallet)
}

type setWalletStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive frozen"`
}

func (h *Handler) setWalletStatus(w http.ResponseWriter, r *http.Request) {
	var req setWalletStatusRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	walletID := chi.URLParam(r, "walletID")
	if err := h.engine.SetWalletStatus(r.Context(), walletID, domain.WalletStatus(req.Status)); err != nil {
		api.WriteDomainError(w, err)
		return
	}

	wallet, err := h.query.GetWallet(r.Context(), walletID)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, wallet)
}

type createAccountRequest struct {
	WalletID string `json:"wallet_id" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	account, err := h.engine.CreateAccount(r.Context(), req.WalletID, money.Currency(req.Currency))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, account)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.query.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, account)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.query.GetBalance(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, balance)
}

// Movement endpoints

type movementRequest struct {
	AccountID   string            `json:"account_id" validate:"required"`
	Amount      string            `json:"amount" validate:"required"`
	Fee         string            `json:"fee"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	Reference   string            `json:"reference"`
	Processor   string            `json:"processor" validate:"omitempty,oneof=braintree stripe adyen razorpay"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

func (req *movementRequest) amounts() (amount, fee money.Money, err error) {
	currency := money.Currency(req.Currency)
	if !money.IsValidCurrency(currency) {
		return amount, fee, domain.E(domain.KindInvalidAmount, "unsupported currency %q", req.Currency)
	}
	if amount, err = money.Parse(req.Amount, currency); err != nil {
		return amount, fee, domain.Wrap(domain.KindInvalidAmount, err, "invalid amount")
	}
	fee = money.Zero(currency)
	if req.Fee != "" {
		if fee, err = money.Parse(req.Fee, currency); err != nil {
			return amount, fee, domain.Wrap(domain.KindInvalidAmount, err, "invalid fee")
		}
	}
	return amount, fee, nil
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	amount, fee, err := req.amounts()
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	txn, err := h.engine.Deposit(r.Context(), engine.DepositRequest{
		AccountID:   req.AccountID,
		Amount:      amount,
		Fee:         fee,
		Reference:   req.Reference,
		Processor:   domain.Processor(req.Processor),
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, txn)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	amount, fee, err := req.amounts()
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	txn, err := h.engine.Withdraw(r.Context(), engine.WithdrawRequest{
		AccountID:   req.AccountID,
		Amount:      amount,
		Fee:         fee,
		Reference:   req.Reference,
		Processor:   domain.Processor(req.Processor),
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, txn)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	amount, fee, err := req.amounts()
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	txn, err := h.engine.Pay(r.Context(), engine.PayRequest{
		AccountID:   req.AccountID,
		Amount:      amount,
		Fee:         fee,
		Reference:   req.Reference,
		Processor:   domain.Processor(req.Processor),
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, txn)
}

type transferRequest struct {
	FromAccountID string `json:"from_account_id" validate:"required"`
	ToAccountID   string `json:"to_account_id" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	Fee           string `json:"fee"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Reference     string `json:"reference" validate:"required"`
	Description   string `json:"description"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	currency := money.Currency(req.Currency)
	amount, err := money.Parse(req.Amount, currency)
	if err != nil {
		api.WriteDomainError(w, domain.Wrap(domain.KindInvalidAmount, err, "invalid amount"))
		return
	}
	fee := money.Zero(currency)
	if req.Fee != "" {
		if fee, err = money.Parse(req.Fee, currency); err != nil {
			api.WriteDomainError(w, domain.Wrap(domain.KindInvalidAmount, err, "invalid fee"))
			return
		}
	}

	result, err := h.engine.Transfer(r.Context(), engine.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        amount,
		Fee:           fee,
		Reference:     req.Reference,
		Description:   req.Description,
	})
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, result)
}

// Transaction endpoints

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.query.GetTransaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, txn)
}

func (h *Handler) getTransfer(w http.ResponseWriter, r *http.Request) {
	legs, err := h.query.GetTransfer(r.Context(), chi.URLParam(r, "transferID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, legs)
}

func (h *Handler) settleDeposit(w http.ResponseWriter, r *http.Request) {
	txn, err := h.engine.SettleDeposit(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, txn)
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	reversal, err := h.engine.Reverse(r.Context(), chi.URLParam(r, "transactionID"), req.Reason)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, reversal)
}

// Payment authorization endpoints

type authorizeRequest struct {
	AccountID      string `json:"account_id" validate:"required"`
	Amount         string `json:"amount" validate:"required"`
	Currency       string `json:"currency" validate:"required,len=3"`
	Processor      string `json:"processor" validate:"required,oneof=braintree stripe adyen razorpay"`
	MethodToken    string `json:"method_token"`
	PlatformRef    string `json:"platform_ref"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (req *authorizeRequest) toManagerRequest() (authz.AuthorizeRequest, error) {
	amount, err := money.Parse(req.Amount, money.Currency(req.Currency))
	if err != nil {
		return authz.AuthorizeRequest{}, domain.Wrap(domain.KindInvalidAmount, err, "invalid amount")
	}
	return authz.AuthorizeRequest{
		AccountID:      req.AccountID,
		Amount:         amount,
		Processor:      domain.Processor(req.Processor),
		MethodToken:    req.MethodToken,
		PlatformRef:    req.PlatformRef,
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	mreq, err := req.toManagerRequest()
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	auth, err := h.authz.Authorize(r.Context(), mreq)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, auth)
}

type chargeResponse struct {
	Authorization *domain.Authorization `json:"authorization"`
	Transaction   *domain.Transaction   `json:"transaction,omitempty"`
}

func (h *Handler) charge(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	mreq, err := req.toManagerRequest()
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	auth, txn, err := h.authz.Charge(r.Context(), mreq)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, chargeResponse{Authorization: auth, Transaction: txn})
}

func (h *Handler) getAuthorization(w http.ResponseWriter, r *http.Request) {
	auth, err := h.authz.Get(r.Context(), chi.URLParam(r, "authorizationID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, auth)
}

type captureRequest struct {
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	amount, err := money.Parse(req.Amount, money.Currency(req.Currency))
	if err != nil {
		api.WriteDomainError(w, domain.Wrap(domain.KindInvalidAmount, err, "invalid amount"))
		return
	}

	txn, err := h.authz.Capture(r.Context(), chi.URLParam(r, "authorizationID"), amount)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, txn)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	auth, err := h.authz.Release(r.Context(), chi.URLParam(r, "authorizationID"))
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, auth)
}

// Admin endpoints

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := api.GetPaginationParams(r, 50, 100)

	filter := store.TransactionFilter{
		AccountID: q.Get("account_id"),
		UserID:    q.Get("user_id"),
		Type:      domain.TransactionType(q.Get("type")),
		Status:    domain.TransactionStatus(q.Get("status")),
		Currency:  money.Currency(q.Get("currency")),
		Processor: domain.Processor(q.Get("processor")),
		Limit:     params.Limit,
		Offset:    params.Offset,
	}
	if from, err := parseTime(q.Get("from")); err != nil {
		api.BadRequest(w, "from must be RFC 3339")
		return
	} else if from != nil {
		filter.From = from
	}
	if to, err := parseTime(q.Get("to")); err != nil {
		api.BadRequest(w, "to must be RFC 3339")
		return
	} else if to != nil {
		filter.To = to
	}

	transactions, total, err := h.query.ListTransactions(r.Context(), filter)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}

	api.WritePaginated(w, transactions, &api.Pagination{
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Total:   total,
		HasMore: int64(filter.Offset+len(transactions)) < total,
	})
}

type applyFeeRequest struct {
	Fee      string `json:"fee" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) applyFee(w http.ResponseWriter, r *http.Request) {
	var req applyFeeRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	fee, err := money.Parse(req.Fee, money.Currency(req.Currency))
	if err != nil {
		api.WriteDomainError(w, domain.Wrap(domain.KindInvalidAmount, err, "invalid fee"))
		return
	}

	txn, err := h.engine.ApplyFee(r.Context(), chi.URLParam(r, "transactionID"), fee)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, txn)
}

func (h *Handler) feeSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.FeeFilter{Currency: money.Currency(q.Get("currency"))}
	if from, err := parseTime(q.Get("from")); err != nil {
		api.BadRequest(w, "from must be RFC 3339")
		return
	} else if from != nil {
		filter.From = from
	}
	if to, err := parseTime(q.Get("to")); err != nil {
		api.BadRequest(w, "to must be RFC 3339")
		return
	} else if to != nil {
		filter.To = to
	}

	rows, err := h.query.FeeSummary(r.Context(), filter)
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []store.FeeSummaryRow{}
	}
	api.WriteData(w, http.StatusOK, rows)
}

func (h *Handler) processorBreakdown(w http.ResponseWriter, r *http.Request) {
	rows, err := h.query.ProcessorBreakdown(r.Context())
	if err != nil {
		api.WriteDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []store.ProcessorRow{}
	}
	api.WriteData(w, http.StatusOK, rows)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
