// Package rest exposes the ledger services over a JSON API. Handlers
// stay thin: decode, delegate, respond; every business rule lives in
// the services.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/balance"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/entries"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/periods"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reconcile"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/reports"
	"github.com/matbaa-erp/matbaa-erp/internal/platform/httpx"
	"github.com/matbaa-erp/matbaa-erp/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	accounts  *accounts.Service
	periods   *periods.Service
	entries   *entries.Service
	engine    *balance.Engine
	reconcile *reconcile.Service
	reports   *reports.Service
}

func NewHandler(logger *slog.Logger, accountsSvc *accounts.Service, periodsSvc *periods.Service,
	entriesSvc *entries.Service, engine *balance.Engine, reconcileSvc *reconcile.Service,
	reportsSvc *reports.Service) *Handler {
	return &Handler{
		logger:    logger,
		accounts:  accountsSvc,
		periods:   periodsSvc,
		entries:   entriesSvc,
		engine:    engine,
		reconcile: reconcileSvc,
		reports:   reportsSvc,
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/tree", h.accountTree)
		r.Get("/types", h.listAccountTypes)
		r.Post("/types", h.createAccountType)
		r.Get("/{id}", h.getAccount)
		r.Delete("/{id}", h.deleteAccount)
		r.Post("/{id}/deactivate", h.deactivateAccount)
		r.Post("/{id}/reactivate", h.reactivateAccount)
		r.Get("/{id}/balance", h.accountBalance)
		r.Get("/{id}/ledger", h.accountLedger)
		r.Post("/{id}/refresh", h.refreshBalance)
		r.Post("/{id}/snapshot", h.createSnapshot)
	})
	r.Route("/periods", func(r chi.Router) {
		r.Get("/", h.listPeriods)
		r.Post("/", h.createPeriod)
		r.Post("/{id}/close", h.closePeriod)
		r.Post("/{id}/reopen", h.reopenPeriod)
	})
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.listEntries)
		r.Post("/", h.createEntry)
		r.Post("/expense", h.recordExpense)
		r.Post("/income", h.recordIncome)
		r.Get("/{id}", h.getEntry)
		r.Put("/{id}", h.updateEntry)
		r.Delete("/{id}", h.deleteEntry)
		r.Post("/{id}/post", h.postEntry)
		r.Post("/{id}/unpost", h.unpostEntry)
		r.Post("/{id}/cancel", h.cancelEntry)
	})
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/income-statement", h.incomeStatement)
		r.Get("/balance-sheet", h.balanceSheet)
		r.Get("/cash-flow", h.cashFlow)
		r.Get("/aging", h.aging)
		r.Get("/ratios", h.ratios)
	})
	r.Route("/reconcile", func(r chi.Router) {
		r.Post("/validate", h.validateBalances)
		r.Get("/integrity", h.trialIntegrity)
		r.Get("/identity", h.identity)
		r.Get("/health", h.healthCheck)
		r.Post("/", h.reconcileAccount)
	})
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorID(r *http.Request) int64 {
	return shared.ActorFromContext(r.Context()).ID
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func requireDateQuery(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	t, ok := dateQuery(r, name)
	if !ok || t == nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return *t, true
}

// --- accounts ---

type createAccountRequest struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	ParentID      *int64 `json:"parent_id"`
	TypeID        int64  `json:"type_id"`
	IsLeaf        bool   `json:"is_leaf"`
	IsCashAccount bool   `json:"is_cash_account"`
	IsBankAccount bool   `json:"is_bank_account"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	account, err := h.accounts.Create(r.Context(), accounts.CreateInput{
		Code:          req.Code,
		Name:          req.Name,
		ParentID:      req.ParentID,
		TypeID:        req.TypeID,
		IsLeaf:        req.IsLeaf,
		IsCashAccount: req.IsCashAccount,
		IsBankAccount: req.IsBankAccount,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

type createAccountTypeRequest struct {
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Category accounts.Category `json:"category"`
	Nature   accounts.Nature   `json:"nature"`
}

func (h *Handler) createAccountType(w http.ResponseWriter, r *http.Request) {
	var req createAccountTypeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	at, err := h.accounts.CreateType(r.Context(), accounts.CreateTypeInput{
		Code: req.Code, Name: req.Name, Category: req.Category, Nature: req.Nature,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, at)
}

func (h *Handler) listAccountTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.accounts.ListTypes(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, types)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.accounts.List(r.Context(), accounts.Filter{
		LeafOnly:   q.Get("leaf") == "true",
		ActiveOnly: q.Get("active") == "true",
		Category:   accounts.Category(q.Get("category")),
		CashOnly:   q.Get("cash") == "true",
		BankOnly:   q.Get("bank") == "true",
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Display lists can ask for Arabic name order instead of code order.
	if q.Get("order") == "name" {
		accounts.SortByName(list)
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) accountTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.accounts.Tree(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.accounts.Deactivate)
}

func (h *Handler) reactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.accounts.Reactivate)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	h.accountAction(w, r, h.accounts.Delete)
}

func (h *Handler) accountAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) error) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	if err := action(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- balances ---

type balanceResponse struct {
	AccountID int64  `json:"account_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Balance   string `json:"balance"`
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	from, ok := dateQuery(r, "from")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, ok := dateQuery(r, "to")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	opts := balance.DefaultOptions()
	if r.URL.Query().Get("refresh") == "true" {
		opts.ForceRefresh = true
	}
	value, err := h.engine.Balance(r.Context(), id, from, to, opts)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := balanceResponse{AccountID: id, Balance: value.StringFixed(2)}
	if from != nil {
		resp.From = from.Format("2006-01-02")
	}
	if to != nil {
		resp.To = to.Format("2006-01-02")
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) accountLedger(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	from, ok := dateQuery(r, "from")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, ok := dateQuery(r, "to")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	lines, err := h.engine.RunningLedger(r.Context(), id, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) refreshBalance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	row, err := h.engine.Refresh(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) createSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	date, ok := requireDateQuery(w, r, "date")
	if !ok {
		return
	}
	snap, err := h.engine.CreateSnapshot(r.Context(), id, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, snap)
}

// --- periods ---

type createPeriodRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "end_date must be YYYY-MM-DD")
		return
	}
	period, err := h.periods.Create(r.Context(), periods.CreateInput{
		Name: req.Name, StartDate: start, EndDate: end,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := h.periods.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	h.periodAction(w, r, h.periods.Close)
}

func (h *Handler) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	h.periodAction(w, r, h.periods.Reopen)
}

func (h *Handler) periodAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id, actor int64) (periods.Period, error)) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	period, err := action(r.Context(), id, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

// --- entries ---

type lineRequest struct {
	AccountID   int64  `json:"account_id"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
}

type createEntryRequest struct {
	Reference   string        `json:"reference"`
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Notes       string        `json:"notes"`
	EntryType   string        `json:"entry_type"`
	Lines       []lineRequest `json:"lines"`
}

func parseLines(in []lineRequest) ([]entries.LineInput, error) {
	out := make([]entries.LineInput, 0, len(in))
	for _, l := range in {
		line := entries.LineInput{AccountID: l.AccountID, Description: l.Description}
		var err error
		if line.Debit, err = parseAmount(l.Debit); err != nil {
			return nil, err
		}
		if line.Credit, err = parseAmount(l.Credit); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amounts must be decimal strings")
		return
	}
	entry, err := h.entries.CreateDraft(r.Context(), entries.CreateInput{
		Reference:   req.Reference,
		Date:        date,
		Description: req.Description,
		Notes:       req.Notes,
		EntryType:   entries.EntryType(req.EntryType),
		CreatedBy:   actorID(r),
		Lines:       lines,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := entries.ListFilter{Status: entries.Status(q.Get("status"))}
	if raw := q.Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account_id")
			return
		}
		filter.AccountID = id
	}
	var ok bool
	if filter.DateFrom, ok = dateQuery(r, "from"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	if filter.DateTo, ok = dateQuery(r, "to"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, _ = strconv.Atoi(raw); filter.Limit < 0 {
			filter.Limit = 0
		}
	}
	list, err := h.entries.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.entries.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type updateEntryRequest struct {
	Date        *string       `json:"date"`
	Description *string       `json:"description"`
	Notes       *string       `json:"notes"`
	Lines       []lineRequest `json:"lines"`
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req updateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	in := entries.UpdateInput{Description: req.Description, Notes: req.Notes}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		in.Date = &date
	}
	if req.Lines != nil {
		if in.Lines, err = parseLines(req.Lines); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amounts must be decimal strings")
			return
		}
	}
	entry, err := h.entries.Update(r.Context(), id, in, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	if err := h.entries.Delete(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	h.entryAction(w, r, h.entries.Post)
}

func (h *Handler) unpostEntry(w http.ResponseWriter, r *http.Request) {
	h.entryAction(w, r, h.entries.Unpost)
}

func (h *Handler) cancelEntry(w http.ResponseWriter, r *http.Request) {
	h.entryAction(w, r, h.entries.Cancel)
}

func (h *Handler) entryAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id, actor int64) (entries.Entry, error)) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := action(r.Context(), id, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type triggerRequest struct {
	Date            string `json:"date"`
	Amount          string `json:"amount"`
	DebitAccountID  int64  `json:"debit_account_id"`
	CreditAccountID int64  `json:"credit_account_id"`
	Description     string `json:"description"`
	Notes           string `json:"notes"`
}

func (h *Handler) recordExpense(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.entries.RecordExpense)
}

func (h *Handler) recordIncome(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.entries.RecordIncome)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request, record func(ctx context.Context, in entries.TriggerInput) (entries.Entry, error)) {
	var req triggerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	entry, err := record(r.Context(), entries.TriggerInput{
		Date:           date,
		Amount:         amount,
		DebitAccountID: req.DebitAccountID,
		CreditAccount:  req.CreditAccountID,
		Description:    req.Description,
		Notes:          req.Notes,
		CreatedBy:      actorID(r),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// --- reports ---

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	from, ok := dateQuery(r, "from")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, ok := dateQuery(r, "to")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	tb, err := h.reports.TrialBalance(r.Context(), from, to, reports.TrialBalanceOptions{
		IncludeZero:     r.URL.Query().Get("zero") == "true",
		GroupByCategory: r.URL.Query().Get("group") == "true",
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	from, ok := requireDateQuery(w, r, "from")
	if !ok {
		return
	}
	to, ok := requireDateQuery(w, r, "to")
	if !ok {
		return
	}
	st, err := h.reports.IncomeStatement(r.Context(), from, to, r.URL.Query().Get("comparative") == "true")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, ok := requireDateQuery(w, r, "as_of")
	if !ok {
		return
	}
	bs, err := h.reports.BalanceSheet(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	from, ok := requireDateQuery(w, r, "from")
	if !ok {
		return
	}
	to, ok := requireDateQuery(w, r, "to")
	if !ok {
		return
	}
	cf, err := h.reports.CashFlow(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cf)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf, ok := requireDateQuery(w, r, "as_of")
	if !ok {
		return
	}
	typ := reports.AgingReceivables
	if r.URL.Query().Get("type") == "payables" {
		typ = reports.AgingPayables
	}
	report, err := h.reports.Aging(r.Context(), typ, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) ratios(w http.ResponseWriter, r *http.Request) {
	asOf, ok := requireDateQuery(w, r, "as_of")
	if !ok {
		return
	}
	ratios, err := h.reports.FinancialRatios(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ratios)
}

// --- reconciliation ---

func (h *Handler) validateBalances(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.ValidateBalances(r.Context(), r.URL.Query().Get("fix") == "true")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) trialIntegrity(w http.ResponseWriter, r *http.Request) {
	asOf, ok := requireDateQuery(w, r, "as_of")
	if !ok {
		return
	}
	report, err := h.reconcile.TrialIntegrity(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) {
	asOf, ok := requireDateQuery(w, r, "as_of")
	if !ok {
		return
	}
	report, err := h.reconcile.Identity(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	asOf, ok := dateQuery(r, "as_of")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	at := time.Now()
	if asOf != nil {
		at = *asOf
	}
	report, err := h.reconcile.HealthCheck(r.Context(), at)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

type reconcileRequest struct {
	AccountID       int64   `json:"account_id"`
	Date            string  `json:"date"`
	ExternalBalance *string `json:"external_balance"`
	Notes           string  `json:"notes"`
}

func (h *Handler) reconcileAccount(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	in := reconcile.ReconcileInput{AccountID: req.AccountID, Date: date, Notes: req.Notes}
	if req.ExternalBalance != nil {
		external, err := decimal.NewFromString(*req.ExternalBalance)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "external_balance must be a decimal string")
			return
		}
		in.ExternalBalance = &external
	}
	rec, err := h.reconcile.Reconcile(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}
