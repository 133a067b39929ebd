/*
handlers.go - HTTP API handlers for the distributor settlement back-office

PURPOSE:
  Exposes receivables and settlement operations via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the services.

ENDPOINTS:
  Distributors:
    GET    /api/distributors                          Distributors with balances and open counts
    GET    /api/distributors/{id}/unsettled           Unsettled sales + advances (?from=&to=)
    POST   /api/distributors/{id}/settlements/preview Reconcile without writing
    POST   /api/distributors/{id}/settlements         Settle selected sales + advances
    GET    /api/distributors/{id}/settlements         Settlement history

  Settlements:
    GET    /api/settlements/{id}                      Settlement record
    GET    /api/settlements/{id}/statement.xlsx       Statement workbook

  Customers:
    POST   /api/customers                             Create customer or distributor
    GET    /api/customers/{id}                        Customer details
    POST   /api/customers/{id}/payments               Spread a payment over open invoices

  Sales:
    POST   /api/sales                                 Create invoice
    GET    /api/sales                                 List invoices (?customer_id=)
    POST   /api/sales/{id}/payments                   Record a payment on one invoice

  Expenses:
    POST   /api/expenses                              Record expense or distributor payment
    GET    /api/expenses                              List expenses (?distributor_id=)

  Scenarios:
    GET    /api/scenarios                             List demo scenarios
    POST   /api/scenarios/load                        Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Transactional collection store
  - Settlements: Reconcile/apply service (per-distributor locking)
  - Receivables: Customers, invoices, payments, expenses

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert DTO to service input
  3. Call the service
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (code and offending ids included)
  - 404: Distributor, customer or settlement not found
  - 409: Concurrent modification, safe to retry
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stickflow/backoffice/ledger"
	"github.com/stickflow/backoffice/receivables"
	"github.com/stickflow/backoffice/report"
	"github.com/stickflow/backoffice/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       ledger.TxStore
	Settlements *settlement.Service
	Receivables *receivables.Service
	Logger      *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store ledger.TxStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:       store,
		Settlements: settlement.NewService(store, logger),
		Receivables: receivables.NewService(store, logger),
		Logger:      logger.Named("api"),
	}
}

// =============================================================================
// DISTRIBUTOR HANDLERS
// =============================================================================

// ListDistributors returns every distributor with balances and the number
// of records still open for settlement.
func (h *Handler) ListDistributors(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Settlements.Summaries(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list distributors", err)
		return
	}

	dtos := make([]DistributorSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = DistributorSummaryDTO{
			CustomerDTO:       toCustomerDTO(s.Distributor.Customer),
			UnsettledSales:    s.UnsettledSales,
			UnsettledAdvances: s.UnsettledAdvances,
			Settlements:       s.Settlements,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUnsettled lists what a distributor can still settle. The optional
// from/to query parameters (YYYY-MM-DD) must be given together.
func (h *Handler) GetUnsettled(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	var period *ledger.Period
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			writeError(w, http.StatusBadRequest, "from and to must be given together", nil)
			return
		}
		start, err := ledger.ParseDay(from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		end, err := ledger.ParseDay(to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		period = &ledger.Period{Start: start, End: end}
	}

	u, err := h.Settlements.Unsettled(r.Context(), id, period)
	if err != nil {
		h.writeServiceError(w, "Failed to list unsettled records", err)
		return
	}

	writeJSON(w, http.StatusOK, UnsettledDTO{
		Distributor:           toCustomerDTO(u.Distributor.Customer),
		Sales:                 toSaleDTOs(u.Sales),
		Advances:              toExpenseDTOs(u.Advances),
		TotalSalesValue:       u.Margin.Collected,
		TotalDistributorValue: u.Margin.Billed,
		FinalMargin:           u.Margin.FinalMargin,
		TotalAdvances:         u.Advanced,
	})
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// PreviewSettlement reconciles the selection and returns the figures
// without writing anything.
func (h *Handler) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	plan, err := h.Settlements.Preview(r.Context(), req.toRequest(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to preview settlement", err)
		return
	}

	writeJSON(w, http.StatusOK, PreviewDTO{
		Settlement: toSettlementDTO(plan.Settlement),
		Before:     toBalancesDTO(plan.Before),
		After:      toBalancesDTO(plan.After),
	})
}

// CreateSettlement settles the selected sales and advances.
func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.Settlements.Settle(r.Context(), req.toRequest(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to settle", err)
		return
	}

	writeJSON(w, http.StatusCreated, toSettlementDTO(*st))
}

// ListDistributorSettlements returns a distributor's settlements, oldest first.
func (h *Handler) ListDistributorSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := h.Settlements.Settlements(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to list settlements", err)
		return
	}

	dtos := make([]SettlementDTO, len(settlements))
	for i, st := range settlements {
		dtos[i] = toSettlementDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Settlements.Get(r.Context(), ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*st))
}

// ExportStatement streams the settlement statement as an xlsx workbook.
func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := report.LoadStatement(r.Context(), h.Store, ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to load settlement", err)
		return
	}

	f, filename, err := statement.Workbook()
	if err != nil {
		h.writeServiceError(w, "Failed to build statement", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if err := f.Write(w); err != nil {
		h.Logger.Error("failed to write statement", zap.String("filename", filename), zap.Error(err))
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.Receivables.CreateCustomer(r.Context(), req.toCustomer())
	if err != nil {
		h.writeServiceError(w, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*c))
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Receivables.Customer(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

// AllocatePayment spreads a customer payment over their open invoices,
// oldest first.
func (h *Handler) AllocatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, ok := parseOptionalDay(w, req.Date)
	if !ok {
		return
	}

	res, err := h.Receivables.Allocate(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")),
		req.Amount, ledger.PaymentMode(req.Mode), date)
	if err != nil {
		h.writeServiceError(w, "Failed to record payment", err)
		return
	}

	dto := AllocationResultDTO{
		Customer:    toCustomerDTO(res.Customer),
		Allocations: make([]AllocationDTO, len(res.Allocations)),
		Unallocated: res.Unallocated,
	}
	for i, a := range res.Allocations {
		dto.Allocations[i] = AllocationDTO{
			SaleID:        string(a.SaleID),
			InvoiceNumber: a.InvoiceNumber,
			Amount:        a.Amount,
			PaymentStatus: string(a.Status),
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, ok := parseOptionalDay(w, req.Date)
	if !ok {
		return
	}

	in := receivables.SaleInput{
		CustomerID:     ledger.CustomerID(req.CustomerID),
		DistributorID:  ledger.CustomerID(req.DistributorID),
		Date:           date,
		Items:          make([]ledger.SaleItem, len(req.Items)),
		TotalAmount:    req.TotalAmount,
		InitialPayment: req.AmountPaid,
		PaymentMode:    ledger.PaymentMode(req.PaymentMode),
	}
	for i, it := range req.Items {
		in.Items[i] = ledger.SaleItem{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			Price:             it.Price,
			CostToDistributor: it.CostToDistributor,
		}
	}

	sale, err := h.Receivables.CreateSale(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to create sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(*sale))
}

// ListSales returns invoices newest first, optionally for one customer.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Receivables.Sales(r.Context(), ledger.CustomerID(r.URL.Query().Get("customer_id")))
	if err != nil {
		h.writeServiceError(w, "Failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTOs(sales))
}

func (h *Handler) RecordSalePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, ok := parseOptionalDay(w, req.Date)
	if !ok {
		return
	}

	sale, err := h.Receivables.RecordSalePayment(r.Context(), ledger.SaleID(chi.URLParam(r, "id")),
		req.Amount, ledger.PaymentMode(req.Mode), date)
	if err != nil {
		h.writeServiceError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// CreateExpense records a business expense. Distributor payments go to
// the settlement service, which pays off pending before opening an advance.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, ok := parseOptionalDay(w, req.Date)
	if !ok {
		return
	}

	var (
		e   *ledger.Expense
		err error
	)
	if ledger.ExpenseCategory(req.Category) == ledger.ExpenseDistributorPayment {
		e, err = h.Settlements.RecordAdvance(r.Context(), settlement.AdvanceRequest{
			DistributorID: ledger.CustomerID(req.DistributorID),
			Amount:        req.Amount,
			Date:          date,
			Description:   req.Description,
		})
	} else {
		e, err = h.Receivables.RecordExpense(r.Context(), ledger.Expense{
			Category:    ledger.ExpenseCategory(req.Category),
			Amount:      req.Amount,
			Date:        date,
			Description: req.Description,
		})
	}
	if err != nil {
		h.writeServiceError(w, "Failed to record expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(*e))
}

// ListExpenses returns expenses newest first, optionally only the
// advances paid to one distributor.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.Receivables.Expenses(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list expenses", err)
		return
	}

	if id := ledger.CustomerID(r.URL.Query().Get("distributor_id")); id != "" {
		filtered := expenses[:0]
		for _, e := range expenses {
			if e.DistributorID == id {
				filtered = append(filtered, e)
			}
		}
		expenses = filtered
	}
	writeJSON(w, http.StatusOK, toExpenseDTOs(expenses))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error to its HTTP status. Not-found is
// checked first because missing distributors are also validation errors.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var status int
	switch {
	case ledger.IsNotFound(err):
		status = http.StatusNotFound
	case ledger.IsRetryable(err):
		status = http.StatusConflict
	case ledger.IsClientError(err):
		status = http.StatusBadRequest
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
		return
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	var vErr *ledger.ValidationError
	if errors.As(err, &vErr) {
		resp.Code = vErr.Code
		resp.IDs = vErr.IDs
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads the request body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// parseOptionalDay parses a request date. Empty means "let the service
// pick today".
func parseOptionalDay(w http.ResponseWriter, s string) (ledger.Day, bool) {
	if strings.TrimSpace(s) == "" {
		return ledger.Day{}, true
	}
	d, err := ledger.ParseDay(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return ledger.Day{}, false
	}
	return d, true
}
