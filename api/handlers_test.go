/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Customer creation and lookup
- Settlement preview, settle and the double-settlement rejection
- Error status mapping (400 / 404 / 409)
- Payments, expenses and advances
- Statement export
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stickflow/backoffice/ledger"
	"github.com/stickflow/backoffice/ledger/store"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	h := NewHandler(store.NewTxMemory(), nil)
	return h, NewRouter(h, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seedDistributorSale creates distributor d1 with the given outstanding
// balance, an affiliated shop, and one fully paid sale (price 1000,
// distributor cost 600). It returns the sale id.
func seedDistributorSale(t *testing.T, router http.Handler, outstanding string) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/customers", map[string]any{
		"id": "d1", "name": "North Sticks", "is_distributor": true, "outstanding_balance": outstanding,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/customers", map[string]any{
		"id": "c1", "name": "Lakeside Store", "affiliated_distributor_id": "d1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/sales", map[string]any{
		"customer_id":    "c1",
		"distributor_id": "d1",
		"date":           "2025-06-03",
		"items":          []map[string]any{{"product_id": "incense", "quantity": "1", "price": "1000", "cost_to_distributor": "600"}},
		"amount_paid":    "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SaleDTO](t, rec).ID
}

func TestCreateCustomer_AndGet(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/customers", map[string]any{
		"name": "Harbour Kiosk", "credit_limit": "5000", "credit_days": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[CustomerDTO](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Version)

	rec = do(t, router, http.MethodGet, "/api/customers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[CustomerDTO](t, rec)
	assert.Equal(t, "Harbour Kiosk", got.Name)
	assert.True(t, money("5000").Equal(got.CreditLimit))

	rec = do(t, router, http.MethodGet, "/api/customers/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ledger.CodeCustomerNotFound, decode[ErrorResponse](t, rec).Code)
}

func TestCreateCustomer_InvalidBody(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/customers", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettlement_PreviewThenSettle(t *testing.T) {
	// GIVEN: a distributor owing 500 and a sale with margin 400
	_, router := newTestServer(t)
	saleID := seedDistributorSale(t, router, "500")
	body := map[string]any{"sale_ids": []string{saleID}}

	// WHEN: previewing
	rec := do(t, router, http.MethodPost, "/api/distributors/d1/settlements/preview", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[PreviewDTO](t, rec)

	// THEN: the margin clears 400 of the debt and nothing is written
	assert.True(t, money("400").Equal(preview.Settlement.AppliedOutstandingBalance))
	assert.True(t, preview.Settlement.SettlementAmount.IsZero())
	assert.True(t, money("100").Equal(preview.After.OutstandingBalance))
	assert.Empty(t, preview.Settlement.Number)

	rec = do(t, router, http.MethodGet, "/api/customers/d1", nil)
	assert.True(t, money("500").Equal(decode[CustomerDTO](t, rec).OutstandingBalance))

	// WHEN: settling
	rec = do(t, router, http.MethodPost, "/api/distributors/d1/settlements", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decode[SettlementDTO](t, rec)

	// THEN
	assert.Equal(t, "STL-001", st.Number)
	assert.Equal(t, string(ledger.DirectionEven), st.Direction)
	assert.Equal(t, "2025-06-03", st.PeriodStart)

	rec = do(t, router, http.MethodGet, "/api/distributors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries := decode[[]DistributorSummaryDTO](t, rec)
	require.Len(t, summaries, 1)
	assert.True(t, money("100").Equal(summaries[0].OutstandingBalance))
	assert.Equal(t, 0, summaries[0].UnsettledSales)
	assert.Equal(t, 1, summaries[0].Settlements)

	rec = do(t, router, http.MethodGet, "/api/settlements/"+st.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{saleID}, decode[SettlementDTO](t, rec).SaleIDs)

	rec = do(t, router, http.MethodGet, "/api/distributors/d1/settlements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]SettlementDTO](t, rec), 1)

	// WHEN: settling the same sale again
	rec = do(t, router, http.MethodPost, "/api/distributors/d1/settlements", body)

	// THEN: rejected with the offending id
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, ledger.CodeSaleAlreadySettled, errResp.Code)
	assert.Equal(t, []string{saleID}, errResp.IDs)
}

func TestSettlement_Rejections(t *testing.T) {
	_, router := newTestServer(t)
	saleID := seedDistributorSale(t, router, "0")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"empty selection", "/api/distributors/d1/settlements", map[string]any{"sale_ids": []string{}}, http.StatusBadRequest, ledger.CodeEmptySaleSelection},
		{"unknown distributor", "/api/distributors/ghost/settlements", map[string]any{"sale_ids": []string{saleID}}, http.StatusNotFound, ledger.CodeDistributorNotFound},
		{"unknown sale", "/api/distributors/d1/settlements", map[string]any{"sale_ids": []string{"missing"}}, http.StatusBadRequest, ledger.CodeSaleNotFound},
		{"customer is not a distributor", "/api/distributors/c1/settlements/preview", map[string]any{"sale_ids": []string{saleID}}, http.StatusNotFound, ledger.CodeDistributorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	rec := do(t, router, http.MethodGet, "/api/settlements/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUnsettled(t *testing.T) {
	_, router := newTestServer(t)
	saleID := seedDistributorSale(t, router, "0")

	rec := do(t, router, http.MethodPost, "/api/expenses", map[string]any{
		"category": "distributor_payment", "distributor_id": "d1", "amount": "150", "date": "2025-06-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/distributors/d1/unsettled", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decode[UnsettledDTO](t, rec)
	require.Len(t, u.Sales, 1)
	assert.Equal(t, saleID, u.Sales[0].ID)
	assert.True(t, money("400").Equal(u.FinalMargin))
	assert.True(t, money("150").Equal(u.TotalAdvances))

	rec = do(t, router, http.MethodGet, "/api/distributors/d1/unsettled?from=2025-07-01&to=2025-07-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[UnsettledDTO](t, rec).Sales)

	rec = do(t, router, http.MethodGet, "/api/distributors/d1/unsettled?from=2025-07-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/distributors/d1/unsettled?from=2025-07-31&to=2025-07-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllocatePayment(t *testing.T) {
	// GIVEN: a customer with two unpaid invoices
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/customers", map[string]any{"id": "c1", "name": "Shop", "outstanding_balance": "300"})
	require.Equal(t, http.StatusCreated, rec.Code)
	for _, date := range []string{"2025-06-01", "2025-06-05"} {
		rec = do(t, router, http.MethodPost, "/api/sales", map[string]any{
			"customer_id": "c1",
			"date":        date,
			"items":       []map[string]any{{"product_id": "p", "quantity": "1", "price": "150"}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	// WHEN: a payment covering one and a half invoices arrives
	rec = do(t, router, http.MethodPost, "/api/customers/c1/payments", map[string]any{"amount": "225", "mode": "online"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[AllocationResultDTO](t, rec)

	// THEN: the oldest invoice is paid first
	require.Len(t, res.Allocations, 2)
	assert.Equal(t, "INV-001", res.Allocations[0].InvoiceNumber)
	assert.Equal(t, string(ledger.StatusPaid), res.Allocations[0].PaymentStatus)
	assert.True(t, money("75").Equal(res.Allocations[1].Amount))
	assert.True(t, money("75").Equal(res.Customer.OutstandingBalance))
	assert.True(t, res.Unallocated.IsZero())

	rec = do(t, router, http.MethodPost, "/api/customers/c1/payments", map[string]any{"amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ledger.CodeInvalidAmount, decode[ErrorResponse](t, rec).Code)
}

func TestRecordSalePayment(t *testing.T) {
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/customers", map[string]any{"id": "c1", "name": "Shop"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/sales", map[string]any{
		"customer_id": "c1",
		"items":       []map[string]any{{"product_id": "p", "quantity": "2", "price": "50"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[SaleDTO](t, rec)
	assert.True(t, money("100").Equal(sale.TotalAmount))
	assert.Equal(t, string(ledger.StatusUnpaid), sale.PaymentStatus)

	rec = do(t, router, http.MethodPost, "/api/sales/"+sale.ID+"/payments", map[string]any{"amount": "40", "date": "2025-06-09"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[SaleDTO](t, rec)
	assert.Equal(t, string(ledger.StatusPartial), updated.PaymentStatus)
	assert.True(t, money("60").Equal(updated.Due))
	require.Len(t, updated.Payments, 1)
	assert.Equal(t, "cash", updated.Payments[0].Mode)

	rec = do(t, router, http.MethodPost, "/api/sales/"+sale.ID+"/payments", map[string]any{"amount": "10", "date": "06/09/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/sales?customer_id=c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]SaleDTO](t, rec), 1)
}

func TestExpenses_GeneralAndAdvance(t *testing.T) {
	_, router := newTestServer(t)
	seedDistributorSale(t, router, "0")

	rec := do(t, router, http.MethodPost, "/api/expenses", map[string]any{"category": "rent", "amount": "1200", "date": "2025-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, decode[ExpenseDTO](t, rec).DistributorID)

	rec = do(t, router, http.MethodPost, "/api/expenses", map[string]any{"category": "distributor_payment", "distributor_id": "d1", "amount": "300"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "d1", decode[ExpenseDTO](t, rec).DistributorID)

	rec = do(t, router, http.MethodPost, "/api/expenses", map[string]any{"category": "distributor_payment", "distributor_id": "ghost", "amount": "300"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/expenses", map[string]any{"category": "bribes", "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/expenses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ExpenseDTO](t, rec), 2)

	rec = do(t, router, http.MethodGet, "/api/expenses?distributor_id=d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	advances := decode[[]ExpenseDTO](t, rec)
	require.Len(t, advances, 1)
	assert.Equal(t, string(ledger.ExpenseDistributorPayment), advances[0].Category)
}

func TestExpenses_DistributorPaymentClearsPending(t *testing.T) {
	// GIVEN: a settlement leaves 400 pending for d1
	_, router := newTestServer(t)
	saleID := seedDistributorSale(t, router, "0")
	rec := do(t, router, http.MethodPost, "/api/distributors/d1/settlements", map[string]any{"sale_ids": []string{saleID}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: d1 is paid 500
	rec = do(t, router, http.MethodPost, "/api/expenses", map[string]any{"category": "distributor_payment", "distributor_id": "d1", "amount": "500"})

	// THEN: pending is paid off and only 100 stays open as an advance
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paid := decode[ExpenseDTO](t, rec)
	require.NotNil(t, paid.PendingCleared)
	require.NotNil(t, paid.OpenAdvance)
	assert.True(t, money("400").Equal(*paid.PendingCleared))
	assert.True(t, money("100").Equal(*paid.OpenAdvance))

	rec = do(t, router, http.MethodGet, "/api/customers/d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[CustomerDTO](t, rec).PendingPayment.IsZero())

	rec = do(t, router, http.MethodGet, "/api/distributors/d1/unsettled", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, money("100").Equal(decode[UnsettledDTO](t, rec).TotalAdvances))
}

func TestExportStatement(t *testing.T) {
	// GIVEN: a settled sale
	_, router := newTestServer(t)
	saleID := seedDistributorSale(t, router, "0")
	rec := do(t, router, http.MethodPost, "/api/distributors/d1/settlements", map[string]any{"sale_ids": []string{saleID}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decode[SettlementDTO](t, rec)

	// WHEN
	rec = do(t, router, http.MethodGet, "/api/settlements/"+st.ID+"/statement.xlsx", nil)

	// THEN: a workbook carrying the settlement number
	require.Equal(t, http.StatusOK, rec.Code)
	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "STL-001_North Sticks.xlsx", params["filename"])
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	number, err := f.GetCellValue("Settlement", "B1")
	require.NoError(t, err)
	assert.Equal(t, "STL-001", number)

	rec = do(t, router, http.MethodGet, "/api/settlements/missing/statement.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteServiceError_StatusMapping(t *testing.T) {
	h := NewHandler(store.NewTxMemory(), nil)

	tests := []struct {
		err    error
		status int
	}{
		{ledger.NewValidationError(ledger.CodeDistributorNotFound, ledger.ErrDistributorNotFound, "distributor not found", "d1"), http.StatusNotFound},
		{ledger.ErrSettlementNotFound, http.StatusNotFound},
		{fmt.Errorf("save: %w", ledger.ErrConcurrentModification), http.StatusConflict},
		{ledger.NewValidationError(ledger.CodeSaleAlreadySettled, ledger.ErrSaleAlreadySettled, "sale already settled", "s1"), http.StatusBadRequest},
		{ledger.ErrInvalidPeriod, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, "failed", tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.err.Error(), decode[ErrorResponse](t, rec).Details)
		})
	}
}
