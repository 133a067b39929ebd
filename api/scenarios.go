/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a distributor,
	its end customers, invoices and advances, each set up so that settling
	it demonstrates one reconciliation outcome.

AVAILABLE SCENARIOS:

	margin-clears-debt:  Margin pays off most of an outstanding debt
	advance-payable:     Advance offset, debt cleared, remainder payable
	negative-margin:     Under-collection turns into a receivable
	nothing-to-settle:   Distributor with no open sales (empty selection)
	already-settled:     Sale that was settled before (double settlement)

HOW SCENARIOS WORK:
 1. Reset the store (clear all data and sequences)
 2. Create distributors and their customers
 3. Create numbered invoices with payments
 4. Add advances and past settlements
 5. Write everything in one transaction, reset included; a failed
    load leaves the previous data in place

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "advance-payable"}

	then settle the listed sale ids:
	POST /api/distributors/dist-north/settlements
	{"sale_ids": ["sale-north-1", "sale-north-2"], "expense_ids": ["adv-north-1"]}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(b)
 3. Add case to scenarioLoader

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: settlement endpoints used after loading
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stickflow/backoffice/ledger"
	"github.com/stickflow/backoffice/settlement"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "margin-clears-debt",
		Name:        "Margin Clears Debt",
		Description: "Outstanding 500, collected 1000, billed 600: settling leaves 100 outstanding and nothing payable",
		Category:    "settlement",
	},
	{
		ID:          "advance-payable",
		Name:        "Advance And Payable",
		Description: "Outstanding 500, two sales (collected 3000, billed 1000), advance 300: debt cleared, 1200 payable",
		Category:    "settlement",
	},
	{
		ID:          "negative-margin",
		Name:        "Negative Margin",
		Description: "Collected 200 against billed 500: the distributor owes 300",
		Category:    "settlement",
	},
	{
		ID:          "nothing-to-settle",
		Name:        "Nothing To Settle",
		Description: "Distributor with no open sales: settling is rejected as an empty selection",
		Category:    "edge-case",
	},
	{
		ID:          "already-settled",
		Name:        "Already Settled",
		Description: "A sale included in an earlier settlement: settling it again is rejected",
		Category:    "edge-case",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	load := scenarioLoader(req.ScenarioID)
	if load == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	base := ledger.PreviousMonth(ledger.DayOf(time.Now())).Start
	err := h.Store.WithTx(ctx, func(tx ledger.Store) error {
		if err := resetStore(ctx, tx); err != nil {
			return err
		}
		b := &scenarioBuilder{ctx: ctx, tx: tx, base: base}
		load(b)
		return b.commit()
	})
	if err != nil {
		h.writeServiceError(w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// resetStore empties the store inside the loading transaction, so a failed
// load keeps the previous data. Transactions with a Reset method also
// restart their document sequences.
func resetStore(ctx context.Context, tx ledger.Store) error {
	if rs, ok := tx.(interface{ Reset(context.Context) error }); ok {
		return rs.Reset(ctx)
	}
	if err := tx.SetSettlements(ctx, nil); err != nil {
		return err
	}
	if err := tx.SetExpenses(ctx, nil); err != nil {
		return err
	}
	if err := tx.SetSales(ctx, nil); err != nil {
		return err
	}
	return tx.SetCustomers(ctx, nil)
}

func scenarioLoader(id string) func(*scenarioBuilder) {
	switch id {
	case "margin-clears-debt":
		return loadMarginClearsDebtScenario
	case "advance-payable":
		return loadAdvancePayableScenario
	case "negative-margin":
		return loadNegativeMarginScenario
	case "nothing-to-settle":
		return loadNothingToSettleScenario
	case "already-settled":
		return loadAlreadySettledScenario
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadMarginClearsDebtScenario(b *scenarioBuilder) {
	b.distributor("dist-north", "North Sticks Distribution", "500", "0")
	b.customer("cust-north-1", "Lakeside Store", "dist-north")

	b.sale("sale-north-1", "cust-north-1", "dist-north", 3, "1000", "600", "1000")
}

func loadAdvancePayableScenario(b *scenarioBuilder) {
	b.distributor("dist-north", "North Sticks Distribution", "500", "0")
	b.customer("cust-north-1", "Lakeside Store", "dist-north")
	b.customer("cust-north-2", "Hilltop Mart", "dist-north")

	b.sale("sale-north-1", "cust-north-1", "dist-north", 4, "2000", "600", "2000")
	b.sale("sale-north-2", "cust-north-2", "dist-north", 11, "1000", "400", "1000")
	b.advance("adv-north-1", "dist-north", 15, "300")
}

func loadNegativeMarginScenario(b *scenarioBuilder) {
	b.distributor("dist-south", "South Coast Traders", "0", "0")
	b.customer("cust-south-1", "Harbour Kiosk", "dist-south")

	// No distributor cost: billed at the invoice price.
	b.sale("sale-south-1", "cust-south-1", "dist-south", 8, "500", "", "200")
}

func loadNothingToSettleScenario(b *scenarioBuilder) {
	b.distributor("dist-west", "West Valley Supply", "250", "0")
	b.customer("cust-west-1", "Orchard Grocer", "dist-west")

	// A direct sale: no distributor involved.
	b.sale("sale-direct-1", "cust-west-1", "", 5, "300", "", "300")
}

func loadAlreadySettledScenario(b *scenarioBuilder) {
	b.distributor("dist-east", "East Ridge Wholesale", "0", "0")
	b.customer("cust-east-1", "Riverside Pharmacy", "dist-east")

	b.sale("sale-east-1", "cust-east-1", "dist-east", 2, "800", "500", "800")
	b.settle("settle-east-1", "dist-east", 20, "sale-east-1")
	b.sale("sale-east-2", "cust-east-1", "dist-east", 22, "400", "250", "400")
}

// =============================================================================
// SCENARIO BUILDER
// =============================================================================

// scenarioBuilder collects scenario records and writes them in one go.
// Days are offsets from base, the first day of last month. The first
// error sticks; later calls are no-ops.
type scenarioBuilder struct {
	ctx  context.Context
	tx   ledger.Store
	base ledger.Day
	err  error

	customers   []ledger.Customer
	sales       []ledger.Sale
	expenses    []ledger.Expense
	settlements []ledger.Settlement
}

func (b *scenarioBuilder) day(offset int) ledger.Day {
	return b.base.AddDays(offset - 1)
}

func (b *scenarioBuilder) distributor(id, name, outstanding, pending string) {
	b.customers = append(b.customers, ledger.Customer{
		ID:            ledger.CustomerID(id),
		Name:          name,
		IsDistributor: true,
		CreditDays:    30,
		Balances: ledger.Balances{
			Outstanding: decimal.RequireFromString(outstanding),
			Pending:     decimal.RequireFromString(pending),
		},
	})
}

func (b *scenarioBuilder) customer(id, name, distributorID string) {
	b.customers = append(b.customers, ledger.Customer{
		ID:                      ledger.CustomerID(id),
		Name:                    name,
		CreditDays:              15,
		AffiliatedDistributorID: ledger.CustomerID(distributorID),
	})
}

// sale adds a one-item invoice. An empty cost bills the distributor at
// price; a zero paid leaves the invoice unpaid.
func (b *scenarioBuilder) sale(id, customerID, distributorID string, day int, price, cost, paid string) {
	if b.err != nil {
		return
	}
	n, err := b.tx.NextSequence(b.ctx, ledger.SeqInvoice)
	if err != nil {
		b.err = err
		return
	}

	item := ledger.SaleItem{
		ProductID: "incense-box",
		Quantity:  decimal.NewFromInt(1),
		Price:     decimal.RequireFromString(price),
	}
	if cost != "" {
		c := decimal.RequireFromString(cost)
		item.CostToDistributor = &c
	}

	sale := ledger.Sale{
		ID:            ledger.SaleID(id),
		InvoiceNumber: ledger.FormatNumber("INV", n),
		CustomerID:    ledger.CustomerID(customerID),
		DistributorID: ledger.CustomerID(distributorID),
		Date:          b.day(day),
		Items:         []ledger.SaleItem{item},
		TotalAmount:   item.Price,
	}
	if amount := decimal.RequireFromString(paid); amount.IsPositive() {
		sale.Payments = []ledger.Payment{{
			ID:     ledger.PaymentID(ledger.NewID("pay")),
			Amount: amount,
			Date:   sale.Date,
			Mode:   ledger.PaymentCash,
		}}
	}
	b.sales = append(b.sales, sale)
}

func (b *scenarioBuilder) advance(id, distributorID string, day int, amount string) {
	b.expenses = append(b.expenses, ledger.Expense{
		ID:            ledger.ExpenseID(id),
		Category:      ledger.ExpenseDistributorPayment,
		DistributorID: ledger.CustomerID(distributorID),
		Amount:        decimal.RequireFromString(amount),
		Date:          b.day(day),
		Description:   "Advance against next settlement",
	})
}

// settle records a past settlement of already-added sales and applies it
// to the distributor's balances, the way Settle would have.
func (b *scenarioBuilder) settle(id, distributorID string, day int, saleIDs ...string) {
	if b.err != nil {
		return
	}

	var sel settlement.Selection
	for i := range b.customers {
		if d, ok := b.customers[i].AsDistributor(); ok && d.ID == ledger.CustomerID(distributorID) {
			sel.Distributor = d
		}
	}
	sel.Sales = b.sales
	for _, sid := range saleIDs {
		sel.SaleIDs = append(sel.SaleIDs, ledger.SaleID(sid))
	}

	r := settlement.NewReconciler()
	r.Now = func() time.Time { return b.day(day).Time }
	r.NewID = func() ledger.SettlementID { return ledger.SettlementID(id) }
	plan, err := r.Reconcile(sel)
	if err != nil {
		b.err = err
		return
	}
	n, err := b.tx.NextSequence(b.ctx, ledger.SeqSettlement)
	if err != nil {
		b.err = err
		return
	}
	plan.Settlement.Number = ledger.FormatNumber("STL", n)

	for i := range b.sales {
		for _, sid := range plan.Settlement.SaleIDs {
			if b.sales[i].ID == sid {
				b.sales[i].SettlementID = plan.Settlement.ID
			}
		}
	}
	for i := range b.customers {
		if b.customers[i].ID == sel.Distributor.ID {
			b.customers[i].Balances = plan.After
		}
	}
	b.settlements = append(b.settlements, plan.Settlement)
}

func (b *scenarioBuilder) commit() error {
	if b.err != nil {
		return b.err
	}
	if err := b.tx.SetCustomers(b.ctx, b.customers); err != nil {
		return err
	}
	if err := b.tx.SetSales(b.ctx, b.sales); err != nil {
		return err
	}
	if err := b.tx.SetExpenses(b.ctx, b.expenses); err != nil {
		return err
	}
	return b.tx.SetSettlements(b.ctx, b.settlements)
}
