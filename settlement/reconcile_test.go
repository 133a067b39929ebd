package settlement_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stickflow/backoffice/ledger"
	"github.com/stickflow/backoffice/settlement"
)

func mustDistributor(t *testing.T, c ledger.Customer) ledger.Distributor {
	t.Helper()
	d, ok := c.AsDistributor()
	require.True(t, ok)
	return d
}

// =============================================================================
// WORKED SCENARIOS
// =============================================================================

func TestReconcile_MarginClearsPartOfDebt(t *testing.T) {
	// GIVEN: outstanding 500, one sale collected 1000 billed 600, no advances
	d := mustDistributor(t, distributor("d1", "500", "0"))
	sales := []ledger.Sale{distSale("s1", "d1", 10, "1000", "600", "1000")}

	// WHEN
	plan, err := newReconciler().Reconcile(settlement.Selection{
		Distributor: d,
		Sales:       sales,
		SaleIDs:     []ledger.SaleID{"s1"},
	})
	require.NoError(t, err)

	// THEN: the whole 400 margin pays down debt, nothing changes hands
	st := plan.Settlement
	assertMoney(t, "400", st.FinalMargin, "final margin")
	assertMoney(t, "400", st.AppliedOutstandingBalance, "applied outstanding")
	assertMoney(t, "0", st.SettlementAmount, "settlement amount")
	assert.Equal(t, ledger.DirectionEven, st.Direction())
	assertMoney(t, "100", plan.After.Outstanding, "outstanding after")
	assertMoney(t, "0", plan.After.Pending, "pending after")
}

func TestReconcile_AdvancesThenDebtThenPayable(t *testing.T) {
	// GIVEN: outstanding 500, two sales collected 3000 billed 1000, advances 300
	d := mustDistributor(t, distributor("d1", "500", "0"))
	sales := []ledger.Sale{
		distSale("s1", "d1", 4, "2000", "600", "2000"),
		distSale("s2", "d1", 20, "1000", "400", "1000"),
	}
	expenses := []ledger.Expense{advance("e1", "d1", "100"), advance("e2", "d1", "200")}

	plan, err := newReconciler().Reconcile(settlement.Selection{
		Distributor: d,
		Sales:       sales,
		Expenses:    expenses,
		SaleIDs:     []ledger.SaleID{"s1", "s2"},
		ExpenseIDs:  []ledger.ExpenseID{"e1", "e2"},
	})
	require.NoError(t, err)

	st := plan.Settlement
	assertMoney(t, "2000", st.FinalMargin, "final margin")
	assertMoney(t, "300", st.Adjustments, "adjustments")
	assertMoney(t, "500", st.AppliedOutstandingBalance, "applied outstanding")
	assertMoney(t, "1200", st.SettlementAmount, "settlement amount")
	assert.Equal(t, ledger.DirectionPayable, st.Direction())
	assertMoney(t, "0", plan.After.Outstanding, "outstanding after")
	assertMoney(t, "1200", plan.After.Pending, "pending after")

	// Period spans the selected sales
	assert.Equal(t, ledger.NewDay(2025, time.June, 4), st.PeriodStart)
	assert.Equal(t, ledger.NewDay(2025, time.June, 20), st.PeriodEnd)
	assert.Equal(t, []ledger.ExpenseID{"e1", "e2"}, st.ExpenseIDs)
}

func TestReconcile_NegativeMarginBecomesReceivable(t *testing.T) {
	// GIVEN: collected 200, billed 500, no debt, no advances
	d := mustDistributor(t, distributor("d1", "0", "0"))
	sales := []ledger.Sale{distSale("s1", "d1", 8, "500", "500", "200")}

	plan, err := newReconciler().Reconcile(settlement.Selection{
		Distributor: d,
		Sales:       sales,
		SaleIDs:     []ledger.SaleID{"s1"},
	})
	require.NoError(t, err)

	st := plan.Settlement
	assertMoney(t, "-300", st.FinalMargin, "final margin")
	assertMoney(t, "0", st.AppliedOutstandingBalance, "applied outstanding")
	assertMoney(t, "-300", st.SettlementAmount, "settlement amount")
	assert.Equal(t, ledger.DirectionReceivable, st.Direction())
	assertMoney(t, "300", plan.After.Outstanding, "outstanding after")
	assertMoney(t, "0", plan.After.Pending, "pending after")
}

func TestReconcile_AdvancesExceedMargin_DebtUntouched(t *testing.T) {
	// GIVEN: margin 100, advances 400, outstanding 250
	d := mustDistributor(t, distributor("d1", "250", "0"))
	sales := []ledger.Sale{distSale("s1", "d1", 8, "300", "200", "300")}
	expenses := []ledger.Expense{advance("e1", "d1", "400")}

	plan, err := newReconciler().Reconcile(settlement.Selection{
		Distributor: d, Sales: sales, Expenses: expenses,
		SaleIDs: []ledger.SaleID{"s1"}, ExpenseIDs: []ledger.ExpenseID{"e1"},
	})
	require.NoError(t, err)

	// THEN: nothing left to pay down debt; distributor owes back 300 more
	assertMoney(t, "0", plan.Settlement.AppliedOutstandingBalance, "applied outstanding")
	assertMoney(t, "-300", plan.Settlement.SettlementAmount, "settlement amount")
	assertMoney(t, "550", plan.After.Outstanding, "outstanding after")
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestReconcile_EmptySelection_Rejected(t *testing.T) {
	d := mustDistributor(t, distributor("d1", "500", "0"))

	plan, err := newReconciler().Reconcile(settlement.Selection{
		Distributor: d,
		Sales:       []ledger.Sale{distSale("s1", "d1", 1, "10", "5", "10")},
	})

	assert.Nil(t, plan)
	assert.ErrorIs(t, err, ledger.ErrEmptySaleSelection)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, ledger.CodeEmptySaleSelection, vErr.Code)
}

func TestReconcile_AlreadySettledSale_RejectedNotFiltered(t *testing.T) {
	// GIVEN: s1 was settled earlier, s2 is fresh
	d := mustDistributor(t, distributor("d1", "0", "0"))
	settled := distSale("s1", "d1", 1, "100", "50", "100")
	settled.SettlementID = "settle-old"
	sales := []ledger.Sale{settled, distSale("s2", "d1", 2, "100", "50", "100")}

	// WHEN: stale state selects both
	_, err := newReconciler().Reconcile(settlement.Selection{
		Distributor: d, Sales: sales, SaleIDs: []ledger.SaleID{"s1", "s2"},
	})

	// THEN: the whole request fails naming s1
	require.ErrorIs(t, err, ledger.ErrSaleAlreadySettled)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"s1"}, vErr.IDs)
}

func TestReconcile_SelectionErrors(t *testing.T) {
	sales := []ledger.Sale{
		distSale("s1", "d1", 1, "100", "50", "100"),
		distSale("other", "d2", 1, "100", "50", "100"),
	}
	settledAdvance := advance("e-settled", "d1", "10")
	settledAdvance.SettlementID = "settle-old"
	expenses := []ledger.Expense{
		advance("e1", "d1", "10"),
		advance("e-other", "d2", "10"),
		settledAdvance,
		{ID: "rent", Category: ledger.ExpenseRent, Amount: money("900")},
	}

	tests := []struct {
		name       string
		saleIDs    []ledger.SaleID
		expenseIDs []ledger.ExpenseID
		want       error
	}{
		{"unknown sale", []ledger.SaleID{"s1", "nope"}, nil, ledger.ErrSaleNotFound},
		{"foreign sale", []ledger.SaleID{"other"}, nil, ledger.ErrSaleNotForDistributor},
		{"unknown expense", []ledger.SaleID{"s1"}, []ledger.ExpenseID{"nope"}, ledger.ErrExpenseNotFound},
		{"foreign expense", []ledger.SaleID{"s1"}, []ledger.ExpenseID{"e-other"}, ledger.ErrExpenseNotForDistributor},
		{"settled expense", []ledger.SaleID{"s1"}, []ledger.ExpenseID{"e-settled"}, ledger.ErrExpenseAlreadySettled},
		{"not an advance", []ledger.SaleID{"s1"}, []ledger.ExpenseID{"rent"}, ledger.ErrNotAdvancePayment},
	}

	d := mustDistributor(t, distributor("d1", "0", "0"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newReconciler().Reconcile(settlement.Selection{
				Distributor: d, Sales: sales, Expenses: expenses,
				SaleIDs: tt.saleIDs, ExpenseIDs: tt.expenseIDs,
			})
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, ledger.IsClientError(err))
		})
	}
}

func TestReconcile_DuplicateIDsCountOnce(t *testing.T) {
	d := mustDistributor(t, distributor("d1", "0", "0"))
	sales := []ledger.Sale{distSale("s1", "d1", 1, "100", "60", "100")}
	expenses := []ledger.Expense{advance("e1", "d1", "10")}

	plan, err := newReconciler().Reconcile(settlement.Selection{
		Distributor: d, Sales: sales, Expenses: expenses,
		SaleIDs:    []ledger.SaleID{"s1", "s1"},
		ExpenseIDs: []ledger.ExpenseID{"e1", "e1"},
	})
	require.NoError(t, err)

	assert.Len(t, plan.Settlement.SaleIDs, 1)
	assertMoney(t, "40", plan.Settlement.FinalMargin, "final margin")
	assertMoney(t, "10", plan.Settlement.Adjustments, "adjustments")
	assertMoney(t, "30", plan.Settlement.SettlementAmount, "settlement amount")
}

// =============================================================================
// INVARIANTS OVER MANY INPUTS
// =============================================================================

func TestReconcile_Invariants(t *testing.T) {
	// Deterministic sweep over positive, zero and negative margins,
	// advances and outstanding debt.
	rng := rand.New(rand.NewSource(42))
	amount := func(max int) string { return fmt.Sprintf("%d.%02d", rng.Intn(max), rng.Intn(100)) }

	for i := 0; i < 500; i++ {
		outstanding := amount(2000)
		pending := amount(2000)
		d := mustDistributor(t, distributor("d1", outstanding, pending))

		var (
			sales    []ledger.Sale
			saleIDs  []ledger.SaleID
			expenses []ledger.Expense
			expIDs   []ledger.ExpenseID
		)
		nSales, nAdvances := 1+rng.Intn(4), rng.Intn(3)
		for j := 0; j < nSales; j++ {
			id := fmt.Sprintf("s%d", j)
			sales = append(sales, distSale(id, "d1", j+1, amount(1500), amount(1500), amount(1500)))
			saleIDs = append(saleIDs, ledger.SaleID(id))
		}
		for j := 0; j < nAdvances; j++ {
			id := fmt.Sprintf("e%d", j)
			expenses = append(expenses, advance(id, "d1", amount(800)))
			expIDs = append(expIDs, ledger.ExpenseID(id))
		}

		plan, err := newReconciler().Reconcile(settlement.Selection{
			Distributor: d, Sales: sales, Expenses: expenses,
			SaleIDs: saleIDs, ExpenseIDs: expIDs,
		})
		require.NoError(t, err)
		st := plan.Settlement

		// Balance conservation
		assert.False(t, st.AppliedOutstandingBalance.IsNegative(), "applied >= 0")
		assert.True(t, st.AppliedOutstandingBalance.LessThanOrEqual(d.Outstanding), "applied <= outstanding")

		// Sign correctness
		want := st.FinalMargin.Sub(st.Adjustments).Sub(st.AppliedOutstandingBalance)
		assert.True(t, want.Equal(st.SettlementAmount), "amount = margin - adjustments - applied")
		assert.True(t, st.FinalMargin.Equal(st.TotalSalesValue.Sub(st.TotalDistributorValue)))

		// Non-negativity after apply
		assert.NoError(t, plan.After.Validate())

		// Debt is only paid down when something is left after advances
		if !st.FinalMargin.Sub(st.Adjustments).IsPositive() {
			assert.True(t, st.AppliedOutstandingBalance.IsZero())
		}
		// Positive amount only when all debt was cleared
		if st.SettlementAmount.IsPositive() {
			assert.True(t, st.AppliedOutstandingBalance.Equal(d.Outstanding))
			assert.True(t, plan.After.Outstanding.IsZero())
		}
		assert.True(t, plan.After.Pending.GreaterThanOrEqual(d.Pending))
	}
}

func TestApplyToBalances(t *testing.T) {
	before := ledger.Balances{Outstanding: money("100"), Pending: money("50")}

	tests := []struct {
		name            string
		applied, amount string
		wantOut         string
		wantPending     string
	}{
		{"payable", "100", "25", "0", "75"},
		{"receivable", "0", "-40", "140", "50"},
		{"even", "60", "0", "40", "50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := settlement.ApplyToBalances(before, ledger.Settlement{
				AppliedOutstandingBalance: money(tt.applied),
				SettlementAmount:          money(tt.amount),
			})
			assertMoney(t, tt.wantOut, after.Outstanding, "outstanding")
			assertMoney(t, tt.wantPending, after.Pending, "pending")
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := ledger.NewValidationError(ledger.CodeSaleAlreadySettled, ledger.ErrSaleAlreadySettled,
		"selected sales are already settled", "s1", "s2")

	assert.Equal(t, "selected sales are already settled: s1, s2", err.Error())
	assert.True(t, errors.Is(err, ledger.ErrSaleAlreadySettled))
}
