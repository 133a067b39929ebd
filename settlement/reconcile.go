package settlement

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickflow/backoffice/ledger"
)

// Selection is the input to Reconcile.
type Selection struct {
	Distributor ledger.Distributor

	// Sales and Expenses are the candidate records the selected ids are
	// resolved against (usually the whole collections).
	Sales    []ledger.Sale
	Expenses []ledger.Expense

	SaleIDs    []ledger.SaleID
	ExpenseIDs []ledger.ExpenseID
}

// Plan is a reconciled settlement that has not been applied yet.
type Plan struct {
	Settlement ledger.Settlement

	// Before is the distributor's balances the plan was computed from and
	// Version the customer row version. Apply refuses to run if either
	// has moved.
	Before  ledger.Balances
	Version int64

	// After is Before with the settlement applied.
	After ledger.Balances
}

// Reconciler turns a Selection into a Plan.
type Reconciler struct {
	Now   func() time.Time
	NewID func() ledger.SettlementID
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		Now:   time.Now,
		NewID: func() ledger.SettlementID { return ledger.SettlementID(ledger.NewID("settle")) },
	}
}

// Reconcile validates the selection and computes the settlement.
//
// Steps:
//  1. finalMargin over the selected sales
//  2. adjustments = sum of the selected advances' open amounts
//  3. afterAdvances = finalMargin - adjustments
//  4. applied = min(outstanding, max(0, afterAdvances))
//  5. amount = afterAdvances - applied
func (r *Reconciler) Reconcile(sel Selection) (*Plan, error) {
	if len(sel.SaleIDs) == 0 {
		return nil, ledger.NewValidationError(ledger.CodeEmptySaleSelection, ledger.ErrEmptySaleSelection,
			"select at least one sale to settle")
	}

	d := sel.Distributor
	sales, err := selectSales(d.ID, sel.Sales, sel.SaleIDs)
	if err != nil {
		return nil, err
	}
	expenses, err := selectAdvances(d.ID, sel.Expenses, sel.ExpenseIDs)
	if err != nil {
		return nil, err
	}

	margin := CalculateMargin(sales)

	adjustments := decimal.Zero
	for _, e := range expenses {
		adjustments = adjustments.Add(e.AdvanceAmount())
	}

	afterAdvances := margin.FinalMargin.Sub(adjustments)
	applied := decimal.Min(d.Outstanding, decimal.Max(decimal.Zero, afterAdvances))
	amount := afterAdvances.Sub(applied)

	st := ledger.Settlement{
		ID:                        r.NewID(),
		DistributorID:             d.ID,
		SettledOn:                 ledger.DayOf(r.Now()),
		SaleIDs:                   make([]ledger.SaleID, len(sales)),
		ExpenseIDs:                make([]ledger.ExpenseID, len(expenses)),
		TotalSalesValue:           margin.Collected,
		TotalDistributorValue:     margin.Billed,
		FinalMargin:               margin.FinalMargin,
		Adjustments:               adjustments,
		AppliedOutstandingBalance: applied,
		SettlementAmount:          amount,
	}
	for i, s := range sales {
		st.SaleIDs[i] = s.ID
		if i == 0 || s.Date.Before(st.PeriodStart) {
			st.PeriodStart = s.Date
		}
		if i == 0 || s.Date.After(st.PeriodEnd) {
			st.PeriodEnd = s.Date
		}
	}
	for i, e := range expenses {
		st.ExpenseIDs[i] = e.ID
	}

	return &Plan{
		Settlement: st,
		Before:     d.Balances,
		Version:    d.Version,
		After:      ApplyToBalances(d.Balances, st),
	}, nil
}

// ApplyToBalances returns b after settling st:
//   - outstanding drops by the applied debt
//   - a positive amount is added to pending
//   - a negative amount is added to outstanding
func ApplyToBalances(b ledger.Balances, st ledger.Settlement) ledger.Balances {
	out := ledger.Balances{
		Outstanding: b.Outstanding.Sub(st.AppliedOutstandingBalance),
		Pending:     b.Pending,
	}
	switch {
	case st.SettlementAmount.IsPositive():
		out.Pending = out.Pending.Add(st.SettlementAmount)
	case st.SettlementAmount.IsNegative():
		out.Outstanding = out.Outstanding.Add(st.SettlementAmount.Abs())
	}
	return out
}

func selectSales(distributorID ledger.CustomerID, all []ledger.Sale, ids []ledger.SaleID) ([]ledger.Sale, error) {
	var (
		out                       []ledger.Sale
		missing, foreign, settled []string
	)
	seen := make(map[ledger.SaleID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		i, ok := ledger.FindSale(all, id)
		switch {
		case !ok:
			missing = append(missing, string(id))
		case all[i].DistributorID != distributorID:
			foreign = append(foreign, string(id))
		case all[i].IsSettled():
			settled = append(settled, string(id))
		default:
			out = append(out, all[i])
		}
	}

	switch {
	case len(missing) > 0:
		return nil, ledger.NewValidationError(ledger.CodeSaleNotFound, ledger.ErrSaleNotFound,
			"selected sales do not exist", missing...)
	case len(foreign) > 0:
		return nil, ledger.NewValidationError(ledger.CodeSaleNotForDistributor, ledger.ErrSaleNotForDistributor,
			"selected sales belong to another distributor", foreign...)
	case len(settled) > 0:
		return nil, ledger.NewValidationError(ledger.CodeSaleAlreadySettled, ledger.ErrSaleAlreadySettled,
			"selected sales are already settled", settled...)
	}
	return out, nil
}

func selectAdvances(distributorID ledger.CustomerID, all []ledger.Expense, ids []ledger.ExpenseID) ([]ledger.Expense, error) {
	var (
		out                                  []ledger.Expense
		missing, wrongKind, foreign, settled []string
	)
	seen := make(map[ledger.ExpenseID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		i, ok := ledger.FindExpense(all, id)
		switch {
		case !ok:
			missing = append(missing, string(id))
		case !all[i].IsAdvance():
			wrongKind = append(wrongKind, string(id))
		case all[i].DistributorID != distributorID:
			foreign = append(foreign, string(id))
		case !all[i].IsOpenAdvance():
			// Settled, or wholly spent on the pending balance when paid.
			settled = append(settled, string(id))
		default:
			out = append(out, all[i])
		}
	}

	switch {
	case len(missing) > 0:
		return nil, ledger.NewValidationError(ledger.CodeExpenseNotFound, ledger.ErrExpenseNotFound,
			"selected expenses do not exist", missing...)
	case len(wrongKind) > 0:
		return nil, ledger.NewValidationError(ledger.CodeNotAdvancePayment, ledger.ErrNotAdvancePayment,
			"selected expenses are not distributor payments", wrongKind...)
	case len(foreign) > 0:
		return nil, ledger.NewValidationError(ledger.CodeExpenseNotForDistributor, ledger.ErrExpenseNotForDistributor,
			"selected expenses belong to another distributor", foreign...)
	case len(settled) > 0:
		return nil, ledger.NewValidationError(ledger.CodeExpenseAlreadySettled, ledger.ErrExpenseAlreadySettled,
			"selected expenses are already settled", settled...)
	}
	return out, nil
}
