package settlement

import (
	"context"
	"fmt"

	"github.com/stickflow/backoffice/ledger"
)

// Apply writes a reconciled plan to s. It is the only code path that sets
// Sale.SettlementID or Expense.SettlementID, or moves distributor balances
// for settlement purposes.
//
// Steps, in order:
//  1. distributor balances (checked against plan.Before and plan.Version)
//  2. append the settlement record
//  3. mark the sales settled
//  4. mark the advances settled
//
// s must be a transactional view (TxStore.WithTx): Apply returns on the
// first failure and relies on the caller's rollback.
func Apply(ctx context.Context, s ledger.Store, plan *Plan) error {
	st := plan.Settlement

	// 1. Distributor balances
	customers, err := s.Customers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load customers: %w", err)
	}
	i, ok := ledger.FindCustomer(customers, st.DistributorID)
	if !ok || !customers[i].IsDistributor {
		return ledger.NewValidationError(ledger.CodeDistributorNotFound, ledger.ErrDistributorNotFound,
			"distributor not found", string(st.DistributorID))
	}
	current := customers[i]
	if current.Version != plan.Version || !current.Balances.Equal(plan.Before) {
		return fmt.Errorf("distributor %s: %w", current.ID, ledger.ErrConcurrentModification)
	}
	after := ApplyToBalances(current.Balances, st)
	if err := after.Validate(); err != nil {
		return err
	}
	customers[i].Balances = after
	if err := s.SetCustomers(ctx, customers); err != nil {
		return fmt.Errorf("failed to update distributor balances: %w", err)
	}

	// 2. Settlement record
	settlements, err := s.Settlements(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settlements: %w", err)
	}
	for _, existing := range settlements {
		if existing.ID == st.ID {
			return ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
				"settlement already recorded", string(st.ID))
		}
	}
	if err := s.SetSettlements(ctx, append(settlements, st.Clone())); err != nil {
		return fmt.Errorf("failed to append settlement: %w", err)
	}

	// 3. Sales
	sales, err := s.Sales(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sales: %w", err)
	}
	for _, id := range st.SaleIDs {
		j, ok := ledger.FindSale(sales, id)
		if !ok {
			return ledger.NewValidationError(ledger.CodeSaleNotFound, ledger.ErrSaleNotFound,
				"sale not found", string(id))
		}
		if sales[j].IsSettled() {
			return ledger.NewValidationError(ledger.CodeSaleAlreadySettled, ledger.ErrSaleAlreadySettled,
				"sale already settled", string(id))
		}
		sales[j].SettlementID = st.ID
	}
	if err := s.SetSales(ctx, sales); err != nil {
		return fmt.Errorf("failed to mark sales settled: %w", err)
	}

	// 4. Advances
	if len(st.ExpenseIDs) == 0 {
		return nil
	}
	expenses, err := s.Expenses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load expenses: %w", err)
	}
	for _, id := range st.ExpenseIDs {
		j, ok := ledger.FindExpense(expenses, id)
		if !ok {
			return ledger.NewValidationError(ledger.CodeExpenseNotFound, ledger.ErrExpenseNotFound,
				"expense not found", string(id))
		}
		if expenses[j].IsSettled() {
			return ledger.NewValidationError(ledger.CodeExpenseAlreadySettled, ledger.ErrExpenseAlreadySettled,
				"expense already settled", string(id))
		}
		expenses[j].SettlementID = st.ID
	}
	if err := s.SetExpenses(ctx, expenses); err != nil {
		return fmt.Errorf("failed to mark expenses settled: %w", err)
	}
	return nil
}
