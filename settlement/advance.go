package settlement

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stickflow/backoffice/ledger"
)

// AdvanceRequest records money paid to a distributor.
type AdvanceRequest struct {
	DistributorID ledger.CustomerID
	Amount        decimal.Decimal
	Date          ledger.Day
	Description   string
}

// RecordAdvance stores a DistributorPayment expense. The payment first
// pays off the distributor's pending balance (never below zero); only the
// excess stays open as an advance for a later settlement to offset.
func (s *Service) RecordAdvance(ctx context.Context, req AdvanceRequest) (*ledger.Expense, error) {
	if !req.Amount.IsPositive() {
		return nil, ledger.NewValidationError(ledger.CodeInvalidAmount, ledger.ErrInvalidAmount,
			"advance amount must be positive")
	}
	if req.Date.IsZero() {
		req.Date = ledger.DayOf(s.Reconciler.Now())
	}

	expense := ledger.Expense{
		ID:            ledger.ExpenseID(ledger.NewID("exp")),
		Category:      ledger.ExpenseDistributorPayment,
		DistributorID: req.DistributorID,
		Amount:        req.Amount,
		Date:          req.Date,
		Description:   req.Description,
	}

	unlock := s.locks.lock(req.DistributorID)
	defer unlock()

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		customers, err := tx.Customers(ctx)
		if err != nil {
			return err
		}
		d, err := ledger.LookupDistributor(customers, req.DistributorID)
		if err != nil {
			return err
		}

		expense.PendingCleared = decimal.Min(d.Pending, req.Amount)
		if expense.PendingCleared.IsPositive() {
			i, _ := ledger.FindCustomer(customers, d.ID)
			customers[i].Pending = customers[i].Pending.Sub(expense.PendingCleared)
			if err := tx.SetCustomers(ctx, customers); err != nil {
				return err
			}
		}

		expenses, err := tx.Expenses(ctx)
		if err != nil {
			return err
		}
		return tx.SetExpenses(ctx, append(expenses, expense))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("distributor payment recorded",
		zap.String("distributor_id", string(req.DistributorID)),
		zap.String("expense_id", string(expense.ID)),
		zap.Stringer("amount", expense.Amount),
		zap.Stringer("pending_cleared", expense.PendingCleared),
		zap.Stringer("open_advance", expense.AdvanceAmount()),
	)
	return &expense, nil
}
