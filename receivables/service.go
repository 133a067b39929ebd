// Package receivables records what end customers owe and pay: customers,
// invoices, payments against invoices and general expenses. Distributor
// settlement lives in package settlement; everything here refuses to touch
// a sale once it has been settled.
package receivables

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stickflow/backoffice/ledger"
)

type Service struct {
	Store  ledger.TxStore
	Logger *zap.Logger
	Now    func() time.Time
}

func NewService(store ledger.TxStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Logger: logger.Named("receivables"), Now: time.Now}
}

func (s *Service) today() ledger.Day { return ledger.DayOf(s.Now()) }

// =============================================================================
// CUSTOMERS
// =============================================================================

// CreateCustomer adds a customer. Balances start at zero unless given.
func (s *Service) CreateCustomer(ctx context.Context, c ledger.Customer) (*ledger.Customer, error) {
	if c.Name == "" {
		return nil, ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput, "customer name is required")
	}
	if err := c.Balances.Validate(); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = ledger.CustomerID(ledger.NewID("cust"))
	}
	c.Version = 0

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		customers, err := tx.Customers(ctx)
		if err != nil {
			return err
		}
		if _, exists := ledger.FindCustomer(customers, c.ID); exists {
			return ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
				"customer already exists", string(c.ID))
		}
		if c.AffiliatedDistributorID != "" {
			if _, err := ledger.LookupDistributor(customers, c.AffiliatedDistributorID); err != nil {
				return err
			}
		}
		return tx.SetCustomers(ctx, append(customers, c))
	})
	if err != nil {
		return nil, err
	}
	c.Version = 1
	s.Logger.Info("customer created",
		zap.String("customer_id", string(c.ID)),
		zap.Bool("distributor", c.IsDistributor),
	)
	return &c, nil
}

func (s *Service) Customer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	customers, err := s.Store.Customers(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := ledger.FindCustomer(customers, id)
	if !ok {
		return nil, ledger.NewValidationError(ledger.CodeCustomerNotFound, ledger.ErrCustomerNotFound,
			"customer not found", string(id))
	}
	return &customers[i], nil
}

// =============================================================================
// SALES
// =============================================================================

// SaleInput describes a new invoice. TotalAmount defaults to the item
// subtotal when zero.
type SaleInput struct {
	CustomerID    ledger.CustomerID
	DistributorID ledger.CustomerID
	Date          ledger.Day
	Items         []ledger.SaleItem
	TotalAmount   decimal.Decimal

	// InitialPayment, when positive, is recorded with the invoice.
	InitialPayment decimal.Decimal
	PaymentMode    ledger.PaymentMode
}

// CreateSale numbers and stores a new invoice.
func (s *Service) CreateSale(ctx context.Context, in SaleInput) (*ledger.Sale, error) {
	if len(in.Items) == 0 {
		return nil, ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
			"a sale needs at least one item")
	}
	for _, it := range in.Items {
		if it.ProductID == "" || !it.Quantity.IsPositive() || it.Price.IsNegative() {
			return nil, ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
				"invalid sale item", it.ProductID)
		}
		if it.CostToDistributor != nil && it.CostToDistributor.IsNegative() {
			return nil, ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
				"distributor cost cannot be negative", it.ProductID)
		}
	}
	if in.InitialPayment.IsNegative() {
		return nil, ledger.NewValidationError(ledger.CodeInvalidAmount, ledger.ErrInvalidAmount,
			"payment cannot be negative")
	}
	if in.Date.IsZero() {
		in.Date = s.today()
	}

	sale := ledger.Sale{
		ID:            ledger.SaleID(ledger.NewID("sale")),
		CustomerID:    in.CustomerID,
		DistributorID: in.DistributorID,
		Date:          in.Date,
		Items:         append([]ledger.SaleItem(nil), in.Items...),
		TotalAmount:   in.TotalAmount,
	}
	if sale.TotalAmount.IsZero() {
		sale.TotalAmount = sale.Subtotal()
	}
	if in.InitialPayment.IsPositive() {
		mode, err := paymentMode(in.PaymentMode)
		if err != nil {
			return nil, err
		}
		sale.Payments = []ledger.Payment{{
			ID:     ledger.PaymentID(ledger.NewID("pay")),
			Amount: in.InitialPayment,
			Date:   in.Date,
			Mode:   mode,
		}}
	}

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		customers, err := tx.Customers(ctx)
		if err != nil {
			return err
		}
		if _, ok := ledger.FindCustomer(customers, in.CustomerID); !ok {
			return ledger.NewValidationError(ledger.CodeCustomerNotFound, ledger.ErrCustomerNotFound,
				"customer not found", string(in.CustomerID))
		}
		if in.DistributorID != "" {
			if _, err := ledger.LookupDistributor(customers, in.DistributorID); err != nil {
				return err
			}
		}

		n, err := tx.NextSequence(ctx, ledger.SeqInvoice)
		if err != nil {
			return err
		}
		sale.InvoiceNumber = ledger.FormatNumber("INV", n)

		sales, err := tx.Sales(ctx)
		if err != nil {
			return err
		}
		return tx.SetSales(ctx, append(sales, sale))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("sale created",
		zap.String("sale_id", string(sale.ID)),
		zap.String("invoice", sale.InvoiceNumber),
		zap.String("distributor_id", string(sale.DistributorID)),
		zap.Stringer("total", sale.TotalAmount),
	)
	return &sale, nil
}

// Sales lists invoices, newest first. An empty customerID lists all.
func (s *Service) Sales(ctx context.Context, customerID ledger.CustomerID) ([]ledger.Sale, error) {
	all, err := s.Store.Sales(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sale := range all {
		if customerID == "" || sale.CustomerID == customerID {
			out = append(out, sale)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// RecordSalePayment appends a payment to one unsettled sale.
func (s *Service) RecordSalePayment(ctx context.Context, saleID ledger.SaleID, amount decimal.Decimal,
	mode ledger.PaymentMode, date ledger.Day) (*ledger.Sale, error) {
	if !amount.IsPositive() {
		return nil, ledger.NewValidationError(ledger.CodeInvalidAmount, ledger.ErrInvalidAmount,
			"payment amount must be positive")
	}
	mode, err := paymentMode(mode)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.today()
	}

	var updated ledger.Sale
	err = s.Store.WithTx(ctx, func(tx ledger.Store) error {
		sales, err := tx.Sales(ctx)
		if err != nil {
			return err
		}
		i, ok := ledger.FindSale(sales, saleID)
		if !ok {
			return ledger.NewValidationError(ledger.CodeSaleNotFound, ledger.ErrSaleNotFound,
				"sale not found", string(saleID))
		}
		if sales[i].IsSettled() {
			return ledger.NewValidationError(ledger.CodeSaleAlreadySettled, ledger.ErrSaleAlreadySettled,
				"payments cannot be added to a settled sale", string(saleID))
		}
		sales[i].Payments = append(sales[i].Payments, ledger.Payment{
			ID:     ledger.PaymentID(ledger.NewID("pay")),
			Amount: amount,
			Date:   date,
			Mode:   mode,
		})
		updated = sales[i].Clone()
		return tx.SetSales(ctx, sales)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("sale payment recorded",
		zap.String("sale_id", string(saleID)),
		zap.Stringer("amount", amount),
		zap.String("status", string(updated.PaymentStatus())),
	)
	return &updated, nil
}

// =============================================================================
// PAYMENT ALLOCATION
// =============================================================================

// Allocation is the part of a lump-sum payment applied to one sale.
type Allocation struct {
	SaleID        ledger.SaleID
	InvoiceNumber string
	Amount        decimal.Decimal
	Status        ledger.PaymentStatus
}

type AllocationResult struct {
	Customer    ledger.Customer
	Allocations []Allocation

	// Unallocated is the part of the payment no open invoice absorbed.
	Unallocated decimal.Decimal
}

// Allocate spreads a customer's payment over their open, unsettled
// invoices, oldest first, and lowers the customer's outstanding balance
// by the full amount (never below zero).
func (s *Service) Allocate(ctx context.Context, customerID ledger.CustomerID, amount decimal.Decimal,
	mode ledger.PaymentMode, date ledger.Day) (*AllocationResult, error) {
	if !amount.IsPositive() {
		return nil, ledger.NewValidationError(ledger.CodeInvalidAmount, ledger.ErrInvalidAmount,
			"payment amount must be positive")
	}
	mode, err := paymentMode(mode)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.today()
	}

	res := &AllocationResult{}
	err = s.Store.WithTx(ctx, func(tx ledger.Store) error {
		customers, err := tx.Customers(ctx)
		if err != nil {
			return err
		}
		ci, ok := ledger.FindCustomer(customers, customerID)
		if !ok {
			return ledger.NewValidationError(ledger.CodeCustomerNotFound, ledger.ErrCustomerNotFound,
				"customer not found", string(customerID))
		}
		sales, err := tx.Sales(ctx)
		if err != nil {
			return err
		}

		var open []int
		for i, sale := range sales {
			if sale.CustomerID == customerID && !sale.IsSettled() && sale.Due().IsPositive() {
				open = append(open, i)
			}
		}
		sort.SliceStable(open, func(a, b int) bool { return sales[open[a]].Date.Before(sales[open[b]].Date) })

		remaining := amount
		for _, i := range open {
			if !remaining.IsPositive() {
				break
			}
			apply := decimal.Min(remaining, sales[i].Due())
			sales[i].Payments = append(sales[i].Payments, ledger.Payment{
				ID:     ledger.PaymentID(ledger.NewID("pay")),
				Amount: apply,
				Date:   date,
				Mode:   mode,
			})
			remaining = remaining.Sub(apply)
			res.Allocations = append(res.Allocations, Allocation{
				SaleID:        sales[i].ID,
				InvoiceNumber: sales[i].InvoiceNumber,
				Amount:        apply,
				Status:        sales[i].PaymentStatus(),
			})
		}
		res.Unallocated = remaining

		customers[ci].Outstanding = decimal.Max(decimal.Zero, customers[ci].Outstanding.Sub(amount))
		if err := tx.SetSales(ctx, sales); err != nil {
			return fmt.Errorf("failed to store allocated payments: %w", err)
		}
		if err := tx.SetCustomers(ctx, customers); err != nil {
			return fmt.Errorf("failed to update customer balance: %w", err)
		}
		stored, err := tx.Customers(ctx)
		if err != nil {
			return err
		}
		res.Customer = stored[ci]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("customer payment allocated",
		zap.String("customer_id", string(customerID)),
		zap.Stringer("amount", amount),
		zap.Int("invoices", len(res.Allocations)),
		zap.Stringer("unallocated", res.Unallocated),
	)
	return res, nil
}

// =============================================================================
// EXPENSES
// =============================================================================

// RecordExpense stores a general business expense. Advances to
// distributors go through settlement.Service.RecordAdvance instead.
func (s *Service) RecordExpense(ctx context.Context, e ledger.Expense) (*ledger.Expense, error) {
	if e.IsAdvance() {
		return nil, ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
			"distributor payments must be recorded as advances")
	}
	switch e.Category {
	case ledger.ExpenseSalaries, ledger.ExpenseRent, ledger.ExpenseUtilities,
		ledger.ExpenseRawMaterials, ledger.ExpenseOther:
	default:
		return nil, ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
			"unknown expense category", string(e.Category))
	}
	if !e.Amount.IsPositive() {
		return nil, ledger.NewValidationError(ledger.CodeInvalidAmount, ledger.ErrInvalidAmount,
			"expense amount must be positive")
	}
	if e.Date.IsZero() {
		e.Date = s.today()
	}
	e.ID = ledger.ExpenseID(ledger.NewID("exp"))
	e.DistributorID = ""
	e.SettlementID = ""

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		expenses, err := tx.Expenses(ctx)
		if err != nil {
			return err
		}
		return tx.SetExpenses(ctx, append(expenses, e))
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("expense recorded",
		zap.String("expense_id", string(e.ID)),
		zap.String("category", string(e.Category)),
		zap.Stringer("amount", e.Amount),
	)
	return &e, nil
}

// Expenses lists all expenses, newest first.
func (s *Service) Expenses(ctx context.Context) ([]ledger.Expense, error) {
	out, err := s.Store.Expenses(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func paymentMode(m ledger.PaymentMode) (ledger.PaymentMode, error) {
	if m == "" {
		return ledger.PaymentCash, nil
	}
	if !m.Valid() {
		return "", ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
			"unknown payment mode", string(m))
	}
	return m, nil
}
