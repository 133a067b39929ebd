/*
Package ledger provides the data model and persistence contracts for the
distributor settlement engine.

PURPOSE:
  This package holds the flat records the back-office keeps (customers,
  sales, expenses, settlements) and the interfaces through which the
  settlement engine reads and replaces them. It contains no settlement
  arithmetic; see package settlement for that.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer / Distributor: a distributor is a flagged customer, exposed
    as its own type so settlement-only balances are explicit
  - Balances: two non-negative figures, never a signed net
  - Sale / SaleItem / Payment: invoices and the money collected on them
  - Expense: advance payments to distributors are DistributorPayment expenses
  - Settlement: the immutable audit record of one reconciliation

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal
  2. Type Safety: distinct ID types so sale and expense ids cannot be mixed
  3. Set-once links: Sale.SettlementID and Expense.SettlementID go from
     empty to set exactly once and are never cleared
  4. Immutability: a Settlement is never edited after it is appended

SEE ALSO:
  - errors.go: validation taxonomy
  - store.go: collection persistence interfaces
  - ../settlement: margin calculation, reconciliation and apply step
*/
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type SaleID string
type ExpenseID string
type SettlementID string
type PaymentID string

// NewID returns a random identifier with a readable prefix, e.g. "settle_<uuid>".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Sequence names used with Store.NextSequence.
const (
	SeqInvoice    = "invoice"
	SeqSettlement = "settlement"
)

// FormatNumber renders a document number such as INV-001 or STL-042.
func FormatNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

// =============================================================================
// CUSTOMER / DISTRIBUTOR
// =============================================================================

// Balances are the two settlement-facing figures carried by a distributor.
// Both are always >= 0. A party is never represented as a signed net.
type Balances struct {
	Outstanding decimal.Decimal // owed to the business (debit)
	Pending     decimal.Decimal // owed by the business (payable)
}

func (b Balances) Equal(o Balances) bool {
	return b.Outstanding.Equal(o.Outstanding) && b.Pending.Equal(o.Pending)
}

// Validate reports ErrNegativeBalance if either figure is below zero.
func (b Balances) Validate() error {
	if b.Outstanding.IsNegative() || b.Pending.IsNegative() {
		return fmt.Errorf("%w: outstanding %s, pending %s", ErrNegativeBalance, b.Outstanding, b.Pending)
	}
	return nil
}

type Customer struct {
	ID                      CustomerID
	Name                    string
	Contact                 string
	Address                 string
	GSTIN                   string
	CreditLimit             decimal.Decimal
	CreditDays              int
	IsDistributor           bool
	AffiliatedDistributorID CustomerID
	Balances

	// Version is bumped by the store on every change to the row and is
	// compared on write (optimistic concurrency).
	Version int64
}

// AsDistributor narrows a customer to a Distributor. Only flagged
// customers qualify.
func (c Customer) AsDistributor() (Distributor, bool) {
	if !c.IsDistributor {
		return Distributor{}, false
	}
	return Distributor{Customer: c}, true
}

// sameContent compares everything except Version.
func (c Customer) sameContent(o Customer) bool {
	return c.ID == o.ID &&
		c.Name == o.Name &&
		c.Contact == o.Contact &&
		c.Address == o.Address &&
		c.GSTIN == o.GSTIN &&
		c.CreditLimit.Equal(o.CreditLimit) &&
		c.CreditDays == o.CreditDays &&
		c.IsDistributor == o.IsDistributor &&
		c.AffiliatedDistributorID == o.AffiliatedDistributorID &&
		c.Balances.Equal(o.Balances)
}

// Distributor is a customer that resells to end customers and settles
// margin with the business. Obtain one through Customer.AsDistributor.
type Distributor struct {
	Customer
}

// =============================================================================
// SALE
// =============================================================================

type PaymentMode string

const (
	PaymentCash   PaymentMode = "cash"
	PaymentOnline PaymentMode = "online"
	PaymentCheque PaymentMode = "cheque"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentOnline, PaymentCheque:
		return true
	}
	return false
}

// Payment is money received from the end customer against a sale.
type Payment struct {
	ID     PaymentID
	Amount decimal.Decimal
	Date   Day
	Mode   PaymentMode
}

type SaleItem struct {
	ProductID string
	Quantity  decimal.Decimal
	Price     decimal.Decimal // charged to the end customer

	// CostToDistributor is the per-unit price billed to/by the distributor.
	// Nil means "same as Price", never zero.
	CostToDistributor *decimal.Decimal
}

// UnitCostToDistributor applies the Price fallback.
func (i SaleItem) UnitCostToDistributor() decimal.Decimal {
	if i.CostToDistributor != nil {
		return *i.CostToDistributor
	}
	return i.Price
}

// DistributorValue is UnitCostToDistributor * Quantity.
func (i SaleItem) DistributorValue() decimal.Decimal {
	return i.UnitCostToDistributor().Mul(i.Quantity)
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(i.Quantity)
}

type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "unpaid"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

type Sale struct {
	ID            SaleID
	InvoiceNumber string
	CustomerID    CustomerID
	DistributorID CustomerID // empty when not sold through a distributor
	Date          Day
	Items         []SaleItem
	Payments      []Payment
	TotalAmount   decimal.Decimal

	// SettlementID is set once, when the sale is included in a settlement.
	SettlementID SettlementID
}

func (s Sale) IsSettled() bool { return s.SettlementID != "" }

// Collected is the sum of payments actually received.
func (s Sale) Collected() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Subtotal is the sum of item line totals before discount, tax and delivery.
func (s Sale) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Due is TotalAmount minus Collected, floored at zero.
func (s Sale) Due() decimal.Decimal {
	return decimal.Max(decimal.Zero, s.TotalAmount.Sub(s.Collected()))
}

func (s Sale) PaymentStatus() PaymentStatus {
	collected := s.Collected()
	switch {
	case !collected.IsPositive():
		return StatusUnpaid
	case collected.GreaterThanOrEqual(s.TotalAmount):
		return StatusPaid
	default:
		return StatusPartial
	}
}

// Clone returns a copy that shares no slices with s.
func (s Sale) Clone() Sale {
	c := s
	c.Items = append([]SaleItem(nil), s.Items...)
	for i, it := range c.Items {
		if it.CostToDistributor != nil {
			cost := *it.CostToDistributor
			c.Items[i].CostToDistributor = &cost
		}
	}
	c.Payments = append([]Payment(nil), s.Payments...)
	return c
}

// =============================================================================
// EXPENSE
// =============================================================================

type ExpenseCategory string

const (
	ExpenseDistributorPayment ExpenseCategory = "distributor_payment"
	ExpenseSalaries           ExpenseCategory = "salaries"
	ExpenseRent               ExpenseCategory = "rent"
	ExpenseUtilities          ExpenseCategory = "utilities"
	ExpenseRawMaterials       ExpenseCategory = "raw_materials"
	ExpenseOther              ExpenseCategory = "other"
)

type Expense struct {
	ID            ExpenseID
	Category      ExpenseCategory
	DistributorID CustomerID // only for DistributorPayment
	Amount        decimal.Decimal
	Date          Day
	Description   string

	// PendingCleared is the part of a distributor payment that paid off
	// the distributor's pending balance when it was recorded. Only the
	// rest is an advance a settlement can offset.
	PendingCleared decimal.Decimal

	// SettlementID is set once, when the advance is offset in a settlement.
	SettlementID SettlementID
}

// IsAdvance reports whether the expense is an advance payment to a distributor.
func (e Expense) IsAdvance() bool { return e.Category == ExpenseDistributorPayment }

func (e Expense) IsSettled() bool { return e.SettlementID != "" }

// AdvanceAmount is what a settlement offsets for this payment.
func (e Expense) AdvanceAmount() decimal.Decimal { return e.Amount.Sub(e.PendingCleared) }

// IsOpenAdvance reports whether the expense is a distributor payment that
// still has an amount to offset and has not been settled.
func (e Expense) IsOpenAdvance() bool {
	return e.IsAdvance() && !e.IsSettled() && e.AdvanceAmount().IsPositive()
}

// =============================================================================
// SETTLEMENT
// =============================================================================

type Direction string

const (
	DirectionPayable    Direction = "payable"    // business owes distributor
	DirectionReceivable Direction = "receivable" // distributor owes business
	DirectionEven       Direction = "even"
)

// Settlement is the permanent record of one reconciliation. It is
// appended once and never modified.
type Settlement struct {
	ID            SettlementID
	Number        string
	DistributorID CustomerID
	PeriodStart   Day
	PeriodEnd     Day
	SettledOn     Day

	SaleIDs    []SaleID
	ExpenseIDs []ExpenseID

	TotalSalesValue           decimal.Decimal // collected from end customers
	TotalDistributorValue     decimal.Decimal // billed to/by the distributor
	FinalMargin               decimal.Decimal
	Adjustments               decimal.Decimal // advances offset
	AppliedOutstandingBalance decimal.Decimal

	// SettlementAmount is signed: positive is payable to the distributor,
	// negative is receivable from them.
	SettlementAmount decimal.Decimal
}

func (s Settlement) Direction() Direction {
	switch {
	case s.SettlementAmount.IsPositive():
		return DirectionPayable
	case s.SettlementAmount.IsNegative():
		return DirectionReceivable
	default:
		return DirectionEven
	}
}

func (s Settlement) Period() Period {
	return Period{Start: s.PeriodStart, End: s.PeriodEnd}
}

func (s Settlement) Clone() Settlement {
	c := s
	c.SaleIDs = append([]SaleID(nil), s.SaleIDs...)
	c.ExpenseIDs = append([]ExpenseID(nil), s.ExpenseIDs...)
	return c
}
