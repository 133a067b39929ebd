/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Every amount is a decimal.Decimal and travels as a JSON string
  ("1200.50"). Requests accept either strings or plain numbers.

DATES:
  Calendar dates are "YYYY-MM-DD" strings. An empty date in a request
  means today.

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain model
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/stickflow/backoffice/ledger"
	"github.com/stickflow/backoffice/settlement"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

type CustomerDTO struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Contact                 string          `json:"contact,omitempty"`
	Address                 string          `json:"address,omitempty"`
	GSTIN                   string          `json:"gstin,omitempty"`
	CreditLimit             decimal.Decimal `json:"credit_limit"`
	CreditDays              int             `json:"credit_days"`
	IsDistributor           bool            `json:"is_distributor"`
	AffiliatedDistributorID string          `json:"affiliated_distributor_id,omitempty"`
	OutstandingBalance      decimal.Decimal `json:"outstanding_balance"`
	PendingPayment          decimal.Decimal `json:"pending_payment"`
	Version                 int64           `json:"version"`
}

type CreateCustomerRequest struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Contact                 string          `json:"contact"`
	Address                 string          `json:"address"`
	GSTIN                   string          `json:"gstin"`
	CreditLimit             decimal.Decimal `json:"credit_limit"`
	CreditDays              int             `json:"credit_days"`
	IsDistributor           bool            `json:"is_distributor"`
	AffiliatedDistributorID string          `json:"affiliated_distributor_id"`
	OutstandingBalance      decimal.Decimal `json:"outstanding_balance"`
	PendingPayment          decimal.Decimal `json:"pending_payment"`
}

func (r CreateCustomerRequest) toCustomer() ledger.Customer {
	return ledger.Customer{
		ID:                      ledger.CustomerID(r.ID),
		Name:                    r.Name,
		Contact:                 r.Contact,
		Address:                 r.Address,
		GSTIN:                   r.GSTIN,
		CreditLimit:             r.CreditLimit,
		CreditDays:              r.CreditDays,
		IsDistributor:           r.IsDistributor,
		AffiliatedDistributorID: ledger.CustomerID(r.AffiliatedDistributorID),
		Balances: ledger.Balances{
			Outstanding: r.OutstandingBalance,
			Pending:     r.PendingPayment,
		},
	}
}

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	return CustomerDTO{
		ID:                      string(c.ID),
		Name:                    c.Name,
		Contact:                 c.Contact,
		Address:                 c.Address,
		GSTIN:                   c.GSTIN,
		CreditLimit:             c.CreditLimit,
		CreditDays:              c.CreditDays,
		IsDistributor:           c.IsDistributor,
		AffiliatedDistributorID: string(c.AffiliatedDistributorID),
		OutstandingBalance:      c.Outstanding,
		PendingPayment:          c.Pending,
		Version:                 c.Version,
	}
}

// DistributorSummaryDTO is one row of GET /api/distributors.
type DistributorSummaryDTO struct {
	CustomerDTO
	UnsettledSales    int `json:"unsettled_sales"`
	UnsettledAdvances int `json:"unsettled_advances"`
	Settlements       int `json:"settlements"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentDTO struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Mode   string          `json:"mode"`
}

// PaymentRequest records money received, for one sale or spread across a
// customer's open invoices.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Mode   string          `json:"mode"`
	Date   string          `json:"date"`
}

type AllocationDTO struct {
	SaleID        string          `json:"sale_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus string          `json:"payment_status"`
}

type AllocationResultDTO struct {
	Customer    CustomerDTO     `json:"customer"`
	Allocations []AllocationDTO `json:"allocations"`
	Unallocated decimal.Decimal `json:"unallocated"`
}

// =============================================================================
// SALES
// =============================================================================

type SaleItemDTO struct {
	ProductID         string           `json:"product_id"`
	Quantity          decimal.Decimal  `json:"quantity"`
	Price             decimal.Decimal  `json:"price"`
	CostToDistributor *decimal.Decimal `json:"cost_to_distributor,omitempty"`
}

type SaleDTO struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    string          `json:"customer_id"`
	DistributorID string          `json:"distributor_id,omitempty"`
	Date          string          `json:"date"`
	Items         []SaleItemDTO   `json:"items"`
	Payments      []PaymentDTO    `json:"payments"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Collected     decimal.Decimal `json:"collected"`
	Due           decimal.Decimal `json:"due"`
	PaymentStatus string          `json:"payment_status"`
	SettlementID  string          `json:"settlement_id,omitempty"`
}

type CreateSaleRequest struct {
	CustomerID    string          `json:"customer_id"`
	DistributorID string          `json:"distributor_id"`
	Date          string          `json:"date"`
	Items         []SaleItemDTO   `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentMode   string          `json:"payment_mode"`
}

func toSaleDTO(s ledger.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            string(s.ID),
		InvoiceNumber: s.InvoiceNumber,
		CustomerID:    string(s.CustomerID),
		DistributorID: string(s.DistributorID),
		Date:          s.Date.String(),
		Items:         make([]SaleItemDTO, len(s.Items)),
		Payments:      make([]PaymentDTO, len(s.Payments)),
		TotalAmount:   s.TotalAmount,
		Collected:     s.Collected(),
		Due:           s.Due(),
		PaymentStatus: string(s.PaymentStatus()),
		SettlementID:  string(s.SettlementID),
	}
	for i, it := range s.Items {
		dto.Items[i] = SaleItemDTO{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			Price:             it.Price,
			CostToDistributor: it.CostToDistributor,
		}
	}
	for i, p := range s.Payments {
		dto.Payments[i] = PaymentDTO{ID: string(p.ID), Amount: p.Amount, Date: p.Date.String(), Mode: string(p.Mode)}
	}
	return dto
}

func toSaleDTOs(sales []ledger.Sale) []SaleDTO {
	out := make([]SaleDTO, len(sales))
	for i, s := range sales {
		out[i] = toSaleDTO(s)
	}
	return out
}

// =============================================================================
// EXPENSES
// =============================================================================

// ExpenseDTO carries an expense. For distributor payments, PendingCleared
// is what paid off the pending balance and OpenAdvance what a settlement
// can still offset.
type ExpenseDTO struct {
	ID             string           `json:"id"`
	Category       string           `json:"category"`
	DistributorID  string           `json:"distributor_id,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	PendingCleared *decimal.Decimal `json:"pending_cleared,omitempty"`
	OpenAdvance    *decimal.Decimal `json:"open_advance,omitempty"`
	Date           string           `json:"date"`
	Description    string           `json:"description,omitempty"`
	SettlementID   string           `json:"settlement_id,omitempty"`
}

// CreateExpenseRequest records an expense. Category "distributor_payment"
// records a payment to a distributor and requires DistributorID.
type CreateExpenseRequest struct {
	Category      string          `json:"category"`
	DistributorID string          `json:"distributor_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
}

func toExpenseDTO(e ledger.Expense) ExpenseDTO {
	dto := ExpenseDTO{
		ID:            string(e.ID),
		Category:      string(e.Category),
		DistributorID: string(e.DistributorID),
		Amount:        e.Amount,
		Date:          e.Date.String(),
		Description:   e.Description,
		SettlementID:  string(e.SettlementID),
	}
	if e.IsAdvance() {
		cleared, open := e.PendingCleared, e.AdvanceAmount()
		dto.PendingCleared = &cleared
		dto.OpenAdvance = &open
	}
	return dto
}

func toExpenseDTOs(expenses []ledger.Expense) []ExpenseDTO {
	out := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseDTO(e)
	}
	return out
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

type SettleRequest struct {
	SaleIDs    []string `json:"sale_ids"`
	ExpenseIDs []string `json:"expense_ids"`
}

func (r SettleRequest) toRequest(distributorID string) settlement.Request {
	req := settlement.Request{DistributorID: ledger.CustomerID(distributorID)}
	for _, id := range r.SaleIDs {
		req.SaleIDs = append(req.SaleIDs, ledger.SaleID(id))
	}
	for _, id := range r.ExpenseIDs {
		req.ExpenseIDs = append(req.ExpenseIDs, ledger.ExpenseID(id))
	}
	return req
}

type SettlementDTO struct {
	ID                        string          `json:"id"`
	Number                    string          `json:"number,omitempty"`
	DistributorID             string          `json:"distributor_id"`
	PeriodStart               string          `json:"period_start"`
	PeriodEnd                 string          `json:"period_end"`
	SettledOn                 string          `json:"settled_on"`
	SaleIDs                   []string        `json:"sale_ids"`
	ExpenseIDs                []string        `json:"expense_ids"`
	TotalSalesValue           decimal.Decimal `json:"total_sales_value"`
	TotalDistributorValue     decimal.Decimal `json:"total_distributor_value"`
	FinalMargin               decimal.Decimal `json:"final_margin"`
	Adjustments               decimal.Decimal `json:"adjustments"`
	AppliedOutstandingBalance decimal.Decimal `json:"applied_outstanding_balance"`
	SettlementAmount          decimal.Decimal `json:"settlement_amount"`
	Direction                 string          `json:"direction"`
}

func toSettlementDTO(s ledger.Settlement) SettlementDTO {
	dto := SettlementDTO{
		ID:                        string(s.ID),
		Number:                    s.Number,
		DistributorID:             string(s.DistributorID),
		PeriodStart:               s.PeriodStart.String(),
		PeriodEnd:                 s.PeriodEnd.String(),
		SettledOn:                 s.SettledOn.String(),
		SaleIDs:                   make([]string, len(s.SaleIDs)),
		ExpenseIDs:                make([]string, len(s.ExpenseIDs)),
		TotalSalesValue:           s.TotalSalesValue,
		TotalDistributorValue:     s.TotalDistributorValue,
		FinalMargin:               s.FinalMargin,
		Adjustments:               s.Adjustments,
		AppliedOutstandingBalance: s.AppliedOutstandingBalance,
		SettlementAmount:          s.SettlementAmount,
		Direction:                 string(s.Direction()),
	}
	for i, id := range s.SaleIDs {
		dto.SaleIDs[i] = string(id)
	}
	for i, id := range s.ExpenseIDs {
		dto.ExpenseIDs[i] = string(id)
	}
	return dto
}

type BalancesDTO struct {
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	PendingPayment     decimal.Decimal `json:"pending_payment"`
}

func toBalancesDTO(b ledger.Balances) BalancesDTO {
	return BalancesDTO{OutstandingBalance: b.Outstanding, PendingPayment: b.Pending}
}

// PreviewDTO is a reconciled settlement that was not applied.
type PreviewDTO struct {
	Settlement SettlementDTO `json:"settlement"`
	Before     BalancesDTO   `json:"before"`
	After      BalancesDTO   `json:"after"`
}

type UnsettledDTO struct {
	Distributor           CustomerDTO     `json:"distributor"`
	Sales                 []SaleDTO       `json:"sales"`
	Advances              []ExpenseDTO    `json:"advances"`
	TotalSalesValue       decimal.Decimal `json:"total_sales_value"`
	TotalDistributorValue decimal.Decimal `json:"total_distributor_value"`
	FinalMargin           decimal.Decimal `json:"final_margin"`
	TotalAdvances         decimal.Decimal `json:"total_advances"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	IDs     []string `json:"ids,omitempty"`
	Details string   `json:"details,omitempty"`
}
