package settlement_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stickflow/backoffice/ledger"
	"github.com/stickflow/backoffice/ledger/store"
	"github.com/stickflow/backoffice/settlement"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func costPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

var settleDay = time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC)

func distributor(id string, outstanding, pending string) ledger.Customer {
	return ledger.Customer{
		ID:            ledger.CustomerID(id),
		Name:          "Distributor " + id,
		IsDistributor: true,
		Balances: ledger.Balances{
			Outstanding: money(outstanding),
			Pending:     money(pending),
		},
	}
}

// distSale builds a one-item sale through distributorID: quantity 1 at price,
// cost billed to the distributor, and collected recorded as a single payment.
func distSale(id, distributorID string, day int, price, cost, collected string) ledger.Sale {
	s := ledger.Sale{
		ID:            ledger.SaleID(id),
		InvoiceNumber: "INV-" + id,
		CustomerID:    "end-customer",
		DistributorID: ledger.CustomerID(distributorID),
		Date:          ledger.NewDay(2025, time.June, day),
		Items: []ledger.SaleItem{{
			ProductID:         "incense-100g",
			Quantity:          money("1"),
			Price:             money(price),
			CostToDistributor: costPtr(cost),
		}},
		TotalAmount: money(price),
	}
	if !money(collected).IsZero() {
		s.Payments = []ledger.Payment{{
			ID:     ledger.PaymentID("pay-" + id),
			Amount: money(collected),
			Date:   s.Date,
			Mode:   ledger.PaymentCash,
		}}
	}
	return s
}

func advance(id, distributorID, amount string) ledger.Expense {
	return ledger.Expense{
		ID:            ledger.ExpenseID(id),
		Category:      ledger.ExpenseDistributorPayment,
		DistributorID: ledger.CustomerID(distributorID),
		Amount:        money(amount),
		Date:          ledger.NewDay(2025, time.June, 15),
	}
}

func newReconciler() *settlement.Reconciler {
	n := 0
	return &settlement.Reconciler{
		Now: func() time.Time { return settleDay },
		NewID: func() ledger.SettlementID {
			n++
			return ledger.SettlementID(fmt.Sprintf("settle-%d", n))
		},
	}
}

type fixture struct {
	Customers []ledger.Customer
	Sales     []ledger.Sale
	Expenses  []ledger.Expense
}

func newTestService(t *testing.T, f fixture) (*settlement.Service, *store.TxMemory) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewTxMemory()
	require.NoError(t, mem.SetCustomers(ctx, f.Customers))
	require.NoError(t, mem.SetSales(ctx, f.Sales))
	require.NoError(t, mem.SetExpenses(ctx, f.Expenses))

	svc := settlement.NewService(mem, nil)
	svc.Reconciler = newReconciler()
	return svc, mem
}

func loadDistributor(t *testing.T, s ledger.Store, id string) ledger.Customer {
	t.Helper()
	customers, err := s.Customers(context.Background())
	require.NoError(t, err)
	i, ok := ledger.FindCustomer(customers, ledger.CustomerID(id))
	require.True(t, ok, "distributor %s should exist", id)
	return customers[i]
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, what string) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "%s: want %s, got %s", what, want, got.String())
}
