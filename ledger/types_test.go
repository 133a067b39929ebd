package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/stickflow/backoffice/ledger"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSale_PaymentStatusAndDue(t *testing.T) {
	sale := ledger.Sale{TotalAmount: money("100")}
	assert.Equal(t, ledger.StatusUnpaid, sale.PaymentStatus())
	assert.True(t, money("100").Equal(sale.Due()))

	sale.Payments = append(sale.Payments, ledger.Payment{Amount: money("40")})
	assert.Equal(t, ledger.StatusPartial, sale.PaymentStatus())
	assert.True(t, money("60").Equal(sale.Due()))

	sale.Payments = append(sale.Payments, ledger.Payment{Amount: money("70")})
	assert.Equal(t, ledger.StatusPaid, sale.PaymentStatus())
	assert.True(t, sale.Due().IsZero(), "overpayment never shows a negative due")
}

func TestSale_CloneDoesNotShare(t *testing.T) {
	cost := money("5")
	orig := ledger.Sale{
		Items:    []ledger.SaleItem{{ProductID: "p", Quantity: money("1"), Price: money("9"), CostToDistributor: &cost}},
		Payments: []ledger.Payment{{Amount: money("9")}},
	}

	c := orig.Clone()
	*c.Items[0].CostToDistributor = money("1")
	c.Payments[0].Amount = money("0")

	assert.True(t, money("5").Equal(*orig.Items[0].CostToDistributor))
	assert.True(t, money("9").Equal(orig.Payments[0].Amount))
}

func TestSettlement_Direction(t *testing.T) {
	assert.Equal(t, ledger.DirectionPayable, ledger.Settlement{SettlementAmount: money("1")}.Direction())
	assert.Equal(t, ledger.DirectionReceivable, ledger.Settlement{SettlementAmount: money("-1")}.Direction())
	assert.Equal(t, ledger.DirectionEven, ledger.Settlement{}.Direction())
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "STL-001", ledger.FormatNumber("STL", 1))
	assert.Equal(t, "INV-1234", ledger.FormatNumber("INV", 1234))
}

func TestBalances_Validate(t *testing.T) {
	assert.NoError(t, ledger.Balances{Outstanding: money("0"), Pending: money("3")}.Validate())
	assert.ErrorIs(t, ledger.Balances{Outstanding: money("-0.01")}.Validate(), ledger.ErrNegativeBalance)
}

func TestExpense_OpenAdvance(t *testing.T) {
	paid := ledger.Expense{Category: ledger.ExpenseDistributorPayment, Amount: money("1500"), PendingCleared: money("1000")}
	assert.True(t, money("500").Equal(paid.AdvanceAmount()))
	assert.True(t, paid.IsOpenAdvance())

	paid.PendingCleared = money("1500")
	assert.False(t, paid.IsOpenAdvance(), "a payment spent on pending leaves nothing to offset")

	paid.PendingCleared = decimal.Zero
	paid.SettlementID = "st1"
	assert.False(t, paid.IsOpenAdvance())

	rent := ledger.Expense{Category: ledger.ExpenseRent, Amount: money("10")}
	assert.False(t, rent.IsOpenAdvance())
}
