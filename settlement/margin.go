/*
Package settlement reconciles a distributor's sales, advance payments and
standing debt into one net payable/receivable figure and applies it.

PURPOSE:
  A distributor resells the business's goods to end customers. Periodically
  the two sides settle: the business keeps what it billed the distributor,
  the distributor keeps the margin on what end customers actually paid.
  Advances already paid to the distributor, and any debt the distributor
  still owes, are netted against that margin.

PIPELINE:
  1. CalculateMargin (margin.go): pure gross figures for a set of sales
  2. Reconciler.Reconcile (reconcile.go): validation + net amount + Plan
  3. Apply (apply.go): the four writes, inside one store transaction
  4. Service (service.go): locking, numbering, logging, transaction boundary

ORDER MATTERS:
  Advances are deducted from the margin first. Only what is left (if
  positive) pays down the distributor's outstanding debt. Outstanding
  balance is never increased by that step.

EXAMPLE:
  outstanding 500, margin 2000, advances 300
    after advances  = 1700
    applied debt    = min(500, 1700) = 500
    settlement      = 1200 payable to the distributor
*/
package settlement

import (
	"github.com/shopspring/decimal"
	"github.com/stickflow/backoffice/ledger"
)

// Margin holds the gross settlement inputs for a set of sales.
type Margin struct {
	// Collected is money actually received from end customers, not the
	// nominal invoice totals.
	Collected decimal.Decimal

	// Billed is the distributor's cost basis: (cost ?? price) * quantity.
	Billed decimal.Decimal

	// FinalMargin is Collected - Billed and may be negative.
	FinalMargin decimal.Decimal
}

// CalculateMargin has no side effects. The caller has already filtered
// sales to one distributor's unsettled ones. An empty slice yields zeros.
func CalculateMargin(sales []ledger.Sale) Margin {
	collected := decimal.Zero
	billed := decimal.Zero
	for _, s := range sales {
		collected = collected.Add(s.Collected())
		for _, it := range s.Items {
			billed = billed.Add(it.DistributorValue())
		}
	}
	return Margin{
		Collected:   collected,
		Billed:      billed,
		FinalMargin: collected.Sub(billed),
	}
}
