/*
store.go - Persistence interface for the back-office collections

PURPOSE:
  Defines the boundary between settlement logic and the database. The
  surrounding application keeps flat collections and replaces them
  wholesale; the Store mirrors that contract so a restored backup and a
  live database look the same to the engine.

KEY INTERFACES:
  Store:   get/replace whole collections, plus monotonic counters
  TxStore: Store with an explicit transaction boundary

ATOMIC SETTLEMENT:
  Applying a settlement touches four collections. Callers run all four
  writes inside TxStore.WithTx so either every change lands or none does.

OPTIMISTIC CONCURRENCY:
  SetCustomers compares each incoming row's Version with the stored one.
  A mismatch fails the whole write with ErrConcurrentModification. Rows
  whose content changed get Version+1; unchanged rows keep theirs.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, for tests and demos
  - store/sqlite/sqlite.go: SQLite
*/
package ledger

import "context"

// =============================================================================
// STORE - Whole-collection persistence
// =============================================================================

type Store interface {
	Sales(ctx context.Context) ([]Sale, error)
	Expenses(ctx context.Context) ([]Expense, error)
	Customers(ctx context.Context) ([]Customer, error)
	Settlements(ctx context.Context) ([]Settlement, error)

	// Set* replace the entire collection.
	SetSales(ctx context.Context, sales []Sale) error
	SetExpenses(ctx context.Context, expenses []Expense) error
	SetCustomers(ctx context.Context, customers []Customer) error
	SetSettlements(ctx context.Context, settlements []Settlement) error

	// NextSequence increments and returns the named counter (first call
	// returns 1).
	NextSequence(ctx context.Context, name string) (int64, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// VERSIONING - Shared by every Store implementation
// =============================================================================

// VersionCustomers checks incoming rows against the currently stored ones
// and returns the rows to persist with their new versions.
func VersionCustomers(current, incoming []Customer) ([]Customer, error) {
	stored := make(map[CustomerID]Customer, len(current))
	for _, c := range current {
		stored[c.ID] = c
	}

	out := make([]Customer, len(incoming))
	seen := make(map[CustomerID]bool, len(incoming))
	for i, c := range incoming {
		if seen[c.ID] {
			return nil, NewValidationError(CodeInvalidInput, ErrInvalidInput, "duplicate customer id", string(c.ID))
		}
		seen[c.ID] = true

		if err := c.Balances.Validate(); err != nil {
			return nil, err
		}
		old, ok := stored[c.ID]
		switch {
		case !ok:
			if c.Version == 0 {
				c.Version = 1
			}
		case old.Version != c.Version:
			return nil, ErrConcurrentModification
		case !old.sameContent(c):
			c.Version++
		}
		out[i] = c
	}
	return out, nil
}

// =============================================================================
// LOOKUP HELPERS
// =============================================================================

func FindCustomer(customers []Customer, id CustomerID) (int, bool) {
	for i, c := range customers {
		if c.ID == id {
			return i, true
		}
	}
	return -1, false
}

func FindSale(sales []Sale, id SaleID) (int, bool) {
	for i, s := range sales {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

func FindExpense(expenses []Expense, id ExpenseID) (int, bool) {
	for i, e := range expenses {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

// LookupDistributor resolves id to a flagged distributor.
func LookupDistributor(customers []Customer, id CustomerID) (Distributor, error) {
	i, ok := FindCustomer(customers, id)
	if !ok {
		return Distributor{}, NewValidationError(CodeDistributorNotFound, ErrDistributorNotFound,
			"distributor not found", string(id))
	}
	d, ok := customers[i].AsDistributor()
	if !ok {
		return Distributor{}, NewValidationError(CodeDistributorNotFound, ErrDistributorNotFound,
			"customer is not a distributor", string(id))
	}
	return d, nil
}
