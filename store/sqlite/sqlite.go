/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists the four back-office collections (customers, sales, expenses,
  settlements) and the document counters. The engine reads and replaces
  whole collections; this store keeps one row per record and rewrites a
  table inside a transaction on every Set* call.

KEY TABLES:
  customers:   customer rows, balances as decimal TEXT, row version
  sales:       invoices; items and payments as JSON columns
  expenses:    expenses incl. distributor advances
  settlements: settlement records; selected ids as JSON columns
  sequences:   named monotonic counters (invoice, settlement)

Every table carries a position column so a collection reads back in the
order it was written.

OPTIMISTIC CONCURRENCY:
  SetCustomers runs ledger.VersionCustomers against the rows currently
  stored inside the same SQL transaction. A stale Version fails the
  write with ledger.ErrConcurrentModification.

TRANSACTIONS:
  WithTx opens one SQL transaction and hands fn a view whose reads and
  writes all go through it. The database is limited to one open
  connection so ":memory:" databases are shared and writers never
  interleave.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/backoffice.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := settlement.NewService(store, logger)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/stickflow/backoffice/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		contact TEXT,
		address TEXT,
		gstin TEXT,
		credit_limit TEXT NOT NULL DEFAULT '0',
		credit_days INTEGER NOT NULL DEFAULT 0,
		is_distributor BOOLEAN NOT NULL DEFAULT FALSE,
		affiliated_distributor_id TEXT,
		outstanding TEXT NOT NULL DEFAULT '0',
		pending TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		invoice_number TEXT,
		customer_id TEXT NOT NULL,
		distributor_id TEXT,
		date TEXT NOT NULL,
		items_json TEXT NOT NULL,
		payments_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		settlement_id TEXT
	);

	-- Unsettled sales per distributor (settlement modal, summaries)
	CREATE INDEX IF NOT EXISTS idx_sales_distributor_settlement
		ON sales(distributor_id, settlement_id);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		category TEXT NOT NULL,
		distributor_id TEXT,
		amount TEXT NOT NULL,
		pending_cleared TEXT NOT NULL DEFAULT '0',
		date TEXT NOT NULL,
		description TEXT,
		settlement_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_distributor
		ON expenses(distributor_id) WHERE distributor_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		number TEXT,
		distributor_id TEXT NOT NULL,
		period_start TEXT,
		period_end TEXT,
		settled_on TEXT NOT NULL,
		sale_ids_json TEXT NOT NULL,
		expense_ids_json TEXT NOT NULL,
		total_sales_value TEXT NOT NULL,
		total_distributor_value TEXT NOT NULL,
		final_margin TEXT NOT NULL,
		adjustments TEXT NOT NULL,
		applied_outstanding_balance TEXT NOT NULL,
		settlement_amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_distributor
		ON settlements(distributor_id);

	CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (ledger.Store interface)
// =============================================================================

func (s *Store) Sales(ctx context.Context) ([]ledger.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadSales(ctx, s.db)
}

func (s *Store) Expenses(ctx context.Context) ([]ledger.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadExpenses(ctx, s.db)
}

func (s *Store) Customers(ctx context.Context) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadCustomers(ctx, s.db)
}

func (s *Store) Settlements(ctx context.Context) ([]ledger.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadSettlements(ctx, s.db)
}

func (s *Store) SetSales(ctx context.Context, sales []ledger.Sale) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.SetSales(ctx, sales) })
}

func (s *Store) SetExpenses(ctx context.Context, expenses []ledger.Expense) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.SetExpenses(ctx, expenses) })
}

func (s *Store) SetCustomers(ctx context.Context, customers []ledger.Customer) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.SetCustomers(ctx, customers) })
}

func (s *Store) SetSettlements(ctx context.Context, settlements []ledger.Settlement) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.SetSettlements(ctx, settlements) })
}

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		var err error
		n, err = tx.NextSequence(ctx, name)
		return err
	})
	return n, err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore reads and writes through one open SQL transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Sales(ctx context.Context) ([]ledger.Sale, error) { return loadSales(ctx, ts.tx) }

func (ts *txStore) Expenses(ctx context.Context) ([]ledger.Expense, error) {
	return loadExpenses(ctx, ts.tx)
}

func (ts *txStore) Customers(ctx context.Context) ([]ledger.Customer, error) {
	return loadCustomers(ctx, ts.tx)
}

func (ts *txStore) Settlements(ctx context.Context) ([]ledger.Settlement, error) {
	return loadSettlements(ctx, ts.tx)
}

func (ts *txStore) SetSales(ctx context.Context, sales []ledger.Sale) error {
	return replaceSales(ctx, ts.tx, sales)
}

func (ts *txStore) SetExpenses(ctx context.Context, expenses []ledger.Expense) error {
	return replaceExpenses(ctx, ts.tx, expenses)
}

func (ts *txStore) SetCustomers(ctx context.Context, customers []ledger.Customer) error {
	current, err := loadCustomers(ctx, ts.tx)
	if err != nil {
		return err
	}
	versioned, err := ledger.VersionCustomers(current, customers)
	if err != nil {
		return err
	}
	return replaceCustomers(ctx, ts.tx, versioned)
}

func (ts *txStore) SetSettlements(ctx context.Context, settlements []ledger.Settlement) error {
	return replaceSettlements(ctx, ts.tx, settlements)
}

func (ts *txStore) NextSequence(ctx context.Context, name string) (int64, error) {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
	`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	var n int64
	if err := ts.tx.QueryRowContext(ctx, "SELECT value FROM sequences WHERE name = ?", name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %w", name, err)
	}
	return n, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func loadCustomers(ctx context.Context, db dbtx) ([]ledger.Customer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, contact, address, gstin, credit_limit, credit_days, is_distributor,
		       affiliated_distributor_id, outstanding, pending, version
		FROM customers
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []ledger.Customer{}
	for rows.Next() {
		var (
			c                                 ledger.Customer
			contact, address, gstin, affil    sql.NullString
			creditLimit, outstanding, pending string
		)
		err := rows.Scan(&c.ID, &c.Name, &contact, &address, &gstin, &creditLimit, &c.CreditDays,
			&c.IsDistributor, &affil, &outstanding, &pending, &c.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.Contact, c.Address, c.GSTIN = contact.String, address.String, gstin.String
		c.AffiliatedDistributorID = ledger.CustomerID(affil.String)
		if c.CreditLimit, err = parseDecimal(creditLimit); err != nil {
			return nil, err
		}
		if c.Outstanding, err = parseDecimal(outstanding); err != nil {
			return nil, err
		}
		if c.Pending, err = parseDecimal(pending); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func replaceCustomers(ctx context.Context, db dbtx, customers []ledger.Customer) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM customers"); err != nil {
		return fmt.Errorf("failed to clear customers: %w", err)
	}
	for i, c := range customers {
		_, err := db.ExecContext(ctx, `
			INSERT INTO customers
			(id, position, name, contact, address, gstin, credit_limit, credit_days, is_distributor,
			 affiliated_distributor_id, outstanding, pending, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.ID, i, c.Name,
			nullString(c.Contact), nullString(c.Address), nullString(c.GSTIN),
			c.CreditLimit.String(), c.CreditDays, c.IsDistributor,
			nullString(string(c.AffiliatedDistributorID)),
			c.Outstanding.String(), c.Pending.String(), c.Version,
		)
		if err != nil {
			return wrapInsert("customer", string(c.ID), err)
		}
	}
	return nil
}

// =============================================================================
// SALES
// =============================================================================

// itemRow and paymentRow are the JSON shapes of sales.items_json and
// sales.payments_json.
type itemRow struct {
	ProductID         string           `json:"product_id"`
	Quantity          decimal.Decimal  `json:"quantity"`
	Price             decimal.Decimal  `json:"price"`
	CostToDistributor *decimal.Decimal `json:"cost_to_distributor,omitempty"`
}

type paymentRow struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Mode   string          `json:"mode"`
}

func loadSales(ctx context.Context, db dbtx) ([]ledger.Sale, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, invoice_number, customer_id, distributor_id, date, items_json, payments_json,
		       total_amount, settlement_id
		FROM sales
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	sales := []ledger.Sale{}
	for rows.Next() {
		var (
			sale                                       ledger.Sale
			invoice, distributorID, settlementID       sql.NullString
			date, itemsJSON, paymentsJSON, totalAmount string
		)
		err := rows.Scan(&sale.ID, &invoice, &sale.CustomerID, &distributorID, &date,
			&itemsJSON, &paymentsJSON, &totalAmount, &settlementID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sale.InvoiceNumber = invoice.String
		sale.DistributorID = ledger.CustomerID(distributorID.String)
		sale.SettlementID = ledger.SettlementID(settlementID.String)
		if sale.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		if sale.TotalAmount, err = parseDecimal(totalAmount); err != nil {
			return nil, err
		}

		var items []itemRow
		if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
			return nil, fmt.Errorf("sale %s: bad items: %w", sale.ID, err)
		}
		for _, it := range items {
			sale.Items = append(sale.Items, ledger.SaleItem{
				ProductID:         it.ProductID,
				Quantity:          it.Quantity,
				Price:             it.Price,
				CostToDistributor: it.CostToDistributor,
			})
		}

		var payments []paymentRow
		if err := json.Unmarshal([]byte(paymentsJSON), &payments); err != nil {
			return nil, fmt.Errorf("sale %s: bad payments: %w", sale.ID, err)
		}
		for _, p := range payments {
			day, err := parseDay(p.Date)
			if err != nil {
				return nil, err
			}
			sale.Payments = append(sale.Payments, ledger.Payment{
				ID:     ledger.PaymentID(p.ID),
				Amount: p.Amount,
				Date:   day,
				Mode:   ledger.PaymentMode(p.Mode),
			})
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func replaceSales(ctx context.Context, db dbtx, sales []ledger.Sale) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM sales"); err != nil {
		return fmt.Errorf("failed to clear sales: %w", err)
	}
	for i, sale := range sales {
		items := make([]itemRow, len(sale.Items))
		for j, it := range sale.Items {
			items[j] = itemRow{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price, CostToDistributor: it.CostToDistributor}
		}
		payments := make([]paymentRow, len(sale.Payments))
		for j, p := range sale.Payments {
			payments[j] = paymentRow{ID: string(p.ID), Amount: p.Amount, Date: p.Date.String(), Mode: string(p.Mode)}
		}
		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return err
		}
		paymentsJSON, err := json.Marshal(payments)
		if err != nil {
			return err
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO sales
			(id, position, invoice_number, customer_id, distributor_id, date, items_json, payments_json,
			 total_amount, settlement_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sale.ID, i, nullString(sale.InvoiceNumber), sale.CustomerID,
			nullString(string(sale.DistributorID)), sale.Date.String(),
			string(itemsJSON), string(paymentsJSON), sale.TotalAmount.String(),
			nullString(string(sale.SettlementID)),
		)
		if err != nil {
			return wrapInsert("sale", string(sale.ID), err)
		}
	}
	return nil
}

// =============================================================================
// EXPENSES
// =============================================================================

func loadExpenses(ctx context.Context, db dbtx) ([]ledger.Expense, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, category, distributor_id, amount, pending_cleared, date, description, settlement_id
		FROM expenses
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []ledger.Expense{}
	for rows.Next() {
		var (
			e                                      ledger.Expense
			distributorID, description, settlement sql.NullString
			amount, cleared, date                  string
		)
		err := rows.Scan(&e.ID, &e.Category, &distributorID, &amount, &cleared, &date, &description, &settlement)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.DistributorID = ledger.CustomerID(distributorID.String)
		e.Description = description.String
		e.SettlementID = ledger.SettlementID(settlement.String)
		if e.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		if e.PendingCleared, err = parseDecimal(cleared); err != nil {
			return nil, err
		}
		if e.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func replaceExpenses(ctx context.Context, db dbtx, expenses []ledger.Expense) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM expenses"); err != nil {
		return fmt.Errorf("failed to clear expenses: %w", err)
	}
	for i, e := range expenses {
		_, err := db.ExecContext(ctx, `
			INSERT INTO expenses
			(id, position, category, distributor_id, amount, pending_cleared, date, description, settlement_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ID, i, e.Category, nullString(string(e.DistributorID)), e.Amount.String(),
			e.PendingCleared.String(), e.Date.String(), nullString(e.Description), nullString(string(e.SettlementID)),
		)
		if err != nil {
			return wrapInsert("expense", string(e.ID), err)
		}
	}
	return nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func loadSettlements(ctx context.Context, db dbtx) ([]ledger.Settlement, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, number, distributor_id, period_start, period_end, settled_on,
		       sale_ids_json, expense_ids_json, total_sales_value, total_distributor_value,
		       final_margin, adjustments, applied_outstanding_balance, settlement_amount
		FROM settlements
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	settlements := []ledger.Settlement{}
	for rows.Next() {
		var (
			st                             ledger.Settlement
			number, periodStart, periodEnd sql.NullString
			settledOn, saleIDs, expenseIDs string
			sales, billed, margin, adjust  string
			applied, amount                string
		)
		err := rows.Scan(&st.ID, &number, &st.DistributorID, &periodStart, &periodEnd, &settledOn,
			&saleIDs, &expenseIDs, &sales, &billed, &margin, &adjust, &applied, &amount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		st.Number = number.String
		if st.PeriodStart, err = parseDay(periodStart.String); err != nil {
			return nil, err
		}
		if st.PeriodEnd, err = parseDay(periodEnd.String); err != nil {
			return nil, err
		}
		if st.SettledOn, err = parseDay(settledOn); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(saleIDs), &st.SaleIDs); err != nil {
			return nil, fmt.Errorf("settlement %s: bad sale ids: %w", st.ID, err)
		}
		if err := json.Unmarshal([]byte(expenseIDs), &st.ExpenseIDs); err != nil {
			return nil, fmt.Errorf("settlement %s: bad expense ids: %w", st.ID, err)
		}

		figures := []struct {
			dst *decimal.Decimal
			src string
		}{
			{&st.TotalSalesValue, sales},
			{&st.TotalDistributorValue, billed},
			{&st.FinalMargin, margin},
			{&st.Adjustments, adjust},
			{&st.AppliedOutstandingBalance, applied},
			{&st.SettlementAmount, amount},
		}
		for _, f := range figures {
			if *f.dst, err = parseDecimal(f.src); err != nil {
				return nil, err
			}
		}
		settlements = append(settlements, st)
	}
	return settlements, rows.Err()
}

func replaceSettlements(ctx context.Context, db dbtx, settlements []ledger.Settlement) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM settlements"); err != nil {
		return fmt.Errorf("failed to clear settlements: %w", err)
	}
	for i, st := range settlements {
		saleIDs, err := json.Marshal(nonNil(st.SaleIDs))
		if err != nil {
			return err
		}
		expenseIDs, err := json.Marshal(nonNil(st.ExpenseIDs))
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO settlements
			(id, position, number, distributor_id, period_start, period_end, settled_on,
			 sale_ids_json, expense_ids_json, total_sales_value, total_distributor_value,
			 final_margin, adjustments, applied_outstanding_balance, settlement_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			st.ID, i, nullString(st.Number), st.DistributorID,
			nullString(st.PeriodStart.String()), nullString(st.PeriodEnd.String()), st.SettledOn.String(),
			string(saleIDs), string(expenseIDs),
			st.TotalSalesValue.String(), st.TotalDistributorValue.String(), st.FinalMargin.String(),
			st.Adjustments.String(), st.AppliedOutstandingBalance.String(), st.SettlementAmount.String(),
		)
		if err != nil {
			return wrapInsert("settlement", string(st.ID), err)
		}
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.(*txStore).Reset(ctx)
	})
}

// Reset clears all data inside the open transaction, so a caller can
// reload the store and roll both back together.
func (ts *txStore) Reset(ctx context.Context) error {
	tables := []string{"settlements", "expenses", "sales", "customers", "sequences"}
	for _, table := range tables {
		if _, err := ts.tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad decimal %q: %w", s, err)
	}
	return d, nil
}

func parseDay(s string) (ledger.Day, error) {
	if s == "" {
		return ledger.Day{}, nil
	}
	return ledger.ParseDay(s)
}

func wrapInsert(kind, id string, err error) error {
	if isUniqueConstraintError(err) {
		return ledger.NewValidationError(ledger.CodeInvalidInput, ledger.ErrInvalidInput,
			"duplicate "+kind+" id", id)
	}
	return fmt.Errorf("failed to insert %s %s: %w", kind, id, err)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
