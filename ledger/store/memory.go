// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/stickflow/backoffice/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state state
}

type state struct {
	sales       []ledger.Sale
	expenses    []ledger.Expense
	customers   []ledger.Customer
	settlements []ledger.Settlement
	sequences   map[string]int64
}

func NewMemory() *Memory {
	return &Memory{state: state{sequences: make(map[string]int64)}}
}

// Reset drops every record and restarts the sequences.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state{sequences: make(map[string]int64)}
	return nil
}

func (m *Memory) Sales(_ context.Context) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.copySales(), nil
}

func (m *Memory) Expenses(_ context.Context) ([]ledger.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Expense(nil), m.state.expenses...), nil
}

func (m *Memory) Customers(_ context.Context) ([]ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Customer(nil), m.state.customers...), nil
}

func (m *Memory) Settlements(_ context.Context) ([]ledger.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.copySettlements(), nil
}

func (m *Memory) SetSales(_ context.Context, sales []ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.setSales(sales)
	return nil
}

func (m *Memory) SetExpenses(_ context.Context, expenses []ledger.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.expenses = append([]ledger.Expense(nil), expenses...)
	return nil
}

func (m *Memory) SetCustomers(_ context.Context, customers []ledger.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.setCustomers(customers)
}

func (m *Memory) SetSettlements(_ context.Context, settlements []ledger.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.setSettlements(settlements)
	return nil
}

func (m *Memory) NextSequence(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.sequences[name]++
	return m.state.sequences[name], nil
}

func (s *state) copySales() []ledger.Sale {
	out := make([]ledger.Sale, len(s.sales))
	for i, sale := range s.sales {
		out[i] = sale.Clone()
	}
	return out
}

func (s *state) copySettlements() []ledger.Settlement {
	out := make([]ledger.Settlement, len(s.settlements))
	for i, st := range s.settlements {
		out[i] = st.Clone()
	}
	return out
}

func (s *state) setSales(sales []ledger.Sale) {
	s.sales = make([]ledger.Sale, len(sales))
	for i, sale := range sales {
		s.sales[i] = sale.Clone()
	}
}

func (s *state) setSettlements(settlements []ledger.Settlement) {
	s.settlements = make([]ledger.Settlement, len(settlements))
	for i, st := range settlements {
		s.settlements[i] = st.Clone()
	}
}

func (s *state) setCustomers(customers []ledger.Customer) error {
	versioned, err := ledger.VersionCustomers(s.customers, customers)
	if err != nil {
		return err
	}
	s.customers = versioned
	return nil
}

func (s *state) clone() state {
	seq := make(map[string]int64, len(s.sequences))
	for k, v := range s.sequences {
		seq[k] = v
	}
	return state{
		sales:       s.copySales(),
		expenses:    append([]ledger.Expense(nil), s.expenses...),
		customers:   append([]ledger.Customer(nil), s.customers...),
		settlements: s.copySettlements(),
		sequences:   seq,
	}
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is a snapshot plus restore on error. The store
// lock is held for the whole of fn, so transactions are serialized.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.state.clone()
	if err := fn(&txMemoryView{st: &tm.state}); err != nil {
		tm.state = snapshot
		return err
	}
	return nil
}

// txMemoryView operates on the parent's state without taking its lock.
type txMemoryView struct {
	st *state
}

func (tv *txMemoryView) Sales(_ context.Context) ([]ledger.Sale, error) {
	return tv.st.copySales(), nil
}

func (tv *txMemoryView) Expenses(_ context.Context) ([]ledger.Expense, error) {
	return append([]ledger.Expense(nil), tv.st.expenses...), nil
}

func (tv *txMemoryView) Customers(_ context.Context) ([]ledger.Customer, error) {
	return append([]ledger.Customer(nil), tv.st.customers...), nil
}

func (tv *txMemoryView) Settlements(_ context.Context) ([]ledger.Settlement, error) {
	return tv.st.copySettlements(), nil
}

func (tv *txMemoryView) SetSales(_ context.Context, sales []ledger.Sale) error {
	tv.st.setSales(sales)
	return nil
}

func (tv *txMemoryView) SetExpenses(_ context.Context, expenses []ledger.Expense) error {
	tv.st.expenses = append([]ledger.Expense(nil), expenses...)
	return nil
}

func (tv *txMemoryView) SetCustomers(_ context.Context, customers []ledger.Customer) error {
	return tv.st.setCustomers(customers)
}

func (tv *txMemoryView) SetSettlements(_ context.Context, settlements []ledger.Settlement) error {
	tv.st.setSettlements(settlements)
	return nil
}

// Reset drops every record and restarts the sequences; a failed
// transaction restores them.
func (tv *txMemoryView) Reset(_ context.Context) error {
	*tv.st = state{sequences: make(map[string]int64)}
	return nil
}

func (tv *txMemoryView) NextSequence(_ context.Context, name string) (int64, error) {
	tv.st.sequences[name]++
	return tv.st.sequences[name], nil
}
