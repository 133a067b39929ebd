package settlement

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stickflow/backoffice/ledger"
)

// =============================================================================
// SERVICE - Transaction boundary around reconcile + apply
// =============================================================================

// Service is the entry point used by the API. Settlements for the same
// distributor are serialized; the store's version check catches anything
// that slips past (another process writing the same database).
type Service struct {
	Store      ledger.TxStore
	Reconciler *Reconciler
	Logger     *zap.Logger

	locks distributorLocks
}

func NewService(store ledger.TxStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:      store,
		Reconciler: NewReconciler(),
		Logger:     logger.Named("settlement"),
	}
}

// Request selects what to settle for one distributor.
type Request struct {
	DistributorID ledger.CustomerID
	SaleIDs       []ledger.SaleID
	ExpenseIDs    []ledger.ExpenseID
}

// Preview reconciles without writing anything. The returned plan has no
// document number.
func (s *Service) Preview(ctx context.Context, req Request) (*Plan, error) {
	if len(req.SaleIDs) == 0 {
		return nil, ledger.NewValidationError(ledger.CodeEmptySaleSelection, ledger.ErrEmptySaleSelection,
			"select at least one sale to settle")
	}

	var plan *Plan
	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		var err error
		plan, err = s.reconcile(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Settle reconciles the selection and applies it atomically.
func (s *Service) Settle(ctx context.Context, req Request) (*ledger.Settlement, error) {
	if len(req.SaleIDs) == 0 {
		return nil, ledger.NewValidationError(ledger.CodeEmptySaleSelection, ledger.ErrEmptySaleSelection,
			"select at least one sale to settle")
	}

	unlock := s.locks.lock(req.DistributorID)
	defer unlock()

	var plan *Plan
	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		var err error
		plan, err = s.reconcile(ctx, tx, req)
		if err != nil {
			return err
		}
		n, err := tx.NextSequence(ctx, ledger.SeqSettlement)
		if err != nil {
			return err
		}
		plan.Settlement.Number = ledger.FormatNumber("STL", n)
		return Apply(ctx, tx, plan)
	})
	if err != nil {
		s.Logger.Warn("settlement rejected",
			zap.String("distributor_id", string(req.DistributorID)),
			zap.Int("sales", len(req.SaleIDs)),
			zap.Int("advances", len(req.ExpenseIDs)),
			zap.Error(err),
		)
		return nil, err
	}

	st := plan.Settlement
	s.Logger.Info("settlement applied",
		zap.String("distributor_id", string(st.DistributorID)),
		zap.String("settlement_id", string(st.ID)),
		zap.String("number", st.Number),
		zap.Stringer("final_margin", st.FinalMargin),
		zap.Stringer("adjustments", st.Adjustments),
		zap.Stringer("applied_outstanding", st.AppliedOutstandingBalance),
		zap.Stringer("amount", st.SettlementAmount),
		zap.String("direction", string(st.Direction())),
	)
	return &st, nil
}

func (s *Service) reconcile(ctx context.Context, tx ledger.Store, req Request) (*Plan, error) {
	customers, err := tx.Customers(ctx)
	if err != nil {
		return nil, err
	}
	d, err := ledger.LookupDistributor(customers, req.DistributorID)
	if err != nil {
		return nil, err
	}
	sales, err := tx.Sales(ctx)
	if err != nil {
		return nil, err
	}
	expenses, err := tx.Expenses(ctx)
	if err != nil {
		return nil, err
	}
	return s.Reconciler.Reconcile(Selection{
		Distributor: d,
		Sales:       sales,
		Expenses:    expenses,
		SaleIDs:     req.SaleIDs,
		ExpenseIDs:  req.ExpenseIDs,
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Unsettled lists what a distributor can still settle.
type Unsettled struct {
	Distributor ledger.Distributor
	Sales       []ledger.Sale
	Advances    []ledger.Expense
	Margin      Margin
	Advanced    decimal.Decimal
}

// Unsettled returns the distributor's unsettled sales (restricted to
// period when given, oldest first) and unsettled advances.
func (s *Service) Unsettled(ctx context.Context, distributorID ledger.CustomerID, period *ledger.Period) (*Unsettled, error) {
	if period != nil {
		if err := period.Validate(); err != nil {
			return nil, err
		}
	}

	out := &Unsettled{Advanced: decimal.Zero}
	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		customers, err := tx.Customers(ctx)
		if err != nil {
			return err
		}
		if out.Distributor, err = ledger.LookupDistributor(customers, distributorID); err != nil {
			return err
		}

		sales, err := tx.Sales(ctx)
		if err != nil {
			return err
		}
		for _, sale := range sales {
			if sale.DistributorID != distributorID || sale.IsSettled() {
				continue
			}
			if period != nil && !period.Contains(sale.Date) {
				continue
			}
			out.Sales = append(out.Sales, sale)
		}

		expenses, err := tx.Expenses(ctx)
		if err != nil {
			return err
		}
		for _, e := range expenses {
			if e.IsOpenAdvance() && e.DistributorID == distributorID {
				out.Advances = append(out.Advances, e)
				out.Advanced = out.Advanced.Add(e.AdvanceAmount())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out.Sales, func(i, j int) bool { return out.Sales[i].Date.Before(out.Sales[j].Date) })
	out.Margin = CalculateMargin(out.Sales)
	return out, nil
}

// Settlements returns a distributor's settlements, oldest first.
func (s *Service) Settlements(ctx context.Context, distributorID ledger.CustomerID) ([]ledger.Settlement, error) {
	all, err := s.Store.Settlements(ctx)
	if err != nil {
		return nil, err
	}
	var out []ledger.Settlement
	for _, st := range all {
		if st.DistributorID == distributorID {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SettledOn.Before(out[j].SettledOn) })
	return out, nil
}

func (s *Service) Get(ctx context.Context, id ledger.SettlementID) (*ledger.Settlement, error) {
	all, err := s.Store.Settlements(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range all {
		if st.ID == id {
			return &st, nil
		}
	}
	return nil, ledger.ErrSettlementNotFound
}

// Summary is one row of the distributor overview.
type Summary struct {
	Distributor       ledger.Distributor
	UnsettledSales    int
	UnsettledAdvances int
	Settlements       int
}

func (s *Service) Summaries(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		customers, err := tx.Customers(ctx)
		if err != nil {
			return err
		}
		sales, err := tx.Sales(ctx)
		if err != nil {
			return err
		}
		expenses, err := tx.Expenses(ctx)
		if err != nil {
			return err
		}
		settlements, err := tx.Settlements(ctx)
		if err != nil {
			return err
		}

		index := make(map[ledger.CustomerID]int)
		for _, c := range customers {
			if d, ok := c.AsDistributor(); ok {
				index[d.ID] = len(out)
				out = append(out, Summary{Distributor: d})
			}
		}
		for _, sale := range sales {
			if i, ok := index[sale.DistributorID]; ok && !sale.IsSettled() {
				out[i].UnsettledSales++
			}
		}
		for _, e := range expenses {
			if i, ok := index[e.DistributorID]; ok && e.IsOpenAdvance() {
				out[i].UnsettledAdvances++
			}
		}
		for _, st := range settlements {
			if i, ok := index[st.DistributorID]; ok {
				out[i].Settlements++
			}
		}
		return nil
	})
	return out, err
}

// =============================================================================
// LOCKING
// =============================================================================

// distributorLocks hands out one mutex per distributor.
type distributorLocks struct {
	mu    sync.Mutex
	locks map[ledger.CustomerID]*sync.Mutex
}

func (l *distributorLocks) lock(id ledger.CustomerID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[ledger.CustomerID]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
