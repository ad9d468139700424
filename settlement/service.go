/*
service.go - Mutation entry points that keep the ledger consistent

PURPOSE:
  The single place the CRUD surface is allowed to mutate sales, entries and
  same-day settlement inputs. Every mutation is persisted, classified by
  the planner, and - when financially relevant - pushed through the worker
  so the ledger is recalculated before the call returns.

  This is the in-process equivalent of the onSaleChanged /
  onExpenseIncomeChanged trigger contract: at-least-once delivery into an
  idempotent cascade.

SEE ALSO:
  - planner.go: Diff classification
  - worker.go: Serialized cascade execution
  - ledger.go: Opening balance and same-day inputs
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Service coordinates source-record mutations with ledger recalculation.
type Service struct {
	Sales   SaleStore
	Entries EntryStore
	Ledger  *Ledger
	Worker  *Worker
}

func NewService(sales SaleStore, entries EntryStore, ledger *Ledger, worker *Worker) *Service {
	return &Service{Sales: sales, Entries: entries, Ledger: ledger, Worker: worker}
}

// =============================================================================
// SALES
// =============================================================================

// CreateSale persists a new sale and cascades from its date.
func (s *Service) CreateSale(ctx context.Context, sale Sale) error {
	sale.CreatedAt = time.Now().UTC()
	sale.UpdatedAt = sale.CreatedAt
	if err := s.Sales.PutSale(ctx, sale); err != nil {
		return err
	}
	return s.apply(ctx, PlanSaleChange(nil, &sale, OpCreate))
}

// UpdateSale persists an edited sale. Cosmetic edits skip recalculation;
// financial edits cascade from the earlier of the old and new date.
func (s *Service) UpdateSale(ctx context.Context, sale Sale) error {
	original, err := s.Sales.GetSale(ctx, sale.ID)
	if err != nil {
		return err
	}
	sale.CreatedAt = original.CreatedAt
	sale.UpdatedAt = time.Now().UTC()
	if err := s.Sales.PutSale(ctx, sale); err != nil {
		return err
	}
	return s.apply(ctx, PlanSaleChange(&original, &sale, OpUpdate))
}

// DeleteSale removes a sale and cascades from its date.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	sale, err := s.Sales.GetSale(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Sales.DeleteSale(ctx, id); err != nil {
		return err
	}
	return s.apply(ctx, PlanSaleChange(nil, &sale, OpDelete))
}

// =============================================================================
// EXPENSE / INCOME ENTRIES
// =============================================================================

func (s *Service) CreateEntry(ctx context.Context, e Entry) error {
	if e.Channel == "" {
		e.Channel = ChannelGeneral
	}
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	if err := s.Entries.PutEntry(ctx, e); err != nil {
		return err
	}
	return s.apply(ctx, PlanEntryChange(nil, &e, OpCreate))
}

func (s *Service) UpdateEntry(ctx context.Context, e Entry) error {
	original, err := s.Entries.GetEntry(ctx, e.ID)
	if err != nil {
		return err
	}
	if e.Channel == "" {
		e.Channel = ChannelGeneral
	}
	e.CreatedAt = original.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	if err := s.Entries.PutEntry(ctx, e); err != nil {
		return err
	}
	return s.apply(ctx, PlanEntryChange(&original, &e, OpUpdate))
}

func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	e, err := s.Entries.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Entries.DeleteEntry(ctx, id); err != nil {
		return err
	}
	return s.apply(ctx, PlanEntryChange(nil, &e, OpDelete))
}

// =============================================================================
// LEDGER OPERATIONS
// =============================================================================

// EstablishOpeningBalance bootstraps the ledger. One-time; see Ledger.
func (s *Service) EstablishOpeningBalance(ctx context.Context, date Date, processorAvailable, processorPending, platformPending decimal.Decimal) error {
	return s.Ledger.EstablishOpeningBalance(ctx, date, processorAvailable, processorPending, platformPending)
}

// ApplySameDayInputs records a manual settlement event and cascades from
// that date - settled amounts feed the balance equations of every later day.
func (s *Service) ApplySameDayInputs(ctx context.Context, date Date, in SameDayInputs) (DayRecord, error) {
	if _, err := s.Ledger.ApplySameDayInputs(ctx, date, in); err != nil {
		return DayRecord{}, err
	}
	if err := s.apply(ctx, cascade(date, "same-day settlement inputs")); err != nil {
		return DayRecord{}, err
	}
	return s.Ledger.Read(ctx, date)
}

// RecalculateFrom is the manual repair entry point.
func (s *Service) RecalculateFrom(ctx context.Context, date Date) error {
	return s.apply(ctx, cascade(date, "manual recalculation"))
}

func (s *Service) apply(ctx context.Context, plan Plan) error {
	if plan.Skip {
		return nil
	}
	if err := s.Worker.EnqueueWait(ctx, InputChange{From: plan.From, Reason: plan.Reason}); err != nil {
		return fmt.Errorf("recalculation from %s: %w", plan.From, err)
	}
	return nil
}
