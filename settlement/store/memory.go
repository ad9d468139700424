// Package store provides in-memory implementations of the settlement
// store interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/egidigero/storeledger/settlement"
)

// =============================================================================
// MEMORY STORE - implements SaleStore, EntryStore and LedgerStore
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	sales     map[string]settlement.Sale
	entries   map[string]settlement.Entry
	days      map[string]settlement.DayRecord // keyed by Date.String()
	watermark *settlement.Date
}

func NewMemory() *Memory {
	return &Memory{
		sales:   make(map[string]settlement.Sale),
		entries: make(map[string]settlement.Entry),
		days:    make(map[string]settlement.DayRecord),
	}
}

// =============================================================================
// SALE STORE
// =============================================================================

func (m *Memory) PutSale(_ context.Context, s settlement.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales[s.ID] = s
	return nil
}

func (m *Memory) GetSale(_ context.Context, id string) (settlement.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[id]
	if !ok {
		return settlement.Sale{}, settlement.ErrSaleNotFound
	}
	return s, nil
}

func (m *Memory) DeleteSale(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[id]; !ok {
		return settlement.ErrSaleNotFound
	}
	delete(m.sales, id)
	return nil
}

func (m *Memory) SalesOn(_ context.Context, date settlement.Date) ([]settlement.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []settlement.Sale
	for _, s := range m.sales {
		if s.Date.Equal(date) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) LatestSaleDate(_ context.Context) (settlement.Date, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest settlement.Date
	found := false
	for _, s := range m.sales {
		if !found || s.Date.After(latest) {
			latest = s.Date
			found = true
		}
	}
	return latest, found, nil
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (m *Memory) PutEntry(_ context.Context, e settlement.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id string) (settlement.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return settlement.Entry{}, settlement.ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) DeleteEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return settlement.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) EntriesOn(_ context.Context, date settlement.Date) ([]settlement.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []settlement.Entry
	for _, e := range m.entries {
		if e.Date.Equal(date) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) LatestEntryDate(_ context.Context) (settlement.Date, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest settlement.Date
	found := false
	for _, e := range m.entries {
		if !found || e.Date.After(latest) {
			latest = e.Date
			found = true
		}
	}
	return latest, found, nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) GetDay(_ context.Context, date settlement.Date) (settlement.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.days[date.String()]
	if !ok {
		return settlement.DayRecord{}, settlement.ErrRecordNotFound
	}
	return rec, nil
}

func (m *Memory) PutDay(_ context.Context, rec settlement.DayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[rec.Date.String()] = rec
	return nil
}

func (m *Memory) PreviousDay(_ context.Context, date settlement.Date) (settlement.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var prev settlement.DayRecord
	found := false
	for _, rec := range m.days {
		if rec.Date.Before(date) && (!found || rec.Date.After(prev.Date)) {
			prev = rec
			found = true
		}
	}
	if !found {
		return settlement.DayRecord{}, settlement.ErrNoPriorRecord
	}
	return prev, nil
}

func (m *Memory) EarliestDay(_ context.Context) (settlement.DayRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var first settlement.DayRecord
	found := false
	for _, rec := range m.days {
		if !found || rec.Date.Before(first.Date) {
			first = rec
			found = true
		}
	}
	return first, found, nil
}

func (m *Memory) LatestDay(_ context.Context) (settlement.DayRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last settlement.DayRecord
	found := false
	for _, rec := range m.days {
		if !found || rec.Date.After(last.Date) {
			last = rec
			found = true
		}
	}
	return last, found, nil
}

func (m *Memory) DaysInRange(_ context.Context, from, to settlement.Date) ([]settlement.DayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []settlement.DayRecord
	for _, rec := range m.days {
		if from.BeforeOrEqual(rec.Date) && rec.Date.BeforeOrEqual(to) {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) SetWatermark(_ context.Context, date settlement.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := date
	m.watermark = &d
	return nil
}

func (m *Memory) Watermark(_ context.Context) (settlement.Date, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.watermark == nil {
		return settlement.Date{}, false, nil
	}
	return *m.watermark, true, nil
}

func (m *Memory) ClearWatermark(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermark = nil
	return nil
}
