/*
Package sqlite provides the SQLite-backed implementation of the settlement
storage interfaces.

PURPOSE:
  Implements settlement.SaleStore, settlement.EntryStore and
  settlement.LedgerStore, plus rate-row persistence, on a single SQLite
  file. The same patterns apply to PostgreSQL - only dialect differences.

KEY TABLES:
  sales:        Sale records (financial + cosmetic fields)
  entries:      Expense/income records
  rates:        Commission/tax/discount rates per (channel, method, condition)
  ledger_days:  One settlement record per calendar date (PRIMARY KEY on day)
  recalc_state: Single-row recalculation watermark

MONEY COLUMNS:
  Decimals are stored as TEXT and parsed with shopspring/decimal. REAL
  columns would reintroduce the floating-point drift the engine exists
  to avoid.

OWNERSHIP:
  ledger_days derived columns are written only by the cascade (via
  PutDay). The store itself does not distinguish writers; the settlement
  package enforces that discipline.

CONCURRENCY:
  sync.RWMutex in front of the connection, WAL journal mode. With
  PostgreSQL, database-level concurrency control replaces the mutex.

USAGE:
  st, err := sqlite.New("./data/storeledger.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()

SEE ALSO:
  - settlement/store.go: Interface definitions
  - settlement/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/sales"
	"github.com/egidigero/storeledger/settlement"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive across calls;
	// writes are serialized by the mutex anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		sale_date TEXT NOT NULL,
		channel TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		gross_price TEXT NOT NULL,
		shipping_cost TEXT NOT NULL,
		product_cost TEXT NOT NULL,
		commission TEXT NOT NULL,
		tax TEXT NOT NULL,
		gross_receipts_tax TEXT NOT NULL,
		net_price TEXT NOT NULL,
		margin TEXT NOT NULL,
		product TEXT,
		buyer_name TEXT,
		tracking_url TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(sale_date);
	CREATE INDEX IF NOT EXISTS idx_sales_date_channel ON sales(sale_date, channel);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		entry_date TEXT NOT NULL,
		channel TEXT NOT NULL,
		kind TEXT NOT NULL,
		category TEXT,
		amount TEXT NOT NULL,
		personal BOOLEAN NOT NULL DEFAULT FALSE,
		description TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(entry_date);

	CREATE TABLE IF NOT EXISTS rates (
		id TEXT PRIMARY KEY,
		channel TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		condition TEXT NOT NULL,
		commission_pct TEXT NOT NULL,
		extra_commission_pct TEXT NOT NULL,
		discount_pct TEXT NOT NULL,
		fixed_fee TEXT NOT NULL,
		gross_receipts_pct TEXT NOT NULL,
		UNIQUE(channel, payment_method, condition)
	);

	-- One settlement record per calendar date. Derived columns are owned
	-- by the cascade recalculator.
	CREATE TABLE IF NOT EXISTS ledger_days (
		day TEXT PRIMARY KEY,
		processor_available TEXT NOT NULL,
		processor_pending TEXT NOT NULL,
		processor_settled_today TEXT NOT NULL,
		platform_pending TEXT NOT NULL,
		platform_settled_today TEXT NOT NULL,
		platform_tax_withheld_today TEXT NOT NULL,
		notes TEXT,
		opening BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);

	-- Single-row recalculation watermark for resumable cascades.
	CREATE TABLE IF NOT EXISTS recalc_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		watermark TEXT
	);
	INSERT OR IGNORE INTO recalc_state (id, watermark) VALUES (1, NULL);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SALE STORE (settlement.SaleStore)
// =============================================================================

func (s *Store) PutSale(ctx context.Context, sale settlement.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	query := `
		INSERT OR REPLACE INTO sales
		(id, sale_date, channel, payment_method, gross_price, shipping_cost, product_cost,
		 commission, tax, gross_receipts_tax, net_price, margin,
		 product, buyer_name, tracking_url, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sale.ID,
		sale.Date.String(),
		sale.Channel,
		sale.PaymentMethod,
		sale.GrossPrice.String(),
		sale.ShippingCost.String(),
		sale.ProductCost.String(),
		sale.Commission.String(),
		sale.Tax.String(),
		sale.GrossReceiptsTax.String(),
		sale.NetPrice.String(),
		sale.Margin.String(),
		sale.Product,
		sale.BuyerName,
		sale.TrackingURL,
		sale.Notes,
		sale.CreatedAt.UTC().Format(time.RFC3339),
		sale.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save sale: %w", err)
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id string) (settlement.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, saleColumns+` FROM sales WHERE id = ?`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.Sale{}, settlement.ErrSaleNotFound
	}
	return sale, err
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return settlement.ErrSaleNotFound
	}
	return nil
}

func (s *Store) SalesOn(ctx context.Context, date settlement.Date) ([]settlement.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		saleColumns+` FROM sales WHERE sale_date = ? ORDER BY created_at ASC, id ASC`,
		date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var result []settlement.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sale)
	}
	return result, rows.Err()
}

func (s *Store) LatestSaleDate(ctx context.Context) (settlement.Date, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestDate(ctx, `SELECT MAX(sale_date) FROM sales`)
}

const saleColumns = `
	SELECT id, sale_date, channel, payment_method, gross_price, shipping_cost, product_cost,
	       commission, tax, gross_receipts_tax, net_price, margin,
	       product, buyer_name, tracking_url, notes, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanSale(r rowScanner) (settlement.Sale, error) {
	var (
		sale                            settlement.Sale
		day                             string
		gross, ship, cost, comm         string
		tax, iibb, net, margin          string
		product, buyer, tracking, notes sql.NullString
		createdAt, updatedAt            string
	)
	err := r.Scan(&sale.ID, &day, &sale.Channel, &sale.PaymentMethod,
		&gross, &ship, &cost, &comm, &tax, &iibb, &net, &margin,
		&product, &buyer, &tracking, &notes, &createdAt, &updatedAt)
	if err != nil {
		return settlement.Sale{}, err
	}

	if sale.Date, err = settlement.ParseDate(day); err != nil {
		return settlement.Sale{}, err
	}
	parseDecimal(gross, &sale.GrossPrice, &err)
	parseDecimal(ship, &sale.ShippingCost, &err)
	parseDecimal(cost, &sale.ProductCost, &err)
	parseDecimal(comm, &sale.Commission, &err)
	parseDecimal(tax, &sale.Tax, &err)
	parseDecimal(iibb, &sale.GrossReceiptsTax, &err)
	parseDecimal(net, &sale.NetPrice, &err)
	parseDecimal(margin, &sale.Margin, &err)
	if err != nil {
		return settlement.Sale{}, err
	}
	sale.Product = product.String
	sale.BuyerName = buyer.String
	sale.TrackingURL = tracking.String
	sale.Notes = notes.String
	sale.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sale.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return sale, nil
}

// =============================================================================
// ENTRY STORE (settlement.EntryStore)
// =============================================================================

func (s *Store) PutEntry(ctx context.Context, e settlement.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT OR REPLACE INTO entries
		(id, entry_date, channel, kind, category, amount, personal, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Date.String(),
		e.Channel,
		e.Kind,
		e.Category,
		e.Amount.String(),
		e.Personal,
		e.Description,
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (settlement.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.Entry{}, settlement.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return settlement.ErrEntryNotFound
	}
	return nil
}

func (s *Store) EntriesOn(ctx context.Context, date settlement.Date) ([]settlement.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		entryColumns+` FROM entries WHERE entry_date = ? ORDER BY created_at ASC, id ASC`,
		date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var result []settlement.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) LatestEntryDate(ctx context.Context) (settlement.Date, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestDate(ctx, `SELECT MAX(entry_date) FROM entries`)
}

const entryColumns = `
	SELECT id, entry_date, channel, kind, category, amount, personal, description, created_at, updated_at`

func scanEntry(r rowScanner) (settlement.Entry, error) {
	var (
		e                     settlement.Entry
		day, amount           string
		category, description sql.NullString
		createdAt, updatedAt  string
	)
	err := r.Scan(&e.ID, &day, &e.Channel, &e.Kind, &category, &amount,
		&e.Personal, &description, &createdAt, &updatedAt)
	if err != nil {
		return settlement.Entry{}, err
	}

	if e.Date, err = settlement.ParseDate(day); err != nil {
		return settlement.Entry{}, err
	}
	parseDecimal(amount, &e.Amount, &err)
	if err != nil {
		return settlement.Entry{}, err
	}
	e.Category = category.String
	e.Description = description.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return e, nil
}

// =============================================================================
// RATE STORE
// =============================================================================

func (s *Store) PutRate(ctx context.Context, r sales.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	query := `
		INSERT INTO rates
		(id, channel, payment_method, condition, commission_pct, extra_commission_pct,
		 discount_pct, fixed_fee, gross_receipts_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel, payment_method, condition) DO UPDATE SET
			commission_pct = excluded.commission_pct,
			extra_commission_pct = excluded.extra_commission_pct,
			discount_pct = excluded.discount_pct,
			fixed_fee = excluded.fixed_fee,
			gross_receipts_pct = excluded.gross_receipts_pct
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Key.Channel, r.Key.PaymentMethod, r.Key.Condition,
		r.CommissionPct.String(), r.ExtraCommissionPct.String(),
		r.DiscountPct.String(), r.FixedFee.String(), r.GrossReceiptsPct.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

func (s *Store) ListRates(ctx context.Context) ([]sales.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel, payment_method, condition, commission_pct,
		       extra_commission_pct, discount_pct, fixed_fee, gross_receipts_pct
		FROM rates ORDER BY channel, payment_method, condition`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var result []sales.Rate
	for rows.Next() {
		var (
			r                            sales.Rate
			comm, extra, disc, fee, iibb string
		)
		err := rows.Scan(&r.ID, &r.Key.Channel, &r.Key.PaymentMethod, &r.Key.Condition,
			&comm, &extra, &disc, &fee, &iibb)
		if err != nil {
			return nil, err
		}
		parseDecimal(comm, &r.CommissionPct, &err)
		parseDecimal(extra, &r.ExtraCommissionPct, &err)
		parseDecimal(disc, &r.DiscountPct, &err)
		parseDecimal(fee, &r.FixedFee, &err)
		parseDecimal(iibb, &r.GrossReceiptsPct, &err)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// =============================================================================
// LEDGER STORE (settlement.LedgerStore)
// =============================================================================

func (s *Store) GetDay(ctx context.Context, date settlement.Date) (settlement.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, dayColumns+` FROM ledger_days WHERE day = ?`, date.String())
	rec, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.DayRecord{}, settlement.ErrRecordNotFound
	}
	return rec, err
}

func (s *Store) PutDay(ctx context.Context, rec settlement.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := `
		INSERT OR REPLACE INTO ledger_days
		(day, processor_available, processor_pending, processor_settled_today,
		 platform_pending, platform_settled_today, platform_tax_withheld_today,
		 notes, opening, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Date.String(),
		rec.Processor.Available.String(),
		rec.Processor.Pending.String(),
		rec.Processor.SettledToday.String(),
		rec.Platform.Pending.String(),
		rec.Platform.SettledToday.String(),
		rec.Platform.TaxWithheldToday.String(),
		rec.Notes,
		rec.Opening,
		updatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger day: %w", err)
	}
	return nil
}

func (s *Store) PreviousDay(ctx context.Context, date settlement.Date) (settlement.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		dayColumns+` FROM ledger_days WHERE day < ? ORDER BY day DESC LIMIT 1`, date.String())
	rec, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.DayRecord{}, settlement.ErrNoPriorRecord
	}
	return rec, err
}

func (s *Store) EarliestDay(ctx context.Context) (settlement.DayRecord, bool, error) {
	return s.boundaryDay(ctx, `ORDER BY day ASC`)
}

func (s *Store) LatestDay(ctx context.Context) (settlement.DayRecord, bool, error) {
	return s.boundaryDay(ctx, `ORDER BY day DESC`)
}

func (s *Store) boundaryDay(ctx context.Context, order string) (settlement.DayRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, dayColumns+` FROM ledger_days `+order+` LIMIT 1`)
	rec, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.DayRecord{}, false, nil
	}
	if err != nil {
		return settlement.DayRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) DaysInRange(ctx context.Context, from, to settlement.Date) ([]settlement.DayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		dayColumns+` FROM ledger_days WHERE day >= ? AND day <= ? ORDER BY day ASC`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger days: %w", err)
	}
	defer rows.Close()

	var result []settlement.DayRecord
	for rows.Next() {
		rec, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) SetWatermark(ctx context.Context, date settlement.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE recalc_state SET watermark = ? WHERE id = 1`, date.String())
	return err
}

func (s *Store) Watermark(ctx context.Context) (settlement.Date, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wm sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT watermark FROM recalc_state WHERE id = 1`).Scan(&wm); err != nil {
		return settlement.Date{}, false, err
	}
	if !wm.Valid || wm.String == "" {
		return settlement.Date{}, false, nil
	}
	d, err := settlement.ParseDate(wm.String)
	if err != nil {
		return settlement.Date{}, false, err
	}
	return d, true, nil
}

func (s *Store) ClearWatermark(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE recalc_state SET watermark = NULL WHERE id = 1`)
	return err
}

const dayColumns = `
	SELECT day, processor_available, processor_pending, processor_settled_today,
	       platform_pending, platform_settled_today, platform_tax_withheld_today,
	       notes, opening, updated_at`

func scanDay(r rowScanner) (settlement.DayRecord, error) {
	var (
		rec                             settlement.DayRecord
		day                             string
		avail, procPend, procSettled    string
		platPend, platSettled, withheld string
		notes                           sql.NullString
		updatedAt                       string
	)
	err := r.Scan(&day, &avail, &procPend, &procSettled,
		&platPend, &platSettled, &withheld, &notes, &rec.Opening, &updatedAt)
	if err != nil {
		return settlement.DayRecord{}, err
	}

	if rec.Date, err = settlement.ParseDate(day); err != nil {
		return settlement.DayRecord{}, err
	}
	parseDecimal(avail, &rec.Processor.Available, &err)
	parseDecimal(procPend, &rec.Processor.Pending, &err)
	parseDecimal(procSettled, &rec.Processor.SettledToday, &err)
	parseDecimal(platPend, &rec.Platform.Pending, &err)
	parseDecimal(platSettled, &rec.Platform.SettledToday, &err)
	parseDecimal(withheld, &rec.Platform.TaxWithheldToday, &err)
	if err != nil {
		return settlement.DayRecord{}, err
	}
	rec.Notes = notes.String
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) latestDate(ctx context.Context, query string) (settlement.Date, bool, error) {
	var max sql.NullString
	if err := s.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return settlement.Date{}, false, err
	}
	if !max.Valid || max.String == "" {
		return settlement.Date{}, false, nil
	}
	d, err := settlement.ParseDate(max.String)
	if err != nil {
		return settlement.Date{}, false, err
	}
	return d, true, nil
}

// parseDecimal parses into dst unless a previous parse already failed.
func parseDecimal(raw string, dst *decimal.Decimal, err *error) {
	if *err != nil {
		return
	}
	d, e := decimal.NewFromString(raw)
	if e != nil {
		*err = fmt.Errorf("corrupt decimal %q: %w", raw, e)
		return
	}
	*dst = d
}
