package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nitink/gtt_planner/internal/domain"
)

// SQLiteStore backs the entry-level schedule, the instrument-key lookup, the
// single plan slot and the placement journal with one sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entry_levels (
			symbol TEXT NOT NULL,
			exchange TEXT NOT NULL DEFAULT 'NSE',
			allocated REAL,
			entry1 REAL,
			entry2 REAL,
			entry3 REAL,
			da_enabled BOOLEAN NOT NULL DEFAULT 0,
			da_legs INTEGER NOT NULL DEFAULT 1,
			da_buyback1 REAL,
			da_buyback2 REAL,
			da_buyback3 REAL,
			quality TEXT,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (exchange, symbol)
		);`,
		`CREATE TABLE IF NOT EXISTS instruments (
			exchange TEXT NOT NULL,
			symbol TEXT NOT NULL,
			instrument_key TEXT NOT NULL,
			PRIMARY KEY (exchange, symbol)
		);`,
		`CREATE TABLE IF NOT EXISTS plan_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			exchange TEXT NOT NULL,
			order_price REAL NOT NULL DEFAULT 0,
			trigger_price REAL NOT NULL DEFAULT 0,
			quantity INTEGER NOT NULL DEFAULT 0,
			ltp REAL NOT NULL DEFAULT 0,
			entry_level TEXT,
			leg TEXT,
			skip_reason TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS placements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			order_id TEXT,
			order_price REAL NOT NULL,
			trigger_price REAL NOT NULL,
			quantity INTEGER NOT NULL,
			status TEXT NOT NULL,
			remarks TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_placements_symbol ON placements(symbol);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// EntryLevelRepository implementation

func (s *SQLiteStore) ListEntryLevels(ctx context.Context) ([]domain.EntryLevelRow, error) {
	query := `SELECT symbol, exchange, allocated, entry1, entry2, entry3,
			da_enabled, da_legs, da_buyback1, da_buyback2, da_buyback3, quality
		FROM entry_levels ORDER BY symbol`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EntryLevelRow
	for rows.Next() {
		var (
			r          domain.EntryLevelRow
			allocated  sql.NullFloat64
			e1, e2, e3 sql.NullFloat64
			b1, b2, b3 sql.NullFloat64
			quality    sql.NullString
		)
		if err := rows.Scan(&r.Symbol, &r.Exchange, &allocated, &e1, &e2, &e3,
			&r.DAEnabled, &r.DALegs, &b1, &b2, &b3, &quality); err != nil {
			return nil, err
		}
		r.Allocated = nullableToFloat(allocated)
		r.Entry1 = nullableToFloat(e1)
		r.Entry2 = nullableToFloat(e2)
		r.Entry3 = nullableToFloat(e3)
		r.DABuyback = [3]float64{nullableToFloat(b1), nullableToFloat(b2), nullableToFloat(b3)}
		r.Quality = quality.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// UpsertEntryLevel inserts or replaces one schedule row, used by config
// import and the test-data tool.
func (s *SQLiteStore) UpsertEntryLevel(ctx context.Context, row domain.EntryLevelRow) error {
	query := `INSERT INTO entry_levels
			(symbol, exchange, allocated, entry1, entry2, entry3,
			 da_enabled, da_legs, da_buyback1, da_buyback2, da_buyback3, quality, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(exchange, symbol) DO UPDATE SET
			allocated=excluded.allocated,
			entry1=excluded.entry1,
			entry2=excluded.entry2,
			entry3=excluded.entry3,
			da_enabled=excluded.da_enabled,
			da_legs=excluded.da_legs,
			da_buyback1=excluded.da_buyback1,
			da_buyback2=excluded.da_buyback2,
			da_buyback3=excluded.da_buyback3,
			quality=excluded.quality,
			updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		domain.NormalizeSymbol(row.Symbol), row.Exchange,
		floatToNullable(row.Allocated),
		floatToNullable(row.Entry1), floatToNullable(row.Entry2), floatToNullable(row.Entry3),
		row.DAEnabled, row.DALegs,
		floatToNullable(row.DABuyback[0]), floatToNullable(row.DABuyback[1]), floatToNullable(row.DABuyback[2]),
		row.Quality, time.Now())
	return err
}

// InstrumentResolver implementation

func (s *SQLiteStore) Resolve(exchange, symbol string) (string, error) {
	query := `SELECT instrument_key FROM instruments WHERE exchange = ? AND symbol = ?`
	var key string
	err := s.db.QueryRow(query, exchange, domain.NormalizeSymbol(symbol)).Scan(&key)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no instrument key for %s:%s", exchange, symbol)
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *SQLiteStore) UpsertInstrument(ctx context.Context, exchange, symbol, instrumentKey string) error {
	query := `INSERT INTO instruments (exchange, symbol, instrument_key)
		VALUES (?, ?, ?)
		ON CONFLICT(exchange, symbol) DO UPDATE SET instrument_key=excluded.instrument_key`
	_, err := s.db.ExecContext(ctx, query, exchange, domain.NormalizeSymbol(symbol), instrumentKey)
	return err
}

// PlanRepository implementation. The plan slot holds at most one plan; a
// write replaces whatever was there.

func (s *SQLiteStore) WritePlan(ctx context.Context, plan *domain.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_entries`); err != nil {
		return err
	}
	insert := `INSERT INTO plan_entries
			(symbol, exchange, order_price, trigger_price, quantity, ltp, entry_level, leg, skip_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, e := range plan.Entries {
		if _, err := tx.ExecContext(ctx, insert,
			e.Symbol, e.Exchange, e.OrderPrice, e.TriggerPrice, e.Quantity, e.LTP,
			e.Level, e.Leg, e.SkipReason, plan.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReadPlan(ctx context.Context) (*domain.Plan, error) {
	query := `SELECT symbol, exchange, order_price, trigger_price, quantity, ltp,
			entry_level, leg, skip_reason, created_at
		FROM plan_entries ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plan *domain.Plan
	for rows.Next() {
		var (
			e         domain.PlanEntry
			level     sql.NullString
			leg       sql.NullString
			skip      sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&e.Symbol, &e.Exchange, &e.OrderPrice, &e.TriggerPrice,
			&e.Quantity, &e.LTP, &level, &leg, &skip, &createdAt); err != nil {
			return nil, err
		}
		e.Level = level.String
		e.Leg = leg.String
		e.SkipReason = skip.String
		if plan == nil {
			plan = &domain.Plan{CreatedAt: createdAt}
		}
		plan.Entries = append(plan.Entries, e)
	}
	return plan, rows.Err()
}

func (s *SQLiteStore) DeletePlan(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plan_entries`)
	return err
}

// PlacementJournal implementation

func (s *SQLiteStore) SavePlacement(ctx context.Context, result domain.PlacementResult) error {
	query := `INSERT INTO placements
			(symbol, order_id, order_price, trigger_price, quantity, status, remarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		result.Symbol, result.OrderID, result.OrderPrice, result.TriggerPrice,
		result.Quantity, result.Status, result.Remarks, time.Now())
	return err
}

// ListPlacements returns the most recent journal rows, newest first.
func (s *SQLiteStore) ListPlacements(ctx context.Context, limit int) ([]domain.PlacementResult, error) {
	query := `SELECT symbol, order_id, order_price, trigger_price, quantity, status, remarks
		FROM placements ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.PlacementResult
	for rows.Next() {
		var (
			r       domain.PlacementResult
			orderID sql.NullString
			remarks sql.NullString
		)
		if err := rows.Scan(&r.Symbol, &orderID, &r.OrderPrice, &r.TriggerPrice,
			&r.Quantity, &r.Status, &remarks); err != nil {
			return nil, err
		}
		r.OrderID = orderID.String
		r.Remarks = remarks.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// Unset numeric columns round-trip as NaN in memory and NULL in the db.

func nullableToFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func floatToNullable(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
