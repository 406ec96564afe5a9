package omnifolio

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// Store persists per-source market data in PostgreSQL. Every data point keeps
// its (symbol, day, source) identity so later reconciliation can weigh
// sources against each other instead of losing the provenance at write time.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewStore wraps an existing connection pool.
func NewStore(pool *pgxpool.Pool, log *slog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// ConnectStore opens a pool, verifies the connection and runs pending
// migrations.
func ConnectStore(ctx context.Context, databaseURL string, log *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := NewStore(pool, log)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate applies all pending .up.sql files, tracked in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening migrations: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT        PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning migration name: %w", err)
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating applied migrations: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, file := range upFiles {
		if applied[file] {
			continue
		}
		sql, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", file, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("executing migration %s: %w", file, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			return fmt.Errorf("recording migration %s: %w", file, err)
		}
		s.log.Info("applied migration", "file", file)
	}
	return nil
}

// Upsert merges a freshly fetched series into the store inside one
// transaction. Rows for days the store has never seen are inserted. Rows for
// the source's most recent `window` stored days are overwritten, since
// upstream sources routinely revise recent data. Stored rows older than that
// window are immutable: incoming rows for those days are dropped. Running the
// same upsert twice leaves the store unchanged.
func (s *Store) Upsert(ctx context.Context, source string, window int, ts TimeSeries) error {
	if err := ts.Validate(); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert for %s: %w", ts.Symbol, err)
	}
	defer tx.Rollback(ctx)

	inserted, skipped, err := s.upsertPrices(ctx, tx, source, window, ts)
	if err != nil {
		return err
	}
	evIns, evSkip, err := s.upsertEvents(ctx, tx, source, window, ts)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert for %s: %w", ts.Symbol, err)
	}
	s.log.Debug("upserted series",
		"symbol", ts.Symbol, "source", source,
		"prices_written", inserted, "prices_frozen", skipped,
		"events_written", evIns, "events_frozen", evSkip)
	return nil
}

// mutableDays returns the set of stored days that are writable for the given
// table and the days that exist at all. A stored day is writable when it is
// among the `window` most recent days the source has stored.
func mutableDays(ctx context.Context, tx pgx.Tx, table, symbol, source string, window int) (stored, writable map[Date]bool, err error) {
	rows, err := tx.Query(ctx,
		fmt.Sprintf(`SELECT day FROM %s WHERE symbol = $1 AND source = $2 ORDER BY day DESC`, table),
		symbol, source)
	if err != nil {
		return nil, nil, fmt.Errorf("reading stored days from %s: %w", table, err)
	}
	defer rows.Close()

	stored = make(map[Date]bool)
	writable = make(map[Date]bool)
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, nil, fmt.Errorf("scanning stored day: %w", err)
		}
		day := NewDate(t.Date())
		stored[day] = true
		if len(writable) < window {
			writable[day] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating stored days: %w", err)
	}
	return stored, writable, nil
}

func (s *Store) upsertPrices(ctx context.Context, tx pgx.Tx, source string, window int, ts TimeSeries) (written, frozen int, err error) {
	stored, writable, err := mutableDays(ctx, tx, "market_prices", ts.Symbol, source, window)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range ts.Prices {
		if stored[p.Day] && !writable[p.Day] {
			frozen++
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO market_prices
				(symbol, day, source, trust, collected_at,
				 open, high, low, close, adjusted_close, denominator, volume, unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (symbol, day, source) DO UPDATE SET
				trust = EXCLUDED.trust,
				collected_at = EXCLUDED.collected_at,
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				adjusted_close = EXCLUDED.adjusted_close,
				denominator = EXCLUDED.denominator,
				volume = EXCLUDED.volume,
				unit = EXCLUDED.unit`,
			ts.Symbol, p.Day.Time(), source, int(p.Trust), p.CollectedAt,
			p.Open, p.High, p.Low, p.Close, p.AdjustedClose, p.Denominator, p.Volume, p.Unit)
		if err != nil {
			return 0, 0, fmt.Errorf("writing price %s/%s: %w", ts.Symbol, p.Day, err)
		}
		written++
	}
	return written, frozen, nil
}

func (s *Store) upsertEvents(ctx context.Context, tx pgx.Tx, source string, window int, ts TimeSeries) (written, frozen int, err error) {
	stored, writable, err := mutableDays(ctx, tx, "market_events", ts.Symbol, source, window)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range ts.Events {
		if stored[e.Day] && !writable[e.Day] {
			frozen++
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO market_events
				(symbol, day, source, trust, collected_at,
				 dividend_numerator, dividend_denominator, dividend_unit,
				 split_numerator, split_denominator)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (symbol, day, source) DO UPDATE SET
				trust = EXCLUDED.trust,
				collected_at = EXCLUDED.collected_at,
				dividend_numerator = EXCLUDED.dividend_numerator,
				dividend_denominator = EXCLUDED.dividend_denominator,
				dividend_unit = EXCLUDED.dividend_unit,
				split_numerator = EXCLUDED.split_numerator,
				split_denominator = EXCLUDED.split_denominator`,
			ts.Symbol, e.Day.Time(), source, int(e.Trust), e.CollectedAt,
			e.DividendNumerator, e.DividendDenominator, e.DividendUnit,
			e.SplitNumerator, e.SplitDenominator)
		if err != nil {
			return 0, 0, fmt.Errorf("writing event %s/%s: %w", ts.Symbol, e.Day, err)
		}
		written++
	}
	return written, frozen, nil
}

// Get returns the reconciled series for each symbol. When several sources
// cover the same day, the row with the highest trust wins; ties go to the
// most recently collected row. A symbol with no data at all fails with
// ErrMissingData.
func (s *Store) Get(ctx context.Context, symbols []string) (map[string]TimeSeries, error) {
	out := make(map[string]TimeSeries, len(symbols))
	for _, symbol := range lo.Uniq(symbols) {
		prices, err := s.getPrices(ctx, symbol)
		if err != nil {
			return nil, err
		}
		events, err := s.getEvents(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if len(prices) == 0 && len(events) == 0 {
			return nil, fmt.Errorf("%w: no market data stored for %s", ErrMissingData, symbol)
		}
		ts := TimeSeries{Symbol: symbol, Prices: prices, Events: events}
		if err := ts.Validate(); err != nil {
			return nil, fmt.Errorf("stored series for %s is malformed: %w", symbol, err)
		}
		out[symbol] = ts
	}
	return out, nil
}

func (s *Store) getPrices(ctx context.Context, symbol string) ([]DayPrice, error) {
	// DISTINCT ON keeps the first row per day under the trust-then-recency
	// ordering, which is exactly the reconciliation rule.
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (day)
			day, source, trust, collected_at,
			open, high, low, close, adjusted_close, denominator, volume, unit
		FROM market_prices
		WHERE symbol = $1
		ORDER BY day ASC, trust DESC, collected_at DESC`,
		symbol)
	if err != nil {
		return nil, fmt.Errorf("reading prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	var prices []DayPrice
	for rows.Next() {
		var p DayPrice
		var day time.Time
		var trust int
		if err := rows.Scan(&day, &p.Source, &trust, &p.CollectedAt,
			&p.Open, &p.High, &p.Low, &p.Close, &p.AdjustedClose,
			&p.Denominator, &p.Volume, &p.Unit); err != nil {
			return nil, fmt.Errorf("scanning price for %s: %w", symbol, err)
		}
		p.Day = NewDate(day.Date())
		p.Trust = Trust(trust)
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prices for %s: %w", symbol, err)
	}
	return prices, nil
}

func (s *Store) getEvents(ctx context.Context, symbol string) ([]DayEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (day)
			day, source, trust, collected_at,
			dividend_numerator, dividend_denominator, dividend_unit,
			split_numerator, split_denominator
		FROM market_events
		WHERE symbol = $1
		ORDER BY day ASC, trust DESC, collected_at DESC`,
		symbol)
	if err != nil {
		return nil, fmt.Errorf("reading events for %s: %w", symbol, err)
	}
	defer rows.Close()

	var events []DayEvent
	for rows.Next() {
		var e DayEvent
		var day time.Time
		var trust int
		if err := rows.Scan(&day, &e.Source, &trust, &e.CollectedAt,
			&e.DividendNumerator, &e.DividendDenominator, &e.DividendUnit,
			&e.SplitNumerator, &e.SplitDenominator); err != nil {
			return nil, fmt.Errorf("scanning event for %s: %w", symbol, err)
		}
		e.Day = NewDate(day.Date())
		e.Trust = Trust(trust)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events for %s: %w", symbol, err)
	}
	return events, nil
}
