package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

// SQLiteStore implements BarCache and HistoryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Daily bars keyed by IST session date
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, date)
	);

	-- Last upstream fetch per symbol
	CREATE TABLE IF NOT EXISTS bar_fetches (
		symbol TEXT PRIMARY KEY,
		fetched_at INTEGER NOT NULL,
		from_date TEXT NOT NULL,
		source TEXT NOT NULL
	);

	-- Job runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		scanned INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT
	);

	-- Pool entries produced by each pool creation run
	CREATE TABLE IF NOT EXISTS pool_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		candle1_date TEXT NOT NULL,
		candle2_date TEXT NOT NULL,
		candle3_date TEXT NOT NULL,
		candle3_high REAL NOT NULL,
		detected_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- Signals produced by each finalization run
	CREATE TABLE IF NOT EXISTS signal_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		candle3_high REAL NOT NULL,
		ha_open REAL,
		ha_close REAL,
		previous_ha_close REAL,
		current_price REAL NOT NULL,
		signal_at INTEGER NOT NULL,
		mode TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_date ON candles(symbol, date);
	CREATE INDEX IF NOT EXISTS idx_runs_job_started ON runs(job, started_at);
	CREATE INDEX IF NOT EXISTS idx_pool_history_symbol ON pool_history(symbol);
	CREATE INDEX IF NOT EXISTS idx_signal_history_symbol ON signal_history(symbol, signal_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBars upserts bars and records the fetch.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, bars []models.Bar, fetch FetchInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, symbol, utils.DateKey(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO bar_fetches (symbol, fetched_at, from_date, source)
		VALUES (?, ?, ?, ?)
	`, symbol, fetch.FetchedAt.UnixNano(), utils.DateKey(fetch.From), fetch.Source)
	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBars returns cached bars whose IST date lies in [from, to], oldest first.
func (s *SQLiteStore) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, utils.DateKey(from), utils.DateKey(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var (
			b    models.Bar
			date string
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Date, err = time.ParseInLocation(time.DateOnly, date, utils.IndiaLocation)
		if err != nil {
			return nil, fmt.Errorf("bad cached date %q: %w", date, err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}

// LastFetch returns the most recent fetch of symbol, or nil if it was never fetched.
func (s *SQLiteStore) LastFetch(ctx context.Context, symbol string) (*FetchInfo, error) {
	var (
		fetchedAt int64
		from      string
		info      FetchInfo
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT fetched_at, from_date, source FROM bar_fetches WHERE symbol = ?
	`, symbol).Scan(&fetchedAt, &from, &info.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last fetch: %w", err)
	}
	info.FetchedAt = time.Unix(0, fetchedAt).In(utils.IndiaLocation)
	info.From, err = time.ParseInLocation(time.DateOnly, from, utils.IndiaLocation)
	if err != nil {
		return nil, fmt.Errorf("bad fetch date %q: %w", from, err)
	}
	return &info, nil
}

// SaveRun inserts or updates a run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *models.RunRecord) error {
	var finished sql.NullInt64
	if !run.FinishedAt.IsZero() {
		finished = sql.NullInt64{Int64: run.FinishedAt.UnixNano(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, job, started_at, finished_at, scanned, matched, skipped, failed, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Job), run.StartedAt.UnixNano(), finished,
		run.Scanned, run.Matched, run.Skipped, run.Failed, string(run.Status), run.Error)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRuns returns runs, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]models.RunRecord, error) {
	query := `SELECT id, job, started_at, finished_at, scanned, matched, skipped, failed, status, error FROM runs WHERE 1=1`
	var args []interface{}

	if filter.Job != "" {
		query += " AND job = ?"
		args = append(args, string(filter.Job))
	}
	if !filter.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var (
			r        models.RunRecord
			job      string
			status   string
			started  int64
			finished sql.NullInt64
			errText  sql.NullString
		)
		if err := rows.Scan(&r.ID, &job, &started, &finished, &r.Scanned, &r.Matched, &r.Skipped, &r.Failed, &status, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Job = models.JobName(job)
		r.Status = models.RunStatus(status)
		r.StartedAt = time.Unix(0, started).In(utils.IndiaLocation)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64).In(utils.IndiaLocation)
		}
		r.Error = errText.String
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// SavePoolEntries appends the entries produced by a run.
func (s *SQLiteStore) SavePoolEntries(ctx context.Context, runID string, entries []models.PoolEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pool_history (run_id, symbol, candle1_date, candle2_date, candle3_date, candle3_high, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, runID, e.Symbol,
			utils.DateKey(e.Candle1Date), utils.DateKey(e.Candle2Date), utils.DateKey(e.Candle3Date),
			e.Candle3High, e.DetectionDate.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert pool entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveSignals appends the signals produced by a run.
func (s *SQLiteStore) SaveSignals(ctx context.Context, runID string, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signal_history (run_id, symbol, candle3_high, ha_open, ha_close, previous_ha_close, current_price, signal_at, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sig := range signals {
		var haOpen, haClose, prev sql.NullFloat64
		if sig.Mode == models.FinalizeHeikenAshi {
			haOpen = sql.NullFloat64{Float64: sig.HAOpen, Valid: true}
			haClose = sql.NullFloat64{Float64: sig.HAClose, Valid: true}
		}
		if sig.PreviousHAClose != nil {
			prev = sql.NullFloat64{Float64: *sig.PreviousHAClose, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, runID, sig.Symbol, sig.Candle3High, haOpen, haClose, prev,
			sig.CurrentPrice, sig.SignalDate.UnixNano(), string(sig.Mode))
		if err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSignals returns historical signals, newest first.
func (s *SQLiteStore) GetSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error) {
	query := `SELECT symbol, candle3_high, ha_open, ha_close, previous_ha_close, current_price, signal_at, mode FROM signal_history WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.Since.IsZero() {
		query += " AND signal_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}
	query += " ORDER BY signal_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		var (
			sig                   models.Signal
			haOpen, haClose, prev sql.NullFloat64
			signalAt              int64
			mode                  string
		)
		if err := rows.Scan(&sig.Symbol, &sig.Candle3High, &haOpen, &haClose, &prev, &sig.CurrentPrice, &signalAt, &mode); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sig.HAOpen = haOpen.Float64
		sig.HAClose = haClose.Float64
		if prev.Valid {
			v := prev.Float64
			sig.PreviousHAClose = &v
		}
		sig.SignalDate = time.Unix(0, signalAt).In(utils.IndiaLocation)
		sig.Mode = models.FinalizeMode(mode)
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}
