package trading

import (
	"context"
	"time"

	"swing-trader/internal/errors"
	"swing-trader/internal/logging"
	"swing-trader/internal/models"
	"swing-trader/internal/store"
)

// PoolConfig configures pool creation.
type PoolConfig struct {
	Symbols      []string
	LookbackDays int
	// CheckReversal drops patterns whose level was already crossed after candle1.
	CheckReversal bool
	Concurrency   int
}

// PoolReport is the outcome of a pool creation run.
type PoolReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []SymbolResult
	Entries    []models.PoolEntry
	Path       string
	Counts     Counts
}

// PoolCreator scans the symbol universe and rewrites the pool table.
type PoolCreator struct {
	deps  Deps
	cfg   PoolConfig
	table store.PoolStore
}

// NewPoolCreator creates a pool creator writing to table.
func NewPoolCreator(deps Deps, cfg PoolConfig, table store.PoolStore) *PoolCreator {
	deps.withDefaults()
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	cfg.Symbols = uniqueSymbols(cfg.Symbols)
	return &PoolCreator{deps: deps, cfg: cfg, table: table}
}

// Run scans every configured symbol and replaces the pool with the matches,
// in scan order. Per-symbol failures are recorded in the report; only a
// failure to write the pool is returned as an error.
func (c *PoolCreator) Run(ctx context.Context) (*PoolReport, error) {
	run, logger := newRun(ctx, models.JobPoolCreation, c.deps.Clock())
	logger.Info().Int("symbols", len(c.cfg.Symbols)).Msg("Starting pool creation")

	results := forEachSymbol(ctx, c.cfg.Symbols, c.cfg.Concurrency, func(ctx context.Context, _ int, symbol string) SymbolResult {
		return c.scanSymbol(ctx, symbol)
	}, func(res SymbolResult) {
		logResult(logger, res)
		if res.Entry != nil {
			logging.LogPoolEntry(logger, *res.Entry)
		}
		c.deps.notify(models.JobPoolCreation, res)
	})

	report := &PoolReport{
		RunID:     run.ID,
		StartedAt: run.StartedAt,
		Results:   results,
		Path:      c.table.Path(),
		Counts:    countResults(results),
	}
	for _, r := range results {
		if r.Entry != nil {
			report.Entries = append(report.Entries, *r.Entry)
		}
	}

	if err := ctx.Err(); err != nil {
		c.deps.finishRun(ctx, logger, run, report.Counts, err)
		return report, err
	}

	if err := c.table.WriteAll(report.Entries); err != nil {
		if !errors.Is(err, errors.ErrPersistence) {
			err = errors.NewPersistenceError(c.table.Path(), "write", err)
		}
		c.deps.finishRun(ctx, logger, run, report.Counts, err)
		return report, err
	}

	if c.deps.History != nil && len(report.Entries) > 0 {
		if err := c.deps.History.SavePoolEntries(context.WithoutCancel(ctx), run.ID, report.Entries); err != nil {
			logger.Warn().Err(err).Msg("Failed to record pool history")
		}
	}

	c.deps.finishRun(ctx, logger, run, report.Counts, nil)
	report.FinishedAt = run.FinishedAt
	logger.Info().
		Int("pooled", report.Counts.Matched).
		Int("skipped", report.Counts.Skipped).
		Int("failed", report.Counts.Failed).
		Str("path", report.Path).
		Msg("Pool creation completed")
	return report, nil
}

// scanSymbol runs fetch, transform, detect and the reversal gate for one symbol.
func (c *PoolCreator) scanSymbol(ctx context.Context, symbol string) SymbolResult {
	started := time.Now()
	bars, err := c.deps.Source.FetchDailyBars(ctx, symbol, c.cfg.LookbackDays)
	logging.LogAPICall(logging.FromContext(ctx), c.deps.Source.Name(), symbol, time.Since(started), err)
	if err != nil {
		return fetchFailure(symbol, err)
	}
	if len(bars) == 0 {
		return SymbolResult{Outcome: OutcomeNoData}
	}

	ha, err := c.deps.Transformer.Transform(bars)
	if err != nil {
		return transformFailure(err)
	}

	pattern := c.deps.Detector.Detect(symbol, ha)
	if pattern == nil {
		return SymbolResult{Outcome: OutcomeNoTrend}
	}

	res := SymbolResult{Pattern: pattern}
	if c.cfg.CheckReversal && c.deps.Evaluator.AlreadyCrossed(ha, pattern.Candle1.Date, pattern.BreakoutLevel()) {
		res.Outcome = OutcomeReversalCrossed
		return res
	}

	entry := pattern.PoolEntry()
	res.Outcome = OutcomePooled
	res.Entry = &entry
	return res
}
