package trading

import (
	"context"
	"time"

	"swing-trader/internal/analysis/patterns"
	"swing-trader/internal/errors"
	"swing-trader/internal/logging"
	"swing-trader/internal/models"
	"swing-trader/internal/store"
)

// FinalizeConfig configures finalization.
type FinalizeConfig struct {
	Mode         models.FinalizeMode
	LookbackDays int
	Concurrency  int
}

// FinalizeReport is the outcome of a finalization run.
type FinalizeReport struct {
	RunID      string
	Mode       models.FinalizeMode
	StartedAt  time.Time
	FinishedAt time.Time
	// PoolEmpty is true when there was no pool to check.
	PoolEmpty bool
	Results   []SymbolResult
	Signals   []models.Signal
	Path      string
	Counts    Counts
}

// Finalizer checks pooled symbols for a breakout and rewrites the signals table.
type Finalizer struct {
	deps    Deps
	cfg     FinalizeConfig
	pool    store.PoolStore
	signals store.SignalStore
}

// NewFinalizer creates a finalizer reading pool and writing signals.
func NewFinalizer(deps Deps, cfg FinalizeConfig, pool store.PoolStore, signals store.SignalStore) *Finalizer {
	deps.withDefaults()
	if !cfg.Mode.Valid() {
		cfg.Mode = models.FinalizeHeikenAshi
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	return &Finalizer{deps: deps, cfg: cfg, pool: pool, signals: signals}
}

// Run reads the pool, evaluates every entry and replaces the signals table.
// A missing or empty pool produces a header-only signals table. Failing to
// read the pool or write the signals is returned as an error.
func (f *Finalizer) Run(ctx context.Context) (*FinalizeReport, error) {
	run, logger := newRun(ctx, models.JobFinalization, f.deps.Clock())

	report := &FinalizeReport{
		RunID:     run.ID,
		Mode:      f.cfg.Mode,
		StartedAt: run.StartedAt,
		Path:      f.signals.Path(),
	}

	entries, err := f.pool.ReadAll()
	if err != nil {
		if !errors.Is(err, errors.ErrPersistence) {
			err = errors.NewPersistenceError(f.pool.Path(), "read", err)
		}
		f.deps.finishRun(ctx, logger, run, report.Counts, err)
		return report, err
	}

	if unique := uniqueEntries(entries); len(unique) != len(entries) {
		logger.Warn().Int("dropped", len(entries)-len(unique)).Msg("Pool lists some symbols more than once, checking each once")
		entries = unique
	}

	logger.Info().Int("pooled", len(entries)).Str("mode", string(f.cfg.Mode)).Msg("Starting finalization")
	report.PoolEmpty = len(entries) == 0

	symbols := make([]string, len(entries))
	for i, e := range entries {
		symbols[i] = e.Symbol
	}

	report.Results = forEachSymbol(ctx, symbols, f.cfg.Concurrency, func(ctx context.Context, i int, _ string) SymbolResult {
		return f.checkEntry(ctx, entries[i])
	}, func(res SymbolResult) {
		logResult(logger, res)
		if res.Signal != nil {
			logging.LogSignal(logger, *res.Signal)
		}
		f.deps.notify(models.JobFinalization, res)
	})
	report.Counts = countResults(report.Results)
	for _, r := range report.Results {
		if r.Signal != nil {
			report.Signals = append(report.Signals, *r.Signal)
		}
	}

	if err := ctx.Err(); err != nil {
		f.deps.finishRun(ctx, logger, run, report.Counts, err)
		return report, err
	}

	if err := f.signals.WriteAll(report.Signals); err != nil {
		if !errors.Is(err, errors.ErrPersistence) {
			err = errors.NewPersistenceError(f.signals.Path(), "write", err)
		}
		f.deps.finishRun(ctx, logger, run, report.Counts, err)
		return report, err
	}

	if f.deps.History != nil && len(report.Signals) > 0 {
		if err := f.deps.History.SaveSignals(context.WithoutCancel(ctx), run.ID, report.Signals); err != nil {
			logger.Warn().Err(err).Msg("Failed to record signal history")
		}
	}

	f.deps.finishRun(ctx, logger, run, report.Counts, nil)
	report.FinishedAt = run.FinishedAt
	logger.Info().
		Int("signals", report.Counts.Matched).
		Int("skipped", report.Counts.Skipped).
		Int("failed", report.Counts.Failed).
		Str("path", report.Path).
		Msg("Finalization completed")
	return report, nil
}

func (f *Finalizer) checkEntry(ctx context.Context, entry models.PoolEntry) SymbolResult {
	if f.cfg.Mode == models.FinalizePrice {
		return f.checkPrice(ctx, entry)
	}
	return f.checkHeikenAshi(ctx, entry)
}

// checkHeikenAshi evaluates the latest Heiken Ashi session against the level.
func (f *Finalizer) checkHeikenAshi(ctx context.Context, entry models.PoolEntry) SymbolResult {
	bars, err := f.deps.Source.FetchDailyBars(ctx, entry.Symbol, f.cfg.LookbackDays)
	if err != nil {
		return fetchFailure(entry.Symbol, err)
	}
	if len(bars) == 0 {
		return SymbolResult{Outcome: OutcomeNoData}
	}

	ha, err := f.deps.Transformer.Transform(bars)
	if err != nil {
		return transformFailure(err)
	}

	result, ok := f.deps.Evaluator.EvaluateSeries(ha, entry.Candle3High)
	if !ok {
		return SymbolResult{Outcome: OutcomeNoData}
	}

	res := SymbolResult{
		Outcome:  OutcomeNoSignal,
		Breakout: &result,
		Price:    bars[len(bars)-1].Close,
	}
	if !result.Fires() {
		return res
	}

	signal := models.Signal{
		Symbol:       entry.Symbol,
		Candle3High:  entry.Candle3High,
		HAOpen:       result.HAOpen,
		HAClose:      result.HAClose,
		CurrentPrice: res.Price,
		SignalDate:   f.deps.Clock(),
		Mode:         models.FinalizeHeikenAshi,
	}
	if result.PreviousKnown {
		prev := result.PreviousClose
		signal.PreviousHAClose = &prev
	}
	res.Outcome = OutcomeSignal
	res.Signal = &signal
	return res
}

// checkPrice compares the latest price with the level.
func (f *Finalizer) checkPrice(ctx context.Context, entry models.PoolEntry) SymbolResult {
	price, err := f.deps.Source.FetchLatestPrice(ctx, entry.Symbol)
	if err != nil {
		return fetchFailure(entry.Symbol, err)
	}

	res := SymbolResult{Outcome: OutcomeNoSignal, Price: price}
	if !patterns.PriceAbove(price, entry.Candle3High) {
		return res
	}

	res.Outcome = OutcomeSignal
	res.Signal = &models.Signal{
		Symbol:       entry.Symbol,
		Candle3High:  entry.Candle3High,
		CurrentPrice: price,
		SignalDate:   f.deps.Clock(),
		Mode:         models.FinalizePrice,
	}
	return res
}
