// Package trading runs the daily swing-trading jobs: pool creation, which
// scans the symbol universe for contracting Heiken Ashi trends, and
// finalization, which re-checks pooled symbols for a breakout.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"swing-trader/internal/analysis"
	"swing-trader/internal/analysis/indicators"
	"swing-trader/internal/analysis/patterns"
	"swing-trader/internal/broker"
	"swing-trader/internal/errors"
	"swing-trader/internal/logging"
	"swing-trader/internal/models"
	"swing-trader/internal/store"
)

// DefaultConcurrency is the number of symbols processed at once.
const DefaultConcurrency = 4

// DefaultLookbackDays is the number of daily sessions requested per symbol.
const DefaultLookbackDays = 30

// Outcome is the result of running one symbol through a job.
type Outcome string

const (
	OutcomeNoData          Outcome = "no_data"
	OutcomeTransformFailed Outcome = "transform_failed"
	OutcomeNoTrend         Outcome = "no_trend"
	OutcomeReversalCrossed Outcome = "reversal_crossed"
	OutcomePooled          Outcome = "pooled"
	OutcomeSignal          Outcome = "signal"
	OutcomeNoSignal        Outcome = "no_signal"
	OutcomeError           Outcome = "error"
)

// Matched reports whether the outcome produced an output row.
func (o Outcome) Matched() bool {
	return o == OutcomePooled || o == OutcomeSignal
}

// SymbolResult is the per-symbol record of a job run.
type SymbolResult struct {
	Index   int // position in scan order, starting at 1
	Total   int
	Symbol  string
	Outcome Outcome

	Pattern  *models.TrendPattern
	Entry    *models.PoolEntry
	Breakout *analysis.BreakoutResult
	Signal   *models.Signal
	Price    float64
	Err      error
}

// Observer receives each symbol result as soon as it is known. Calls may
// arrive from several goroutines and out of scan order.
type Observer interface {
	SymbolDone(job models.JobName, res SymbolResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(job models.JobName, res SymbolResult)

func (f ObserverFunc) SymbolDone(job models.JobName, res SymbolResult) { f(job, res) }

// Counts summarises the outcomes of a run.
type Counts struct {
	Scanned int
	Matched int
	Skipped int
	Failed  int
}

func countResults(results []SymbolResult) Counts {
	c := Counts{Scanned: len(results)}
	for _, r := range results {
		switch {
		case r.Outcome.Matched():
			c.Matched++
		case r.Outcome == OutcomeError:
			c.Failed++
		case r.Outcome == OutcomeNoData || r.Outcome == OutcomeTransformFailed:
			c.Skipped++
		}
	}
	return c
}

// Deps are the collaborators shared by the jobs.
type Deps struct {
	Source      broker.MarketData
	Transformer analysis.Transformer
	Detector    analysis.Detector
	Evaluator   *patterns.BreakoutEvaluator
	// History is optional. Failures to record history are logged only.
	History  store.HistoryStore
	Observer Observer
	Clock    func() time.Time
}

func (d *Deps) withDefaults() {
	if d.Transformer == nil {
		d.Transformer = indicators.NewHeikenAshi()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Detector == nil {
		d.Detector = patterns.NewTrendDetector(patterns.WithClock(d.Clock))
	}
	if d.Evaluator == nil {
		d.Evaluator = patterns.NewBreakoutEvaluator()
	}
}

func (d *Deps) notify(job models.JobName, res SymbolResult) {
	if d.Observer != nil {
		d.Observer.SymbolDone(job, res)
	}
}

// newRun starts a run record and a logger tagged with its job and id.
func newRun(ctx context.Context, job models.JobName, now time.Time) (*models.RunRecord, zerolog.Logger) {
	run := &models.RunRecord{
		ID:        uuid.NewString(),
		Job:       job,
		StartedAt: now,
	}
	logger := logging.WithRunID(logging.WithJob(logging.FromContext(ctx), job), run.ID)
	return run, logger
}

// finishRun fills the run record and stores it. History errors are logged.
func (d *Deps) finishRun(ctx context.Context, logger zerolog.Logger, run *models.RunRecord, counts Counts, runErr error) {
	run.FinishedAt = d.Clock()
	run.Scanned = counts.Scanned
	run.Matched = counts.Matched
	run.Skipped = counts.Skipped
	run.Failed = counts.Failed
	run.Status = models.RunSucceeded
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}

	if d.History == nil {
		return
	}
	if err := d.History.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run history")
	}
}

// forEachSymbol runs fn for every symbol on a bounded pool and returns the
// results in scan order. A panic in fn is recovered into an error result.
// done, if set, sees each result as it completes.
func forEachSymbol(ctx context.Context, symbols []string, concurrency int, fn func(ctx context.Context, i int, symbol string) SymbolResult, done func(SymbolResult)) []SymbolResult {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	results := make([]SymbolResult, len(symbols))
	p := pool.New().WithMaxGoroutines(concurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				results[i] = SymbolResult{Index: i + 1, Total: len(symbols), Symbol: symbol, Outcome: OutcomeError, Err: err}
				return
			}
			res := safeRun(symbol, func() SymbolResult { return fn(ctx, i, symbol) })
			res.Index = i + 1
			res.Total = len(symbols)
			res.Symbol = symbol
			results[i] = res
			if done != nil {
				done(res)
			}
		})
	}
	p.Wait()
	return results
}

func safeRun(symbol string, fn func() SymbolResult) (res SymbolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = SymbolResult{
				Outcome: OutcomeError,
				Err:     errors.NewSymbolError(symbol, "panic", fmt.Errorf("%v", r)),
			}
		}
	}()

	return fn()
}

// fetchFailure classifies a data source error. Unavailable data is skipped,
// anything else is an unexpected failure.
func fetchFailure(symbol string, err error) SymbolResult {
	if errors.Is(err, errors.ErrDataUnavailable) || errors.Is(err, errors.ErrSymbolNotFound) {
		return SymbolResult{Outcome: OutcomeNoData, Err: err}
	}
	return SymbolResult{Outcome: OutcomeError, Err: errors.NewSymbolError(symbol, "fetch", err)}
}

// transformFailure wraps an analysis error as ErrTransformInvalid.
func transformFailure(err error) SymbolResult {
	return SymbolResult{
		Outcome: OutcomeTransformFailed,
		Err:     fmt.Errorf("%w: %w", errors.ErrTransformInvalid, err),
	}
}

// logResult writes one symbol result to the run logger.
func logResult(logger zerolog.Logger, res SymbolResult) {
	l := logging.WithSymbol(logger, res.Symbol)
	switch res.Outcome {
	case OutcomeError:
		l.Error().Err(res.Err).Str("outcome", string(res.Outcome)).Msg("Symbol failed")
	case OutcomeNoData, OutcomeTransformFailed:
		l.Warn().Err(res.Err).Str("outcome", string(res.Outcome)).Msg("Symbol skipped")
	default:
		l.Debug().Str("outcome", string(res.Outcome)).Msg("Symbol processed")
	}
}

// uniqueSymbols drops repeated symbols, keeping the first occurrence.
func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// uniqueEntries keeps the first pool entry of each symbol, so a symbol yields
// at most one signal per run.
func uniqueEntries(entries []models.PoolEntry) []models.PoolEntry {
	seen := make(map[string]bool, len(entries))
	out := make([]models.PoolEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.Symbol] {
			continue
		}
		seen[e.Symbol] = true
		out = append(out, e)
	}
	return out
}
