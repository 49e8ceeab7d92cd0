package cli

import (
	"fmt"
	"sync"

	"swing-trader/internal/models"
	"swing-trader/internal/trading"
)

// progress prints one line per symbol as a job runs. Results arrive from
// several workers, so printing is serialised.
type progress struct {
	mu  sync.Mutex
	out *Output
}

func newProgress(out *Output) trading.Observer {
	if out.IsJSON() {
		return nil
	}
	return &progress{out: out}
}

func (p *progress) SymbolDone(job models.JobName, res trading.SymbolResult) {
	line := p.describe(res)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.Printf("[%d/%d] %-14s %s\n", res.Index, res.Total, res.Symbol, line)
}

// describe renders the outcome of one symbol.
func (p *progress) describe(res trading.SymbolResult) string {
	o := p.out
	switch res.Outcome {
	case trading.OutcomePooled:
		return o.Green(fmt.Sprintf("✓ pooled, level %.2f", res.Entry.Candle3High))
	case trading.OutcomeSignal:
		// Heiken Ashi signals are decided on the candle close, not the raw price.
		trigger := res.Signal.CurrentPrice
		if res.Signal.Mode == models.FinalizeHeikenAshi {
			trigger = res.Signal.HAClose
		}
		return o.Green(fmt.Sprintf("✓ SIGNAL %.2f > %.2f", trigger, res.Signal.Candle3High))
	case trading.OutcomeNoTrend:
		return o.DimText("no trend")
	case trading.OutcomeReversalCrossed:
		return o.Yellow("level already crossed")
	case trading.OutcomeNoSignal:
		if res.Breakout != nil {
			return o.DimText(res.Breakout.Status.Describe())
		}
		return o.DimText("no signal")
	case trading.OutcomeNoData:
		return o.Yellow("⚠ no data")
	case trading.OutcomeTransformFailed:
		return o.Yellow("⚠ invalid bars")
	case trading.OutcomeError:
		return o.Red(fmt.Sprintf("✗ %v", res.Err))
	}
	return string(res.Outcome)
}
