package trading

import (
	"context"

	"swing-trader/internal/analysis"
	"swing-trader/internal/errors"
	"swing-trader/internal/models"
)

// Inspection is the full diagnostic picture of one symbol.
type Inspection struct {
	Symbol  string
	Bars    []models.Bar
	HA      []models.HeikenAshiBar
	Pattern *models.TrendPattern
	// Crossed is set when a pattern exists and a later candle already closed
	// above its level.
	Crossed bool
	// Breakout evaluates the latest session against the pattern level.
	Breakout *analysis.BreakoutResult
}

// WouldPool reports whether pool creation would keep this symbol.
func (i *Inspection) WouldPool(checkReversal bool) bool {
	return i.Pattern != nil && !(checkReversal && i.Crossed)
}

// Scanner inspects single symbols without touching any table.
type Scanner struct {
	deps         Deps
	lookbackDays int
}

// NewScanner creates a scanner.
func NewScanner(deps Deps, lookbackDays int) *Scanner {
	deps.withDefaults()
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &Scanner{deps: deps, lookbackDays: lookbackDays}
}

// Inspect fetches and analyses symbol. Fetch and transform failures are
// returned as errors.
func (s *Scanner) Inspect(ctx context.Context, symbol string) (*Inspection, error) {
	bars, err := s.deps.Source.FetchDailyBars(ctx, symbol, s.lookbackDays)
	if err != nil {
		return nil, err
	}

	ha, err := s.deps.Transformer.Transform(bars)
	if err != nil {
		return nil, errors.Wrapf(errors.Join(errors.ErrTransformInvalid, err), "transform %s", symbol)
	}

	in := &Inspection{Symbol: symbol, Bars: bars, HA: ha}
	in.Pattern = s.deps.Detector.Detect(symbol, ha)
	if in.Pattern == nil {
		return in, nil
	}

	level := in.Pattern.BreakoutLevel()
	in.Crossed = s.deps.Evaluator.AlreadyCrossed(ha, in.Pattern.Candle1.Date, level)
	if res, ok := s.deps.Evaluator.EvaluateSeries(ha, level); ok {
		in.Breakout = &res
	}
	return in, nil
}
