// Package patterns provides the Heiken Ashi trend pattern detector and the
// breakout state evaluator.
package patterns

import (
	"time"

	"swing-trader/internal/models"
)

// TrendDetector finds the most recent 3-candle downward contraction in a
// Heiken Ashi series.
type TrendDetector struct {
	requireAllRed bool
	now           func() time.Time
}

// TrendOption configures a TrendDetector.
type TrendOption func(*TrendDetector)

// WithRequireAllRed toggles the requirement that all three candles are red.
// Disabling it gives the legacy detector.
func WithRequireAllRed(v bool) TrendOption {
	return func(d *TrendDetector) {
		d.requireAllRed = v
	}
}

// WithClock sets the clock used for DetectedAt.
func WithClock(now func() time.Time) TrendOption {
	return func(d *TrendDetector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewTrendDetector creates a detector that requires all-red candles by default.
func NewTrendDetector(opts ...TrendOption) *TrendDetector {
	d := &TrendDetector{
		requireAllRed: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *TrendDetector) Name() string {
	return "TrendDetector"
}

// RequireAllRed reports whether the detector requires bearish candles.
func (d *TrendDetector) RequireAllRed() bool {
	return d.requireAllRed
}

// Detect walks the series from the newest candle backwards. For each window
// c1=ha[i], c2=ha[i-1], c3=ha[i-2] it requires (optionally) three red candles
// and strictly contracting ranges:
//
//	c1.Low < c2.Low, c1.High < c2.High, c2.Low < c3.Low, c2.High < c3.High
//
// The first qualifying window wins. Nil means no pattern.
func (d *TrendDetector) Detect(symbol string, ha []models.HeikenAshiBar) *models.TrendPattern {
	for i := len(ha) - 1; i >= 2; i-- {
		c1, c2, c3 := ha[i], ha[i-1], ha[i-2]

		if d.requireAllRed && !(c1.IsBearish() && c2.IsBearish() && c3.IsBearish()) {
			continue
		}

		if c1.Low < c2.Low && c1.High < c2.High && c2.Low < c3.Low && c2.High < c3.High {
			return &models.TrendPattern{
				Symbol:     symbol,
				Candle1:    ref(c1),
				Candle2:    ref(c2),
				Candle3:    ref(c3),
				DetectedAt: d.now(),
			}
		}
	}
	return nil
}

func ref(c models.HeikenAshiBar) models.CandleRef {
	return models.CandleRef{Date: c.Date, High: c.High, Low: c.Low}
}
