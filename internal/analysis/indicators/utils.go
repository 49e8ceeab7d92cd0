package indicators

import (
	"math"
	"time"

	"swing-trader/internal/analysis"
	"swing-trader/internal/errors"
	"swing-trader/internal/models"
)

// max3 returns the largest of three values.
func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}

// min3 returns the smallest of three values.
func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

// validPrice reports whether p is a usable price.
func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}

// validateBar checks that a bar carries a date and usable prices.
func validateBar(i int, b models.Bar) error {
	if b.Date.IsZero() {
		return errors.Wrapf(analysis.ErrInvalidBar, "bar %d: missing date", i)
	}
	for _, p := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if !validPrice(p) {
			return errors.Wrapf(analysis.ErrInvalidBar, "bar %d (%s): bad price %v", i, b.Date.Format(time.DateOnly), p)
		}
	}
	return nil
}

// validateSeries checks the whole series before any computation.
func validateSeries(bars []models.Bar) error {
	if len(bars) == 0 {
		return analysis.ErrNoBars
	}
	for i, b := range bars {
		if err := validateBar(i, b); err != nil {
			return err
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return errors.Wrapf(analysis.ErrUnorderedBars, "bar %d (%s) not after %s",
				i, b.Date.Format(time.DateOnly), bars[i-1].Date.Format(time.DateOnly))
		}
	}
	return nil
}
