// Package analysis provides the contracts and shared errors for the Heiken Ashi
// transform, trend detection and breakout evaluation.
package analysis

import (
	"errors"
	"time"

	"swing-trader/internal/models"
)

var (
	// ErrNoBars is returned when a transform receives an empty series.
	ErrNoBars = errors.New("no bars to transform")
	// ErrInvalidBar is returned for a bar with a zero date or a non-finite or negative price.
	ErrInvalidBar = errors.New("invalid bar")
	// ErrUnorderedBars is returned when bar dates are not strictly increasing.
	ErrUnorderedBars = errors.New("bars not in strictly increasing date order")
)

// Transformer converts raw daily bars into Heiken Ashi candles.
type Transformer interface {
	Name() string
	Transform(bars []models.Bar) ([]models.HeikenAshiBar, error)
}

// Detector finds a trend pattern in a Heiken Ashi series.
// A nil pattern means nothing was found.
type Detector interface {
	Name() string
	Detect(symbol string, ha []models.HeikenAshiBar) *models.TrendPattern
}

// BreakoutResult is the evaluation of the latest session against a level.
type BreakoutResult struct {
	Status        models.BreakoutStatus
	Level         float64
	HAOpen        float64
	HAClose       float64
	PreviousClose float64
	// PreviousKnown is false when no prior session was available and the
	// earlier-breakout check could not be made.
	PreviousKnown bool
	Date          time.Time
}

// Fires reports whether the result should produce a buy signal.
func (r BreakoutResult) Fires() bool {
	return r.Status == models.BreakoutNew
}
