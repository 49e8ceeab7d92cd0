package patterns

import (
	"time"

	"swing-trader/internal/analysis"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

// BreakoutEvaluator decides whether a breakout level has been crossed.
type BreakoutEvaluator struct{}

// NewBreakoutEvaluator creates a new breakout evaluator.
func NewBreakoutEvaluator() *BreakoutEvaluator {
	return &BreakoutEvaluator{}
}

func (e *BreakoutEvaluator) Name() string {
	return "BreakoutEvaluator"
}

// AlreadyCrossed reports whether any candle after candle1Date closed above
// level. Candle1 is located by IST calendar date; if it is missing, or is the
// last candle, the answer is false.
func (e *BreakoutEvaluator) AlreadyCrossed(ha []models.HeikenAshiBar, candle1Date time.Time, level float64) bool {
	idx := -1
	for i := range ha {
		if utils.SameDay(ha[i].Date, candle1Date) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	for _, c := range ha[idx+1:] {
		if c.Close > level {
			return true
		}
	}
	return false
}

// Evaluate classifies the latest session against level. Checks run in order:
//
//	haOpen  >= level          ALREADY_BROKEN_OUT
//	haClose <= level          NO_BREAKOUT
//	previous.Close >= level   BREAKOUT_EARLIER
//	otherwise                 NEW_BREAKOUT
//
// A nil previous skips the third check and marks the result PreviousKnown=false.
func (e *BreakoutEvaluator) Evaluate(latest models.HeikenAshiBar, previous *models.HeikenAshiBar, level float64) analysis.BreakoutResult {
	res := analysis.BreakoutResult{
		Level:   level,
		HAOpen:  latest.Open,
		HAClose: latest.Close,
		Date:    latest.Date,
	}
	if previous != nil {
		res.PreviousKnown = true
		res.PreviousClose = previous.Close
	}

	switch {
	case latest.Open >= level:
		res.Status = models.BreakoutAlready
	case latest.Close <= level:
		res.Status = models.BreakoutNone
	case res.PreviousKnown && res.PreviousClose >= level:
		res.Status = models.BreakoutEarlier
	default:
		res.Status = models.BreakoutNew
	}
	return res
}

// EvaluateSeries evaluates the last candle of ha with the one before it as previous.
// It returns false when ha is empty.
func (e *BreakoutEvaluator) EvaluateSeries(ha []models.HeikenAshiBar, level float64) (analysis.BreakoutResult, bool) {
	if len(ha) == 0 {
		return analysis.BreakoutResult{}, false
	}
	var prev *models.HeikenAshiBar
	if len(ha) > 1 {
		prev = &ha[len(ha)-2]
	}
	return e.Evaluate(ha[len(ha)-1], prev, level), true
}

// PriceAbove is the legacy finalization check: latest price strictly above level.
func PriceAbove(price, level float64) bool {
	return price > level
}
