package models

import "time"

// CandleRef identifies one candle of a detected trend pattern.
type CandleRef struct {
	Date time.Time
	High float64
	Low  float64
}

// TrendPattern is a detected 3-candle downward contraction.
// Candle1 is the newest candle, Candle3 the oldest.
type TrendPattern struct {
	Symbol     string
	Candle1    CandleRef
	Candle2    CandleRef
	Candle3    CandleRef
	DetectedAt time.Time // wall-clock time of the scan, not a market date
}

// BreakoutLevel returns the high of the oldest candle, the level price must
// close above to trigger a signal.
func (p *TrendPattern) BreakoutLevel() float64 {
	return p.Candle3.High
}

// PoolEntry returns the pool record for this pattern.
func (p *TrendPattern) PoolEntry() PoolEntry {
	return PoolEntry{
		Symbol:        p.Symbol,
		Candle1Date:   p.Candle1.Date,
		Candle2Date:   p.Candle2.Date,
		Candle3Date:   p.Candle3.Date,
		Candle3High:   p.Candle3.High,
		DetectionDate: p.DetectedAt,
	}
}

// PoolEntry is a symbol tracked for a breakout of its Candle3High.
type PoolEntry struct {
	Symbol        string
	Candle1Date   time.Time
	Candle2Date   time.Time
	Candle3Date   time.Time
	Candle3High   float64
	DetectionDate time.Time
}

// FinalizeMode selects the finalization criteria.
type FinalizeMode string

const (
	// FinalizeHeikenAshi requires a same-day Heiken Ashi breakout.
	FinalizeHeikenAshi FinalizeMode = "heiken_ashi"
	// FinalizePrice compares the latest price against the level (legacy).
	FinalizePrice FinalizeMode = "price"
)

// Valid reports whether m is a known mode.
func (m FinalizeMode) Valid() bool {
	return m == FinalizeHeikenAshi || m == FinalizePrice
}

// Signal is a buy signal emitted by finalization.
type Signal struct {
	Symbol      string
	Candle3High float64
	// HAOpen and HAClose are the latest session's Heiken Ashi values.
	// Zero in price mode.
	HAOpen  float64
	HAClose float64
	// PreviousHAClose is nil when no prior session was available.
	PreviousHAClose *float64
	CurrentPrice    float64
	SignalDate      time.Time
	Mode            FinalizeMode
}

// BreakoutStatus classifies the latest session against a breakout level.
type BreakoutStatus string

const (
	BreakoutNew     BreakoutStatus = "NEW_BREAKOUT"
	BreakoutAlready BreakoutStatus = "ALREADY_BROKEN_OUT"
	BreakoutNone    BreakoutStatus = "NO_BREAKOUT"
	BreakoutEarlier BreakoutStatus = "BREAKOUT_EARLIER"
)

// Describe returns a short human readable explanation.
func (s BreakoutStatus) Describe() string {
	switch s {
	case BreakoutNew:
		return "breakout today"
	case BreakoutAlready:
		return "already broken out at open"
	case BreakoutNone:
		return "no breakout"
	case BreakoutEarlier:
		return "breakout happened earlier"
	default:
		return string(s)
	}
}
