// Package models provides domain models for the swing trading pipeline.
package models

import (
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
	MarketHoliday MarketStatus = "HOLIDAY"
)

// Bar represents one trading session's OHLC data.
// Sequences of bars are ordered oldest first with strictly increasing dates.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// HeikenAshiBar is a smoothed candle derived from a Bar and the previous
// HeikenAshiBar in the series.
type HeikenAshiBar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// IsBearish reports whether the candle is red (Open > Close).
func (h HeikenAshiBar) IsBearish() bool {
	return h.Open > h.Close
}

// IsBullish reports whether the candle is green (Close > Open).
func (h HeikenAshiBar) IsBullish() bool {
	return h.Close > h.Open
}
