// Package broker provides market data sources: Yahoo Finance, Zerodha Kite
// Connect, and decorators for caching and throttling.
package broker

import (
	"context"
	"strings"

	"swing-trader/internal/models"
)

// MarketData fetches daily bars and latest prices.
//
// FetchDailyBars returns bars ordered oldest first covering roughly the last
// lookbackDays sessions. A delisted or unknown symbol yields an error wrapping
// errors.ErrSymbolNotFound; any other failure wraps errors.ErrDataUnavailable.
type MarketData interface {
	Name() string
	FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error)
	FetchLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// BufferDays is added to the lookback window so weekends and holidays still
// leave enough sessions.
const BufferDays = 10

// nseSuffix is the Yahoo suffix for NSE listings.
const nseSuffix = ".NS"

// NormalizeSymbol upper-cases a ticker and adds the .NS suffix when no
// exchange suffix is present.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" || strings.HasPrefix(s, "^") || strings.Contains(s, ".") {
		return s
	}
	return s + nseSuffix
}

// ExchangeOf returns the exchange a Yahoo ticker is listed on: BSE for the
// .BO suffix, NSE otherwise.
func ExchangeOf(symbol string) models.Exchange {
	if strings.HasSuffix(strings.ToUpper(strings.TrimSpace(symbol)), ".BO") {
		return models.BSE
	}
	return models.NSE
}

// TradingSymbol strips the Yahoo exchange suffix, giving the NSE trading symbol.
func TradingSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, nseSuffix)
	return strings.TrimSuffix(s, ".BO")
}
