package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"swing-trader/internal/models"
	"swing-trader/internal/store"
	"swing-trader/pkg/utils"
)

// CachedSource serves daily bars from a BarCache when the cached copy is
// newer than the last market close, and otherwise fetches from the wrapped
// source and refreshes the cache. Latest prices are never cached.
type CachedSource struct {
	source   MarketData
	cache    store.BarCache
	calendar *utils.Calendar
	now      func() time.Time
}

// NewCachedSource wraps source with cache.
func NewCachedSource(source MarketData, cache store.BarCache, calendar *utils.Calendar) *CachedSource {
	return &CachedSource{
		source:   source,
		cache:    cache,
		calendar: calendar,
		now:      time.Now,
	}
}

func (c *CachedSource) Name() string { return c.source.Name() + "+cache" }

// FetchDailyBars returns cached bars when fresh. Cache read or write failures
// are logged and fall through to the upstream source.
func (c *CachedSource) FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	now := c.now()
	from := now.AddDate(0, 0, -(lookbackDays + BufferDays))

	if bars, ok := c.fromCache(ctx, symbol, from, now); ok {
		log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Serving bars from cache")
		return bars, nil
	}

	bars, err := c.source.FetchDailyBars(ctx, symbol, lookbackDays)
	if err != nil {
		return nil, err
	}

	fetch := store.FetchInfo{FetchedAt: now, From: from, Source: c.source.Name()}
	if err := c.cache.SaveBars(ctx, symbol, bars, fetch); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache bars")
	}
	return bars, nil
}

func (c *CachedSource) fromCache(ctx context.Context, symbol string, from, now time.Time) ([]models.Bar, bool) {
	status := c.calendar.MarketStatus(now)
	if status == models.MarketOpen || status == models.MarketPreOpen {
		return nil, false
	}

	info, err := c.cache.LastFetch(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read cache state")
		return nil, false
	}
	if info == nil || info.FetchedAt.Before(c.lastClose(now)) || utils.DateKey(info.From) > utils.DateKey(from) {
		return nil, false
	}

	bars, err := c.cache.GetBars(ctx, symbol, from, now)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read cached bars")
		return nil, false
	}
	if len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

// lastClose returns the most recent 15:30 IST close at or before now.
func (c *CachedSource) lastClose(now time.Time) time.Time {
	local := now.In(utils.IndiaLocation)
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), 15, 30, 0, 0, utils.IndiaLocation)
	if c.calendar.IsTradingDay(closeAt) && !closeAt.After(local) {
		return closeAt
	}
	for i := 0; i < 30; i++ {
		closeAt = closeAt.AddDate(0, 0, -1)
		if c.calendar.IsTradingDay(closeAt) {
			return closeAt
		}
	}
	return closeAt
}

// FetchLatestPrice always asks the upstream source.
func (c *CachedSource) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return c.source.FetchLatestPrice(ctx, symbol)
}
