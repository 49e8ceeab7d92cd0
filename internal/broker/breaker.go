package broker

import (
	"context"

	"github.com/rs/zerolog/log"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/internal/resilience"
)

// BreakerSource stops calling a MarketData after repeated outages so a run
// against a dead source reports no_data quickly instead of retrying every
// symbol. Answers such as "unknown symbol" count as the source being up.
type BreakerSource struct {
	source  MarketData
	breaker *resilience.CircuitBreaker
}

// NewBreakerSource wraps source with a breaker built from cfg.
func NewBreakerSource(source MarketData, cfg resilience.CircuitBreakerConfig) *BreakerSource {
	return &BreakerSource{
		source:  source,
		breaker: resilience.NewCircuitBreaker(source.Name(), cfg, nil),
	}
}

func (b *BreakerSource) Name() string { return b.source.Name() }

// Stats exposes the breaker state.
func (b *BreakerSource) Stats() resilience.Stats { return b.breaker.Stats() }

func isOutage(err error) bool {
	return !errors.Is(err, errors.ErrSymbolNotFound) && !errors.Is(err, context.Canceled)
}

func guard[T any](ctx context.Context, b *BreakerSource, symbol string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.breaker.Allow(); err != nil {
		return zero, errors.NewDataError(b.Name(), symbol, "source paused after repeated failures", err)
	}

	v, err := fn(ctx)
	switch {
	case err == nil:
		b.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled):
	case isOutage(err):
		before := b.breaker.State()
		if after := b.breaker.RecordFailure(); after == resilience.CircuitOpen && before != resilience.CircuitOpen {
			log.Warn().Err(err).Str("source", b.Name()).Str("symbol", symbol).Msg("Market data source failing, pausing requests")
		}
	default:
		b.breaker.RecordSuccess()
	}
	return v, err
}

// FetchDailyBars fetches bars unless the breaker is open.
func (b *BreakerSource) FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	return guard(ctx, b, symbol, func(ctx context.Context) ([]models.Bar, error) {
		return b.source.FetchDailyBars(ctx, symbol, lookbackDays)
	})
}

// FetchLatestPrice fetches the latest price unless the breaker is open.
func (b *BreakerSource) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return guard(ctx, b, symbol, func(ctx context.Context) (float64, error) {
		return b.source.FetchLatestPrice(ctx, symbol)
	})
}
