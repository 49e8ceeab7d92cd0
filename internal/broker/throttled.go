package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

// ThrottleConfig holds request pacing settings.
type ThrottleConfig struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Retry             utils.RetryConfig
}

// ThrottledSource rate-limits, time-bounds and retries calls to a MarketData.
// A single limiter is shared by all goroutines using the source.
type ThrottledSource struct {
	source  MarketData
	limiter *rate.Limiter
	timeout time.Duration
	retry   utils.RetryConfig
}

// NewThrottledSource wraps source. A non-positive rate disables limiting.
func NewThrottledSource(source MarketData, cfg ThrottleConfig) *ThrottledSource {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	retry := cfg.Retry
	if retry.Retryable == nil {
		retry.Retryable = isRetryable
	}

	return &ThrottledSource{
		source:  source,
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
		retry:   retry,
	}
}

func (t *ThrottledSource) Name() string { return t.source.Name() }

// isRetryable reports whether a failed fetch is worth repeating. Unknown
// symbols and cancelled runs are final.
func isRetryable(err error) bool {
	if errors.Is(err, errors.ErrSymbolNotFound) || errors.Is(err, errors.ErrNotAuthenticated) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// call waits for the limiter and runs fn under a per-attempt timeout.
func call[T any](ctx context.Context, t *ThrottledSource, symbol string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	result, err := utils.RetryWithResult(ctx, t.retry, func() (T, error) {
		attempt++
		var zero T
		if err := t.limiter.Wait(ctx); err != nil {
			return zero, errors.NewDataError(t.Name(), symbol, "rate limiter", err)
		}

		callCtx := ctx
		if t.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}

		v, err := fn(callCtx)
		if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = errors.NewDataError(t.Name(), symbol, "request timed out", errors.Join(errors.ErrTimeout, err))
		}
		if err != nil && isRetryable(err) && attempt < t.retry.MaxAttempts {
			log.Debug().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("Retrying market data request")
		}
		return v, err
	})
	if err != nil && !errors.Is(err, errors.ErrDataUnavailable) {
		err = errors.NewDataError(t.Name(), symbol, "request failed", err)
	}
	return result, err
}

// FetchDailyBars fetches bars through the limiter with timeout and retry.
func (t *ThrottledSource) FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	return call(ctx, t, symbol, func(ctx context.Context) ([]models.Bar, error) {
		return t.source.FetchDailyBars(ctx, symbol, lookbackDays)
	})
}

// FetchLatestPrice fetches the latest price through the limiter with timeout and retry.
func (t *ThrottledSource) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return call(ctx, t, symbol, func(ctx context.Context) (float64, error) {
		return t.source.FetchLatestPrice(ctx, symbol)
	})
}
