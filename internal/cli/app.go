package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"swing-trader/internal/analysis/patterns"
	"swing-trader/internal/broker"
	"swing-trader/internal/config"
	"swing-trader/internal/errors"
	"swing-trader/internal/logging"
	"swing-trader/internal/models"
	"swing-trader/internal/notify"
	"swing-trader/internal/resilience"
	"swing-trader/internal/store"
	"swing-trader/internal/trading"
	"swing-trader/pkg/utils"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Calendar *utils.Calendar
	Notifier notify.Notifier

	// Source replaces the configured market data source when set.
	Source broker.MarketData
	// Clock defaults to time.Now.
	Clock func() time.Time

	mu      sync.Mutex
	history *store.SQLiteStore
	source  broker.MarketData
}

func (a *App) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

// setup loads configuration and logging for cmd.
func (a *App) setup(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	level := cfg.Logging.Level
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = "debug"
	}
	a.Logger = logging.Setup(logging.LogConfig{
		Level:      level,
		Console:    true,
		Out:        cmd.ErrOrStderr(),
		File:       true,
		FilePath:   cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})

	a.Calendar, err = cfg.TradingCalendar()
	if err != nil {
		return err
	}
	if a.Notifier == nil {
		a.Notifier = notify.New(cfg.Notifications)
	}
	return nil
}

// close releases the history database.
func (a *App) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.history == nil {
		return nil
	}
	err := a.history.Close()
	a.history = nil
	a.source = nil
	return err
}

// History opens the SQLite database on first use.
func (a *App) History() (*store.SQLiteStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openHistory()
}

func (a *App) openHistory() (*store.SQLiteStore, error) {
	if a.history != nil {
		return a.history, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Output.Database)
	if err != nil {
		return nil, err
	}
	a.history = s
	return s, nil
}

// MarketData builds the configured data source chain:
// upstream, then throttling, then the SQLite bar cache.
func (a *App) MarketData() (broker.MarketData, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != nil {
		return a.source, nil
	}
	if a.Source != nil {
		a.source = a.Source
		return a.source, nil
	}

	cfg := a.Config.Data
	var src broker.MarketData
	switch cfg.Source {
	case config.SourceYahoo:
		src = broker.NewYahooSource(cfg.Timeout)
	case config.SourceKite:
		k, err := broker.NewKiteSource(broker.KiteConfig{
			APIKey:      a.Config.Credentials.Kite.APIKey,
			AccessToken: a.Config.Credentials.Kite.AccessToken,
		})
		if err != nil {
			return nil, err
		}
		src = k
	case config.SourceReplay:
		static, err := loadReplay(cfg.ReplayFile)
		if err != nil {
			return nil, err
		}
		a.source = static
		return static, nil
	default:
		return nil, errors.NewValidationError("data.source", cfg.Source, "unknown source")
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = a.Config.MaxAttempts()
	src = broker.NewThrottledSource(src, broker.ThrottleConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Timeout:           cfg.Timeout,
		Retry:             retry,
	})
	if cfg.BreakerThreshold > 0 {
		breaker := resilience.DefaultCircuitBreakerConfig()
		breaker.FailureThreshold = cfg.BreakerThreshold
		breaker.Cooldown = cfg.BreakerCooldown
		src = broker.NewBreakerSource(src, breaker)
	}

	if cfg.Cache {
		history, err := a.openHistory()
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Bar cache unavailable, fetching directly")
		} else {
			src = broker.NewCachedSource(src, history, a.Calendar)
		}
	}

	a.source = src
	return src, nil
}

func loadReplay(path string) (*broker.StaticSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError("replay", "", "opening replay file", err)
	}
	defer f.Close()

	s := broker.NewStaticSource()
	if err := s.LoadBarsCSV(f); err != nil {
		return nil, fmt.Errorf("loading replay file %s: %w", path, err)
	}
	return s, nil
}

// Deps assembles the trading collaborators. observer may be nil.
func (a *App) Deps(observer trading.Observer) (trading.Deps, error) {
	src, err := a.MarketData()
	if err != nil {
		return trading.Deps{}, err
	}

	deps := trading.Deps{
		Source: src,
		Detector: patterns.NewTrendDetector(
			patterns.WithRequireAllRed(a.Config.Detector.RequireAllRed),
			patterns.WithClock(a.now),
		),
		Observer: observer,
		Clock:    a.now,
	}

	history, err := a.History()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Run history unavailable")
	} else {
		deps.History = history
	}
	return deps, nil
}

// tradingDayGate reports whether a job may run now. When it may not, the
// skip is recorded in run history.
func (a *App) tradingDayGate(ctx context.Context, job models.JobName, force bool) bool {
	now := a.now()
	if force || a.Calendar.IsTradingDay(now) {
		return true
	}

	if history, err := a.History(); err == nil {
		run := &models.RunRecord{
			ID:         uuid.NewString(),
			Job:        job,
			StartedAt:  now,
			FinishedAt: now,
			Status:     models.RunSkipped,
			Error:      "not a trading day",
		}
		if err := history.SaveRun(ctx, run); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to record skipped run")
		}
	}
	a.Logger.Info().Str("job", string(job)).Str("date", utils.DateKey(now)).Msg("Not a trading day, skipping")
	return false
}
