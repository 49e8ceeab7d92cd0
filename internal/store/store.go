// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"swing-trader/internal/models"
)

// PoolStore persists the current pool. The whole table is replaced on write.
type PoolStore interface {
	ReadAll() ([]models.PoolEntry, error)
	WriteAll(entries []models.PoolEntry) error
	Path() string
}

// SignalStore persists the latest signals. The whole table is replaced on write.
type SignalStore interface {
	ReadAll() ([]models.Signal, error)
	WriteAll(signals []models.Signal) error
	Path() string
}

// BarCache caches daily bars between runs.
type BarCache interface {
	SaveBars(ctx context.Context, symbol string, bars []models.Bar, fetch FetchInfo) error
	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
	LastFetch(ctx context.Context, symbol string) (*FetchInfo, error)
}

// FetchInfo records when a symbol was last fetched from upstream and how far
// back the fetch reached.
type FetchInfo struct {
	FetchedAt time.Time
	From      time.Time
	Source    string
}

// HistoryStore keeps an append-only record of runs and their outputs.
type HistoryStore interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRuns(ctx context.Context, filter RunFilter) ([]models.RunRecord, error)
	SavePoolEntries(ctx context.Context, runID string, entries []models.PoolEntry) error
	SaveSignals(ctx context.Context, runID string, signals []models.Signal) error
	GetSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error)
}

// RunFilter represents filters for querying run history.
type RunFilter struct {
	Job   models.JobName
	Since time.Time
	Limit int
}

// SignalFilter represents filters for querying signal history.
type SignalFilter struct {
	Symbol string
	Since  time.Time
	Limit  int
}
