package broker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

// StaticSource serves bars and prices held in memory. It backs offline
// replays and tests.
type StaticSource struct {
	mu     sync.RWMutex
	bars   map[string][]models.Bar
	prices map[string]float64
	errs   map[string]error
	calls  map[string]int
}

// NewStaticSource creates an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		bars:   make(map[string][]models.Bar),
		prices: make(map[string]float64),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (s *StaticSource) Name() string { return "static" }

// SetBars stores bars for symbol, sorted oldest first.
func (s *StaticSource) SetBars(symbol string, bars []models.Bar) {
	sorted := append([]models.Bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = sorted
}

// SetPrice stores the latest price for symbol.
func (s *StaticSource) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// SetError makes every request for symbol fail with err.
func (s *StaticSource) SetError(symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[symbol] = err
}

// Calls returns how many requests were made for symbol.
func (s *StaticSource) Calls(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[symbol]
}

// FetchDailyBars returns all stored bars for symbol. The lookback is not
// applied, so replays see exactly what was loaded.
func (s *StaticSource) FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++

	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	bars, ok := s.bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, errors.NewDataError(s.Name(), symbol, "no bars", errors.ErrSymbolNotFound)
	}
	return append([]models.Bar(nil), bars...), nil
}

// FetchLatestPrice returns the stored price, or the last stored close.
func (s *StaticSource) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++

	if err := s.errs[symbol]; err != nil {
		return 0, err
	}
	if p, ok := s.prices[symbol]; ok {
		return p, nil
	}
	if bars := s.bars[symbol]; len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return 0, errors.NewDataError(s.Name(), symbol, "no price", errors.ErrSymbolNotFound)
}

// barRow is one line of a replay file.
type barRow struct {
	Symbol string  `csv:"symbol"`
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// LoadBarsCSV loads bars from a CSV with columns
// symbol,date,open,high,low,close,volume. Dates are YYYY-MM-DD in IST.
func (s *StaticSource) LoadBarsCSV(r io.Reader) error {
	var rows []*barRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return fmt.Errorf("failed to decode bars: %w", err)
	}

	grouped := make(map[string][]models.Bar)
	for i, row := range rows {
		date, err := time.ParseInLocation(time.DateOnly, row.Date, utils.IndiaLocation)
		if err != nil {
			return fmt.Errorf("row %d: invalid date %q: %w", i+1, row.Date, err)
		}
		symbol := NormalizeSymbol(row.Symbol)
		grouped[symbol] = append(grouped[symbol], models.Bar{
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	for symbol, bars := range grouped {
		s.SetBars(symbol, bars)
	}
	return nil
}
