package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "swing.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Property: saving bars and reading them back over their date range
// returns the same bars in the same order.
func TestProperty_BarRoundTripConsistency(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"RELIANCE.NS", "TCS.NS", "INFY.NS", "HDFCBANK.NS", "ICICIBANK.NS", "SBIN.NS", "ITC.NS", "LT.NS"}
	run := 0

	properties.Property("Bar round-trip: save then retrieve produces equivalent data", prop.ForAll(
		func(symbolIdx int, count int, basePrice float64, baseVolume int64) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], run)

			bars := generateTestBars(count, basePrice, baseVolume)
			fetch := FetchInfo{FetchedAt: time.Now(), From: bars[0].Date, Source: "test"}
			if err := store.SaveBars(ctx, symbol, bars, fetch); err != nil {
				t.Logf("Failed to save bars: %v", err)
				return false
			}

			retrieved, err := store.GetBars(ctx, symbol, bars[0].Date, bars[len(bars)-1].Date)
			if err != nil {
				t.Logf("Failed to get bars: %v", err)
				return false
			}
			if len(retrieved) != len(bars) {
				t.Logf("Count mismatch: expected %d, got %d", len(bars), len(retrieved))
				return false
			}
			for i, orig := range bars {
				if !barsEqual(orig, retrieved[i]) {
					t.Logf("Bar mismatch at index %d: original=%+v, retrieved=%+v", i, orig, retrieved[i])
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(symbols)-1),
		gen.IntRange(1, 40),
		gen.Float64Range(100.0, 5000.0),
		gen.Int64Range(1000, 1000000),
	))

	properties.TestingRun(t)
}

func TestSQLiteStore_SaveBarsUpsertsByDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bars := generateTestBars(3, 100, 1000)
	if err := store.SaveBars(ctx, "TCS.NS", bars, FetchInfo{FetchedAt: time.Now(), From: bars[0].Date, Source: "test"}); err != nil {
		t.Fatal(err)
	}

	// Intraday refresh of the last session replaces the earlier snapshot.
	updated := bars[2]
	updated.Close = 999
	if err := store.SaveBars(ctx, "TCS.NS", []models.Bar{updated}, FetchInfo{FetchedAt: time.Now(), From: bars[0].Date, Source: "test"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetBars(ctx, "TCS.NS", bars[0].Date, bars[2].Date)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2].Close != 999 {
		t.Errorf("got %d bars, last close %v", len(got), got[len(got)-1].Close)
	}
}

func TestSQLiteStore_LastFetch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	info, err := store.LastFetch(ctx, "NEVER.NS")
	if err != nil || info != nil {
		t.Fatalf("LastFetch(unknown) = %+v, %v", info, err)
	}

	fetchedAt := time.Date(2024, 3, 6, 16, 30, 0, 0, utils.IndiaLocation)
	from := time.Date(2024, 1, 26, 0, 0, 0, 0, utils.IndiaLocation)
	if err := store.SaveBars(ctx, "INFY.NS", nil, FetchInfo{FetchedAt: fetchedAt, From: from, Source: "yahoo"}); err != nil {
		t.Fatal(err)
	}

	info, err = store.LastFetch(ctx, "INFY.NS")
	if err != nil || info == nil {
		t.Fatalf("LastFetch() = %+v, %v", info, err)
	}
	if !info.FetchedAt.Equal(fetchedAt) || !utils.SameDay(info.From, from) || info.Source != "yahoo" {
		t.Errorf("LastFetch() = %+v", info)
	}
}

func TestSQLiteStore_RunHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 6, 16, 30, 0, 0, utils.IndiaLocation)

	runs := []models.RunRecord{
		{ID: "a", Job: models.JobPoolCreation, StartedAt: base, FinishedAt: base.Add(time.Minute), Scanned: 30, Matched: 2, Status: models.RunSucceeded},
		{ID: "b", Job: models.JobFinalization, StartedAt: base.Add(time.Hour), Scanned: 2, Failed: 1, Status: models.RunFailed, Error: "disk full"},
		{ID: "c", Job: models.JobPoolCreation, StartedAt: base.Add(24 * time.Hour), Status: models.RunSkipped},
	}
	for i := range runs {
		if err := store.SaveRun(ctx, &runs[i]); err != nil {
			t.Fatalf("SaveRun(%s): %v", runs[i].ID, err)
		}
	}

	all, err := store.GetRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("GetRuns() order = %v", runIDs(all))
	}
	if all[1].Error != "disk full" || all[1].Status != models.RunFailed || !all[1].FinishedAt.IsZero() {
		t.Errorf("run b = %+v", all[1])
	}

	pools, err := store.GetRuns(ctx, RunFilter{Job: models.JobPoolCreation, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(pools) != 1 || pools[0].ID != "c" {
		t.Errorf("filtered runs = %v", runIDs(pools))
	}

	// Updating a run replaces it.
	runs[2].Status = models.RunSucceeded
	if err := store.SaveRun(ctx, &runs[2]); err != nil {
		t.Fatal(err)
	}
	again, _ := store.GetRuns(ctx, RunFilter{Job: models.JobPoolCreation})
	if len(again) != 2 || again[0].Status != models.RunSucceeded {
		t.Errorf("after update = %+v", again)
	}
}

func TestSQLiteStore_SignalHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 6, 15, 15, 0, 0, utils.IndiaLocation)
	prev := 101.5

	signals := []models.Signal{
		{Symbol: "TCS.NS", Candle3High: 102, HAOpen: 101, HAClose: 103, PreviousHAClose: &prev, CurrentPrice: 104, SignalDate: at, Mode: models.FinalizeHeikenAshi},
		{Symbol: "ITC.NS", Candle3High: 400, CurrentPrice: 401, SignalDate: at.Add(time.Minute), Mode: models.FinalizePrice},
	}
	if err := store.SaveRun(ctx, &models.RunRecord{ID: "r1", Job: models.JobFinalization, StartedAt: at, Status: models.RunSucceeded}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSignals(ctx, "r1", signals); err != nil {
		t.Fatal(err)
	}
	if err := store.SavePoolEntries(ctx, "r1", []models.PoolEntry{{Symbol: "TCS.NS", Candle1Date: at, Candle2Date: at, Candle3Date: at, Candle3High: 102, DetectionDate: at}}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSignals(ctx, SignalFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Symbol != "ITC.NS" {
		t.Fatalf("GetSignals() = %+v", got)
	}
	if got[0].PreviousHAClose != nil || got[0].Mode != models.FinalizePrice {
		t.Errorf("price signal = %+v", got[0])
	}
	if got[1].PreviousHAClose == nil || *got[1].PreviousHAClose != prev || got[1].HAClose != 103 {
		t.Errorf("ha signal = %+v", got[1])
	}

	tcs, err := store.GetSignals(ctx, SignalFilter{Symbol: "TCS.NS"})
	if err != nil || len(tcs) != 1 {
		t.Errorf("filtered signals = %+v, %v", tcs, err)
	}
}

// generateTestBars creates valid consecutive daily bars for testing.
func generateTestBars(count int, basePrice float64, baseVolume int64) []models.Bar {
	bars := make([]models.Bar, count)
	baseDay := time.Date(2024, 1, 1, 0, 0, 0, 0, utils.IndiaLocation)

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.01 * basePrice
		open := basePrice + variation
		close := basePrice + variation*0.5

		high := math.Max(open, close) * 1.01
		low := math.Min(open, close) * 0.99

		bars[i] = models.Bar{
			Date:   baseDay.AddDate(0, 0, i),
			Open:   roundToDecimal(open, 2),
			High:   roundToDecimal(high, 2),
			Low:    roundToDecimal(low, 2),
			Close:  roundToDecimal(close, 2),
			Volume: baseVolume + int64(i*1000),
		}
	}

	return bars
}

// roundToDecimal rounds a float to specified decimal places
func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

// barsEqual compares two bars for equality with floating point tolerance.
func barsEqual(a, b models.Bar) bool {
	const tolerance = 0.01

	if !a.Date.Equal(b.Date) {
		return false
	}
	if !floatEqual(a.Open, b.Open, tolerance) || !floatEqual(a.High, b.High, tolerance) ||
		!floatEqual(a.Low, b.Low, tolerance) || !floatEqual(a.Close, b.Close, tolerance) {
		return false
	}
	return a.Volume == b.Volume
}

// floatEqual compares two floats with a tolerance.
func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func runIDs(runs []models.RunRecord) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
