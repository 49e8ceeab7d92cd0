package patterns

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"swing-trader/internal/models"
)

var (
	day0     = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	fixedNow = time.Date(2024, 3, 20, 16, 30, 0, 0, time.UTC)
)

func clock() time.Time { return fixedNow }

// red builds a bearish HA candle on day i with the given range.
func red(i int, low, high float64) models.HeikenAshiBar {
	return models.HeikenAshiBar{
		Date:  day0.AddDate(0, 0, i),
		Open:  high - (high-low)/4,
		Close: low + (high-low)/4,
		High:  high,
		Low:   low,
	}
}

func green(i int, low, high float64) models.HeikenAshiBar {
	c := red(i, low, high)
	c.Open, c.Close = c.Close, c.Open
	return c
}

func TestTrendDetector_ContractingTriple(t *testing.T) {
	ha := []models.HeikenAshiBar{
		red(0, 10, 25),
		red(1, 8, 22),
		red(2, 5, 20),
	}

	p := NewTrendDetector(WithClock(clock)).Detect("TCS.NS", ha)
	if p == nil {
		t.Fatal("Detect() = nil, want pattern")
	}
	if p.Symbol != "TCS.NS" {
		t.Errorf("Symbol = %q", p.Symbol)
	}
	if !p.Candle1.Date.Equal(ha[2].Date) || !p.Candle2.Date.Equal(ha[1].Date) || !p.Candle3.Date.Equal(ha[0].Date) {
		t.Errorf("candle dates = %v %v %v", p.Candle1.Date, p.Candle2.Date, p.Candle3.Date)
	}
	if p.BreakoutLevel() != 25 {
		t.Errorf("BreakoutLevel() = %v, want 25", p.BreakoutLevel())
	}
	if !p.DetectedAt.Equal(fixedNow) {
		t.Errorf("DetectedAt = %v, want %v", p.DetectedAt, fixedNow)
	}
}

func TestTrendDetector_EqualityBreaksStrictness(t *testing.T) {
	tests := []struct {
		name string
		ha   []models.HeikenAshiBar
	}{
		{"c1.Low == c2.Low", []models.HeikenAshiBar{red(0, 10, 25), red(1, 8, 22), red(2, 8, 20)}},
		{"c1.High == c2.High", []models.HeikenAshiBar{red(0, 10, 25), red(1, 8, 22), red(2, 5, 22)}},
		{"c2.Low == c3.Low", []models.HeikenAshiBar{red(0, 8, 25), red(1, 8, 22), red(2, 5, 20)}},
		{"c2.High == c3.High", []models.HeikenAshiBar{red(0, 10, 22), red(1, 8, 22), red(2, 5, 20)}},
	}

	d := NewTrendDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p := d.Detect("X", tt.ha); p != nil {
				t.Errorf("Detect() = %+v, want nil", p)
			}
		})
	}
}

func TestTrendDetector_RequireAllRed(t *testing.T) {
	ha := []models.HeikenAshiBar{
		red(0, 10, 25),
		green(1, 8, 22),
		red(2, 5, 20),
	}

	if p := NewTrendDetector().Detect("X", ha); p != nil {
		t.Errorf("all-red detector matched a green candle: %+v", p)
	}
	if p := NewTrendDetector(WithRequireAllRed(false)).Detect("X", ha); p == nil {
		t.Error("legacy detector should match on ranges alone")
	}
}

func TestTrendDetector_MostRecentWins(t *testing.T) {
	ha := []models.HeikenAshiBar{
		red(0, 10, 25),
		red(1, 8, 22),
		red(2, 5, 20),
		red(3, 20, 40),
		red(4, 15, 35),
		red(5, 12, 30),
	}

	p := NewTrendDetector().Detect("X", ha)
	if p == nil {
		t.Fatal("Detect() = nil")
	}
	if !p.Candle1.Date.Equal(ha[5].Date) || p.BreakoutLevel() != 40 {
		t.Errorf("matched candle1 %v level %v, want newest window", p.Candle1.Date, p.BreakoutLevel())
	}
}

func TestTrendDetector_ShortSeries(t *testing.T) {
	d := NewTrendDetector()
	for n := 0; n < 3; n++ {
		ha := []models.HeikenAshiBar{red(0, 10, 25), red(1, 8, 22)}[:n]
		if p := d.Detect("X", ha); p != nil {
			t.Errorf("Detect(%d bars) = %+v, want nil", n, p)
		}
	}
}

func TestProperty_TrendDetectorStrictness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	parameters.MaxShrinkCount = 0
	properties := gopter.NewProperties(parameters)

	properties.Property("strictly contracting red triple is always detected", prop.ForAll(
		func(low1, high1, dl2, dh2, dl3, dh3 float64) bool {
			ha := []models.HeikenAshiBar{
				red(0, low1+dl2+dl3, high1+dh2+dh3),
				red(1, low1+dl2, high1+dh2),
				red(2, low1, high1),
			}
			p := NewTrendDetector().Detect("X", ha)
			return p != nil && p.BreakoutLevel() == ha[0].High
		},
		gen.Float64Range(50, 100),
		gen.Float64Range(110, 200),
		gen.Float64Range(0.5, 10),
		gen.Float64Range(0.5, 10),
		gen.Float64Range(0.5, 10),
		gen.Float64Range(0.5, 10),
	))

	properties.Property("a detected pattern always satisfies the contraction", prop.ForAll(
		func(lows, highs []float64) bool {
			n := min(len(lows), len(highs))
			ha := make([]models.HeikenAshiBar, n)
			for i := 0; i < n; i++ {
				lo, hi := lows[i], lows[i]+highs[i]
				ha[i] = red(i, lo, hi)
			}
			p := NewTrendDetector().Detect("X", ha)
			if p == nil {
				return true
			}
			return p.Candle1.Low < p.Candle2.Low && p.Candle1.High < p.Candle2.High &&
				p.Candle2.Low < p.Candle3.Low && p.Candle2.High < p.Candle3.High &&
				p.Candle1.Date.After(p.Candle2.Date) && p.Candle2.Date.After(p.Candle3.Date)
		},
		gen.SliceOfN(12, gen.Float64Range(10, 100)),
		gen.SliceOfN(12, gen.Float64Range(1, 50)),
	))

	properties.TestingRun(t)
}
