// Package indicators provides candle transforms used by the swing strategy.
package indicators

import (
	"swing-trader/internal/models"
)

// HeikenAshi converts daily bars into Heiken Ashi candles.
type HeikenAshi struct{}

// NewHeikenAshi creates a new Heiken Ashi transformer.
func NewHeikenAshi() *HeikenAshi {
	return &HeikenAshi{}
}

func (h *HeikenAshi) Name() string {
	return "HeikenAshi"
}

// Transform returns one Heiken Ashi candle per bar, in the same order.
//
//	haClose[i] = (open+high+low+close)/4
//	haOpen[0]  = (open[0]+close[0])/2
//	haOpen[i]  = (haOpen[i-1]+haClose[i-1])/2
//	haHigh[i]  = max(high, haOpen, haClose)
//	haLow[i]   = min(low, haOpen, haClose)
//
// The input must be non-empty, strictly increasing by date, and free of
// missing or non-finite prices.
func (h *HeikenAshi) Transform(bars []models.Bar) ([]models.HeikenAshiBar, error) {
	if err := validateSeries(bars); err != nil {
		return nil, err
	}

	out := make([]models.HeikenAshiBar, len(bars))
	var prev *models.HeikenAshiBar
	for i, b := range bars {
		out[i] = next(prev, b)
		prev = &out[i]
	}
	return out, nil
}

// Next computes the candle following prev. A nil prev seeds the series.
func (h *HeikenAshi) Next(prev *models.HeikenAshiBar, bar models.Bar) (models.HeikenAshiBar, error) {
	if err := validateBar(0, bar); err != nil {
		return models.HeikenAshiBar{}, err
	}
	return next(prev, bar), nil
}

func next(prev *models.HeikenAshiBar, b models.Bar) models.HeikenAshiBar {
	haClose := (b.Open + b.High + b.Low + b.Close) / 4

	var haOpen float64
	if prev == nil {
		haOpen = (b.Open + b.Close) / 2
	} else {
		haOpen = (prev.Open + prev.Close) / 2
	}

	return models.HeikenAshiBar{
		Date:  b.Date,
		Open:  haOpen,
		High:  max3(b.High, haOpen, haClose),
		Low:   min3(b.Low, haOpen, haClose),
		Close: haClose,
	}
}
