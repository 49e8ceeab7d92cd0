package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

// DefaultYahooURL is the Yahoo Finance chart endpoint.
const DefaultYahooURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooSource implements MarketData using the Yahoo Finance public chart API.
type YahooSource struct {
	Client  *http.Client
	BaseURL string
	now     func() time.Time
}

// NewYahooSource creates a new Yahoo Finance source.
func NewYahooSource(timeout time.Duration) *YahooSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooSource{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: DefaultYahooURL,
		now:     time.Now,
	}
}

func (y *YahooSource) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
// Quote arrays contain nulls for sessions without trades.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

func (y *YahooSource) fetchChart(ctx context.Context, symbol string, params url.Values) (*yahooChart, error) {
	u := fmt.Sprintf("%s/%s?%s", y.BaseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.NewDataError(y.Name(), symbol, "build request", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return nil, errors.NewDataError(y.Name(), symbol, "fetch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewDataError(y.Name(), symbol, "read body", err)
	}

	var chart yahooChart
	decodeErr := json.Unmarshal(body, &chart)

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewDataError(y.Name(), symbol, "not found", errors.ErrSymbolNotFound)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewDataError(y.Name(), symbol, "throttled", errors.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewDataError(y.Name(), symbol, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if decodeErr != nil {
		return nil, errors.NewDataError(y.Name(), symbol, "decode", decodeErr)
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, errors.NewDataError(y.Name(), symbol, chart.Chart.Error.Description, errors.ErrSymbolNotFound)
		}
		return nil, errors.NewDataError(y.Name(), symbol, "api error: "+chart.Chart.Error.Description, nil)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, errors.NewDataError(y.Name(), symbol, "no result", errors.ErrSymbolNotFound)
	}
	return &chart, nil
}

// FetchDailyBars fetches daily bars for the last lookbackDays+BufferDays
// calendar days. Null sessions are skipped, duplicate dates keep the last
// bar, and the result is sorted oldest first.
func (y *YahooSource) FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	end := y.now()
	start := end.AddDate(0, 0, -(lookbackDays + BufferDays))

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "history")

	chart, err := y.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	bars := parseBars(chart)
	if len(bars) == 0 {
		return nil, errors.NewDataError(y.Name(), symbol, "no bars returned", errors.ErrSymbolNotFound)
	}
	return bars, nil
}

func parseBars(chart *yahooChart) []models.Bar {
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]

	byDate := make(map[string]int, len(result.Timestamp))
	bars := make([]models.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, okO := at(quote.Open, i)
		h, okH := at(quote.High, i)
		l, okL := at(quote.Low, i)
		c, okC := at(quote.Close, i)
		if !okO || !okH || !okL || !okC {
			continue // skip null bars (holidays etc.)
		}
		v, _ := at(quote.Volume, i)

		local := time.Unix(ts, 0).In(utils.IndiaLocation)
		bar := models.Bar{
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, utils.IndiaLocation),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: int64(v),
		}

		key := utils.DateKey(bar.Date)
		if idx, ok := byDate[key]; ok {
			bars[idx] = bar
			continue
		}
		byDate[key] = len(bars)
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

// FetchLatestPrice returns the regular market price, falling back to the
// latest close and then the previous close.
func (y *YahooSource) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	chart, err := y.fetchChart(ctx, symbol, params)
	if err != nil {
		return 0, err
	}

	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice > 0 {
		return meta.RegularMarketPrice, nil
	}
	if bars := parseBars(chart); len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	if meta.PreviousClose > 0 {
		return meta.PreviousClose, nil
	}
	if meta.ChartPreviousClose > 0 {
		return meta.ChartPreviousClose, nil
	}
	return 0, errors.NewDataError(y.Name(), symbol, "no price data", nil)
}
