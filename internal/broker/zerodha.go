package broker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"swing-trader/internal/errors"
	"swing-trader/internal/models"
	"swing-trader/pkg/utils"
)

// kiteClient is the subset of the Kite Connect client used here.
type kiteClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error)
}

// KiteSource implements MarketData using Zerodha Kite Connect.
type KiteSource struct {
	client kiteClient
	tokens map[models.Exchange]map[string]int // loaded per exchange on first use
	mu     sync.Mutex
	now    func() time.Time
}

// KiteConfig holds configuration for the Kite Connect source.
type KiteConfig struct {
	APIKey      string
	AccessToken string
}

// NewKiteSource creates a Kite Connect source. Both the API key and a valid
// access token for the day are required.
func NewKiteSource(cfg KiteConfig) (*KiteSource, error) {
	if cfg.APIKey == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("kite source: %w: api key and access token required", errors.ErrNotAuthenticated)
	}
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)
	return newKiteSource(client), nil
}

func newKiteSource(client kiteClient) *KiteSource {
	return &KiteSource{
		client: client,
		tokens: make(map[models.Exchange]map[string]int),
		now:    time.Now,
	}
}

func (k *KiteSource) Name() string { return "kite" }

// FetchDailyBars fetches "day" candles for the lookback window plus buffer.
func (k *KiteSource) FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) ([]models.Bar, error) {
	token, err := k.instrumentToken(ctx, symbol)
	if err != nil {
		return nil, err
	}

	to := k.now().In(utils.IndiaLocation)
	from := to.AddDate(0, 0, -(lookbackDays + BufferDays))

	data, err := k.client.GetHistoricalData(token, "day", from, to, false, false)
	if err != nil {
		return nil, errors.NewDataError(k.Name(), symbol, "historical data", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewDataError(k.Name(), symbol, "historical data", err)
	}

	bars := make([]models.Bar, 0, len(data))
	for _, d := range data {
		local := d.Date.Time.In(utils.IndiaLocation)
		bars = append(bars, models.Bar{
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, utils.IndiaLocation),
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: int64(d.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	if len(bars) == 0 {
		return nil, errors.NewDataError(k.Name(), symbol, "no bars returned", errors.ErrSymbolNotFound)
	}
	return bars, nil
}

// FetchLatestPrice returns the last traded price.
func (k *KiteSource) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	key := fmt.Sprintf("%s:%s", ExchangeOf(symbol), TradingSymbol(symbol))

	ltp, err := k.client.GetLTP(key)
	if err != nil {
		return 0, errors.NewDataError(k.Name(), symbol, "ltp", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.NewDataError(k.Name(), symbol, "ltp", err)
	}

	q, ok := ltp[key]
	if !ok || q.LastPrice <= 0 {
		return 0, errors.NewDataError(k.Name(), symbol, "ltp missing", errors.ErrSymbolNotFound)
	}
	return q.LastPrice, nil
}

// instrumentToken resolves a symbol to its Kite instrument token, loading
// each exchange's instrument dump once.
func (k *KiteSource) instrumentToken(ctx context.Context, symbol string) (int, error) {
	ts := TradingSymbol(symbol)
	exchange := ExchangeOf(symbol)

	k.mu.Lock()
	defer k.mu.Unlock()

	tokens, loaded := k.tokens[exchange]
	if !loaded {
		if err := ctx.Err(); err != nil {
			return 0, errors.NewDataError(k.Name(), symbol, "instruments", err)
		}
		instruments, err := k.client.GetInstrumentsByExchange(string(exchange))
		if err != nil {
			return 0, errors.NewDataError(k.Name(), symbol, "instruments", err)
		}
		tokens = make(map[string]int, len(instruments))
		for _, inst := range instruments {
			tokens[strings.ToUpper(inst.Tradingsymbol)] = inst.InstrumentToken
		}
		k.tokens[exchange] = tokens
	}

	token, ok := tokens[ts]
	if !ok {
		return 0, errors.NewDataError(k.Name(), symbol, "instrument not found", errors.ErrSymbolNotFound)
	}
	return token, nil
}
