package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Nik1855/CryptoMasterPro/internal/cache"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

const (
	tickerPath = "/api/v3/ticker/24hr"
	klinesPath = "/api/v3/klines"

	maxKlinesPerRequest = 1000
)

// PriceData is one live ticker snapshot.
type PriceData struct {
	Symbol    string
	Price     decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	ChangePct decimal.Decimal
	Volume    decimal.Decimal
}

// PriceFetcher retrieves the current price snapshot for a symbol.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, symbol string) (PriceData, error)
}

// CandleFetcher retrieves OHLCV history for a symbol.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time) ([]storage.Candle, error)
}

// Options parameterise the exchange client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches tickers and klines from a Binance-compatible REST API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an exchange client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "market_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// exchangeSymbol maps "BTC/USDT" or a bare "BTC" onto the exchange pair form.
func exchangeSymbol(symbol string) string {
	pair := strings.ReplaceAll(symbol, "/", "")
	if !strings.Contains(symbol, "/") {
		pair += "USDT"
	}
	return strings.ToUpper(pair)
}

type tickerResponse struct {
	LastPrice          string `json:"lastPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// FetchPrice retrieves the 24h ticker for symbol.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (PriceData, error) {
	if symbol == "" {
		return PriceData{}, errors.New("symbol is required")
	}

	query := url.Values{"symbol": {exchangeSymbol(symbol)}}
	payload, err := c.get(ctx, tickerPath, query)
	if err != nil {
		return PriceData{}, err
	}

	var ticker tickerResponse
	if err := json.Unmarshal(payload, &ticker); err != nil {
		return PriceData{}, fmt.Errorf("decode ticker: %w", err)
	}

	data := PriceData{Symbol: symbol}
	for _, field := range []struct {
		raw  string
		dest *decimal.Decimal
		name string
	}{
		{ticker.LastPrice, &data.Price, "lastPrice"},
		{ticker.HighPrice, &data.High, "highPrice"},
		{ticker.LowPrice, &data.Low, "lowPrice"},
		{ticker.PriceChangePercent, &data.ChangePct, "priceChangePercent"},
		{ticker.QuoteVolume, &data.Volume, "quoteVolume"},
	} {
		value, convErr := decimal.NewFromString(field.raw)
		if convErr != nil {
			return PriceData{}, fmt.Errorf("parse %s: %w", field.name, convErr)
		}
		*field.dest = value
	}

	if data.Price.IsZero() {
		return PriceData{}, errors.New("ticker returned zero price")
	}
	return data, nil
}

// FetchCandles retrieves klines for symbol from since onward.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time) ([]storage.Candle, error) {
	if timeframe == "" {
		timeframe = "4h"
	}

	query := url.Values{
		"symbol":    {exchangeSymbol(symbol)},
		"interval":  {timeframe},
		"startTime": {fmt.Sprintf("%d", since.UnixMilli())},
		"limit":     {fmt.Sprintf("%d", maxKlinesPerRequest)},
	}

	payload, err := c.get(ctx, klinesPath, query)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]storage.Candle, 0, len(rows))
	for _, row := range rows {
		candle, convErr := parseKline(symbol, row)
		if convErr != nil {
			return nil, convErr
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKline(symbol string, row []json.RawMessage) (storage.Candle, error) {
	if len(row) < 6 {
		return storage.Candle{}, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return storage.Candle{}, fmt.Errorf("parse kline open time: %w", err)
	}

	candle := storage.Candle{Symbol: symbol, Timestamp: openTime}
	for i, dest := range []*decimal.Decimal{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume} {
		var raw string
		if err := json.Unmarshal(row[i+1], &raw); err != nil {
			return storage.Candle{}, fmt.Errorf("parse kline field %d: %w", i+1, err)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return storage.Candle{}, fmt.Errorf("parse kline field %d: %w", i+1, err)
		}
		*dest = value
	}
	return candle, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}
	return payload, nil
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("exchange api error (%d): %s", status, apiErr.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("exchange api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("exchange api error (%d)", status)
}

// CachedPrices memoises price lookups behind a short-TTL cache so a burst of
// alert evaluations for the same symbol costs one upstream call.
type CachedPrices struct {
	inner PriceFetcher
	cache *cache.Cache[PriceData]
}

// NewCachedPrices wraps fetcher with a TTL cache.
func NewCachedPrices(inner PriceFetcher, ttlCache *cache.Cache[PriceData]) *CachedPrices {
	return &CachedPrices{inner: inner, cache: ttlCache}
}

// FetchPrice serves from cache when fresh, otherwise asks the inner fetcher.
func (c *CachedPrices) FetchPrice(ctx context.Context, symbol string) (PriceData, error) {
	key := cache.Key{Kind: cache.KindPrice, Symbol: symbol}
	if data, ok := c.cache.Get(key); ok {
		return data, nil
	}

	data, err := c.inner.FetchPrice(ctx, symbol)
	if err != nil {
		return PriceData{}, err
	}
	c.cache.Set(key, data)
	return data, nil
}

var (
	_ PriceFetcher  = (*Client)(nil)
	_ CandleFetcher = (*Client)(nil)
	_ PriceFetcher  = (*CachedPrices)(nil)
)
