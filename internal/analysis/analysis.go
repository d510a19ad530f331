package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Nik1855/CryptoMasterPro/internal/ai"
	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/market"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

const smaWindow = 20

// Report is the outcome of one deep analysis run.
type Report struct {
	Symbol string
	Chart  []byte
	Text   string
}

// Analyzer produces a chart artifact and a textual report for a currency.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (Report, error)
}

// Service implements Analyzer on top of exchange candles, optional candle
// persistence, and an optional AI commentary.
type Service struct {
	candles     market.CandleFetcher
	store       storage.CandleStore
	recommender ai.Recommender
	cfg         config.AnalysisConfig
	logger      zerolog.Logger
}

// New constructs the analysis service. store and recommender may be nil.
func New(candles market.CandleFetcher, store storage.CandleStore, recommender ai.Recommender, cfg config.AnalysisConfig, logger zerolog.Logger) *Service {
	if cfg.Timeframe == "" {
		cfg.Timeframe = "4h"
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 90
	}
	return &Service{
		candles:     candles,
		store:       store,
		recommender: recommender,
		cfg:         cfg,
		logger:      logger.With().Str("component", "analysis").Logger(),
	}
}

// Analyze fetches candle history for symbol, persists it, and renders the
// price chart plus a markdown report.
func (s *Service) Analyze(ctx context.Context, symbol string) (Report, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	since := time.Now().UTC().AddDate(0, 0, -s.cfg.HistoryDays)
	candles, err := s.candles.FetchCandles(ctx, symbol, s.cfg.Timeframe, since)
	if err != nil {
		return Report{}, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	if len(candles) < 2 {
		return Report{}, errors.New("not enough candle history for analysis")
	}

	if s.store != nil {
		if err := s.store.SaveCandles(ctx, candles); err != nil {
			// History persistence is best effort; the analysis still stands.
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist candles")
		}
	}

	png, err := renderChart(symbol, candles)
	if err != nil {
		return Report{}, fmt.Errorf("render chart for %s: %w", symbol, err)
	}

	text := s.buildReport(ctx, symbol, candles)
	return Report{Symbol: symbol, Chart: png, Text: text}, nil
}

func (s *Service) buildReport(ctx context.Context, symbol string, candles []storage.Candle) string {
	first := candles[0]
	last := candles[len(candles)-1]

	high := first.High
	low := first.Low
	for _, candle := range candles {
		if candle.High.GreaterThan(high) {
			high = candle.High
		}
		if candle.Low.LessThan(low) {
			low = candle.Low
		}
	}

	change := decimal.Zero
	if !first.Close.IsZero() {
		change = last.Close.Sub(first.Close).Div(first.Close).Mul(decimal.NewFromInt(100))
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("📊 *%s Analysis*\n\n", symbol))
	builder.WriteString(fmt.Sprintf("Last close: %s\n", last.Close.StringFixed(4)))
	builder.WriteString(fmt.Sprintf("Window high: %s\n", high.StringFixed(4)))
	builder.WriteString(fmt.Sprintf("Window low: %s\n", low.StringFixed(4)))
	builder.WriteString(fmt.Sprintf("Change over %dd: %s%%\n", s.cfg.HistoryDays, change.StringFixed(2)))
	if sma, ok := lastSMA(candles, smaWindow); ok {
		builder.WriteString(fmt.Sprintf("SMA%d: %.4f\n", smaWindow, sma))
	}

	if s.recommender != nil {
		briefing := fmt.Sprintf(
			"Symbol %s, timeframe %s. Last close %s, window high %s, window low %s, change %s%% over %d days. Give a concise market assessment.",
			symbol, s.cfg.Timeframe, last.Close, high, low, change.StringFixed(2), s.cfg.HistoryDays,
		)
		if recommendation, err := s.recommender.Recommend(ctx, briefing); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("ai recommendation unavailable")
		} else if recommendation != "" {
			builder.WriteString("\n")
			builder.WriteString(recommendation)
		}
	}

	return builder.String()
}

// lastSMA returns the simple moving average over the newest window closes.
func lastSMA(candles []storage.Candle, window int) (float64, bool) {
	if len(candles) < window {
		return 0, false
	}
	sum := decimal.Zero
	for _, candle := range candles[len(candles)-window:] {
		sum = sum.Add(candle.Close)
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(window))).Float64()
	return avg, true
}

func renderChart(symbol string, candles []storage.Candle) ([]byte, error) {
	x := make([]time.Time, len(candles))
	closes := make([]float64, len(candles))
	for i, candle := range candles {
		x[i] = time.UnixMilli(candle.Timestamp).UTC()
		closes[i] = candle.Close.InexactFloat64()
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    symbol,
			XValues: x,
			YValues: closes,
		},
	}

	if len(candles) >= smaWindow {
		smaX := x[smaWindow-1:]
		smaY := make([]float64, 0, len(candles)-smaWindow+1)
		sum := 0.0
		for i, v := range closes {
			sum += v
			if i >= smaWindow {
				sum -= closes[i-smaWindow]
			}
			if i >= smaWindow-1 {
				smaY = append(smaY, sum/float64(smaWindow))
			}
		}
		series = append(series, chart.TimeSeries{
			Name:    fmt.Sprintf("SMA%d", smaWindow),
			XValues: smaX,
			YValues: smaY,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.4f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ Analyzer = (*Service)(nil)
