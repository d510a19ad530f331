package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nik1855/CryptoMasterPro/internal/ai"
	"github.com/Nik1855/CryptoMasterPro/internal/analysis"
	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

// AnalyzeOptions configure a one-off analysis run.
type AnalyzeOptions struct {
	Symbol  string
	PNGPath string
}

// Analyze runs a single deep analysis for one symbol, saves the chart, and
// prints the report to stdout.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	if !config.IsValidCurrency(opts.Symbol) {
		return fmt.Errorf("invalid symbol %q", opts.Symbol)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	client, _ := a.newMarket()

	var recommender ai.Recommender
	if aiClient := a.newAI(); aiClient != nil {
		recommender = aiClient
	}

	var candleStore storage.CandleStore
	if store != nil {
		candleStore = store
	}

	analyzer := analysis.New(client, candleStore, recommender, a.Config.Analysis, a.Logger)
	report, err := analyzer.Analyze(ctx, opts.Symbol)
	if err != nil {
		return err
	}

	path := opts.PNGPath
	if path == "" {
		name := strings.ReplaceAll(opts.Symbol, "/", "_")
		path = filepath.Join(a.Config.Analysis.ChartDir, fmt.Sprintf("%s_%s.png", name, time.Now().UTC().Format("20060102T150405")))
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, report.Chart, 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}

	fmt.Fprintln(os.Stdout, report.Text)
	fmt.Fprintf(os.Stdout, "\nchart saved to %s\n", path)
	return nil
}
