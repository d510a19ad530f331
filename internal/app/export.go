package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

// ExportOptions hold parameters for exporting whale history.
type ExportOptions struct {
	CSVPath string
	PNGPath string
	Limit   int
}

// Export writes recorded whale transactions as CSV and/or a PNG chart of
// transfer sizes over time.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Limit <= 0 {
		opts.Limit = 1000
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	transactions, err := store.ListRecentWhaleTransactions(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		a.Logger.Info().Msg("no whale transactions to export")
		return nil
	}

	if opts.CSVPath != "" {
		if err := writeWhalesCSV(opts.CSVPath, transactions); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeWhalesPNG(opts.PNGPath, transactions); err != nil {
			return err
		}
	}

	a.Logger.Info().Int("exported", len(transactions)).Msg("whale transactions exported")
	return nil
}

func writeWhalesCSV(path string, transactions []storage.WhaleTransaction) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "currency", "chain", "amount", "amount_usd", "direction", "from", "to", "tx_hash", "whale_rating"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, tx := range transactions {
		record := []string{
			time.Unix(tx.Timestamp, 0).UTC().Format(time.RFC3339),
			tx.Currency,
			tx.Chain,
			tx.Amount.String(),
			tx.AmountUSD.String(),
			tx.Direction,
			tx.FromAddress,
			tx.ToAddress,
			tx.TxHash,
			strconv.FormatFloat(tx.WhaleRating, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeWhalesPNG(path string, transactions []storage.WhaleTransaction) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	sorted := make([]storage.WhaleTransaction, len(transactions))
	copy(sorted, transactions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	x := make([]time.Time, len(sorted))
	usd := make([]float64, len(sorted))
	for i, tx := range sorted {
		x[i] = time.Unix(tx.Timestamp, 0).UTC()
		usd[i] = tx.AmountUSD.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Transfer size (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Whale transfers",
				XValues: x,
				YValues: usd,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
