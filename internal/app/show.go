package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// ShowWhalesOptions configure the whales command.
type ShowWhalesOptions struct {
	Limit int
}

// ShowWhales prints the most recent recorded whale transfers.
func (a *App) ShowWhales(ctx context.Context, opts ShowWhalesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show whale transactions")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	transactions, err := store.ListRecentWhaleTransactions(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		fmt.Fprintln(os.Stdout, "no whale transactions recorded")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tCurrency\tChain\tAmount\tUSD\tDirection\tTx Hash")

	for _, tx := range transactions {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			time.Unix(tx.Timestamp, 0).UTC().Format(time.RFC3339),
			tx.Currency,
			tx.Chain,
			tx.Amount.StringFixed(4),
			tx.AmountUSD.StringFixed(0),
			tx.Direction,
			tx.TxHash,
		)
	}

	writer.Flush()
	return nil
}

// ShowErrors prints the unresolved error log backlog.
func (a *App) ShowErrors(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show error log")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListUnresolvedErrors(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no unresolved errors")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime (UTC)\tModule\tError")

	for _, record := range records {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\n",
			record.ID,
			record.Timestamp.UTC().Format(time.RFC3339),
			record.Module,
			sanitizeInline(record.ErrorText),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
