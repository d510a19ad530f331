package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Nik1855/CryptoMasterPro/internal/chain"
	"github.com/Nik1855/CryptoMasterPro/internal/notify"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

const maxWhaleRating = 10

// detectWhales scans every configured chain source for transfers of monitored
// currencies above the USD threshold. Each source is isolated: one explorer
// outage does not stop the others. Duplicate transactions (same hash) are
// silently skipped via the store's conflict handling, so restarts and cache
// misses never re-announce a whale.
func (s *Service) detectWhales(ctx context.Context) error {
	if s.deps.Whales == nil {
		return nil
	}

	currencies := s.deps.Settings.MonitoredCurrencies()
	if len(currencies) == 0 {
		return nil
	}
	threshold := s.deps.Settings.WhaleThreshold()
	if threshold.IsZero() {
		return nil
	}

	var failures []error
	for _, source := range s.deps.Sources {
		for _, currency := range currencies {
			transfers, err := source.Transfers(ctx, currency)
			if err != nil {
				failures = append(failures, fmt.Errorf("%s transfers for %s: %w", source.Chain(), currency, err))
				continue
			}
			for _, transfer := range transfers {
				if transfer.AmountUSD.LessThanOrEqual(threshold) {
					continue
				}
				if err := s.recordWhale(ctx, currency, transfer, threshold); err != nil {
					failures = append(failures, err)
				}
			}
		}
	}
	return errors.Join(failures...)
}

func (s *Service) recordWhale(ctx context.Context, currency string, transfer chain.Transfer, threshold decimal.Decimal) error {
	tx := storage.WhaleTransaction{
		Currency:    currency,
		Amount:      transfer.Amount,
		AmountUSD:   transfer.AmountUSD,
		FromAddress: transfer.From,
		ToAddress:   transfer.To,
		Direction:   transfer.Direction,
		Chain:       transfer.Chain,
		TxHash:      transfer.Hash,
		Timestamp:   transfer.Timestamp,
		WhaleRating: whaleRating(transfer.AmountUSD, threshold),
	}

	inserted, err := s.deps.Whales.InsertWhaleTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("persist whale tx %s: %w", transfer.Hash, err)
	}
	if !inserted {
		return nil
	}

	s.logger.Info().
		Str("currency", currency).
		Str("chain", tx.Chain).
		Str("tx_hash", tx.TxHash).
		Str("amount_usd", tx.AmountUSD.StringFixed(0)).
		Msg("whale transfer detected")

	notify.Broadcast(ctx, s.deps.Notifier, s.deps.Settings.Subscribers(), whaleMessage(tx), s.logger)
	return nil
}

// whaleRating scores a transfer by how far above the threshold it is, capped
// so a single enormous transfer does not dominate downstream sorting.
func whaleRating(amountUSD, threshold decimal.Decimal) float64 {
	rating := amountUSD.Div(threshold).InexactFloat64()
	if rating > maxWhaleRating {
		return maxWhaleRating
	}
	return rating
}

func whaleMessage(tx storage.WhaleTransaction) string {
	return fmt.Sprintf(
		"🐳 *Whale Alert*\n\nCurrency: %s\nChain: %s\nAmount: %s (~$%s)\nDirection: %s\nFrom: `%s`\nTo: `%s`\nTx: `%s`",
		tx.Currency,
		tx.Chain,
		tx.Amount.StringFixed(4),
		tx.AmountUSD.StringFixed(0),
		tx.Direction,
		shortAddress(tx.FromAddress),
		shortAddress(tx.ToAddress),
		tx.TxHash,
	)
}

func shortAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}
