package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// WhaleTransaction represents a large on-chain transfer. TxHash is the
// uniqueness key; inserting the same hash twice is a silent no-op.
type WhaleTransaction struct {
	Currency    string
	Amount      decimal.Decimal
	AmountUSD   decimal.Decimal
	FromAddress string
	ToAddress   string
	Direction   string
	Chain       string
	TxHash      string
	Timestamp   int64
	WhaleRating float64
}

// Alert is a user-defined price alert, unique per (user, currency, condition).
// Alerts are deactivated rather than deleted.
type Alert struct {
	UserID        int64
	Currency      string
	ConditionType string
	Threshold     decimal.Decimal
	IsActive      bool
}

// Alert condition types.
const (
	ConditionAbove     = "above"
	ConditionBelow     = "below"
	ConditionChangePct = "change_pct"
)

// ErrorRecord is a persisted runtime failure. Resolved transitions false to
// true exactly once and never reverses.
type ErrorRecord struct {
	ID        int64
	Timestamp time.Time
	Module    string
	ErrorText string
	Resolved  bool
}

// Candle is one OHLCV observation. Timestamp is unix milliseconds.
type Candle struct {
	Symbol    string
	Timestamp int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}
