package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	initSchemaSQL = `
    CREATE TABLE IF NOT EXISTS historical_data (
        symbol     TEXT    NOT NULL,
        timestamp  BIGINT  NOT NULL,
        open       NUMERIC NOT NULL,
        high       NUMERIC NOT NULL,
        low        NUMERIC NOT NULL,
        close      NUMERIC NOT NULL,
        volume     NUMERIC NOT NULL,
        PRIMARY KEY (symbol, timestamp)
    );
    CREATE TABLE IF NOT EXISTS whale_transactions (
        currency     TEXT    NOT NULL,
        amount       NUMERIC NOT NULL,
        amount_usd   NUMERIC NOT NULL,
        from_address TEXT    NOT NULL,
        to_address   TEXT    NOT NULL,
        direction    TEXT    NOT NULL,
        chain        TEXT    NOT NULL,
        tx_hash      TEXT    PRIMARY KEY,
        timestamp    BIGINT  NOT NULL,
        whale_rating DOUBLE PRECISION NOT NULL DEFAULT 0
    );
    CREATE TABLE IF NOT EXISTS user_alerts (
        user_id        BIGINT  NOT NULL,
        currency       TEXT    NOT NULL,
        condition_type TEXT    NOT NULL,
        threshold      NUMERIC NOT NULL,
        is_active      BOOLEAN NOT NULL DEFAULT TRUE,
        PRIMARY KEY (user_id, currency, condition_type)
    );
    CREATE TABLE IF NOT EXISTS error_logs (
        id         BIGSERIAL   PRIMARY KEY,
        timestamp  TIMESTAMPTZ NOT NULL DEFAULT now(),
        module     TEXT        NOT NULL,
        error_text TEXT        NOT NULL,
        resolved   BOOLEAN     NOT NULL DEFAULT FALSE
    );
    CREATE INDEX IF NOT EXISTS idx_symbol_time ON historical_data (symbol, timestamp);
    CREATE INDEX IF NOT EXISTS idx_error_unresolved ON error_logs (resolved) WHERE NOT resolved;`

	insertWhaleSQL = `INSERT INTO whale_transactions (
        currency, amount, amount_usd, from_address, to_address,
        direction, chain, tx_hash, timestamp, whale_rating
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    ON CONFLICT (tx_hash) DO NOTHING;`

	listRecentWhalesSQL = `SELECT
        currency, amount, amount_usd, from_address, to_address,
        direction, chain, tx_hash, timestamp, whale_rating
    FROM whale_transactions
    ORDER BY timestamp DESC
    LIMIT $1;`

	countWhalesSQL = `SELECT COUNT(*) FROM whale_transactions;`

	upsertAlertSQL = `INSERT INTO user_alerts (
        user_id, currency, condition_type, threshold, is_active
    ) VALUES ($1,$2,$3,$4,TRUE)
    ON CONFLICT (user_id, currency, condition_type) DO UPDATE
    SET threshold = EXCLUDED.threshold,
        is_active = TRUE;`

	deactivateAlertSQL = `UPDATE user_alerts
    SET is_active = FALSE
    WHERE user_id = $1 AND currency = $2 AND condition_type = $3;`

	listActiveAlertsSQL = `SELECT user_id, currency, condition_type, threshold, is_active
    FROM user_alerts
    WHERE is_active;`

	insertErrorSQL = `INSERT INTO error_logs (timestamp, module, error_text)
    VALUES ($1,$2,$3)
    RETURNING id;`

	listUnresolvedErrorsSQL = `SELECT id, timestamp, module, error_text, resolved
    FROM error_logs
    WHERE NOT resolved
    ORDER BY id;`

	markErrorResolvedSQL = `UPDATE error_logs
    SET resolved = TRUE
    WHERE id = $1 AND NOT resolved;`

	upsertCandleSQL = `INSERT INTO historical_data (
        symbol, timestamp, open, high, low, close, volume
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (symbol, timestamp) DO UPDATE
    SET open   = EXCLUDED.open,
        high   = EXCLUDED.high,
        low    = EXCLUDED.low,
        close  = EXCLUDED.close,
        volume = EXCLUDED.volume;`

	listCandlesSQL = `SELECT symbol, timestamp, open, high, low, close, volume
    FROM historical_data
    WHERE symbol = $1 AND timestamp >= $2 AND timestamp < $3
    ORDER BY timestamp;`
)

// WhaleStore defines operations for whale transaction persistence.
type WhaleStore interface {
	// InsertWhaleTransaction persists tx and reports whether a new row was
	// actually written. A duplicate tx_hash yields (false, nil).
	InsertWhaleTransaction(ctx context.Context, tx WhaleTransaction) (bool, error)
	ListRecentWhaleTransactions(ctx context.Context, limit int) ([]WhaleTransaction, error)
}

// AlertStore defines operations for user alert persistence.
type AlertStore interface {
	UpsertAlert(ctx context.Context, alert Alert) error
	DeactivateAlert(ctx context.Context, userID int64, currency, conditionType string) error
	ListActiveAlerts(ctx context.Context) ([]Alert, error)
}

// ErrorLogStore defines operations for the error log.
type ErrorLogStore interface {
	InsertError(ctx context.Context, module, errorText string) (int64, error)
	ListUnresolvedErrors(ctx context.Context) ([]ErrorRecord, error)
	// MarkErrorResolved is idempotent: resolving an already-resolved record
	// changes nothing and returns nil.
	MarkErrorResolved(ctx context.Context, id int64) error
}

// CandleStore defines operations for OHLCV history.
type CandleStore interface {
	SaveCandles(ctx context.Context, candles []Candle) error
	ListCandles(ctx context.Context, symbol string, from, to int64) ([]Candle, error)
}

// Store aggregates durable state access behind a single pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Init creates the schema when it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, initSchemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertWhaleTransaction persists a whale transfer, deduplicating on tx_hash.
func (s *Store) InsertWhaleTransaction(ctx context.Context, tx WhaleTransaction) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, insertWhaleSQL,
		tx.Currency,
		tx.Amount.String(),
		tx.AmountUSD.String(),
		tx.FromAddress,
		tx.ToAddress,
		tx.Direction,
		tx.Chain,
		tx.TxHash,
		tx.Timestamp,
		tx.WhaleRating,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert whale transaction: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ListRecentWhaleTransactions lists the newest whale transfers.
func (s *Store) ListRecentWhaleTransactions(ctx context.Context, limit int) ([]WhaleTransaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentWhalesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list whale transactions: %w", queryErr)
	}
	defer rows.Close()

	txs := make([]WhaleTransaction, 0, limit)
	for rows.Next() {
		tx, scanErr := scanWhaleTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		txs = append(txs, tx)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txs, nil
}

// CountWhaleTransactions counts stored whale transfers.
func (s *Store) CountWhaleTransactions(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countWhalesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count whale transactions: %w", scanErr)
	}
	return count, nil
}

// UpsertAlert creates or reactivates a user alert.
func (s *Store) UpsertAlert(ctx context.Context, alert Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertAlertSQL,
		alert.UserID,
		alert.Currency,
		alert.ConditionType,
		alert.Threshold.String(),
	); execErr != nil {
		return fmt.Errorf("upsert alert: %w", execErr)
	}
	return nil
}

// DeactivateAlert flips is_active off; the row is kept for auditing.
func (s *Store) DeactivateAlert(ctx context.Context, userID int64, currency, conditionType string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deactivateAlertSQL, userID, currency, conditionType)
	if execErr != nil {
		return fmt.Errorf("deactivate alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListActiveAlerts lists all active alerts across users.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveAlertsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]Alert, 0)
	for rows.Next() {
		var alert Alert
		var thresholdStr string
		if err := rows.Scan(
			&alert.UserID,
			&alert.Currency,
			&alert.ConditionType,
			&thresholdStr,
			&alert.IsActive,
		); err != nil {
			return nil, err
		}
		threshold, convErr := decimal.NewFromString(thresholdStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse alert threshold: %w", convErr)
		}
		alert.Threshold = threshold
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// InsertError appends an error record and returns its id.
func (s *Store) InsertError(ctx context.Context, module, errorText string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var id int64
	if scanErr := pool.QueryRow(ctx, insertErrorSQL, time.Now().UTC(), module, errorText).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert error record: %w", scanErr)
	}
	return id, nil
}

// ListUnresolvedErrors lists error records awaiting remediation.
func (s *Store) ListUnresolvedErrors(ctx context.Context) ([]ErrorRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUnresolvedErrorsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list unresolved errors: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ErrorRecord, 0)
	for rows.Next() {
		var rec ErrorRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Module, &rec.ErrorText, &rec.Resolved); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// MarkErrorResolved closes an error record. Already-resolved ids are a no-op.
func (s *Store) MarkErrorResolved(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, markErrorResolvedSQL, id); execErr != nil {
		return fmt.Errorf("mark error resolved: %w", execErr)
	}
	return nil
}

// SaveCandles upserts OHLCV rows.
func (s *Store) SaveCandles(ctx context.Context, candles []Candle) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, candle := range candles {
		if _, execErr := pool.Exec(ctx, upsertCandleSQL,
			candle.Symbol,
			candle.Timestamp,
			candle.Open.String(),
			candle.High.String(),
			candle.Low.String(),
			candle.Close.String(),
			candle.Volume.String(),
		); execErr != nil {
			return fmt.Errorf("upsert candle: %w", execErr)
		}
	}
	return nil
}

// ListCandles lists candles within [from, to) ordered by time.
func (s *Store) ListCandles(ctx context.Context, symbol string, from, to int64) ([]Candle, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCandlesSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list candles: %w", queryErr)
	}
	defer rows.Close()

	candles := make([]Candle, 0)
	for rows.Next() {
		candle, scanErr := scanCandle(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		candles = append(candles, candle)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return candles, nil
}

func scanWhaleTransaction(rows pgx.Rows) (WhaleTransaction, error) {
	var (
		tx        WhaleTransaction
		amountStr string
		usdStr    string
	)

	if err := rows.Scan(
		&tx.Currency,
		&amountStr,
		&usdStr,
		&tx.FromAddress,
		&tx.ToAddress,
		&tx.Direction,
		&tx.Chain,
		&tx.TxHash,
		&tx.Timestamp,
		&tx.WhaleRating,
	); err != nil {
		return WhaleTransaction{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return WhaleTransaction{}, fmt.Errorf("parse whale amount: %w", err)
	}
	usd, err := decimal.NewFromString(usdStr)
	if err != nil {
		return WhaleTransaction{}, fmt.Errorf("parse whale amount usd: %w", err)
	}

	tx.Amount = amount
	tx.AmountUSD = usd
	return tx, nil
}

func scanCandle(rows pgx.Rows) (Candle, error) {
	var (
		candle Candle
		fields [5]string
	)

	if err := rows.Scan(
		&candle.Symbol,
		&candle.Timestamp,
		&fields[0],
		&fields[1],
		&fields[2],
		&fields[3],
		&fields[4],
	); err != nil {
		return Candle{}, err
	}

	values := make([]decimal.Decimal, len(fields))
	for i, field := range fields {
		value, err := decimal.NewFromString(field)
		if err != nil {
			return Candle{}, fmt.Errorf("parse candle field: %w", err)
		}
		values[i] = value
	}

	candle.Open, candle.High, candle.Low, candle.Close, candle.Volume = values[0], values[1], values[2], values[3], values[4]
	return candle, nil
}
