package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ExplorerOptions parameterise one etherscan-style explorer endpoint.
type ExplorerOptions struct {
	Chain   string
	Name    string
	APIURL  string
	APIKey  string
	Timeout time.Duration
	// MaxTransfers bounds how many of the newest transfers are returned.
	MaxTransfers int
}

// Explorer queries an etherscan-compatible token transfer API for one chain.
type Explorer struct {
	opts   ExplorerOptions
	logger zerolog.Logger
	client *http.Client
}

// NewExplorer constructs an explorer source.
func NewExplorer(opts ExplorerOptions, logger zerolog.Logger) *Explorer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.MaxTransfers <= 0 {
		opts.MaxTransfers = 5
	}

	return &Explorer{
		opts:   opts,
		logger: logger.With().Str("component", "explorer").Str("chain", opts.Chain).Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// Chain returns the chain identifier this explorer serves.
func (e *Explorer) Chain() string {
	return e.opts.Chain
}

type explorerResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Result  []explorerTransfer `json:"result"`
}

type explorerTransfer struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValueUSD    string `json:"valueUSD"`
	Direction   string `json:"direction"`
	TokenSymbol string `json:"tokenSymbol"`
	TimeStamp   string `json:"timeStamp"`
}

// Transfers fetches the newest token transfers for currency on this chain.
func (e *Explorer) Transfers(ctx context.Context, currency string) ([]Transfer, error) {
	if e.opts.APIURL == "" {
		return nil, errors.New("explorer api url not configured")
	}
	if e.opts.APIKey == "" {
		return nil, errors.New("explorer api key not configured")
	}

	query := url.Values{
		"module": {"account"},
		"action": {"tokentx"},
		"symbol": {currency},
		"sort":   {"desc"},
		"apikey": {e.opts.APIKey},
	}

	endpoint := strings.TrimRight(e.opts.APIURL, "/") + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s explorer: %w", e.opts.Chain, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s explorer status %d: %s", e.opts.Chain, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded explorerResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode %s explorer response: %w", e.opts.Chain, err)
	}
	if decoded.Status != "1" {
		// Status "0" with an empty result set is how these APIs report "no
		// transfers", not an error.
		if len(decoded.Result) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%s explorer rejected request: %s", e.opts.Chain, decoded.Message)
	}

	transfers := make([]Transfer, 0, e.opts.MaxTransfers)
	for _, row := range decoded.Result {
		if len(transfers) == e.opts.MaxTransfers {
			break
		}
		transfer, convErr := e.convert(currency, row)
		if convErr != nil {
			e.logger.Warn().Err(convErr).Str("hash", row.Hash).Msg("skipping malformed transfer")
			continue
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

func (e *Explorer) convert(currency string, row explorerTransfer) (Transfer, error) {
	if row.Hash == "" {
		return Transfer{}, errors.New("transfer missing hash")
	}
	if !common.IsHexAddress(row.From) || !common.IsHexAddress(row.To) {
		return Transfer{}, fmt.Errorf("transfer %s has malformed addresses", row.Hash)
	}

	amount, err := decimal.NewFromString(row.Value)
	if err != nil {
		return Transfer{}, fmt.Errorf("parse transfer value: %w", err)
	}
	usd, err := decimal.NewFromString(row.ValueUSD)
	if err != nil {
		return Transfer{}, fmt.Errorf("parse transfer usd value: %w", err)
	}
	timestamp, err := strconv.ParseInt(row.TimeStamp, 10, 64)
	if err != nil {
		return Transfer{}, fmt.Errorf("parse transfer timestamp: %w", err)
	}

	direction := row.Direction
	if direction == "" {
		direction = "UNKNOWN"
	}
	symbol := row.TokenSymbol
	if symbol == "" {
		symbol = currency
	}

	return Transfer{
		TokenSymbol: symbol,
		Amount:      amount,
		AmountUSD:   usd,
		From:        common.HexToAddress(row.From).Hex(),
		To:          common.HexToAddress(row.To).Hex(),
		Direction:   direction,
		Chain:       e.opts.Chain,
		Hash:        row.Hash,
		Timestamp:   timestamp,
	}, nil
}

var _ Source = (*Explorer)(nil)
