package chain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var dec1e18 = decimal.NewFromInt(1_000_000_000_000_000_000)

// USDPricer resolves the USD price of the chain's native asset.
type USDPricer func(ctx context.Context) (decimal.Decimal, error)

// RPCOptions parameterise the raw RPC whale source.
type RPCOptions struct {
	RPCURL  string
	Timeout time.Duration
}

// RPCSource scans the newest Ethereum block for large native transfers, a
// complement to the explorer sources that only see token movements.
type RPCSource struct {
	opts   RPCOptions
	pricer USDPricer
	logger zerolog.Logger

	clientMux sync.Mutex
	client    *ethclient.Client
}

// NewRPCSource builds a raw RPC transfer source.
func NewRPCSource(opts RPCOptions, pricer USDPricer, logger zerolog.Logger) *RPCSource {
	return &RPCSource{
		opts:   opts,
		pricer: pricer,
		logger: logger.With().Str("component", "rpc_source").Logger(),
	}
}

// Chain identifies this source's chain.
func (r *RPCSource) Chain() string {
	return "ETH"
}

// Transfers returns native ETH transfers from the latest block. Only ETH
// itself is observable here; other currencies, including ETH-prefixed tokens
// like ETHW, yield no transfers.
func (r *RPCSource) Transfers(ctx context.Context, currency string) ([]Transfer, error) {
	base := strings.ToUpper(currency)
	if i := strings.IndexByte(base, '/'); i >= 0 {
		base = base[:i]
	}
	if base != "ETH" {
		return nil, nil
	}
	if r.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	timeout := r.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := r.getClient(ctx)
	if err != nil {
		return nil, err
	}

	ethPrice, err := r.pricer(ctx)
	if err != nil {
		return nil, err
	}

	block, err := client.BlockByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	signer := types.LatestSignerForChainID(chainID)

	var transfers []Transfer
	for _, tx := range block.Transactions() {
		if tx.To() == nil || tx.Value().Sign() == 0 {
			continue
		}

		from, err := types.Sender(signer, tx)
		if err != nil {
			continue
		}

		amount := decimal.NewFromBigInt(tx.Value(), 0).Div(dec1e18)
		transfers = append(transfers, Transfer{
			TokenSymbol: "ETH",
			Amount:      amount,
			AmountUSD:   amount.Mul(ethPrice),
			From:        from.Hex(),
			To:          tx.To().Hex(),
			Direction:   "TRANSFER",
			Chain:       r.Chain(),
			Hash:        tx.Hash().Hex(),
			Timestamp:   int64(block.Time()),
		})
	}

	r.logger.Debug().Uint64("block", block.NumberU64()).Int("transfers", len(transfers)).Msg("scanned block")
	return transfers, nil
}

func (r *RPCSource) getClient(ctx context.Context) (*ethclient.Client, error) {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	client, err := ethclient.DialContext(ctx, r.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

var _ Source = (*RPCSource)(nil)
