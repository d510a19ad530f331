package chain

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRPCSourceOnlyScansNativeEther(t *testing.T) {
	src := NewRPCSource(RPCOptions{}, nil, zerolog.Nop())

	// ETH-prefixed tokens are not the native asset and must be ignored.
	for _, currency := range []string{"ETHW", "ETHFI", "ETHW/USDT", "BTC/USDT"} {
		transfers, err := src.Transfers(context.Background(), currency)
		require.NoError(t, err, currency)
		require.Empty(t, transfers, currency)
	}

	// Native ether is scanned, so the missing RPC URL surfaces.
	for _, currency := range []string{"ETH", "eth", "ETH/USDT"} {
		_, err := src.Transfers(context.Background(), currency)
		require.Error(t, err, currency)
	}
}
