package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Nik1855/CryptoMasterPro/internal/cache"
)

func newTestExplorer(t *testing.T, handler http.HandlerFunc) *Explorer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewExplorer(ExplorerOptions{
		Chain:        "ETH",
		Name:         "Ethereum",
		APIURL:       srv.URL,
		APIKey:       "key",
		Timeout:      time.Second,
		MaxTransfers: 2,
	}, zerolog.Nop())
}

func transferRow(hash string) map[string]string {
	return map[string]string{
		"hash":        hash,
		"from":        "0x1111111111111111111111111111111111111111",
		"to":          "0x2222222222222222222222222222222222222222",
		"value":       "1200",
		"valueUSD":    "600000",
		"direction":   "IN",
		"tokenSymbol": "ETH",
		"timeStamp":   "1700000000",
	}
}

func TestExplorerTransfers(t *testing.T) {
	explorer := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tokentx", r.URL.Query().Get("action"))
		require.Equal(t, "key", r.URL.Query().Get("apikey"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "1",
			"result": []any{transferRow("0xaaa"), transferRow("0xbbb"), transferRow("0xccc")},
		})
	})

	transfers, err := explorer.Transfers(context.Background(), "ETH")
	require.NoError(t, err)
	// MaxTransfers caps the batch.
	require.Len(t, transfers, 2)
	require.Equal(t, "0xaaa", transfers[0].Hash)
	require.Equal(t, "ETH", transfers[0].Chain)
	require.Equal(t, "600000", transfers[0].AmountUSD.String())
	require.EqualValues(t, 1700000000, transfers[0].Timestamp)
}

func TestExplorerSkipsMalformedRows(t *testing.T) {
	bad := transferRow("0xbad")
	bad["from"] = "not-an-address"

	explorer := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "1",
			"result": []any{bad, transferRow("0xgood")},
		})
	})

	transfers, err := explorer.Transfers(context.Background(), "ETH")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	require.Equal(t, "0xgood", transfers[0].Hash)
}

func TestExplorerEmptyResultIsNotAnError(t *testing.T) {
	explorer := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "0",
			"message": "No transactions found",
			"result":  []any{},
		})
	})

	transfers, err := explorer.Transfers(context.Background(), "ETH")
	require.NoError(t, err)
	require.Empty(t, transfers)
}

func TestExplorerMissingKey(t *testing.T) {
	explorer := NewExplorer(ExplorerOptions{Chain: "BSC", APIURL: "http://localhost"}, zerolog.Nop())
	_, err := explorer.Transfers(context.Background(), "ETH")
	require.Error(t, err)
}

type stubSource struct {
	chain     string
	calls     int
	transfers []Transfer
	err       error
}

func (s *stubSource) Chain() string { return s.chain }

func (s *stubSource) Transfers(ctx context.Context, currency string) ([]Transfer, error) {
	s.calls++
	return s.transfers, s.err
}

func TestCachedSourceMemoises(t *testing.T) {
	inner := &stubSource{chain: "ETH", transfers: []Transfer{{Hash: "0x1", Chain: "ETH"}}}
	cached := NewCachedSource(inner, cache.New[[]Transfer](time.Hour))

	for i := 0; i < 3; i++ {
		transfers, err := cached.Transfers(context.Background(), "ETH")
		require.NoError(t, err)
		require.Len(t, transfers, 1)
	}
	require.Equal(t, 1, inner.calls)
}

func TestCachedSourceDoesNotCacheFailures(t *testing.T) {
	inner := &stubSource{chain: "ETH", err: errors.New("rate limited")}
	cached := NewCachedSource(inner, cache.New[[]Transfer](time.Hour))

	_, err := cached.Transfers(context.Background(), "ETH")
	require.Error(t, err)
	_, err = cached.Transfers(context.Background(), "ETH")
	require.Error(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestCachedSourceKeysByChain(t *testing.T) {
	shared := cache.New[[]Transfer](time.Hour)
	eth := NewCachedSource(&stubSource{chain: "ETH", transfers: []Transfer{{Hash: "0xe"}}}, shared)
	bsc := NewCachedSource(&stubSource{chain: "BSC", transfers: []Transfer{{Hash: "0xb"}}}, shared)

	ethTransfers, err := eth.Transfers(context.Background(), "USDT")
	require.NoError(t, err)
	bscTransfers, err := bsc.Transfers(context.Background(), "USDT")
	require.NoError(t, err)

	require.Equal(t, "0xe", ethTransfers[0].Hash)
	require.Equal(t, "0xb", bscTransfers[0].Hash)
}
