package chain

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Nik1855/CryptoMasterPro/internal/cache"
)

// Transfer is one observed on-chain transfer of a tracked currency.
type Transfer struct {
	TokenSymbol string
	Amount      decimal.Decimal
	AmountUSD   decimal.Decimal
	From        string
	To          string
	Direction   string
	Chain       string
	Hash        string
	Timestamp   int64
}

// Source yields recent transfers for a currency on one chain.
type Source interface {
	Chain() string
	Transfers(ctx context.Context, currency string) ([]Transfer, error)
}

// CachedSource memoises a source behind the long-TTL cache; explorer APIs are
// rate limited and their results change slowly.
type CachedSource struct {
	inner Source
	cache *cache.Cache[[]Transfer]
}

// NewCachedSource wraps src with a TTL cache keyed by (currency, chain).
func NewCachedSource(inner Source, ttlCache *cache.Cache[[]Transfer]) *CachedSource {
	return &CachedSource{inner: inner, cache: ttlCache}
}

// Chain returns the wrapped source's chain identifier.
func (c *CachedSource) Chain() string {
	return c.inner.Chain()
}

// Transfers serves from cache when fresh, otherwise asks the inner source.
func (c *CachedSource) Transfers(ctx context.Context, currency string) ([]Transfer, error) {
	key := cache.Key{Kind: cache.KindTransfers, Symbol: currency, Chain: c.inner.Chain()}
	if transfers, ok := c.cache.Get(key); ok {
		return transfers, nil
	}

	transfers, err := c.inner.Transfers(ctx, currency)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, transfers)
	return transfers, nil
}

var _ Source = (*CachedSource)(nil)
