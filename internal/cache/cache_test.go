package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsFreshValue(t *testing.T) {
	base := time.Now()
	c := New[int](60 * time.Second)
	c.now = func() time.Time { return base }

	key := Key{Kind: KindPrice, Symbol: "BTC/USDT"}
	c.Set(key, 100)

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	got, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, 100, got)
}

func TestGetExpiresAtTTLBoundary(t *testing.T) {
	base := time.Now()
	c := New[int](60 * time.Second)
	c.now = func() time.Time { return base }

	key := Key{Kind: KindPrice, Symbol: "BTC/USDT"}
	c.Set(key, 100)

	// Exactly ttl after insertion is already stale.
	c.now = func() time.Time { return base.Add(60 * time.Second) }
	_, ok := c.Get(key)
	require.False(t, ok)

	c.now = func() time.Time { return base.Add(61 * time.Second) }
	_, ok = c.Get(key)
	require.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	c := New[string](time.Minute)
	_, ok := c.Get(Key{Kind: KindTransfers, Symbol: "ETH", Chain: "BSC"})
	require.False(t, ok)
}

func TestSetOverwritesRefreshesEntry(t *testing.T) {
	base := time.Now()
	c := New[int](60 * time.Second)
	c.now = func() time.Time { return base }

	key := Key{Kind: KindPrice, Symbol: "ETH/USDT"}
	c.Set(key, 1)

	c.now = func() time.Time { return base.Add(90 * time.Second) }
	c.Set(key, 2)

	c.now = func() time.Time { return base.Add(100 * time.Second) }
	got, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func TestKindsDoNotCollide(t *testing.T) {
	c := New[int](time.Minute)
	c.Set(Key{Kind: KindPrice, Symbol: "ETH"}, 1)

	_, ok := c.Get(Key{Kind: KindTransfers, Symbol: "ETH"})
	require.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)
	key := Key{Kind: KindPrice, Symbol: "SOL/USDT"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(key, n)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	_, ok := c.Get(key)
	require.True(t, ok)
}
