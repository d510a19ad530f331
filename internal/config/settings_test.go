package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSettings(t *testing.T) (*Settings, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := LoadSettings(path)
	require.NoError(t, err)
	return s, path
}

func readSettingsFile(t *testing.T, path string) settingsData {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var data settingsData
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestLoadSettingsCreatesDefaults(t *testing.T) {
	s, path := newTestSettings(t)

	require.FileExists(t, path)
	require.True(t, s.AutoImprovement())
	require.Equal(t, "500000", s.WhaleThreshold().String())
	require.Equal(t, []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, s.FavoritePairs())
}

func TestMutationsAreWrittenThrough(t *testing.T) {
	s, path := newTestSettings(t)

	require.NoError(t, s.Subscribe(42))
	require.NoError(t, s.UpdateMonitored(42, "ETH", true))
	require.NoError(t, s.SetWhaleThreshold(750000))
	require.NoError(t, s.SetAutoImprovement(false))

	data := readSettingsFile(t, path)
	require.Equal(t, []int64{42}, data.Subscribers)
	require.Equal(t, []string{"ETH"}, data.MonitoredCurrencies[42])
	require.Equal(t, float64(750000), data.WhaleThresholdUSD)
	require.False(t, data.AutoImprovement)

	// A fresh load observes the committed state.
	reloaded, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, []int64{42}, reloaded.Subscribers())
	require.False(t, reloaded.AutoImprovement())
}

func TestSubscribeIsIdempotent(t *testing.T) {
	s, _ := newTestSettings(t)

	require.NoError(t, s.Subscribe(7))
	require.NoError(t, s.Subscribe(7))
	require.Equal(t, []int64{7}, s.Subscribers())

	require.NoError(t, s.Unsubscribe(7))
	require.NoError(t, s.Unsubscribe(7))
	require.Empty(t, s.Subscribers())
}

func TestUpdateMonitoredRejectsBadSymbol(t *testing.T) {
	s, _ := newTestSettings(t)

	require.Error(t, s.UpdateMonitored(1, "not-a-symbol", true))
	require.Error(t, s.UpdateMonitored(1, "btc", true))
	require.NoError(t, s.UpdateMonitored(1, "BTC/USDT", true))
}

func TestMonitoredCurrenciesDeduplicates(t *testing.T) {
	s, _ := newTestSettings(t)

	require.NoError(t, s.UpdateMonitored(1, "ETH", true))
	require.NoError(t, s.UpdateMonitored(2, "ETH", true))
	require.NoError(t, s.UpdateMonitored(2, "BTC", true))

	require.Equal(t, []string{"BTC", "ETH"}, s.MonitoredCurrencies())
}

func TestMonitoredReturnsCopy(t *testing.T) {
	s, _ := newTestSettings(t)
	require.NoError(t, s.UpdateMonitored(1, "ETH", true))

	m := s.Monitored()
	m[1][0] = "XXX"
	require.Equal(t, []string{"ETH"}, s.Monitored()[1])
}

func TestIsValidCurrency(t *testing.T) {
	for symbol, want := range map[string]bool{
		"BTC":       true,
		"ETH/USDT":  true,
		"MATIC":     true,
		"B":         false,
		"TOOLONGG":  false,
		"eth":       false,
		"ETH/USD":   false,
		"ETH-USDT":  false,
		"ETH/USDTX": false,
	} {
		require.Equal(t, want, IsValidCurrency(symbol), symbol)
	}
}
