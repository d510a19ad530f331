package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{2,6}(/USDT)?$`)

// IsValidCurrency reports whether a symbol is acceptable as a watched currency.
func IsValidCurrency(currency string) bool {
	return currencyPattern.MatchString(currency)
}

// settingsData is the on-disk shape of the runtime settings file.
type settingsData struct {
	FavoritePairs       []string           `json:"favorite_pairs"`
	Subscribers         []int64            `json:"subscribers"`
	WhaleThresholdUSD   float64            `json:"whale_threshold"`
	MonitoredCurrencies map[int64][]string `json:"monitored_currencies"`
	AutoImprovement     bool               `json:"auto_improvement"`
}

func defaultSettingsData() settingsData {
	return settingsData{
		FavoritePairs:       []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
		Subscribers:         []int64{},
		WhaleThresholdUSD:   500000,
		MonitoredCurrencies: map[int64][]string{},
		AutoImprovement:     true,
	}
}

// Settings holds process-wide mutable state shared by both background loops.
// Every mutation happens under a single writer lock and is flushed to the
// settings file before the lock is released, so the on-disk representation
// always reflects the last committed in-memory change.
type Settings struct {
	path string

	mu   sync.RWMutex
	data settingsData
}

// LoadSettings reads the settings file, creating it with defaults when absent.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{path: path, data: defaultSettingsData()}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if s.data.MonitoredCurrencies == nil {
		s.data.MonitoredCurrencies = map[int64][]string{}
	}
	return s, nil
}

// save flushes the current state. Callers must hold the write lock.
func (s *Settings) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// Subscribers returns a copy of the subscriber list.
func (s *Settings) Subscribers() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.Subscribers)
}

// Subscribe adds a chat to the subscriber list.
func (s *Settings) Subscribe(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.data.Subscribers, chatID) {
		return nil
	}
	s.data.Subscribers = append(s.data.Subscribers, chatID)
	return s.save()
}

// Unsubscribe removes a chat from the subscriber list.
func (s *Settings) Unsubscribe(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.Index(s.data.Subscribers, chatID)
	if idx < 0 {
		return nil
	}
	s.data.Subscribers = slices.Delete(s.data.Subscribers, idx, idx+1)
	return s.save()
}

// WhaleThreshold returns the USD value above which a transfer counts as a whale.
func (s *Settings) WhaleThreshold() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decimal.NewFromFloat(s.data.WhaleThresholdUSD)
}

// SetWhaleThreshold updates the whale USD threshold.
func (s *Settings) SetWhaleThreshold(usd float64) error {
	if usd <= 0 {
		return fmt.Errorf("whale threshold must be greater than zero")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.WhaleThresholdUSD = usd
	return s.save()
}

// Monitored returns a deep copy of the chat to currencies watch map.
func (s *Settings) Monitored() map[int64][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]string, len(s.data.MonitoredCurrencies))
	for chat, currencies := range s.data.MonitoredCurrencies {
		out[chat] = slices.Clone(currencies)
	}
	return out
}

// MonitoredCurrencies returns the deduplicated set of currencies watched by any chat.
func (s *Settings) MonitoredCurrencies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, currencies := range s.data.MonitoredCurrencies {
		for _, currency := range currencies {
			if !slices.Contains(out, currency) {
				out = append(out, currency)
			}
		}
	}
	slices.Sort(out)
	return out
}

// UpdateMonitored adds or removes a watched currency for a chat.
func (s *Settings) UpdateMonitored(chatID int64, currency string, add bool) error {
	if !IsValidCurrency(currency) {
		return fmt.Errorf("invalid currency symbol %q", currency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	watched := s.data.MonitoredCurrencies[chatID]
	if add {
		if slices.Contains(watched, currency) {
			return nil
		}
		s.data.MonitoredCurrencies[chatID] = append(watched, currency)
	} else {
		idx := slices.Index(watched, currency)
		if idx < 0 {
			return nil
		}
		s.data.MonitoredCurrencies[chatID] = slices.Delete(watched, idx, idx+1)
	}
	return s.save()
}

// AutoImprovement reports whether the self-improvement loop is enabled.
func (s *Settings) AutoImprovement() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AutoImprovement
}

// SetAutoImprovement toggles the self-improvement loop flag.
func (s *Settings) SetAutoImprovement(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AutoImprovement = enabled
	return s.save()
}

// FavoritePairs returns a copy of the favourite trading pairs.
func (s *Settings) FavoritePairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.FavoritePairs)
}
