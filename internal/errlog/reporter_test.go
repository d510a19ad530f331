package errlog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

type fakeErrorStore struct {
	mu      sync.Mutex
	nextID  int64
	records []storage.ErrorRecord
	failing bool
}

func (f *fakeErrorStore) InsertError(ctx context.Context, module, errorText string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errors.New("db down")
	}
	f.nextID++
	f.records = append(f.records, storage.ErrorRecord{
		ID:        f.nextID,
		Timestamp: time.Now(),
		Module:    module,
		ErrorText: errorText,
	})
	return f.nextID, nil
}

func (f *fakeErrorStore) ListUnresolvedErrors(ctx context.Context) ([]storage.ErrorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ErrorRecord
	for _, rec := range f.records {
		if !rec.Resolved {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeErrorStore) MarkErrorResolved(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Resolved = true
		}
	}
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	chats    []int64
}

func (n *recordingNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chats = append(n.chats, chatID)
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	return n.SendMessage(ctx, chatID, caption)
}

func newTestReporter(t *testing.T) (*Reporter, *fakeErrorStore, *recordingNotifier, *config.Settings) {
	t.Helper()
	settings, err := config.LoadSettings(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	store := &fakeErrorStore{}
	notifier := &recordingNotifier{}
	reporter := NewReporter(store, notifier, settings, zerolog.Nop())
	return reporter, store, notifier, settings
}

func TestReportPersistsRecoverableError(t *testing.T) {
	reporter, store, notifier, settings := newTestReporter(t)
	require.NoError(t, settings.Subscribe(1))

	reporter.Report(context.Background(), "WHALE_DETECT", errors.New("rate limited"))

	require.Len(t, store.records, 1)
	require.Equal(t, "WHALE_DETECT", store.records[0].Module)
	require.Equal(t, "rate limited", store.records[0].ErrorText)
	require.Empty(t, notifier.messages, "recoverable errors must not escalate")
}

func TestReportEscalatesCriticalToAllSubscribers(t *testing.T) {
	reporter, store, notifier, settings := newTestReporter(t)
	require.NoError(t, settings.Subscribe(10))
	require.NoError(t, settings.Subscribe(20))

	reporter.Report(context.Background(), "MONITORING", Critical(errors.New("heap exhausted")))

	require.Len(t, store.records, 1)
	require.Equal(t, []int64{10, 20}, notifier.chats)
	require.Contains(t, notifier.messages[0], "MONITORING")
	require.Contains(t, notifier.messages[0], "heap exhausted")
}

func TestReportNilIsNoop(t *testing.T) {
	reporter, store, notifier, _ := newTestReporter(t)
	reporter.Report(context.Background(), "X", nil)
	require.Empty(t, store.records)
	require.Empty(t, notifier.messages)
}

func TestReportSurvivesStoreFailure(t *testing.T) {
	reporter, store, _, settings := newTestReporter(t)
	require.NoError(t, settings.Subscribe(1))
	store.failing = true

	// Must not panic or propagate.
	reporter.Report(context.Background(), "ALERT_CHECK", errors.New("boom"))
}

func TestIsCritical(t *testing.T) {
	require.False(t, IsCritical(nil))
	require.False(t, IsCritical(errors.New("connection refused")))
	require.True(t, IsCritical(Critical(errors.New("anything"))))
	require.True(t, IsCritical(fmt.Errorf("wrapped: %w", Critical(errors.New("x")))))
	require.True(t, IsCritical(fmt.Errorf("mmap: %w", syscall.ENOMEM)))
	require.True(t, IsCritical(errors.New("runtime: out of memory")))
	require.True(t, IsCritical(errors.New("write /tmp/x: no space left on device")))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abc", 10))
	require.Equal(t, "abcde", Truncate("abcdefgh", 5))
	require.Equal(t, "abc", Truncate("abc", 0))
}
