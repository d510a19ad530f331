package errlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/notify"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

const escalationExcerptLimit = 300

type criticalError struct {
	err error
}

func (e *criticalError) Error() string { return e.err.Error() }

func (e *criticalError) Unwrap() error { return e.err }

// Critical wraps err so the reporter escalates it immediately regardless of
// its textual content.
func Critical(err error) error {
	if err == nil {
		return nil
	}
	return &criticalError{err: err}
}

// criticalFragments are error texts that indicate resource exhaustion or a
// platform-level fault rather than an ordinary collaborator failure.
var criticalFragments = []string{
	"out of memory",
	"cannot allocate memory",
	"no space left on device",
	"too many open files",
}

// IsCritical reports whether err represents a system-level failure that must
// reach a human immediately.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}

	var marked *criticalError
	if errors.As(err, &marked) {
		return true
	}
	if errors.Is(err, syscall.ENOMEM) || errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EMFILE) {
		return true
	}

	text := strings.ToLower(err.Error())
	for _, fragment := range criticalFragments {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}

// Reporter is the single failure sink for every component. Reporting never
// fails the caller: persistence and delivery problems are logged and dropped.
type Reporter struct {
	store    storage.ErrorLogStore
	notifier notify.Notifier
	settings *config.Settings
	logger   zerolog.Logger
}

// NewReporter wires the error reporter.
func NewReporter(store storage.ErrorLogStore, notifier notify.Notifier, settings *config.Settings, logger zerolog.Logger) *Reporter {
	return &Reporter{
		store:    store,
		notifier: notifier,
		settings: settings,
		logger:   logger.With().Str("component", "errlog").Logger(),
	}
}

// Report persists a new error record for module and escalates critical
// failures to every subscriber.
func (r *Reporter) Report(ctx context.Context, module string, reportErr error) {
	if reportErr == nil {
		return
	}

	critical := IsCritical(reportErr)
	r.logger.Error().Err(reportErr).Str("module", module).Bool("critical", critical).Msg("failure reported")

	if r.store != nil {
		if _, err := r.store.InsertError(ctx, module, reportErr.Error()); err != nil {
			r.logger.Error().Err(err).Str("module", module).Msg("failed to persist error record")
		}
	}

	if critical {
		r.escalate(ctx, module, reportErr)
	}
}

func (r *Reporter) escalate(ctx context.Context, module string, reportErr error) {
	if r.notifier == nil || r.settings == nil {
		return
	}

	subscribers := r.settings.Subscribers()
	if len(subscribers) == 0 {
		return
	}

	message := fmt.Sprintf(
		"🚨 *Critical System Error*\n\nModule: `%s`\nError: `%s`%s",
		module,
		Truncate(reportErr.Error(), escalationExcerptLimit),
		memoryFooter(ctx),
	)
	notify.Broadcast(ctx, r.notifier, subscribers, message, r.logger)
}

// memoryFooter appends a memory snapshot so an OOM escalation carries the
// evidence with it.
func memoryFooter(ctx context.Context) string {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(
		"\nMemory: %.1f%% used (%d/%d MiB)",
		stat.UsedPercent,
		stat.Used/(1<<20),
		stat.Total/(1<<20),
	)
}

// Truncate bounds a string for inclusion in a chat message.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}
