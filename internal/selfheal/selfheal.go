package selfheal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nik1855/CryptoMasterPro/internal/ai"
	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/errlog"
	"github.com/Nik1855/CryptoMasterPro/internal/loop"
	"github.com/Nik1855/CryptoMasterPro/internal/notify"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

const escalationExcerptLimit = 200

// Deps are the collaborators of the self-healing loop.
type Deps struct {
	Errors    storage.ErrorLogStore
	Suggester ai.Suggester
	Runner    Runner
	Notifier  notify.Notifier
	Settings  *config.Settings
}

// Service periodically walks the unresolved error log, asks the AI for a fix,
// applies it to the module's source file, and keeps it only when the test
// suite passes. Anything else is rolled back and escalated to subscribers.
type Service struct {
	deps   Deps
	cfg    config.SelfHealConfig
	loop   *loop.Loop
	logger zerolog.Logger

	// attempts counts fix attempts per error record so a stubbornly broken
	// module cannot consume the AI budget forever. In-memory on purpose: a
	// restart grants a fresh budget.
	attempts map[int64]int
}

// New constructs a stopped self-healing service.
func New(deps Deps, cfg config.SelfHealConfig, logger zerolog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	svc := &Service{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.With().Str("component", "selfheal").Logger(),
		attempts: make(map[int64]int),
	}
	svc.loop = loop.New(loop.Options{Name: "selfheal", Interval: cfg.Interval, Backoff: cfg.Backoff}, logger)
	return svc
}

// Start launches the self-healing loop.
func (s *Service) Start(ctx context.Context) {
	s.loop.Start(ctx, s.tick)
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (s *Service) Stop() {
	s.loop.Stop()
}

// Running reports whether the loop is active.
func (s *Service) Running() bool {
	return s.loop.Running()
}

// tick runs one healing pass. Record failures are isolated: a bad record is
// escalated and skipped, the rest of the backlog still gets its chance.
func (s *Service) tick(ctx context.Context) error {
	if !s.deps.Settings.AutoImprovement() {
		return nil
	}

	records, err := s.deps.Errors.ListUnresolvedErrors(ctx)
	if err != nil {
		return fmt.Errorf("list unresolved errors: %w", err)
	}

	var failures []error
	for _, record := range records {
		if err := s.healRecord(ctx, record); err != nil {
			failures = append(failures, fmt.Errorf("record %d: %w", record.ID, err))
		}
	}
	return errors.Join(failures...)
}

func (s *Service) healRecord(ctx context.Context, record storage.ErrorRecord) error {
	if s.attempts[record.ID] >= s.cfg.MaxAttempts {
		s.logger.Warn().Int64("error_id", record.ID).Str("module", record.Module).Msg("attempt budget exhausted, leaving record for a human")
		return nil
	}
	s.attempts[record.ID]++

	target := s.modulePath(record.Module)
	original, err := os.ReadFile(target)
	if err != nil {
		s.escalate(ctx, record, fmt.Sprintf("module source not found at %s", target))
		return fmt.Errorf("read module source: %w", err)
	}

	suggestion, err := s.deps.Suggester.SuggestFix(ctx, record.Module, record.ErrorText)
	if err != nil {
		s.escalate(ctx, record, "AI collaborator unreachable, no fix attempted")
		return fmt.Errorf("request fix: %w", err)
	}

	code := ExtractCodeBlock(suggestion)
	if code == "" {
		s.escalate(ctx, record, "AI response contained no code block")
		return errors.New("no code block in suggestion")
	}

	if err := os.WriteFile(target, []byte(code), 0o644); err != nil {
		s.escalate(ctx, record, "could not write the suggested fix")
		return fmt.Errorf("write fixed module: %w", err)
	}

	if err := s.runTests(ctx); err != nil {
		if restoreErr := os.WriteFile(target, original, 0o644); restoreErr != nil {
			s.logger.Error().Err(restoreErr).Str("path", target).Msg("rollback failed, module left in patched state")
		}
		s.escalate(ctx, record, "fix failed tests and was rolled back")
		return fmt.Errorf("verify fix: %w", err)
	}

	if err := s.deps.Errors.MarkErrorResolved(ctx, record.ID); err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	delete(s.attempts, record.ID)

	s.logger.Info().Int64("error_id", record.ID).Str("module", record.Module).Msg("fix applied and verified")
	notify.Broadcast(ctx, s.deps.Notifier, s.deps.Settings.Subscribers(), fmt.Sprintf(
		"✅ *Self-Healing Applied*\n\nError #%d in `%s` was fixed and verified by the test suite.",
		record.ID, record.Module,
	), s.logger)
	return nil
}

func (s *Service) runTests(ctx context.Context) error {
	if s.deps.Runner == nil {
		return errors.New("no test runner configured")
	}
	if s.cfg.TestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TestTimeout)
		defer cancel()
	}
	return s.deps.Runner.RunTests(ctx)
}

func (s *Service) escalate(ctx context.Context, record storage.ErrorRecord, reason string) {
	message := fmt.Sprintf(
		"⚠️ *Self-Healing Escalation*\n\nError #%d in `%s` needs a human: %s.\nError: `%s`",
		record.ID,
		record.Module,
		reason,
		errlog.Truncate(record.ErrorText, escalationExcerptLimit),
	)
	notify.Broadcast(ctx, s.deps.Notifier, s.deps.Settings.Subscribers(), message, s.logger)
}

// modulePath maps an error log module name to its source file, e.g.
// MONITORING -> <sourceDir>/monitoring.go.
func (s *Service) modulePath(module string) string {
	return filepath.Join(s.cfg.SourceDir, strings.ToLower(module)+".go")
}

// ExtractCodeBlock returns the contents of the first fenced code block in
// text, or "" when none is present. A language tag on the opening fence is
// ignored.
func ExtractCodeBlock(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return ""
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		// Drop the language tag line, e.g. "go".
		rest = rest[nl+1:]
	} else {
		return ""
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return ""
	}
	return rest[:end]
}
