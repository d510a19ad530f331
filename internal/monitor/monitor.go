package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nik1855/CryptoMasterPro/internal/analysis"
	"github.com/Nik1855/CryptoMasterPro/internal/chain"
	"github.com/Nik1855/CryptoMasterPro/internal/config"
	"github.com/Nik1855/CryptoMasterPro/internal/errlog"
	"github.com/Nik1855/CryptoMasterPro/internal/loop"
	"github.com/Nik1855/CryptoMasterPro/internal/market"
	"github.com/Nik1855/CryptoMasterPro/internal/notify"
	"github.com/Nik1855/CryptoMasterPro/internal/storage"
)

// Module names used when reporting failures to the error log.
const (
	moduleAlertCheck = "ALERT_CHECK"
	moduleWhales     = "WHALE_DETECT"
	moduleAnalysis   = "ANALYSIS"
)

const captionLimit = 1000

// Deps are the collaborators the watchdog drives each tick.
type Deps struct {
	Prices   market.PriceFetcher
	Sources  []chain.Source
	Whales   storage.WhaleStore
	Alerts   storage.AlertStore
	Analyzer analysis.Analyzer
	Notifier notify.Notifier
	Settings *config.Settings
	Reporter *errlog.Reporter
}

// Service is the always-on market watchdog. Every tick it evaluates price
// alerts, scans chains for whale transfers, and at the top of each hour runs a
// deep analysis pass. Sub-task failures are reported and isolated so a broken
// explorer can never silence price alerts.
type Service struct {
	deps   Deps
	loop   *loop.Loop
	logger zerolog.Logger

	now func() time.Time

	latched          map[latchKey]bool
	lastAnalysisHour time.Time
}

// New constructs a stopped monitor service.
func New(deps Deps, cfg config.MonitorConfig, logger zerolog.Logger) *Service {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	svc := &Service{
		deps:    deps,
		logger:  logger.With().Str("component", "monitor").Logger(),
		now:     time.Now,
		latched: make(map[latchKey]bool),
	}
	svc.loop = loop.New(loop.Options{Name: "monitor", Interval: interval, Backoff: cfg.Backoff}, logger)
	return svc
}

// Start launches the monitoring loop.
func (s *Service) Start(ctx context.Context) {
	s.loop.Start(ctx, s.tick)
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (s *Service) Stop() {
	s.loop.Stop()
}

// Running reports whether the loop is active.
func (s *Service) Running() bool {
	return s.loop.Running()
}

// tick runs one watchdog pass. Sub-task failures are reported and contained
// here and never reach the loop's backoff: a chronically broken collaborator
// must not slow the monitoring cadence for the healthy ones.
func (s *Service) tick(ctx context.Context) error {
	s.runTask(ctx, moduleAlertCheck, s.checkAlerts)
	s.runTask(ctx, moduleWhales, s.detectWhales)
	if s.analysisDue() {
		s.runTask(ctx, moduleAnalysis, s.runAnalysis)
	}
	return nil
}

// runTask reports a sub-task failure and contains its panics. Failures during
// shutdown are not reported: an in-flight call failing with a cancelled
// context is the stop sequence, not a fault worth an error record.
func (s *Service) runTask(ctx context.Context, module string, task func(context.Context) error) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil || ctx.Err() != nil || s.deps.Reporter == nil {
			return
		}
		s.deps.Reporter.Report(ctx, module, err)
	}()
	err = task(ctx)
}

// analysisDue reports whether the hourly deep analysis should run this tick.
// The pass runs in the tick whose wall-clock minute is zero, at most once per
// hour even if several ticks land inside that minute.
func (s *Service) analysisDue() bool {
	now := s.now()
	if now.Minute() != 0 {
		return false
	}
	hour := now.Truncate(time.Hour)
	if hour.Equal(s.lastAnalysisHour) {
		return false
	}
	s.lastAnalysisHour = hour
	return true
}

// runAnalysis produces one report per watched currency and delivers it to the
// chats watching it. Chats with no watch entries fall back to the favourite
// pairs. Each currency is analyzed at most once per pass.
func (s *Service) runAnalysis(ctx context.Context) error {
	if s.deps.Analyzer == nil {
		return nil
	}

	targets := s.deps.Settings.Monitored()
	if len(targets) == 0 {
		favorites := s.deps.Settings.FavoritePairs()
		for _, chatID := range s.deps.Settings.Subscribers() {
			targets[chatID] = favorites
		}
	}

	reports := make(map[string]analysis.Report)
	var failures []error
	for chatID, currencies := range targets {
		for _, currency := range currencies {
			report, seen := reports[currency]
			if !seen {
				var err error
				report, err = s.deps.Analyzer.Analyze(ctx, currency)
				if err != nil {
					failures = append(failures, fmt.Errorf("analyze %s: %w", currency, err))
					report = analysis.Report{}
				}
				reports[currency] = report
			}
			if report.Symbol == "" {
				continue
			}
			s.deliverReport(ctx, []int64{chatID}, report)
		}
	}
	return errors.Join(failures...)
}

// deliverReport sends the chart with as much of the report as fits in the
// photo caption, then the remainder as follow-up messages.
func (s *Service) deliverReport(ctx context.Context, subscribers []int64, report analysis.Report) {
	caption, rest := splitCaption(report.Text, captionLimit)
	for _, chatID := range subscribers {
		if err := s.deps.Notifier.SendPhoto(ctx, chatID, report.Chart, caption); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Str("symbol", report.Symbol).Msg("failed to deliver analysis chart")
			continue
		}
		for _, chunk := range rest {
			if err := s.deps.Notifier.SendMessage(ctx, chatID, chunk); err != nil {
				s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to deliver analysis text")
				break
			}
		}
	}
}

// splitCaption cuts text into a leading caption of at most limit bytes and
// follow-up chunks of the same size. Splits prefer newline boundaries.
func splitCaption(text string, limit int) (string, []string) {
	if limit <= 0 || len(text) <= limit {
		return text, nil
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		if idx := lastNewlineBefore(text, limit); idx > 0 {
			cut = idx
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
		for len(text) > 0 && text[0] == '\n' {
			text = text[1:]
		}
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks[0], chunks[1:]
}

func lastNewlineBefore(s string, limit int) int {
	for i := limit; i > 0; i-- {
		if s[i-1] == '\n' {
			return i - 1
		}
	}
	return -1
}
