// Package scheduler is the orchestrating state machine: once per minute it
// reloads configuration when stale, fires due publications exactly once per
// calendar day, runs the maintenance sweeps at their check-points, and
// reports failures to the alert chat. It is the only writer of the daily
// published log.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"publibot/internal/maintenance"
	"publibot/internal/publish"
	"publibot/internal/remotecfg"
	"publibot/internal/storage"
	kit "publibot/internal/transport"
	logx "publibot/pkg/logx"
)

const (
	dateLayout = "2006-01-02"
	hhmmLayout = "15:04"
)

// Pipeline executes one publication job.
type Pipeline interface {
	Execute(ctx context.Context, job publish.Job) error
}

// ConfigSource serves the remote configuration snapshot.
type ConfigSource interface {
	Load(ctx context.Context, force bool) (*remotecfg.Snapshot, error)
}

// Maintainer runs the housekeeping sweeps.
type Maintainer interface {
	Audit(ctx context.Context, now time.Time) (maintenance.AuditResult, error)
	Monthly(ctx context.Context, now time.Time) (maintenance.MonthlyResult, error)
}

// Notifier is the slice of the transport the scheduler needs for alert and
// report messages.
type Notifier interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// Options tunes the scheduler loop.
type Options struct {
	Location *time.Location

	// DataDir holds the published-log state file.
	DataDir string

	// TestLead is how far before the real trigger the test publication
	// fires when a test target is configured.
	TestLead time.Duration

	// AuditTimes are the HH:MM check-points for the visual audit.
	AuditTimes []string
}

// Service drives the minute tick. One concurrent driver of scheduling logic
// exists; jobs within a tick run sequentially, so a slow job delays the rest
// of the tick, which the retry-by-revisit design tolerates.
type Service struct {
	cfg      ConfigSource
	pipeline Pipeline
	maint    Maintainer
	notify   Notifier
	runs     storage.Store // nil when run history is disabled
	opt      Options
	log      logx.Logger

	now func() time.Time // injectable for tests

	cron *cron.Cron

	mu        sync.Mutex
	plog      *publishedLog
	snap      *remotecfg.Snapshot
	today     string
	lastAudit string // "date hh:mm" of the last audit run
	inTick    bool
}

func New(cfg ConfigSource, pipeline Pipeline, maint Maintainer, notify Notifier, runs storage.Store, opt Options, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.Location == nil {
		opt.Location = time.Local
	}
	s := &Service{
		cfg:      cfg,
		pipeline: pipeline,
		maint:    maint,
		notify:   notify,
		runs:     runs,
		opt:      opt,
		log:      log,
		now:      func() time.Time { return time.Now().In(opt.Location) },
		plog:     newPublishedLog(filepath.Join(opt.DataDir, "published_log.json"), log),
	}
	return s
}

// Start restores same-day state and begins the minute tick.
func (s *Service) Start(ctx context.Context) error {
	now := s.now()
	s.mu.Lock()
	s.today = now.Format(dateLayout)
	s.plog.restore(s.today)
	s.mu.Unlock()

	// Load once up front so the first tick starts with a snapshot; a
	// failure here is soft, the tick keeps retrying.
	if snap, err := s.cfg.Load(ctx, false); err == nil {
		s.setSnapshot(snap)
	}

	s.cron = cron.New(cron.WithLocation(s.opt.Location))
	if _, err := s.cron.AddFunc("* * * * *", func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("scheduler: register tick: %w", err)
	}
	s.cron.Start()
	lead, _ := s.tuning()
	s.log.Info("scheduler started",
		logx.String("tz", s.opt.Location.String()),
		logx.Duration("test_lead", lead))
	return nil
}

// Stop halts the tick and waits for an in-flight tick to finish, bounded by
// ctx. A publication mid-send is allowed to complete.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) setSnapshot(snap *remotecfg.Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// snapshot returns the working snapshot (possibly nil before first load).
func (s *Service) snapshot() *remotecfg.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// SetTuning applies hot-reloadable knobs without a restart. Taking effect on
// the next tick is good enough at minute granularity.
func (s *Service) SetTuning(testLead time.Duration, auditTimes []string) {
	s.mu.Lock()
	s.opt.TestLead = testLead
	s.opt.AuditTimes = append([]string(nil), auditTimes...)
	s.mu.Unlock()
}

// tuning reads the knobs the tick needs under the lock.
func (s *Service) tuning() (time.Duration, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opt.TestLead, s.opt.AuditTimes
}

// alert sends text to the alert chat when one is configured, and always logs.
// The log line stays below Warn: the log service's alert sink forwards Warn+
// lines to the same chat, and a second copy there helps nobody.
func (s *Service) alert(ctx context.Context, text string) {
	s.log.Info("alert", logx.String("text", text))
	snap := s.snapshot()
	if snap == nil || snap.Directives.Alert == 0 {
		return
	}
	if _, err := s.notify.SendText(ctx, kit.ChatTarget{ChatID: snap.Directives.Alert}, text, nil); err != nil {
		s.log.Error("alert delivery failed", logx.Err(err))
	}
}
