package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"publibot/internal/maintenance"
	"publibot/internal/publish"
	"publibot/internal/remotecfg"
	kit "publibot/internal/transport"
	logx "publibot/pkg/logx"
)

type fakeConfig struct {
	mu    sync.Mutex
	snap  *remotecfg.Snapshot
	err   error
	loads []bool // force flags, in call order
}

func (f *fakeConfig) Load(ctx context.Context, force bool) (*remotecfg.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, force)
	if f.err != nil {
		return f.snap, f.err
	}
	return f.snap, nil
}

type fakePipeline struct {
	mu   sync.Mutex
	jobs []publish.Job
	err  error
}

func (f *fakePipeline) Execute(ctx context.Context, job publish.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return f.err
}

func (f *fakePipeline) executed() []publish.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publish.Job(nil), f.jobs...)
}

type fakeMaint struct {
	mu       sync.Mutex
	audits   int
	monthlys int
	auditErr error
}

func (f *fakeMaint) Audit(ctx context.Context, now time.Time) (maintenance.AuditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits++
	return maintenance.AuditResult{Recolored: 1}, f.auditErr
}

func (f *fakeMaint) Monthly(ctx context.Context, now time.Time) (maintenance.MonthlyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monthlys++
	return maintenance.MonthlyResult{}, nil
}

type fakeNotify struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotify) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeNotify) alerts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func snapshotFor(date string, entries ...remotecfg.Entry) *remotecfg.Snapshot {
	return &remotecfg.Snapshot{
		Date:     date,
		Schedule: entries,
		Directives: remotecfg.Directives{
			Admins:  []int64{111},
			Publish: -1001,
			Alert:   -1002,
		},
	}
}

type fixture struct {
	svc  *Service
	cfg  *fakeConfig
	pipe *fakePipeline
	mnt  *fakeMaint
	ntf  *fakeNotify
	now  time.Time
	mu   sync.Mutex
}

func newFixture(t *testing.T, snap *remotecfg.Snapshot, opt Options) *fixture {
	t.Helper()
	if opt.DataDir == "" {
		opt.DataDir = t.TempDir()
	}
	if opt.Location == nil {
		opt.Location = time.UTC
	}
	if opt.TestLead == 0 {
		opt.TestLead = time.Hour
	}
	f := &fixture{
		cfg:  &fakeConfig{snap: snap},
		pipe: &fakePipeline{},
		mnt:  &fakeMaint{},
		ntf:  &fakeNotify{},
	}
	f.svc = New(f.cfg, f.pipe, f.mnt, f.ntf, nil, opt, logx.Nop())
	f.svc.now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
	return f
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// startAt primes today/published-log state the way Start does, without cron.
func (f *fixture) startAt(t time.Time) {
	f.setNow(t)
	f.svc.mu.Lock()
	f.svc.today = t.Format(dateLayout)
	f.svc.plog.restore(f.svc.today)
	f.svc.mu.Unlock()
}

func TestPublishesOncePerDay(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "09:00"})
	f := newFixture(t, snap, Options{})
	f.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))

	ctx := context.Background()
	f.svc.tick(ctx)
	f.setNow(time.Date(2026, time.September, 5, 9, 1, 0, 0, time.UTC))
	f.svc.tick(ctx)
	f.setNow(time.Date(2026, time.September, 5, 9, 2, 0, 0, time.UTC))
	f.svc.tick(ctx)

	jobs := f.pipe.executed()
	if len(jobs) != 1 {
		t.Fatalf("pipeline ran %d times, want exactly once", len(jobs))
	}
	if jobs[0].Agency != "Poker" || jobs[0].ChatID != -1001 || jobs[0].Test {
		t.Errorf("unexpected job %+v", jobs[0])
	}
	if got := f.svc.Published(); len(got) != 1 || got[0] != "Poker" {
		t.Errorf("Published() = %v", got)
	}
}

func TestLateTickStillFires(t *testing.T) {
	t.Parallel()
	// Trigger time long past: "<=" comparison must still fire the job.
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "09:00"})
	f := newFixture(t, snap, Options{})
	f.startAt(time.Date(2026, time.September, 5, 17, 42, 0, 0, time.UTC))

	f.svc.tick(context.Background())
	if len(f.pipe.executed()) != 1 {
		t.Fatal("job with past trigger time did not fire")
	}
}

func TestFailedJobRetriesNextTick(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Ads", At: "09:00"})
	f := newFixture(t, snap, Options{})
	f.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))

	f.pipe.err = &publish.Error{Kind: publish.FailNotFound, Agency: "Ads", Detail: "Ads"}
	ctx := context.Background()
	f.svc.tick(ctx)

	if got := f.svc.Published(); len(got) != 0 {
		t.Fatalf("failed job was marked published: %v", got)
	}
	if f.ntf.alerts() != 1 {
		t.Fatalf("alerts = %d, want 1", f.ntf.alerts())
	}

	// Store fixed: the next tick retries and succeeds.
	f.pipe.err = nil
	f.setNow(time.Date(2026, time.September, 5, 9, 1, 0, 0, time.UTC))
	f.svc.tick(ctx)

	if len(f.pipe.executed()) != 2 {
		t.Fatalf("pipeline ran %d times, want retry on second tick", len(f.pipe.executed()))
	}
	if got := f.svc.Published(); len(got) != 1 || got[0] != "Ads" {
		t.Errorf("Published() = %v", got)
	}
}

func TestRestartDoesNotRefire(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "09:00"})

	f1 := newFixture(t, snap, Options{DataDir: dataDir})
	f1.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))
	f1.svc.tick(context.Background())
	if len(f1.pipe.executed()) != 1 {
		t.Fatal("setup: first process did not publish")
	}

	// Second process, same day, same data dir.
	f2 := newFixture(t, snap, Options{DataDir: dataDir})
	f2.startAt(time.Date(2026, time.September, 5, 9, 30, 0, 0, time.UTC))
	f2.svc.tick(context.Background())

	if len(f2.pipe.executed()) != 0 {
		t.Fatal("restart re-fired an already-published job")
	}

	// Next day the persisted log is stale and the job fires again.
	f3 := newFixture(t, snap, Options{DataDir: dataDir})
	f3.startAt(time.Date(2026, time.September, 6, 9, 0, 0, 0, time.UTC))
	f3.cfg.snap = snapshotFor("2026-09-06", remotecfg.Entry{Agency: "Poker", At: "09:00"})
	f3.svc.tick(context.Background())
	if len(f3.pipe.executed()) != 1 {
		t.Fatal("next-day job did not fire after restart")
	}
}

func TestTestWindowDoesNotConsumeGuard(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "10:00"})
	snap.Directives.Test = -1003
	f := newFixture(t, snap, Options{TestLead: time.Hour})
	f.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))

	ctx := context.Background()
	f.svc.tick(ctx) // 09:00 = 10:00 minus lead

	jobs := f.pipe.executed()
	if len(jobs) != 1 || !jobs[0].Test || jobs[0].ChatID != -1003 {
		t.Fatalf("want one test job to the test target, got %+v", jobs)
	}
	if got := f.svc.Published(); len(got) != 0 {
		t.Fatalf("test run consumed the idempotency guard: %v", got)
	}

	// At the real trigger time the real publication still happens.
	f.setNow(time.Date(2026, time.September, 5, 10, 0, 0, 0, time.UTC))
	f.svc.tick(ctx)
	jobs = f.pipe.executed()
	if len(jobs) != 2 || jobs[1].Test || jobs[1].ChatID != -1001 {
		t.Fatalf("want the real publication after the test, got %+v", jobs)
	}
}

func TestRolloverResetsAndForcesReload(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "09:00"})
	f := newFixture(t, snap, Options{})
	f.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))

	ctx := context.Background()
	f.svc.tick(ctx)
	if got := f.svc.Published(); len(got) != 1 {
		t.Fatal("setup: day-one publish missing")
	}

	f.cfg.snap = snapshotFor("2026-09-06", remotecfg.Entry{Agency: "Poker", At: "09:00"})
	f.setNow(time.Date(2026, time.September, 6, 9, 0, 0, 0, time.UTC))
	f.svc.tick(ctx)

	forced := false
	f.cfg.mu.Lock()
	for _, fl := range f.cfg.loads {
		forced = forced || fl
	}
	f.cfg.mu.Unlock()
	if !forced {
		t.Error("rollover did not force a config reload")
	}
	if len(f.pipe.executed()) != 2 {
		t.Fatalf("pipeline ran %d times, want a fresh publish after rollover", len(f.pipe.executed()))
	}
}

func TestFirstOfMonthRunsMaintenanceBeforeJobs(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-08-31", remotecfg.Entry{Agency: "Poker", At: "00:01"})
	f := newFixture(t, snap, Options{})
	f.startAt(time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC))
	ctx := context.Background()
	f.svc.tick(ctx)

	f.cfg.snap = snapshotFor("2026-09-01", remotecfg.Entry{Agency: "Poker", At: "00:01"})
	f.setNow(time.Date(2026, time.September, 1, 0, 1, 0, 0, time.UTC))
	f.svc.tick(ctx)

	if f.mnt.monthlys != 1 {
		t.Fatalf("Monthly ran %d times, want once on day 1", f.mnt.monthlys)
	}

	// Not on day 2.
	f.cfg.snap = snapshotFor("2026-09-02")
	f.setNow(time.Date(2026, time.September, 2, 0, 1, 0, 0, time.UTC))
	f.svc.tick(ctx)
	if f.mnt.monthlys != 1 {
		t.Fatalf("Monthly ran again on a non-first day")
	}
}

func TestAuditRunsAtCheckpointsOnly(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05")
	f := newFixture(t, snap, Options{AuditTimes: []string{"08:00", "14:00"}})
	f.startAt(time.Date(2026, time.September, 5, 7, 59, 0, 0, time.UTC))

	ctx := context.Background()
	f.svc.tick(ctx)
	if f.mnt.audits != 0 {
		t.Fatal("audit ran outside its check-points")
	}

	f.setNow(time.Date(2026, time.September, 5, 8, 0, 0, 0, time.UTC))
	f.svc.tick(ctx)
	f.svc.tick(ctx) // duplicate tick in the same minute
	if f.mnt.audits != 1 {
		t.Fatalf("audits = %d, want exactly 1 for the 08:00 check-point", f.mnt.audits)
	}

	f.setNow(time.Date(2026, time.September, 5, 14, 0, 0, 0, time.UTC))
	f.svc.tick(ctx)
	if f.mnt.audits != 2 {
		t.Fatalf("audits = %d, want the 14:00 run", f.mnt.audits)
	}
}

func TestSetTuningTakesEffectNextTick(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05")
	f := newFixture(t, snap, Options{AuditTimes: []string{"08:00"}})
	f.startAt(time.Date(2026, time.September, 5, 10, 30, 0, 0, time.UTC))

	ctx := context.Background()
	f.svc.tick(ctx)
	if f.mnt.audits != 0 {
		t.Fatal("audit ran before 10:30 was a check-point")
	}

	f.svc.SetTuning(time.Hour, []string{"10:30"})
	f.svc.tick(ctx)
	if f.mnt.audits != 1 {
		t.Fatalf("audits = %d, want 1 after retuning check-points", f.mnt.audits)
	}
}

func TestAuditFailureDoesNotAbortTick(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "08:00"})
	f := newFixture(t, snap, Options{AuditTimes: []string{"08:00"}})
	f.mnt.auditErr = errors.New("store down")
	f.startAt(time.Date(2026, time.September, 5, 8, 0, 0, 0, time.UTC))

	f.svc.tick(context.Background())

	if len(f.pipe.executed()) != 1 {
		t.Fatal("audit failure aborted job evaluation")
	}
	if f.ntf.alerts() == 0 {
		t.Error("audit failure was not reported")
	}
}

func TestForcePublishMarksPublished(t *testing.T) {
	t.Parallel()
	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "23:00"})
	f := newFixture(t, snap, Options{})
	f.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))

	ctx := context.Background()
	f.svc.setSnapshot(snap)
	if err := f.svc.ForcePublish(ctx, "Poker"); err != nil {
		t.Fatalf("ForcePublish: %v", err)
	}
	if got := f.svc.Published(); len(got) != 1 || got[0] != "Poker" {
		t.Fatalf("Published() = %v", got)
	}

	// The scheduled 23:00 trigger must not resend.
	f.setNow(time.Date(2026, time.September, 5, 23, 0, 0, 0, time.UTC))
	f.svc.tick(ctx)
	if len(f.pipe.executed()) != 1 {
		t.Fatal("scheduled trigger resent a force-published job")
	}
}

func TestNoPublishTargetIsIdle(t *testing.T) {
	t.Parallel()
	snap := &remotecfg.Snapshot{
		Date:     "2026-09-05",
		Schedule: []remotecfg.Entry{{Agency: "Poker", At: "09:00"}},
	}
	f := newFixture(t, snap, Options{})
	f.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))

	f.svc.tick(context.Background())
	if len(f.pipe.executed()) != 0 {
		t.Fatal("published without a configured target")
	}
}

type fakeAlertSink struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeAlertSink) SendAlert(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, text)
	return nil
}

func (f *fakeAlertSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestAlertReachesChatExactlyOnce(t *testing.T) {
	// With the log service's alert sink enabled and pointed at the same
	// chat, a scheduler alert must arrive once (via the notifier), not
	// a second time through the Warn-level log forwarding.
	sink := &fakeAlertSink{}
	svc, logger := logx.New(logx.Config{
		Level: "debug",
		Alert: logx.AlertConfig{Enabled: true, MinLevel: "warn", RatePerSec: 10},
	}, sink)
	defer svc.Close()
	svc.SetAlertTarget(-1002)

	snap := snapshotFor("2026-09-05", remotecfg.Entry{Agency: "Poker", At: "09:00"})
	f := newFixture(t, snap, Options{})
	f.svc.log = logger
	f.svc.setSnapshot(snap)
	f.startAt(time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC))

	f.svc.alert(context.Background(), "publication Poker failed")

	time.Sleep(50 * time.Millisecond) // give the async sink worker a chance
	if n := sink.count(); n != 0 {
		t.Fatalf("log sink forwarded %d copies; the notifier is the only alert path", n)
	}
	if f.ntf.alerts() != 1 {
		t.Fatalf("notifier sends = %d, want 1", f.ntf.alerts())
	}
}
