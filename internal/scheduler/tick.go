package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"publibot/internal/publish"
	"publibot/internal/remotecfg"
	"publibot/internal/storage"
	logx "publibot/pkg/logx"
)

// tick is one pass of the state machine. Ticks never overlap: if the
// previous one is still running (a slow publication), this one is skipped
// and the next minute picks up the work.
func (s *Service) tick(ctx context.Context) {
	s.mu.Lock()
	if s.inTick {
		s.mu.Unlock()
		s.log.Warn("tick still running; skipping this minute")
		return
	}
	s.inTick = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inTick = false
		s.mu.Unlock()
	}()

	now := s.now()
	today := now.Format(dateLayout)
	hhmm := now.Format(hhmmLayout)

	s.rollover(ctx, now, today)

	// Keep the snapshot fresh; same-day loads are served from memory.
	if snap, err := s.cfg.Load(ctx, false); err == nil {
		s.setSnapshot(snap)
	}

	s.maybeAudit(ctx, now, today, hhmm)

	snap := s.snapshot()
	if snap.Empty() {
		s.log.Debug("no usable configuration; tick idle")
		return
	}

	for _, entry := range snap.Schedule {
		s.evaluate(ctx, now, hhmm, snap.Directives, entry.Agency, entry.At)
	}
}

// rollover handles the date change: reset the published log, force a config
// reload, and on day 1 run the monthly maintenance before any job of the new
// day is evaluated.
func (s *Service) rollover(ctx context.Context, now time.Time, today string) {
	s.mu.Lock()
	changed := s.today != today
	if changed {
		s.today = today
	}
	s.mu.Unlock()
	if !changed {
		return
	}

	s.log.Info("date rollover", logx.String("date", today))
	s.mu.Lock()
	s.plog.resetFor(today)
	s.mu.Unlock()

	snap, err := s.cfg.Load(ctx, true)
	if err != nil {
		s.alert(ctx, fmt.Sprintf("config reload failed at rollover: %v", err))
	}
	s.setSnapshot(snap)

	if now.Day() == 1 {
		res, err := s.maint.Monthly(ctx, now)
		if err != nil {
			s.alert(ctx, fmt.Sprintf("monthly rollover failed: %v", err))
		} else {
			s.alert(ctx, res.Report())
		}
	}
}

// maybeAudit runs the visual audit when the clock hits a check-point. A
// failed audit never aborts the tick.
func (s *Service) maybeAudit(ctx context.Context, now time.Time, today, hhmm string) {
	_, auditTimes := s.tuning()
	hit := false
	for _, at := range auditTimes {
		if at == hhmm {
			hit = true
			break
		}
	}
	if !hit {
		return
	}

	key := today + " " + hhmm
	s.mu.Lock()
	if s.lastAudit == key {
		s.mu.Unlock()
		return
	}
	s.lastAudit = key
	s.mu.Unlock()

	res, err := s.maint.Audit(ctx, now)
	if err != nil {
		s.alert(ctx, fmt.Sprintf("visual audit failed: %v", err))
		return
	}
	if len(res.Errors) > 0 || res.Recolored > 0 {
		s.alert(ctx, res.Report())
	}
}

// evaluate applies the two trigger rules to one schedule entry.
func (s *Service) evaluate(ctx context.Context, now time.Time, hhmm string, d remotecfg.Directives, agency, at string) {
	// Test window: the entry fires against the test target exactly at
	// trigger-minus-lead, without consuming the daily idempotency guard,
	// so the operator can eyeball the content before the real send.
	lead, _ := s.tuning()
	if d.Test != 0 && at == now.Add(lead).Format(hhmmLayout) {
		job := publish.Job{Agency: agency, Date: now.Add(lead), ChatID: d.Test, Test: true}
		if err := s.run(ctx, job, false); err != nil {
			s.alert(ctx, fmt.Sprintf("test publish %s failed: %v", agency, err))
		}
	}

	if d.Publish == 0 || at > hhmm {
		return
	}
	s.mu.Lock()
	done := s.plog.has(agency)
	s.mu.Unlock()
	if done {
		return
	}

	// "<=" rather than "==": a missed minute must not skip the day's
	// publication. The published log prevents duplicates.
	job := publish.Job{Agency: agency, Date: now, ChatID: d.Publish}
	if err := s.run(ctx, job, false); err != nil {
		// Leave the idempotency state untouched: the entry stays due
		// for the rest of the day, so every later tick retries it.
		s.alert(ctx, fmt.Sprintf("publish %s failed: %v", agency, err))
		return
	}
	s.mu.Lock()
	s.plog.mark(agency)
	s.mu.Unlock()
	s.log.Info("published", logx.String("agency", agency), logx.String("at", at))
}

// run executes one job through the pipeline and records the outcome in the
// run-history store.
func (s *Service) run(ctx context.Context, job publish.Job, forced bool) error {
	started := s.now()
	err := s.pipeline.Execute(ctx, job)

	if s.runs != nil {
		rec := storage.RunRecord{
			ID:     uuid.NewString(),
			At:     started,
			Agency: job.Agency,
			ChatID: job.ChatID,
			Test:   job.Test,
			Forced: forced,
			OK:     err == nil,
			TookMS: s.now().Sub(started).Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if aerr := s.runs.AppendRun(ctx, rec); aerr != nil {
			s.log.Warn("run history append failed", logx.Err(aerr))
		}
	}
	return err
}
