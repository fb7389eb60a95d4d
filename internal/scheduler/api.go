package scheduler

import (
	"context"
	"fmt"

	"publibot/internal/publish"
	"publibot/internal/remotecfg"
	"publibot/internal/storage"
)

// The methods in this file are the surface exposed to the chat command
// layer. They are safe to call concurrently with the tick.

// ForceReload refetches the remote configuration regardless of cache age.
func (s *Service) ForceReload(ctx context.Context) (*remotecfg.Snapshot, error) {
	snap, err := s.cfg.Load(ctx, true)
	if err != nil {
		return nil, err
	}
	s.setSnapshot(snap)
	return snap, nil
}

// ForcePublish runs one agency through the pipeline right now, against the
// regular publish target, and marks it published on success so the day's
// scheduled trigger does not send it again.
func (s *Service) ForcePublish(ctx context.Context, agency string) error {
	snap := s.snapshot()
	if snap == nil || snap.Directives.Publish == 0 {
		return fmt.Errorf("no publish target configured")
	}
	job := publish.Job{Agency: agency, Date: s.now(), ChatID: snap.Directives.Publish}
	if err := s.run(ctx, job, true); err != nil {
		return err
	}
	s.mu.Lock()
	s.plog.mark(agency)
	s.mu.Unlock()
	return nil
}

// Schedule returns the working schedule (nil before the first load).
func (s *Service) Schedule() []remotecfg.Entry {
	snap := s.snapshot()
	if snap == nil {
		return nil
	}
	return snap.Schedule
}

// AdminIDs returns the chat ids allowed to issue commands.
func (s *Service) AdminIDs() []int64 {
	snap := s.snapshot()
	if snap == nil {
		return nil
	}
	return snap.Directives.Admins
}

// Published returns the agencies already sent today, sorted.
func (s *Service) Published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plog.names()
}

// RecentRuns returns the latest run-history records, newest first. Empty
// when run history is disabled.
func (s *Service) RecentRuns(ctx context.Context, n int) ([]storage.RunRecord, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.RecentRuns(ctx, n)
}

// RunAudit triggers the visual audit outside its check-points.
func (s *Service) RunAudit(ctx context.Context) (string, error) {
	res, err := s.maint.Audit(ctx, s.now())
	if err != nil {
		return "", err
	}
	return res.Report(), nil
}
