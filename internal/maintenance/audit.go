package maintenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "publibot/pkg/logx"
)

// AuditResult summarizes one visual-audit sweep.
type AuditResult struct {
	Checked   int // day folders inspected
	Recolored int // remote recolor calls issued
	Errors    []string
}

// Report renders the result as a short human-readable block for the
// alert/command channel.
func (r AuditResult) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "audit: %d day folders checked, %d recolored", r.Checked, r.Recolored)
	for _, e := range r.Errors {
		b.WriteString("\n  ! ")
		b.WriteString(e)
	}
	return b.String()
}

// Audit walks every agency's current-month and next-month day folders, counts
// media children, and colors each day folder complete or attention depending
// on whether the count matches the expected media count. Folders already
// carrying the right color are left alone, so a second run over unchanged
// content issues no remote updates. Per-folder errors are collected and the
// sweep continues.
func (s *Service) Audit(ctx context.Context, now time.Time) (AuditResult, error) {
	var res AuditResult

	agencies, err := s.agencies(ctx)
	if err != nil {
		return res, fmt.Errorf("audit: list agencies: %w", err)
	}

	months := []time.Time{now, now.AddDate(0, 1, 0)}
	for _, ag := range agencies {
		for _, m := range months {
			s.auditMonth(ctx, ag.Name, ag.ID, m.Month(), &res)
		}
	}

	s.log.Info("audit sweep done",
		logx.Int("checked", res.Checked),
		logx.Int("recolored", res.Recolored),
		logx.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (s *Service) auditMonth(ctx context.Context, agency, agencyID string, m time.Month, res *AuditResult) {
	name := s.monthName(m)
	if name == "" {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: no folder name for month %d", agency, m))
		return
	}

	monthID, err := s.store.FindByName(ctx, agencyID, name, true)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", agency, name, err))
		return
	}
	if monthID == "" {
		// The month simply is not provisioned yet; nothing to audit.
		s.log.Debug("audit: month folder absent", logx.String("agency", agency), logx.String("month", name))
		return
	}

	days, err := s.store.ListChildren(ctx, monthID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", agency, name, err))
		return
	}

	for _, day := range days {
		if !day.IsFolder() {
			continue
		}
		res.Checked++

		children, err := s.store.ListChildren(ctx, day.ID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s/%s/%s: %v", agency, name, day.Name, err))
			continue
		}
		media := 0
		for _, c := range children {
			if c.IsMedia() {
				media++
			}
		}

		want := s.opt.AttentionColor
		if media == s.opt.ExpectedMediaCount {
			want = s.opt.CompleteColor
		}
		if day.Color == want {
			continue
		}
		if err := s.store.Recolor(ctx, day.ID, want); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s/%s/%s: recolor: %v", agency, name, day.Name, err))
			continue
		}
		res.Recolored++
	}
}
