package maintenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "publibot/pkg/logx"
)

// MonthlyResult summarizes one rollover sweep.
type MonthlyResult struct {
	Emptied  int // backlog children trashed
	Archived int // previous-month folders moved into backlog
	Created  int // day folders pre-created for next month
	Errors   []string
}

func (r MonthlyResult) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rollover: backlog emptied (%d), %d months archived, %d day folders created",
		r.Emptied, r.Archived, r.Created)
	for _, e := range r.Errors {
		b.WriteString("\n  ! ")
		b.WriteString(e)
	}
	return b.String()
}

// Monthly runs the first-of-month rollover: empty the backlog, move each
// agency's previous-month folder into it, and pre-create next month's day
// skeleton (01..days-in-month) under every agency. Errors are isolated per
// agency so one broken folder never stops the others.
func (s *Service) Monthly(ctx context.Context, now time.Time) (MonthlyResult, error) {
	var res MonthlyResult

	backlogID, err := s.ensureBacklog(ctx)
	if err != nil {
		return res, fmt.Errorf("rollover: backlog: %w", err)
	}
	s.emptyBacklog(ctx, backlogID, &res)

	agencies, err := s.agencies(ctx)
	if err != nil {
		return res, fmt.Errorf("rollover: list agencies: %w", err)
	}

	prev := now.AddDate(0, -1, 0)
	next := now.AddDate(0, 1, 0)
	for _, ag := range agencies {
		if err := s.rolloverAgency(ctx, ag.Name, ag.ID, backlogID, prev, next, &res); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", ag.Name, err))
		}
	}

	s.log.Info("rollover sweep done",
		logx.Int("archived", res.Archived),
		logx.Int("created", res.Created),
		logx.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (s *Service) ensureBacklog(ctx context.Context) (string, error) {
	id, err := s.store.FindByName(ctx, s.opt.RootFolderID, s.opt.BacklogFolder, true)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return s.store.CreateFolder(ctx, s.opt.BacklogFolder, s.opt.RootFolderID)
}

func (s *Service) emptyBacklog(ctx context.Context, backlogID string, res *MonthlyResult) {
	children, err := s.store.ListChildren(ctx, backlogID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: list: %v", s.opt.BacklogFolder, err))
		return
	}
	for _, c := range children {
		if err := s.store.Trash(ctx, c.ID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: trash: %v", s.opt.BacklogFolder, c.Name, err))
			continue
		}
		res.Emptied++
	}
}

func (s *Service) rolloverAgency(ctx context.Context, agency, agencyID, backlogID string, prev, next time.Time, res *MonthlyResult) error {
	prevName := s.monthName(prev.Month())
	if prevName != "" {
		prevID, err := s.store.FindByName(ctx, agencyID, prevName, true)
		if err != nil {
			return fmt.Errorf("find %s: %w", prevName, err)
		}
		if prevID != "" {
			if err := s.store.MoveFolder(ctx, prevID, agencyID, backlogID); err != nil {
				return fmt.Errorf("archive %s: %w", prevName, err)
			}
			res.Archived++
		}
	}

	nextName := s.monthName(next.Month())
	if nextName == "" {
		return fmt.Errorf("no folder name for month %d", next.Month())
	}
	monthID, err := s.store.FindByName(ctx, agencyID, nextName, true)
	if err != nil {
		return fmt.Errorf("find %s: %w", nextName, err)
	}
	if monthID == "" {
		monthID, err = s.store.CreateFolder(ctx, nextName, agencyID)
		if err != nil {
			return fmt.Errorf("create %s: %w", nextName, err)
		}
	}

	existing := map[string]bool{}
	children, err := s.store.ListChildren(ctx, monthID)
	if err != nil {
		return fmt.Errorf("list %s: %w", nextName, err)
	}
	for _, c := range children {
		if c.IsFolder() {
			existing[c.Name] = true
		}
	}

	for d := 1; d <= daysIn(next); d++ {
		name := fmt.Sprintf("%02d", d)
		if existing[name] {
			continue
		}
		if _, err := s.store.CreateFolder(ctx, name, monthID); err != nil {
			return fmt.Errorf("create %s/%s: %w", nextName, name, err)
		}
		res.Created++
	}

	s.log.Debug("agency rolled over", logx.String("agency", agency), logx.String("next", nextName))
	return nil
}
