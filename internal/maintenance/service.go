package maintenance

import (
	"context"
	"time"

	"publibot/internal/drive"
	logx "publibot/pkg/logx"
)

// Options configures both sweeps. All names are matched exactly against the
// remote store, the way the operator typed them.
type Options struct {
	RootFolderID string

	// SettingsFolder is excluded from agency enumeration.
	SettingsFolder string

	// BacklogFolder is the archive holding area for past months.
	BacklogFolder string

	// MonthNames maps time.Month (1-based) to the folder names the operator
	// uses, index 0 = January.
	MonthNames []string

	// ExpectedMediaCount is the per-day media count that marks a day folder
	// as ready.
	ExpectedMediaCount int

	// CompleteColor and AttentionColor are the folder color tags applied by
	// the audit.
	CompleteColor  string
	AttentionColor string
}

// Service runs the sweeps against a store.
type Service struct {
	store drive.Store
	opt   Options
	log   logx.Logger
}

func New(store drive.Store, opt Options, log logx.Logger) *Service {
	return &Service{store: store, opt: opt, log: log}
}

// agencies lists the top-level publication folders, excluding the settings
// and backlog folders.
func (s *Service) agencies(ctx context.Context) ([]drive.Item, error) {
	children, err := s.store.ListChildren(ctx, s.opt.RootFolderID)
	if err != nil {
		return nil, err
	}
	out := children[:0]
	for _, c := range children {
		if !c.IsFolder() {
			continue
		}
		if c.Name == s.opt.SettingsFolder || c.Name == s.opt.BacklogFolder {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) monthName(m time.Month) string {
	if int(m) < 1 || int(m) > len(s.opt.MonthNames) {
		return ""
	}
	return s.opt.MonthNames[m-1]
}

// daysIn returns the number of days in the month containing t.
func daysIn(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
