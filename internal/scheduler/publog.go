package scheduler

import (
	"errors"
	"sort"

	"publibot/internal/storage"
	logx "publibot/pkg/logx"
)

// publogDoc is the on-disk shape of the daily published-job log.
type publogDoc struct {
	Date      string   `json:"date"`
	Published []string `json:"published"`
}

// publishedLog is the daily idempotency guard: the set of agencies already
// published on Date. It is persisted after every mutation so a mid-day
// restart cannot re-fire a completed job. A write failure degrades
// durability only; the in-memory set stays authoritative for the process.
type publishedLog struct {
	path string
	log  logx.Logger

	date string
	done map[string]bool
}

func newPublishedLog(path string, log logx.Logger) *publishedLog {
	return &publishedLog{path: path, log: log, done: map[string]bool{}}
}

// restore adopts the on-disk log only when its date matches today.
func (p *publishedLog) restore(today string) {
	var doc publogDoc
	if err := storage.LoadState(p.path, &doc); err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			p.log.Warn("published log unreadable; starting empty", logx.Err(err))
		}
		p.date = today
		return
	}
	p.date = today
	if doc.Date != today {
		p.log.Debug("published log stale; discarding", logx.String("log_date", doc.Date))
		return
	}
	for _, name := range doc.Published {
		p.done[name] = true
	}
	if len(p.done) > 0 {
		p.log.Info("published log restored", logx.Int("jobs", len(p.done)))
	}
}

// resetFor clears the set at date rollover and persists the empty record.
func (p *publishedLog) resetFor(date string) {
	if len(p.done) > 0 {
		p.log.Debug("dropping stale published entries", logx.Int("count", len(p.done)))
	}
	p.date = date
	p.done = map[string]bool{}
	p.persist()
}

func (p *publishedLog) has(agency string) bool { return p.done[agency] }

// mark records a completed publication and persists immediately.
func (p *publishedLog) mark(agency string) {
	p.done[agency] = true
	p.persist()
}

func (p *publishedLog) names() []string {
	out := make([]string, 0, len(p.done))
	for name := range p.done {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p *publishedLog) persist() {
	doc := publogDoc{Date: p.date, Published: p.names()}
	if err := storage.SaveState(p.path, doc); err != nil {
		p.log.Warn("published log write failed; continuing in memory", logx.Err(err))
	}
}
