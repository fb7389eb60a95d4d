// Package remotecfg loads the operator-maintained configuration documents
// from the remote store: the schedule ("horarios"), the directives
// ("destinos") and the emoji aliases ("mis_emojis"). All are hand-edited by
// non-engineers, so parsing is deliberately lenient: malformed lines are
// skipped, never fatal.
package remotecfg

import "sort"

// Entry is one schedule line: publish agency Agency at At (HH:MM) daily.
type Entry struct {
	Agency string
	At     string // normalized 5-char "HH:MM"
}

// Directives are the chat targets and admin list parsed from the bracketed
// blocks of the directives document. Zero means "not configured".
type Directives struct {
	Admins  []int64
	Publish int64 // Publicar / Emisor block
	Alert   int64 // Aviso / Alerta block
	Test    int64 // Pub_Test block
}

// Snapshot is an immutable view of the remote configuration for one
// calendar date. The scheduler and pipeline only ever read it.
type Snapshot struct {
	Date       string // "2006-01-02"
	Schedule   []Entry
	Directives Directives
	Emojis     EmojiMap
}

// Empty reports whether the snapshot carries no usable configuration.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.Schedule) == 0 && s.Directives.Publish == 0)
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].At != es[j].At {
			return es[i].At < es[j].At
		}
		return es[i].Agency < es[j].Agency
	})
}

// cacheDoc is the on-disk shape of the same-day config cache.
type cacheDoc struct {
	Date        string            `json:"date"`
	Schedule    map[string]string `json:"schedule"`
	Admins      []int64           `json:"admins"`
	Emisor      int64             `json:"emisor"`
	Alert       int64             `json:"alert"`
	PublishTest int64             `json:"publish_test"`
	Emojis      map[string]string `json:"emojis,omitempty"`
}

func (s *Snapshot) toCache() cacheDoc {
	m := make(map[string]string, len(s.Schedule))
	for _, e := range s.Schedule {
		m[e.Agency] = e.At
	}
	return cacheDoc{
		Date:        s.Date,
		Schedule:    m,
		Admins:      s.Directives.Admins,
		Emisor:      s.Directives.Publish,
		Alert:       s.Directives.Alert,
		PublishTest: s.Directives.Test,
		Emojis:      s.Emojis,
	}
}

func fromCache(d cacheDoc) *Snapshot {
	snap := &Snapshot{
		Date: d.Date,
		Directives: Directives{
			Admins:  d.Admins,
			Publish: d.Emisor,
			Alert:   d.Alert,
			Test:    d.PublishTest,
		},
		Emojis: EmojiMap(d.Emojis),
	}
	for agency, at := range d.Schedule {
		snap.Schedule = append(snap.Schedule, Entry{Agency: agency, At: at})
	}
	sortEntries(snap.Schedule)
	return snap
}
