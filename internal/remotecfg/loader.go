package remotecfg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"publibot/internal/drive"
	"publibot/internal/storage"
	logx "publibot/pkg/logx"
)

const dateLayout = "2006-01-02"

// Options name the remote documents and the local cache location.
type Options struct {
	RootFolderID   string
	SettingsFolder string // e.g. "Settings"
	ScheduleDoc    string // e.g. "horarios"
	DirectivesDoc  string // e.g. "destinos"
	EmojisDoc      string // e.g. "mis_emojis"
	CacheDir       string
	Location       *time.Location
}

// Loader fetches and caches the remote configuration. A snapshot is trusted
// for the calendar date it was loaded on; day rollover or an explicit force
// triggers a refetch. Remote failures are soft: the previous snapshot stays
// in effect.
type Loader struct {
	store drive.Store
	log   logx.Logger
	opt   Options

	now func() time.Time // injectable for tests

	mu   sync.Mutex
	snap *Snapshot
}

func NewLoader(store drive.Store, opt Options, log logx.Logger) *Loader {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.Location == nil {
		opt.Location = time.Local
	}
	l := &Loader{
		store: store,
		log:   log,
		opt:   opt,
		now:   func() time.Time { return time.Now().In(opt.Location) },
	}
	l.restoreCache()
	return l
}

// Current returns the last good snapshot (possibly nil before first load).
func (l *Loader) Current() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

func (l *Loader) cachePath() string {
	return filepath.Join(l.opt.CacheDir, "config_cache.json")
}

// restoreCache adopts the on-disk snapshot only when its date is today;
// anything older is stale and ignored.
func (l *Loader) restoreCache() {
	var doc cacheDoc
	if err := storage.LoadState(l.cachePath(), &doc); err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			l.log.Warn("config cache unreadable; ignoring", logx.Err(err))
		}
		return
	}
	if doc.Date != l.now().Format(dateLayout) {
		l.log.Debug("config cache stale; ignoring", logx.String("cache_date", doc.Date))
		return
	}
	l.snap = fromCache(doc)
	l.log.Info("config restored from same-day cache",
		logx.Int("entries", len(l.snap.Schedule)))
}

// Load returns a snapshot for today. Without force, a same-day snapshot is
// served from memory. On remote failure the previous snapshot is returned
// together with the error; the system keeps running on it.
func (l *Loader) Load(ctx context.Context, force bool) (*Snapshot, error) {
	today := l.now().Format(dateLayout)

	l.mu.Lock()
	prev := l.snap
	l.mu.Unlock()

	if !force && prev != nil && prev.Date == today {
		return prev, nil
	}

	snap, err := l.fetch(ctx, today)
	if err != nil {
		l.log.Warn("remote config load failed; keeping previous snapshot", logx.Err(err))
		return prev, err
	}

	l.mu.Lock()
	l.snap = snap
	l.mu.Unlock()

	// Cache failure degrades durability, not functionality.
	if err := storage.SaveState(l.cachePath(), snap.toCache()); err != nil {
		l.log.Warn("config cache write failed", logx.Err(err))
	}

	l.log.Info("remote config loaded",
		logx.Int("entries", len(snap.Schedule)),
		logx.Int("admins", len(snap.Directives.Admins)))
	return snap, nil
}

func (l *Loader) fetch(ctx context.Context, today string) (*Snapshot, error) {
	settingsID, err := l.store.FindByName(ctx, l.opt.RootFolderID, l.opt.SettingsFolder, true)
	if err != nil {
		return nil, err
	}
	if settingsID == "" {
		return nil, fmt.Errorf("settings folder %q not found", l.opt.SettingsFolder)
	}

	schedule, err := l.readDoc(ctx, settingsID, l.opt.ScheduleDoc)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Date: today, Schedule: ParseSchedule(schedule)}

	// The directives document is optional: without it the bot can still
	// evaluate schedules (it just has nowhere to publish).
	directives, err := l.readDoc(ctx, settingsID, l.opt.DirectivesDoc)
	if err != nil {
		l.log.Warn("directives document unavailable", logx.Err(err))
	} else {
		snap.Directives = ParseDirectives(directives)
	}

	// So is the emoji document: without it captions go out verbatim.
	emojis, err := l.readDoc(ctx, settingsID, l.opt.EmojisDoc)
	if err != nil {
		l.log.Debug("emoji document unavailable", logx.Err(err))
	} else {
		snap.Emojis = ParseEmojis(emojis)
	}

	return snap, nil
}

func (l *Loader) readDoc(ctx context.Context, parentID, name string) (string, error) {
	id, err := l.store.FindByName(ctx, parentID, name, false)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("document %q not found", name)
	}
	return l.store.ReadText(ctx, id)
}
