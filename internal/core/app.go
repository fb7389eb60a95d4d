// Package core wires the bot together: local config, logging, the Telegram
// adapter, the Drive store, the remote-config loader, the publication
// pipeline, maintenance and the scheduler. It owns startup and shutdown
// order; no business logic lives here.
package core

import (
	"context"
	"fmt"
	"time"

	"publibot/internal/config"
	"publibot/internal/drive"
	"publibot/internal/maintenance"
	"publibot/internal/publish"
	"publibot/internal/remotecfg"
	"publibot/internal/runtime/supervisor"
	"publibot/internal/scheduler"
	"publibot/internal/storage"
	kit "publibot/internal/transport"
	tgadapter "publibot/internal/transport/telegram/adapter"
	logx "publibot/pkg/logx"
)

type App struct {
	cfgMgr  *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	adapter *tgadapter.Adapter
	store   drive.Store
	loader  *remotecfg.Loader
	sched   *scheduler.Service
	runs    storage.Store
	rootID  string

	sup     *supervisor.Supervisor
	updates chan kit.Update
	started time.Time
}

// NewApp builds the full dependency graph from the local config file.
// Nothing talks to the network yet except the Drive client handshake.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	pollTimeout, err := config.DurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}

	// The adapter doubles as the alert sink for logx, so it is built first
	// with a plain console logger and the structured service after it.
	adapter, err := tgadapter.New(tgadapter.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, logx.NewConsole(cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg), adapter)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	loc := time.Local
	if tz := cfg.Publisher.Timezone; tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("publisher.timezone: %w", err)
		}
	}

	retryBase, err := config.DurationOrDefault("drive.retry_base", cfg.Drive.RetryBase, 0)
	if err != nil {
		return nil, err
	}
	retryMaxDelay, err := config.DurationOrDefault("drive.retry_max_delay", cfg.Drive.RetryMaxDelay, 0)
	if err != nil {
		return nil, err
	}
	store, err := drive.NewGoogle(ctx, cfg.Drive.CredentialsFile, drive.RetryPolicy{
		Max:      cfg.Drive.RetryMax,
		Base:     retryBase,
		MaxDelay: retryMaxDelay,
	}, log.With(logx.String("comp", "drive")))
	if err != nil {
		return nil, fmt.Errorf("drive: %w", err)
	}

	loader := remotecfg.NewLoader(store, remotecfg.Options{
		RootFolderID:   cfg.Drive.RootFolderID,
		SettingsFolder: cfg.Drive.SettingsFolder,
		ScheduleDoc:    cfg.Drive.ScheduleDoc,
		DirectivesDoc:  cfg.Drive.DirectivesDoc,
		EmojisDoc:      cfg.Drive.EmojisDoc,
		CacheDir:       cfg.Publisher.DataDir,
		Location:       loc,
	}, log.With(logx.String("comp", "remotecfg")))

	pipeline := publish.New(store, adapter, publish.Options{
		RootFolderID: cfg.Drive.RootFolderID,
		DownloadsDir: cfg.Publisher.DownloadsDir,
		MonthNames:   cfg.Publisher.MonthNames,
		// The alias map follows whatever snapshot is current at send time.
		RewriteCaption: func(text string) (string, bool) {
			if snap := loader.Current(); snap != nil {
				return snap.Emojis.Rewrite(text)
			}
			return text, false
		},
	}, log.With(logx.String("comp", "publish")))

	maint := maintenance.New(store, maintenance.Options{
		RootFolderID:       cfg.Drive.RootFolderID,
		SettingsFolder:     cfg.Drive.SettingsFolder,
		BacklogFolder:      cfg.Publisher.BacklogFolder,
		MonthNames:         cfg.Publisher.MonthNames,
		ExpectedMediaCount: cfg.Publisher.ExpectedMediaCount,
		CompleteColor:      cfg.Publisher.CompleteColor,
		AttentionColor:     cfg.Publisher.AttentionColor,
	}, log.With(logx.String("comp", "maintenance")))

	runs, err := openStorage(cfg, log)
	if err != nil {
		return nil, err
	}

	testLead, err := config.DurationOrDefault("publisher.test_lead", cfg.Publisher.TestLead, time.Hour)
	if err != nil {
		return nil, err
	}

	// Every config load routes through alertTarget so the alert sink
	// follows the Aviso chat the directives document names.
	src := &alertTarget{loader: loader, svc: logSvc}
	sched := scheduler.New(src, pipeline, maint, adapter, runs, scheduler.Options{
		Location:   loc,
		DataDir:    cfg.Publisher.DataDir,
		TestLead:   testLead,
		AuditTimes: cfg.Publisher.AuditTimes,
	}, log.With(logx.String("comp", "scheduler")))

	return &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log.With(logx.String("comp", "core")),
		adapter: adapter,
		store:   store,
		loader:  loader,
		sched:   sched,
		runs:    runs,
		rootID:  cfg.Drive.RootFolderID,
	}, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Alert.Enabled,
			MinLevel:   cfg.Logging.Alert.MinLevel,
			RatePerSec: cfg.Logging.Alert.RatePerSec,
		},
	}
}

func openStorage(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := config.DurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return st, nil
}

// alertTarget decorates the remote-config loader: after every successful
// load it points the log alert sink at the directives' alert chat.
type alertTarget struct {
	loader *remotecfg.Loader
	svc    *logx.Service
}

func (a *alertTarget) Load(ctx context.Context, force bool) (*remotecfg.Snapshot, error) {
	snap, err := a.loader.Load(ctx, force)
	if err == nil && snap != nil {
		a.svc.SetAlertTarget(snap.Directives.Alert)
	}
	return snap, err
}

// Start brings the bot up: Telegram long-poll, the command loop, the local
// config watcher and the scheduler tick.
func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	a.updates = make(chan kit.Update, 64)
	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("telegram start: %w", err)
	}

	a.sup.Go0("commands", a.commandLoop)
	a.sup.Go("config-watch", a.cfgMgr.Watch)
	a.sup.Go0("config-apply", a.applyLoop)

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}
	a.log.Info("bot started")
	return nil
}

// applyLoop pushes local config edits into the running services. Credentials
// and folder ids need a restart; log levels and scheduler tuning do not.
func (a *App) applyLoop(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logSvc.Apply(logConfig(cfg))
			if lead, err := config.DurationOrDefault("publisher.test_lead",
				cfg.Publisher.TestLead, time.Hour); err == nil {
				a.sched.SetTuning(lead, cfg.Publisher.AuditTimes)
			}
			a.log.Info("runtime config reapplied")
		}
	}
}

// Stop tears the bot down in dependency order: no new ticks, finish the
// in-flight one, then close the transports and sinks.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error
	if err := a.sched.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.adapter.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	a.sup.Cancel()
	if err := a.sup.Wait(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.logSvc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
