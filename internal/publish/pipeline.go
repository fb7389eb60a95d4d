package publish

import (
	"context"
	"os"
	"time"

	"publibot/internal/drive"
	kit "publibot/internal/transport"
	logx "publibot/pkg/logx"
)

// Options configure the pipeline.
type Options struct {
	RootFolderID string
	DownloadsDir string
	// MonthNames are the folder names for months 1..12.
	MonthNames []string
	// RewriteCaption substitutes emoji aliases before send. The bool
	// reports whether anything changed; a changed caption goes out in
	// HTML parse mode. Nil means captions are sent verbatim.
	RewriteCaption func(string) (string, bool)
}

type Pipeline struct {
	store   drive.Store
	gateway kit.Adapter
	log     logx.Logger
	opt     Options
}

func New(store drive.Store, gateway kit.Adapter, opt Options, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{store: store, gateway: gateway, log: log, opt: opt}
}

// Execute resolves and transfers one job. Every failure comes back as a
// classified *Error; the caller owns alerting and retry eligibility.
func (p *Pipeline) Execute(ctx context.Context, job Job) error {
	start := time.Now()
	log := p.log.With(
		logx.String("agency", job.Agency),
		logx.Int64("chat", job.ChatID),
		logx.Bool("test", job.Test))
	log.Info("publication started")

	b, err := p.resolve(ctx, job)
	if err != nil {
		return err
	}

	if err := p.transfer(ctx, job, b); err != nil {
		return err
	}

	log.Info("publication sent",
		logx.Int("media", len(b.media)),
		logx.Duration("took", time.Since(start)))
	return nil
}

func (p *Pipeline) transfer(ctx context.Context, job Job, b *bundle) error {
	to := kit.ChatTarget{ChatID: job.ChatID}

	caption, parseMode := b.caption, ""
	if p.opt.RewriteCaption != nil && caption != "" {
		if out, changed := p.opt.RewriteCaption(caption); changed {
			caption, parseMode = out, kit.ParseModeHTML
		}
	}

	// Caption-only: a plain text message.
	if len(b.media) == 0 {
		var sendOpt *kit.SendOptions
		if parseMode != "" {
			sendOpt = &kit.SendOptions{ParseMode: parseMode}
		}
		if _, err := p.gateway.SendText(ctx, to, caption, sendOpt); err != nil {
			return &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
		}
		return nil
	}

	// Downloads live in a per-run scoped directory so cleanup is one sweep,
	// guaranteed on every exit path including partial download failures.
	tmpDir, err := os.MkdirTemp(p.opt.DownloadsDir, job.Agency+"-*")
	if err != nil {
		return &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			p.log.Warn("temp cleanup failed", logx.String("dir", tmpDir), logx.Err(rmErr))
		}
	}()

	items := make([]kit.Media, 0, len(b.media))
	for i, src := range b.media {
		local, err := p.store.Download(ctx, src.ID, tmpDir, src.Name)
		if err != nil {
			return &Error{Kind: FailTransfer, Agency: job.Agency, Err: err}
		}
		m := kit.Media{Kind: kit.MediaPhoto, Path: local}
		if src.IsVideo() {
			m.Kind = kit.MediaVideo
			// Metadata comes from this item's own downloaded file.
			if meta, ok := probeVideo(local); ok {
				m.Width, m.Height, m.Duration = meta.width, meta.height, meta.duration
			}
		}
		// Only the first item carries the caption, for singles and albums alike.
		if i == 0 {
			m.Caption = caption
			m.ParseMode = parseMode
		}
		items = append(items, m)
	}

	var sendErr error
	switch {
	case len(items) == 1 && items[0].Kind == kit.MediaVideo:
		_, sendErr = p.gateway.SendVideo(ctx, to, items[0])
	case len(items) == 1:
		_, sendErr = p.gateway.SendPhoto(ctx, to, items[0])
	default:
		_, sendErr = p.gateway.SendAlbum(ctx, to, items)
	}
	if sendErr != nil {
		return &Error{Kind: FailTransfer, Agency: job.Agency, Err: sendErr}
	}
	return nil
}
