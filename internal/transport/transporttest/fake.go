// Package transporttest provides an in-memory transport.Adapter for tests.
package transporttest

import (
	"context"
	"sync"

	kit "publibot/internal/transport"
)

// Sent records one outbound message.
type Sent struct {
	Kind      string // "text", "photo", "video", "album"
	ChatID    int64
	Text      string // text body or first caption
	ParseMode string
	Media     []kit.Media
}

type Fake struct {
	mu   sync.Mutex
	sent []Sent

	// FailSend makes every send fail with this error.
	FailSend error
}

func New() *Fake { return &Fake{} }

func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

func (f *Fake) record(s Sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend != nil {
		return f.FailSend
	}
	f.sent = append(f.sent, s)
	return nil
}

func (f *Fake) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *Fake) Stop(ctx context.Context) error                         { return nil }

func (f *Fake) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	var mode string
	if opt != nil {
		mode = opt.ParseMode
	}
	err := f.record(Sent{Kind: "text", ChatID: to.ChatID, Text: text, ParseMode: mode})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, err
}

func (f *Fake) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return f.record(Sent{Kind: "edit", ChatID: ref.ChatID, Text: text})
}

func (f *Fake) SendPhoto(ctx context.Context, to kit.ChatTarget, m kit.Media) (kit.MessageRef, error) {
	err := f.record(Sent{Kind: "photo", ChatID: to.ChatID, Text: m.Caption, ParseMode: m.ParseMode, Media: []kit.Media{m}})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, err
}

func (f *Fake) SendVideo(ctx context.Context, to kit.ChatTarget, m kit.Media) (kit.MessageRef, error) {
	err := f.record(Sent{Kind: "video", ChatID: to.ChatID, Text: m.Caption, ParseMode: m.ParseMode, Media: []kit.Media{m}})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, err
}

func (f *Fake) SendAlbum(ctx context.Context, to kit.ChatTarget, items []kit.Media) (kit.MessageRef, error) {
	var caption, mode string
	if len(items) > 0 {
		caption, mode = items[0].Caption, items[0].ParseMode
	}
	err := f.record(Sent{Kind: "album", ChatID: to.ChatID, Text: caption, ParseMode: mode, Media: append([]kit.Media(nil), items...)})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, err
}

var _ kit.Adapter = (*Fake)(nil)
