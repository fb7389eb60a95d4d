package transport

import "context"

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// ParseModeHTML marks a body or caption as Telegram HTML markup.
const ParseModeHTML = "HTML"

// MediaKind distinguishes the two media types the publisher handles.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Media is one local file ready to be attached to a message. Width, Height
// and Duration are optional hints for videos (zero means unknown) so the
// destination renders them without letterboxing.
type Media struct {
	Kind      MediaKind
	Path      string
	Caption   string // only the first album item carries a caption
	ParseMode string // caption markup; empty means plain text
	Width     int
	Height    int
	Duration  int // seconds
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error

	SendPhoto(ctx context.Context, to ChatTarget, m Media) (MessageRef, error)
	SendVideo(ctx context.Context, to ChatTarget, m Media) (MessageRef, error)
	// SendAlbum sends all items as one grouped message. Ordering is preserved.
	SendAlbum(ctx context.Context, to ChatTarget, items []Media) (MessageRef, error)
}
