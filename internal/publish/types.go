// Package publish resolves an agency + date into concrete content on the
// remote store and transfers it to a chat: the publication pipeline.
package publish

import (
	"fmt"
	"time"

	"publibot/internal/drive"
)

// Job is one publication request. Ephemeral: created by the scheduler (or a
// forced command), consumed once, never persisted.
type Job struct {
	Agency string
	Date   time.Time
	ChatID int64
	Test   bool
}

// FailKind classifies pipeline failures so the scheduler can report and
// decide retry eligibility without string matching.
type FailKind int

const (
	// FailNotFound: the agency folder does not exist under the root.
	FailNotFound FailKind = iota
	// FailMissingDatePath: the month or day segment is missing or misnamed.
	FailMissingDatePath
	// FailEmptyContent: the day folder has neither caption nor media.
	FailEmptyContent
	// FailTransfer: a store or transport error during download/send. The
	// whole job aborts; no partial album resend.
	FailTransfer
)

func (k FailKind) String() string {
	switch k {
	case FailNotFound:
		return "not_found"
	case FailMissingDatePath:
		return "missing_date_path"
	case FailEmptyContent:
		return "empty_content"
	default:
		return "transfer"
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Kind   FailKind
	Agency string
	Detail string // e.g. the missing path segment
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("publish %s: %s (%s)", e.Agency, e.Kind, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("publish %s: %s: %v", e.Agency, e.Kind, e.Err)
	}
	return fmt.Sprintf("publish %s: %s", e.Agency, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// bundle is the resolved content of a job: optional caption plus the day's
// media in deterministic (name) order. Built fresh per execution; remote
// content may change between runs, so it is never cached.
type bundle struct {
	caption string
	media   []drive.Item
}

func (b *bundle) empty() bool { return b.caption == "" && len(b.media) == 0 }
