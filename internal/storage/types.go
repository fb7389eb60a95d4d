package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the run-history store.
//
// Driver values:
//   - "file": dependency-free jsonl backend
//   - "sqlite": SQLite database file (behind the sqlite build tag)
//
// If Driver is empty or "none", run history is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord is one pipeline execution outcome. Keep it compact and
// schema-stable.
type RunRecord struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Agency string    `json:"agency"`
	ChatID int64     `json:"chat_id"`
	Test   bool      `json:"test,omitempty"`
	Forced bool      `json:"forced,omitempty"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
}
