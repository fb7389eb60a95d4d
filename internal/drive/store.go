// Package drive is the remote content store boundary: the hierarchical
// folder/file layout the operator maintains by hand, queried by exact name.
package drive

import (
	"context"
	"strings"
)

const (
	MimeFolder = "application/vnd.google-apps.folder"
	MimeGDoc   = "application/vnd.google-apps.document"
)

// Item is one child of a folder listing.
type Item struct {
	ID       string
	Name     string
	MimeType string
	Color    string // folder color tag, empty for files or default-colored folders
}

func (it Item) IsFolder() bool { return it.MimeType == MimeFolder }
func (it Item) IsImage() bool  { return strings.HasPrefix(it.MimeType, "image/") }
func (it Item) IsVideo() bool  { return strings.HasPrefix(it.MimeType, "video/") }
func (it Item) IsMedia() bool  { return it.IsImage() || it.IsVideo() }

// IsTextual reports whether the item can serve as a caption document:
// plain text or a Google Doc (exported as plain text on read).
func (it Item) IsTextual() bool {
	return strings.HasPrefix(it.MimeType, "text/") || it.MimeType == MimeGDoc
}

// Store is everything the publisher needs from the remote file store.
// Name matches are exact and case-sensitive; trashed items are excluded.
type Store interface {
	// FindByName returns the id of the named child of parentID, or "" when
	// no such child exists. onlyFolder restricts the match to folders.
	FindByName(ctx context.Context, parentID, name string, onlyFolder bool) (string, error)

	ListChildren(ctx context.Context, folderID string) ([]Item, error)

	// ReadText returns the UTF-8 content of a text file or exported Google Doc.
	ReadText(ctx context.Context, fileID string) (string, error)

	// Download fetches a binary file into destDir under the given name and
	// returns the local path.
	Download(ctx context.Context, fileID, destDir, name string) (string, error)

	// WriteText creates or replaces a plain-text child of folderID.
	WriteText(ctx context.Context, folderID, name, content string) error

	Recolor(ctx context.Context, folderID, color string) error
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	MoveFolder(ctx context.Context, folderID, fromParent, toParent string) error
	Trash(ctx context.Context, fileID string) error
}
