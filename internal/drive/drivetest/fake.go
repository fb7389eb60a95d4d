// Package drivetest provides an in-memory drive.Store for tests.
package drivetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"publibot/internal/drive"
)

type node struct {
	id     string
	name   string
	mime   string
	parent string
	text   string
	blob   []byte
}

// Fake is a hierarchical in-memory store. The zero value is not usable;
// call New, which creates a root folder with ID "root".
type Fake struct {
	mu     sync.Mutex
	nextID int
	nodes  map[string]*node

	// Colors records the last color per folder; RecolorCalls counts calls.
	Colors       map[string]string
	RecolorCalls int

	// FailOp injects an error for a named op ("find", "list", "read_text",
	// "download", "recolor", "create_folder", "move_folder", "trash",
	// "write_text"). The error is returned on every call of that op.
	FailOp map[string]error

	// Trashed collects ids passed to Trash.
	Trashed []string
}

func New() *Fake {
	f := &Fake{
		nodes:  map[string]*node{},
		Colors: map[string]string{},
		FailOp: map[string]error{},
	}
	f.nodes["root"] = &node{id: "root", name: "root", mime: drive.MimeFolder}
	return f
}

func (f *Fake) newID() string {
	f.nextID++
	return "id" + strconv.Itoa(f.nextID)
}

// AddFolder creates a folder under parent and returns its id.
func (f *Fake) AddFolder(parent, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, mime: drive.MimeFolder, parent: parent}
	return id
}

// AddFile creates a file with text content (used for captions and docs).
func (f *Fake) AddFile(parent, name, mime, text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, mime: mime, parent: parent, text: text}
	return id
}

// AddBinary creates a media file with binary content.
func (f *Fake) AddBinary(parent, name, mime string, blob []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, mime: mime, parent: parent, blob: blob}
	return id
}

func (f *Fake) fail(op string) error {
	if err, ok := f.FailOp[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) FindByName(ctx context.Context, parentID, name string, onlyFolder bool) (string, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("find"); err != nil {
		return "", err
	}
	for _, n := range f.nodes {
		if n.parent != parentID || n.name != name {
			continue
		}
		if onlyFolder != (n.mime == drive.MimeFolder) {
			continue
		}
		return n.id, nil
	}
	return "", nil
}

func (f *Fake) ListChildren(ctx context.Context, folderID string) ([]drive.Item, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("list"); err != nil {
		return nil, err
	}
	var out []drive.Item
	for _, n := range f.nodes {
		if n.parent == folderID {
			out = append(out, drive.Item{ID: n.id, Name: n.name, MimeType: n.mime, Color: f.Colors[n.id]})
		}
	}
	// map iteration order is random; return a stable listing
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *Fake) ReadText(ctx context.Context, fileID string) (string, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("read_text"); err != nil {
		return "", err
	}
	n, ok := f.nodes[fileID]
	if !ok {
		return "", errors.New("no such file: " + fileID)
	}
	return n.text, nil
}

func (f *Fake) Download(ctx context.Context, fileID, destDir, name string) (string, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("download"); err != nil {
		return "", err
	}
	n, ok := f.nodes[fileID]
	if !ok {
		return "", errors.New("no such file: " + fileID)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	local := filepath.Join(destDir, filepath.Base(name))
	if err := os.WriteFile(local, n.blob, 0o644); err != nil {
		return "", err
	}
	return local, nil
}

func (f *Fake) WriteText(ctx context.Context, folderID, name, content string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("write_text"); err != nil {
		return err
	}
	for _, n := range f.nodes {
		if n.parent == folderID && n.name == name && n.mime != drive.MimeFolder {
			n.text = content
			return nil
		}
	}
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, mime: "text/plain", parent: folderID, text: content}
	return nil
}

func (f *Fake) Recolor(ctx context.Context, folderID, color string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("recolor"); err != nil {
		return err
	}
	if _, ok := f.nodes[folderID]; !ok {
		return fmt.Errorf("no such folder: %s", folderID)
	}
	f.RecolorCalls++
	f.Colors[folderID] = color
	return nil
}

func (f *Fake) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("create_folder"); err != nil {
		return "", err
	}
	id := f.newID()
	f.nodes[id] = &node{id: id, name: name, mime: drive.MimeFolder, parent: parentID}
	return id, nil
}

func (f *Fake) MoveFolder(ctx context.Context, folderID, fromParent, toParent string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("move_folder"); err != nil {
		return err
	}
	n, ok := f.nodes[folderID]
	if !ok || n.parent != fromParent {
		return fmt.Errorf("folder %s not under %s", folderID, fromParent)
	}
	n.parent = toParent
	return nil
}

func (f *Fake) Trash(ctx context.Context, fileID string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("trash"); err != nil {
		return err
	}
	n, ok := f.nodes[fileID]
	if !ok {
		return errors.New("no such file: " + fileID)
	}
	delete(f.nodes, fileID)
	// cascade children (good enough for tests)
	for id, c := range f.nodes {
		if c.parent == n.id {
			delete(f.nodes, id)
		}
	}
	f.Trashed = append(f.Trashed, fileID)
	return nil
}

// Exists reports whether an id is still present.
func (f *Fake) Exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[id]
	return ok
}

// ParentOf returns the parent id of a node ("" when unknown).
func (f *Fake) ParentOf(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[id]; ok {
		return n.parent
	}
	return ""
}

var _ drive.Store = (*Fake)(nil)
