package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	logx "publibot/pkg/logx"
)

const listFields = "nextPageToken, files(id, name, mimeType, folderColorRgb)"

// Google is the Drive v3 implementation of Store. All calls go through the
// transient-retry wrapper; classification happens in errors.go.
type Google struct {
	svc    *gdrive.Service
	log    logx.Logger
	policy RetryPolicy
}

func NewGoogle(ctx context.Context, credentialsFile string, policy RetryPolicy, log logx.Logger) (*Google, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	svc, err := gdrive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gdrive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive: service init: %w", err)
	}
	return &Google{svc: svc, log: log, policy: policy}, nil
}

// escapeQuery escapes single quotes and backslashes for Drive query strings.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func (g *Google) FindByName(ctx context.Context, parentID, name string, onlyFolder bool) (string, error) {
	q := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false",
		escapeQuery(parentID), escapeQuery(name))
	if onlyFolder {
		q += " and mimeType = '" + MimeFolder + "'"
	} else {
		q += " and mimeType != '" + MimeFolder + "'"
	}

	var id string
	err := withRetry(ctx, g.log, g.policy, "find", func() error {
		res, err := g.svc.Files.List().Context(ctx).Q(q).PageSize(2).Fields("files(id, name)").Do()
		if err != nil {
			return err
		}
		if len(res.Files) > 0 {
			id = res.Files[0].Id
		}
		return nil
	})
	if err != nil {
		return "", wrap("find", name, err)
	}
	return id, nil
}

func (g *Google) ListChildren(ctx context.Context, folderID string) ([]Item, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))

	var out []Item
	err := withRetry(ctx, g.log, g.policy, "list", func() error {
		out = out[:0]
		pageToken := ""
		for {
			call := g.svc.Files.List().Context(ctx).Q(q).PageSize(1000).Fields(googleapi.Field(listFields))
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			res, err := call.Do()
			if err != nil {
				return err
			}
			for _, f := range res.Files {
				out = append(out, Item{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Color: f.FolderColorRgb})
			}
			if res.NextPageToken == "" {
				return nil
			}
			pageToken = res.NextPageToken
		}
	})
	if err != nil {
		return nil, wrap("list", folderID, err)
	}
	return out, nil
}

func (g *Google) ReadText(ctx context.Context, fileID string) (string, error) {
	var content string
	err := withRetry(ctx, g.log, g.policy, "read_text", func() error {
		meta, err := g.svc.Files.Get(fileID).Context(ctx).Fields("mimeType").Do()
		if err != nil {
			return err
		}

		var resp io.ReadCloser
		if meta.MimeType == MimeGDoc {
			r, err := g.svc.Files.Export(fileID, "text/plain").Context(ctx).Download()
			if err != nil {
				return err
			}
			resp = r.Body
		} else {
			r, err := g.svc.Files.Get(fileID).Context(ctx).Download()
			if err != nil {
				return err
			}
			resp = r.Body
		}
		defer resp.Close()

		b, err := io.ReadAll(resp)
		if err != nil {
			return err
		}
		content = string(b)
		return nil
	})
	if err != nil {
		return "", wrap("read_text", fileID, err)
	}
	return content, nil
}

func (g *Google) Download(ctx context.Context, fileID, destDir, name string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", wrap("download", name, err)
	}
	local := filepath.Join(destDir, filepath.Base(name))

	err := withRetry(ctx, g.log, g.policy, "download", func() error {
		res, err := g.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer res.Body.Close()

		f, err := os.Create(local)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, res.Body); err != nil {
			_ = f.Close()
			_ = os.Remove(local)
			return err
		}
		return f.Close()
	})
	if err != nil {
		return "", wrap("download", name, err)
	}
	return local, nil
}

func (g *Google) WriteText(ctx context.Context, folderID, name, content string) error {
	existing, err := g.FindByName(ctx, folderID, name, false)
	if err != nil {
		return err
	}

	err = withRetry(ctx, g.log, g.policy, "write_text", func() error {
		body := strings.NewReader(content)
		if existing != "" {
			_, err := g.svc.Files.Update(existing, &gdrive.File{}).
				Context(ctx).Media(body, googleapi.ContentType("text/plain")).Do()
			return err
		}
		meta := &gdrive.File{Name: name, MimeType: "text/plain", Parents: []string{folderID}}
		_, err := g.svc.Files.Create(meta).
			Context(ctx).Media(body, googleapi.ContentType("text/plain")).Do()
		return err
	})
	return wrap("write_text", name, err)
}

func (g *Google) Recolor(ctx context.Context, folderID, color string) error {
	err := withRetry(ctx, g.log, g.policy, "recolor", func() error {
		_, err := g.svc.Files.Update(folderID, &gdrive.File{FolderColorRgb: color}).Context(ctx).Do()
		return err
	})
	return wrap("recolor", folderID, err)
}

func (g *Google) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	var id string
	err := withRetry(ctx, g.log, g.policy, "create_folder", func() error {
		f, err := g.svc.Files.Create(&gdrive.File{
			Name:     name,
			MimeType: MimeFolder,
			Parents:  []string{parentID},
		}).Context(ctx).Fields("id").Do()
		if err != nil {
			return err
		}
		id = f.Id
		return nil
	})
	if err != nil {
		return "", wrap("create_folder", name, err)
	}
	return id, nil
}

func (g *Google) MoveFolder(ctx context.Context, folderID, fromParent, toParent string) error {
	err := withRetry(ctx, g.log, g.policy, "move_folder", func() error {
		_, err := g.svc.Files.Update(folderID, &gdrive.File{}).
			Context(ctx).AddParents(toParent).RemoveParents(fromParent).Do()
		return err
	})
	return wrap("move_folder", folderID, err)
}

func (g *Google) Trash(ctx context.Context, fileID string) error {
	err := withRetry(ctx, g.log, g.policy, "trash", func() error {
		_, err := g.svc.Files.Update(fileID, &gdrive.File{Trashed: true}).Context(ctx).Do()
		return err
	})
	return wrap("trash", fileID, err)
}
