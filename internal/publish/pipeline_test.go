package publish

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"publibot/internal/drive/drivetest"
	"publibot/internal/remotecfg"
	kit "publibot/internal/transport"
	"publibot/internal/transport/transporttest"
	logx "publibot/pkg/logx"
)

var months = []string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func newTestPipeline(t *testing.T, fake *drivetest.Fake, gw kit.Adapter) *Pipeline {
	t.Helper()
	return New(fake, gw, Options{
		RootFolderID: "root",
		DownloadsDir: t.TempDir(),
		MonthNames:   months,
	}, logx.Nop())
}

// seedAgency builds root/<agency>/Septiembre/05 and returns the day folder id.
func seedAgency(fake *drivetest.Fake, agency string) (agencyID, dayID string) {
	agencyID = fake.AddFolder("root", agency)
	month := fake.AddFolder(agencyID, "Septiembre")
	dayID = fake.AddFolder(month, "05")
	return agencyID, dayID
}

func TestExecuteAlbumWithCaption(t *testing.T) {
	t.Parallel()
	fake := drivetest.New()
	agencyID, dayID := seedAgency(fake, "Poker")
	fake.AddFile(agencyID, "caption.txt", "text/plain", "Big tournament tonight\n")
	// Added out of order; the album must come out name-sorted.
	fake.AddBinary(dayID, "2.jpg", "image/jpeg", []byte("b"))
	fake.AddBinary(dayID, "1.jpg", "image/jpeg", []byte("a"))

	gw := transporttest.New()
	p := newTestPipeline(t, fake, gw)

	job := Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: -100}
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	sent := gw.Sent()
	if len(sent) != 1 || sent[0].Kind != "album" {
		t.Fatalf("want one album send, got %+v", sent)
	}
	album := sent[0].Media
	if len(album) != 2 {
		t.Fatalf("album size = %d, want 2", len(album))
	}
	if album[0].Caption != "Big tournament tonight" {
		t.Errorf("first item caption = %q", album[0].Caption)
	}
	if album[1].Caption != "" {
		t.Errorf("second item must not carry the caption, got %q", album[1].Caption)
	}
	// lexicographic source-name order
	if base(album[0].Path) != "1.jpg" || base(album[1].Path) != "2.jpg" {
		t.Errorf("album order = %s, %s; want 1.jpg, 2.jpg", album[0].Path, album[1].Path)
	}
}

func base(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func TestExecuteSinglePhoto(t *testing.T) {
	t.Parallel()
	fake := drivetest.New()
	agencyID, dayID := seedAgency(fake, "Poker")
	fake.AddFile(agencyID, "caption", "text/plain", "hello")
	fake.AddBinary(dayID, "1.png", "image/png", []byte("img"))

	gw := transporttest.New()
	p := newTestPipeline(t, fake, gw)

	job := Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: 7}
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sent := gw.Sent()
	if len(sent) != 1 || sent[0].Kind != "photo" || sent[0].Text != "hello" {
		t.Fatalf("want one captioned photo, got %+v", sent)
	}
}

func TestExecuteCaptionOnly(t *testing.T) {
	t.Parallel()
	fake := drivetest.New()
	agencyID, _ := seedAgency(fake, "Poker")
	fake.AddFile(agencyID, "caption.txt", "text/plain", "text only today")

	gw := transporttest.New()
	p := newTestPipeline(t, fake, gw)

	job := Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: 7}
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	sent := gw.Sent()
	if len(sent) != 1 || sent[0].Kind != "text" || sent[0].Text != "text only today" {
		t.Fatalf("want one text send, got %+v", sent)
	}
}

func TestExecuteFailureKinds(t *testing.T) {
	t.Parallel()

	t.Run("agency not found", func(t *testing.T) {
		t.Parallel()
		fake := drivetest.New()
		p := newTestPipeline(t, fake, transporttest.New())

		err := p.Execute(context.Background(), Job{Agency: "Ads", Date: date(2026, time.September, 5), ChatID: 7})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != FailNotFound {
			t.Fatalf("want FailNotFound, got %v", err)
		}
		if pe.Detail != "Ads" {
			t.Errorf("Detail = %q, want the agency name", pe.Detail)
		}
	})

	t.Run("missing month", func(t *testing.T) {
		t.Parallel()
		fake := drivetest.New()
		fake.AddFolder("root", "Poker") // no Septiembre below
		p := newTestPipeline(t, fake, transporttest.New())

		err := p.Execute(context.Background(), Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: 7})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != FailMissingDatePath {
			t.Fatalf("want FailMissingDatePath, got %v", err)
		}
	})

	t.Run("missing day", func(t *testing.T) {
		t.Parallel()
		fake := drivetest.New()
		agencyID := fake.AddFolder("root", "Poker")
		fake.AddFolder(agencyID, "Septiembre") // no 05 below
		p := newTestPipeline(t, fake, transporttest.New())

		err := p.Execute(context.Background(), Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: 7})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != FailMissingDatePath {
			t.Fatalf("want FailMissingDatePath, got %v", err)
		}
		if pe.Detail != "Septiembre/05" {
			t.Errorf("Detail = %q, want Septiembre/05", pe.Detail)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		fake := drivetest.New()
		seedAgency(fake, "Poker") // day exists but has nothing in it
		p := newTestPipeline(t, fake, transporttest.New())

		err := p.Execute(context.Background(), Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: 7})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != FailEmptyContent {
			t.Fatalf("want FailEmptyContent, got %v", err)
		}
	})

	t.Run("send failure is transfer", func(t *testing.T) {
		t.Parallel()
		fake := drivetest.New()
		_, dayID := seedAgency(fake, "Poker")
		fake.AddBinary(dayID, "1.jpg", "image/jpeg", []byte("x"))

		gw := transporttest.New()
		gw.FailSend = errors.New("flood wait")
		p := newTestPipeline(t, fake, gw)

		err := p.Execute(context.Background(), Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: 7})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != FailTransfer {
			t.Fatalf("want FailTransfer, got %v", err)
		}
	})
}

func TestExecuteCleansDownloads(t *testing.T) {
	t.Parallel()
	fake := drivetest.New()
	_, dayID := seedAgency(fake, "Poker")
	fake.AddBinary(dayID, "1.jpg", "image/jpeg", []byte("a"))
	fake.AddBinary(dayID, "2.jpg", "image/jpeg", []byte("b"))

	downloads := t.TempDir()
	gw := transporttest.New()
	p := New(fake, gw, Options{RootFolderID: "root", DownloadsDir: downloads, MonthNames: months}, logx.Nop())

	job := Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: 7}
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entries, err := os.ReadDir(downloads)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("downloads dir not cleaned: %v", entries)
	}

	// Cleanup must also happen when the send fails mid-job.
	gw.FailSend = errors.New("boom")
	_ = p.Execute(context.Background(), job)
	entries, _ = os.ReadDir(downloads)
	if len(entries) != 0 {
		t.Fatalf("downloads dir not cleaned after failure: %v", entries)
	}
}

func TestExecuteRewritesCaptionAliases(t *testing.T) {
	t.Parallel()
	fake := drivetest.New()
	agencyID, dayID := seedAgency(fake, "Poker")
	fake.AddFile(agencyID, "caption.txt", "text/plain", "Gana :fuego: hoy")
	fake.AddBinary(dayID, "1.jpg", "image/jpeg", []byte("a"))

	emojis := remotecfg.ParseEmojis("fuego : 123")
	gw := transporttest.New()
	p := New(fake, gw, Options{
		RootFolderID:   "root",
		DownloadsDir:   t.TempDir(),
		MonthNames:     months,
		RewriteCaption: func(s string) (string, bool) { return emojis.Rewrite(s) },
	}, logx.Nop())

	job := Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: -100}
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	sent := gw.Sent()
	if len(sent) != 1 || sent[0].Kind != "photo" {
		t.Fatalf("want one photo send, got %+v", sent)
	}
	m := sent[0].Media[0]
	if want := `Gana <emoji id="123">⚡</emoji> hoy`; m.Caption != want {
		t.Errorf("caption = %q, want %q", m.Caption, want)
	}
	if m.ParseMode != kit.ParseModeHTML {
		t.Errorf("parse mode = %q, want HTML for a rewritten caption", m.ParseMode)
	}
}

func TestExecuteAliasFreeCaptionStaysPlain(t *testing.T) {
	t.Parallel()
	fake := drivetest.New()
	agencyID, dayID := seedAgency(fake, "Poker")
	fake.AddFile(agencyID, "caption.txt", "text/plain", "sin alias")
	fake.AddBinary(dayID, "1.jpg", "image/jpeg", []byte("a"))

	emojis := remotecfg.EmojiMap{":fuego:": "123"}
	gw := transporttest.New()
	p := New(fake, gw, Options{
		RootFolderID:   "root",
		DownloadsDir:   t.TempDir(),
		MonthNames:     months,
		RewriteCaption: func(s string) (string, bool) { return emojis.Rewrite(s) },
	}, logx.Nop())

	job := Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: -100}
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m := gw.Sent()[0].Media[0]
	if m.Caption != "sin alias" || m.ParseMode != "" {
		t.Errorf("untouched caption must stay plain, got (%q, %q)", m.Caption, m.ParseMode)
	}
}

func TestExecuteRejectsMonthOutsideNames(t *testing.T) {
	t.Parallel()
	fake := drivetest.New()
	seedAgency(fake, "Poker")

	gw := transporttest.New()
	p := New(fake, gw, Options{
		RootFolderID: "root",
		DownloadsDir: t.TempDir(),
		MonthNames:   months[:6], // misconfigured: only half the year named
	}, logx.Nop())

	job := Job{Agency: "Poker", Date: date(2026, time.September, 5), ChatID: -100}
	err := p.Execute(context.Background(), job)
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != FailMissingDatePath {
		t.Fatalf("want FailMissingDatePath for unnamed month, got %v", err)
	}
	if len(gw.Sent()) != 0 {
		t.Errorf("nothing may be sent for an unresolvable month")
	}
}
