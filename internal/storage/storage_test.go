package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	logx "publibot/pkg/logx"
)

func TestSaveLoadState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	type doc struct {
		Date  string   `json:"date"`
		Names []string `json:"names"`
	}
	in := doc{Date: "2026-09-05", Names: []string{"Poker", "Casino"}}
	if err := SaveState(path, in); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	var out doc
	if err := LoadState(path, &out); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if out.Date != in.Date || len(out.Names) != 2 {
		t.Errorf("round trip = %+v", out)
	}

	// Overwrite replaces the whole document.
	in.Names = in.Names[:1]
	if err := SaveState(path, in); err != nil {
		t.Fatalf("SaveState overwrite: %v", err)
	}
	out = doc{}
	if err := LoadState(path, &out); err != nil {
		t.Fatalf("LoadState after overwrite: %v", err)
	}
	if len(out.Names) != 1 {
		t.Errorf("overwrite kept stale data: %+v", out)
	}
}

func TestLoadStateMissing(t *testing.T) {
	t.Parallel()
	var v any
	err := LoadState(filepath.Join(t.TempDir(), "absent.json"), &v)
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		driver  string
		wantNil bool
		wantErr bool
	}{
		{"", true, false},
		{"none", true, false},
		{"file", false, false},
		{"bolt", false, true},
	}
	for _, c := range cases {
		t.Run("driver_"+c.driver, func(t *testing.T) {
			st, err := Open(Config{Driver: c.driver, Path: filepath.Join(t.TempDir(), "s")}, logx.Nop())
			if c.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if (st == nil) != c.wantNil {
				t.Fatalf("store = %v, wantNil=%v", st, c.wantNil)
			}
			if st != nil {
				_ = st.Close()
			}
		})
	}
}

func TestFileStoreRecentRuns(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2026, time.September, 5, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		rec := RunRecord{
			ID:     fmt.Sprintf("run-%d", i),
			At:     base.Add(time.Duration(i) * time.Minute),
			Agency: "Poker",
			ChatID: -100,
			OK:     i%2 == 0,
		}
		if !rec.OK {
			rec.Error = "not found"
		}
		if err := st.AppendRun(ctx, rec); err != nil {
			t.Fatalf("AppendRun %d: %v", i, err)
		}
	}

	runs, err := st.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	// newest first
	if runs[0].ID != "run-6" || runs[2].ID != "run-4" {
		t.Errorf("order = %s..%s, want run-6..run-4", runs[0].ID, runs[2].ID)
	}
}

func TestFileStoreAppendAfterClose(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.AppendRun(context.Background(), RunRecord{ID: "x"}); err == nil {
		t.Fatal("append after close must fail")
	}
}
