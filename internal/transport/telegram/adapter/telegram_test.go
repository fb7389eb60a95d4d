package adapter

import (
	"context"
	"strings"
	"testing"

	kit "publibot/internal/transport"
)

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("splitText(short) = %v", got)
	}

	long := strings.Repeat("aaaa aaaa\n", 6) // 60 runes
	chunks := splitText(long, 25)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for _, c := range chunks {
		if len([]rune(c)) > 25 {
			t.Errorf("chunk over limit: %q", c)
		}
		if strings.HasSuffix(c, "\n") {
			t.Errorf("chunk keeps trailing newline: %q", c)
		}
	}
	if joined := strings.Join(chunks, "\n") + "\n"; joined != long {
		t.Errorf("chunks lose content: %q != %q", joined, long)
	}
}

func TestEditTextRejectsOverLimit(t *testing.T) {
	t.Parallel()
	a := &Adapter{}
	text := strings.Repeat("x", telegramTextLimit+1)
	err := a.EditText(context.Background(), kit.MessageRef{ChatID: 1, MessageID: 2}, text, nil)
	if err == nil {
		t.Fatal("over-limit edit must fail instead of truncating")
	}
	if !strings.Contains(err.Error(), "limit") {
		t.Errorf("error should name the limit, got %v", err)
	}
}
