package remotecfg

import (
	"reflect"
	"testing"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	doc := `
# morning batch
Poker = 9:00
Casino = 12:30

bad line without equals
NoTime =
Late = 25:00
Poker = 10:15
`
	got := ParseSchedule(doc)
	want := []Entry{
		{Agency: "Poker", At: "10:15"}, // last duplicate wins
		{Agency: "Casino", At: "12:30"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseSchedule = %+v, want %+v", got, want)
	}
}

func TestNormalizeHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "9:00", want: "09:00", ok: true},
		{raw: "09:00", want: "09:00", ok: true},
		{raw: " 23:59 ", want: "23:59", ok: true},
		{raw: "24:00"},
		{raw: "12:60"},
		{raw: "1200"},
		{raw: "ab:cd"},
		{raw: ""},
	}
	for _, tt := range tests {
		got, ok := NormalizeHHMM(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeHHMM(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDirectives(t *testing.T) {
	t.Parallel()
	doc := `
# chat targets
Admins = [111, abc, 222
          333]
Publicar = [ -1001234 ]   # main channel
Aviso=[-1005678]
Pub_Test = [junk, -1009999]
`
	d := ParseDirectives(doc)

	if want := []int64{111, 222, 333}; !reflect.DeepEqual(d.Admins, want) {
		t.Errorf("Admins = %v, want %v", d.Admins, want)
	}
	if d.Publish != -1001234 {
		t.Errorf("Publish = %d, want -1001234", d.Publish)
	}
	if d.Alert != -1005678 {
		t.Errorf("Alert = %d, want -1005678", d.Alert)
	}
	if d.Test != -1009999 {
		t.Errorf("Test = %d, want -1009999 (first valid wins)", d.Test)
	}
}

func TestParseDirectivesAliases(t *testing.T) {
	t.Parallel()
	d := ParseDirectives("Emisor = [42]\nAlerta = [43]")
	if d.Publish != 42 {
		t.Errorf("Publish via Emisor alias = %d, want 42", d.Publish)
	}
	if d.Alert != 43 {
		t.Errorf("Alert via Alerta alias = %d, want 43", d.Alert)
	}
}

func TestParseDirectivesMalformedBlocks(t *testing.T) {
	t.Parallel()
	// Missing blocks and garbage leave fields unset rather than failing.
	d := ParseDirectives("just some prose\nPublicar = [not a number]")
	if d.Publish != 0 || d.Alert != 0 || d.Test != 0 || len(d.Admins) != 0 {
		t.Fatalf("expected zero directives, got %+v", d)
	}
}
