package remotecfg

import (
	"strings"
)

// ParseSchedule parses the schedule document: one `agency = HH:MM` line per
// job, `#` comment lines ignored, times zero-padded to "HH:MM". Invalid
// lines are skipped; for duplicate agencies the last line wins (the document
// is edited top-down by hand).
func ParseSchedule(content string) []Entry {
	byAgency := map[string]string{}
	var order []string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		agency := strings.TrimSpace(line[:eq])
		at, ok := NormalizeHHMM(strings.TrimSpace(line[eq+1:]))
		if agency == "" || !ok {
			continue
		}
		if _, seen := byAgency[agency]; !seen {
			order = append(order, agency)
		}
		byAgency[agency] = at
	}

	entries := make([]Entry, 0, len(order))
	for _, agency := range order {
		entries = append(entries, Entry{Agency: agency, At: byAgency[agency]})
	}
	sortEntries(entries)
	return entries
}

// NormalizeHHMM validates a clock time and zero-pads it to 5 characters
// ("9:00" becomes "09:00").
func NormalizeHHMM(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[1] == ':' {
		s = "0" + s
	}
	if len(s) != 5 || s[2] != ':' {
		return "", false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return "", false
	}
	return s, true
}
