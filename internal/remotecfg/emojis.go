package remotecfg

import "strings"

// EmojiMap maps a ":alias:" token to a Telegram premium-emoji id, parsed
// from the emoji document ("mis_emojis") in the settings folder.
type EmojiMap map[string]string

// ParseEmojis reads "alias : id" lines. '#' starts a comment line; colons
// around the alias are optional and normalized, so "fuego : 53688..." and
// ":fuego: : 53688..." both register the token ":fuego:".
func ParseEmojis(text string) EmojiMap {
	m := EmojiMap{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// The id is numeric, so the last colon is the separator; everything
		// before it is the alias, however many colons the operator typed.
		sep := strings.LastIndex(line, ":")
		if sep < 0 {
			continue
		}
		alias := strings.ReplaceAll(strings.TrimSpace(line[:sep]), ":", "")
		id := strings.TrimSpace(line[sep+1:])
		if alias == "" || id == "" {
			continue
		}
		m[":"+alias+":"] = id
	}
	return m
}

// Rewrite substitutes every known alias with its premium-emoji HTML tag
// (the ⚡ glyph is the fallback for clients that cannot render the entity).
// The bool reports whether anything changed; callers switch the message to
// HTML parse mode only then, so unprocessed captions keep going out verbatim.
func (m EmojiMap) Rewrite(text string) (string, bool) {
	if len(m) == 0 {
		return text, false
	}
	out := text
	for alias, id := range m {
		if !strings.Contains(out, alias) {
			continue
		}
		out = strings.ReplaceAll(out, alias, `<emoji id="`+id+`">⚡</emoji>`)
	}
	return out, out != text
}
