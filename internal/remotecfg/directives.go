package remotecfg

import (
	"strconv"
	"strings"
)

// ParseDirectives parses the directives document: labeled bracketed blocks
// of signed integers,
//
//	Admins  = [111, 222]
//	Publicar= [-100123]      # alias: Emisor
//	Aviso   = [-100456]      # alias: Alerta
//	Pub_Test= [-100789]
//
// Values split on comma or newline; `#` starts a comment anywhere on a
// line. Admins collects every valid integer; the single-target blocks take
// the first valid one. A missing or malformed block leaves the field unset.
func ParseDirectives(content string) Directives {
	blocks := parseBlocks(content)

	var d Directives
	d.Admins = allInts(blocks["admins"])
	d.Publish = firstInt(blocks["publicar"], blocks["emisor"])
	d.Alert = firstInt(blocks["aviso"], blocks["alerta"])
	d.Test = firstInt(blocks["pub_test"])
	return d
}

// parseBlocks extracts `label = [ ... ]` blocks. Labels are matched
// case-insensitively; brackets may span lines. Everything outside a
// recognized block shape is ignored.
func parseBlocks(content string) map[string][]string {
	content = stripComments(content)
	out := map[string][]string{}

	i := 0
	for i < len(content) {
		open := strings.IndexByte(content[i:], '[')
		if open < 0 {
			break
		}
		open += i

		// Walk back over "whitespace = whitespace label".
		j := open - 1
		for j >= 0 && isSpace(content[j]) {
			j--
		}
		if j < 0 || content[j] != '=' {
			i = open + 1
			continue
		}
		j--
		for j >= 0 && isSpace(content[j]) {
			j--
		}
		end := j + 1
		for j >= 0 && isIdent(content[j]) {
			j--
		}
		label := strings.ToLower(content[j+1 : end])
		if label == "" {
			i = open + 1
			continue
		}

		closing := strings.IndexByte(content[open:], ']')
		if closing < 0 {
			break
		}
		closing += open

		body := content[open+1 : closing]
		values := strings.FieldsFunc(body, func(r rune) bool {
			return r == ',' || r == '\n' || r == '\r'
		})
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out[label] = append(out[label], v)
			}
		}
		i = closing + 1
	}
	return out
}

func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func isIdent(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// firstInt returns the first parseable integer across the given value
// lists, or 0 when none parse.
func firstInt(lists ...[]string) int64 {
	for _, list := range lists {
		for _, v := range list {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func allInts(list []string) []int64 {
	var out []int64
	for _, v := range list {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}
