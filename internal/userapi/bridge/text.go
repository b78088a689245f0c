package bridge

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// PlainText strips markup with p and returns unescaped text. A '<' with
// no closing '>' after it is kept as a literal character.
func PlainText(p *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(p.Sanitize(escapeUnclosed(s))))
}

func escapeUnclosed(s string) string {
	last := strings.LastIndexByte(s, '>')
	if strings.LastIndexByte(s, '<') < last {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '<' && i > last {
			b.WriteString("&lt;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
