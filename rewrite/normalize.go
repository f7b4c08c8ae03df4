package rewrite

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
	{"‘", "’"},
}

// normalizeOutput cleans a provider completion: trim, drop any HTML markup,
// drop one pair of wrapping quotes. ok is false when nothing is left.
func normalizeOutput(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.ContainsAny(s, "<>") {
		s = strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
	}
	s = unquote(s)
	return s, s != ""
}

// unquote removes one pair of wrapping quotes, but only when the quote
// character does not also appear inside, so quoted phrases survive.
func unquote(s string) string {
	for _, q := range quotePairs {
		open, closing := q[0], q[1]
		if len(s) < len(open)+len(closing) || !strings.HasPrefix(s, open) || !strings.HasSuffix(s, closing) {
			continue
		}
		inner := s[len(open) : len(s)-len(closing)]
		if strings.Contains(inner, open) || strings.Contains(inner, closing) {
			return s
		}
		return strings.TrimSpace(inner)
	}
	return s
}
