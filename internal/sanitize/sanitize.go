// Package sanitize turns the HTML stored in note fields into plain study text.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`</?[A-Za-z!][^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	entities = []struct{ entity, char string }{
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&amp;", "&"},
		{"&quot;", `"`},
		{"&#39;", "'"},
		{"&nbsp;", " "},
	}
)

// Clean strips tags, decodes the common named entities, and collapses
// whitespace. The pass is repeated until the text stops changing, so
// Clean(Clean(s)) == Clean(s) even when decoding an entity exposes new markup.
// Only a '<' followed by a letter, '/' or '!' opens a tag, which keeps decoded
// comparisons such as "x < 5 && y > 3" intact.
func Clean(html string) string {
	s := html
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	for _, e := range entities {
		s = strings.ReplaceAll(s, e.entity, e.char)
	}
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
