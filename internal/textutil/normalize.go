package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	leadingArticle    = regexp.MustCompile(`^(the|a|an) `)
	trailingMedium    = regexp.MustCompile(` (tv|ova|ona|movie|special)$`)
	seasonMarker      = regexp.MustCompile(` (season|s) ?\d+`)
	ordinalSeason     = regexp.MustCompile(` \d+(st|nd|rd|th) season`)
	parenthesizedYear = regexp.MustCompile(`\(\d{4}\)`)
	trailingYear      = regexp.MustCompile(` \d{4}$`)
)

// Normalize turns a raw series name into its comparison key. Punctuation is
// collapsed before the marker patterns run so that quoting, trailing dots and
// brackets do not change the result.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = norm.NFKC.String(cases.Fold().String(name))
	name = parenthesizedYear.ReplaceAllString(name, " ")
	name = collapse(name)

	name = leadingArticle.ReplaceAllString(name, "")
	name = trailingMedium.ReplaceAllString(name, "")
	name = seasonMarker.ReplaceAllString(name, "")
	name = ordinalSeason.ReplaceAllString(name, "")
	name = trailingYear.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// collapse keeps letters and digits and turns every other run into one space.
func collapse(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSpace := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Words returns the distinct space-separated words of a normalized name.
func Words(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
