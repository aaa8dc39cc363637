// Package locale holds the small Portuguese text fix-ups applied to prompts
// on the way in and to backend replies on the way out.
package locale

import (
	"regexp"
	"strings"
	"unicode"
)

// promptShorthand expands chat shorthand in user prompts.
var promptShorthand = map[string]string{
	"vc":      "você",
	"vcê":     "você",
	"qnd":     "quando",
	"pq":      "porque",
	"td":      "tudo",
	"msm":     "mesmo",
	"nao":     "não",
	"obg":     "obrigado",
	"brigado": "obrigado",
	"brigada": "obrigado",
}

// replyTypos fixes recurring misspellings in backend replies.
var replyTypos = map[string]string{
	"cekin":   "check-in",
	"chekin":  "check-in",
	"dezembo": "dezembro",
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\r\f\v\x{00A0}]+`)
	spaceAroundLF   = regexp.MustCompile(` ?\n ?`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	repeatedPeriods = regexp.MustCompile(`\.{2,}`)
	anyWhitespace   = regexp.MustCompile(`\s{2,}`)
)

// Fix cleans up a backend reply. Paragraph breaks survive; runs of spaces,
// excess blank lines and repeated periods are collapsed and a fixed set of
// typos is corrected. Fix(Fix(s)) == Fix(s).
func Fix(s string) string {
	if s == "" {
		return s
	}
	out := horizontalSpace.ReplaceAllString(s, " ")
	out = spaceAroundLF.ReplaceAllString(out, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	out = repeatedPeriods.ReplaceAllString(out, ".")
	out = replaceWords(out, replyTypos)
	return strings.TrimSpace(out)
}

// Correct expands common shorthand in a user prompt and collapses all
// whitespace runs to a single space.
func Correct(s string) string {
	if s == "" {
		return s
	}
	out := replaceWords(s, promptShorthand)
	out = anyWhitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// replaceWords swaps whole words found in dict, matching case-insensitively.
// A word is a maximal run of letters, digits and underscores.
func replaceWords(s string, dict map[string]string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	changed := false
	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isWordRune(runes[j]) {
			j++
		}
		word := string(runes[i:j])
		if rep, ok := dict[strings.ToLower(word)]; ok {
			b.WriteString(rep)
			changed = true
		} else {
			b.WriteString(word)
		}
		i = j
	}
	if !changed {
		return s
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Truncate caps s at max runes. Longer text keeps its first max-100 runes
// followed by a visible marker.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	keep := max - 100
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + TruncationMarker
}

// TruncationMarker is appended to truncated prompts.
const TruncationMarker = "\n\n... [truncated]"
