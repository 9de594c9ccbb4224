package service

import (
	"strings"
	"unicode"
)

// DefaultNegationWindow is the number of runes inspected on each side of a
// keyword occurrence.
const DefaultNegationWindow = 15

// clauseBreaks end a match context early so a negation in the next clause
// does not leak into this one.
const clauseBreaks = ".!?;,\n"

// NegationMatcher finds keywords in answer text, ignoring occurrences that
// sit in a negated context such as "has never run" or "운동을 안 해요".
// Every marker is looked for before the keyword. Only markers without Latin
// letters are also looked for after it, since Korean negates after the object.
type NegationMatcher struct {
	window   int
	markers  [][]rune
	trailing [][]rune
}

// NewNegationMatcher lowercases markers once. Marker whitespace is kept.
func NewNegationMatcher(window int, markers []string) *NegationMatcher {
	if window < 0 {
		window = 0
	}
	m := &NegationMatcher{window: window}
	for _, marker := range markers {
		if strings.TrimSpace(marker) == "" {
			continue
		}
		r := []rune(strings.ToLower(marker))
		m.markers = append(m.markers, r)
		if !hasLatinLetter(r) {
			m.trailing = append(m.trailing, r)
		}
	}
	return m
}

// Match reports whether keyword occurs at least once outside a negated
// context.
func (m *NegationMatcher) Match(text, keyword string) bool {
	kw := []rune(strings.ToLower(strings.TrimSpace(keyword)))
	if len(kw) == 0 {
		return false
	}
	body := []rune(strings.ToLower(text))

	for i := 0; i+len(kw) <= len(body); i++ {
		if !runesAt(body, kw, i) {
			continue
		}
		before, after := m.context(body, i, i+len(kw))
		if !negated(before, m.markers) && !negated(after, m.trailing) {
			return true
		}
	}
	return false
}

// MatchAll returns one flag per distinct non-blank keyword.
func (m *NegationMatcher) MatchAll(text string, keywords []string) map[string]bool {
	out := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, seen := out[kw]; seen {
			continue
		}
		out[kw] = m.Match(text, kw)
	}
	return out
}

// MatchKeyword is the stateless form of NegationMatcher.Match.
func MatchKeyword(text, keyword string, window int, markers []string) bool {
	return NewNegationMatcher(window, markers).Match(text, keyword)
}

func (m *NegationMatcher) context(body []rune, start, end int) (before, after []rune) {
	lo := max(0, start-m.window)
	before = body[lo:start]
	for i := len(before) - 1; i >= 0; i-- {
		if strings.ContainsRune(clauseBreaks, before[i]) {
			before = before[i+1:]
			break
		}
	}

	hi := min(len(body), end+m.window)
	after = body[end:hi]
	for i, r := range after {
		if strings.ContainsRune(clauseBreaks, r) {
			after = after[:i]
			break
		}
	}
	return before, after
}

func negated(ctx []rune, markers [][]rune) bool {
	for _, marker := range markers {
		for i := 0; i+len(marker) <= len(ctx); i++ {
			if runesAt(ctx, marker, i) && wordBounded(ctx, marker, i) {
				return true
			}
		}
	}
	return false
}

// wordBounded requires Latin markers to stand as whole words, so "no" does
// not fire inside "know". Hangul markers attach to stems and match anywhere.
func wordBounded(ctx, marker []rune, at int) bool {
	if isLatinLetter(marker[0]) && at > 0 && isWordRune(ctx[at-1]) {
		return false
	}
	end := at + len(marker)
	if isLatinLetter(marker[len(marker)-1]) && end < len(ctx) && isWordRune(ctx[end]) {
		return false
	}
	return true
}

func runesAt(haystack, needle []rune, at int) bool {
	for j, r := range needle {
		if haystack[at+j] != r {
			return false
		}
	}
	return true
}

func hasLatinLetter(rs []rune) bool {
	for _, r := range rs {
		if isLatinLetter(r) {
			return true
		}
	}
	return false
}

func isLatinLetter(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}
