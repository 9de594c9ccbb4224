package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.+?)\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	singleQuoted  = regexp.MustCompile(`([{\[,:]\s*)'([^'"]*)'`)
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// ParseAIJSON decodes model output into target. Chat models wrap JSON in
// markdown fences, prose, trailing commas or unquoted keys; each recovery
// step is tried in order until one decodes.
func ParseAIJSON(input string, target any) error {
	input = strings.TrimSpace(strings.TrimPrefix(input, "\ufeff"))
	if input == "" {
		return errors.New("empty input")
	}

	for _, candidate := range jsonCandidates(input) {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), target); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON value in model output: %s", Truncate(input, 100))
}

func jsonCandidates(input string) []string {
	var fenced string
	if m := fencedBlock.FindStringSubmatch(input); len(m) > 1 {
		fenced = strings.TrimSpace(m[1])
	}
	embedded := firstBalanced(input)
	if embedded == "" {
		embedded = input
	}
	return []string{input, fenced, embedded, repairJSON(fenced), repairJSON(embedded)}
}

// firstBalanced returns the first complete {...} or [...] value in s,
// respecting string literals.
func firstBalanced(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	open := rune(s[start])
	closing := '}'
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString, escaped := false, false
	for i, ch := range s[start:] {
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closing:
			depth--
			if depth == 0 {
				return s[start : start+i+1]
			}
		}
	}
	return ""
}

func repairJSON(s string) string {
	if s == "" {
		return ""
	}
	s = controlChars.ReplaceAllString(s, "")
	s = trailingComma.ReplaceAllString(s, "$1")
	s = bareKey.ReplaceAllString(s, `$1"$2"$3`)
	s = singleQuoted.ReplaceAllString(s, `$1"$2"`)
	return s
}

// Truncate shortens s to at most n bytes for log and error messages.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
