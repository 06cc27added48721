// Package extract pulls a list of strings out of free-form model output.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse is matched by every ParseError via errors.Is
var ErrParse = errors.New("no valid list found")

// ParseError describes why a response could not be turned into a list
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("parse list: %s at offset %d", e.Reason, e.Offset)
	}
	return "parse list: " + e.Reason
}

// Is makes errors.Is(err, ErrParse) work for any ParseError
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

var fenceRe = regexp.MustCompile("```(?:python|json)?")

// StripFences removes code block markers and surrounding whitespace
func StripFences(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

// ParseList parses a bracketed list literal of quoted strings
func ParseList(literal string) ([]string, error) {
	return NewParser(literal).Parse()
}

// List extracts the distinct items of the list found in raw, in first-seen order.
// The list spans from the first '[' to the last ']' once code fences are removed.
// A single item containing newlines is split into one item per non-empty line.
func List(raw string) ([]string, error) {
	cleaned := StripFences(raw)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, &ParseError{Offset: -1, Reason: "no bracketed list in response"}
	}

	items, err := ParseList(cleaned[start : end+1])
	if err != nil {
		return nil, err
	}

	if len(items) == 1 && strings.Contains(items[0], "\n") {
		items = splitLines(items[0])
	}

	return Dedup(items), nil
}

// Dedup drops repeated items keeping the first occurrence
func Dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func splitLines(blob string) []string {
	var lines []string
	for _, line := range strings.Split(blob, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
