package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/speclink/internal/apperr"
	"github.com/starford/speclink/internal/parser"
	"github.com/starford/speclink/internal/resolver"
)

// ErrNotFound is returned when no heading defines the element. It matches
// apperr.ErrNotFound.
var ErrNotFound = fmt.Errorf("element %w", apperr.ErrNotFound)

var headingRe = regexp.MustCompile(`^(#{1,6})(?:\s|$)`)

// headingDepth returns the ATX heading depth of line, or 0.
func headingDepth(line string) int {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	return len(m[1])
}

// headingDepths returns the heading depth of every line. Lines inside fenced
// code blocks (``` or ~~~) are never headings.
func headingDepths(lines []string) []int {
	depths := make([]int, len(lines))
	var fence string
	for i, l := range lines {
		t := strings.TrimLeft(l, " ")
		if marker := fenceMarker(t); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(marker, fence) && strings.TrimSpace(t[len(marker):]) == "":
				fence = ""
			}
			continue
		}
		if fence == "" {
			depths[i] = headingDepth(l)
		}
	}
	return depths
}

// fenceMarker returns the run of backticks or tildes opening a code fence.
func fenceMarker(line string) string {
	if len(line) < 3 || (line[0] != '`' && line[0] != '~') {
		return ""
	}
	n := 0
	for n < len(line) && line[n] == line[0] {
		n++
	}
	if n < 3 {
		return ""
	}
	return line[:n]
}

// ElementHeading returns the 0-based line of the heading (depth 3 or deeper)
// that contains id as a whole token. Lines in fenced code blocks are skipped.
func ElementHeading(text, id string) (line, depth int, ok bool) {
	lines := parser.SplitLines(text)
	for i, d := range headingDepths(lines) {
		if d < 3 || !containsToken(lines[i], id) {
			continue
		}
		return i, d, true
	}
	return 0, 0, false
}

// LocateElementBlock returns the text from the heading defining id up to the
// next heading of the same or shallower depth (or the end of text), trimmed.
// The heading line is part of the block, so a heading directly followed by a
// sibling yields just that heading line. Headings inside fenced code blocks do
// not end the block.
func LocateElementBlock(text, id string) (string, error) {
	lines := parser.SplitLines(text)
	depths := headingDepths(lines)
	start, depth, ok := ElementHeading(text, id)
	if !ok {
		return "", ErrNotFound
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if d := depths[i]; d > 0 && d <= depth {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n")), nil
}

// tokenIndexes returns every whole-token occurrence of id in s.
func tokenIndexes(s, id string) []int {
	var out []int
	if id == "" {
		return nil
	}
	for from := 0; from <= len(s)-len(id); {
		i := strings.Index(s[from:], id)
		if i < 0 {
			break
		}
		at := from + i
		if resolver.IsTokenBoundary(s, at, at+len(id)) {
			out = append(out, at)
		}
		from = at + 1
	}
	return out
}

func containsToken(s, id string) bool {
	return len(tokenIndexes(s, id)) > 0
}
