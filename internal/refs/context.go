package refs

import (
	"regexp"
	"strings"

	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/parser"
)

// Context describes what kind of reference an edit point can take.
type Context struct {
	InFrontMatter bool `json:"in_front_matter"`
	// Key is the active front-matter relation, empty outside a reference key.
	Key models.Relation `json:"key,omitempty"`
	// AfterSigil is set in free text when the cursor follows "@" plus a partial token.
	AfterSigil bool `json:"after_sigil"`
	// Prefix is the partial token typed after the sigil.
	Prefix string `json:"prefix,omitempty"`
}

var sigilPrefixRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9_.-])@([A-Za-z0-9.-]*)$`)

// ContextAt classifies the cursor at (line, col), both 0-based. The cursor is in
// front matter when an odd number of "---" lines precede its line. Inside front
// matter the active key is the nearest line at or above the cursor that contains
// "depends-on" or "references".
func ContextAt(raw string, line, col int) Context {
	lines := parser.SplitLines(raw)
	if line < 0 || line >= len(lines) {
		return Context{}
	}
	cur := lines[line]
	if col < 0 {
		col = 0
	}
	if col > len(cur) {
		col = len(cur)
	}

	delims := 0
	for _, l := range lines[:line] {
		if strings.TrimSpace(l) == "---" {
			delims++
		}
	}
	if delims%2 == 1 {
		ctx := Context{InFrontMatter: true}
		for i := line; i >= 0; i-- {
			text := lines[i]
			if i == line {
				text = cur[:col]
			}
			if strings.Contains(text, parser.KeyDependsOn) {
				ctx.Key = models.RelationDependsOn
				break
			}
			if strings.Contains(text, parser.KeyReferences) {
				ctx.Key = models.RelationReferences
				break
			}
		}
		return ctx
	}

	if m := sigilPrefixRe.FindStringSubmatch(cur[:col]); m != nil {
		return Context{AfterSigil: true, Prefix: m[1]}
	}
	return Context{}
}
