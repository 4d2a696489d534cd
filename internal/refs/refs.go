// Package refs collects the references a document makes to other artifacts,
// with the source spans needed for diagnostics and completion.
package refs

import (
	"regexp"
	"strings"

	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/parser"
)

// Located is one reference occurrence.
type Located struct {
	Relation models.Relation  `json:"relation"`
	Raw      string           `json:"raw"`
	Ref      models.Reference `json:"ref"`
	// Bare is true when Raw is exactly "<artifact>.<tag>" (or the file-name form
	// of a mention).
	Bare bool        `json:"bare"`
	Span models.Span `json:"span"`
}

// Set groups the three reference collections of a document.
type Set struct {
	DependsOn  []Located `json:"depends_on"`
	References []Located `json:"references"`
	Mentions   []Located `json:"mentions"`
}

// All returns every reference in document order of collections.
func (s *Set) All() []Located {
	out := make([]Located, 0, len(s.DependsOn)+len(s.References)+len(s.Mentions))
	out = append(out, s.DependsOn...)
	out = append(out, s.References...)
	return append(out, s.Mentions...)
}

// Extract scans raw document text.
func Extract(raw string) *Set {
	set := &Set{}
	for _, e := range parser.FrontMatterEntries(raw) {
		var rel models.Relation
		switch e.Key {
		case parser.KeyDependsOn:
			rel = models.RelationDependsOn
		case parser.KeyReferences:
			rel = models.RelationReferences
		default:
			continue
		}
		for _, it := range entryItems(e) {
			loc := locate(rel, it)
			if rel == models.RelationDependsOn {
				set.DependsOn = append(set.DependsOn, loc)
			} else {
				set.References = append(set.References, loc)
			}
		}
	}

	lines := parser.SplitLines(raw)
	bodyLine := 0
	if _, end, ok := parser.FrontMatterBounds(lines); ok {
		bodyLine = end + 1
	}
	if bodyLine > len(lines) {
		bodyLine = len(lines)
	}
	body := strings.Join(lines[bodyLine:], "\n")
	for _, m := range parser.ScanMentions(body) {
		line, col := position(body, m.Start)
		set.Mentions = append(set.Mentions, Located{
			Relation: models.RelationMention,
			Raw:      m.Raw,
			Ref:      m.Ref,
			Bare:     m.Bare,
			Span:     models.Span{Line: bodyLine + line, Column: col, Length: m.End - m.Start},
		})
	}
	return set
}

// ExtractDocument scans the raw text a document was parsed from.
func ExtractDocument(doc *models.Document) *Set {
	return Extract(doc.Raw)
}

// entryItems turns a scalar "depends-on: a.req" into a single located item.
func entryItems(e parser.Entry) []parser.Item {
	if e.IsList || e.Value == "" {
		return e.Items
	}
	return []parser.Item{{Text: e.Value, Line: e.Line, Column: e.Column}}
}

func locate(rel models.Relation, it parser.Item) Located {
	loc := Located{
		Relation: rel,
		Raw:      it.Text,
		Span:     models.Span{Line: it.Line, Column: it.Column, Length: len(it.Text)},
	}
	if ref, err := models.ParseReference(it.Text); err == nil {
		loc.Ref = ref
		loc.Bare = true
	} else {
		loc.Ref = qualifiedTarget(it.Text)
	}
	return loc
}

var qualifiedRe = regexp.MustCompile(`^([A-Za-z0-9-]+)\.(req|design|impl)`)

// qualifiedTarget recovers the artifact-phase prefix of an over-specified entry
// such as "a.req[extra]"; it is the zero Reference when there is none.
func qualifiedTarget(raw string) models.Reference {
	m := qualifiedRe.FindStringSubmatch(raw)
	if m == nil {
		return models.Reference{}
	}
	ph, _ := models.PhaseFromTag(m[2])
	return models.Reference{Artifact: m[1], Phase: ph}
}

// position converts a byte offset in text to a 0-based line and column.
func position(text string, offset int) (int, int) {
	line := strings.Count(text[:offset], "\n")
	col := offset - (strings.LastIndex(text[:offset], "\n") + 1)
	return line, col
}
