// Package resolver maps element identifiers (REQ-0001, DES-0042, ...) to the
// document that should define them.
package resolver

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/speclink/internal/models"
)

var (
	// ErrMalformedIdentifier is returned for identifiers that do not have the
	// TYPE-NNNN shape or whose type prefix is not upper-case.
	ErrMalformedIdentifier = errors.New("malformed element identifier")
	// ErrNotResolvable is returned for well-formed identifiers with an unknown type.
	ErrNotResolvable = errors.New("element identifier not resolvable")
	// ErrArtifactUnresolved is returned when no annotation names the artifact and
	// the current file name does not follow the naming convention.
	ErrArtifactUnresolved = errors.New("artifact cannot be determined")
)

// elementTypes is the fixed type prefix table.
var elementTypes = map[string]models.Phase{
	"REQ": models.PhaseRequirement,
	"DES": models.PhaseDesign,
	"IMP": models.PhaseImplementation,
}

var (
	idShapeRe = regexp.MustCompile(`^([A-Za-z]+)-([0-9]+)$`)
	idTokenRe = regexp.MustCompile(`[A-Za-z]+-[0-9]+`)
)

// Target is where an element's defining heading is expected to live.
type Target struct {
	ElementID string       `json:"element_id"`
	Artifact  string       `json:"artifact"`
	Phase     models.Phase `json:"phase"`
	Folder    string       `json:"folder"`
	Extension string       `json:"extension"`
	Path      string       `json:"path"`
}

// Ref returns the artifact-phase pair of the target document.
func (t Target) Ref() models.Reference {
	return models.Reference{Artifact: t.Artifact, Phase: t.Phase}
}

// Site describes where an identifier was referenced.
type Site struct {
	// Path of the current document, workspace-relative.
	Path string
	// Text of the current document.
	Text string
	// Line (0-based) holding the reference.
	Line int
}

// Prefixes returns the known element type prefixes.
func Prefixes() []string {
	return []string{"REQ", "DES", "IMP"}
}

// PhaseOf validates id and returns the phase its type prefix maps to.
func PhaseOf(id string) (models.Phase, error) {
	m := idShapeRe.FindStringSubmatch(id)
	if m == nil {
		return "", fmt.Errorf("%w: %q is not TYPE-NNNN", ErrMalformedIdentifier, id)
	}
	prefix := m[1]
	if prefix != strings.ToUpper(prefix) {
		return "", fmt.Errorf("%w: type prefix %q must be upper-case", ErrMalformedIdentifier, prefix)
	}
	ph, ok := elementTypes[prefix]
	if !ok {
		return "", fmt.Errorf("%w: unknown type prefix %q, want one of %s", ErrNotResolvable, prefix, strings.Join(Prefixes(), ", "))
	}
	return ph, nil
}

// ResolveTarget resolves id as referenced from site. The artifact comes from a
// "// <artifact>/<id>" annotation on the reference line or the line above it,
// otherwise from the current file name when it follows the naming convention.
func ResolveTarget(id string, site Site) (Target, error) {
	ph, err := PhaseOf(id)
	if err != nil {
		return Target{}, err
	}

	artifact, ok := AnnotatedArtifact(site.Text, site.Line, id)
	if !ok {
		ref, named := models.ParseDocumentPath(site.Path)
		if !named {
			return Target{}, fmt.Errorf("%w: %s has no // <artifact>/%s annotation and %q does not follow <artifact>.<req|design|impl>.md",
				ErrArtifactUnresolved, id, id, path.Base(site.Path))
		}
		artifact = ref.Artifact
	}

	ref := models.Reference{Artifact: artifact, Phase: ph}
	return Target{
		ElementID: id,
		Artifact:  artifact,
		Phase:     ph,
		Folder:    ph.Folder(),
		Extension: "." + ph.Tag() + models.DocumentExt,
		Path:      ref.Path(),
	}, nil
}

// AnnotatedArtifact looks for "// <artifact>/<id>" on line or the line above it.
func AnnotatedArtifact(text string, line int, id string) (string, bool) {
	re, err := regexp.Compile(`//\s*([A-Za-z0-9-]+)/` + regexp.QuoteMeta(id) + `\b`)
	if err != nil {
		return "", false
	}
	lines := strings.Split(text, "\n")
	for _, l := range []int{line, line - 1} {
		if l < 0 || l >= len(lines) {
			continue
		}
		if m := re.FindStringSubmatch(lines[l]); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ElementIDAt returns the identifier token covering byte column col of line.
func ElementIDAt(line string, col int) (string, bool) {
	for _, loc := range TokenIndexes(line) {
		if loc[0] <= col && col <= loc[1] {
			return line[loc[0]:loc[1]], true
		}
	}
	return "", false
}

// TokenIndexes returns the byte ranges of identifier-shaped tokens in s. Tokens
// glued to surrounding word characters are skipped.
func TokenIndexes(s string) [][2]int {
	var out [][2]int
	for _, loc := range idTokenRe.FindAllStringIndex(s, -1) {
		if !IsTokenBoundary(s, loc[0], loc[1]) {
			continue
		}
		out = append(out, [2]int{loc[0], loc[1]})
	}
	return out
}

// IsTokenBoundary reports whether s[start:end] is not glued to identifier characters.
func IsTokenBoundary(s string, start, end int) bool {
	if start > 0 && isIDByte(s[start-1]) {
		return false
	}
	if end < len(s) && isIDByte(s[end]) {
		return false
	}
	return true
}

func isIDByte(b byte) bool {
	return b == '-' || b == '_' ||
		('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
