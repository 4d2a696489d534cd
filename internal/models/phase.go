// Package models defines the domain types for speclink.
package models

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Phase is the role a document plays for its artifact.
type Phase string

const (
	PhaseRequirement    Phase = "requirement"
	PhaseDesign         Phase = "design"
	PhaseImplementation Phase = "implementation"
)

// DefaultPhase is assigned to documents whose phase cannot be determined.
const DefaultPhase = PhaseRequirement

// UnknownArtifact is the sentinel artifact name for documents without usable front matter.
const UnknownArtifact = "unknown"

// DocumentExt is the fixed extension shared by every document.
const DocumentExt = ".md"

// Phases lists every phase in dependency order.
var Phases = []Phase{PhaseRequirement, PhaseDesign, PhaseImplementation}

type phaseLayout struct {
	tag    string
	folder string
}

var layouts = map[Phase]phaseLayout{
	PhaseRequirement:    {tag: "req", folder: "requirements"},
	PhaseDesign:         {tag: "design", folder: "design"},
	PhaseImplementation: {tag: "impl", folder: "implementation"},
}

var (
	artifactRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	fileNameRe = regexp.MustCompile(`^([A-Za-z0-9-]+)\.(req|design|impl)\.md$`)
)

// Tag returns the short tag used in references and file names ("req", "design", "impl").
func (p Phase) Tag() string {
	return layouts[p].tag
}

// Folder returns the workspace folder holding documents of this phase.
func (p Phase) Folder() string {
	return layouts[p].folder
}

// Valid reports whether p is one of the three known phases.
func (p Phase) Valid() bool {
	_, ok := layouts[p]
	return ok
}

// Rank orders phases: requirement < design < implementation.
func (p Phase) Rank() int {
	for i, ph := range Phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// PhaseFromTag maps a phase tag back to its phase.
func PhaseFromTag(tag string) (Phase, bool) {
	for ph, l := range layouts {
		if l.tag == tag {
			return ph, true
		}
	}
	return "", false
}

// ParsePhase accepts either the phase value or its tag, case-insensitively.
func ParsePhase(s string) (Phase, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if p := Phase(s); p.Valid() {
		return p, true
	}
	if s == "requirements" {
		return PhaseRequirement, true
	}
	return PhaseFromTag(s)
}

// ValidArtifactName reports whether name fits the artifact grammar.
func ValidArtifactName(name string) bool {
	return artifactRe.MatchString(name)
}

// DocumentPath returns the workspace-relative path of the document for ref.
func DocumentPath(ref Reference) string {
	return path.Join(ref.Phase.Folder(), ref.Artifact+"."+ref.Phase.Tag()+DocumentExt)
}

// ParseDocumentPath derives the artifact and phase from a path whose file name follows
// the <artifact>.<tag>.md convention. The folder is not consulted.
func ParseDocumentPath(p string) (Reference, bool) {
	m := fileNameRe.FindStringSubmatch(path.Base(toSlash(p)))
	if m == nil {
		return Reference{}, false
	}
	ph, _ := PhaseFromTag(m[2])
	return Reference{Artifact: m[1], Phase: ph}, true
}

// IsDocumentPath reports whether p names a document file inside its phase folder.
func IsDocumentPath(p string) bool {
	ref, ok := ParseDocumentPath(p)
	if !ok {
		return false
	}
	return path.Base(path.Dir(toSlash(p))) == ref.Phase.Folder()
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Phase(%q)", string(p))
	}
	return string(p)
}
