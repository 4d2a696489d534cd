package models

import (
	"fmt"
	"regexp"
)

var bareRefRe = regexp.MustCompile(`^([A-Za-z0-9-]+)\.(req|design|impl)$`)

// Reference points at the document of one artifact in one phase.
type Reference struct {
	Artifact string `json:"artifact"`
	Phase    Phase  `json:"phase"`
}

// String serializes the reference in its bare "<artifact>.<tag>" form.
func (r Reference) String() string {
	return r.Artifact + "." + r.Phase.Tag()
}

// Path returns the workspace-relative document path for the reference.
func (r Reference) Path() string {
	return DocumentPath(r)
}

// ParseReference parses the bare "<artifact>.<tag>" form. Anything else, including
// forms carrying a trailing qualifier, is rejected.
func ParseReference(s string) (Reference, error) {
	m := bareRefRe.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, fmt.Errorf("reference %q is not of the form <artifact>.<req|design|impl>", s)
	}
	ph, _ := PhaseFromTag(m[2])
	return Reference{Artifact: m[1], Phase: ph}, nil
}
