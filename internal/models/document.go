package models

// Metadata is the interpreted front matter of a document.
//
// Keys the parser does not recognise are kept verbatim in Unknown, in the order
// recorded by UnknownKeys.
type Metadata struct {
	Artifact    string            `json:"artifact,omitempty"`
	Phase       string            `json:"phase,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	References  []string          `json:"references,omitempty"`
	Version     string            `json:"version,omitempty"`
	LastUpdated string            `json:"last_updated,omitempty"`
	Unknown     map[string]string `json:"unknown,omitempty"`
	UnknownKeys []string          `json:"-"`
}

// Section is a second-level heading and the text under it.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Mention is an inline reference found in the body text.
type Mention struct {
	Raw string    `json:"raw"`
	Ref Reference `json:"ref"`
	// Bare is false when the mention carries a trailing qualifier.
	Bare bool `json:"bare"`
}

// Document is the parsed representation of one file.
type Document struct {
	Path           string   `json:"path,omitempty"`
	Artifact       string   `json:"artifact"`
	Phase          Phase    `json:"phase"`
	Metadata       Metadata `json:"metadata"`
	HasFrontMatter bool     `json:"has_front_matter"`
	// PhaseCorrected is set when the file identity overrode the front-matter phase.
	PhaseCorrected bool   `json:"phase_corrected,omitempty"`
	Raw            string `json:"-"`
	Body           string `json:"body"`
	// BodyLine is the 0-based line in the raw text where Body starts.
	BodyLine       int       `json:"body_line"`
	Sections       []Section `json:"sections,omitempty"`
	Clarifications []string  `json:"clarifications,omitempty"`
	Mentions       []Mention `json:"mentions,omitempty"`
}

// Ref returns the artifact-phase pair identifying the document.
func (d *Document) Ref() Reference {
	return Reference{Artifact: d.Artifact, Phase: d.Phase}
}

// GraphRef is the document's identity in the dependency graph. Edges are
// resolved by file location, so when Path follows the naming convention the
// file name decides; otherwise it is Ref.
func (d *Document) GraphRef() Reference {
	if ref, ok := ParseDocumentPath(d.Path); ok {
		return ref
	}
	return d.Ref()
}

// DependsOn returns the raw dependsOn entries in declaration order.
func (d *Document) DependsOn() []string {
	return d.Metadata.DependsOn
}

// References returns the raw references entries in declaration order.
func (d *Document) References() []string {
	return d.Metadata.References
}

// DependsOnRefs returns the well-formed dependsOn entries. Over-specified entries
// are skipped; they never form graph edges.
func (d *Document) DependsOnRefs() []Reference {
	out := make([]Reference, 0, len(d.Metadata.DependsOn))
	for _, raw := range d.Metadata.DependsOn {
		if ref, err := ParseReference(raw); err == nil {
			out = append(out, ref)
		}
	}
	return out
}

// Section returns the body of the section with the given heading.
func (d *Document) Section(heading string) (string, bool) {
	for _, s := range d.Sections {
		if s.Heading == heading {
			return s.Body, true
		}
	}
	return "", false
}
