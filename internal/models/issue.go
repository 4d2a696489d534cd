package models

import "time"

// Relation names the way a document points at another artifact.
type Relation string

const (
	RelationDependsOn  Relation = "depends-on"
	RelationReferences Relation = "references"
	RelationMention    Relation = "mention"
)

// Span locates text in a document. Line and Column are 0-based.
type Span struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Length int `json:"length"`
}

// IssueKind classifies a graph validation finding.
type IssueKind string

const (
	IssueOverSpecified      IssueKind = "over-specified"
	IssueMissingTarget      IssueKind = "missing-target"
	IssueCircularDependency IssueKind = "circular-dependency"
)

// ValidationIssue is a single graph-consistency finding on one reference.
type ValidationIssue struct {
	Kind     IssueKind `json:"kind"`
	Relation Relation  `json:"relation"`
	Raw      string    `json:"raw"`
	Target   Reference `json:"target,omitempty"`
	Span     Span      `json:"span"`
}

// Severity of a published diagnostic.
type Severity string

// SeverityWarning is the only severity published; findings are advisory.
const SeverityWarning Severity = "warning"

// Position is a 0-based line/column pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open text range.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is the sink-facing form of a ValidationIssue.
type Diagnostic struct {
	Range    Range     `json:"range"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Code     IssueKind `json:"code"`
	Source   string    `json:"source"`
}

// ChangeKind is the kind of a file-change event.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// ChangeEvent is delivered by the file-change source.
type ChangeEvent struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
	At   time.Time  `json:"at"`
}

// FileMetadata is a lightweight representation returned by list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
