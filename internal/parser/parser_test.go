package parser

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/speclink/internal/models"
)

const designDoc = `---
artifact: payments
phase: design
version: 1.2
last-updated: 2024-01-01T00:00:00Z
depends-on: [payments.req, "ledger.req"]
references:
  - audit.design
  - 'fraud.req[extra]'
owner: team-billing
---
# Payments design

## Overview
Talks to @ledger.design and see fraud.req.md for context.
[AI-CLARIFY: which currency rounding mode?]

## Data Model
### DES-0001 Account
Fields. [AI-CLARIFY:  retention period ]
`

func TestParse_FrontMatter(t *testing.T) {
	doc := Parse(designDoc)
	if !doc.HasFrontMatter {
		t.Fatal("expected front matter")
	}
	if doc.Artifact != "payments" {
		t.Errorf("artifact = %q, want payments", doc.Artifact)
	}
	if doc.Phase != models.PhaseDesign {
		t.Errorf("phase = %q, want design", doc.Phase)
	}
	if doc.Metadata.Version != "1.2" {
		t.Errorf("version = %q", doc.Metadata.Version)
	}
	if doc.Metadata.LastUpdated != "2024-01-01T00:00:00Z" {
		t.Errorf("last-updated = %q", doc.Metadata.LastUpdated)
	}
	wantDeps := []string{"payments.req", "ledger.req"}
	if !reflect.DeepEqual(doc.DependsOn(), wantDeps) {
		t.Errorf("depends-on = %v, want %v", doc.DependsOn(), wantDeps)
	}
	wantRefs := []string{"audit.design", "fraud.req[extra]"}
	if !reflect.DeepEqual(doc.References(), wantRefs) {
		t.Errorf("references = %v, want %v", doc.References(), wantRefs)
	}
	if got := doc.Metadata.Unknown["owner"]; got != "team-billing" {
		t.Errorf("unknown owner = %q", got)
	}
	if doc.BodyLine != 11 {
		t.Errorf("body line = %d, want 11", doc.BodyLine)
	}
}

func TestParse_SectionsClarificationsMentions(t *testing.T) {
	doc := Parse(designDoc)

	if len(doc.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(doc.Sections))
	}
	if doc.Sections[0].Heading != "Overview" || doc.Sections[1].Heading != "Data Model" {
		t.Errorf("headings = %q, %q", doc.Sections[0].Heading, doc.Sections[1].Heading)
	}
	if body, _ := doc.Section("Data Model"); !strings.HasPrefix(body, "### DES-0001 Account") {
		t.Errorf("data model body = %q", body)
	}

	wantClar := []string{"which currency rounding mode?", "retention period"}
	if !reflect.DeepEqual(doc.Clarifications, wantClar) {
		t.Errorf("clarifications = %q, want %q", doc.Clarifications, wantClar)
	}

	if len(doc.Mentions) != 2 {
		t.Fatalf("mentions = %v, want 2", doc.Mentions)
	}
	if doc.Mentions[0].Ref.String() != "ledger.design" || doc.Mentions[0].Raw != "ledger.design" {
		t.Errorf("mention[0] = %+v", doc.Mentions[0])
	}
	if doc.Mentions[1].Ref.String() != "fraud.req" || doc.Mentions[1].Raw != "fraud.req.md" {
		t.Errorf("mention[1] = %+v", doc.Mentions[1])
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	doc := Parse("# Just a heading\nSome text.\n")
	if doc.HasFrontMatter {
		t.Error("expected no front matter")
	}
	if doc.Artifact != models.UnknownArtifact {
		t.Errorf("artifact = %q, want sentinel", doc.Artifact)
	}
	if doc.Phase != models.DefaultPhase {
		t.Errorf("phase = %q, want default", doc.Phase)
	}
}

func TestParse_UnterminatedFrontMatter(t *testing.T) {
	doc := Parse("---\nartifact: x\nno closing delimiter\n")
	if doc.HasFrontMatter {
		t.Error("unterminated front matter must be treated as body")
	}
	if doc.Artifact != models.UnknownArtifact {
		t.Errorf("artifact = %q", doc.Artifact)
	}
}

func TestParse_Total(t *testing.T) {
	inputs := []string{
		"",
		"---",
		"---\n---",
		"---\n:\n---",
		"---\ndepends-on: [a.req, [b.req, 'c\n---",
		"---\nreferences: [\n---\n",
		"---\nphase: nonsense\nartifact:\n---\n## \n[AI-CLARIFY:]",
		"@.req @a. a..md \x00\xff",
		"---\r\nartifact: crlf\r\nphase: impl\r\n---\r\n## Heading\r\nbody\r\n",
		strings.Repeat("[", 1000),
	}
	for _, in := range inputs {
		doc := Parse(in)
		if doc == nil {
			t.Fatalf("Parse(%q) returned nil", in)
		}
		if doc.Artifact == "" || !doc.Phase.Valid() {
			t.Errorf("Parse(%q) = artifact %q phase %q", in, doc.Artifact, doc.Phase)
		}
	}
}

func TestParse_CRLF(t *testing.T) {
	doc := Parse("---\r\nartifact: crlf\r\nphase: impl\r\n---\r\n## Heading\r\nbody\r\n")
	if doc.Artifact != "crlf" || doc.Phase != models.PhaseImplementation {
		t.Errorf("got %q/%q", doc.Artifact, doc.Phase)
	}
	if body, ok := doc.Section("Heading"); !ok || body != "body" {
		t.Errorf("section body = %q", body)
	}
}

func TestParse_MultiLineInlineList(t *testing.T) {
	doc := Parse("---\ndepends-on: [\n  a.req,\n  \"b.req\"\n]\nversion: 2\n---\n")
	want := []string{"a.req", "b.req"}
	if !reflect.DeepEqual(doc.DependsOn(), want) {
		t.Errorf("depends-on = %v, want %v", doc.DependsOn(), want)
	}
	if doc.Metadata.Version != "2" {
		t.Errorf("version = %q", doc.Metadata.Version)
	}
}

func TestParse_ScalarDependsOn(t *testing.T) {
	doc := Parse("---\ndepends-on: a.req\n---\n")
	if !reflect.DeepEqual(doc.DependsOn(), []string{"a.req"}) {
		t.Errorf("depends-on = %v", doc.DependsOn())
	}
}

func TestParse_RepeatedSectionKeepsFirstPosition(t *testing.T) {
	doc := Parse("## A\none\n## B\ntwo\n## A\nthree\n")
	if len(doc.Sections) != 2 {
		t.Fatalf("sections = %v", doc.Sections)
	}
	if doc.Sections[0].Heading != "A" || doc.Sections[0].Body != "three" {
		t.Errorf("section[0] = %+v", doc.Sections[0])
	}
}

func TestParse_DeeperHeadingsAreNotSections(t *testing.T) {
	doc := Parse("## Top\n### Child\ntext\n##NoSpace\n")
	if len(doc.Sections) != 1 {
		t.Fatalf("sections = %v", doc.Sections)
	}
	if doc.Sections[0].Body != "### Child\ntext\n##NoSpace" {
		t.Errorf("body = %q", doc.Sections[0].Body)
	}
}

func TestParseFile_FileIdentityWins(t *testing.T) {
	raw := "---\nartifact: payments\nphase: requirement\n---\n"
	doc := ParseFile("design/payments.design.md", raw)
	if doc.Phase != models.PhaseDesign {
		t.Errorf("phase = %q, want design", doc.Phase)
	}
	if !doc.PhaseCorrected {
		t.Error("expected PhaseCorrected")
	}

	doc = ParseFile("requirements/ledger.req.md", "no front matter")
	if doc.Artifact != "ledger" || doc.Phase != models.PhaseRequirement {
		t.Errorf("got %q/%q", doc.Artifact, doc.Phase)
	}
}

func TestParseFile_NonConventionalName(t *testing.T) {
	doc := ParseFile("notes/readme.md", "---\nphase: impl\n---\n")
	if doc.Phase != models.PhaseImplementation || doc.PhaseCorrected {
		t.Errorf("phase = %q corrected=%v", doc.Phase, doc.PhaseCorrected)
	}
}

func TestScanMentions(t *testing.T) {
	cases := []struct {
		text string
		want []string
		bare []bool
	}{
		{"see @a.req and @b-2.impl", []string{"a.req", "b-2.impl"}, []bool{true, true}},
		{"qualified @a.req[v2]", []string{"a.req[v2]"}, []bool{false}},
		{"file requirements/a.req.md here", []string{"a.req.md"}, []bool{true}},
		{"@a.req.md counts once", []string{"a.req"}, []bool{true}},
		{"mail bob@a.req is not a mention", nil, nil},
		{"@a.requirement is not a tag", nil, nil},
	}
	for _, tc := range cases {
		got := ScanMentions(tc.text)
		if len(got) != len(tc.want) {
			t.Errorf("%q: got %d mentions, want %d", tc.text, len(got), len(tc.want))
			continue
		}
		for i := range got {
			if got[i].Raw != tc.want[i] || got[i].Bare != tc.bare[i] {
				t.Errorf("%q: mention[%d] = %q bare=%v", tc.text, i, got[i].Raw, got[i].Bare)
			}
		}
	}
}

func TestFrontMatterEntries_Positions(t *testing.T) {
	raw := "---\ndepends-on: [a.req, \"b.req\"]\nreferences:\n  - c.design\n---\n"
	entries := FrontMatterEntries(raw)
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	deps := entries[0].Items
	if len(deps) != 2 {
		t.Fatalf("items = %+v", deps)
	}
	if deps[0] != (Item{Text: "a.req", Line: 1, Column: 13}) {
		t.Errorf("item[0] = %+v", deps[0])
	}
	if deps[1] != (Item{Text: "b.req", Line: 1, Column: 21}) {
		t.Errorf("item[1] = %+v", deps[1])
	}
	refs := entries[1].Items
	if len(refs) != 1 || refs[0] != (Item{Text: "c.design", Line: 3, Column: 4}) {
		t.Errorf("references = %+v", refs)
	}
}

func TestReferenceRoundTrip(t *testing.T) {
	for _, s := range []string{"a.req", "pay-ments.design", "X1.impl"} {
		ref, err := models.ParseReference(s)
		if err != nil {
			t.Fatalf("ParseReference(%q): %v", s, err)
		}
		if ref.String() != s {
			t.Errorf("round trip %q -> %q", s, ref.String())
		}
	}
	for _, s := range []string{"a.req[extra]", "a.req.md", "a", ".req", "a.spec"} {
		if _, err := models.ParseReference(s); err == nil {
			t.Errorf("ParseReference(%q) should fail", s)
		}
	}
}

func TestStamp_RewritesExistingFrontMatter(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	raw := "---\nartifact: pay\nphase: requirement\nlast-updated: old\nowner: x\n---\nbody\n"
	got := Stamp(raw, models.Reference{Artifact: "pay", Phase: models.PhaseDesign}, now)
	want := "---\nartifact: pay\nphase: design\nlast-updated: 2025-03-04T05:06:07Z\nowner: x\n---\nbody\n"
	if got != want {
		t.Errorf("Stamp =\n%s\nwant\n%s", got, want)
	}
}

func TestStamp_InsertsMissingKeys(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	got := Stamp("---\nversion: 1\n---\n", models.Reference{Artifact: "pay", Phase: models.PhaseDesign}, now)
	doc := Parse(got)
	if doc.Artifact != "pay" || doc.Phase != models.PhaseDesign || doc.Metadata.Version != "1" {
		t.Errorf("stamped doc = %+v", doc.Metadata)
	}
	if doc.Metadata.LastUpdated != "2025-03-04T05:06:07Z" {
		t.Errorf("last-updated = %q", doc.Metadata.LastUpdated)
	}
}

func TestStamp_PrependsFrontMatter(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	got := Stamp("# Title\n", models.Reference{Artifact: "pay", Phase: models.PhaseImplementation}, now)
	doc := Parse(got)
	if !doc.HasFrontMatter || doc.Artifact != "pay" || doc.Phase != models.PhaseImplementation {
		t.Errorf("stamped doc = %+v", doc)
	}
	if !strings.HasSuffix(got, "---\n# Title\n") {
		t.Errorf("body not preserved: %q", got)
	}
}
