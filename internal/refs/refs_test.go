package refs

import (
	"testing"

	"github.com/starford/speclink/internal/models"
)

const doc = `---
artifact: checkout
depends-on: [cart.req, "tax.req[v2]"]
references:
  - audit.design
---
## Notes
Calls @pricing.design then reads ledger.impl.md.
`

func TestExtract_Collections(t *testing.T) {
	set := Extract(doc)

	if len(set.DependsOn) != 2 {
		t.Fatalf("depends-on = %+v", set.DependsOn)
	}
	cart := set.DependsOn[0]
	if !cart.Bare || cart.Ref.String() != "cart.req" {
		t.Errorf("depends-on[0] = %+v", cart)
	}
	if cart.Span != (models.Span{Line: 2, Column: 13, Length: 8}) {
		t.Errorf("depends-on[0] span = %+v", cart.Span)
	}
	tax := set.DependsOn[1]
	if tax.Bare || tax.Raw != "tax.req[v2]" || tax.Ref.String() != "tax.req" {
		t.Errorf("depends-on[1] = %+v", tax)
	}
	if tax.Span != (models.Span{Line: 2, Column: 24, Length: 11}) {
		t.Errorf("depends-on[1] span = %+v", tax.Span)
	}

	if len(set.References) != 1 || set.References[0].Span != (models.Span{Line: 4, Column: 4, Length: 12}) {
		t.Errorf("references = %+v", set.References)
	}

	if len(set.Mentions) != 2 {
		t.Fatalf("mentions = %+v", set.Mentions)
	}
	if m := set.Mentions[0]; m.Ref.String() != "pricing.design" || m.Span != (models.Span{Line: 7, Column: 6, Length: 15}) {
		t.Errorf("mention[0] = %+v", m)
	}
	if m := set.Mentions[1]; m.Ref.String() != "ledger.impl" || m.Span.Line != 7 || m.Span.Column != 33 {
		t.Errorf("mention[1] = %+v", m)
	}
	if n := len(set.All()); n != 5 {
		t.Errorf("All() = %d, want 5", n)
	}
}

func TestExtract_ScalarEntry(t *testing.T) {
	set := Extract("---\ndepends-on: 'a.req'\n---\n")
	if len(set.DependsOn) != 1 {
		t.Fatalf("depends-on = %+v", set.DependsOn)
	}
	if got := set.DependsOn[0].Span; got != (models.Span{Line: 1, Column: 13, Length: 5}) {
		t.Errorf("span = %+v", got)
	}
}

func TestExtract_NoFrontMatter(t *testing.T) {
	set := Extract("plain @a.req text")
	if len(set.DependsOn) != 0 || len(set.References) != 0 {
		t.Errorf("unexpected front matter refs: %+v", set)
	}
	if len(set.Mentions) != 1 || set.Mentions[0].Span != (models.Span{Line: 0, Column: 6, Length: 6}) {
		t.Errorf("mentions = %+v", set.Mentions)
	}
}

func TestContextAt(t *testing.T) {
	raw := "---\nartifact: x\ndepends-on: [a.req, \nreferences:\n  - \n---\nText @pa\n"
	cases := []struct {
		name      string
		line, col int
		want      Context
	}{
		{"plain key", 1, 5, Context{InFrontMatter: true}},
		{"depends-on list", 2, 20, Context{InFrontMatter: true, Key: models.RelationDependsOn}},
		{"references block item", 4, 4, Context{InFrontMatter: true, Key: models.RelationReferences}},
		{"free text after sigil", 6, 8, Context{AfterSigil: true, Prefix: "pa"}},
		{"free text", 6, 3, Context{}},
		{"out of range", 42, 0, Context{}},
	}
	for _, tc := range cases {
		if got := ContextAt(raw, tc.line, tc.col); got != tc.want {
			t.Errorf("%s: ContextAt(%d,%d) = %+v, want %+v", tc.name, tc.line, tc.col, got, tc.want)
		}
	}
}
