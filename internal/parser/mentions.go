package parser

import (
	"regexp"
	"sort"

	"github.com/starford/speclink/internal/models"
)

// Sigil introduces an inline mention: "@payments.req".
const Sigil = '@'

var (
	sigilMentionRe = regexp.MustCompile(`@([A-Za-z0-9-]+)\.(req|design|impl)\b(\[[^\]\n]*\])?`)
	fileMentionRe  = regexp.MustCompile(`([A-Za-z0-9-]+)\.(req|design|impl)\.md\b`)
)

// MentionMatch is a mention with byte offsets into the scanned text.
type MentionMatch struct {
	Start int
	End   int
	Raw   string
	Ref   models.Reference
	Bare  bool
}

// ScanMentions finds "@artifact.tag" and "artifact.tag.md" tokens in text, in
// order of appearance. A bracketed suffix on the sigil form is kept in Raw and
// marks the mention as not bare.
func ScanMentions(text string) []MentionMatch {
	var out []MentionMatch
	for _, m := range sigilMentionRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > 0 && isWordByte(text[m[0]-1]) {
			continue
		}
		ph, _ := models.PhaseFromTag(text[m[4]:m[5]])
		out = append(out, MentionMatch{
			Start: m[0],
			End:   m[1],
			Raw:   text[m[0]+1 : m[1]],
			Ref:   models.Reference{Artifact: text[m[2]:m[3]], Phase: ph},
			Bare:  m[6] < 0,
		})
	}
	sigils := len(out)
	for _, m := range fileMentionRe.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(out[:sigils], m[0], m[1]) {
			continue
		}
		if m[0] > 0 && text[m[0]-1] == Sigil {
			continue
		}
		ph, _ := models.PhaseFromTag(text[m[4]:m[5]])
		out = append(out, MentionMatch{
			Start: m[0],
			End:   m[1],
			Raw:   text[m[0]:m[1]],
			Ref:   models.Reference{Artifact: text[m[2]:m[3]], Phase: ph},
			Bare:  true,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func overlaps(ms []MentionMatch, start, end int) bool {
	for _, m := range ms {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b == '-' || b == '.' ||
		('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
