// Package parser turns raw specification documents into models.Document records.
//
// Parsing is total: malformed front matter, missing delimiters or garbage input
// degrade to the "unknown" artifact and the default phase, never to an error.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/speclink/internal/models"
)

const (
	delim = "---"

	KeyArtifact    = "artifact"
	KeyPhase       = "phase"
	KeyDependsOn   = "depends-on"
	KeyReferences  = "references"
	KeyVersion     = "version"
	KeyLastUpdated = "last-updated"
)

var clarifyRe = regexp.MustCompile(`\[AI-CLARIFY:([^\]]*)\]`)

// Parse parses raw document text without a file identity.
func Parse(raw string) *models.Document {
	lines := splitLines(raw)
	doc := &models.Document{
		Raw:      raw,
		Artifact: models.UnknownArtifact,
		Phase:    models.DefaultPhase,
	}

	fmStart, fmEnd, ok := FrontMatterBounds(lines)
	if ok {
		doc.HasFrontMatter = true
		doc.Metadata = parseFrontMatter(lines[fmStart+1 : fmEnd])
		doc.BodyLine = fmEnd + 1
		doc.Body = strings.Join(lines[fmEnd+1:], "\n")
	} else {
		doc.Body = strings.Join(lines, "\n")
	}

	if a := strings.TrimSpace(doc.Metadata.Artifact); a != "" {
		doc.Artifact = a
	}
	if ph, ok := models.ParsePhase(doc.Metadata.Phase); ok {
		doc.Phase = ph
	}

	doc.Sections = extractSections(doc.Body)
	doc.Clarifications = extractClarifications(doc.Body)
	for _, m := range ScanMentions(doc.Body) {
		doc.Mentions = append(doc.Mentions, models.Mention{Raw: m.Raw, Ref: m.Ref, Bare: m.Bare})
	}
	return doc
}

// ParseFile parses raw text that lives at path. When the file name follows the
// <artifact>.<tag>.md convention its phase is authoritative, and its artifact is
// used if the front matter names none.
func ParseFile(path, raw string) *models.Document {
	doc := Parse(raw)
	doc.Path = path

	ref, ok := models.ParseDocumentPath(path)
	if !ok {
		return doc
	}
	if strings.TrimSpace(doc.Metadata.Artifact) == "" {
		doc.Artifact = ref.Artifact
	}
	fmPhase, _ := models.ParsePhase(doc.Metadata.Phase)
	if fmPhase != ref.Phase {
		doc.PhaseCorrected = true
	}
	doc.Phase = ref.Phase
	return doc
}

// FrontMatterBounds returns the line indexes of the opening and closing delimiters.
// The opening delimiter must be the first line.
func FrontMatterBounds(lines []string) (start, end int, ok bool) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return 0, 0, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return 0, i, true
		}
	}
	return 0, 0, false
}

// splitLines splits on \n and drops a trailing \r from each line.
func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// SplitLines is the line splitting used for all span arithmetic.
func SplitLines(raw string) []string {
	return splitLines(raw)
}

// extractSections collects "## " sections. A repeated heading keeps its first
// position and takes the later body.
func extractSections(body string) []models.Section {
	var (
		out     []models.Section
		index   = make(map[string]int)
		current = -1
		buf     []string
	)
	flush := func() {
		if current < 0 {
			return
		}
		out[current].Body = strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
	}
	for _, line := range splitLines(body) {
		if strings.HasPrefix(line, "## ") {
			flush()
			heading := strings.TrimSpace(line[3:])
			if i, ok := index[heading]; ok {
				current = i
			} else {
				out = append(out, models.Section{Heading: heading})
				current = len(out) - 1
				index[heading] = current
			}
			continue
		}
		if current >= 0 {
			buf = append(buf, line)
		}
	}
	flush()
	return out
}

func extractClarifications(body string) []string {
	var out []string
	for _, m := range clarifyRe.FindAllStringSubmatch(body, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}
