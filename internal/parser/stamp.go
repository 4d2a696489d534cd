package parser

import (
	"strings"
	"time"

	"github.com/starford/speclink/internal/models"
)

// TimestampLayout is the format written to the last-updated key.
const TimestampLayout = time.RFC3339

// Stamp rewrites the front matter of raw for an edit made at now: last-updated is
// replaced (or added), phase is forced to ref.Phase and artifact is added when
// missing. Every other line is preserved. Text without front matter gets a new
// block prepended.
func Stamp(raw string, ref models.Reference, now time.Time) string {
	stamp := now.UTC().Format(TimestampLayout)
	lines := splitLines(raw)
	start, end, ok := FrontMatterBounds(lines)
	if !ok {
		header := []string{
			delim,
			KeyArtifact + ": " + ref.Artifact,
			KeyPhase + ": " + string(ref.Phase),
			KeyLastUpdated + ": " + stamp,
			delim,
		}
		if raw == "" {
			return strings.Join(header, "\n") + "\n"
		}
		return strings.Join(header, "\n") + "\n" + raw
	}

	var (
		seenArtifact, seenPhase, seenStamp bool
		out                                = make([]string, 0, len(lines)+3)
	)
	out = append(out, lines[:start+1]...)
	for _, line := range lines[start+1 : end] {
		switch lineKey(line) {
		case KeyArtifact:
			seenArtifact = true
			if strings.TrimSpace(unquote(lineValue(line))) == "" && ref.Artifact != "" {
				line = KeyArtifact + ": " + ref.Artifact
			}
		case KeyPhase:
			seenPhase = true
			if ref.Phase.Valid() {
				if ph, ok := models.ParsePhase(unquote(lineValue(line))); !ok || ph != ref.Phase {
					line = KeyPhase + ": " + string(ref.Phase)
				}
			}
		case KeyLastUpdated:
			seenStamp = true
			line = KeyLastUpdated + ": " + stamp
		}
		out = append(out, line)
	}
	if !seenArtifact && ref.Artifact != "" {
		out = append(out, KeyArtifact+": "+ref.Artifact)
	}
	if !seenPhase && ref.Phase.Valid() {
		out = append(out, KeyPhase+": "+string(ref.Phase))
	}
	if !seenStamp {
		out = append(out, KeyLastUpdated+": "+stamp)
	}
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n")
}

func lineKey(line string) string {
	i := strings.Index(line, ":")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[:i])
}

func lineValue(line string) string {
	i := strings.Index(line, ":")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+1:])
}
