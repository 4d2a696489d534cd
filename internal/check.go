package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/specservice"
)

// Report formats accepted by Check.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrFindings is returned by Check when the workspace has diagnostics.
var ErrFindings = errors.New("validation findings reported")

// Check validates the whole workspace once and writes the diagnostics to out.
// It returns ErrFindings when any document has a finding.
func Check(ctx context.Context, out io.Writer, format string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	eng, err := newEngine(app.config, logger, false)
	if err != nil {
		return err
	}
	defer eng.Close()

	rep, err := eng.svc.ValidateAll(ctx)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if err := writeReport(out, format, rep); err != nil {
		return err
	}
	if rep.Total > 0 {
		return ErrFindings
	}
	return nil
}

type reportFinding struct {
	Path     string           `json:"path" yaml:"path"`
	Line     int              `json:"line" yaml:"line"`
	Column   int              `json:"column" yaml:"column"`
	Code     models.IssueKind `json:"code" yaml:"code"`
	Severity models.Severity  `json:"severity" yaml:"severity"`
	Message  string           `json:"message" yaml:"message"`
}

type reportDoc struct {
	RunID     string          `json:"run_id" yaml:"run_id"`
	Documents int             `json:"documents" yaml:"documents"`
	Total     int             `json:"total" yaml:"total"`
	Findings  []reportFinding `json:"findings" yaml:"findings"`
}

// findings flattens rep in path order. Lines and columns are 1-based.
func findings(rep *specservice.Report) []reportFinding {
	paths := make([]string, 0, len(rep.Diagnostics))
	for p := range rep.Diagnostics {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := []reportFinding{}
	for _, p := range paths {
		for _, d := range rep.Diagnostics[p] {
			out = append(out, reportFinding{
				Path:     p,
				Line:     d.Range.Start.Line + 1,
				Column:   d.Range.Start.Character + 1,
				Code:     d.Code,
				Severity: d.Severity,
				Message:  d.Message,
			})
		}
	}
	return out
}

func writeReport(w io.Writer, format string, rep *specservice.Report) error {
	doc := reportDoc{RunID: rep.RunID, Documents: rep.Documents, Total: rep.Total, Findings: findings(rep)}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		for _, f := range doc.Findings {
			if _, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s [%s]\n", f.Path, f.Line, f.Column, f.Severity, f.Message, f.Code); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%d documents, %d findings\n", doc.Documents, doc.Total)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
