package syncer

import (
	"sort"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
)

// Finding is one problem found in a document without touching the store.
type Finding struct {
	Path    string            `json:"path"`
	Kind    schema.Kind       `json:"kind,omitempty"`
	Alias   string            `json:"alias,omitempty"`
	Class   engine.ErrorClass `json:"class"`
	Message string            `json:"message"`
}

// ValidationReport lists the findings for a directory of documents.
type ValidationReport struct {
	Documents int       `json:"documents"`
	Findings  []Finding `json:"findings"`
}

// OK reports whether no problems were found.
func (r *ValidationReport) OK() bool {
	return len(r.Findings) == 0
}

// Validate decodes every document below dir, checks its shape and checks
// that the batch can be ordered (no duplicates, no inheritance cycles).
func Validate(dir string) (*ValidationReport, error) {
	sources, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return ValidateSources(sources), nil
}

// ValidateSources validates already loaded documents.
func ValidateSources(sources []Source) *ValidationReport {
	report := &ValidationReport{Documents: len(sources)}

	var (
		docs  []*document.Document
		paths []string
	)
	for _, src := range sources {
		if src.Err != nil || src.Doc == nil {
			msg := "document is empty"
			if src.Err != nil {
				msg = src.Err.Error()
			}
			report.Findings = append(report.Findings, Finding{
				Path:    src.Path,
				Class:   engine.ErrorClassParseFailure,
				Message: msg,
			})
			continue
		}

		for _, e := range document.CheckShape(src.Doc) {
			report.Findings = append(report.Findings, Finding{
				Path:    src.Path,
				Kind:    src.Doc.Kind,
				Alias:   src.Doc.Alias(),
				Class:   engine.ErrorClassMalformedDocument,
				Message: e.Error(),
			})
		}
		docs = append(docs, src.Doc)
		paths = append(paths, src.Path)
	}

	order := engine.BuildImportOrder(docs)
	for i, err := range order.Rejected {
		report.Findings = append(report.Findings, Finding{
			Path:    paths[i],
			Kind:    docs[i].Kind,
			Alias:   docs[i].Alias(),
			Class:   engine.ClassOf(err),
			Message: err.Error(),
		})
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		if report.Findings[i].Path != report.Findings[j].Path {
			return report.Findings[i].Path < report.Findings[j].Path
		}
		return report.Findings[i].Message < report.Findings[j].Message
	})
	return report
}
