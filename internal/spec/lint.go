package spec

import (
	"encoding/json"

	"github.com/pb33f/libopenapi"
)

// LintReport summarises a document as seen by a second, independent parser.
type LintReport struct {
	Version            string   `json:"version"`
	Paths              int      `json:"paths"`
	Operations         int      `json:"operations"`
	SecuritySchemes    []string `json:"securitySchemes,omitempty"`
	ModelErrors        []string `json:"modelErrors,omitempty"`
	ResolveErrors      []string `json:"resolveErrors,omitempty"`
	CircularReferences []string `json:"circularReferences,omitempty"`
}

// OK reports whether the document built and resolved without errors.
// Circular references alone are not errors; the importer cuts them.
func (r *LintReport) OK() bool {
	return len(r.ModelErrors) == 0 && len(r.ResolveErrors) == 0
}

// Lint runs the importer's structural checks and then builds the document
// with libopenapi, collecting model and reference resolution problems.
// Swagger 2 input is linted in its converted OpenAPI 3 form.
func Lint(raw []byte) (*LintReport, error) {
	pd, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	content := raw
	if pd.Version == 2 {
		content, err = json.Marshal(pd.Doc)
		if err != nil {
			return nil, newSpecError(ConversionError, err, "lint: encode converted document: %v", err)
		}
	}

	d, err := libopenapi.NewDocument(content)
	if err != nil {
		return nil, newSpecError(ParseError, err, "lint: failed to create document: %v", err)
	}
	report := &LintReport{Version: d.GetVersion()}

	model, modelErrors := d.BuildV3Model()
	for _, e := range modelErrors {
		report.ModelErrors = append(report.ModelErrors, e.Error())
	}
	if model == nil {
		return report, nil
	}

	if model.Model.Paths != nil && model.Model.Paths.PathItems != nil {
		for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
			report.Paths++
			if ops := pair.Value().GetOperations(); ops != nil {
				for op := ops.First(); op != nil; op = op.Next() {
					report.Operations++
				}
			}
		}
	}
	if model.Model.Components != nil && model.Model.Components.SecuritySchemes != nil {
		for pair := model.Model.Components.SecuritySchemes.First(); pair != nil; pair = pair.Next() {
			report.SecuritySchemes = append(report.SecuritySchemes, pair.Key())
		}
	}

	if model.Index != nil && model.Index.GetResolver() != nil {
		for _, re := range model.Index.GetResolver().Resolve() {
			if re.CircularReference != nil {
				report.CircularReferences = append(report.CircularReferences, re.Error())
				continue
			}
			report.ResolveErrors = append(report.ResolveErrors, re.Error())
		}
	}
	return report, nil
}
