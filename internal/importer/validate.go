package importer

import "github.com/bmlt-tools/naws-importer/internal/sheet"

// previewRowLimit caps how many parsed records a validation preview
// carries back to the caller.
const previewRowLimit = 5

// ValidationReport is the result of a dry-run check of a spreadsheet.
// It never touches the root server.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Preview  Preview  `json:"preview"`
}

// Preview summarizes what an import of the file would attempt.
type Preview struct {
	TotalRows int      `json:"totalRows"`
	ValidRows int      `json:"validRows"`
	Samples   []Record `json:"samples,omitempty"`
}

// ValidateFile parses and validates a grid without submitting anything.
// It is the same validation the import pipeline runs, so a file that
// validates clean here will reach the submission phase unchanged.
func ValidateFile(grid *sheet.Grid) *ValidationReport {
	parsed := ParseGrid(grid)

	report := &ValidationReport{
		Valid:    len(parsed.Errors) == 0,
		Errors:   parsed.Errors,
		Warnings: parsed.Warnings,
		Preview: Preview{
			TotalRows: parsed.TotalRows,
			ValidRows: parsed.ValidRows,
		},
	}

	limit := previewRowLimit
	if len(parsed.Records) < limit {
		limit = len(parsed.Records)
	}
	report.Preview.Samples = parsed.Records[:limit]

	return report
}
