package importer

import (
	"strings"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
)

// ServiceBodyTable is an immutable snapshot of service bodies keyed by
// upper-cased world code. Phases never mutate a table in place; the
// reconciler merges its results into a new snapshot via WithCreated.
type ServiceBodyTable struct {
	byCode map[string]bmlt.ServiceBody
}

// NewServiceBodyTable builds a snapshot from the remote list. Bodies
// without a world code are unreachable from the spreadsheet and are
// skipped; on duplicate codes the first-seen body wins.
func NewServiceBodyTable(bodies []bmlt.ServiceBody) *ServiceBodyTable {
	byCode := make(map[string]bmlt.ServiceBody, len(bodies))
	for _, b := range bodies {
		code := strings.ToUpper(strings.TrimSpace(b.WorldID))
		if code == "" {
			continue
		}
		if _, seen := byCode[code]; !seen {
			byCode[code] = b
		}
	}
	return &ServiceBodyTable{byCode: byCode}
}

// Lookup resolves a world code case-insensitively.
func (t *ServiceBodyTable) Lookup(code string) (bmlt.ServiceBody, bool) {
	b, ok := t.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return b, ok
}

// Contains reports whether the code resolves.
func (t *ServiceBodyTable) Contains(code string) bool {
	_, ok := t.Lookup(code)
	return ok
}

// Len returns the number of resolvable codes.
func (t *ServiceBodyTable) Len() int {
	return len(t.byCode)
}

// WithCreated returns a new snapshot with the given bodies merged in.
// Newly created bodies overwrite on collision, since they are the ones
// the current run just resolved.
func (t *ServiceBodyTable) WithCreated(created []bmlt.ServiceBody) *ServiceBodyTable {
	byCode := make(map[string]bmlt.ServiceBody, len(t.byCode)+len(created))
	for code, b := range t.byCode {
		byCode[code] = b
	}
	for _, b := range created {
		code := strings.ToUpper(strings.TrimSpace(b.WorldID))
		if code == "" {
			continue
		}
		byCode[code] = b
	}
	return &ServiceBodyTable{byCode: byCode}
}

// FormatTable is an immutable snapshot of meeting formats keyed by
// upper-cased world code. Several formats may carry the same NAWS code,
// so a lookup yields every matching id.
type FormatTable struct {
	byCode map[string][]int
}

// NewFormatTable builds a snapshot from the remote format list.
func NewFormatTable(formats []bmlt.Format) *FormatTable {
	byCode := make(map[string][]int)
	for _, f := range formats {
		code := strings.ToUpper(strings.TrimSpace(f.WorldID))
		if code == "" {
			continue
		}
		byCode[code] = append(byCode[code], f.ID)
	}
	return &FormatTable{byCode: byCode}
}

// Lookup resolves a world code to all matching format ids; nil when the
// code is unknown.
func (t *FormatTable) Lookup(code string) []int {
	return t.byCode[strings.ToUpper(strings.TrimSpace(code))]
}

// LookupTables bundles the snapshots a mapping pass reads.
type LookupTables struct {
	ServiceBodies *ServiceBodyTable
	Formats       *FormatTable
}
