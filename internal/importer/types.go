// Package importer implements the NAWS spreadsheet import pipeline:
// row validation and normalization, meeting mapping, service body
// reconciliation, and the batched submission engine.
package importer

import (
	"strings"
	"time"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
)

// Recognized NAWS export column names, lower-cased for matching.
const (
	colCommittee          = "committee"
	colCommitteeName      = "committeename"
	colAddDate            = "adddate"
	colAreaRegion         = "arearegion"
	colParentName         = "parentname"
	colDay                = "day"
	colTime               = "time"
	colPlace              = "place"
	colAddress            = "address"
	colCity               = "city"
	colLocBorough         = "locborough"
	colState              = "state"
	colZip                = "zip"
	colCountry            = "country"
	colDirections         = "directions"
	colClosed             = "closed"
	colFormat1            = "format1"
	colFormat2            = "format2"
	colFormat3            = "format3"
	colFormat4            = "format4"
	colFormat5            = "format5"
	colDelete             = "delete"
	colWheelChr           = "wheelchr"
	colUnpublished        = "unpublished"
	colVirtualMeetingLink = "virtualmeetinglink"
	colPhoneMeetingNumber = "phonemeetingnumber"
	colLongitude          = "longitude"
	colLatitude           = "latitude"
)

// requiredColumns must all be present in the header row.
var requiredColumns = []string{colCommitteeName, colAreaRegion, colDay, colTime}

// recognizedColumns is every column the normalizer carries through.
var recognizedColumns = []string{
	colCommittee, colCommitteeName, colAddDate, colAreaRegion, colParentName,
	colDay, colTime, colPlace, colAddress, colCity, colLocBorough, colState,
	colZip, colCountry, colDirections, colClosed, colFormat1, colFormat2,
	colFormat3, colFormat4, colFormat5, colDelete, colWheelChr, colUnpublished,
	colVirtualMeetingLink, colPhoneMeetingNumber, colLongitude, colLatitude,
}

// Record is one normalized spreadsheet row. Every recognized column is
// present as a trimmed string; a column absent from the sheet is simply
// empty. RowNumber is the 1-based row in the source file including the
// header, so the first data row is 2.
type Record struct {
	RowNumber int

	Committee          string
	Name               string
	AddDate            string
	AreaRegion         string
	ParentName         string
	Day                string
	Time               string
	Place              string
	Address            string
	City               string
	Borough            string
	State              string
	Zip                string
	Country            string
	Directions         string
	Closed             string
	Format1            string
	Format2            string
	Format3            string
	Format4            string
	Format5            string
	Delete             string
	Wheelchair         string
	Unpublished        string
	VirtualMeetingLink string
	PhoneMeetingNumber string
	Longitude          string
	Latitude           string
}

// IsDeleteFlagged reports whether the row is marked for deletion at
// NAWS ("D") and must be excluded from all processing.
func (r Record) IsDeleteFlagged() bool {
	return strings.EqualFold(strings.TrimSpace(r.Delete), "D")
}

// HasRequiredFields reports whether the four fields every submittable
// meeting needs are all non-empty.
func (r Record) HasRequiredFields() bool {
	return r.Name != "" && r.AreaRegion != "" && r.Day != "" && r.Time != ""
}

// FormatColumns returns the format-bearing cell values in fixed column
// order, including empties.
func (r Record) FormatColumns() []string {
	return []string{r.Closed, r.Format1, r.Format2, r.Format3, r.Format4, r.Format5}
}

// ParseResult is the output of grid validation/normalization.
type ParseResult struct {
	Records   []Record
	TotalRows int
	ValidRows int
	Errors    []string
	Warnings  []string
}

// Phase identifies a stage of the import pipeline.
type Phase string

const (
	PhaseParsing        Phase = "parsing"
	PhaseServerConfig   Phase = "server_config"
	PhaseMappingSetup   Phase = "mapping_setup"
	PhaseReconciliation Phase = "service_body_reconciliation"
	PhaseDuplicateCheck Phase = "duplicate_check"
	PhaseSubmission     Phase = "submission"
	PhaseCompleted      Phase = "completed"
	PhaseError          Phase = "error"
)

// ProgressEvent is one step of the phased progress stream.
type ProgressEvent struct {
	Phase      Phase  `json:"phase"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"total_steps"`
	Message    string `json:"message"`
	Percent    int    `json:"percent"`
}

// ProgressFunc receives progress events. Phase transitions are always
// reported; finer-grained events are best-effort.
type ProgressFunc func(ProgressEvent)

// ImportOutcome aggregates a full run. Counts are always exact; the
// CreatedMeetings and Errors lists are capped so a large file cannot
// retain thousands of payloads in memory — detail past the cap is
// deliberately dropped while the counters keep counting.
type ImportOutcome struct {
	Processed            int           `json:"processed"`
	Succeeded            int           `json:"succeeded"`
	Failed               int           `json:"failed"`
	Skipped              int           `json:"skipped"`
	ServiceBodiesCreated int           `json:"service_bodies_created"`
	CreatedMeetings      []bmlt.Meeting `json:"created_meetings,omitempty"`
	Errors               []string      `json:"errors,omitempty"`
	Warnings             []string      `json:"warnings,omitempty"`
	Duration             time.Duration `json:"duration_ns"`
	Success              bool          `json:"success"`
}
