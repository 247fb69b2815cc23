package importer

import (
	"fmt"
	"strings"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
)

// wheelchairFormatCode is the NAWS code resolved when the WheelChr
// column is truthy.
const wheelchairFormatCode = "WCHR"

// defaultMeetingDuration is assigned to every imported meeting; NAWS
// exports carry no duration column.
const defaultMeetingDuration = "01:00"

// MapperDefaults supplies fallback values for fields the spreadsheet
// may leave blank.
type MapperDefaults struct {
	Latitude  float64
	Longitude float64
}

// MapRecord maps one normalized record to a meeting create request
// using the given lookup snapshots. It re-checks the delete flag and
// required fields so it is safe to call standalone with any table
// generation. A delete-flagged row maps to nothing, silently; a missing
// required field or unresolvable service body is a row-tagged error and
// no request; unresolved format codes are warnings and are omitted.
// The mapping is total: it either returns a complete request or none.
func MapRecord(rec Record, tables LookupTables, defaults MapperDefaults) (req *bmlt.MeetingCreate, errs []string, warns []string) {
	defer func() {
		if r := recover(); r != nil {
			req = nil
			errs = append(errs, fmt.Sprintf("Row %d: internal mapping error: %v", rec.RowNumber, r))
		}
	}()

	if rec.IsDeleteFlagged() {
		return nil, nil, nil
	}
	if !rec.HasRequiredFields() {
		return nil, []string{fmt.Sprintf(
			"Row %d: missing required field(s); name, service body code, weekday and start time are all required",
			rec.RowNumber)}, nil
	}

	body, ok := tables.ServiceBodies.Lookup(rec.AreaRegion)
	if !ok {
		return nil, []string{fmt.Sprintf(
			"Row %d: Service body not found for code '%s'", rec.RowNumber, rec.AreaRegion)}, nil
	}

	formatIDs, formatWarns := resolveFormats(rec, tables.Formats)
	warns = append(warns, formatWarns...)

	return &bmlt.MeetingCreate{
		ServiceBodyID:          body.ID,
		FormatIDs:              formatIDs,
		VenueType:              classifyVenue(rec),
		Day:                    MapDayToBMLT(rec.Day),
		StartTime:              FormatTimeForBMLT(rec.Time),
		Duration:               defaultMeetingDuration,
		Name:                   rec.Name,
		WorldID:                rec.Committee,
		Latitude:               ParseCoordinate(rec.Latitude, defaults.Latitude),
		Longitude:              ParseCoordinate(rec.Longitude, defaults.Longitude),
		Published:              !isTruthy(rec.Unpublished),
		LocationInfo:           joinLocation(rec.Place, rec.Directions),
		LocationStreet:         rec.Address,
		LocationCitySubsection: rec.Borough,
		LocationMunicipality:   rec.City,
		LocationProvince:       rec.State,
		LocationPostalCode:     rec.Zip,
		LocationNation:         rec.Country,
		VirtualMeetingLink:     rec.VirtualMeetingLink,
		PhoneMeetingNumber:     rec.PhoneMeetingNumber,
	}, nil, warns
}

// resolveFormats looks up every format-bearing column plus the
// wheelchair flag, dropping codes the server doesn't know with a
// warning. A code resolving to several formats contributes all of them;
// the final set is deduplicated in first-contribution order.
func resolveFormats(rec Record, formats *FormatTable) ([]int, []string) {
	codes := make([]string, 0, 7)
	for _, c := range rec.FormatColumns() {
		if c != "" {
			codes = append(codes, c)
		}
	}
	if isTruthy(rec.Wheelchair) {
		codes = append(codes, wheelchairFormatCode)
	}

	var warns []string
	seen := make(map[int]bool)
	var ids []int
	for _, code := range codes {
		resolved := formats.Lookup(code)
		if len(resolved) == 0 {
			warns = append(warns, fmt.Sprintf("Row %d: unknown format code '%s'", rec.RowNumber, code))
			continue
		}
		for _, id := range resolved {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, warns
}

// classifyVenue derives the venue type. A non-blank street address is
// the only physical-location signal — a city alone does not count. A
// virtual link or phone number is the virtual signal. In-Person is the
// default even when no location data exists at all.
func classifyVenue(rec Record) int {
	hasPhysical := strings.TrimSpace(rec.Address) != ""
	hasVirtual := strings.TrimSpace(rec.VirtualMeetingLink) != "" ||
		strings.TrimSpace(rec.PhoneMeetingNumber) != ""

	switch {
	case hasPhysical && hasVirtual:
		return bmlt.VenueTypeHybrid
	case hasVirtual:
		return bmlt.VenueTypeVirtual
	default:
		return bmlt.VenueTypeInPerson
	}
}

// joinLocation comma-joins the non-empty parts, room first.
func joinLocation(room, directions string) string {
	var parts []string
	if strings.TrimSpace(room) != "" {
		parts = append(parts, strings.TrimSpace(room))
	}
	if strings.TrimSpace(directions) != "" {
		parts = append(parts, strings.TrimSpace(directions))
	}
	return strings.Join(parts, ", ")
}
