package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bmlt-tools/naws-importer/internal/sheet"
)

// ParseGrid validates and normalizes a raw cell grid. The first row is
// the header; matching is case-insensitive and ignores surrounding
// whitespace. Missing required columns abort with a single error naming
// all of them. Bad cell data never aborts — it becomes row-tagged
// warnings, and only a file with zero valid rows is a hard error.
func ParseGrid(grid *sheet.Grid) *ParseResult {
	result := &ParseResult{}

	if grid == nil || len(grid.Rows) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	colIndex := indexHeader(grid.Rows[0])

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", ")))
		return result
	}

	dataRows := grid.Rows[1:]
	result.TotalRows = len(dataRows)

	for i, row := range dataRows {
		if isEmptyRow(row) {
			continue
		}

		// 1-based row number in the file, header included.
		rowNum := i + 2
		rec := normalizeRow(row, colIndex, rowNum)

		if rec.IsDeleteFlagged() {
			continue
		}

		valid := true
		if rec.Name == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Row %d: missing meeting name", rowNum))
			valid = false
		}
		if rec.AreaRegion == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Row %d: missing service body code", rowNum))
			valid = false
		}
		if rec.Day == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Row %d: missing weekday", rowNum))
			valid = false
		} else if !IsValidWeekday(rec.Day) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Row %d: unrecognized weekday %q", rowNum, rec.Day))
		}
		if rec.Time == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Row %d: missing start time", rowNum))
			valid = false
		} else if _, ok := ParseTime(rec.Time); !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Row %d: unparsable start time %q", rowNum, rec.Time))
		}

		checkCoordinate(result, rowNum, "longitude", rec.Longitude, -180, 180)
		checkCoordinate(result, rowNum, "latitude", rec.Latitude, -90, 90)

		if valid {
			result.ValidRows++
		}
		result.Records = append(result.Records, rec)
	}

	if result.ValidRows == 0 {
		result.Errors = append(result.Errors,
			"No valid meeting rows found in file")
	}

	return result
}

var recognizedSet = func() map[string]bool {
	set := make(map[string]bool, len(recognizedColumns))
	for _, col := range recognizedColumns {
		set[col] = true
	}
	return set
}()

// indexHeader maps normalized recognized column names to their position.
// Columns the importer doesn't know are ignored; the first occurrence of
// a duplicated header wins.
func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if !recognizedSet[key] {
			continue
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// cell fetches a trimmed cell by column name; absent columns and short
// rows both read as empty, so downstream code never distinguishes the
// two.
func cell(row []string, colIndex map[string]int, col string) string {
	pos, ok := colIndex[col]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

func normalizeRow(row []string, colIndex map[string]int, rowNum int) Record {
	return Record{
		RowNumber:          rowNum,
		Committee:          cell(row, colIndex, colCommittee),
		Name:               cell(row, colIndex, colCommitteeName),
		AddDate:            cell(row, colIndex, colAddDate),
		AreaRegion:         cell(row, colIndex, colAreaRegion),
		ParentName:         cell(row, colIndex, colParentName),
		Day:                cell(row, colIndex, colDay),
		Time:               cell(row, colIndex, colTime),
		Place:              cell(row, colIndex, colPlace),
		Address:            cell(row, colIndex, colAddress),
		City:               cell(row, colIndex, colCity),
		Borough:            cell(row, colIndex, colLocBorough),
		State:              cell(row, colIndex, colState),
		Zip:                cell(row, colIndex, colZip),
		Country:            cell(row, colIndex, colCountry),
		Directions:         cell(row, colIndex, colDirections),
		Closed:             cell(row, colIndex, colClosed),
		Format1:            cell(row, colIndex, colFormat1),
		Format2:            cell(row, colIndex, colFormat2),
		Format3:            cell(row, colIndex, colFormat3),
		Format4:            cell(row, colIndex, colFormat4),
		Format5:            cell(row, colIndex, colFormat5),
		Delete:             cell(row, colIndex, colDelete),
		Wheelchair:         cell(row, colIndex, colWheelChr),
		Unpublished:        cell(row, colIndex, colUnpublished),
		VirtualMeetingLink: cell(row, colIndex, colVirtualMeetingLink),
		PhoneMeetingNumber: cell(row, colIndex, colPhoneMeetingNumber),
		Longitude:          cell(row, colIndex, colLongitude),
		Latitude:           cell(row, colIndex, colLatitude),
	}
}

// checkCoordinate warns on non-blank coordinates that fail to parse or
// fall outside [min, max]. Warnings only — the mapper substitutes
// defaults later.
func checkCoordinate(result *ParseResult, rowNum int, name, raw string, min, max float64) {
	if raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Row %d: unparsable %s %q", rowNum, name, raw))
		return
	}
	if v < min || v > max {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Row %d: %s %s out of range [%g, %g]", rowNum, name, raw, min, max))
	}
}
