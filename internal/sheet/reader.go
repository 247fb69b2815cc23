// Package sheet acquires the raw 2-D cell grid an import run consumes.
// CSV files are decoded here; binary workbook formats (.xlsx/.xls/.ods)
// are decoded by the caller's spreadsheet library and handed over as an
// already-extracted grid via NewGridFromRows.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest accepted source file, in bytes.
const MaxFileSize = 10 * 1024 * 1024 // 10 MiB

// SupportedExtensions is the fixed set of accepted file extensions.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls", ".ods"}

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = fmt.Errorf("file exceeds maximum size of %d bytes", MaxFileSize)
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Grid is a raw 2-D grid of string cells; the first row is the header.
type Grid struct {
	Rows [][]string
}

// NewGridFromRows wraps already-decoded rows (e.g. from a workbook
// decoder) as a Grid.
func NewGridFromRows(rows [][]string) *Grid {
	return &Grid{Rows: rows}
}

// IsSupportedExtension reports whether the filename's extension is in
// the accepted set (case-insensitive).
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// CheckConstraints validates filename and size against the static
// declared limits before any decoding is attempted.
func CheckConstraints(filename string, size int64) error {
	if !IsSupportedExtension(filename) {
		return fmt.Errorf("%w: %s (supported: %s)",
			ErrUnsupportedType, filepath.Ext(filename), strings.Join(SupportedExtensions, ", "))
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// ReadCSV decodes a CSV stream into a Grid. A UTF-8 BOM is stripped,
// quoting is lax, and rows may have varying field counts.
func ReadCSV(r io.Reader) (*Grid, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return &Grid{Rows: rows}, nil
}

// ReadFile opens and decodes a local CSV file, enforcing the declared
// size and extension constraints.
func ReadFile(path string) (*Grid, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := CheckConstraints(path, info.Size()); err != nil {
		return nil, err
	}
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return nil, fmt.Errorf("%w: only .csv files are decoded natively", ErrUnsupportedType)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(f)
}

// stripBOM removes a UTF-8 BOM from the start of a reader if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
