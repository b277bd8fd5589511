package importer

import (
	"encoding/csv"
	"io"
	"strings"

	"campusconnect/internal/apperr"
)

// Row is one data line of an upload, keyed by normalized header name.
// Line is the 1-based data row number (header excluded), used in error
// reporting so users can find the offending line.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns a trimmed cell value, empty when the column is absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r.Values[col])
}

// readRows parses a CSV upload into header-keyed rows. Header names are
// lowercased and trimmed so "Student_ID" and "student_id" match.
func readRows(src io.Reader) ([]string, []Row, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, apperr.NewValidationError("file is empty")
	}
	if err != nil {
		return nil, nil, apperr.NewValidationError("malformed CSV: " + err.Error())
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []Row
	line := 0
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperr.NewValidationError("malformed CSV: " + err.Error())
		}
		line++
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(cells) {
				values[col] = cells[i]
			}
		}
		rows = append(rows, Row{Line: line, Values: values})
	}
	return header, rows, nil
}

// checkColumns verifies every required column is present in the header,
// honoring alternates ("employee_id" or "faculty_id"). The first missing
// column aborts the batch by name.
func checkColumns(header []string, required [][]string) error {
	have := make(map[string]bool, len(header))
	for _, col := range header {
		have[col] = true
	}
	for _, alternates := range required {
		found := false
		for _, col := range alternates {
			if have[col] {
				found = true
				break
			}
		}
		if !found {
			name := strings.Join(alternates, " or ")
			return apperr.NewValidationError("missing required column: "+name,
				apperr.FieldError{Field: alternates[0], Error: "column missing"})
		}
	}
	return nil
}
