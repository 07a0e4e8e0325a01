package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	dErrors "nutridash/pkg/domain-errors"
)

// Row is one data row keyed by header name.
type Row map[string]string

// Table is a parsed upload. Skipped counts data rows dropped because their
// field count did not match the header.
type Table struct {
	Header  []string
	Rows    []Row
	Skipped int
}

// ParseCSV reads a header row followed by data rows.
func ParseCSV(r io.Reader) ([]Row, error) {
	t, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return t.Rows, nil
}

// Parse is ParseCSV with the header and skip count kept. Blank rows are
// ignored, a UTF-8 BOM before the first header is stripped and header names
// are trimmed.
func Parse(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, dErrors.New(dErrors.CodeBadRequest, "file has no header row")
		}
		return Table{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read header row")
	}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[i] = strings.TrimSpace(name)
	}

	t := Table{Header: header}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return Table{}, dErrors.Wrap(err, dErrors.CodeBadRequest,
					fmt.Sprintf("malformed CSV at line %d", perr.Line))
			}
			return Table{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read CSV")
		}
		if blank(fields) {
			continue
		}
		if len(fields) != len(header) {
			t.Skipped++
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			row[name] = fields[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
