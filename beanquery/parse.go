/*
parse.go - Delimited evaluator output

PURPOSE:
  Splits the evaluator's comma-delimited stdout into field records and
  decodes them through a template. The parser leans tolerant:

    - a leading header row is recognized by name and skipped, but output
      without one still parses (a single bare data row yields one row)
    - quoted fields with embedded commas and quotes are handled
    - empty or unparseable output yields zero rows, never an error
    - individual rows that fail to decode are dropped, not fatal

SEE ALSO:
  - rows.go: the templates and decoders applied here
*/
package beanquery

import (
	"encoding/csv"
	"io"
	"strings"
)

// ParseRows splits raw delimited output into records, dropping a header
// row matching the expected column names and any blank records.
func ParseRows(raw string, columns []string) [][]string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	reader := csv.NewReader(strings.NewReader(trimmed))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Tolerate trailing garbage; keep what parsed cleanly.
			break
		}
		if isBlankRecord(record) {
			continue
		}
		records = append(records, record)
	}

	if len(records) > 0 && isHeader(records[0], columns) {
		records = records[1:]
	}
	return records
}

// decodeRows parses raw output and decodes each record through the
// template, dropping rows the decoder rejects.
func decodeRows(raw string, tpl template) []Row {
	records := ParseRows(raw, tpl.columns)
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		row, err := tpl.decode(record)
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// isHeader reports whether a record is the column-name header rather than
// data. Every expected column must appear, in order, case-insensitively.
func isHeader(record, columns []string) bool {
	if len(record) < len(columns) {
		return false
	}
	for i, col := range columns {
		if !strings.EqualFold(strings.TrimSpace(record[i]), col) {
			return false
		}
	}
	return true
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
