package export

import (
	"bytes"
	"fmt"
	"strings"
)

// Table defines ordered tabular export content. Rows are positional and must
// align with Columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// CSVExporter renders tables into CSV bytes. Every value is double-quoted
// and internal quotes are doubled, so downstream spreadsheet imports never
// misparse free-text fields containing commas or newlines.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the table.
func (e *CSVExporter) Render(data Table) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	writeRow(buf, data.Columns)
	for i, row := range data.Rows {
		if len(row) != len(data.Columns) {
			return nil, fmt.Errorf("csv row %d has %d values, want %d", i, len(row), len(data.Columns))
		}
		writeRow(buf, row)
	}
	return buf.Bytes(), nil
}

func writeRow(buf *bytes.Buffer, values []string) {
	for i, value := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(value, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}
