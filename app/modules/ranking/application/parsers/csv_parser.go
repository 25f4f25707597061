package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// CSVParser parses CSV match sheets.
type CSVParser struct {
	now func() time.Time
}

// NewCSVParser creates a new CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{now: time.Now}
}

// Parse parses CSV data into a ParsedSheet.
func (p *CSVParser) Parse(data []byte) (*ParsedSheet, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return buildSheet(records, p.now())
}
