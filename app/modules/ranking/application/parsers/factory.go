package parsers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Parser defines the interface for match sheet parsers.
type Parser interface {
	Parse(data []byte) (*ParsedSheet, error)
}

// ParserFactory defines the interface for creating parsers.
type ParserFactory interface {
	GetParser(filename string) (Parser, error)
}

// Factory creates the appropriate parser based on file extension.
type Factory struct {
	now func() time.Time
}

// NewFactory creates a new parser factory. Relative dates such as
// "yesterday 6pm" are resolved against the wall clock.
func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

// GetParser returns the appropriate parser for the given filename.
func (f *Factory) GetParser(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".csv":
		return &CSVParser{now: f.now}, nil
	case ".xlsx":
		return &XLSXParser{now: f.now}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %q", ext)
	}
}
