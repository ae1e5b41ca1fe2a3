package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// forEachRow streams a CSV file row by row, calling fn for every data row
// after the header. Rows with a deviating field count pass through
// (FieldsPerRecord is disabled); rows the csv package cannot parse at all
// are skipped. A non-nil error from fn aborts the file.
func forEachRow(data []byte, fn func(index map[string]int, header, row []string) error) error {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file has no header row")
		}
		return fmt.Errorf("failed to read header row: %w", err)
	}
	index := headerIndex(header)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return fmt.Errorf("failed to read row: %w", err)
		}
		if err := fn(index, header, row); err != nil {
			return err
		}
	}
}
