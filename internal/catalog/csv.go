package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"google.golang.org/api/iterator"
)

// WriteCSV writes a header of the iterator's fields followed by one record
// per row, and returns the number of rows written.
func WriteCSV(w io.Writer, rows RowIterator) (int, error) {
	out := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	fields := rows.Fields()
	if err := out.Write(fields); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	n := 0
	record := make([]string, len(fields))
	for {
		row, err := rows.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			out.Flush()
			return n, err
		}
		for i, f := range fields {
			record[i] = row[f]
		}
		if err := out.Write(record); err != nil {
			return n, fmt.Errorf("failed to write CSV row: %w", err)
		}
		n++
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return n, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return n, nil
}

// ReadCSV parses rows written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	records, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read product CSV: %w", err)
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(rec))
	}
	return rows, nil
}

// SliceRows iterates over rows already in memory.
func SliceRows(fields []string, rows []Row) RowIterator {
	return &sliceRows{fields: fields, rows: rows}
}

type sliceRows struct {
	fields []string
	rows   []Row
}

func (s *sliceRows) Fields() []string { return s.fields }

func (s *sliceRows) Next() (Row, error) {
	if len(s.rows) == 0 {
		return nil, iterator.Done
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row, nil
}
