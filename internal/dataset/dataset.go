// Package dataset holds the tabular records the pipeline ingests, trains on and
// scores. The first column is a record identifier and the last column is the
// binary label; everything in between is a numeric feature.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Dataset keeps cells as strings so merges and duplicate checks are exact.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// ErrSchema reports a dataset that cannot be split into id, features and label.
var ErrSchema = errors.New("dataset schema")

// IsMissing reports whether a cell counts as a missing value.
func IsMissing(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "NA", "NaN", "nan", "N/A", "null":
		return true
	}
	return false
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// FeatureColumns returns every column except the identifier and the label.
func (d *Dataset) FeatureColumns() []string {
	if len(d.Columns) < 3 {
		return nil
	}
	return append([]string(nil), d.Columns[1:len(d.Columns)-1]...)
}

// LabelColumn returns the name of the last column.
func (d *Dataset) LabelColumn() string {
	if len(d.Columns) == 0 {
		return ""
	}
	return d.Columns[len(d.Columns)-1]
}

// Column returns the index of name or -1.
func (d *Dataset) Column(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Features parses the feature matrix. Missing or non-numeric cells are errors.
func (d *Dataset) Features() ([][]float64, error) {
	if len(d.Columns) < 3 {
		return nil, fmt.Errorf("%w: need an id, at least one feature and a label column, got %d columns", ErrSchema, len(d.Columns))
	}
	last := len(d.Columns) - 1
	matrix := make([][]float64, 0, len(d.Rows))
	for i, row := range d.Rows {
		values := make([]float64, 0, last-1)
		for j := 1; j < last; j++ {
			v, err := parseCell(row, j)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i+1, d.Columns[j], err)
			}
			values = append(values, v)
		}
		matrix = append(matrix, values)
	}
	return matrix, nil
}

// Labels parses the label column as 0/1 values.
func (d *Dataset) Labels() ([]int, error) {
	if len(d.Columns) < 2 {
		return nil, fmt.Errorf("%w: no label column", ErrSchema)
	}
	last := len(d.Columns) - 1
	labels := make([]int, 0, len(d.Rows))
	for i, row := range d.Rows {
		v, err := parseCell(row, last)
		if err != nil {
			return nil, fmt.Errorf("row %d label %q: %w", i+1, d.Columns[last], err)
		}
		switch v {
		case 0:
			labels = append(labels, 0)
		case 1:
			labels = append(labels, 1)
		default:
			return nil, fmt.Errorf("row %d label %q: expected 0 or 1, got %v", i+1, d.Columns[last], v)
		}
	}
	return labels, nil
}

// NumericColumn returns the parsed non-missing values of a column.
func (d *Dataset) NumericColumn(idx int) ([]float64, error) {
	values := make([]float64, 0, len(d.Rows))
	for i, row := range d.Rows {
		if idx >= len(row) || IsMissing(row[idx]) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", i+1, d.Columns[idx], err)
		}
		values = append(values, v)
	}
	return values, nil
}

func parseCell(row []string, idx int) (float64, error) {
	if idx >= len(row) || IsMissing(row[idx]) {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", row[idx])
	}
	return v, nil
}

// Read decodes a CSV stream whose first record is the header.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrSchema)
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	}
	ds := &Dataset{Columns: header, Rows: make([][]string, 0, len(records)-1)}
	for i, rec := range records[1:] {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrSchema, i+1, len(rec), len(header))
		}
		// Short rows are padded with missing cells.
		row := make([]string, len(header))
		copy(row, rec)
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// ReadFile reads a CSV dataset from disk.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Write encodes the dataset as CSV with a header row.
func Write(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ds.Columns); err != nil {
		return err
	}
	if err := writer.WriteAll(ds.Rows); err != nil {
		return err
	}
	return writer.Error()
}

// WriteFile writes the dataset to path, replacing any existing file.
func WriteFile(path string, ds *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, ds); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
