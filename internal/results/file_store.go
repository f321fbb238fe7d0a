package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"contribsampler/internal/components/assert"
)

// FileStore persists the results table as a csv file.
type FileStore struct {
	path string
}

func NewFileStore(path string) FileStore {
	assert.NotEmptyStr(path, "path")
	return FileStore{path: path}
}

func (s FileStore) Path() string {
	return s.path
}

// Load reads the table, a missing file is an empty table. Columns other than
// the result columns (ex. an unnamed index column) are ignored.
func (s FileStore) Load(ctx context.Context) (Table, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a results table from csv.
func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("read results header: %w", err)
	}

	indices := make([]int, len(Columns))
	for i, column := range Columns {
		indices[i] = -1
		for j, name := range header {
			if name == column {
				indices[i] = j
				break
			}
		}
		if indices[i] < 0 {
			return Table{}, fmt.Errorf("results are missing the %q column", column)
		}
	}

	var table Table
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read results: %w", err)
		}

		cells := make([]string, len(Columns))
		for i, idx := range indices {
			if idx >= len(record) {
				return Table{}, fmt.Errorf("results line %d: expected at least %d fields, got %d", line, idx+1, len(record))
			}
			cells[i] = record[idx]
		}
		table.Rows = append(table.Rows, rowFromCells(cells))
	}
	return table, nil
}

// WriteCSV writes the table as csv, header first.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	err := writer.Write(Columns)
	if err != nil {
		return err
	}
	for _, r := range t.Rows {
		err = writer.Write(r.cells())
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Save overwrites the file, the table is written to a temporary file first
// so an interrupted save leaves the previous results intact. The file keeps
// its permissions, a new file is created 0644.
func (s FileStore) Save(ctx context.Context, t Table) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".results-*.csv")
	if err != nil {
		return fmt.Errorf("create temporary results file: %w", err)
	}
	defer os.Remove(tmp.Name())

	mode := os.FileMode(0644)
	info, err := os.Stat(s.path)
	if err == nil {
		mode = info.Mode().Perm()
	}
	err = tmp.Chmod(mode)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temporary results file: %w", err)
	}

	err = WriteCSV(tmp, t)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	err = os.Rename(tmp.Name(), s.path)
	if err != nil {
		return fmt.Errorf("replace results: %w", err)
	}
	return nil
}

func (s FileStore) Close() error {
	return nil
}
