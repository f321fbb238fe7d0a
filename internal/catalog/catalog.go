// Package catalog reads the list of repositories to sample.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	NameColumn   = "Name"
	SourceColumn = "Github"
)

// Repository is a single catalog entry.
type Repository struct {
	Name      string
	SourceURL string
	// ContributorsURL is the contributors graph page of the repository.
	ContributorsURL string
}

// ContributorsURL derives the contributors graph page from a repository url.
func ContributorsURL(source string) string {
	return strings.TrimRight(source, "/") + "/graphs/contributors"
}

// Load reads a catalog file, see Read.
func Load(path string) ([]Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func columnIndex(header []string, name string) (int, error) {
	for i, column := range header {
		// spreadsheet exports sometimes start with a byte order mark
		column = strings.TrimPrefix(column, "\ufeff")
		if strings.TrimSpace(column) == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("catalog is missing the %q column", name)
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// Read reads a csv catalog with at least a Name and a Github column.
// Rows missing either are dropped. Repositories keep the order they first
// appear in, a repeated name keeps its first position but takes the url of
// its last row.
func Read(r io.Reader) ([]Repository, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	nameIdx, err := columnIndex(header, NameColumn)
	if err != nil {
		return nil, err
	}
	sourceIdx, err := columnIndex(header, SourceColumn)
	if err != nil {
		return nil, err
	}

	var repos []Repository
	positions := map[string]int{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}

		name := cell(record, nameIdx)
		source := cell(record, sourceIdx)
		if name == "" || source == "" {
			continue
		}

		repo := Repository{
			Name:            name,
			SourceURL:       source,
			ContributorsURL: ContributorsURL(source),
		}
		if i, seen := positions[name]; seen {
			repos[i] = repo
			continue
		}
		positions[name] = len(repos)
		repos = append(repos, repo)
	}

	return repos, nil
}
