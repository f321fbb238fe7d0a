// Package results holds the cumulative results table and the stores it is
// persisted to.
package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contribsampler/internal/contribpage"
)

// Columns are the columns of the results table, in order.
var Columns = []string{
	"repo",
	"repo_url",
	"avg_num_contributors",
	"start_date",
	"contrib_info",
	"date_urls",
}

// StartDateLayout is how the start date of a repository is written.
const StartDateLayout = "Jan 02, 2006"

// Row is a single row of the results table. Cells are kept as the text they
// are stored as so rows read from a previous run are written back unchanged.
type Row struct {
	Repo               string
	RepoURL            string
	AvgNumContributors string
	StartDate          string
	ContribInfo        string
	DateURLs           string
}

func (r Row) cells() []string {
	return []string{r.Repo, r.RepoURL, r.AvgNumContributors, r.StartDate, r.ContribInfo, r.DateURLs}
}

func rowFromCells(cells []string) Row {
	return Row{
		Repo:               cells[0],
		RepoURL:            cells[1],
		AvgNumContributors: cells[2],
		StartDate:          cells[3],
		ContribInfo:        cells[4],
		DateURLs:           cells[5],
	}
}

// contribCell is how contrib_info is encoded: window url -> username ->
// [commits, lines added, lines removed].
type contribCell map[string]map[string][3]string

// encodeCell encodes v as json without escaping the "&" of query strings.
func encodeCell(v any) (string, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(buffer.String(), "\n"), nil
}

// NewRow encodes a scraped repository into a row.
func NewRow(
	repo, repoURL string,
	avg float64,
	start time.Time,
	contributions map[string]contribpage.ContributorStatsMap,
	windowURLs []string,
) (Row, error) {
	info := make(contribCell, len(contributions))
	for link, stats := range contributions {
		users := make(map[string][3]string, len(stats))
		for user, s := range stats {
			users[user] = [3]string{s.Commits, s.LinesAdded, s.LinesRemoved}
		}
		info[link] = users
	}
	encodedInfo, err := encodeCell(info)
	if err != nil {
		return Row{}, fmt.Errorf("encode contrib_info: %w", err)
	}
	if windowURLs == nil {
		windowURLs = []string{}
	}
	encodedURLs, err := encodeCell(windowURLs)
	if err != nil {
		return Row{}, fmt.Errorf("encode date_urls: %w", err)
	}

	return Row{
		Repo:               repo,
		RepoURL:            repoURL,
		AvgNumContributors: strconv.FormatFloat(avg, 'f', -1, 64),
		StartDate:          start.Format(StartDateLayout),
		ContribInfo:        encodedInfo,
		DateURLs:           encodedURLs,
	}, nil
}

func (r Row) Average() (float64, error) {
	return strconv.ParseFloat(r.AvgNumContributors, 64)
}

func (r Row) Start() (time.Time, error) {
	return time.Parse(StartDateLayout, r.StartDate)
}

func (r Row) WindowURLs() ([]string, error) {
	var urls []string
	err := json.Unmarshal([]byte(r.DateURLs), &urls)
	if err != nil {
		return nil, fmt.Errorf("decode date_urls of %s: %w", r.Repo, err)
	}
	return urls, nil
}

func (r Row) Contributions() (map[string]contribpage.ContributorStatsMap, error) {
	var info contribCell
	err := json.Unmarshal([]byte(r.ContribInfo), &info)
	if err != nil {
		return nil, fmt.Errorf("decode contrib_info of %s: %w", r.Repo, err)
	}
	out := make(map[string]contribpage.ContributorStatsMap, len(info))
	for link, users := range info {
		stats := make(contribpage.ContributorStatsMap, len(users))
		for user, s := range users {
			stats[user] = contribpage.ContributorStats{
				Commits:      s[0],
				LinesAdded:   s[1],
				LinesRemoved: s[2],
			}
		}
		out[link] = stats
	}
	return out, nil
}

// Table is the results table, rows are only ever appended.
type Table struct {
	Rows []Row
}

// Names is the set of repositories present in the table.
func (t Table) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		names[r.Repo] = struct{}{}
	}
	return names
}

// Find returns the first row of a repository.
func (t Table) Find(repo string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Repo == repo {
			return r, true
		}
	}
	return Row{}, false
}

// Append returns a table with rows appended after the rows of t, t is not modified.
func (t Table) Append(rows ...Row) Table {
	out := make([]Row, 0, len(t.Rows)+len(rows))
	out = append(out, t.Rows...)
	out = append(out, rows...)
	return Table{Rows: out}
}

// Store is where the results table is persisted between runs.
type Store interface {
	// Load reads the whole table, a store that was never saved to is empty.
	Load(ctx context.Context) (Table, error)
	// Save replaces the persisted table with t.
	Save(ctx context.Context, t Table) error
	Close() error
}
