// Package report renders a results table for people to read.
package report

import (
	"fmt"
	"io"
	"sort"

	"contribsampler/internal/results"
	"contribsampler/lib/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

// MinSimilarity is the lowest similarity a fuzzy repository lookup accepts.
const MinSimilarity = 0.8

// Lookup finds the row of a repository by its exact name or, failing that,
// the most similar name above MinSimilarity.
func Lookup(t results.Table, name string) (results.Row, bool) {
	row, ok := t.Find(name)
	if ok {
		return row, true
	}

	names := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		names[i] = r.Repo
	}
	match, similarity := textutil.MostSimilar(name, names)
	if similarity <= MinSimilarity {
		return results.Row{}, false
	}
	return t.Find(match)
}

// Overview is a row of the table overview.
type Overview struct {
	Repo                 string
	AvgNumContributors   string
	StartDate            string
	Windows              int
	DistinctContributors int
	// Readable is false when the window cells could not be decoded, the
	// counts are zero in that case.
	Readable bool
}

func Summarize(row results.Row) Overview {
	out := Overview{
		Repo:               row.Repo,
		AvgNumContributors: row.AvgNumContributors,
		StartDate:          row.StartDate,
	}

	urls, err := row.WindowURLs()
	if err != nil {
		return out
	}
	contributions, err := row.Contributions()
	if err != nil {
		return out
	}

	users := map[string]struct{}{}
	for _, stats := range contributions {
		for user := range stats {
			users[user] = struct{}{}
		}
	}

	out.Windows = len(urls)
	out.DistinctContributors = len(users)
	out.Readable = true
	return out
}

func countCell(n int, readable bool) any {
	if !readable {
		return "-"
	}
	return n
}

// RenderTable writes an overview of every repository in the table.
func RenderTable(w io.Writer, t results.Table) {
	writer := table.NewWriter()
	writer.SetOutputMirror(w)
	writer.AppendHeader(table.Row{"Repo", "Avg Contributors", "Start Date", "Windows", "Distinct Contributors"})

	for _, row := range t.Rows {
		o := Summarize(row)
		writer.AppendRow(table.Row{
			o.Repo,
			o.AvgNumContributors,
			o.StartDate,
			countCell(o.Windows, o.Readable),
			countCell(o.DistinctContributors, o.Readable),
		})
	}
	writer.AppendFooter(table.Row{"", "", "Total", len(t.Rows)})
	writer.Render()
}

// RenderRepo writes the per window breakdown of a single repository.
func RenderRepo(w io.Writer, row results.Row) error {
	urls, err := row.WindowURLs()
	if err != nil {
		return err
	}
	contributions, err := row.Contributions()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s)\n", row.Repo, row.RepoURL)
	fmt.Fprintf(w, "average contributors: %s, first contribution: %s\n", row.AvgNumContributors, row.StartDate)

	seen := map[string]struct{}{}
	for _, link := range urls {
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}

		stats := contributions[link]
		users := make([]string, 0, len(stats))
		for user := range stats {
			users = append(users, user)
		}
		sort.Strings(users)

		fmt.Fprintln(w, link)
		writer := table.NewWriter()
		writer.SetOutputMirror(w)
		writer.AppendHeader(table.Row{"User", "Commits", "Added", "Removed"})
		for _, user := range users {
			s := stats[user]
			writer.AppendRow(table.Row{user, s.Commits, s.LinesAdded, s.LinesRemoved})
		}
		writer.AppendFooter(table.Row{"Contributors", len(users)})
		writer.Render()
	}
	return nil
}
