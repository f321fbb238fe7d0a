// Package contribpage extracts contribution facts from the rendered main
// region of a repository's contributors graph page.
package contribpage

import (
	"fmt"
	"strings"
	"time"

	"contribsampler/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// LayoutRegion is the marker of the page region that has to render before
// anything can be extracted.
const LayoutRegion = "Layout-main"

const (
	dateRangeMarker  = "js-date-range Subhead-heading"
	leftEntryMarker  = "contrib-person float-left col-6 my-2 pr-2"
	rightEntryMarker = "contrib-person float-left col-6 my-2 pl-2"
	usernameMarker   = "text-normal"
	addedMarker      = "color-fg-success text-normal"
	removedMarker    = "color-fg-danger text-normal"
	commitsMarker    = "Link--secondary text-normal"
)

const (
	// DateRangeSeparator splits the displayed date range, it is an en dash.
	DateRangeSeparator = " – "
	// DisplayDateLayout is the layout dates are displayed in on the page.
	DisplayDateLayout = "Jan 2, 2006"
)

// FormatError is returned when the date range heading is missing, ambiguous
// or malformed.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected date range format: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("unexpected date range format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ExtractionError is returned when a contributor entry is missing one of
// the fields it is expected to display.
type ExtractionError struct {
	Entry int
	Field string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("contributor entry %d: missing %s", e.Entry, e.Field)
}

// ContributorStats is what a contributor entry displays, kept as the display
// text (ex. "1,234 ++", "12 commits") since it may be abbreviated.
type ContributorStats struct {
	Commits      string
	LinesAdded   string
	LinesRemoved string
}

// ContributorStatsMap maps a username to the stats displayed for it.
type ContributorStatsMap map[string]ContributorStats

func parse(markup string) (*goquery.Document, error) {
	doc, err := htmlutil.ParseFragment(markup)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

// ExtractInitialDateRange returns the date range displayed in the heading of
// the page, when requested without a window this is the whole lifetime of the
// repository.
func ExtractInitialDateRange(markup string) (time.Time, time.Time, error) {
	doc, err := parse(markup)
	if err != nil {
		return time.Time{}, time.Time{}, &FormatError{Reason: "unparsable markup", Err: err}
	}

	headings := htmlutil.FindByClass(doc.Selection, dateRangeMarker)
	if headings.Length() != 1 {
		return time.Time{}, time.Time{}, &FormatError{
			Reason: fmt.Sprintf("expected exactly one date range heading, found %d", headings.Length()),
		}
	}

	text := htmlutil.NodeText(headings.Nodes[0])
	parts := strings.Split(text, DateRangeSeparator)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, &FormatError{
			Reason: fmt.Sprintf("expected two dates in %q, found %d parts", text, len(parts)),
		}
	}

	var dates [2]time.Time
	for i, part := range parts {
		dates[i], err = time.Parse(DisplayDateLayout, strings.TrimSpace(part))
		if err != nil {
			return time.Time{}, time.Time{}, &FormatError{
				Reason: fmt.Sprintf("bad date %q", part),
				Err:    err,
			}
		}
	}
	return dates[0], dates[1], nil
}

// nth returns the text of the i-th element carrying `marker` inside entry.
func nth(entry *goquery.Selection, marker string, i int) (string, bool) {
	found := htmlutil.FindByClass(entry, marker)
	if found.Length() <= i {
		return "", false
	}
	return htmlutil.NodeText(found.Nodes[i]), true
}

// ExtractContributorStats returns the number of contributor entries on the page
// and the stats of each contributor. Entries of the left column come before
// entries of the right column.
func ExtractContributorStats(markup string) (int, ContributorStatsMap, error) {
	doc, err := parse(markup)
	if err != nil {
		return 0, nil, err
	}

	var entries []*goquery.Selection
	for _, marker := range []string{leftEntryMarker, rightEntryMarker} {
		htmlutil.FindByClass(doc.Selection, marker).Each(func(_ int, s *goquery.Selection) {
			entries = append(entries, s)
		})
	}

	stats := make(ContributorStatsMap, len(entries))
	for i, entry := range entries {
		username, ok := nth(entry, usernameMarker, 1)
		if !ok {
			return 0, nil, &ExtractionError{Entry: i, Field: "username"}
		}
		added, ok := nth(entry, addedMarker, 0)
		if !ok {
			return 0, nil, &ExtractionError{Entry: i, Field: "lines added"}
		}
		removed, ok := nth(entry, removedMarker, 0)
		if !ok {
			return 0, nil, &ExtractionError{Entry: i, Field: "lines removed"}
		}
		commits, ok := nth(entry, commitsMarker, 0)
		if !ok {
			return 0, nil, &ExtractionError{Entry: i, Field: "commit count"}
		}

		stats[username] = ContributorStats{
			Commits:      commits,
			LinesAdded:   added,
			LinesRemoved: removed,
		}
	}

	return len(entries), stats, nil
}
