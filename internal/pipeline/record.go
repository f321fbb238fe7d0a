package pipeline

import (
	"errors"
	"fmt"
	"time"

	"contribsampler/internal/catalog"
	"contribsampler/internal/contribpage"
	"contribsampler/internal/results"
)

// State is how far a repository got through a run.
type State int

const (
	NotStarted State = iota
	ProbingInitialRange
	Sampling
	Accumulated
	Persisted
	SkippedAlreadyPresent
	FailedProbe
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case ProbingInitialRange:
		return "probing_initial_range"
	case Sampling:
		return "sampling"
	case Accumulated:
		return "accumulated"
	case Persisted:
		return "persisted"
	case SkippedAlreadyPresent:
		return "skipped_already_present"
	case FailedProbe:
		return "failed_probe"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Record is a repository and everything scraped about it so far, fields
// are filled in as the record moves through its states.
type Record struct {
	catalog.Repository
	State State

	StartDate           *time.Time
	WindowURLs          []string
	AverageContributors *float64
	// Contributions maps a window url to the contributors active in it.
	Contributions map[string]contribpage.ContributorStatsMap

	// ProbeErr is set when State is FailedProbe.
	ProbeErr error
}

var errIncompleteRecord = errors.New("record is missing scraped fields")

func (r *Record) row() (results.Row, error) {
	if r.StartDate == nil || r.AverageContributors == nil || r.WindowURLs == nil || r.Contributions == nil {
		return results.Row{}, errIncompleteRecord
	}
	return results.NewRow(
		r.Name,
		r.ContributorsURL,
		*r.AverageContributors,
		*r.StartDate,
		r.Contributions,
		r.WindowURLs,
	)
}

// ProbeError is a repository whose initial date range could not be read,
// the repository is left out of the run.
type ProbeError struct {
	Repo string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %s", e.Repo, e.Err.Error())
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Average is the arithmetic mean of counts, 0 when there are none.
func Average(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return float64(total) / float64(len(counts))
}
