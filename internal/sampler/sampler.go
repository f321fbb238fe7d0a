// Package sampler picks the two week contribution windows that get scraped
// for a repository.
package sampler

import (
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"contribsampler/internal/components/assert"
	"contribsampler/internal/components/chrono"
)

const (
	// DefaultSeed keeps sampled windows identical across runs.
	DefaultSeed int64 = 2022
	// DefaultSamples is the amount of windows sampled per repository.
	DefaultSamples = 5
	// WindowDays is the width of a window, two weeks keeps even very popular
	// repositories under the contributor display limit of the graph page.
	WindowDays = 14
	// QueryDateLayout is how window bounds are written into a request url.
	QueryDateLayout = "2006-01-02"
)

// DateWindow is a single contribution window, End is always Start + WindowDays.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Query returns the query parameters that request this window from a
// contributors page.
func (w DateWindow) Query() url.Values {
	values := url.Values{}
	values.Set("from", w.Start.Format(QueryDateLayout))
	values.Set("to", w.End.Format(QueryDateLayout))
	values.Set("type", "c")
	return values
}

// URL appends the window's query to a contributors page url.
func (w DateWindow) URL(base string) (string, error) {
	link, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse contributors url: %w", err)
	}
	values := link.Query()
	for key, v := range w.Query() {
		values[key] = v
	}
	link.RawQuery = values.Encode()
	return link.String(), nil
}

// Sampler draws windows from an explicitly provided random source.
type Sampler struct {
	rnd *rand.Rand
}

// New creates a Sampler drawing from rnd. The sampler advances rnd, so two
// samplers sharing one source do not produce the same windows.
func New(rnd *rand.Rand) Sampler {
	assert.NotNil(rnd, "rnd")
	return Sampler{rnd: rnd}
}

// NewSeeded creates a Sampler with its own source seeded with `seed`.
func NewSeeded(seed int64) Sampler {
	return New(rand.New(rand.NewSource(seed)))
}

// Windows draws n windows whose start dates are picked uniformly (with
// replacement) from the inclusive day range [lower, upper]. Windows are not
// clipped, so a window starting close to upper ends after it.
func (s Sampler) Windows(lower, upper time.Time, n int) []DateWindow {
	lower = chrono.Date(lower)
	upper = chrono.Date(upper)

	days := int(upper.Sub(lower).Hours() / 24)
	if days < 0 {
		days = 0
	}

	windows := make([]DateWindow, n)
	for i := range windows {
		start := lower.AddDate(0, 0, s.rnd.Intn(days+1))
		windows[i] = DateWindow{
			Start: start,
			End:   start.AddDate(0, 0, WindowDays),
		}
	}
	return windows
}

// URLs draws n windows (see Windows) and renders them into request urls
// against the contributors page `base`.
func (s Sampler) URLs(base string, lower, upper time.Time, n int) ([]string, error) {
	windows := s.Windows(lower, upper, n)
	urls := make([]string, len(windows))
	for i, w := range windows {
		link, err := w.URL(base)
		if err != nil {
			return nil, err
		}
		urls[i] = link
	}
	return urls, nil
}
