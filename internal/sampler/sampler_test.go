package sampler

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const base = "https://github.com/pytorch/pytorch/graphs/contributors"

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestWindowsDeterministic(t *testing.T) {
	lower := date(2016, time.March, 1)
	upper := date(2026, time.October, 19)

	first := NewSeeded(DefaultSeed).Windows(lower, upper, DefaultSamples)
	second := NewSeeded(DefaultSeed).Windows(lower, upper, DefaultSamples)
	require.Equal(t, first, second)
	require.Len(t, first, DefaultSamples)

	other := NewSeeded(DefaultSeed+1).Windows(lower, upper, DefaultSamples)
	require.NotEqual(t, first, other)
}

func TestWindowsBounds(t *testing.T) {
	lower := date(2020, time.January, 1)
	upper := date(2020, time.January, 31)

	windows := NewSeeded(DefaultSeed).Windows(lower, upper, 200)
	for _, w := range windows {
		require.Equal(t, 14*24*time.Hour, w.End.Sub(w.Start))
		require.False(t, w.Start.Before(lower), "start %s before lower bound", w.Start)
		require.False(t, w.Start.After(upper), "start %s after upper bound", w.Start)
	}
}

func TestWindowsIncludeBothBounds(t *testing.T) {
	lower := date(2020, time.January, 1)
	upper := date(2020, time.January, 2)

	seen := map[time.Time]bool{}
	for _, w := range NewSeeded(7).Windows(lower, upper, 100) {
		seen[w.Start] = true
	}
	require.Equal(t, map[time.Time]bool{lower: true, upper: true}, seen)
}

func TestWindowsCollapsedRange(t *testing.T) {
	lower := date(2020, time.May, 10)

	for _, upper := range []time.Time{lower, date(2020, time.May, 1)} {
		windows := NewSeeded(DefaultSeed).Windows(lower, upper, 3)
		for _, w := range windows {
			require.Equal(t, lower, w.Start)
			require.Equal(t, date(2020, time.May, 24), w.End)
		}
	}
}

func TestWindowsIgnoreTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	lower := time.Date(2019, time.July, 4, 22, 0, 0, 0, loc)
	upper := time.Date(2019, time.July, 4, 23, 0, 0, 0, loc)

	windows := NewSeeded(DefaultSeed).Windows(lower, upper, 1)
	require.Equal(t, date(2019, time.July, 4), windows[0].Start)
}

func TestSharedSourceAdvances(t *testing.T) {
	rnd := rand.New(rand.NewSource(DefaultSeed))
	lower := date(2015, time.January, 1)
	upper := date(2025, time.January, 1)

	a := New(rnd).Windows(lower, upper, 5)
	b := New(rnd).Windows(lower, upper, 5)
	require.NotEqual(t, a, b)

	// both batches together are what a single sampler would have drawn
	combined := NewSeeded(DefaultSeed).Windows(lower, upper, 10)
	require.Equal(t, combined, append(a, b...))
}

func TestURLs(t *testing.T) {
	lower := date(2016, time.March, 1)
	upper := date(2026, time.October, 19)

	urls, err := NewSeeded(DefaultSeed).URLs(base, lower, upper, DefaultSamples)
	if err != nil {
		t.Fatal(err)
	}
	windows := NewSeeded(DefaultSeed).Windows(lower, upper, DefaultSamples)

	require.Len(t, urls, DefaultSamples)
	for i, link := range urls {
		require.True(t, strings.HasPrefix(link, base+"?"))
		require.Equal(
			t,
			base+"?from="+windows[i].Start.Format(QueryDateLayout)+
				"&to="+windows[i].End.Format(QueryDateLayout)+"&type=c",
			link,
		)
	}
}

func TestWindowURL(t *testing.T) {
	w := DateWindow{Start: date(2016, time.March, 1), End: date(2016, time.March, 15)}

	link, err := w.URL(base)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, base+"?from=2016-03-01&to=2016-03-15&type=c", link)

	_, err = w.URL("://missing-scheme")
	require.Error(t, err)
}
