package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"contribsampler/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

const renderedPage = `<html><body>
<div class="Layout-main"><h2 class="Subhead-heading js-date-range">Mar 1, 2016 – Oct 19, 2026</h2></div>
</body></html>`

const pendingPage = `<html><body><div class="Layout-sidebar">computing statistics</div></body></html>`

func newTestSession(t *testing.T) *HTTPSession {
	session, err := NewHTTPSession(Options{
		Driver:       DriverHTTP,
		PollInterval: 10 * time.Millisecond,
	}, &telemetry.Recorder{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestHTTPSessionRegionPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, renderedPage)
	}))
	defer server.Close()

	session := newTestSession(t)
	ctx := context.Background()

	err := session.Load(ctx, server.URL+"/pytorch/pytorch/graphs/contributors")
	if err != nil {
		t.Fatal(err)
	}
	region, err := session.WaitForRegion(ctx, "Layout-main", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Layout-main", region.Marker)
	require.Contains(t, region.OuterHTML, `<div class="Layout-main">`)
	require.Contains(t, region.OuterHTML, "Mar 1, 2016 – Oct 19, 2026")
}

func TestHTTPSessionPollsUntilRendered(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, pendingPage)
			return
		}
		fmt.Fprint(w, renderedPage)
	}))
	defer server.Close()

	session := newTestSession(t)
	ctx := context.Background()

	err := session.Load(ctx, server.URL)
	if err != nil {
		t.Fatal(err)
	}
	region, err := session.WaitForRegion(ctx, "Layout-main", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, region.OuterHTML, "js-date-range")
	require.Equal(t, int32(3), requests.Load())
}

func TestHTTPSessionTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pendingPage)
	}))
	defer server.Close()

	session := newTestSession(t)
	ctx := context.Background()

	err := session.Load(ctx, server.URL)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	_, err = session.WaitForRegion(ctx, "Layout-main", 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPSessionContextDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pendingPage)
	}))
	defer server.Close()

	session := newTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := session.Load(ctx, server.URL)
	if err != nil {
		t.Fatal(err)
	}
	// the context runs out before the region timeout does
	_, err = session.WaitForRegion(ctx, "Layout-main", 300*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitErr(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	err := waitErr(expired, "Layout-main", "https://github.com/owner/repo/graphs/contributors")
	require.ErrorIs(t, err, ErrTimeout)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = waitErr(cancelled, "Layout-main", "https://github.com/owner/repo/graphs/contributors")
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrTimeout)
}

func TestHTTPSessionNotLoaded(t *testing.T) {
	session := newTestSession(t)
	_, err := session.WaitForRegion(context.Background(), "Layout-main", time.Second)
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestHTTPSessionCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pendingPage)
	}))
	defer server.Close()

	session := newTestSession(t)
	err := session.Load(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = session.WaitForRegion(ctx, "Layout-main", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

type memoryOutput map[string]string

func (m memoryOutput) Write(id string, contents string) {
	m[id] = contents
}

func TestHTTPSessionDump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, renderedPage)
	}))
	defer server.Close()

	dump := memoryOutput{}
	session, err := NewHTTPSession(Options{Driver: DriverHTTP, Dump: dump}, &telemetry.Recorder{})
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	err = session.Load(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, dump, 1)
	require.Contains(t, dump["1.txt"], "Mar 1, 2016")
	require.Contains(t, dump["1.txt"], "200 OK")
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "selenium"}, &telemetry.Recorder{})
	require.Error(t, err)
}
