// Package fetcher loads contribution pages and waits for a region of them to
// render. The rest of the program only talks to a Session.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contribsampler/internal/components/telemetry"
	"contribsampler/lib/restyutil"
)

var (
	// ErrTimeout is returned (wrapped) by WaitForRegion when the region did
	// not appear in time.
	ErrTimeout = errors.New("timed out waiting for region")
	// ErrNotLoaded is returned by WaitForRegion when Load was never called.
	ErrNotLoaded = errors.New("no page has been loaded")
)

// Element is a rendered region of a page.
type Element struct {
	Marker    string
	OuterHTML string
}

// Session is a single page-loading session (a browser tab or an http
// client with cookies). It is not safe for concurrent use, the session
// always has at most one current page.
type Session interface {
	// Load navigates to url, making it the current page.
	Load(ctx context.Context, url string) error
	// WaitForRegion blocks until an element carrying every class in `marker`
	// exists on the current page or timeout elapses.
	WaitForRegion(ctx context.Context, marker string, timeout time.Duration) (Element, error)
	// Close releases the session.
	Close() error
}

type Driver string

const (
	DriverBrowser Driver = "browser"
	DriverHTTP    Driver = "http"
)

type Options struct {
	Driver Driver
	// Settle is a fixed delay after every navigation before the page is inspected.
	Settle time.Duration
	// UserAgent overrides the default user agent when not empty.
	UserAgent string

	// ShowBrowser runs chrome with a window (browser driver only).
	ShowBrowser bool
	// ChromePath is the chrome executable, empty means search the usual places
	// (browser driver only).
	ChromePath string

	// RequestsPerSecond limits requests (http driver only), 0 means unlimited.
	RequestsPerSecond float64
	// PollInterval is how often the page is re-fetched while waiting for a
	// region (http driver only).
	PollInterval time.Duration

	// Dump receives every page that was loaded, can be nil.
	Dump restyutil.InstrumentOutput
}

// Open starts a session using the driver selected in opts.
func Open(ctx context.Context, opts Options, tel telemetry.API) (Session, error) {
	switch opts.Driver {
	case DriverBrowser, "":
		return NewBrowserSession(ctx, opts, tel)
	case DriverHTTP:
		return NewHTTPSession(opts, tel)
	default:
		return nil, fmt.Errorf("unknown fetcher driver %q", opts.Driver)
	}
}

// waitErr is the error of a wait that ended because ctx is done. A passed
// deadline is a timeout like any other, only cancellation is passed through.
func waitErr(ctx context.Context, marker, url string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s on %s: %w: %w", marker, url, ErrTimeout, err)
	}
	return err
}

// settle waits for d or until ctx is done.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
