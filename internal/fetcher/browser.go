package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"contribsampler/internal/components/assert"
	"contribsampler/internal/components/telemetry"
	"contribsampler/lib/htmlutil"
	"contribsampler/lib/restyutil"
	libtelemetry "contribsampler/lib/telemetry"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_browser_start           = "browser_session.start"
	report_browser_load            = "browser_session.load"
	report_browser_wait_for_region = "browser_session.wait-for-region"
	report_browser_close           = "browser_session.close"
)

var tracer = libtelemetry.Tracer("contribsampler/internal/fetcher")

// BrowserSession drives a single chrome tab through the devtools protocol.
type BrowserSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	settle  time.Duration
	dump    restyutil.InstrumentOutput
	pages   *uint64
	current string
	tel     telemetry.API
}

// NewBrowserSession launches chrome, the browser lives until Close is called
// or `ctx` is done.
func NewBrowserSession(ctx context.Context, opts Options, tel telemetry.API) (*BrowserSession, error) {
	assert.NotNil(tel, "tel")
	tel = telemetry.NewScopedAPI("fetcher", tel)

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.ShowBrowser),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			tel.ReportDebug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	// the first Run starts the browser
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancel()
		allocCancel()
		tel.ReportBroken(report_browser_start, err)
		return nil, fmt.Errorf("start browser: %w", err)
	}

	var pages uint64
	s := &BrowserSession{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		settle:      opts.Settle,
		dump:        opts.Dump,
		pages:       &pages,
		tel:         tel,
	}
	return s, nil
}

// bind derives a context from the browser's context that is also cancelled
// when the caller's ctx is.
func (s *BrowserSession) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *BrowserSession) Load(ctx context.Context, url string) error {
	ctx, span := tracer.Start(ctx, "browser:Load")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	runCtx, cancel := s.bind(ctx, 0)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.Navigate(url))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigate failed")
		s.tel.ReportBroken(report_browser_load, err, url)
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	s.current = url
	return settle(ctx, s.settle)
}

func (s *BrowserSession) WaitForRegion(ctx context.Context, marker string, timeout time.Duration) (Element, error) {
	ctx, span := tracer.Start(ctx, "browser:WaitForRegion")
	defer span.End()
	span.SetAttributes(attribute.String("marker", marker))

	if s.current == "" {
		return Element{}, ErrNotLoaded
	}

	runCtx, cancel := s.bind(ctx, timeout)
	defer cancel()

	selector := htmlutil.ClassSelector(marker)
	var outer string
	err := chromedp.Run(
		runCtx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML(selector, &outer, chromedp.ByQuery),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "region did not render")
		if ctx.Err() != nil {
			return Element{}, waitErr(ctx, marker, s.current)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Element{}, fmt.Errorf("%s on %s after %s: %w", marker, s.current, timeout, ErrTimeout)
		}
		s.tel.ReportBroken(report_browser_wait_for_region, err, s.current, marker)
		return Element{}, fmt.Errorf("wait for %s on %s: %w", marker, s.current, err)
	}

	if s.dump != nil {
		id := atomic.AddUint64(s.pages, 1)
		s.dump.Write(strconv.FormatUint(id, 10)+".html", outer)
	}
	return Element{Marker: marker, OuterHTML: outer}, nil
}

// Close closes the browser, it is safe to call more than once.
func (s *BrowserSession) Close() error {
	if s.cancel == nil {
		return nil
	}
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	s.cancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		s.tel.ReportWarning(report_browser_close, err)
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
