package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"contribsampler/internal/components/assert"
	"contribsampler/internal/components/telemetry"
	"contribsampler/lib/htmlutil"
	"contribsampler/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	report_http_load            = "http_session.load"
	report_http_wait_for_region = "http_session.wait-for-region"
)

const (
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	defaultPollInterval = time.Second
)

// HTTPSession loads pages with plain GET requests. It only sees server
// rendered markup, so WaitForRegion re-fetches the current page until the
// region shows up (ex. while the host is still computing the statistics).
type HTTPSession struct {
	http    *resty.Client
	poll    time.Duration
	settle  time.Duration
	current string
	body    []byte
	tel     telemetry.API
}

func NewHTTPSession(opts Options, tel telemetry.API) (*HTTPSession, error) {
	assert.NotNil(tel, "tel")
	tel = telemetry.NewScopedAPI("fetcher", tel)

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetTimeout(time.Second * 30)

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	// burst of 1 spaces requests out evenly, the polling loop would otherwise
	// send its first few retries back to back
	rateLimiter := rate.NewLimiter(limit, 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	restyutil.InstrumentClient(client, tel, tracer, opts.Dump)

	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &HTTPSession{
		http:   client,
		poll:   poll,
		settle: opts.Settle,
		tel:    tel,
	}, nil
}

func (s *HTTPSession) fetch(ctx context.Context, url string) error {
	res, err := s.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		s.tel.ReportBroken(report_http_load, err, url)
		return fmt.Errorf("get %s: %w", url, err)
	}
	if res.IsError() {
		// the page is kept anyway, a missing region is what callers act on
		s.tel.ReportWarning(report_http_load, url, res.Status())
	}
	s.body = res.Body()
	return nil
}

func (s *HTTPSession) Load(ctx context.Context, url string) error {
	ctx, span := tracer.Start(ctx, "http:Load")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	err := s.fetch(ctx, url)
	if err != nil {
		return err
	}
	s.current = url
	return settle(ctx, s.settle)
}

func (s *HTTPSession) findRegion(marker string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(s.body))
	if err != nil {
		return "", false, err
	}
	region := htmlutil.FindByClass(doc.Selection, marker).First()
	if region.Length() == 0 {
		return "", false, nil
	}
	outer, err := goquery.OuterHtml(region)
	if err != nil {
		return "", false, err
	}
	return outer, true, nil
}

func (s *HTTPSession) WaitForRegion(ctx context.Context, marker string, timeout time.Duration) (Element, error) {
	ctx, span := tracer.Start(ctx, "http:WaitForRegion")
	defer span.End()
	span.SetAttributes(attribute.String("marker", marker))

	if s.current == "" {
		return Element{}, ErrNotLoaded
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		outer, found, err := s.findRegion(marker)
		if err != nil {
			s.tel.ReportBroken(report_http_wait_for_region, err, s.current)
			return Element{}, fmt.Errorf("parse %s: %w", s.current, err)
		}
		if found {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return Element{Marker: marker, OuterHTML: outer}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Element{}, fmt.Errorf("%s on %s after %s: %w", marker, s.current, timeout, ErrTimeout)
		}
		err = settle(ctx, min(s.poll, remaining))
		if err != nil {
			return Element{}, waitErr(ctx, marker, s.current)
		}

		// a failed re-fetch keeps the previous body, the deadline check above
		// ends the loop if the host never recovers
		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		err = s.fetch(fetchCtx, s.current)
		cancel()
		if ctx.Err() != nil {
			return Element{}, waitErr(ctx, marker, s.current)
		}
		if err != nil {
			s.tel.ReportDebug("retrying after failed re-fetch", s.current, attempt, err)
		}
	}
}

func (s *HTTPSession) Close() error {
	s.http.GetClient().CloseIdleConnections()
	return nil
}
