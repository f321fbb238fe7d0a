// Package pipeline runs the scrape over a catalog of repositories: probe
// each repository's history, sample windows out of it, scrape every window
// and persist the averaged results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"contribsampler/internal/catalog"
	"contribsampler/internal/components/assert"
	"contribsampler/internal/components/chrono"
	"contribsampler/internal/components/telemetry"
	"contribsampler/internal/contribpage"
	"contribsampler/internal/fetcher"
	"contribsampler/internal/results"
	"contribsampler/internal/sampler"
	libtelemetry "contribsampler/lib/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = libtelemetry.Tracer("contribsampler/internal/pipeline")
var meter = otel.Meter("contribsampler/internal/pipeline")

var repoCounter, _ = meter.Int64Counter(
	"repos_processed",
	metric.WithDescription("repositories that reached a final state, by state"),
)
var windowHistogram, _ = meter.Int64Histogram(
	"window_contributors",
	metric.WithDescription("contributors found in a single sampled window"),
)

func countState(ctx context.Context, s State) {
	repoCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("state", s.String())))
}

const (
	report_pipeline_probe   = "pipeline.probe"
	report_pipeline_window  = "pipeline.scrape-window"
	report_pipeline_persist = "pipeline.persist"
	report_pipeline_skipped = "pipeline.skipped"
	report_pipeline_added   = "pipeline.added"
)

const (
	DefaultProbeTimeout  = 30 * time.Second
	DefaultWindowTimeout = 10 * time.Second
	DefaultProgressEvery = 14
)

type Options struct {
	// Samples is the amount of windows scraped per repository.
	Samples       int
	ProbeTimeout  time.Duration
	WindowTimeout time.Duration
	// ProgressEvery prints a progress line every n attempted repositories.
	ProgressEvery int
	// Out receives progress and summary lines, defaults to stdout.
	Out io.Writer
}

func (o Options) withDefaults() Options {
	if o.Samples <= 0 {
		o.Samples = sampler.DefaultSamples
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.WindowTimeout <= 0 {
		o.WindowTimeout = DefaultWindowTimeout
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	return o
}

// Summary is the outcome of a run.
type Summary struct {
	// Records has one record per catalog entry, in catalog order.
	Records []*Record
	// Attempted is the amount of repositories that were not skipped.
	Attempted int
	// NotScraped lists the repositories whose probe failed, in catalog order.
	NotScraped []string
	// Added is the amount of rows appended to the results table.
	Added int
}

type Pipeline struct {
	session fetcher.Session
	sampler sampler.Sampler
	store   results.Store
	chrono  chrono.API
	tel     telemetry.API
	opts    Options
}

func New(
	session fetcher.Session,
	smp sampler.Sampler,
	store results.Store,
	clock chrono.API,
	tel telemetry.API,
	opts Options,
) Pipeline {
	assert.NotNil(session, "session")
	assert.NotNil(store, "store")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "tel")
	opts = opts.withDefaults()
	assert.Positive(opts.Samples, "samples")
	assert.Positive(opts.ProgressEvery, "progress every")

	return Pipeline{
		session: session,
		sampler: smp,
		store:   store,
		chrono:  clock,
		tel:     telemetry.NewScopedAPI("pipeline", tel),
		opts:    opts,
	}
}

// Run scrapes every repository of the catalog that is not in the results
// table yet. A repository whose probe fails is skipped, any other error
// stops the run without saving anything.
func (p Pipeline) Run(ctx context.Context, repos []catalog.Repository) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	prior, err := p.store.Load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, fmt.Errorf("load results: %w", err)
	}
	present := prior.Names()

	summary := Summary{Records: make([]*Record, len(repos))}
	for i, repo := range repos {
		record := &Record{Repository: repo, State: NotStarted}
		summary.Records[i] = record

		if _, ok := present[repo.Name]; ok {
			record.State = SkippedAlreadyPresent
			countState(ctx, record.State)
			continue
		}

		summary.Attempted++
		if summary.Attempted%p.opts.ProgressEvery == 0 {
			fmt.Fprintf(p.opts.Out, "%d out of %d repos complete\n", summary.Attempted, len(repos))
		}

		err := p.probe(ctx, record)
		var probeErr *ProbeError
		if errors.As(err, &probeErr) {
			record.State = FailedProbe
			record.ProbeErr = probeErr
			summary.NotScraped = append(summary.NotScraped, repo.Name)
			p.tel.ReportWarning(report_pipeline_probe, repo.Name, probeErr.Err)
			countState(ctx, record.State)
			continue
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return summary, err
		}

		err = p.sample(ctx, record)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return summary, fmt.Errorf("sample %s: %w", repo.Name, err)
		}
	}

	if summary.Attempted > 0 {
		fmt.Fprintf(
			p.opts.Out,
			"%d repos did not get added. The repos were: %v\n",
			len(summary.NotScraped),
			summary.NotScraped,
		)
	}

	err = p.persist(ctx, prior, &summary)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}
	return summary, nil
}

// load navigates to url within timeout, the wait for the page to render
// has a timeout of its own.
func (p Pipeline) load(ctx context.Context, url string, timeout time.Duration) error {
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.session.Load(loadCtx, url)
}

// probe reads the range of dates the repository has contributions in.
// Anything that goes wrong is a ProbeError, except for ctx itself being
// cancelled.
func (p Pipeline) probe(ctx context.Context, record *Record) error {
	ctx, span := tracer.Start(ctx, "probe")
	defer span.End()
	span.SetAttributes(attribute.String("repo", record.Name))

	record.State = ProbingInitialRange

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ProbeError{Repo: record.Name, Err: err}
	}

	err := p.load(ctx, record.ContributorsURL, p.opts.ProbeTimeout)
	if err != nil {
		return fail(err)
	}
	region, err := p.session.WaitForRegion(ctx, contribpage.LayoutRegion, p.opts.ProbeTimeout)
	if err != nil {
		return fail(err)
	}
	start, _, err := contribpage.ExtractInitialDateRange(region.OuterHTML)
	if err != nil {
		return fail(err)
	}

	record.StartDate = &start
	return nil
}

// sample scrapes Samples windows between the start of the repository and
// today, then averages the contributor counts.
func (p Pipeline) sample(ctx context.Context, record *Record) error {
	record.State = Sampling

	urls, err := p.sampler.URLs(
		record.ContributorsURL,
		*record.StartDate,
		p.chrono.Now(),
		p.opts.Samples,
	)
	if err != nil {
		return err
	}
	record.WindowURLs = urls

	counts := make([]int, len(urls))
	contributions := make(map[string]contribpage.ContributorStatsMap, len(urls))
	for i, link := range urls {
		count, stats, err := p.scrapeWindow(ctx, link)
		if err != nil {
			return err
		}
		counts[i] = count
		contributions[link] = stats
	}

	avg := Average(counts)
	record.AverageContributors = &avg
	record.Contributions = contributions
	record.State = Accumulated

	p.tel.ReportDebug("sampled repository", record.Name, avg)
	return nil
}

func (p Pipeline) scrapeWindow(ctx context.Context, link string) (int, contribpage.ContributorStatsMap, error) {
	ctx, span := tracer.Start(ctx, "scrapeWindow")
	defer span.End()
	span.SetAttributes(attribute.String("url", link))

	count, stats, err := func() (int, contribpage.ContributorStatsMap, error) {
		err := p.load(ctx, link, p.opts.WindowTimeout)
		if err != nil {
			return 0, nil, err
		}
		region, err := p.session.WaitForRegion(ctx, contribpage.LayoutRegion, p.opts.WindowTimeout)
		if err != nil {
			return 0, nil, err
		}
		return contribpage.ExtractContributorStats(region.OuterHTML)
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape window failed")
		p.tel.ReportBroken(report_pipeline_window, link, err)
		return 0, nil, fmt.Errorf("scrape window %s: %w", link, err)
	}

	span.SetAttributes(attribute.Int("contributors", count))
	windowHistogram.Record(ctx, int64(count))
	return count, stats, nil
}

// persist appends the accumulated records to the prior table and saves it.
func (p Pipeline) persist(ctx context.Context, prior results.Table, summary *Summary) error {
	ctx, span := tracer.Start(ctx, "persist")
	defer span.End()

	var rows []results.Row
	var written []*Record
	for _, record := range summary.Records {
		if record.State != Accumulated {
			continue
		}
		row, err := record.row()
		if err != nil {
			p.tel.ReportBroken(report_pipeline_persist, record.Name, err)
			continue
		}
		rows = append(rows, row)
		written = append(written, record)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.opts.Out, "No repos added")
		return nil
	}

	err := p.store.Save(ctx, prior.Append(rows...))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("save results: %w", err)
	}
	for _, record := range written {
		record.State = Persisted
		countState(ctx, record.State)
	}

	summary.Added = len(rows)
	span.SetAttributes(attribute.Int("added", len(rows)))
	p.tel.ReportCount(report_pipeline_added, int64(len(rows)))
	p.tel.ReportCount(report_pipeline_skipped, int64(len(summary.NotScraped)))
	return nil
}
