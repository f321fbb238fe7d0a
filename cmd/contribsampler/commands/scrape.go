package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"contribsampler/internal/catalog"
	"contribsampler/internal/components/chrono"
	"contribsampler/internal/components/telemetry"
	"contribsampler/internal/fetcher"
	"contribsampler/internal/pipeline"
	"contribsampler/internal/sampler"
	"contribsampler/lib/restyutil"
	libtelemetry "contribsampler/lib/telemetry"

	"github.com/spf13/cobra"
)

var scrapeFlags struct {
	catalog string
	results string
	driver  string
	samples int
	show    bool
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every repository of the catalog that is not in the results yet.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("catalog") {
			cfg.Catalog = scrapeFlags.catalog
		}
		if flags.Changed("results") {
			cfg.Results = scrapeFlags.results
		}
		if flags.Changed("driver") {
			cfg.Driver = scrapeFlags.driver
		}
		if flags.Changed("samples") {
			cfg.Samples = scrapeFlags.samples
		}
		if flags.Changed("show-browser") {
			cfg.ShowBrowser = scrapeFlags.show
		}
		return runScrape(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	flags := scrapeCmd.Flags()
	flags.StringVar(&scrapeFlags.catalog, "catalog", "", "repository catalog csv")
	flags.StringVar(&scrapeFlags.results, "results", "", "results csv")
	flags.StringVar(&scrapeFlags.driver, "driver", "", "page fetcher, either browser or http")
	flags.IntVarP(&scrapeFlags.samples, "samples", "n", 0, "windows sampled per repository")
	flags.BoolVar(&scrapeFlags.show, "show-browser", false, "run chrome with a visible window")
}

func setupTelemetry(ctx context.Context) func() {
	tel, err := libtelemetry.SetupFromEnv(ctx, "contribsampler")
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("telemetry is not configured", "file", libtelemetry.ConfigFile)
		return func() {}
	}
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
		return func() {}
	}
	libtelemetry.InstrumentPerfStats(ctx, 15*time.Second)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := tel.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}
}

func runScrape(ctx context.Context, c Config, out io.Writer) error {
	shutdown := setupTelemetry(ctx)
	defer shutdown()

	repos, err := catalog.Load(c.Catalog)
	if err != nil {
		return err
	}

	clock, err := chrono.NewStandardImpl(c.Timezone)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := c.fetcherOptions()
	if c.DumpDir != "" {
		dump, err := restyutil.NewFilesystemOutput(c.DumpDir)
		if err != nil {
			return err
		}
		opts.Dump = dump
	}

	tel := telemetry.SlogAPI{}
	session, err := fetcher.Open(ctx, opts, tel)
	if err != nil {
		return err
	}
	defer session.Close()

	pipelineOpts := c.pipelineOptions()
	pipelineOpts.Out = out
	p := pipeline.New(session, sampler.NewSeeded(c.Seed), store, clock, tel, pipelineOpts)

	summary, err := p.Run(ctx, repos)
	if err != nil {
		return err
	}
	slog.Info(
		"scrape finished",
		"repos", len(repos),
		"attempted", summary.Attempted,
		"added", summary.Added,
		"not_scraped", len(summary.NotScraped),
	)
	return nil
}
