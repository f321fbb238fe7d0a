package commands

import (
	"fmt"
	"time"

	"contribsampler/internal/fetcher"
	"contribsampler/internal/pipeline"
	"contribsampler/internal/sampler"
	"contribsampler/lib/configutil"
	"contribsampler/lib/configutil/sqldb"
)

// ConfigFile is read from the working directory unless --config says otherwise.
const ConfigFile = "contribsampler.json5"

const (
	StoreCSV    = "csv"
	StoreSQLite = "sqlite"
)

type Config struct {
	// Catalog is the csv listing repositories by `Name` and `Github` url.
	Catalog string `json:"catalog"`
	// Results is the results csv (store "csv" only).
	Results  string       `json:"results"`
	Store    string       `json:"store"`
	Database sqldb.Config `json:"database"`

	Driver      string `json:"driver"`
	ShowBrowser bool   `json:"show_browser"`
	ChromePath  string `json:"chrome_path"`
	UserAgent   string `json:"user_agent"`

	Samples  int    `json:"samples"`
	Seed     int64  `json:"seed"`
	Timezone string `json:"timezone"`

	ProbeTimeoutSeconds  int     `json:"probe_timeout_seconds"`
	WindowTimeoutSeconds int     `json:"window_timeout_seconds"`
	SettleMilliseconds   int     `json:"settle_milliseconds"`
	RequestsPerSecond    float64 `json:"requests_per_second"`
	ProgressEvery        int     `json:"progress_every"`

	// DumpDir receives every fetched page when not empty.
	DumpDir string `json:"dump_dir"`
}

func DefaultConfig() Config {
	return Config{
		Catalog:              "Copy of List of tools for MLOps_v4 - Tools.csv",
		Results:              "scraped_contributor_information_for_repos.csv",
		Store:                StoreCSV,
		Driver:               string(fetcher.DriverBrowser),
		Samples:              sampler.DefaultSamples,
		Seed:                 sampler.DefaultSeed,
		ProbeTimeoutSeconds:  int(pipeline.DefaultProbeTimeout / time.Second),
		WindowTimeoutSeconds: int(pipeline.DefaultWindowTimeout / time.Second),
		ProgressEvery:        pipeline.DefaultProgressEvery,
	}
}

// LoadConfig reads the config file at path (and its .local override) on top
// of DefaultConfig, a missing file leaves the defaults.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfigWithDefaults(path, DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	switch cfg.Store {
	case StoreCSV, StoreSQLite:
	default:
		return Config{}, fmt.Errorf("unknown store %q, expected %q or %q", cfg.Store, StoreCSV, StoreSQLite)
	}
	return cfg, nil
}

func (c Config) fetcherOptions() fetcher.Options {
	return fetcher.Options{
		Driver:            fetcher.Driver(c.Driver),
		Settle:            time.Duration(c.SettleMilliseconds) * time.Millisecond,
		UserAgent:         c.UserAgent,
		ShowBrowser:       c.ShowBrowser,
		ChromePath:        c.ChromePath,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

func (c Config) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Samples:       c.Samples,
		ProbeTimeout:  time.Duration(c.ProbeTimeoutSeconds) * time.Second,
		WindowTimeout: time.Duration(c.WindowTimeoutSeconds) * time.Second,
		ProgressEvery: c.ProgressEvery,
	}
}
