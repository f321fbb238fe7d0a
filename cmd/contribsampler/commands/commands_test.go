package commands

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"contribsampler/internal/sampler"
	"contribsampler/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, DefaultConfig(), cfg)

	path := testutil.WriteFile(t, dir, ConfigFile, `{
		// shared settings
		catalog: "tools.csv",
		driver: "http",
		samples: 8
	}`)
	testutil.WriteFile(t, dir, "contribsampler.local.json5", `{ samples: 3, requests_per_second: 0.5 }`)

	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "tools.csv", cfg.Catalog)
	require.Equal(t, "http", cfg.Driver)
	require.Equal(t, 3, cfg.Samples)
	require.Equal(t, 0.5, cfg.RequestsPerSecond)
	require.Equal(t, sampler.DefaultSeed, cfg.Seed)
	require.Equal(t, DefaultConfig().Results, cfg.Results)

	options := cfg.pipelineOptions()
	require.Equal(t, 30*time.Second, options.ProbeTimeout)
	require.Equal(t, 10*time.Second, options.WindowTimeout)

	zeroSeed := testutil.WriteFile(t, dir, "zero.json5", `{ seed: 0, progress_every: 0 }`)
	cfg, err = LoadConfig(zeroSeed)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, int64(0), cfg.Seed)
	require.Equal(t, 0, cfg.ProgressEvery)
	require.Equal(t, DefaultConfig().Catalog, cfg.Catalog)

	badStore := testutil.WriteFile(t, dir, "bad.json5", `{ store: "parquet" }`)
	_, err = LoadConfig(badStore)
	require.Error(t, err)
}

func TestContributorsURL(t *testing.T) {
	require.Equal(t, "https://github.com/zenml-io/zenml/graphs/contributors", contributorsURL("https://github.com/zenml-io/zenml/"))
	require.Equal(t, "https://github.com/zenml-io/zenml/graphs/contributors", contributorsURL("https://github.com/zenml-io/zenml/graphs/contributors"))
}

func execute(t *testing.T, args ...string) string {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func TestSampleCommand(t *testing.T) {
	config := filepath.Join(t.TempDir(), ConfigFile)
	output := execute(
		t,
		"--config", config,
		"sample", "https://github.com/iterative/dvc",
		"--from", "2016-03-01",
		"--to", "2022-01-01",
		"-n", "3",
	)

	expected, err := sampler.NewSeeded(sampler.DefaultSeed).URLs(
		"https://github.com/iterative/dvc/graphs/contributors",
		time.Date(2016, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
		3,
	)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, strings.Join(expected, "\n")+"\n", output)
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	results := testutil.WriteFile(
		t, dir, "results.csv",
		"repo,repo_url,avg_num_contributors,start_date,contrib_info,date_urls\n"+
			"Kedro,https://github.com/kedro-org/kedro/graphs/contributors,4.2,\"May 16, 2019\",{},[]\n",
	)
	config := testutil.WriteFile(t, dir, ConfigFile, fmt.Sprintf(`{ results: %q }`, results))

	output := execute(t, "--config", config, "report", "--repo", "")
	require.Contains(t, output, "Kedro")
	require.Contains(t, output, "4.2")

	output = execute(t, "--config", config, "report", "--repo", "kedro")
	require.Contains(t, output, "Kedro (https://github.com/kedro-org/kedro/graphs/contributors)")
}
