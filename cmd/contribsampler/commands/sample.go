package commands

import (
	"fmt"
	"strings"
	"time"

	"contribsampler/internal/catalog"
	"contribsampler/internal/sampler"

	"github.com/spf13/cobra"
)

var sampleFlags struct {
	from    string
	to      string
	samples int
	seed    int64
	raw     bool
}

var sampleCmd = &cobra.Command{
	Use:   "sample <contributors url>",
	Short: "Print the window urls that would be scraped for a repository.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse(sampler.QueryDateLayout, sampleFlags.from)
		if err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
		to := time.Now()
		if sampleFlags.to != "" {
			to, err = time.Parse(sampler.QueryDateLayout, sampleFlags.to)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
		}

		samples := cfg.Samples
		if cmd.Flags().Changed("samples") {
			samples = sampleFlags.samples
		}
		seed := cfg.Seed
		if cmd.Flags().Changed("seed") {
			seed = sampleFlags.seed
		}

		base := args[0]
		if !sampleFlags.raw {
			base = contributorsURL(base)
		}

		urls, err := sampler.NewSeeded(seed).URLs(base, from, to, samples)
		if err != nil {
			return err
		}
		for _, link := range urls {
			fmt.Fprintln(cmd.OutOrStdout(), link)
		}
		return nil
	},
}

// contributorsURL accepts either a repository url or its contributors page.
func contributorsURL(link string) string {
	if strings.HasSuffix(strings.TrimRight(link, "/"), catalog.ContributorsURL("")) {
		return link
	}
	return catalog.ContributorsURL(link)
}

func init() {
	flags := sampleCmd.Flags()
	flags.StringVar(&sampleFlags.from, "from", "", "first day windows may start on (YYYY-MM-DD)")
	flags.StringVar(&sampleFlags.to, "to", "", "last day windows may start on (YYYY-MM-DD), defaults to today")
	flags.IntVarP(&sampleFlags.samples, "samples", "n", 0, "amount of windows")
	flags.Int64Var(&sampleFlags.seed, "seed", 0, "random seed")
	flags.BoolVar(&sampleFlags.raw, "raw", false, "use the url as given instead of deriving the contributors page")
	sampleCmd.MarkFlagRequired("from")
}
