package commands

import (
	"fmt"

	"contribsampler/internal/report"

	"github.com/spf13/cobra"
)

var reportFlags struct {
	repo string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the scraped results.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		table, err := store.Load(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if reportFlags.repo == "" {
			report.RenderTable(out, table)
			return nil
		}

		row, ok := report.Lookup(table, reportFlags.repo)
		if !ok {
			return fmt.Errorf("no repository named like %q in the results", reportFlags.repo)
		}
		return report.RenderRepo(out, row)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportFlags.repo, "repo", "r", "", "show the per window breakdown of a repository")
}
