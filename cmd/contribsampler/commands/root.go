package commands

import (
	"context"

	"contribsampler/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	cfg        Config
)

var rootCmd = &cobra.Command{
	Use:           "contribsampler",
	Short:         "contribsampler estimates how many people contribute to a repository in a typical two weeks.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		loaded, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ConfigFile, "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug information")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(reportCmd)
}

// Execute runs the command line, the returned error is what stopped it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
