package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fraudpipe",
		Short: "Financial fraud classification pipeline",
		Long: `fraudpipe merges raw transaction sources, engineers features,
rebalances the training partition and trains a fraud classifier,
persisting model artifacts and metrics for dashboard consumption.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newGenerateCommand())

	return rootCmd
}
