package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/pipeline"
	"github.com/bluetab/fraudpipe/internal/repository"
)

func newRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline once and print the run summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			db, err := repository.InitDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init db: %w", err)
			}
			defer db.Close()

			// Ctrl-C aborts a long feature or training run.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			p := pipeline.New(cfg,
				repository.NewRunRepo(db),
				repository.NewArtifactRepo(db),
				repository.NewMetricRepo(db),
			)

			summary, err := p.Run(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "path to the pipeline config file")

	return cmd
}
