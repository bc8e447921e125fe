package commands

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bluetab/fraudpipe/internal/api"
	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/repository"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run/metrics API for dashboard consumption",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Optional .env for local development.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			port := os.Getenv("PORT")
			if port == "" {
				port = "8080"
			}
			if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
				cfg.DBPath = dbPath
			}

			log.Printf("Initializing database at %s", cfg.DBPath)
			db, err := repository.InitDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init db: %w", err)
			}
			defer db.Close()

			router := api.NewRouter(cfg,
				repository.NewRunRepo(db),
				repository.NewArtifactRepo(db),
				repository.NewMetricRepo(db),
			)

			log.Printf("Fraud Classification Pipeline")
			log.Printf("Listening on http://localhost:%s", port)
			log.Printf("API base: http://localhost:%s/api/v1", port)
			log.Printf("")
			log.Printf("Endpoints:")
			log.Printf("  POST   /api/v1/runs")
			log.Printf("  GET    /api/v1/runs")
			log.Printf("  GET    /api/v1/runs/{id}")
			log.Printf("  GET    /api/v1/runs/{id}/metrics")
			log.Printf("  GET    /api/v1/models")
			log.Printf("  GET    /api/v1/models/{id}")
			log.Printf("  GET    /api/v1/dashboard")

			if err := http.ListenAndServe(":"+port, router); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pipeline.yaml", "path to the pipeline config file")

	return cmd
}
