package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			error TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			raw_count INTEGER NOT NULL DEFAULT 0,
			merged_count INTEGER NOT NULL DEFAULT 0,
			train_count INTEGER NOT NULL DEFAULT 0,
			eval_count INTEGER NOT NULL DEFAULT 0,
			balanced_count INTEGER NOT NULL DEFAULT 0,
			synthetic_count INTEGER NOT NULL DEFAULT 0,
			source_hashes TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS model_artifacts (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			model_type TEXT NOT NULL,
			feature_names TEXT NOT NULL,
			weights TEXT NOT NULL,
			bias REAL NOT NULL,
			means TEXT NOT NULL,
			stddevs TEXT NOT NULL,
			threshold REAL NOT NULL,
			trained_at DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES pipeline_runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_model_artifacts_run ON model_artifacts(run_id)`,

		`CREATE TABLE IF NOT EXISTS run_metrics (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			fold INTEGER NOT NULL,
			precision REAL NOT NULL,
			recall REAL NOT NULL,
			f1 REAL NOT NULL,
			accuracy REAL NOT NULL,
			auc_pr REAL NOT NULL,
			roc_auc REAL NOT NULL,
			tp INTEGER NOT NULL,
			fp INTEGER NOT NULL,
			tn INTEGER NOT NULL,
			fn INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES pipeline_runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_metrics_run ON run_metrics(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_run_metrics_scope ON run_metrics(scope)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
