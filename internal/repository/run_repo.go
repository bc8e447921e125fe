package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bluetab/fraudpipe/internal/domain"
)

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Insert(run *domain.PipelineRun) error {
	hashes, err := json.Marshal(run.SourceHashes)
	if err != nil {
		return fmt.Errorf("marshal hashes: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO pipeline_runs
		(id, status, stage, error, started_at, finished_at, raw_count, merged_count,
		 train_count, eval_count, balanced_count, synthetic_count, source_hashes)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, string(run.Status), string(run.Stage), nullableString(run.Error),
		run.StartedAt.Format(time.RFC3339), formatNullableTime(run.FinishedAt),
		run.RawCount, run.MergedCount, run.TrainCount, run.EvalCount,
		run.BalancedCount, run.SyntheticCount, string(hashes),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateStage advances the run's stage marker while it is in flight.
func (r *RunRepo) UpdateStage(id string, stage domain.RunStage) error {
	_, err := r.db.Exec("UPDATE pipeline_runs SET stage = ? WHERE id = ?", string(stage), id)
	return err
}

// MarkCompleted records the terminal state, final stage counts and source
// provenance hashes.
func (r *RunRepo) MarkCompleted(run *domain.PipelineRun) error {
	now := time.Now().UTC()
	run.Status = domain.RunCompleted
	run.Stage = domain.StageEvaluated
	run.FinishedAt = &now

	hashes, err := json.Marshal(run.SourceHashes)
	if err != nil {
		return fmt.Errorf("marshal hashes: %w", err)
	}

	_, err = r.db.Exec(
		`UPDATE pipeline_runs SET status = ?, stage = ?, finished_at = ?,
		 raw_count = ?, merged_count = ?, train_count = ?, eval_count = ?,
		 balanced_count = ?, synthetic_count = ?, source_hashes = ? WHERE id = ?`,
		string(run.Status), string(run.Stage), now.Format(time.RFC3339),
		run.RawCount, run.MergedCount, run.TrainCount, run.EvalCount,
		run.BalancedCount, run.SyntheticCount, string(hashes), run.ID,
	)
	return err
}

// MarkFailed records the failing stage and diagnostic so run reports can
// surface where the pipeline aborted.
func (r *RunRepo) MarkFailed(id string, stage domain.RunStage, errMsg string) error {
	_, err := r.db.Exec(
		"UPDATE pipeline_runs SET status = ?, stage = ?, error = ?, finished_at = ? WHERE id = ?",
		string(domain.RunFailed), string(stage), errMsg,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	return err
}

func (r *RunRepo) GetByID(id string) (*domain.PipelineRun, error) {
	row := r.db.QueryRow("SELECT * FROM pipeline_runs WHERE id = ?", id)
	return scanRun(row.Scan)
}

func (r *RunRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM pipeline_runs").Scan(&count)
	return count, err
}

type RunFilter struct {
	Status string
	Page   int
	Limit  int
}

func (r *RunRepo) List(f RunFilter) ([]domain.PipelineRun, int, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM pipeline_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT * FROM pipeline_runs" + where + " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// GetLatestCompleted returns the most recent completed run, or nil if none
// has completed yet.
func (r *RunRepo) GetLatestCompleted() (*domain.PipelineRun, error) {
	row := r.db.QueryRow(
		"SELECT * FROM pipeline_runs WHERE status = ? ORDER BY started_at DESC LIMIT 1",
		string(domain.RunCompleted),
	)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// DashboardStats holds aggregate run statistics.
type DashboardStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Running   int `json:"running"`
}

func (r *RunRepo) GetDashboardStats() (*DashboardStats, error) {
	s := &DashboardStats{}
	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='running' THEN 1 ELSE 0 END), 0)
		FROM pipeline_runs
	`).Scan(&s.Total, &s.Completed, &s.Failed, &s.Running)
	return s, err
}

// --- helpers ---

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func scanRun(scan func(...any) error) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var status, stage, startedAt, hashes string
	var errNull, finishedNull sql.NullString

	err := scan(
		&run.ID, &status, &stage, &errNull, &startedAt, &finishedNull,
		&run.RawCount, &run.MergedCount, &run.TrainCount, &run.EvalCount,
		&run.BalancedCount, &run.SyntheticCount, &hashes,
	)
	if err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	run.Stage = domain.RunStage(stage)
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if errNull.Valid {
		run.Error = errNull.String
	}
	if finishedNull.Valid {
		t, _ := time.Parse(time.RFC3339, finishedNull.String)
		run.FinishedAt = &t
	}
	if hashes != "" {
		_ = json.Unmarshal([]byte(hashes), &run.SourceHashes)
	}

	return &run, nil
}
