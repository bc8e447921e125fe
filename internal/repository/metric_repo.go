package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bluetab/fraudpipe/internal/domain"
)

type MetricRepo struct {
	db *sql.DB
}

func NewMetricRepo(db *sql.DB) *MetricRepo {
	return &MetricRepo{db: db}
}

// BulkInsert stores all metric rows for one run in a single transaction.
func (r *MetricRepo) BulkInsert(runID string, metrics []domain.Metrics) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO run_metrics
		(id, run_id, scope, fold, precision, recall, f1, accuracy, auc_pr, roc_auc, tp, fp, tn, fn)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range metrics {
		m := &metrics[i]
		id := fmt.Sprintf("%s-%s-%d", runID, m.Scope, m.Fold)
		res, err := stmt.Exec(
			id, runID, string(m.Scope), m.Fold,
			m.Precision, m.Recall, m.F1, m.Accuracy, m.AUCPR, m.ROCAUC,
			m.TP, m.FP, m.TN, m.FN,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert metric %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *MetricRepo) GetByRunID(runID string) ([]domain.Metrics, error) {
	rows, err := r.db.Query(
		"SELECT scope, fold, precision, recall, f1, accuracy, auc_pr, roc_auc, tp, fp, tn, fn FROM run_metrics WHERE run_id = ? ORDER BY scope, fold",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMetrics(rows)
}

// GetEvalMetrics returns the held-out evaluation metrics for a run, or nil
// if the run never reached evaluation.
func (r *MetricRepo) GetEvalMetrics(runID string) (*domain.Metrics, error) {
	rows, err := r.db.Query(
		"SELECT scope, fold, precision, recall, f1, accuracy, auc_pr, roc_auc, tp, fp, tn, fn FROM run_metrics WHERE run_id = ? AND scope = ?",
		runID, string(domain.ScopeEval),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics, err := scanMetrics(rows)
	if err != nil || len(metrics) == 0 {
		return nil, err
	}
	return &metrics[0], nil
}

// TrendPoint is one completed run's headline evaluation metrics, for the
// dashboard's metric-over-time view.
type TrendPoint struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	F1         float64   `json:"f1"`
	AUCPR      float64   `json:"auc_pr"`
	Recall     float64   `json:"recall"`
}

func (r *MetricRepo) GetEvalTrend(limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT m.run_id, r.finished_at, m.f1, m.auc_pr, m.recall
		FROM run_metrics m
		JOIN pipeline_runs r ON r.id = m.run_id
		WHERE m.scope = ? AND r.status = 'completed'
		ORDER BY r.started_at DESC LIMIT ?
	`, string(domain.ScopeEval), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var finishedAt string
		if err := rows.Scan(&p.RunID, &finishedAt, &p.F1, &p.AUCPR, &p.Recall); err != nil {
			return nil, err
		}
		p.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		points = append(points, p)
	}
	return points, rows.Err()
}

// --- helpers ---

func scanMetrics(rows *sql.Rows) ([]domain.Metrics, error) {
	var metrics []domain.Metrics
	for rows.Next() {
		var m domain.Metrics
		var scope string
		err := rows.Scan(
			&scope, &m.Fold, &m.Precision, &m.Recall, &m.F1, &m.Accuracy,
			&m.AUCPR, &m.ROCAUC, &m.TP, &m.FP, &m.TN, &m.FN,
		)
		if err != nil {
			return nil, err
		}
		m.Scope = domain.MetricScope(scope)
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
