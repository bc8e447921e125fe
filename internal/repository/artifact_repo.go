package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bluetab/fraudpipe/internal/domain"
)

type ArtifactRepo struct {
	db *sql.DB
}

func NewArtifactRepo(db *sql.DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

func (r *ArtifactRepo) Insert(a *domain.ModelArtifact) error {
	names, err := json.Marshal(a.FeatureNames)
	if err != nil {
		return fmt.Errorf("marshal feature names: %w", err)
	}
	weights, err := json.Marshal(a.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	means, err := json.Marshal(a.Means)
	if err != nil {
		return fmt.Errorf("marshal means: %w", err)
	}
	stddevs, err := json.Marshal(a.Stddevs)
	if err != nil {
		return fmt.Errorf("marshal stddevs: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO model_artifacts
		(id, run_id, model_type, feature_names, weights, bias, means, stddevs, threshold, trained_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.RunID, a.ModelType, string(names), string(weights), a.Bias,
		string(means), string(stddevs), a.Threshold, a.TrainedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (r *ArtifactRepo) GetByID(id string) (*domain.ModelArtifact, error) {
	row := r.db.QueryRow("SELECT * FROM model_artifacts WHERE id = ?", id)
	return scanArtifact(row.Scan)
}

// GetByRunID returns the artifact trained by the given run, or nil if the
// run produced none (failed before the training stage).
func (r *ArtifactRepo) GetByRunID(runID string) (*domain.ModelArtifact, error) {
	row := r.db.QueryRow("SELECT * FROM model_artifacts WHERE run_id = ?", runID)
	a, err := scanArtifact(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *ArtifactRepo) List(page, limit int) ([]domain.ModelArtifact, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM model_artifacts").Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := r.db.Query(
		"SELECT * FROM model_artifacts ORDER BY trained_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var artifacts []domain.ModelArtifact
	for rows.Next() {
		a, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, total, rows.Err()
}

// --- helpers ---

func scanArtifact(scan func(...any) error) (*domain.ModelArtifact, error) {
	var a domain.ModelArtifact
	var names, weights, means, stddevs, trainedAt string

	err := scan(
		&a.ID, &a.RunID, &a.ModelType, &names, &weights, &a.Bias,
		&means, &stddevs, &a.Threshold, &trainedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(names), &a.FeatureNames); err != nil {
		return nil, fmt.Errorf("unmarshal feature names: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &a.Weights); err != nil {
		return nil, fmt.Errorf("unmarshal weights: %w", err)
	}
	if err := json.Unmarshal([]byte(means), &a.Means); err != nil {
		return nil, fmt.Errorf("unmarshal means: %w", err)
	}
	if err := json.Unmarshal([]byte(stddevs), &a.Stddevs); err != nil {
		return nil, fmt.Errorf("unmarshal stddevs: %w", err)
	}
	a.TrainedAt, _ = time.Parse(time.RFC3339, trainedAt)

	return &a, nil
}
