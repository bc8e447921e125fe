package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
	"github.com/bluetab/fraudpipe/internal/features"
	"github.com/bluetab/fraudpipe/internal/repository"
)

const (
	accounts       = 12
	txnsPerAccount = 18
)

type row struct {
	id      string
	account int
	n       int
	amount  float64
	ts      time.Time
	fraud   bool
}

// fixtureRows builds a deterministic dataset: 12 accounts with 18 hourly
// transactions each. Fraud rows carry clearly larger amounts so the model
// has signal to find.
func fixtureRows() []row {
	t0 := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	var rows []row
	for a := 1; a <= accounts; a++ {
		for n := 0; n < txnsPerAccount; n++ {
			fraud := n%5 == 0
			amount := 20.0 + float64(n)
			if fraud {
				amount = 1000.0 + float64(n)
			}
			rows = append(rows, row{
				id:      fmt.Sprintf("TXN-%02d-%03d", a, n),
				account: a,
				n:       n,
				amount:  amount,
				ts:      t0.Add(time.Duration(a)*24*time.Hour + time.Duration(n)*time.Hour),
				fraud:   fraud,
			})
		}
	}
	return rows
}

func csvFor(rows []row, alias bool) string {
	var b strings.Builder
	if alias {
		b.WriteString("txn_id,account,cust_id,device_id,merchant_name,amount_usd,customer_country,merchant_country,channel,ts,fraud\n")
	} else {
		b.WriteString("transaction_id,account_id,customer_id,device_id,merchant,amount,customer_country,merchant_country,channel,timestamp,is_fraud\n")
	}
	for _, r := range rows {
		label := "0"
		if r.fraud {
			label = "1"
		}
		ts := r.ts.Format(time.RFC3339)
		if alias {
			ts = r.ts.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(&b, "%s,ACC-%02d,CUST-%02d,DEV-%02d,Shop-%d,%.2f,ES,ES,pos,%s,%s\n",
			r.id, r.account, r.account, r.account, r.n%4, r.amount, ts, label)
	}
	return b.String()
}

// writeSources writes the two overlapping bank feeds plus the device and
// customer enrichment files and returns their source configs.
func writeSources(t *testing.T, dir string) []config.SourceConfig {
	t.Helper()

	rows := fixtureRows()
	split := 7 * txnsPerAccount
	bankA := rows[:split]
	bankB := append(append([]row(nil), rows[split:]...), bankA[:20]...)

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	var devices strings.Builder
	devices.WriteString("DEVICE_ID|TYPE|OS|BROWSER|TRUST_SCORE\n")
	for a := 1; a <= accounts; a++ {
		fmt.Fprintf(&devices, "DEV-%02d|mobile|Android|Chrome|0.%d\n", a, 50+a)
	}

	type customer struct {
		CustomerID string `json:"customer_id"`
		Name       string `json:"name"`
		Age        int    `json:"age"`
		Country    string `json:"country"`
	}
	var customers []customer
	for a := 1; a <= accounts; a++ {
		customers = append(customers, customer{
			CustomerID: fmt.Sprintf("CUST-%02d", a),
			Name:       fmt.Sprintf("Customer %d", a),
			Age:        30 + a,
			Country:    "ES",
		})
	}
	crm, err := json.Marshal(map[string]any{"records": customers})
	require.NoError(t, err)

	return []config.SourceConfig{
		{Name: "bank_a", Kind: "transactions", Format: "csv", Path: write("bank_a.csv", csvFor(bankA, false))},
		{Name: "bank_b", Kind: "transactions", Format: "csv", Path: write("bank_b.csv", csvFor(bankB, true))},
		{Name: "devices", Kind: "devices", Format: "psv", Path: write("devices.psv", devices.String())},
		{Name: "crm", Kind: "customers", Format: "json", Path: write("customers.json", string(crm))},
	}
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "test.db")
	cfg.Sources = writeSources(t, dir)
	cfg.Features.MinHistory = 2
	cfg.Features.Workers = 2
	cfg.Training.Folds = 3
	cfg.Training.Epochs = 60
	cfg.Training.BatchSize = 32
	cfg.Training.LearningRate = 0.1
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *repository.RunRepo, *repository.ArtifactRepo, *repository.MetricRepo) {
	t.Helper()
	db, err := repository.InitDB(cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runRepo := repository.NewRunRepo(db)
	artifactRepo := repository.NewArtifactRepo(db)
	metricRepo := repository.NewMetricRepo(db)
	return New(cfg, runRepo, artifactRepo, metricRepo), runRepo, artifactRepo, metricRepo
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	p, runRepo, artifactRepo, metricRepo := newTestPipeline(t, cfg)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	run := summary.Run
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, domain.StageEvaluated, run.Stage)

	// 216 distinct rows across both feeds, 20 shared verbatim.
	total := accounts * txnsPerAccount
	assert.Equal(t, total+20, run.RawCount)
	assert.Equal(t, total, summary.Merge.UniqueCount)
	assert.Equal(t, 20, summary.Merge.ExactDuplicates)
	assert.Equal(t, total, run.MergedCount)

	// Sentinel policy keeps every record; the split covers all of them.
	assert.Equal(t, total, run.TrainCount+run.EvalCount)

	// The evaluation partition keeps the raw class ratio and never grows.
	fraudTotal := accounts * 4 // n in {0,5,10,15} per account
	wantEval := int(0.2*float64(total-fraudTotal)) + int(0.2*float64(fraudTotal))
	assert.Equal(t, wantEval, run.EvalCount)
	eval := summary.Eval
	assert.Equal(t, run.EvalCount, eval.TP+eval.FP+eval.TN+eval.FN)

	// Balancing touched the training partition only.
	assert.Greater(t, run.SyntheticCount, 0)
	assert.Equal(t, run.TrainCount+run.SyntheticCount, run.BalancedCount)
	assert.Equal(t, run.SyntheticCount, summary.Balance.SyntheticAdded)

	assert.Equal(t, domain.ScopeEval, eval.Scope)
	assert.Greater(t, eval.ROCAUC, 0.8, "amount-separable fixture should rank well")

	require.NotNil(t, summary.CV)
	assert.Len(t, summary.CV.Folds, cfg.Training.Folds)

	// Everything landed in the database.
	stored, err := runRepo.GetByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, stored.Status)
	assert.Len(t, stored.SourceHashes, 4)

	artifact, err := artifactRepo.GetByRunID(run.ID)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, summary.ArtifactID, artifact.ID)
	assert.Equal(t, features.Names, artifact.FeatureNames)
	assert.Len(t, artifact.Weights, len(features.Names))

	metrics, err := metricRepo.GetByRunID(run.ID)
	require.NoError(t, err)
	assert.Len(t, metrics, 1+cfg.Training.Folds+2)
}

func TestRunFailsOnMissingSource(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Sources[0].Path = filepath.Join(dir, "gone.csv")
	p, runRepo, _, _ := newTestPipeline(t, cfg)

	_, err := p.Run(context.Background())
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageRaw, stageErr.Stage)

	runs, total, err := runRepo.List(repository.RunFilter{Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.StageRaw, runs[0].Stage)
	assert.NotEmpty(t, runs[0].Error)
}

func TestRunFailsOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)

	// Replace bank A with a feed that has no fraud label column.
	bad := "transaction_id,account_id,amount,timestamp\nTXN-1,ACC-01,10.00,2026-08-01T10:00:00Z\n"
	require.NoError(t, os.WriteFile(cfg.Sources[0].Path, []byte(bad), 0o644))
	p, _, _, _ := newTestPipeline(t, cfg)

	_, err := p.Run(context.Background())
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageRaw, stageErr.Stage)

	var mismatch *domain.SchemaMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	p, _, _, _ := newTestPipeline(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
