package features

import (
	"context"
	"hash/fnv"
	"log"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
)

// Names lists the feature schema in vector order. The first block is
// stateless per-record features; the second is windowed per-account
// aggregates computed from records strictly before each record's timestamp.
var Names = []string{
	"amount",
	"amount_log",
	"hour_of_day",
	"day_of_week",
	"is_foreign",
	"channel_code",
	"category_code",
	"device_trust",
	"customer_age",
	"prior_count",
	"prior_sum",
	"prior_mean",
	"amount_over_mean",
	"secs_since_prev",
	"distinct_merchants",
}

// statelessCount is the number of leading features that never depend on
// account history.
const statelessCount = 9

// Stats summarises a feature engineering run.
type Stats struct {
	Total   int `json:"total"`
	Imputed int `json:"imputed"`
	Dropped int `json:"dropped"`
}

// Engineer turns merged records into feature vectors. Windowed aggregates
// only ever see records strictly before the record being featurized, so no
// future information leaks into training data.
type Engineer struct {
	cfg config.FeatureConfig
}

func NewEngineer(cfg config.FeatureConfig) *Engineer {
	return &Engineer{cfg: cfg}
}

// Transform featurizes all records. Work is partitioned by account across a
// worker pool; accounts are independent so no state is shared between
// workers. The output is sorted by timestamp for determinism.
func (e *Engineer) Transform(ctx context.Context, records []domain.MergedRecord) (*domain.Dataset, *Stats, error) {
	byAccount := make(map[string][]domain.MergedRecord)
	for _, rec := range records {
		byAccount[rec.AccountID] = append(byAccount[rec.AccountID], rec)
	}

	accounts := make([]string, 0, len(byAccount))
	for id := range byAccount {
		accounts = append(accounts, id)
	}
	sort.Strings(accounts)

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(accounts) && len(accounts) > 0 {
		workers = len(accounts)
	}

	jobs := make(chan string)
	var (
		mu      sync.Mutex
		vectors []domain.FeatureVector
		stats   Stats
		wg      sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for accountID := range jobs {
				vecs, imputed, dropped := e.transformAccount(byAccount[accountID])
				mu.Lock()
				vectors = append(vectors, vecs...)
				stats.Imputed += imputed
				stats.Dropped += dropped
				mu.Unlock()
			}
		}()
	}

	cancelled := false
	for _, accountID := range accounts {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		jobs <- accountID
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, nil, ctx.Err()
	}

	sort.Slice(vectors, func(i, j int) bool {
		if !vectors[i].Timestamp.Equal(vectors[j].Timestamp) {
			return vectors[i].Timestamp.Before(vectors[j].Timestamp)
		}
		return vectors[i].TransactionID < vectors[j].TransactionID
	})
	stats.Total = len(vectors)

	log.Printf("[features] Featurized %d records (%d imputed, %d dropped) across %d accounts",
		stats.Total, stats.Imputed, stats.Dropped, len(accounts))

	return &domain.Dataset{FeatureNames: Names, Vectors: vectors}, &stats, nil
}

// transformAccount walks one account's records in time order, keeping a
// running window of prior records.
func (e *Engineer) transformAccount(records []domain.MergedRecord) (vecs []domain.FeatureVector, imputed, dropped int) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	window := time.Duration(e.cfg.WindowHours) * time.Hour

	lo := 0
	for i := range records {
		rec := &records[i]
		t := rec.Timestamp

		for lo < i && records[lo].Timestamp.Before(t.Add(-window)) {
			lo++
		}

		// Strictly-before filter: records sharing this record's timestamp
		// are not visible to it.
		var prior []*domain.MergedRecord
		for j := lo; j < i; j++ {
			if records[j].Timestamp.Before(t) {
				prior = append(prior, &records[j])
			}
		}

		values := make([]float64, len(Names))
		e.stateless(rec, values)

		if len(prior) < e.cfg.MinHistory {
			histErr := &domain.InsufficientHistoryError{
				AccountID: rec.AccountID,
				Have:      len(prior),
				Need:      e.cfg.MinHistory,
			}
			if e.cfg.HistoryPolicy == config.PolicyDrop {
				log.Printf("[features] Dropping %s: %v", rec.TransactionID, histErr)
				dropped++
				continue
			}
			for k := statelessCount; k < len(values); k++ {
				values[k] = e.cfg.Sentinel
			}
			vecs = append(vecs, domain.FeatureVector{
				TransactionID: rec.TransactionID,
				AccountID:     rec.AccountID,
				Timestamp:     t,
				Values:        values,
				Label:         rec.IsFraud,
				Imputed:       true,
			})
			imputed++
			continue
		}

		e.windowed(rec, prior, values)
		vecs = append(vecs, domain.FeatureVector{
			TransactionID: rec.TransactionID,
			AccountID:     rec.AccountID,
			Timestamp:     t,
			Values:        values,
			Label:         rec.IsFraud,
		})
	}
	return vecs, imputed, dropped
}

func (e *Engineer) stateless(rec *domain.MergedRecord, values []float64) {
	values[0] = rec.Amount
	values[1] = math.Log1p(rec.Amount)
	values[2] = float64(rec.Timestamp.UTC().Hour())
	values[3] = float64(rec.Timestamp.UTC().Weekday())
	if rec.CustomerCountry != "" && rec.CustomerCountry != rec.MerchantCountry {
		values[4] = 1
	}
	values[5] = channelCode(rec.Channel)
	values[6] = categoryCode(rec.Category)
	values[7] = rec.Device.TrustScore
	if rec.Customer != nil {
		values[8] = float64(rec.Customer.Age)
	} else {
		values[8] = e.cfg.Sentinel
	}
}

func (e *Engineer) windowed(rec *domain.MergedRecord, prior []*domain.MergedRecord, values []float64) {
	var sum float64
	merchants := make(map[string]struct{})
	last := prior[0]
	for _, p := range prior {
		sum += p.Amount
		merchants[p.Merchant] = struct{}{}
		if p.Timestamp.After(last.Timestamp) {
			last = p
		}
	}
	mean := sum / float64(len(prior))

	values[9] = float64(len(prior))
	values[10] = sum
	values[11] = mean
	if mean > 0 {
		values[12] = rec.Amount / mean
	} else {
		values[12] = 1
	}
	values[13] = rec.Timestamp.Sub(last.Timestamp).Seconds()
	values[14] = float64(len(merchants))
}

func channelCode(c domain.Channel) float64 {
	switch c {
	case domain.ChannelPOS:
		return 0
	case domain.ChannelOnline:
		return 1
	case domain.ChannelMobile:
		return 2
	case domain.ChannelATM:
		return 3
	}
	return 4
}

// categoryCode maps a free-form merchant category to a stable small code.
func categoryCode(category string) float64 {
	if category == "" {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(category))
	return float64(h.Sum32() % 97)
}
