package merge

import (
	"log"
	"sort"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
	"github.com/bluetab/fraudpipe/internal/ingestion"
)

// Result summarises a merge run. Every raw record is accounted for:
//
//	sum(RawCounts) == UniqueCount + ExactDuplicates + Conflicts
//	len(Records)   == UniqueCount - DroppedNoDevice - DroppedNoCustomer
type Result struct {
	Records []domain.MergedRecord `json:"-"`

	RawCounts         map[string]int `json:"raw_counts"`
	SourceCounts      map[string]int `json:"source_counts"`
	UniqueCount       int            `json:"unique_count"`
	ExactDuplicates   int            `json:"exact_duplicates"`
	Conflicts         int            `json:"conflicts"`
	DroppedNoDevice   int            `json:"dropped_no_device"`
	DroppedNoCustomer int            `json:"dropped_no_customer"`
	FilledUnknown     int            `json:"filled_unknown"`
}

// Merger combines the raw transaction feeds into one deduplicated,
// schema-consistent dataset and joins on the enrichment tables.
type Merger struct {
	cfg config.MergeConfig
}

func NewMerger(cfg config.MergeConfig) *Merger {
	return &Merger{cfg: cfg}
}

// Merge unions all transaction sources, deduplicates by transaction_id
// (latest timestamp wins on conflicting duplicates), then INNER-joins
// device metadata and LEFT-joins customer metadata. Fraud labels pass
// through untouched.
//
// A duplicate transaction_id that disagrees on account_id cannot be
// reconciled and fails the merge with a SchemaMismatchError.
func (m *Merger) Merge(raw *ingestion.RawData) (*Result, error) {
	res := &Result{
		RawCounts:    make(map[string]int),
		SourceCounts: make(map[string]int),
	}

	// Deterministic source order.
	names := make([]string, 0, len(raw.Transactions))
	for name := range raw.Transactions {
		names = append(names, name)
	}
	sort.Strings(names)

	byID := make(map[string]domain.Transaction)
	for _, name := range names {
		txns := raw.Transactions[name]
		res.RawCounts[name] = len(txns)

		for _, txn := range txns {
			existing, seen := byID[txn.TransactionID]
			if !seen {
				byID[txn.TransactionID] = txn
				continue
			}
			if existing.AccountID != txn.AccountID {
				return nil, &domain.SchemaMismatchError{
					Source: txn.Source,
					Key:    "transaction_id",
					Detail: "duplicate " + txn.TransactionID + " disagrees on account_id with source " + existing.Source,
				}
			}
			if existing.Timestamp.Equal(txn.Timestamp) && existing.Amount == txn.Amount && existing.IsFraud == txn.IsFraud {
				res.ExactDuplicates++
				continue
			}
			// Conflicting duplicate: latest timestamp wins.
			res.Conflicts++
			if txn.Timestamp.After(existing.Timestamp) {
				byID[txn.TransactionID] = txn
			}
		}
	}
	res.UniqueCount = len(byID)

	deviceByID := make(map[string]domain.Device, len(raw.Devices))
	for _, d := range raw.Devices {
		deviceByID[d.DeviceID] = d
	}
	customerByID := make(map[string]domain.Customer, len(raw.Customers))
	for _, c := range raw.Customers {
		customerByID[c.CustomerID] = c
	}

	records := make([]domain.MergedRecord, 0, len(byID))
	for _, txn := range byID {
		device, ok := deviceByID[txn.DeviceID]
		if !ok {
			res.DroppedNoDevice++
			continue
		}

		rec := domain.MergedRecord{Transaction: txn, Device: device}
		if cust, ok := customerByID[txn.CustomerID]; ok {
			rec.Customer = &cust
		} else if m.cfg.DropMissingCustomer {
			res.DroppedNoCustomer++
			continue
		}

		if m.cfg.FillUnknown {
			res.FilledUnknown += fillUnknown(&rec)
		}

		records = append(records, rec)
	}

	// Stable output order: by timestamp, then ID.
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].TransactionID < records[j].TransactionID
	})
	res.Records = records

	for _, rec := range records {
		res.SourceCounts[rec.Source]++
	}

	log.Printf("[merge] Merged %d raw records into %d rows (dups=%d, conflicts=%d, no_device=%d, no_customer=%d)",
		raw.TransactionCount(), len(records), res.ExactDuplicates, res.Conflicts,
		res.DroppedNoDevice, res.DroppedNoCustomer)

	return res, nil
}

// fillUnknown replaces empty sparse contact fields with "Unknown", matching
// the EDA decision to keep these rows rather than drop them.
func fillUnknown(rec *domain.MergedRecord) int {
	filled := 0
	if rec.Device.Browser == "" {
		rec.Device.Browser = "Unknown"
		filled++
	}
	if rec.Customer != nil {
		if rec.Customer.Email == "" {
			rec.Customer.Email = "Unknown"
			filled++
		}
		if rec.Customer.Phone == "" {
			rec.Customer.Phone = "Unknown"
			filled++
		}
	}
	return filled
}
