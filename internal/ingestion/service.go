package ingestion

import (
	"crypto/sha256"
	"fmt"
	"log"
	"os"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
)

// RawData holds everything read from the configured sources, keyed so the
// merger can account for every record per source.
type RawData struct {
	Transactions map[string][]domain.Transaction
	Devices      []domain.Device
	Customers    []domain.Customer

	// Hashes maps source name to the sha256 of its raw bytes.
	Hashes map[string]string
}

// TransactionCount returns the total number of raw transaction records
// across all sources, before any deduplication.
func (r *RawData) TransactionCount() int {
	n := 0
	for _, txns := range r.Transactions {
		n += len(txns)
	}
	return n
}

// Service reads and parses the configured raw source files.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// LoadSources reads every configured source from disk and dispatches to the
// parser for its kind/format combination.
func (s *Service) LoadSources(sources []config.SourceConfig) (*RawData, error) {
	raw := &RawData{
		Transactions: make(map[string][]domain.Transaction),
		Hashes:       make(map[string]string),
	}

	for _, src := range sources {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", src.Name, err)
		}
		raw.Hashes[src.Name] = fmt.Sprintf("%x", sha256.Sum256(data))

		switch src.Kind + "/" + src.Format {
		case "transactions/csv":
			txns, err := ParseTransactionsCSV(data, src.Name)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", src.Name, err)
			}
			raw.Transactions[src.Name] = txns
			log.Printf("[ingestion] Loaded %d transactions from %s", len(txns), src.Name)
		case "devices/psv":
			devices, err := ParseDevicesPSV(data, src.Name)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", src.Name, err)
			}
			raw.Devices = append(raw.Devices, devices...)
			log.Printf("[ingestion] Loaded %d devices from %s", len(devices), src.Name)
		case "customers/json":
			customers, err := ParseCustomersJSON(data, src.Name)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", src.Name, err)
			}
			raw.Customers = append(raw.Customers, customers...)
			log.Printf("[ingestion] Loaded %d customers from %s", len(customers), src.Name)
		default:
			return nil, fmt.Errorf("unsupported source %s: kind=%s format=%s", src.Name, src.Kind, src.Format)
		}
	}

	return raw, nil
}
