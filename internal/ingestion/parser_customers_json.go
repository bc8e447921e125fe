package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/bluetab/fraudpipe/internal/domain"
)

// customerFile represents the top-level JSON structure of the CRM export.
type customerFile struct {
	ExtractDate string          `json:"extract_date"`
	Records     []customerEntry `json:"records"`
}

type customerEntry struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Country    string `json:"country"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// ParseCustomersJSON parses the CRM customer export.
func ParseCustomersJSON(data []byte, source string) ([]domain.Customer, error) {
	var file customerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	var customers []domain.Customer
	for i, entry := range file.Records {
		if entry.CustomerID == "" {
			return nil, &domain.SchemaMismatchError{
				Source: source,
				Key:    "customer_id",
				Detail: fmt.Sprintf("record %d has no customer_id", i),
			}
		}
		customers = append(customers, domain.Customer{
			CustomerID: entry.CustomerID,
			Name:       entry.Name,
			Age:        entry.Age,
			Country:    entry.Country,
			Email:      entry.Email,
			Phone:      entry.Phone,
		})
	}

	return customers, nil
}
