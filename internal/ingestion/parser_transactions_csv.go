package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bluetab/fraudpipe/internal/domain"
)

// columnAliases maps known header variants from the different bank feeds to
// canonical column names, so heterogeneous sources reconcile to one schema.
var columnAliases = map[string]string{
	"txn_id":        "transaction_id",
	"tx_id":         "transaction_id",
	"acct_id":       "account_id",
	"account":       "account_id",
	"cust_id":       "customer_id",
	"merchant_name": "merchant",
	"amount_usd":    "amount",
	"fraud":         "is_fraud",
	"fraud_flag":    "is_fraud",
	"label":         "is_fraud",
	"ts":            "timestamp",
	"datetime":      "timestamp",
}

var requiredColumns = []string{"transaction_id", "account_id", "timestamp", "amount", "is_fraud"}

// ParseTransactionsCSV parses a comma-separated transaction feed. Column
// order is not fixed: the header is resolved through the alias table, and a
// missing required column is a schema mismatch for the source.
//
// Canonical header:
//
//	transaction_id,account_id,customer_id,device_id,merchant,category,amount,
//	currency,customer_country,merchant_country,channel,timestamp,is_fraud
func ParseTransactionsCSV(data []byte, source string) ([]domain.Transaction, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := columnAliases[name]; ok {
			name = canonical
		}
		cols[name] = i
	}
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, &domain.SchemaMismatchError{
				Source: source,
				Key:    req,
				Detail: fmt.Sprintf("required column not found in header %v", header),
			}
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var txns []domain.Transaction
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		amount, err := strconv.ParseFloat(field(row, "amount"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}

		ts, err := parseTimestamp(field(row, "timestamp"))
		if err != nil {
			return nil, fmt.Errorf("line %d timestamp: %w", lineNum, err)
		}

		isFraud, err := parseLabel(field(row, "is_fraud"))
		if err != nil {
			return nil, fmt.Errorf("line %d label: %w", lineNum, err)
		}

		txn := domain.Transaction{
			TransactionID:   field(row, "transaction_id"),
			AccountID:       field(row, "account_id"),
			CustomerID:      field(row, "customer_id"),
			DeviceID:        field(row, "device_id"),
			Merchant:        field(row, "merchant"),
			Category:        field(row, "category"),
			Amount:          amount,
			Currency:        field(row, "currency"),
			CustomerCountry: field(row, "customer_country"),
			MerchantCountry: field(row, "merchant_country"),
			Channel:         domain.Channel(strings.ToLower(field(row, "channel"))),
			Timestamp:       ts,
			IsFraud:         isFraud,
			Source:          source,
		}
		if txn.TransactionID == "" {
			return nil, fmt.Errorf("line %d: empty transaction_id", lineNum)
		}
		txns = append(txns, txn)
	}

	return txns, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return time.Time{}, err
		}
		t = t.UTC()
	}
	return t, nil
}

func parseLabel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "fraud":
		return true, nil
	case "0", "false", "no", "legit":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized fraud label %q", s)
}
