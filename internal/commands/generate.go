package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
)

func newGenerateCommand() *cobra.Command {
	var (
		outDir    string
		accounts  int
		txnCount  int
		overlap   int
		fraudRate float64
		seed      uint64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic raw source files and a pipeline config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(outDir, accounts, txnCount, overlap, fraudRate, seed)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "testdata", "output directory")
	cmd.Flags().IntVar(&accounts, "accounts", 50, "number of accounts")
	cmd.Flags().IntVar(&txnCount, "transactions", 2000, "number of transactions across both feeds")
	cmd.Flags().IntVar(&overlap, "overlap", 40, "records duplicated between the two bank feeds")
	cmd.Flags().Float64Var(&fraudRate, "fraud-rate", 0.05, "fraction of fraudulent transactions")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "RNG seed")

	return cmd
}

type account struct {
	ID         string
	CustomerID string
	DeviceID   string
	Country    string
}

func generate(outDir string, accounts, txnCount, overlap int, fraudRate float64, seed uint64) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	faker := gofakeit.New(seed)

	accts := make([]account, accounts)
	for i := range accts {
		accts[i] = account{
			ID:         fmt.Sprintf("ACC-%04d", i+1),
			CustomerID: fmt.Sprintf("CUST-%04d", i+1),
			DeviceID:   fmt.Sprintf("DEV-%04d", i+1),
			Country:    faker.CountryAbr(),
		}
	}

	end := time.Now().UTC().Truncate(time.Hour)
	start := end.Add(-30 * 24 * time.Hour)

	categories := []string{"groceries", "electronics", "travel", "jewelry", "fuel", "restaurants", "gaming"}
	channels := []string{"pos", "online", "mobile", "atm"}

	txns := make([]domain.Transaction, txnCount)
	for i := range txns {
		acct := accts[faker.Number(0, accounts-1)]
		isFraud := faker.Float64Range(0, 1) < fraudRate

		amount := faker.Float64Range(5, 300)
		merchantCountry := acct.Country
		if isFraud {
			// Fraud skews to larger, foreign, online activity.
			amount = faker.Float64Range(200, 3000)
			merchantCountry = faker.CountryAbr()
		} else if faker.Float64Range(0, 1) < 0.1 {
			merchantCountry = faker.CountryAbr()
		}

		txns[i] = domain.Transaction{
			TransactionID:   fmt.Sprintf("TXN-%06d", i+1),
			AccountID:       acct.ID,
			CustomerID:      acct.CustomerID,
			DeviceID:        acct.DeviceID,
			Merchant:        faker.Company(),
			Category:        categories[faker.Number(0, len(categories)-1)],
			Amount:          amount,
			Currency:        "EUR",
			CustomerCountry: acct.Country,
			MerchantCountry: merchantCountry,
			Channel:         domain.Channel(channels[faker.Number(0, len(channels)-1)]),
			Timestamp:       faker.DateRange(start, end),
			IsFraud:         isFraud,
		}
	}

	splitAt := txnCount * 6 / 10
	bankA := txns[:splitAt]
	bankB := txns[splitAt:]
	if overlap > len(bankA) {
		overlap = len(bankA)
	}
	// Duplicate a slice of bank A into bank B to exercise deduplication.
	bankB = append(bankB, bankA[:overlap]...)

	if err := writeBankACSV(filepath.Join(outDir, "transactions_bank_a.csv"), bankA); err != nil {
		return err
	}
	if err := writeBankBCSV(filepath.Join(outDir, "transactions_bank_b.csv"), bankB); err != nil {
		return err
	}
	if err := writeDevicesPSV(filepath.Join(outDir, "devices.psv"), faker, accts); err != nil {
		return err
	}
	if err := writeCustomersJSON(filepath.Join(outDir, "customers.json"), faker, accts); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.DBPath = filepath.Join(outDir, "fraudpipe.db")
	cfg.Sources = []config.SourceConfig{
		{Name: "bank_a", Kind: "transactions", Format: "csv", Path: filepath.Join(outDir, "transactions_bank_a.csv")},
		{Name: "bank_b", Kind: "transactions", Format: "csv", Path: filepath.Join(outDir, "transactions_bank_b.csv")},
		{Name: "devices", Kind: "devices", Format: "psv", Path: filepath.Join(outDir, "devices.psv")},
		{Name: "customers", Kind: "customers", Format: "json", Path: filepath.Join(outDir, "customers.json")},
	}
	if err := config.Save(filepath.Join(outDir, "pipeline.yaml"), cfg); err != nil {
		return err
	}

	log.Printf("[generate] Wrote %d+%d transactions (%d overlapping), %d devices, %d customers to %s",
		len(bankA), len(bankB), overlap, accounts, accounts, outDir)
	return nil
}

// writeBankACSV writes the canonical column layout.
func writeBankACSV(path string, txns []domain.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"transaction_id", "account_id", "customer_id", "device_id", "merchant",
		"category", "amount", "currency", "customer_country", "merchant_country",
		"channel", "timestamp", "is_fraud",
	}); err != nil {
		return err
	}
	for _, t := range txns {
		if err := w.Write([]string{
			t.TransactionID, t.AccountID, t.CustomerID, t.DeviceID, t.Merchant,
			t.Category, strconv.FormatFloat(t.Amount, 'f', 2, 64), t.Currency,
			t.CustomerCountry, t.MerchantCountry, string(t.Channel),
			t.Timestamp.Format(time.RFC3339), boolLabel(t.IsFraud),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

// writeBankBCSV writes the second feed with its own header dialect and date
// format, so the ingestion alias table has real work to do.
func writeBankBCSV(path string, txns []domain.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"txn_id", "account", "cust_id", "device_id", "merchant_name",
		"category", "amount_usd", "currency", "customer_country",
		"merchant_country", "channel", "ts", "fraud",
	}); err != nil {
		return err
	}
	for _, t := range txns {
		if err := w.Write([]string{
			t.TransactionID, t.AccountID, t.CustomerID, t.DeviceID, t.Merchant,
			t.Category, strconv.FormatFloat(t.Amount, 'f', 2, 64), t.Currency,
			t.CustomerCountry, t.MerchantCountry, string(t.Channel),
			t.Timestamp.UTC().Format("2006-01-02 15:04:05"), boolLabel(t.IsFraud),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeDevicesPSV(path string, faker *gofakeit.Faker, accts []account) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '|'
	defer w.Flush()

	if err := w.Write([]string{"DEVICE_ID", "TYPE", "OS", "BROWSER", "TRUST_SCORE"}); err != nil {
		return err
	}
	types := []string{"mobile", "desktop", "tablet"}
	oses := []string{"Android", "iOS", "Windows", "macOS", "Linux"}
	browsers := []string{"Chrome", "Safari", "Firefox", "Edge", ""}
	for _, a := range accts {
		if err := w.Write([]string{
			a.DeviceID,
			types[faker.Number(0, len(types)-1)],
			oses[faker.Number(0, len(oses)-1)],
			browsers[faker.Number(0, len(browsers)-1)],
			strconv.FormatFloat(faker.Float64Range(0.1, 1), 'f', 3, 64),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeCustomersJSON(path string, faker *gofakeit.Faker, accts []account) error {
	type entry struct {
		CustomerID string `json:"customer_id"`
		Name       string `json:"name"`
		Age        int    `json:"age"`
		Country    string `json:"country"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
	}
	file := struct {
		ExtractDate string  `json:"extract_date"`
		Records     []entry `json:"records"`
	}{
		ExtractDate: time.Now().UTC().Format("2006-01-02"),
	}

	for i, a := range accts {
		// Leave a few customers out of the CRM export so the LEFT join and
		// the drop policy are exercised.
		if i%17 == 0 {
			continue
		}
		file.Records = append(file.Records, entry{
			CustomerID: a.CustomerID,
			Name:       faker.Name(),
			Age:        faker.Number(18, 85),
			Country:    a.Country,
			Email:      faker.Email(),
			Phone:      faker.Phone(),
		})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
