package domain

import "time"

type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelPOS    Channel = "pos"
	ChannelATM    Channel = "atm"
	ChannelMobile Channel = "mobile"
)

// Transaction is a single financial event as parsed from a raw source.
// Records are immutable once ingested; the fraud label is only present on
// training data and must survive merging and feature engineering unchanged.
type Transaction struct {
	TransactionID   string    `json:"transaction_id"`
	AccountID       string    `json:"account_id"`
	CustomerID      string    `json:"customer_id"`
	DeviceID        string    `json:"device_id"`
	Merchant        string    `json:"merchant"`
	Category        string    `json:"category"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	CustomerCountry string    `json:"customer_country"`
	MerchantCountry string    `json:"merchant_country"`
	Channel         Channel   `json:"channel"`
	Timestamp       time.Time `json:"timestamp"`
	IsFraud         bool      `json:"is_fraud"`

	// Source names the raw feed the record came from, for round-trip
	// accounting after the merge.
	Source string `json:"source,omitempty"`
}

// Device holds device metadata joined onto transactions by device_id.
type Device struct {
	DeviceID   string  `json:"device_id"`
	DeviceType string  `json:"device_type"`
	OS         string  `json:"os"`
	Browser    string  `json:"browser"`
	TrustScore float64 `json:"trust_score"`
}

// Customer holds customer demographics joined onto transactions by
// customer_id. The join is a LEFT join: transactions without a customer
// record are kept (or dropped, per merge config).
type Customer struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Country    string `json:"country"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// MergedRecord is one row of the unified dataset produced by the merger:
// a transaction enriched with its device and (optionally) customer data.
type MergedRecord struct {
	Transaction
	Device   Device    `json:"device"`
	Customer *Customer `json:"customer,omitempty"`
}
