package accounts

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/CardDesk/internal/models"
	"gopkg.in/yaml.v3"
)

// seedRecords is the built-in demo data set, in scan order.
var seedRecords = []models.AccountRecord{
	{
		AccountNo:      "1234567890",
		Name:           "Rahul Sharma",
		CardNumber:     "5123-4567-8912-3456",
		Phone:          "9876543210",
		Email:          "rahul.sharma@example.com",
		Status:         models.AccountStatusActive,
		CardType:       "HDFC Infinia Metal",
		LastPayment:    "₹15,000",
		DueDate:        "25th monthly",
		Expiry:         "12/2025",
		BillingAddress: "12-B, MG Road, Mumbai",
	},
	{
		AccountNo:      "9876543210",
		Name:           "Priya Patel",
		CardNumber:     "4024-0071-2345-6789",
		Phone:          "8765432109",
		Email:          "priya.patel@example.com",
		Status:         models.AccountStatusBlocked,
		CardType:       "HDFC Regalia Gold",
		LastPayment:    "₹22,500",
		DueDate:        "5th monthly",
		Expiry:         "09/2026",
		BillingAddress: "45/A, Koramangala, Bangalore",
	},
	{
		AccountNo:      "1122334455",
		Name:           "Amit Verma",
		CardNumber:     "3782-8224-6310-005",
		Phone:          "7654321098",
		Email:          "amit.verma@example.com",
		Status:         models.AccountStatusExpired,
		CardType:       "HDFC MoneyBack+",
		LastPayment:    "₹8,000",
		DueDate:        "15th monthly",
		Expiry:         "03/2024",
		BillingAddress: "9th Cross, Hyderabad",
	},
}

// SeedRecords returns a copy of the built-in records.
func SeedRecords() []models.AccountRecord {
	out := make([]models.AccountRecord, len(seedRecords))
	copy(out, seedRecords)
	return out
}

// NewSeedStore builds a Store from the built-in records.
func NewSeedStore() *Store {
	s, err := NewStore(seedRecords...)
	if err != nil {
		// seedRecords is a compile-time literal
		panic(fmt.Sprintf("built-in account seed is invalid: %v", err))
	}
	return s
}

// seedFile is the YAML layout accepted by LoadYAML.
type seedFile struct {
	Accounts []models.AccountRecord `yaml:"accounts"`
}

// LoadYAML reads account records from a YAML file of the form
//
//	accounts:
//	  - account_no: "1234567890"
//	    name: Rahul Sharma
//	    ...
//
// and returns a Store preserving file order.
func LoadYAML(path string) (*Store, error) {
	slog.Debug("accounts.LoadYAML: reading seed file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read account seed file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes YAML seed data into a Store.
func ParseYAML(data []byte) (*Store, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode account seed: %w", err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("account seed contains no accounts")
	}
	st, err := NewStore(f.Accounts...)
	if err != nil {
		return nil, err
	}
	slog.Info("accounts.ParseYAML: loaded account seed", "count", st.Len())
	return st, nil
}
