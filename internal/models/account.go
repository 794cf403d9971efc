package models

// AccountStatus is the lifecycle status of a card account.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
	AccountStatusExpired AccountStatus = "expired"
)

// IsValidAccountStatus checks if the given status is one of the closed enum values.
func IsValidAccountStatus(s AccountStatus) bool {
	switch s {
	case AccountStatusActive, AccountStatusBlocked, AccountStatusExpired:
		return true
	default:
		return false
	}
}

// AccountRecord is a static seed record describing one card account.
type AccountRecord struct {
	AccountNo      string        `json:"account_no" yaml:"account_no"`
	Name           string        `json:"name" yaml:"name"`
	CardNumber     string        `json:"credit_card_no" yaml:"credit_card_no"`
	Phone          string        `json:"phone_no" yaml:"phone_no"`
	Email          string        `json:"email" yaml:"email"`
	Status         AccountStatus `json:"status" yaml:"status"`
	CardType       string        `json:"card_type" yaml:"card_type"`
	LastPayment    string        `json:"last_payment" yaml:"last_payment"` // currency-formatted, e.g. "₹15,000"
	DueDate        string        `json:"due_date" yaml:"due_date"`
	Expiry         string        `json:"expiry" yaml:"expiry"`
	BillingAddress string        `json:"billing_address" yaml:"billing_address"`
}

// Validate checks the invariants the dispatcher relies on.
func (a AccountRecord) Validate() error {
	if a.AccountNo == "" {
		return ErrEmptyAccountNo
	}
	if !IsValidAccountStatus(a.Status) {
		return ErrInvalidAccountStatus
	}
	return nil
}
