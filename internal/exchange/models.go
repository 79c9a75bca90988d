package exchange

import (
	"time"

	"gorm.io/gorm"

	"github.com/polyswap/polyswap-api/internal/provider"
)

// Status is the internal order state. Both vendor vocabularies collapse
// onto it; it only moves forward, except that FAILED is reachable from any
// non-terminal state.
type Status string

const (
	StatusAwaitingDeposit Status = "AWAITING_DEPOSIT"
	StatusProcessing      Status = "PROCESSING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// Terminal reports whether no further reconciliation may change the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusFromUpstream maps a vendor status string onto the internal enum.
// Both ChangeNOW and StealthEX share this vocabulary. Unrecognized values
// map to PROCESSING: the order demonstrably exists upstream, so treating
// it as in-flight is the conservative reading.
func StatusFromUpstream(raw string) Status {
	switch raw {
	case "new", "waiting":
		return StatusAwaitingDeposit
	case "confirming", "exchanging", "sending":
		return StatusProcessing
	case "finished":
		return StatusCompleted
	case "failed", "expired", "refunded", "refunding":
		return StatusFailed
	}
	return StatusProcessing
}

// Transaction is the durable record of a swap order placed with a
// provider. Exactly one of ChangeNowID/StealthexID is set; that column
// doubles as the provider tag for reconciliation.
type Transaction struct {
	gorm.Model    `json:"-"`
	TransactionID string `gorm:"uniqueIndex" json:"transaction_id"`
	ChangeNowID   string `gorm:"column:changenow_id;index" json:"changenow_id,omitempty"`
	StealthexID   string `gorm:"index" json:"stealthex_id,omitempty"`

	PayinAddress  string `json:"payin_address"`
	PayinExtraID  string `json:"payin_extra_id,omitempty"`
	PayoutAddress string `json:"payout_address"`
	PayoutExtraID string `json:"payout_extra_id,omitempty"`

	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	FromNetwork  string `json:"from_network,omitempty"`
	ToNetwork    string `json:"to_network,omitempty"`

	// Requested amounts, fixed at creation time.
	FromAmount float64 `json:"from_amount"`
	ToAmount   float64 `json:"to_amount"`
	// Actual amounts, filled in by the reconciler once known.
	ActualFromAmount float64 `json:"actual_from_amount,omitempty"`
	ActualToAmount   float64 `json:"actual_to_amount,omitempty"`

	PayinHash  string `json:"payin_hash,omitempty"`
	PayoutHash string `json:"payout_hash,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider returns which provider holds this order, decided by which
// provider-id column is populated.
func (t *Transaction) Provider() provider.Name {
	if t.StealthexID != "" {
		return provider.StealthEx
	}
	return provider.ChangeNow
}

// ProviderOrderID returns the provider-assigned order id.
func (t *Transaction) ProviderOrderID() string {
	if t.StealthexID != "" {
		return t.StealthexID
	}
	return t.ChangeNowID
}
