package provider

import "context"

// Name identifies a swap provider.
type Name string

const (
	ChangeNow Name = "changenow"
	StealthEx Name = "stealthex"
)

// CommissionMode says where the platform markup is applied for a provider.
// Exactly one side applies it; the orchestrator dispatches on this so the
// markup is never double-counted.
type CommissionMode int

const (
	// CommissionClientSide: the adapter returns the raw provider quote and
	// the orchestrator multiplies the markup in afterwards (ChangeNOW).
	CommissionClientSide CommissionMode = iota
	// CommissionProviderSide: the fee percentage is sent with the request
	// and the provider bakes it into the returned amount (StealthEX).
	CommissionProviderSide
)

// Flow is the quote mode for providers that distinguish the two.
const (
	FlowStandard  = "standard"
	FlowFixedRate = "fixed-rate"
)

// Currency is one tradable asset on a specific network. The catalog is
// volatile: sourced live from the provider, never persisted.
type Currency struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	Network       string `json:"network"`
	HasExtraID    bool   `json:"has_extra_id"`
	AddressRegex  string `json:"address_regex,omitempty"`
	ExtraIDRegex  string `json:"extra_id_regex,omitempty"`
	SupportsFixed bool   `json:"supports_fixed"`
}

// CurrencyFilter narrows a currency listing.
type CurrencyFilter struct {
	Network    string
	ActiveOnly bool
}

// EstimateParams describes a quote request. AdditionalFeePercent is only
// honoured by provider-side commission adapters; client-side adapters
// ignore it.
type EstimateParams struct {
	FromCurrency         string
	ToCurrency           string
	FromAmount           float64
	FromNetwork          string
	ToNetwork            string
	Flow                 string
	AdditionalFeePercent float64
}

// Estimate is the provider's quote for a pair and amount.
type Estimate struct {
	ToAmount   float64
	RateID     string
	ValidUntil string
}

// RangeParams describes a min/max bounds request.
type RangeParams struct {
	FromCurrency string
	ToCurrency   string
	FromNetwork  string
	ToNetwork    string
	Flow         string
}

// Range is the exchangeable amount bounds for a pair. MaxAmount is zero
// when the provider reports no upper bound.
type Range struct {
	MinAmount float64
	MaxAmount float64
}

// CreateParams describes an order creation request.
type CreateParams struct {
	FromCurrency         string
	ToCurrency           string
	FromAmount           float64
	FromNetwork          string
	ToNetwork            string
	Address              string
	ExtraID              string
	RefundAddress        string
	RefundExtraID        string
	Flow                 string
	RateID               string
	AdditionalFeePercent float64
}

// Exchange is a freshly created swap order.
type Exchange struct {
	ID            string
	PayinAddress  string
	PayoutAddress string
	PayinExtraID  string
	FromCurrency  string
	ToCurrency    string
	FromAmount    float64
	ToAmount      float64
	FromNetwork   string
	ToNetwork     string
}

// Order is the live view of a previously created swap order.
type Order struct {
	ID                 string
	Status             string
	PayinAddress       string
	PayoutAddress      string
	PayinExtraID       string
	FromCurrency       string
	ToCurrency         string
	FromNetwork        string
	ToNetwork          string
	AmountFrom         float64
	AmountTo           float64
	ExpectedAmountFrom float64
	ExpectedAmountTo   float64
	PayinHash          string
	PayoutHash         string
}

// Client is the capability every swap provider adapter implements.
type Client interface {
	Name() Name
	CommissionMode() CommissionMode
	Currencies(ctx context.Context, filter CurrencyFilter) ([]Currency, error)
	Estimate(ctx context.Context, params EstimateParams) (*Estimate, error)
	Range(ctx context.Context, params RangeParams) (*Range, error)
	CreateExchange(ctx context.Context, params CreateParams) (*Exchange, error)
	GetExchange(ctx context.Context, id string) (*Order, error)
}
