package exchange

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/polyswap/polyswap-api/internal/address"
	"github.com/polyswap/polyswap-api/internal/provider"
	"github.com/polyswap/polyswap-api/internal/settings"
)

// catalogTTL is how long a provider currency listing is served from
// memory before being refetched.
const catalogTTL = 5 * time.Minute

// Service is the exchange orchestrator: it selects a provider, applies
// the platform commission exactly once per quote, and persists orders.
type Service struct {
	db       *Database
	settings *settings.Service
	clients  map[provider.Name]provider.Client

	catalogMu sync.Mutex
	catalog   map[string]catalogEntry
}

type catalogEntry struct {
	currencies []provider.Currency
	fetchedAt  time.Time
}

// NewService creates the orchestrator over the given provider clients.
func NewService(gormDB *gorm.DB, settingsSvc *settings.Service, clients ...provider.Client) *Service {
	byName := make(map[provider.Name]provider.Client, len(clients))
	for _, c := range clients {
		byName[c.Name()] = c
	}
	return &Service{
		db:       NewDatabase(gormDB),
		settings: settingsSvc,
		clients:  byName,
		catalog:  make(map[string]catalogEntry),
	}
}

// GetDB exposes the database wrapper for collaborating read-only services.
func (s *Service) GetDB() *Database {
	return s.db
}

// client resolves a provider name, defaulting to ChangeNOW.
func (s *Service) client(name provider.Name) (provider.Client, error) {
	if name == "" {
		name = provider.ChangeNow
	}
	c, ok := s.clients[provider.Name(strings.ToLower(string(name)))]
	if !ok {
		return nil, &provider.ValidationError{Reason: fmt.Sprintf("unknown provider %q", name)}
	}
	return c, nil
}

// Currencies lists tradable currencies for a provider, served from a
// short-lived in-process cache since the catalog is volatile but changes
// rarely within a session.
func (s *Service) Currencies(ctx context.Context, name provider.Name, filter provider.CurrencyFilter) ([]provider.Currency, error) {
	client, err := s.client(name)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s|%s|%t", client.Name(), strings.ToLower(filter.Network), filter.ActiveOnly)
	s.catalogMu.Lock()
	entry, ok := s.catalog[key]
	s.catalogMu.Unlock()
	if ok && time.Since(entry.fetchedAt) < catalogTTL {
		return entry.currencies, nil
	}

	currencies, err := client.Currencies(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.catalogMu.Lock()
	s.catalog[key] = catalogEntry{currencies: currencies, fetchedAt: time.Now()}
	s.catalogMu.Unlock()
	return currencies, nil
}

// EstimateRequest is a normalized quote request.
type EstimateRequest struct {
	Provider     provider.Name `json:"provider"`
	FromCurrency string        `json:"from_currency"`
	ToCurrency   string        `json:"to_currency"`
	FromAmount   float64       `json:"from_amount"`
	FromNetwork  string        `json:"from_network"`
	ToNetwork    string        `json:"to_network"`
	Flow         string        `json:"flow"`
}

// EstimateResult is a commission-adjusted quote. OriginalToAmount is the
// pre-markup figure for auditing; for provider-side commission it equals
// ToAmount because the provider bakes the fee in and no unmarked-up figure
// is obtainable without a second call.
type EstimateResult struct {
	Provider         provider.Name `json:"provider"`
	FromCurrency     string        `json:"from_currency"`
	ToCurrency       string        `json:"to_currency"`
	FromAmount       float64       `json:"from_amount"`
	ToAmount         float64       `json:"to_amount"`
	OriginalToAmount float64       `json:"original_to_amount"`
	MarkupPercentage float64       `json:"markup_percentage"`
	RateID           string        `json:"rate_id,omitempty"`
	ValidUntil       string        `json:"valid_until,omitempty"`
	Flow             string        `json:"flow"`
}

// EstimateSwap fetches a quote and applies the commission exactly once.
// ChangeNOW quotes are adjusted here; StealthEX receives the rate with the
// request and its answer is used as-is.
func (s *Service) EstimateSwap(ctx context.Context, req EstimateRequest) (*EstimateResult, error) {
	if err := validAmount(req.FromAmount); err != nil {
		return nil, err
	}
	client, err := s.client(req.Provider)
	if err != nil {
		return nil, err
	}

	rate := s.settings.CommissionRate(ctx)

	params := provider.EstimateParams{
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		FromAmount:   req.FromAmount,
		FromNetwork:  req.FromNetwork,
		ToNetwork:    req.ToNetwork,
		Flow:         req.Flow,
	}
	if client.CommissionMode() == provider.CommissionProviderSide {
		params.AdditionalFeePercent = rate
	}

	estimate, err := client.Estimate(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &EstimateResult{
		Provider:         client.Name(),
		FromCurrency:     strings.ToLower(req.FromCurrency),
		ToCurrency:       strings.ToLower(req.ToCurrency),
		FromAmount:       req.FromAmount,
		MarkupPercentage: rate,
		RateID:           estimate.RateID,
		ValidUntil:       estimate.ValidUntil,
		Flow:             req.Flow,
	}

	switch client.CommissionMode() {
	case provider.CommissionClientSide:
		result.OriginalToAmount = estimate.ToAmount
		result.ToAmount = estimate.ToAmount * (1 - rate/100)
	case provider.CommissionProviderSide:
		result.ToAmount = estimate.ToAmount
		result.OriginalToAmount = estimate.ToAmount
	}

	if result.ToAmount == 0 {
		return nil, &provider.ValidationError{Reason: "estimated amount is zero, the amount is likely below the pair minimum"}
	}
	return result, nil
}

// MinAmount returns the exchangeable bounds for a pair.
func (s *Service) MinAmount(ctx context.Context, name provider.Name, params provider.RangeParams) (*provider.Range, error) {
	client, err := s.client(name)
	if err != nil {
		return nil, err
	}
	return client.Range(ctx, params)
}

// CreateOrderRequest is a normalized order creation request.
type CreateOrderRequest struct {
	Provider      provider.Name `json:"provider"`
	FromCurrency  string        `json:"from_currency"`
	ToCurrency    string        `json:"to_currency"`
	FromAmount    float64       `json:"from_amount"`
	Address       string        `json:"address"`
	ExtraID       string        `json:"extra_id"`
	FromNetwork   string        `json:"from_network"`
	ToNetwork     string        `json:"to_network"`
	RefundAddress string        `json:"refund_address"`
	RefundExtraID string        `json:"refund_extra_id"`
	Flow          string        `json:"flow"`
	RateID        string        `json:"rate_id"`
}

// CreateOrderResult is returned to the UI after an order is placed.
type CreateOrderResult struct {
	TransactionID string  `json:"transaction_id"`
	ProviderID    string  `json:"provider_id"`
	PayinAddress  string  `json:"payin_address"`
	PayoutAddress string  `json:"payout_address"`
	PayinExtraID  string  `json:"payin_extra_id,omitempty"`
	FromCurrency  string  `json:"from_currency"`
	ToCurrency    string  `json:"to_currency"`
	FromAmount    float64 `json:"from_amount"`
	ToAmount      float64 `json:"to_amount"`
	Status        Status  `json:"status"`
}

// CreateOrder places a swap order. Preconditions run in order, each a
// distinct fail-fast, all before any provider call: required fields,
// positive amount, destination address against the to-network, refund
// address against the from-network, rateId for fixed-rate flow.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if req.FromCurrency == "" || req.ToCurrency == "" || req.FromAmount == 0 || req.Address == "" {
		return nil, &provider.ValidationError{Reason: "fromCurrency, toCurrency, fromAmount and address are required"}
	}
	if err := validAmount(req.FromAmount); err != nil {
		return nil, err
	}

	toNetwork := req.ToNetwork
	if toNetwork == "" {
		toNetwork = req.ToCurrency
	}
	if !address.Valid(req.Address, toNetwork) {
		return nil, &provider.ValidationError{Reason: "invalid destination address for network " + toNetwork}
	}

	fromNetwork := req.FromNetwork
	if fromNetwork == "" {
		fromNetwork = req.FromCurrency
	}
	if req.RefundAddress != "" && !address.Valid(req.RefundAddress, fromNetwork) {
		return nil, &provider.ValidationError{Reason: "invalid refund address for network " + fromNetwork}
	}

	if req.Flow == provider.FlowFixedRate && req.RateID == "" {
		return nil, &provider.ValidationError{Reason: "rateId is required for fixed-rate exchanges"}
	}

	client, err := s.client(req.Provider)
	if err != nil {
		return nil, err
	}

	rate := s.settings.CommissionRate(ctx)

	params := provider.CreateParams{
		FromCurrency:  req.FromCurrency,
		ToCurrency:    req.ToCurrency,
		FromAmount:    req.FromAmount,
		FromNetwork:   req.FromNetwork,
		ToNetwork:     req.ToNetwork,
		Address:       req.Address,
		ExtraID:       req.ExtraID,
		RefundAddress: req.RefundAddress,
		RefundExtraID: req.RefundExtraID,
		Flow:          req.Flow,
		RateID:        req.RateID,
	}
	if client.CommissionMode() == provider.CommissionProviderSide {
		params.AdditionalFeePercent = rate
	}

	order, err := client.CreateExchange(ctx, params)
	if err != nil {
		// A failed creation leaves no transaction row.
		return nil, err
	}

	tx := &Transaction{
		TransactionID: uuid.New().String(),
		PayinAddress:  order.PayinAddress,
		PayinExtraID:  order.PayinExtraID,
		PayoutAddress: order.PayoutAddress,
		PayoutExtraID: req.ExtraID,
		FromCurrency:  strings.ToLower(req.FromCurrency),
		ToCurrency:    strings.ToLower(req.ToCurrency),
		FromNetwork:   strings.ToLower(order.FromNetwork),
		ToNetwork:     strings.ToLower(order.ToNetwork),
		FromAmount:    order.FromAmount,
		ToAmount:      order.ToAmount,
		Status:        string(StatusAwaitingDeposit),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	switch client.Name() {
	case provider.StealthEx:
		tx.StealthexID = order.ID
	default:
		tx.ChangeNowID = order.ID
	}

	if err := s.db.CreateTransaction(ctx, tx); err != nil {
		// The order already exists at the provider; a lost local row is a
		// bounded inconsistency the resync path repairs later, so the user
		// still gets their deposit address.
		log.Error().
			Err(err).
			Str("provider", string(client.Name())).
			Str("provider_id", order.ID).
			Msg("failed to persist transaction after order creation")
	}

	log.Info().
		Str("transaction_id", tx.TransactionID).
		Str("provider", string(client.Name())).
		Str("provider_id", order.ID).
		Str("from", tx.FromCurrency).
		Str("to", tx.ToCurrency).
		Float64("from_amount", tx.FromAmount).
		Msg("swap order created")

	return &CreateOrderResult{
		TransactionID: tx.TransactionID,
		ProviderID:    order.ID,
		PayinAddress:  order.PayinAddress,
		PayoutAddress: order.PayoutAddress,
		PayinExtraID:  order.PayinExtraID,
		FromCurrency:  tx.FromCurrency,
		ToCurrency:    tx.ToCurrency,
		FromAmount:    order.FromAmount,
		ToAmount:      order.ToAmount,
		Status:        StatusAwaitingDeposit,
	}, nil
}

func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return &provider.ValidationError{Reason: "fromAmount must be a positive number"}
	}
	return nil
}
