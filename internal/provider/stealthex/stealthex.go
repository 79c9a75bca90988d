package stealthex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/polyswap/polyswap-api/internal/provider"
)

const (
	// BaseURL is the StealthEX API root. All canonical calls use the v4
	// route-based generation; legacy v2 symbol-only responses are
	// normalized up to the route shape on the way out.
	BaseURL        = "https://api.stealthex.io"
	requestTimeout = 8 * time.Second
)

// Client talks to the StealthEX REST API. Unlike ChangeNOW, the platform
// commission travels with the request as additional_fee_percent and the
// provider bakes it into the returned amounts, so callers must not adjust
// them again.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a StealthEX client. An empty API key is rejected on
// first use rather than at construction.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL:    BaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) Name() provider.Name { return provider.StealthEx }

func (c *Client) CommissionMode() provider.CommissionMode {
	return provider.CommissionProviderSide
}

// flexFloat tolerates the two upstream generations: v4 sends numbers,
// legacy v2 sends the same fields as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*f = 0
		return nil
	}
	trimmed = strings.Trim(trimmed, `"`)
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("stealthex: parsing amount %q: %w", trimmed, err)
	}
	*f = flexFloat(value)
	return nil
}

type routeLeg struct {
	Symbol  string `json:"symbol"`
	Network string `json:"network"`
}

type route struct {
	From routeLeg `json:"from"`
	To   routeLeg `json:"to"`
}

type currencyResponse struct {
	Symbol       string   `json:"symbol"`
	Network      string   `json:"network"`
	Name         string   `json:"name"`
	IconURL      string   `json:"icon_url"`
	ExtraID      *string  `json:"extra_id"`
	AddressRegex *string  `json:"address_regex"`
	ExtraIDRegex *string  `json:"extra_id_regex"`
	Rates        []string `json:"rates"`
}

type estimateRequest struct {
	Route                route   `json:"route"`
	Amount               float64 `json:"amount"`
	Estimation           string  `json:"estimation"`
	Rate                 string  `json:"rate"`
	AdditionalFeePercent float64 `json:"additional_fee_percent,omitempty"`
}

type estimateResponse struct {
	EstimatedAmount flexFloat `json:"estimated_amount"`
	Rate            *struct {
		ID         string `json:"id"`
		ValidUntil string `json:"valid_until"`
	} `json:"rate"`
}

type rangeResponse struct {
	MinAmount flexFloat  `json:"min_amount"`
	MaxAmount *flexFloat `json:"max_amount"`
}

type createRequest struct {
	Route                route   `json:"route"`
	Amount               float64 `json:"amount"`
	Estimation           string  `json:"estimation"`
	Rate                 string  `json:"rate"`
	Address              string  `json:"address"`
	ExtraID              string  `json:"extra_id,omitempty"`
	RefundAddress        string  `json:"refund_address,omitempty"`
	RefundExtraID        string  `json:"refund_extra_id,omitempty"`
	AdditionalFeePercent float64 `json:"additional_fee_percent,omitempty"`
	RateID               string  `json:"rate_id,omitempty"`
}

type exchangeLeg struct {
	Symbol         string    `json:"symbol"`
	Network        string    `json:"network"`
	Amount         flexFloat `json:"amount"`
	ExpectedAmount flexFloat `json:"expected_amount"`
	Address        string    `json:"address"`
	ExtraID        *string   `json:"extra_id"`
	TxHash         *string   `json:"tx_hash"`
}

// exchangeResponse carries both upstream generations: the v4 route shape
// nests amounts under deposit/withdrawal, the legacy v2 shape flattens
// everything with symbol-only currencies.
type exchangeResponse struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Deposit    *exchangeLeg `json:"deposit"`
	Withdrawal *exchangeLeg `json:"withdrawal"`

	// Legacy v2 fields.
	CurrencyFrom    string    `json:"currency_from"`
	CurrencyTo      string    `json:"currency_to"`
	AmountFrom      flexFloat `json:"amount_from"`
	AmountTo        flexFloat `json:"amount_to"`
	AmountEstimated flexFloat `json:"amount_estimated"`
	AddressFrom     string    `json:"address_from"`
	AddressTo       string    `json:"address_to"`
	ExtraIDFrom     *string   `json:"extra_id_from"`
	TxFrom          *string   `json:"tx_from"`
	TxTo            *string   `json:"tx_to"`
}

// Currencies lists tradable currencies from the v4 catalog. Legacy
// symbol-only entries come back without a network; the symbol doubles as
// the network identifier in that generation, so it is used as the fallback.
func (c *Client) Currencies(ctx context.Context, filter provider.CurrencyFilter) ([]provider.Currency, error) {
	query := url.Values{}
	if filter.Network != "" {
		query.Set("network", filter.Network)
	}

	var upstream []currencyResponse
	if err := c.get(ctx, "/v4/currencies", query, &upstream); err != nil {
		return nil, err
	}

	currencies := make([]provider.Currency, 0, len(upstream))
	for _, cur := range upstream {
		network := cur.Network
		if network == "" {
			network = cur.Symbol
		}
		entry := provider.Currency{
			Ticker:     strings.ToLower(cur.Symbol),
			Name:       cur.Name,
			Image:      cur.IconURL,
			Network:    network,
			HasExtraID: cur.ExtraID != nil && *cur.ExtraID != "",
		}
		if cur.AddressRegex != nil {
			entry.AddressRegex = *cur.AddressRegex
		}
		if cur.ExtraIDRegex != nil {
			entry.ExtraIDRegex = *cur.ExtraIDRegex
		}
		for _, rate := range cur.Rates {
			if rate == "fixed" {
				entry.SupportsFixed = true
			}
		}
		currencies = append(currencies, entry)
	}
	return currencies, nil
}

// Estimate fetches a quote. The commission is part of the request, so the
// returned amount already includes the markup.
func (c *Client) Estimate(ctx context.Context, params provider.EstimateParams) (*provider.Estimate, error) {
	if err := validAmount(params.FromAmount); err != nil {
		return nil, err
	}

	req := estimateRequest{
		Route:                reqRoute(params.FromCurrency, params.ToCurrency, params.FromNetwork, params.ToNetwork),
		Amount:               params.FromAmount,
		Estimation:           "direct",
		Rate:                 rateFromFlow(params.Flow),
		AdditionalFeePercent: params.AdditionalFeePercent,
	}

	var resp estimateResponse
	if err := c.post(ctx, "/v4/rates/estimated-amount", req, &resp); err != nil {
		return nil, err
	}
	estimate := &provider.Estimate{ToAmount: float64(resp.EstimatedAmount)}
	if resp.Rate != nil {
		estimate.RateID = resp.Rate.ID
		estimate.ValidUntil = resp.Rate.ValidUntil
	}
	return estimate, nil
}

// Range returns the exchangeable bounds for a route.
func (c *Client) Range(ctx context.Context, params provider.RangeParams) (*provider.Range, error) {
	req := struct {
		Route      route  `json:"route"`
		Estimation string `json:"estimation"`
		Rate       string `json:"rate"`
	}{
		Route:      reqRoute(params.FromCurrency, params.ToCurrency, params.FromNetwork, params.ToNetwork),
		Estimation: "direct",
		Rate:       rateFromFlow(params.Flow),
	}

	var resp rangeResponse
	if err := c.post(ctx, "/v4/rates/range", req, &resp); err != nil {
		return nil, err
	}
	result := &provider.Range{MinAmount: float64(resp.MinAmount)}
	if resp.MaxAmount != nil {
		result.MaxAmount = float64(*resp.MaxAmount)
	}
	return result, nil
}

// CreateExchange places a swap order, carrying the platform commission as
// additional_fee_percent.
func (c *Client) CreateExchange(ctx context.Context, params provider.CreateParams) (*provider.Exchange, error) {
	if err := validAmount(params.FromAmount); err != nil {
		return nil, err
	}
	rate := rateFromFlow(params.Flow)
	if rate == "fixed" && params.RateID == "" {
		return nil, &provider.ValidationError{Reason: "rate_id is required for fixed-rate exchanges"}
	}

	req := createRequest{
		Route:                reqRoute(params.FromCurrency, params.ToCurrency, params.FromNetwork, params.ToNetwork),
		Amount:               params.FromAmount,
		Estimation:           "direct",
		Rate:                 rate,
		Address:              params.Address,
		ExtraID:              params.ExtraID,
		RefundAddress:        params.RefundAddress,
		RefundExtraID:        params.RefundExtraID,
		AdditionalFeePercent: params.AdditionalFeePercent,
	}
	if rate == "fixed" {
		req.RateID = params.RateID
	}

	var resp exchangeResponse
	if err := c.post(ctx, "/v4/exchanges", req, &resp); err != nil {
		return nil, err
	}
	order := normalizeExchange(&resp)
	return &provider.Exchange{
		ID:            order.ID,
		PayinAddress:  order.PayinAddress,
		PayoutAddress: order.PayoutAddress,
		PayinExtraID:  order.PayinExtraID,
		FromCurrency:  order.FromCurrency,
		ToCurrency:    order.ToCurrency,
		FromAmount:    order.ExpectedAmountFrom,
		ToAmount:      order.ExpectedAmountTo,
		FromNetwork:   order.FromNetwork,
		ToNetwork:     order.ToNetwork,
	}, nil
}

// GetExchange fetches the live order state by id.
func (c *Client) GetExchange(ctx context.Context, id string) (*provider.Order, error) {
	var resp exchangeResponse
	if err := c.get(ctx, "/v4/exchanges/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return normalizeExchange(&resp), nil
}

// normalizeExchange collapses the two upstream generations onto the route
// shape. The v4 deposit/withdrawal legs win when present; legacy flat
// fields fill in otherwise, with the symbol standing in for the network.
func normalizeExchange(resp *exchangeResponse) *provider.Order {
	order := &provider.Order{
		ID:     resp.ID,
		Status: resp.Status,
	}

	if resp.Deposit != nil {
		order.FromCurrency = strings.ToLower(resp.Deposit.Symbol)
		order.FromNetwork = resp.Deposit.Network
		order.PayinAddress = resp.Deposit.Address
		order.AmountFrom = float64(resp.Deposit.Amount)
		order.ExpectedAmountFrom = float64(resp.Deposit.ExpectedAmount)
		if resp.Deposit.ExtraID != nil {
			order.PayinExtraID = *resp.Deposit.ExtraID
		}
		if resp.Deposit.TxHash != nil {
			order.PayinHash = *resp.Deposit.TxHash
		}
	} else {
		order.FromCurrency = strings.ToLower(resp.CurrencyFrom)
		order.FromNetwork = strings.ToLower(resp.CurrencyFrom)
		order.PayinAddress = resp.AddressFrom
		order.AmountFrom = float64(resp.AmountFrom)
		order.ExpectedAmountFrom = float64(resp.AmountFrom)
		if resp.ExtraIDFrom != nil {
			order.PayinExtraID = *resp.ExtraIDFrom
		}
		if resp.TxFrom != nil {
			order.PayinHash = *resp.TxFrom
		}
	}

	if resp.Withdrawal != nil {
		order.ToCurrency = strings.ToLower(resp.Withdrawal.Symbol)
		order.ToNetwork = resp.Withdrawal.Network
		order.PayoutAddress = resp.Withdrawal.Address
		order.AmountTo = float64(resp.Withdrawal.Amount)
		order.ExpectedAmountTo = float64(resp.Withdrawal.ExpectedAmount)
		if resp.Withdrawal.TxHash != nil {
			order.PayoutHash = *resp.Withdrawal.TxHash
		}
	} else {
		order.ToCurrency = strings.ToLower(resp.CurrencyTo)
		order.ToNetwork = strings.ToLower(resp.CurrencyTo)
		order.PayoutAddress = resp.AddressTo
		order.AmountTo = float64(resp.AmountTo)
		order.ExpectedAmountTo = float64(resp.AmountEstimated)
		if resp.TxTo != nil {
			order.PayoutHash = *resp.TxTo
		}
	}

	return order
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.apiKey == "" {
		return &provider.ConfigError{Provider: "stealthex", Reason: "API key not configured"}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stealthex request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stealthex: reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return &provider.NotFoundError{Provider: "stealthex", ID: lastPathSegment(req.URL.Path)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("component", "stealthex").
			Int("status", resp.StatusCode).
			Str("path", req.URL.Path).
			Msg("upstream error")
		return &provider.UpstreamError{Provider: "stealthex", Status: resp.StatusCode, Body: upstreamDetail(body)}
	}

	return json.Unmarshal(body, out)
}

// upstreamDetail extracts the provider's error detail when the body is the
// documented error envelope, falling back to the raw body.
func upstreamDetail(body []byte) string {
	var envelope struct {
		Err *struct {
			Details string `json:"details"`
		} `json:"err"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Err != nil && envelope.Err.Details != "" {
			return envelope.Err.Details
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return string(body)
}

func reqRoute(from, to, fromNetwork, toNetwork string) route {
	from = strings.ToLower(from)
	to = strings.ToLower(to)
	if fromNetwork == "" {
		fromNetwork = from
	}
	if toNetwork == "" {
		toNetwork = to
	}
	return route{
		From: routeLeg{Symbol: from, Network: strings.ToLower(fromNetwork)},
		To:   routeLeg{Symbol: to, Network: strings.ToLower(toNetwork)},
	}
}

func rateFromFlow(flow string) string {
	if flow == provider.FlowFixedRate {
		return "fixed"
	}
	return "floating"
}

func lastPathSegment(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return &provider.ValidationError{Reason: "fromAmount must be a positive number"}
	}
	return nil
}
