package changenow

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
	// BaseURL is the ChangeNOW v2 API root.
	BaseURL        = "https://api.changenow.io/v2"
	requestTimeout = 8 * time.Second
	apiKeyHeader   = "x-changenow-api-key"
)

// Client talks to the ChangeNOW v2 REST API. The platform commission is
// not applied here: ChangeNOW has no fee parameter, so the orchestrator
// adjusts the quote client-side.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a ChangeNOW client. An empty API key is tolerated at
// construction and rejected on first use, so the server can boot with a
// partial provider configuration.
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

func (c *Client) Name() provider.Name { return provider.ChangeNow }

func (c *Client) CommissionMode() provider.CommissionMode {
	return provider.CommissionClientSide
}

type currencyResponse struct {
	Ticker            string `json:"ticker"`
	Name              string `json:"name"`
	Image             string `json:"image"`
	Network           string `json:"network"`
	HasExternalID     bool   `json:"hasExternalId"`
	SupportsFixedRate bool   `json:"supportsFixedRate"`
}

type estimateResponse struct {
	ToAmount   float64 `json:"toAmount"`
	RateID     string  `json:"rateId"`
	ValidUntil string  `json:"validUntil"`
}

type rangeResponse struct {
	MinAmount float64  `json:"minAmount"`
	MaxAmount *float64 `json:"maxAmount"`
}

type exchangeRequest struct {
	FromCurrency  string `json:"fromCurrency"`
	ToCurrency    string `json:"toCurrency"`
	FromAmount    string `json:"fromAmount"`
	Address       string `json:"address"`
	FromNetwork   string `json:"fromNetwork,omitempty"`
	ToNetwork     string `json:"toNetwork,omitempty"`
	Flow          string `json:"flow"`
	ExtraID       string `json:"extraId,omitempty"`
	RefundAddress string `json:"refundAddress,omitempty"`
	RefundExtraID string `json:"refundExtraId,omitempty"`
	RateID        string `json:"rateId,omitempty"`
}

type exchangeResponse struct {
	ID            string  `json:"id"`
	PayinAddress  string  `json:"payinAddress"`
	PayoutAddress string  `json:"payoutAddress"`
	PayinExtraID  string  `json:"payinExtraId"`
	FromCurrency  string  `json:"fromCurrency"`
	ToCurrency    string  `json:"toCurrency"`
	FromAmount    float64 `json:"fromAmount"`
	ToAmount      float64 `json:"toAmount"`
	FromNetwork   string  `json:"fromNetwork"`
	ToNetwork     string  `json:"toNetwork"`
}

type orderResponse struct {
	ID                 string  `json:"id"`
	Status             string  `json:"status"`
	FromCurrency       string  `json:"fromCurrency"`
	ToCurrency         string  `json:"toCurrency"`
	FromNetwork        string  `json:"fromNetwork"`
	ToNetwork          string  `json:"toNetwork"`
	PayinAddress       string  `json:"payinAddress"`
	PayoutAddress      string  `json:"payoutAddress"`
	PayinExtraID       string  `json:"payinExtraId"`
	PayinHash          string  `json:"payinHash"`
	PayoutHash         string  `json:"payoutHash"`
	AmountFrom         float64 `json:"amountFrom"`
	AmountTo           float64 `json:"amountTo"`
	ExpectedAmountFrom float64 `json:"expectedAmountFrom"`
	ExpectedAmountTo   float64 `json:"expectedAmountTo"`
}

// Currencies lists tradable currencies, optionally filtered to one network.
// The network filter is applied client-side: the upstream endpoint has no
// network parameter.
func (c *Client) Currencies(ctx context.Context, filter provider.CurrencyFilter) ([]provider.Currency, error) {
	query := url.Values{}
	query.Set("active", strconv.FormatBool(filter.ActiveOnly))

	var upstream []currencyResponse
	if err := c.get(ctx, "/exchange/currencies", query, &upstream); err != nil {
		return nil, err
	}

	currencies := make([]provider.Currency, 0, len(upstream))
	for _, cur := range upstream {
		if filter.Network != "" && !strings.EqualFold(cur.Network, filter.Network) {
			continue
		}
		currencies = append(currencies, provider.Currency{
			Ticker:        strings.ToLower(cur.Ticker),
			Name:          cur.Name,
			Image:         cur.Image,
			Network:       cur.Network,
			HasExtraID:    cur.HasExternalID,
			SupportsFixed: cur.SupportsFixedRate,
		})
	}
	return currencies, nil
}

// Estimate fetches a quote for the pair. The returned amount is the raw
// provider quote; markup is the caller's concern.
func (c *Client) Estimate(ctx context.Context, params provider.EstimateParams) (*provider.Estimate, error) {
	if err := validAmount(params.FromAmount); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("fromCurrency", strings.ToLower(params.FromCurrency))
	query.Set("toCurrency", strings.ToLower(params.ToCurrency))
	query.Set("fromAmount", strconv.FormatFloat(params.FromAmount, 'f', -1, 64))
	query.Set("flow", flowOrDefault(params.Flow))
	if params.FromNetwork != "" {
		query.Set("fromNetwork", strings.ToLower(params.FromNetwork))
	}
	if params.ToNetwork != "" {
		query.Set("toNetwork", strings.ToLower(params.ToNetwork))
	}

	var resp estimateResponse
	if err := c.get(ctx, "/exchange/estimated-amount", query, &resp); err != nil {
		return nil, err
	}
	return &provider.Estimate{
		ToAmount:   resp.ToAmount,
		RateID:     resp.RateID,
		ValidUntil: resp.ValidUntil,
	}, nil
}

// Range returns the exchangeable bounds for a pair. MaxAmount stays zero
// when the provider reports none (standard flow usually has no cap).
func (c *Client) Range(ctx context.Context, params provider.RangeParams) (*provider.Range, error) {
	query := url.Values{}
	query.Set("fromCurrency", strings.ToLower(params.FromCurrency))
	query.Set("toCurrency", strings.ToLower(params.ToCurrency))
	query.Set("flow", flowOrDefault(params.Flow))
	if params.FromNetwork != "" {
		query.Set("fromNetwork", strings.ToLower(params.FromNetwork))
	}
	if params.ToNetwork != "" {
		query.Set("toNetwork", strings.ToLower(params.ToNetwork))
	}

	var resp rangeResponse
	if err := c.get(ctx, "/exchange/range", query, &resp); err != nil {
		return nil, err
	}
	result := &provider.Range{MinAmount: resp.MinAmount}
	if resp.MaxAmount != nil {
		result.MaxAmount = *resp.MaxAmount
	}
	return result, nil
}

// CreateExchange places a swap order. Fixed-rate orders must carry the
// rateId from the estimate: omitting it makes the upstream silently fall
// back to a stale or default rate, so it is rejected here instead.
func (c *Client) CreateExchange(ctx context.Context, params provider.CreateParams) (*provider.Exchange, error) {
	if err := validAmount(params.FromAmount); err != nil {
		return nil, err
	}
	flow := flowOrDefault(params.Flow)
	if flow == provider.FlowFixedRate && params.RateID == "" {
		return nil, &provider.ValidationError{Reason: "rateId is required for fixed-rate exchanges"}
	}

	req := exchangeRequest{
		FromCurrency:  strings.ToLower(params.FromCurrency),
		ToCurrency:    strings.ToLower(params.ToCurrency),
		FromAmount:    strconv.FormatFloat(params.FromAmount, 'f', -1, 64),
		Address:       params.Address,
		FromNetwork:   strings.ToLower(params.FromNetwork),
		ToNetwork:     strings.ToLower(params.ToNetwork),
		Flow:          flow,
		ExtraID:       params.ExtraID,
		RefundAddress: params.RefundAddress,
		RefundExtraID: params.RefundExtraID,
	}
	if flow == provider.FlowFixedRate {
		req.RateID = params.RateID
	}

	var resp exchangeResponse
	if err := c.post(ctx, "/exchange", req, &resp); err != nil {
		return nil, err
	}
	return &provider.Exchange{
		ID:            resp.ID,
		PayinAddress:  resp.PayinAddress,
		PayoutAddress: resp.PayoutAddress,
		PayinExtraID:  resp.PayinExtraID,
		FromCurrency:  resp.FromCurrency,
		ToCurrency:    resp.ToCurrency,
		FromAmount:    resp.FromAmount,
		ToAmount:      resp.ToAmount,
		FromNetwork:   resp.FromNetwork,
		ToNetwork:     resp.ToNetwork,
	}, nil
}

// GetExchange fetches the live order state by id.
func (c *Client) GetExchange(ctx context.Context, id string) (*provider.Order, error) {
	query := url.Values{}
	query.Set("id", id)

	var resp orderResponse
	if err := c.get(ctx, "/exchange/by-id", query, &resp); err != nil {
		return nil, err
	}
	return &provider.Order{
		ID:                 resp.ID,
		Status:             resp.Status,
		PayinAddress:       resp.PayinAddress,
		PayoutAddress:      resp.PayoutAddress,
		PayinExtraID:       resp.PayinExtraID,
		FromCurrency:       resp.FromCurrency,
		ToCurrency:         resp.ToCurrency,
		FromNetwork:        resp.FromNetwork,
		ToNetwork:          resp.ToNetwork,
		AmountFrom:         resp.AmountFrom,
		AmountTo:           resp.AmountTo,
		ExpectedAmountFrom: resp.ExpectedAmountFrom,
		ExpectedAmountTo:   resp.ExpectedAmountTo,
		PayinHash:          resp.PayinHash,
		PayoutHash:         resp.PayoutHash,
	}, nil
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
		return &provider.ConfigError{Provider: "changenow", Reason: "API key not configured"}
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("changenow request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("changenow: reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return &provider.NotFoundError{Provider: "changenow", ID: req.URL.Query().Get("id")}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("component", "changenow").
			Int("status", resp.StatusCode).
			Str("path", req.URL.Path).
			Msg("upstream error")
		return &provider.UpstreamError{Provider: "changenow", Status: resp.StatusCode, Body: string(body)}
	}

	return json.Unmarshal(body, out)
}

func flowOrDefault(flow string) string {
	if flow == "" {
		return provider.FlowStandard
	}
	return flow
}

func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return &provider.ValidationError{Reason: "fromAmount must be a positive number"}
	}
	return nil
}
