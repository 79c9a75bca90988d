package changenow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyswap/polyswap-api/internal/provider"
	"github.com/polyswap/polyswap-api/internal/provider/changenow"
)

func TestMissingAPIKeyFailsFast(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("", server.URL)
	_, err := client.Currencies(context.Background(), provider.CurrencyFilter{ActiveOnly: true})

	var configErr *provider.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, 0, calls, "no network call should be made without a key")
}

func TestCurrenciesFiltersByNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-changenow-api-key"))
		assert.Equal(t, "/exchange/currencies", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"ticker": "MATIC", "name": "Polygon", "network": "matic"},
			{"ticker": "usdc", "name": "USD Coin", "network": "MATIC", "hasExternalId": false},
			{"ticker": "btc", "name": "Bitcoin", "network": "btc"}
		]`))
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("test-key", server.URL)
	currencies, err := client.Currencies(context.Background(), provider.CurrencyFilter{
		Network:    "matic",
		ActiveOnly: true,
	})

	require.NoError(t, err)
	require.Len(t, currencies, 2)
	assert.Equal(t, "matic", currencies[0].Ticker, "tickers are normalized lowercase")
	assert.Equal(t, "usdc", currencies[1].Ticker)
}

func TestEstimateRejectsBadAmount(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("test-key", server.URL)
	for _, amount := range []float64{0, -1} {
		_, err := client.Estimate(context.Background(), provider.EstimateParams{
			FromCurrency: "btc",
			ToCurrency:   "eth",
			FromAmount:   amount,
		})
		var validationErr *provider.ValidationError
		require.ErrorAs(t, err, &validationErr)
	}
	assert.Equal(t, 0, calls)
}

func TestEstimateReturnsRawQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchange/estimated-amount", r.URL.Path)
		assert.Equal(t, "btc", r.URL.Query().Get("fromCurrency"))
		assert.Equal(t, "eth", r.URL.Query().Get("toCurrency"))
		assert.Equal(t, "0.01", r.URL.Query().Get("fromAmount"))
		assert.Equal(t, "standard", r.URL.Query().Get("flow"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"toAmount": 0.305, "rateId": "", "validUntil": ""}`))
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("test-key", server.URL)
	estimate, err := client.Estimate(context.Background(), provider.EstimateParams{
		FromCurrency: "BTC",
		ToCurrency:   "ETH",
		FromAmount:   0.01,
	})

	require.NoError(t, err)
	assert.Equal(t, 0.305, estimate.ToAmount, "adapter must not touch the quote")
	assert.Equal(t, provider.CommissionClientSide, client.CommissionMode())
}

func TestCreateExchangeRequiresRateIDForFixedRate(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("test-key", server.URL)
	_, err := client.CreateExchange(context.Background(), provider.CreateParams{
		FromCurrency: "btc",
		ToCurrency:   "eth",
		FromAmount:   0.01,
		Address:      "0x1234567890123456789012345678901234567890",
		Flow:         provider.FlowFixedRate,
	})

	var validationErr *provider.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 0, calls)
}

func TestUpstreamErrorPreservesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "deposit_too_small", "message": "amount below minimum"}`))
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("test-key", server.URL)
	_, err := client.Estimate(context.Background(), provider.EstimateParams{
		FromCurrency: "btc",
		ToCurrency:   "eth",
		FromAmount:   0.0000001,
	})

	var upstreamErr *provider.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusBadRequest, upstreamErr.Status)
	assert.Contains(t, upstreamErr.Body, "amount below minimum")
}

func TestGetExchangeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("test-key", server.URL)
	_, err := client.GetExchange(context.Background(), "no-such-id")

	var notFoundErr *provider.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "no-such-id", notFoundErr.ID)
}

func TestGetExchangeMapsOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchange/by-id", r.URL.Path)
		assert.Equal(t, "abc123", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "abc123",
			"status": "exchanging",
			"fromCurrency": "btc",
			"toCurrency": "eth",
			"payinAddress": "payin",
			"payoutAddress": "payout",
			"payinHash": "hash1",
			"amountFrom": 0.01,
			"amountTo": 0,
			"expectedAmountFrom": 0.01,
			"expectedAmountTo": 0.305
		}`))
	}))
	defer server.Close()

	client := changenow.NewClientWithBaseURL("test-key", server.URL)
	order, err := client.GetExchange(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, "exchanging", order.Status)
	assert.Equal(t, 0.01, order.AmountFrom)
	assert.Equal(t, 0.305, order.ExpectedAmountTo)
	assert.Equal(t, "hash1", order.PayinHash)
}
