package stealthex_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyswap/polyswap-api/internal/provider"
	"github.com/polyswap/polyswap-api/internal/provider/stealthex"
)

func TestMissingAPIKeyFailsFast(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := stealthex.NewClientWithBaseURL("", server.URL)
	_, err := client.Estimate(context.Background(), provider.EstimateParams{
		FromCurrency: "btc",
		ToCurrency:   "eth",
		FromAmount:   0.01,
	})

	var configErr *provider.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, 0, calls)
}

func TestEstimateSendsCommissionUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/v4/rates/estimated-amount", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 0.4, payload["additional_fee_percent"])
		assert.Equal(t, "direct", payload["estimation"])
		assert.Equal(t, "floating", payload["rate"])

		route := payload["route"].(map[string]interface{})
		from := route["from"].(map[string]interface{})
		assert.Equal(t, "btc", from["symbol"])
		assert.Equal(t, "btc", from["network"], "network defaults to the symbol when unset")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"estimated_amount": 0.30378}`))
	}))
	defer server.Close()

	client := stealthex.NewClientWithBaseURL("test-key", server.URL)
	estimate, err := client.Estimate(context.Background(), provider.EstimateParams{
		FromCurrency:         "btc",
		ToCurrency:           "eth",
		FromAmount:           0.01,
		AdditionalFeePercent: 0.4,
	})

	require.NoError(t, err)
	assert.Equal(t, 0.30378, estimate.ToAmount)
	assert.Equal(t, provider.CommissionProviderSide, client.CommissionMode())
}

func TestEstimateParsesLegacyStringAmount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"estimated_amount": "0.125"}`))
	}))
	defer server.Close()

	client := stealthex.NewClientWithBaseURL("test-key", server.URL)
	estimate, err := client.Estimate(context.Background(), provider.EstimateParams{
		FromCurrency: "btc",
		ToCurrency:   "eth",
		FromAmount:   0.01,
	})

	require.NoError(t, err)
	assert.Equal(t, 0.125, estimate.ToAmount)
}

func TestCreateExchangeNormalizesRouteShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/exchanges", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 1.2, payload["additional_fee_percent"])
		assert.Equal(t, "0xdest", payload["address"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "stx-1",
			"status": "waiting",
			"deposit": {
				"symbol": "BTC", "network": "mainnet", "amount": 0,
				"expected_amount": 0.01, "address": "payin-addr",
				"extra_id": null, "tx_hash": null
			},
			"withdrawal": {
				"symbol": "ETH", "network": "mainnet", "amount": 0,
				"expected_amount": 0.303, "address": "0xdest",
				"extra_id": null, "tx_hash": null
			}
		}`))
	}))
	defer server.Close()

	client := stealthex.NewClientWithBaseURL("test-key", server.URL)
	exchange, err := client.CreateExchange(context.Background(), provider.CreateParams{
		FromCurrency:         "btc",
		ToCurrency:           "eth",
		FromAmount:           0.01,
		Address:              "0xdest",
		AdditionalFeePercent: 1.2,
	})

	require.NoError(t, err)
	assert.Equal(t, "stx-1", exchange.ID)
	assert.Equal(t, "payin-addr", exchange.PayinAddress)
	assert.Equal(t, "0xdest", exchange.PayoutAddress)
	assert.Equal(t, 0.01, exchange.FromAmount)
	assert.Equal(t, 0.303, exchange.ToAmount)
	assert.Equal(t, "btc", exchange.FromCurrency)
	assert.Equal(t, "eth", exchange.ToCurrency)
}

func TestGetExchangeNormalizesLegacyShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/exchanges/stx-legacy", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "stx-legacy",
			"status": "finished",
			"currency_from": "BTC",
			"currency_to": "ETH",
			"amount_from": "0.01",
			"amount_to": "0.303",
			"amount_estimated": "0.303",
			"address_from": "payin-addr",
			"address_to": "0xdest",
			"extra_id_from": null,
			"tx_from": "deposit-hash",
			"tx_to": "payout-hash"
		}`))
	}))
	defer server.Close()

	client := stealthex.NewClientWithBaseURL("test-key", server.URL)
	order, err := client.GetExchange(context.Background(), "stx-legacy")

	require.NoError(t, err)
	assert.Equal(t, "finished", order.Status)
	assert.Equal(t, "btc", order.FromCurrency)
	assert.Equal(t, "btc", order.FromNetwork, "legacy entries use the symbol as network")
	assert.Equal(t, 0.01, order.AmountFrom)
	assert.Equal(t, 0.303, order.AmountTo)
	assert.Equal(t, "deposit-hash", order.PayinHash)
	assert.Equal(t, "payout-hash", order.PayoutHash)
}

func TestUpstreamErrorExtractsDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"err": {"details": "amount less than minimal"}}`))
	}))
	defer server.Close()

	client := stealthex.NewClientWithBaseURL("test-key", server.URL)
	_, err := client.Estimate(context.Background(), provider.EstimateParams{
		FromCurrency: "btc",
		ToCurrency:   "eth",
		FromAmount:   0.0000001,
	})

	var upstreamErr *provider.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, "amount less than minimal", upstreamErr.Body)
}

func TestGetExchangeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := stealthex.NewClientWithBaseURL("test-key", server.URL)
	_, err := client.GetExchange(context.Background(), "ghost")

	var notFoundErr *provider.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "ghost", notFoundErr.ID)
}
