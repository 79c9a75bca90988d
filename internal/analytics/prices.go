package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// binanceTickerURL serves spot prices for every listed pair in one call.
	binanceTickerURL = "https://api.binance.com/api/v3/ticker/price"
	priceTimeout     = 5 * time.Second
)

// PriceClient fetches USD spot prices for analytics enrichment. This is a
// non-critical call: any failure degrades to the fallback map so the admin
// dashboard never blocks on it.
type PriceClient struct {
	url        string
	httpClient *http.Client
}

// NewPriceClient creates a price client against the Binance public API.
func NewPriceClient() *PriceClient {
	return &PriceClient{
		url:        binanceTickerURL,
		httpClient: &http.Client{Timeout: priceTimeout},
	}
}

// NewPriceClientWithURL is used by tests to point the client at a stub server.
func NewPriceClientWithURL(url string) *PriceClient {
	c := NewPriceClient()
	c.url = url
	return c
}

type tickerEntry struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Prices returns a ticker-to-USD map built from USDT pairs, with
// stablecoins pinned to 1. On any failure it returns approximate fallback
// prices instead of an error.
func (c *PriceClient) Prices(ctx context.Context) map[string]float64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fallbackPrices()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("spot price fetch failed, using fallback prices")
		return fallbackPrices()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("spot price fetch failed, using fallback prices")
		return fallbackPrices()
	}

	var tickers []tickerEntry
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		log.Warn().Err(err).Msg("spot price decode failed, using fallback prices")
		return fallbackPrices()
	}

	prices := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		if !strings.HasSuffix(ticker.Symbol, "USDT") {
			continue
		}
		price, err := strconv.ParseFloat(ticker.Price, 64)
		if err != nil {
			continue
		}
		prices[strings.TrimSuffix(ticker.Symbol, "USDT")] = price
	}

	// Stablecoins do not trade against USDT.
	prices["USDT"] = 1
	prices["USDC"] = 1
	prices["DAI"] = 1
	return prices
}

// fallbackPrices are approximate figures used when the spot feed is
// unreachable; stale analytics beat a blocked dashboard.
func fallbackPrices() map[string]float64 {
	return map[string]float64{
		"BTC":   95000,
		"ETH":   3500,
		"BNB":   600,
		"SOL":   180,
		"XRP":   2.5,
		"ADA":   0.9,
		"DOGE":  0.35,
		"TRX":   0.25,
		"LTC":   100,
		"MATIC": 1.1,
		"USDT":  1,
		"USDC":  1,
		"DAI":   1,
		"BUSD":  1,
	}
}
