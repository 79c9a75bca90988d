package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serverAddress = "http://localhost:8080"

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// simulationClient drives the swap API the way the widget does:
// estimate, create, then poll the order until it reaches a terminal state.
type simulationClient struct {
	baseURL string
	client  *http.Client
}

func newSimulationClient(baseURL string) *simulationClient {
	return &simulationClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (sc *simulationClient) get(path string, query url.Values, out interface{}) error {
	endpoint := sc.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	resp, err := sc.client.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

func (sc *simulationClient) post(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := sc.client.Post(sc.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

func decodeEnvelope(resp *http.Response, out interface{}) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, raw)
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func main() {
	var (
		baseURL  = flag.String("server", serverAddress, "swap API base URL")
		from     = flag.String("from", "btc", "currency to swap from")
		to       = flag.String("to", "eth", "currency to swap to")
		amount   = flag.Float64("amount", 0.01, "amount to swap")
		address  = flag.String("address", "", "destination address (omit to stop after the estimate)")
		prov     = flag.String("provider", "changenow", "provider: changenow or stealthex")
		interval = flag.Duration("poll", 15*time.Second, "status poll interval")
	)
	flag.Parse()

	sc := newSimulationClient(*baseURL)

	// Commission first, so the estimate output can be sanity-checked.
	var commission struct {
		Percentage float64 `json:"percentage"`
	}
	if err := sc.get("/api/v1/settings/commission", nil, &commission); err != nil {
		log.Fatal().Err(err).Msg("failed to fetch commission")
	}
	log.Info().Float64("percentage", commission.Percentage).Msg("platform commission")

	query := url.Values{}
	query.Set("fromCurrency", *from)
	query.Set("toCurrency", *to)
	query.Set("provider", *prov)
	var bounds struct {
		MinAmount float64 `json:"minAmount"`
		MaxAmount float64 `json:"maxAmount"`
	}
	if err := sc.get("/api/v1/range", query, &bounds); err != nil {
		log.Warn().Err(err).Msg("failed to fetch pair range")
	} else {
		log.Info().
			Float64("min", bounds.MinAmount).
			Float64("max", bounds.MaxAmount).
			Msg("pair range")
	}

	query.Set("fromAmount", fmt.Sprintf("%v", *amount))
	var estimate struct {
		ToAmount         float64 `json:"to_amount"`
		OriginalToAmount float64 `json:"original_to_amount"`
		MarkupPercentage float64 `json:"markup_percentage"`
	}
	if err := sc.get("/api/v1/estimate", query, &estimate); err != nil {
		log.Fatal().Err(err).Msg("failed to fetch estimate")
	}
	log.Info().
		Float64("to_amount", estimate.ToAmount).
		Float64("original_to_amount", estimate.OriginalToAmount).
		Float64("markup", estimate.MarkupPercentage).
		Msg("estimate received")

	if *address == "" {
		log.Info().Msg("no destination address given, stopping after estimate")
		return
	}

	var order struct {
		TransactionID string  `json:"transaction_id"`
		PayinAddress  string  `json:"payin_address"`
		FromAmount    float64 `json:"from_amount"`
		Status        string  `json:"status"`
	}
	err := sc.post("/api/v1/orders", map[string]interface{}{
		"provider":     *prov,
		"fromCurrency": *from,
		"toCurrency":   *to,
		"fromAmount":   *amount,
		"address":      *address,
	}, &order)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create order")
	}
	log.Info().
		Str("transaction_id", order.TransactionID).
		Str("payin_address", order.PayinAddress).
		Str("status", order.Status).
		Msgf("order created: send %v %s to the payin address", order.FromAmount, *from)

	// Poll like the widget does until the order is terminal.
	for {
		time.Sleep(*interval)

		var status struct {
			Status     string  `json:"status"`
			AmountFrom float64 `json:"amount_from"`
			AmountTo   float64 `json:"amount_to"`
			PayoutHash string  `json:"payout_hash"`
		}
		if err := sc.get("/api/v1/orders/"+order.TransactionID, nil, &status); err != nil {
			log.Warn().Err(err).Msg("status poll failed, retrying")
			continue
		}

		log.Info().
			Str("status", status.Status).
			Float64("amount_from", status.AmountFrom).
			Float64("amount_to", status.AmountTo).
			Msg("order status")

		if status.Status == "COMPLETED" || status.Status == "FAILED" {
			log.Info().Str("payout_hash", status.PayoutHash).Msg("order reached terminal state")
			return
		}
	}
}
