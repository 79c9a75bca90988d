package exchange

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polyswap/polyswap-api/internal/provider"
	"github.com/polyswap/polyswap-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the exchange endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for exchange endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CurrenciesHandler handles GET requests for the tradable currency catalog.
// Query params: provider, network, active.
func (h *GinHandlers) CurrenciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := provider.CurrencyFilter{
			Network:    c.Query("network"),
			ActiveOnly: c.DefaultQuery("active", "true") != "false",
		}

		currencies, err := h.service.Currencies(c.Request.Context(), provider.Name(c.Query("provider")), filter)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{
			"currencies": currencies,
			"total":      len(currencies),
		})
	}
}

// EstimateHandler handles GET requests for commission-adjusted quotes.
// Query params: fromCurrency, toCurrency, fromAmount (required);
// fromNetwork, toNetwork, flow, provider (optional).
func (h *GinHandlers) EstimateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromCurrency := c.Query("fromCurrency")
		toCurrency := c.Query("toCurrency")
		rawAmount := c.Query("fromAmount")
		if fromCurrency == "" || toCurrency == "" || rawAmount == "" {
			response.BadRequest(c, "fromCurrency, toCurrency and fromAmount are required")
			return
		}

		amount, err := strconv.ParseFloat(rawAmount, 64)
		if err != nil {
			response.BadRequest(c, "fromAmount must be a number")
			return
		}

		estimate, err := h.service.EstimateSwap(c.Request.Context(), EstimateRequest{
			Provider:     provider.Name(c.Query("provider")),
			FromCurrency: fromCurrency,
			ToCurrency:   toCurrency,
			FromAmount:   amount,
			FromNetwork:  c.Query("fromNetwork"),
			ToNetwork:    c.Query("toNetwork"),
			Flow:         c.DefaultQuery("flow", provider.FlowStandard),
		})
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, estimate)
	}
}

// RangeHandler handles GET requests for pair min/max bounds.
func (h *GinHandlers) RangeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromCurrency := c.Query("fromCurrency")
		toCurrency := c.Query("toCurrency")
		if fromCurrency == "" || toCurrency == "" {
			response.BadRequest(c, "fromCurrency and toCurrency are required")
			return
		}

		bounds, err := h.service.MinAmount(c.Request.Context(), provider.Name(c.Query("provider")), provider.RangeParams{
			FromCurrency: fromCurrency,
			ToCurrency:   toCurrency,
			FromNetwork:  c.Query("fromNetwork"),
			ToNetwork:    c.Query("toNetwork"),
			Flow:         c.DefaultQuery("flow", provider.FlowStandard),
		})
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{
			"minAmount": bounds.MinAmount,
			"maxAmount": bounds.MaxAmount,
		})
	}
}

// createOrderBody is the UI-facing order creation payload.
type createOrderBody struct {
	Provider      string  `json:"provider"`
	FromCurrency  string  `json:"fromCurrency"`
	ToCurrency    string  `json:"toCurrency"`
	FromAmount    float64 `json:"fromAmount"`
	Address       string  `json:"address"`
	ExtraID       string  `json:"extraId"`
	FromNetwork   string  `json:"fromNetwork"`
	ToNetwork     string  `json:"toNetwork"`
	RefundAddress string  `json:"refundAddress"`
	RefundExtraID string  `json:"refundExtraId"`
	Flow          string  `json:"flow"`
	RateID        string  `json:"rateId"`
}

// CreateOrderHandler handles POST requests to place swap orders.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createOrderBody
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(c.Request.Context(), CreateOrderRequest{
			Provider:      provider.Name(body.Provider),
			FromCurrency:  body.FromCurrency,
			ToCurrency:    body.ToCurrency,
			FromAmount:    body.FromAmount,
			Address:       body.Address,
			ExtraID:       body.ExtraID,
			FromNetwork:   body.FromNetwork,
			ToNetwork:     body.ToNetwork,
			RefundAddress: body.RefundAddress,
			RefundExtraID: body.RefundExtraID,
			Flow:          body.Flow,
			RateID:        body.RateID,
		})
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, order)
	}
}

// orderStatusResponse is the polled status view.
type orderStatusResponse struct {
	TransactionID string    `json:"transaction_id"`
	ProviderID    string    `json:"provider_id"`
	Status        Status    `json:"status"`
	FromCurrency  string    `json:"from_currency"`
	ToCurrency    string    `json:"to_currency"`
	FromAmount    float64   `json:"from_amount"`
	ToAmount      float64   `json:"to_amount"`
	AmountFrom    float64   `json:"amount_from,omitempty"`
	AmountTo      float64   `json:"amount_to,omitempty"`
	PayinAddress  string    `json:"payin_address"`
	PayoutAddress string    `json:"payout_address"`
	PayinHash     string    `json:"payin_hash,omitempty"`
	PayoutHash    string    `json:"payout_hash,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OrderStatusHandler handles GET requests that poll an order's status.
// Every poll triggers a full reconciliation against the provider.
func (h *GinHandlers) OrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			response.BadRequest(c, "Transaction ID is required")
			return
		}

		result, err := h.service.Reconcile(c.Request.Context(), id)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		tx := result.Transaction
		response.Success(c, orderStatusResponse{
			TransactionID: tx.TransactionID,
			ProviderID:    tx.ProviderOrderID(),
			Status:        result.Status,
			FromCurrency:  tx.FromCurrency,
			ToCurrency:    tx.ToCurrency,
			FromAmount:    tx.FromAmount,
			ToAmount:      tx.ToAmount,
			AmountFrom:    tx.ActualFromAmount,
			AmountTo:      tx.ActualToAmount,
			PayinAddress:  tx.PayinAddress,
			PayoutAddress: tx.PayoutAddress,
			PayinHash:     tx.PayinHash,
			PayoutHash:    tx.PayoutHash,
			UpdatedAt:     tx.UpdatedAt,
		})
	}
}

// ResyncHandler handles POST requests to repair a transaction from its
// provider id. Admin only.
func (h *GinHandlers) ResyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Provider   string `json:"provider"`
			ProviderID string `json:"providerId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if body.ProviderID == "" {
			response.BadRequest(c, "providerId is required")
			return
		}

		result, err := h.service.ResyncByProviderID(c.Request.Context(), provider.Name(body.Provider), body.ProviderID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, result.Transaction)
	}
}
