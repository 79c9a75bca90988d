package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/polyswap/polyswap-api/internal/provider"
)

// ReconcileResult pairs the freshly fetched upstream order view with the
// persisted transaction after the status write.
type ReconcileResult struct {
	Transaction *Transaction    `json:"transaction"`
	Status      Status          `json:"status"`
	Upstream    *provider.Order `json:"upstream"`
}

// Reconcile fetches the live order from whichever provider the transaction
// record points at, maps the vendor status onto the internal enum, and
// persists the result. The write is an idempotent full-record overwrite
// and always happens, changed or not. A failed write is logged but does
// not hide the freshly fetched status from the caller.
//
// Terminal states are sticky: once COMPLETED or FAILED, a stale upstream
// status cannot move the record back.
func (s *Service) Reconcile(ctx context.Context, id string) (*ReconcileResult, error) {
	tx, err := s.db.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, &provider.NotFoundError{Provider: "local", ID: id}
	}

	client, err := s.client(tx.Provider())
	if err != nil {
		return nil, err
	}

	order, err := client.GetExchange(ctx, tx.ProviderOrderID())
	if err != nil {
		// Provider-unknown and upstream failures leave the local record
		// untouched.
		return nil, err
	}

	mapped := StatusFromUpstream(order.Status)
	current := Status(tx.Status)
	if current.Terminal() && !mapped.Terminal() {
		log.Warn().
			Str("transaction_id", tx.TransactionID).
			Str("current", string(current)).
			Str("upstream", order.Status).
			Msg("ignoring upstream status that would revert a terminal transaction")
		mapped = current
	}

	tx.Status = string(mapped)
	tx.ActualFromAmount = order.AmountFrom
	tx.ActualToAmount = order.AmountTo
	tx.PayinHash = order.PayinHash
	tx.PayoutHash = order.PayoutHash
	tx.UpdatedAt = time.Now()

	if err := s.db.UpdateTransaction(ctx, tx); err != nil {
		log.Error().
			Err(err).
			Str("transaction_id", tx.TransactionID).
			Msg("failed to persist reconciled status")
	}

	return &ReconcileResult{Transaction: tx, Status: mapped, Upstream: order}, nil
}

// ResyncByProviderID repairs the crash-between-steps gap: an order that
// exists at the provider but has no local row (creation persisted nothing)
// gets one here, then reconciles normally.
func (s *Service) ResyncByProviderID(ctx context.Context, name provider.Name, providerID string) (*ReconcileResult, error) {
	client, err := s.client(name)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.GetTransactionByProviderID(ctx, client.Name(), providerID)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return s.Reconcile(ctx, tx.TransactionID)
	}

	order, err := client.GetExchange(ctx, providerID)
	if err != nil {
		return nil, err
	}

	tx = &Transaction{
		TransactionID: uuid.New().String(),
		PayinAddress:  order.PayinAddress,
		PayinExtraID:  order.PayinExtraID,
		PayoutAddress: order.PayoutAddress,
		FromCurrency:  strings.ToLower(order.FromCurrency),
		ToCurrency:    strings.ToLower(order.ToCurrency),
		FromNetwork:   strings.ToLower(order.FromNetwork),
		ToNetwork:     strings.ToLower(order.ToNetwork),
		FromAmount:    order.ExpectedAmountFrom,
		ToAmount:      order.ExpectedAmountTo,
		ActualFromAmount: order.AmountFrom,
		ActualToAmount:   order.AmountTo,
		PayinHash:     order.PayinHash,
		PayoutHash:    order.PayoutHash,
		Status:        string(StatusFromUpstream(order.Status)),
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
		return nil, err
	}

	log.Info().
		Str("transaction_id", tx.TransactionID).
		Str("provider", string(client.Name())).
		Str("provider_id", order.ID).
		Msg("recovered transaction from provider during resync")

	return &ReconcileResult{Transaction: tx, Status: Status(tx.Status), Upstream: order}, nil
}
