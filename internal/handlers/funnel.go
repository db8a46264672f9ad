package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jk-autos/storefront/internal/auth"
	"github.com/jk-autos/storefront/internal/catalog"
	"github.com/jk-autos/storefront/internal/domain"
	"github.com/jk-autos/storefront/internal/funnel"
	"github.com/jk-autos/storefront/internal/orders"
	"github.com/jk-autos/storefront/internal/payments"
	"github.com/jk-autos/storefront/internal/platform/httpx"
)

const maxFunnelBodySize = 16 * 1024

// FunnelHandlers exposes the purchase traversal endpoints over the coordinator.
type FunnelHandlers struct {
	coordinator *funnel.Coordinator
}

// NewFunnelHandlers constructs handlers over the funnel coordinator.
func NewFunnelHandlers(coordinator *funnel.Coordinator) *FunnelHandlers {
	return &FunnelHandlers{coordinator: coordinator}
}

// Routes wires the /funnel endpoints onto the provided router.
func (h *FunnelHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/state", h.getState)
	r.Post("/select", h.selectVehicle)
	r.Post("/checkout", h.beginCheckout)
	r.Put("/contact", h.setContact)
	r.Post("/payment", h.proceedToPayment)
	r.Post("/payment/confirm", h.confirmPayment)
	r.Post("/payment/cancel", h.cancelPayment)
	r.Post("/payment/retry", h.retryPayment)
	r.Post("/submission/retry", h.retrySubmission)
	r.Post("/cancel", h.cancelFunnel)
}

type statePayload struct {
	State   string          `json:"state"`
	Draft   *draftPayload   `json:"draft,omitempty"`
	Receipt *receiptPayload `json:"receipt,omitempty"`
}

type draftPayload struct {
	VehicleID     string `json:"vehicleId,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Model         string `json:"model,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Base          int64  `json:"base"`
	Tax           int64  `json:"tax"`
	DeliveryFee   int64  `json:"deliveryFee"`
	Total         int64  `json:"total"`
}

type receiptPayload struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status,omitempty"`
	Reference string `json:"paymentReference,omitempty"`
}

func (h *FunnelHandlers) getState(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.buildStatePayload())
}

func (h *FunnelHandlers) selectVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		CarID string `json:"carId"`
	}
	if err := decodeJSONBody(r, maxFunnelBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	quote, err := h.coordinator.Select(ctx, req.CarID)
	if err != nil {
		h.writeFunnelError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"state": string(h.coordinator.State()),
		"quote": map[string]int64{
			"base":        quote.Base,
			"tax":         quote.Tax,
			"deliveryFee": quote.Delivery,
			"total":       quote.Total,
		},
	})
}

func (h *FunnelHandlers) beginCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.coordinator.BeginCheckout(ctx); err != nil {
		h.writeFunnelError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildStatePayload())
}

func (h *FunnelHandlers) setContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		FirstName     string `json:"firstName"`
		LastName      string `json:"lastName"`
		Email         string `json:"email"`
		Phone         string `json:"phone"`
		Address       string `json:"address"`
		City          string `json:"city"`
		State         string `json:"state"`
		ZipCode       string `json:"zipCode"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := decodeJSONBody(r, maxFunnelBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	err := h.coordinator.SetContact(
		domain.Contact{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		},
		domain.Address{
			Street:  req.Address,
			City:    req.City,
			State:   req.State,
			ZipCode: req.ZipCode,
		},
		domain.PaymentMethod(req.PaymentMethod),
	)
	if err != nil {
		h.writeFunnelError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildStatePayload())
}

func (h *FunnelHandlers) proceedToPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	handoff, err := h.coordinator.ProceedToPayment(ctx)
	if err != nil {
		h.writeFunnelError(ctx, w, err)
		return
	}

	payload := h.buildStatePayload()
	if handoff == nil {
		writeJSONResponse(w, http.StatusOK, payload)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"state":   payload.State,
		"handoff": buildHandoffPayload(*handoff),
	})
}

func (h *FunnelHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Reference string `json:"reference"`
	}
	if err := decodeJSONBody(r, maxFunnelBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.coordinator.ConfirmPayment(ctx, req.Reference); err != nil {
		h.writeFunnelError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildStatePayload())
}

func (h *FunnelHandlers) cancelPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.coordinator.CancelPayment(ctx)
	switch {
	case errors.Is(err, funnel.ErrPaymentCancelled):
		payload := h.buildStatePayload()
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"state":     payload.State,
			"cancelled": true,
		})
	case err != nil:
		h.writeFunnelError(ctx, w, err)
	default:
		writeJSONResponse(w, http.StatusOK, h.buildStatePayload())
	}
}

func (h *FunnelHandlers) retryPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	handoff, err := h.coordinator.RetryPayment(ctx)
	if err != nil {
		h.writeFunnelError(ctx, w, err)
		return
	}

	payload := h.buildStatePayload()
	if handoff == nil {
		writeJSONResponse(w, http.StatusOK, payload)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"state":   payload.State,
		"handoff": buildHandoffPayload(*handoff),
	})
}

func (h *FunnelHandlers) retrySubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.coordinator.RetrySubmission(ctx); err != nil {
		h.writeFunnelError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildStatePayload())
}

func (h *FunnelHandlers) cancelFunnel(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Cancel(r.Context())
	writeJSONResponse(w, http.StatusOK, h.buildStatePayload())
}

func (h *FunnelHandlers) buildStatePayload() statePayload {
	payload := statePayload{State: string(h.coordinator.State())}

	draft := h.coordinator.Draft()
	if draft.Vehicle.ID != "" {
		payload.Draft = &draftPayload{
			VehicleID:     draft.Vehicle.ID,
			Brand:         draft.Vehicle.Brand,
			Model:         draft.Vehicle.Model,
			PaymentMethod: string(draft.Method),
			Base:          draft.Quote.Base,
			Tax:           draft.Quote.Tax,
			DeliveryFee:   draft.Quote.Delivery,
			Total:         draft.Quote.Total,
		}
	}

	if receipt := h.coordinator.Receipt(); receipt.OrderID != "" {
		payload.Receipt = &receiptPayload{
			OrderID:   receipt.OrderID,
			Status:    receipt.Status,
			Reference: receipt.Reference,
		}
	}
	return payload
}

func buildHandoffPayload(handoff payments.Handoff) map[string]any {
	payload := map[string]any{
		"reference": handoff.Reference,
		"provider":  handoff.Provider,
	}
	if handoff.AuthorizationURL != "" {
		payload["authorizationUrl"] = handoff.AuthorizationURL
	}
	if handoff.AccessCode != "" {
		payload["accessCode"] = handoff.AccessCode
	}
	if handoff.PublicKey != "" {
		payload["publicKey"] = handoff.PublicKey
	}
	if !handoff.ExpiresAt.IsZero() {
		payload["expiresAt"] = handoff.ExpiresAt.Format(time.RFC3339)
	}
	return payload
}

func (h *FunnelHandlers) writeFunnelError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		fields := make([]map[string]string, 0, len(validation.Fields))
		for _, f := range validation.Fields {
			fields = append(fields, map[string]string{
				"field":  f.Field,
				"reason": f.Reason,
			})
		}
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", validation.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"fields": fields}))
	case errors.Is(err, catalog.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("vehicle_not_found", "vehicle not found", http.StatusNotFound))
	case errors.Is(err, catalog.ErrFetch):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusBadGateway))
	case errors.Is(err, auth.ErrSessionExpired):
		httpx.WriteError(ctx, w, httpx.NewError("session_expired", "session expired; sign in again", http.StatusUnauthorized))
	case errors.Is(err, funnel.ErrPaymentCancelled):
		httpx.WriteError(ctx, w, httpx.NewError("payment_cancelled", "payment was cancelled", http.StatusConflict))
	case errors.Is(err, funnel.ErrPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment failed", http.StatusPaymentRequired))
	case errors.Is(err, funnel.ErrPaymentConfirmedSubmissionFailed):
		httpx.WriteError(ctx, w, httpx.NewError("submission_failed_payment_confirmed", "payment confirmed but order submission failed; retry submission", http.StatusBadGateway))
	case errors.Is(err, funnel.ErrSubmissionInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("submission_in_flight", "order submission already in progress", http.StatusConflict))
	case errors.Is(err, funnel.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, payments.ErrUnsupportedProvider):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_provider", "payment provider is not available", http.StatusBadRequest))
	case errors.Is(err, orders.ErrSubmission):
		httpx.WriteError(ctx, w, httpx.NewError("submission_failed", "order submission failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
