package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jk-autos/storefront/internal/domain"
	"github.com/jk-autos/storefront/internal/orders"
	"github.com/jk-autos/storefront/internal/platform/httpx"
)

const maxInspectionBodySize = 16 * 1024

// InspectionSubmitter posts inspection bookings to the write API.
type InspectionSubmitter interface {
	SubmitInspection(ctx context.Context, booking domain.InspectionBooking) (orders.InspectionReceipt, error)
}

// InspectionHandlers exposes the inspection booking endpoint.
type InspectionHandlers struct {
	submitter InspectionSubmitter
}

// NewInspectionHandlers constructs handlers over the order submitter.
func NewInspectionHandlers(submitter InspectionSubmitter) *InspectionHandlers {
	return &InspectionHandlers{submitter: submitter}
}

// Routes wires the /inspections endpoints onto the provided router.
func (h *InspectionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.bookInspection)
}

func (h *InspectionHandlers) bookInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.submitter == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req struct {
		CarID    string `json:"carId"`
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Date     string `json:"date"`
		Time     string `json:"time"`
		Message  string `json:"message"`
	}
	if err := decodeJSONBody(r, maxInspectionBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	receipt, err := h.submitter.SubmitInspection(ctx, domain.InspectionBooking{
		VehicleID: req.CarID,
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		Date:      req.Date,
		Time:      req.Time,
		Message:   req.Message,
	})
	if err != nil {
		h.writeInspectionError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"bookingId": receipt.BookingID,
		"status":    receipt.Status,
	})
}

func (h *InspectionHandlers) writeInspectionError(ctx context.Context, w http.ResponseWriter, err error) {
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
	case errors.Is(err, orders.ErrSubmission):
		httpx.WriteError(ctx, w, httpx.NewError("submission_failed", "inspection booking failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
