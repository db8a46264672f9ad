package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jk-autos/storefront/internal/domain"
)

const defaultTimeout = 10 * time.Second

// ErrSubmission indicates the order write API rejected or never received
// the request. Callers decide whether retrying is safe.
var ErrSubmission = errors.New("orders: submission failed")

// SubmitterDeps wires the dependencies required by the Submitter.
type SubmitterDeps struct {
	BaseURL string
	Token   func() string
	HTTP    *http.Client
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// Submitter posts completed orders and inspection bookings to the write API.
type Submitter struct {
	baseURL string
	token   func() string
	http    *http.Client
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewSubmitter constructs a Submitter validating required dependencies.
func NewSubmitter(deps SubmitterDeps) (*Submitter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("orders: base url is required")
	}
	httpClient := deps.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	token := deps.Token
	if token == nil {
		token = func() string { return "" }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Submitter{
		baseURL: baseURL,
		token:   token,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// PurchaseReceipt is the write API's acknowledgement of a purchase order.
type PurchaseReceipt struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Reference string `json:"paymentReference"`
}

type purchasePayload struct {
	CarID            string `json:"carId"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	ZipCode          string `json:"zipCode"`
	PaymentMethod    string `json:"paymentMethod"`
	PaymentReference string `json:"paymentReference,omitempty"`
}

// SubmitPurchase posts the draft to POST /purchases. The payment reference is
// included only when the purchase settled through the gateway.
func (s *Submitter) SubmitPurchase(ctx context.Context, draft domain.OrderDraft, paymentReference string) (PurchaseReceipt, error) {
	if err := draft.Validate(); err != nil {
		return PurchaseReceipt{}, err
	}

	payload := purchasePayload{
		CarID:         draft.Vehicle.ID,
		FirstName:     draft.Contact.FirstName,
		LastName:      draft.Contact.LastName,
		Email:         draft.Contact.Email,
		Phone:         draft.Contact.Phone,
		Address:       draft.Address.Street,
		City:          draft.Address.City,
		State:         draft.Address.State,
		ZipCode:       draft.Address.ZipCode,
		PaymentMethod: string(draft.Method),
	}
	if draft.Method.RequiresGateway() {
		payload.PaymentReference = paymentReference
	}

	var receipt PurchaseReceipt
	if err := s.post(ctx, "purchases", payload, &receipt); err != nil {
		s.logger(ctx, "orders.purchase_failed", map[string]any{
			"carId": draft.Vehicle.ID,
			"error": err.Error(),
		})
		return PurchaseReceipt{}, err
	}

	s.logger(ctx, "orders.purchase_submitted", map[string]any{
		"carId":   draft.Vehicle.ID,
		"orderId": receipt.OrderID,
		"method":  string(draft.Method),
	})
	return receipt, nil
}

type inspectionPayload struct {
	CarID    string `json:"carId"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Message  string `json:"message,omitempty"`
}

// InspectionReceipt is the write API's acknowledgement of a booking.
type InspectionReceipt struct {
	BookingID string `json:"bookingId"`
	Status    string `json:"status"`
}

// SubmitInspection posts the booking to POST /inspections.
func (s *Submitter) SubmitInspection(ctx context.Context, booking domain.InspectionBooking) (InspectionReceipt, error) {
	if err := booking.Validate(); err != nil {
		return InspectionReceipt{}, err
	}

	payload := inspectionPayload{
		CarID:    booking.VehicleID,
		FullName: booking.FullName,
		Email:    booking.Email,
		Phone:    booking.Phone,
		Date:     booking.Date,
		Time:     booking.Time,
		Message:  booking.Message,
	}

	var receipt InspectionReceipt
	if err := s.post(ctx, "inspections", payload, &receipt); err != nil {
		s.logger(ctx, "orders.inspection_failed", map[string]any{
			"carId": booking.VehicleID,
			"error": err.Error(),
		})
		return InspectionReceipt{}, err
	}

	s.logger(ctx, "orders.inspection_submitted", map[string]any{
		"carId":     booking.VehicleID,
		"bookingId": receipt.BookingID,
	})
	return receipt, nil
}

func (s *Submitter) post(ctx context.Context, path string, payload any, out any) error {
	endpoint, err := url.JoinPath(s.baseURL, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrSubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(s.token()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrSubmission, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d: %s", ErrSubmission, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSubmission, err)
	}
	return nil
}
