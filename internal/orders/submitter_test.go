package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jk-autos/storefront/internal/domain"
)

func validDraft() domain.OrderDraft {
	return domain.OrderDraft{
		Vehicle: domain.Vehicle{ID: "car-6", Brand: "Porsche", Model: "911 Carrera", Price: 165000},
		Contact: domain.Contact{
			FirstName: "Ada",
			LastName:  "Okoro",
			Email:     "ada@example.com",
			Phone:     "+2348000000000",
		},
		Address: domain.Address{
			Street:  "12 Marina Rd",
			City:    "Lagos",
			State:   "Lagos",
			ZipCode: "100001",
		},
		Service: domain.ServicePurchase,
		Method:  domain.MethodCard,
		Quote:   domain.QuoteFor(165000),
	}
}

func TestSubmitPurchase(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/purchases" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":"ord-1","status":"confirmed","paymentReference":"pay_01TESTREF"}`))
	}))
	defer server.Close()

	submitter, err := NewSubmitter(SubmitterDeps{
		BaseURL: server.URL,
		Token:   func() string { return "token-123" },
	})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	receipt, err := submitter.SubmitPurchase(context.Background(), validDraft(), "pay_01TESTREF")
	if err != nil {
		t.Fatalf("SubmitPurchase: %v", err)
	}
	if receipt.OrderID != "ord-1" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	for key, want := range map[string]string{
		"carId":            "car-6",
		"firstName":        "Ada",
		"lastName":         "Okoro",
		"email":            "ada@example.com",
		"phone":            "+2348000000000",
		"address":          "12 Marina Rd",
		"city":             "Lagos",
		"state":            "Lagos",
		"zipCode":          "100001",
		"paymentMethod":    "card",
		"paymentReference": "pay_01TESTREF",
	} {
		if captured[key] != want {
			t.Fatalf("payload %s = %v, want %q", key, captured[key], want)
		}
	}
}

func TestSubmitPurchaseOmitsReferenceForOutOfBandMethods(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"orderId":"ord-2"}`))
	}))
	defer server.Close()

	submitter, err := NewSubmitter(SubmitterDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	draft := validDraft()
	draft.Method = domain.MethodBankTransfer

	if _, err := submitter.SubmitPurchase(context.Background(), draft, "pay_SHOULD_NOT_APPEAR"); err != nil {
		t.Fatalf("SubmitPurchase: %v", err)
	}
	if _, present := captured["paymentReference"]; present {
		t.Fatalf("paymentReference must be omitted for bank transfer: %v", captured)
	}
}

func TestSubmitPurchaseValidatesDraft(t *testing.T) {
	submitter, err := NewSubmitter(SubmitterDeps{BaseURL: "http://orders.invalid"})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	draft := validDraft()
	draft.Contact.Email = ""

	var validation *domain.ValidationError
	if _, err := submitter.SubmitPurchase(context.Background(), draft, ""); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubmitPurchaseServerErrorIsSubmissionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	submitter, err := NewSubmitter(SubmitterDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	if _, err := submitter.SubmitPurchase(context.Background(), validDraft(), "pay_x"); !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
}

func TestSubmitInspection(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inspections" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"bookingId":"insp-1","status":"scheduled"}`))
	}))
	defer server.Close()

	submitter, err := NewSubmitter(SubmitterDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	receipt, err := submitter.SubmitInspection(context.Background(), domain.InspectionBooking{
		VehicleID: "car-6",
		FullName:  "Ada Okoro",
		Email:     "ada@example.com",
		Phone:     "+2348000000000",
		Date:      "2026-09-03",
		Time:      "10:00",
		Message:   "Morning preferred",
	})
	if err != nil {
		t.Fatalf("SubmitInspection: %v", err)
	}
	if receipt.BookingID != "insp-1" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	if captured["carId"] != "car-6" || captured["fullName"] != "Ada Okoro" || captured["time"] != "10:00" {
		t.Fatalf("unexpected payload %v", captured)
	}
}

func TestSubmitInspectionValidates(t *testing.T) {
	submitter, err := NewSubmitter(SubmitterDeps{BaseURL: "http://orders.invalid"})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}

	var validation *domain.ValidationError
	if _, err := submitter.SubmitInspection(context.Background(), domain.InspectionBooking{VehicleID: "car-1"}); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
