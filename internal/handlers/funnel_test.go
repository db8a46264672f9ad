package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jk-autos/storefront/internal/domain"
	"github.com/jk-autos/storefront/internal/funnel"
	"github.com/jk-autos/storefront/internal/orders"
	"github.com/jk-autos/storefront/internal/payments"
)

type funnelResolver struct{}

func (funnelResolver) Resolve(_ context.Context, id string) (domain.Vehicle, error) {
	return domain.Vehicle{ID: id, Brand: "Porsche", Model: "911 Carrera", Price: 165000}, nil
}

type funnelGateway struct{}

func (funnelGateway) Initialize(_ context.Context, _ payments.PaymentContext, req payments.HandoffRequest) (payments.Handoff, error) {
	return payments.Handoff{Reference: req.Reference, Provider: "paystack", PublicKey: "pk_test"}, nil
}

func (funnelGateway) Verify(_ context.Context, _ payments.PaymentContext, req payments.VerifyRequest) (payments.PaymentDetails, error) {
	return payments.PaymentDetails{Reference: req.Reference, Status: payments.StatusSucceeded}, nil
}

type funnelSubmitter struct{}

func (funnelSubmitter) SubmitPurchase(_ context.Context, _ domain.OrderDraft, reference string) (orders.PurchaseReceipt, error) {
	return orders.PurchaseReceipt{OrderID: "ord-1", Status: "confirmed", Reference: reference}, nil
}

func funnelRouter(t *testing.T) http.Handler {
	t.Helper()
	coordinator, err := funnel.NewCoordinator(funnel.CoordinatorDeps{
		Catalog:   funnelResolver{},
		Gateway:   funnelGateway{},
		Submitter: funnelSubmitter{},
		Token:     func() string { return "token-123" },
		Currency:  "NGN",
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return NewRouter(WithFunnelRoutes(NewFunnelHandlers(coordinator).Routes))
}

func doJSON(t *testing.T, router http.Handler, method, url, body string) (int, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	payload := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, url, err)
		}
	}
	return rec.Code, payload
}

func TestFunnelFullTraversalOverHTTP(t *testing.T) {
	router := funnelRouter(t)

	code, payload := doJSON(t, router, http.MethodGet, "/api/v1/funnel/state", "")
	if code != http.StatusOK || payload["state"] != "browsing" {
		t.Fatalf("initial state: %d %v", code, payload)
	}

	code, payload = doJSON(t, router, http.MethodPost, "/api/v1/funnel/select", `{"carId":"car-6"}`)
	if code != http.StatusOK || payload["state"] != "selected" {
		t.Fatalf("select: %d %v", code, payload)
	}
	quote := payload["quote"].(map[string]any)
	if quote["total"].(float64) != 180700 {
		t.Fatalf("quote total = %v", quote["total"])
	}

	code, _ = doJSON(t, router, http.MethodPost, "/api/v1/funnel/checkout", "")
	if code != http.StatusOK {
		t.Fatalf("checkout: %d", code)
	}

	code, _ = doJSON(t, router, http.MethodPut, "/api/v1/funnel/contact", `{
		"firstName":"Ada","lastName":"Okoro","email":"ada@example.com","phone":"+2348000000000",
		"address":"12 Marina Rd","city":"Lagos","state":"Lagos","zipCode":"100001",
		"paymentMethod":"card"
	}`)
	if code != http.StatusOK {
		t.Fatalf("contact: %d", code)
	}

	code, payload = doJSON(t, router, http.MethodPost, "/api/v1/funnel/payment", "")
	if code != http.StatusOK || payload["state"] != "awaiting-payment" {
		t.Fatalf("payment: %d %v", code, payload)
	}
	handoff := payload["handoff"].(map[string]any)
	reference, _ := handoff["reference"].(string)
	if reference == "" || handoff["publicKey"] != "pk_test" {
		t.Fatalf("handoff: %v", handoff)
	}

	code, payload = doJSON(t, router, http.MethodPost, "/api/v1/funnel/payment/confirm", `{"reference":"`+reference+`"}`)
	if code != http.StatusOK || payload["state"] != "completed" {
		t.Fatalf("confirm: %d %v", code, payload)
	}
	receipt := payload["receipt"].(map[string]any)
	if receipt["orderId"] != "ord-1" {
		t.Fatalf("receipt: %v", receipt)
	}
}

func TestFunnelValidationErrorsSurfaceFields(t *testing.T) {
	router := funnelRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/funnel/select", `{"carId":"car-6"}`)
	doJSON(t, router, http.MethodPost, "/api/v1/funnel/checkout", "")
	doJSON(t, router, http.MethodPut, "/api/v1/funnel/contact", `{"firstName":"Ada","paymentMethod":"card"}`)

	code, payload := doJSON(t, router, http.MethodPost, "/api/v1/funnel/payment", "")
	if code != http.StatusBadRequest || payload["error"] != "validation_failed" {
		t.Fatalf("expected validation failure: %d %v", code, payload)
	}
	if _, ok := payload["fields"]; !ok {
		t.Fatalf("field details missing: %v", payload)
	}
}

func TestFunnelPaymentCancelEndpoint(t *testing.T) {
	router := funnelRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/funnel/select", `{"carId":"car-6"}`)
	doJSON(t, router, http.MethodPost, "/api/v1/funnel/checkout", "")
	doJSON(t, router, http.MethodPut, "/api/v1/funnel/contact", `{
		"firstName":"Ada","lastName":"Okoro","email":"ada@example.com","phone":"+2348000000000",
		"address":"12 Marina Rd","city":"Lagos","state":"Lagos","zipCode":"100001",
		"paymentMethod":"card"
	}`)
	doJSON(t, router, http.MethodPost, "/api/v1/funnel/payment", "")

	code, payload := doJSON(t, router, http.MethodPost, "/api/v1/funnel/payment/cancel", "")
	if code != http.StatusOK || payload["cancelled"] != true {
		t.Fatalf("cancel: %d %v", code, payload)
	}
	if payload["state"] != "filling-contact" {
		t.Fatalf("cancel must land back in filling-contact: %v", payload)
	}

	code, payload = doJSON(t, router, http.MethodGet, "/api/v1/funnel/state", "")
	if code != http.StatusOK {
		t.Fatalf("state: %d", code)
	}
	draft := payload["draft"].(map[string]any)
	if draft["vehicleId"] != "car-6" {
		t.Fatalf("draft must survive cancellation: %v", draft)
	}
}

func TestFunnelInvalidTransitionIsConflict(t *testing.T) {
	router := funnelRouter(t)

	code, payload := doJSON(t, router, http.MethodPost, "/api/v1/funnel/checkout", "")
	if code != http.StatusConflict || payload["error"] != "invalid_transition" {
		t.Fatalf("expected conflict: %d %v", code, payload)
	}
}

func TestFunnelPaymentWithoutDraftExpiresSession(t *testing.T) {
	router := funnelRouter(t)

	code, payload := doJSON(t, router, http.MethodPost, "/api/v1/funnel/payment", "")
	if code != http.StatusUnauthorized || payload["error"] != "session_expired" {
		t.Fatalf("expected session_expired: %d %v", code, payload)
	}

	code, payload = doJSON(t, router, http.MethodGet, "/api/v1/funnel/state", "")
	if code != http.StatusOK || payload["state"] != "browsing" {
		t.Fatalf("missing draft must force browsing: %d %v", code, payload)
	}
}

func TestFunnelSessionExpiredIsUnauthorized(t *testing.T) {
	coordinator, err := funnel.NewCoordinator(funnel.CoordinatorDeps{
		Catalog:   funnelResolver{},
		Gateway:   funnelGateway{},
		Submitter: funnelSubmitter{},
		Token:     func() string { return "" },
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	router := NewRouter(WithFunnelRoutes(NewFunnelHandlers(coordinator).Routes))

	doJSON(t, router, http.MethodPost, "/api/v1/funnel/select", `{"carId":"car-6"}`)
	code, payload := doJSON(t, router, http.MethodPost, "/api/v1/funnel/checkout", "")
	if code != http.StatusUnauthorized || payload["error"] != "session_expired" {
		t.Fatalf("expected session_expired: %d %v", code, payload)
	}
}
