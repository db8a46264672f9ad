package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubProvider struct {
	name         string
	initializeFn func(ctx context.Context, req HandoffRequest) (Handoff, error)
	verifyFn     func(ctx context.Context, req VerifyRequest) (PaymentDetails, error)
}

func (s *stubProvider) Initialize(ctx context.Context, req HandoffRequest) (Handoff, error) {
	if s.initializeFn == nil {
		return Handoff{Reference: req.Reference}, nil
	}
	return s.initializeFn(ctx, req)
}

func (s *stubProvider) Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if s.verifyFn == nil {
		return PaymentDetails{Reference: req.Reference, Status: StatusSucceeded}, nil
	}
	return s.verifyFn(ctx, req)
}

func TestNewReferenceIsUniquePerAttempt(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		ref := NewReference()
		if !strings.HasPrefix(ref, "pay_") {
			t.Fatalf("reference %q missing prefix", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
	}
}

func TestMinorUnits(t *testing.T) {
	if got := MinorUnits(180700); got != 18070000 {
		t.Fatalf("MinorUnits(180700) = %d", got)
	}
	if got := MinorUnits(0); got != 0 {
		t.Fatalf("MinorUnits(0) = %d", got)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty provider map")
	}
	if _, err := NewManager(map[string]Provider{" ": &stubProvider{}}); err == nil {
		t.Fatal("expected error for blank provider key")
	}
	if _, err := NewManager(map[string]Provider{"paystack": nil}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestManagerResolvesPreferredProvider(t *testing.T) {
	var called string
	manager, err := NewManager(map[string]Provider{
		"paystack": &stubProvider{name: "paystack", initializeFn: func(context.Context, HandoffRequest) (Handoff, error) {
			called = "paystack"
			return Handoff{}, nil
		}},
		"stripe": &stubProvider{name: "stripe", initializeFn: func(context.Context, HandoffRequest) (Handoff, error) {
			called = "stripe"
			return Handoff{}, nil
		}},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	handoff, err := manager.Initialize(context.Background(), PaymentContext{PreferredProvider: "Stripe"}, HandoffRequest{})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if called != "stripe" || handoff.Provider != "stripe" {
		t.Fatalf("expected stripe, called=%q provider=%q", called, handoff.Provider)
	}
}

func TestManagerDefaultsToPaystack(t *testing.T) {
	var called string
	manager, err := NewManager(map[string]Provider{
		"paystack": &stubProvider{initializeFn: func(context.Context, HandoffRequest) (Handoff, error) {
			called = "paystack"
			return Handoff{}, nil
		}},
		"stripe": &stubProvider{initializeFn: func(context.Context, HandoffRequest) (Handoff, error) {
			called = "stripe"
			return Handoff{}, nil
		}},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.Initialize(context.Background(), PaymentContext{}, HandoffRequest{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if called != "paystack" {
		t.Fatalf("expected paystack default, got %q", called)
	}
}

func TestManagerUnknownPreferenceFallsBack(t *testing.T) {
	manager, err := NewManager(map[string]Provider{
		"stripe": &stubProvider{},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	details, err := manager.Verify(context.Background(), PaymentContext{PreferredProvider: "flutterwave"}, VerifyRequest{Reference: "pay_x"})
	if err != nil {
		t.Fatalf("single registered provider should serve unknown preference: %v", err)
	}
	if details.Provider != "stripe" {
		t.Fatalf("expected stripe, got %q", details.Provider)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	manager, err := NewManager(map[string]Provider{
		"stripe":   &stubProvider{},
		"paystack": &stubProvider{},
	}, WithDefaultProvider("flutterwave"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.Initialize(context.Background(), PaymentContext{PreferredProvider: "square"}, HandoffRequest{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
