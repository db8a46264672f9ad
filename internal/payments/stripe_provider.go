package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripePaymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
	intents  stripePaymentIntentAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time
	Clients  *stripeClients
}

// StripeProvider implements the Provider interface using Stripe Checkout.
// Stripe has no native lookup by merchant reference, so the provider keeps
// the reference to payment-intent mapping from the sessions it created.
type StripeProvider struct {
	api    stripeClients
	clock  func() time.Time
	logger StripeLogger

	mu      sync.Mutex
	intents map[string]string
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
			intents:  sc.PaymentIntents,
		}
	}

	if clients.sessions == nil || clients.intents == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api: clients,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:  logger,
		intents: make(map[string]string),
	}, nil
}

// Initialize creates a Stripe Checkout session for the handoff.
func (p *StripeProvider) Initialize(ctx context.Context, req HandoffRequest) (Handoff, error) {
	if p == nil {
		return Handoff{}, errors.New("stripe: provider is nil")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return Handoff{}, errors.New("stripe: reference is required")
	}
	if req.Amount <= 0 {
		return Handoff{}, errors.New("stripe: amount must be positive")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(reference),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(itemName(req.Metadata)),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(reference)
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["reference"] = reference
	params.Metadata = metadata
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: metadata,
	}

	session, err := p.api.sessions.New(params)
	if err != nil {
		return Handoff{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}
	if intentID != "" {
		p.mu.Lock()
		p.intents[reference] = intentID
		p.mu.Unlock()
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"reference":     reference,
		"sessionId":     session.ID,
		"paymentIntent": intentID,
	})

	expiresAt := p.clock().Add(30 * time.Minute)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}

	return Handoff{
		Reference:        reference,
		Provider:         "stripe",
		AuthorizationURL: session.URL,
		AccessCode:       session.ClientSecret,
		ExpiresAt:        expiresAt,
	}, nil
}

// Verify retrieves the payment intent recorded for the reference.
func (p *StripeProvider) Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("stripe: provider is nil")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return PaymentDetails{}, errors.New("stripe: reference is required")
	}

	p.mu.Lock()
	intentID, ok := p.intents[reference]
	p.mu.Unlock()
	if !ok {
		return PaymentDetails{}, fmt.Errorf("stripe: unknown reference %q", reference)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.api.intents.Get(intentID, params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}

	details := stripePaymentDetails(reference, intent)
	p.logger(ctx, "payments.stripe.verified", map[string]any{
		"reference":     reference,
		"paymentIntent": intentID,
		"status":        string(details.Status),
	})
	return details, nil
}

func stripePaymentDetails(reference string, intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{Provider: "stripe", Reference: reference}
	}

	status := StatusPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = StatusCancelled
	}

	var paidAt *time.Time
	if charge := intent.LatestCharge; charge != nil && (charge.Paid || charge.Captured) {
		t := time.Unix(charge.Created, 0).UTC()
		paidAt = &t
	}

	currency := strings.ToUpper(string(intent.Currency))
	if currency == "" && intent.LatestCharge != nil {
		currency = strings.ToUpper(string(intent.LatestCharge.Currency))
	}

	raw := map[string]any{}
	if data, err := json.Marshal(intent); err == nil {
		_ = json.Unmarshal(data, &raw)
	}

	return PaymentDetails{
		Provider:  "stripe",
		Reference: reference,
		Status:    status,
		Amount:    intent.Amount,
		Currency:  currency,
		PaidAt:    paidAt,
		Raw:       raw,
	}
}

func itemName(metadata map[string]string) string {
	if name := strings.TrimSpace(metadata["vehicle"]); name != "" {
		return name
	}
	return "Vehicle purchase"
}
