package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting buyer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the payment as captured.
	StatusSucceeded Status = "succeeded"
	// StatusCancelled indicates the buyer dismissed the gateway without paying.
	StatusCancelled Status = "cancelled"
	// StatusFailed indicates the gateway reports a failure and no further action is possible.
	StatusFailed Status = "failed"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// HandoffRequest captures the payload handed to the external gateway when
// initiating a payment. Amount is already in the gateway's minor currency
// unit; the conversion happens exactly once, in MinorUnits.
type HandoffRequest struct {
	Reference  string
	Email      string
	Amount     int64
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Handoff represents the gateway session returned to the client for redirect.
type Handoff struct {
	Reference        string
	Provider         string
	AuthorizationURL string
	AccessCode       string
	PublicKey        string
	ExpiresAt        time.Time
}

// VerifyRequest asks a provider to confirm the terminal state of an attempt.
type VerifyRequest struct {
	Reference string
}

// PaymentDetails normalises gateway-specific fields for reconciliation.
type PaymentDetails struct {
	Provider  string
	Reference string
	Status    Status
	Amount    int64
	Currency  string
	PaidAt    *time.Time
	Raw       map[string]any
}

// Provider defines the contract gateway adapters implement.
type Provider interface {
	Initialize(ctx context.Context, req HandoffRequest) (Handoff, error)
	Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error)
}

// NewReference mints a fresh attempt reference. ULIDs are monotonically
// distinct, so the gateway and the backend can de-duplicate on them; a
// reference is never reused across attempts.
func NewReference() string {
	return "pay_" + ulid.Make().String()
}

// MinorUnits converts a quote total to the gateway's minor currency unit.
// Callers must apply this exactly once per handoff.
func MinorUnits(total int64) int64 {
	return total * 100
}

// PaymentContext defines the hints available when selecting a provider.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

// Manager coordinates provider selection and exposes the aggregated interface.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the provider used when no preference is given.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = strings.TrimSpace(strings.ToLower(provider))
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers: copyMap,
	}
	if _, ok := copyMap["paystack"]; ok {
		m.defaultProvider = "paystack"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) resolveProvider(ctx PaymentContext) (string, Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if provider := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); provider != "" {
		if p, ok := m.providers[provider]; ok {
			return provider, p, nil
		}
	}
	if def := m.defaultProvider; def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// Initialize delegates to the resolved provider.
func (m *Manager) Initialize(ctx context.Context, paymentCtx PaymentContext, req HandoffRequest) (Handoff, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Handoff{}, err
	}
	handoff, err := provider.Initialize(ctx, req)
	if err != nil {
		return Handoff{}, err
	}
	handoff.Provider = key
	return handoff, nil
}

// Verify delegates to the resolved provider.
func (m *Manager) Verify(ctx context.Context, paymentCtx PaymentContext, req VerifyRequest) (PaymentDetails, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := provider.Verify(ctx, req)
	if err != nil {
		return PaymentDetails{}, err
	}
	if details.Provider == "" {
		details.Provider = key
	}
	return details, nil
}
