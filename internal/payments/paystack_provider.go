package payments

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
)

const (
	defaultPaystackBaseURL = "https://api.paystack.co"
	defaultPaystackTimeout = 15 * time.Second
)

// PaystackLogger defines the logging contract for Paystack provider operations.
type PaystackLogger func(ctx context.Context, event string, fields map[string]any)

// PaystackProviderConfig configures the PaystackProvider.
type PaystackProviderConfig struct {
	BaseURL   string
	SecretKey string
	PublicKey string
	HTTP      *http.Client
	Logger    PaystackLogger
	Clock     func() time.Time
}

// PaystackProvider implements the Provider interface against the Paystack
// transaction API.
type PaystackProvider struct {
	baseURL   string
	secretKey string
	publicKey string
	http      *http.Client
	logger    PaystackLogger
	clock     func() time.Time
}

// NewPaystackProvider constructs a Paystack Provider using the given configuration.
func NewPaystackProvider(cfg PaystackProviderConfig) (*PaystackProvider, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errors.New("paystack: secret key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultPaystackTimeout}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &PaystackProvider{
		baseURL:   baseURL,
		secretKey: secretKey,
		publicKey: strings.TrimSpace(cfg.PublicKey),
		http:      httpClient,
		logger:    logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Initialize creates a Paystack transaction and returns the authorization handoff.
func (p *PaystackProvider) Initialize(ctx context.Context, req HandoffRequest) (Handoff, error) {
	if p == nil {
		return Handoff{}, errors.New("paystack: provider is nil")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return Handoff{}, errors.New("paystack: reference is required")
	}
	if req.Amount <= 0 {
		return Handoff{}, errors.New("paystack: amount must be positive")
	}

	body := map[string]any{
		"reference": req.Reference,
		"email":     req.Email,
		"amount":    req.Amount,
	}
	if currency := strings.ToUpper(strings.TrimSpace(req.Currency)); currency != "" {
		body["currency"] = currency
	}
	if req.SuccessURL != "" {
		body["callback_url"] = req.SuccessURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	var payload struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := p.post(ctx, "/transaction/initialize", body, &payload); err != nil {
		return Handoff{}, err
	}
	if !payload.Status {
		return Handoff{}, fmt.Errorf("paystack: initialize rejected: %s", payload.Message)
	}

	p.logger(ctx, "payments.paystack.initialized", map[string]any{
		"reference":  payload.Data.Reference,
		"accessCode": payload.Data.AccessCode,
	})

	return Handoff{
		Reference:        payload.Data.Reference,
		Provider:         "paystack",
		AuthorizationURL: payload.Data.AuthorizationURL,
		AccessCode:       payload.Data.AccessCode,
		PublicKey:        p.publicKey,
		ExpiresAt:        p.clock().Add(30 * time.Minute),
	}, nil
}

// Verify confirms the terminal state of a transaction by reference.
func (p *PaystackProvider) Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("paystack: provider is nil")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return PaymentDetails{}, errors.New("paystack: reference is required")
	}

	var payload struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Status    string          `json:"status"`
			Reference string          `json:"reference"`
			Amount    int64           `json:"amount"`
			Currency  string          `json:"currency"`
			PaidAt    string          `json:"paid_at"`
			Raw       json.RawMessage `json:"-"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/transaction/verify/"+url.PathEscape(reference), &payload); err != nil {
		return PaymentDetails{}, err
	}
	if !payload.Status {
		return PaymentDetails{}, fmt.Errorf("paystack: verify rejected: %s", payload.Message)
	}

	details := PaymentDetails{
		Provider:  "paystack",
		Reference: payload.Data.Reference,
		Status:    paystackStatus(payload.Data.Status),
		Amount:    payload.Data.Amount,
		Currency:  strings.ToUpper(payload.Data.Currency),
	}
	if paidAt, err := time.Parse(time.RFC3339, payload.Data.PaidAt); err == nil {
		utc := paidAt.UTC()
		details.PaidAt = &utc
	}

	p.logger(ctx, "payments.paystack.verified", map[string]any{
		"reference": details.Reference,
		"status":    string(details.Status),
	})
	return details, nil
}

func paystackStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return StatusSucceeded
	case "abandoned":
		return StatusCancelled
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (p *PaystackProvider) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("paystack: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *PaystackProvider) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	return p.do(req, out)
}

func (p *PaystackProvider) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("paystack: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("paystack: decode response: %w", err)
	}
	return nil
}
