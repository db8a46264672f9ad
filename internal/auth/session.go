package auth

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
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultTimeout = 10 * time.Second
	// fallbackTTL bounds sessions whose tokens carry no exp claim.
	fallbackTTL = 24 * time.Hour
)

var (
	// ErrInvalidCredentials is returned when the auth API rejects the login.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrSessionExpired is returned when an operation requires a live session
	// and the current one has lapsed.
	ErrSessionExpired = errors.New("auth: session expired")
)

// Session is an authenticated login result.
type Session struct {
	Token     string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the session has lapsed as of now.
func (s Session) Expired(now time.Time) bool {
	if s.Token == "" {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ClientDeps wires the dependencies required by the auth client.
type ClientDeps struct {
	BaseURL string
	HTTP    *http.Client
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// Client authenticates against the backend and tracks the current session.
type Client struct {
	baseURL string
	http    *http.Client
	clock   func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)

	mu      sync.RWMutex
	session Session
}

// NewClient constructs an auth client for the given base URL.
func NewClient(deps ClientDeps) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("auth: base url is required")
	}
	httpClient := deps.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// Login exchanges credentials for a bearer token at POST /auth/login and
// records the resulting session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	endpoint, err := url.JoinPath(c.baseURL, "auth", "login")
	if err != nil {
		return Session{}, fmt.Errorf("auth: build url: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return Session{}, fmt.Errorf("auth: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("auth: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("auth: login: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("auth: read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Session{}, ErrInvalidCredentials
	}
	if resp.StatusCode >= 400 {
		return Session{}, fmt.Errorf("auth: login: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Session{}, fmt.Errorf("auth: decode response: %w", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return Session{}, errors.New("auth: login response missing token")
	}

	session := Session{
		Token:     payload.Token,
		Email:     email,
		ExpiresAt: tokenExpiry(payload.Token, c.clock().Add(fallbackTTL)),
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.logger(ctx, "auth.logged_in", map[string]any{
		"email":     email,
		"expiresAt": session.ExpiresAt.Format(time.RFC3339),
	})
	return session, nil
}

// Session returns the current session, if any.
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Token returns the current bearer token, empty when the session has lapsed.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.Expired(c.clock()) {
		return ""
	}
	return c.session.Token
}

// Logout discards the current session.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	email := c.session.Email
	c.session = Session{}
	c.mu.Unlock()
	c.logger(ctx, "auth.logged_out", map[string]any{"email": email})
}

// tokenExpiry extracts the exp claim without verifying the signature. The
// backend owns verification; the client only needs the expiry for local
// session bookkeeping.
func tokenExpiry(token string, fallback time.Time) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fallback
	}
	switch exp := claims["exp"].(type) {
	case float64:
		if exp > 0 {
			return time.Unix(int64(exp), 0).UTC()
		}
	case json.Number:
		if v, err := exp.Int64(); err == nil && v > 0 {
			return time.Unix(v, 0).UTC()
		}
	}
	return fallback
}
