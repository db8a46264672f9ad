package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".x"
}

func TestLogin(t *testing.T) {
	exp := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	token := unsignedToken(t, map[string]any{"sub": "u-1", "exp": exp.Unix()})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["email"] != "ada@example.com" || req["password"] != "s3cret" {
			t.Fatalf("unexpected credentials %v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer server.Close()

	client, err := NewClient(ClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	session, err := client.Login(context.Background(), "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Token != token || session.Email != "ada@example.com" {
		t.Fatalf("unexpected session %+v", session)
	}
	if !session.ExpiresAt.Equal(exp) {
		t.Fatalf("expiry not taken from token: %v, want %v", session.ExpiresAt, exp)
	}

	if client.Token() != token {
		t.Fatal("live session must expose its token")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(ClientDeps{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Login(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := client.Login(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("blank credentials: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginFallbackExpiryWhenTokenHasNoExp(t *testing.T) {
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	token := unsignedToken(t, map[string]any{"sub": "u-1"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer server.Close()

	client, err := NewClient(ClientDeps{
		BaseURL: server.URL,
		Clock:   func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	session, err := client.Login(context.Background(), "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !session.ExpiresAt.Equal(now.Add(fallbackTTL)) {
		t.Fatalf("expected fallback expiry %v, got %v", now.Add(fallbackTTL), session.ExpiresAt)
	}
}

func TestTokenEmptyAfterExpiry(t *testing.T) {
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	token := unsignedToken(t, map[string]any{"exp": exp.Unix()})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer server.Close()

	client, err := NewClient(ClientDeps{
		BaseURL: server.URL,
		Clock:   func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Login(context.Background(), "ada@example.com", "s3cret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if client.Token() == "" {
		t.Fatal("token should be live before expiry")
	}

	now = exp.Add(time.Minute)
	if client.Token() != "" {
		t.Fatal("token must be empty once the session lapsed")
	}

	client.Logout(context.Background())
	if client.Session().Token != "" {
		t.Fatal("logout must discard the session")
	}
}

func TestTokenExpiryReadsExpClaim(t *testing.T) {
	fallback := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	exp := time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC)

	token := unsignedToken(t, map[string]any{"exp": exp.Unix()})
	if got := tokenExpiry(token, fallback); !got.Equal(exp) {
		t.Fatalf("expiry = %v, want %v", got, exp)
	}

	malformed := unsignedToken(t, map[string]any{"exp": "not-a-number"})
	if got := tokenExpiry(malformed, fallback); !got.Equal(fallback) {
		t.Fatalf("non-numeric exp must fall back, got %v", got)
	}

	if got := tokenExpiry("garbage", fallback); !got.Equal(fallback) {
		t.Fatalf("unparseable token must fall back, got %v", got)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now().UTC()
	if !(Session{}).Expired(now) {
		t.Fatal("zero session must be expired")
	}
	live := Session{Token: "t", ExpiresAt: now.Add(time.Hour)}
	if live.Expired(now) {
		t.Fatal("future expiry must be live")
	}
	if !(Session{Token: "t", ExpiresAt: now}).Expired(now) {
		t.Fatal("expiry at now must be expired")
	}
}
