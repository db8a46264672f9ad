package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultClientTimeout  = 10 * time.Second
	defaultGatewayBaseURL = "https://api.paystack.co"
	defaultProvider       = "paystack"
	defaultCurrency       = "NGN"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	Orders  OrdersConfig
	Auth    AuthConfig
	Gateway GatewayConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CatalogConfig locates the remote vehicle catalog API.
type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

// OrdersConfig locates the remote inspection/purchase write API.
type OrdersConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AuthConfig locates the remote authentication endpoint.
type AuthConfig struct {
	BaseURL string
	Timeout time.Duration
}

// GatewayConfig collects payment gateway settings and secrets.
type GatewayConfig struct {
	DefaultProvider   string
	Currency          string
	PaystackBaseURL   string
	PaystackPublicKey string
	PaystackSecretKey string
	StripeAPIKey      string
	SuccessURL        string
	CancelURL         string
}

// SecretResolver resolves references to external secrets (e.g. secret:// URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	sorted := append([]string(nil), e.fields...)
	sort.Strings(sorted)
	return fmt.Sprintf("config: missing or invalid fields: %s", strings.Join(sorted, ", "))
}

// Fields lists the offending configuration fields.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError wraps failures while resolving secret references.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: failed to resolve secret %s: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret resolver lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "STOREFRONT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Catalog: CatalogConfig{
			BaseURL: stringWithDefault(lookup, "STOREFRONT_CATALOG_BASE_URL", ""),
			Timeout: durationWithDefault(lookup, "STOREFRONT_CATALOG_TIMEOUT", defaultClientTimeout),
		},
		Orders: OrdersConfig{
			BaseURL: stringWithDefault(lookup, "STOREFRONT_ORDERS_BASE_URL", ""),
			Timeout: durationWithDefault(lookup, "STOREFRONT_ORDERS_TIMEOUT", defaultClientTimeout),
		},
		Auth: AuthConfig{
			BaseURL: stringWithDefault(lookup, "STOREFRONT_AUTH_BASE_URL", ""),
			Timeout: durationWithDefault(lookup, "STOREFRONT_AUTH_TIMEOUT", defaultClientTimeout),
		},
		Gateway: GatewayConfig{
			DefaultProvider:   strings.ToLower(stringWithDefault(lookup, "STOREFRONT_GATEWAY_PROVIDER", defaultProvider)),
			Currency:          strings.ToUpper(stringWithDefault(lookup, "STOREFRONT_GATEWAY_CURRENCY", defaultCurrency)),
			PaystackBaseURL:   stringWithDefault(lookup, "STOREFRONT_PAYSTACK_BASE_URL", defaultGatewayBaseURL),
			PaystackPublicKey: stringWithDefault(lookup, "STOREFRONT_PAYSTACK_PUBLIC_KEY", ""),
			PaystackSecretKey: stringWithDefault(lookup, "STOREFRONT_PAYSTACK_SECRET_KEY", ""),
			StripeAPIKey:      stringWithDefault(lookup, "STOREFRONT_STRIPE_API_KEY", ""),
			SuccessURL:        stringWithDefault(lookup, "STOREFRONT_GATEWAY_SUCCESS_URL", ""),
			CancelURL:         stringWithDefault(lookup, "STOREFRONT_GATEWAY_CANCEL_URL", ""),
		},
	}

	if cfg.Gateway.PaystackSecretKey, err = resolveSecret(ctx, cfg.Gateway.PaystackSecretKey, options.secret); err != nil {
		return Config{}, err
	}
	if cfg.Gateway.StripeAPIKey, err = resolveSecret(ctx, cfg.Gateway.StripeAPIKey, options.secret); err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: value, Err: errSecretResolverNotConfigured}
	}
	ref := strings.TrimSpace(value)
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Catalog.BaseURL == "" {
		missing = append(missing, "Catalog.BaseURL")
	}
	if cfg.Orders.BaseURL == "" {
		missing = append(missing, "Orders.BaseURL")
	}
	switch cfg.Gateway.DefaultProvider {
	case "paystack":
		if cfg.Gateway.PaystackPublicKey == "" {
			missing = append(missing, "Gateway.PaystackPublicKey")
		}
		if cfg.Gateway.PaystackSecretKey == "" {
			missing = append(missing, "Gateway.PaystackSecretKey")
		}
	case "stripe":
		if cfg.Gateway.StripeAPIKey == "" {
			missing = append(missing, "Gateway.StripeAPIKey")
		}
	default:
		missing = append(missing, "Gateway.DefaultProvider")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "secret://")
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
