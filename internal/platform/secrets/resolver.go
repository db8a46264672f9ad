package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const defaultFilePath = ".secrets.local"

// ErrNotFound is returned when a reference has no entry in the secrets file.
var ErrNotFound = errors.New("secrets: not found")

// FileResolver resolves secret:// references from a local key=value file.
// Values are loaded once and cached for the process lifetime.
type FileResolver struct {
	path   string
	logger *zap.Logger

	once   sync.Once
	values map[string]string
	err    error
}

// Option customises the FileResolver.
type Option func(*FileResolver)

// WithPath overrides the secrets file location.
func WithPath(path string) Option {
	return func(r *FileResolver) {
		r.path = strings.TrimSpace(path)
	}
}

// WithLogger attaches a logger for load diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *FileResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewFileResolver builds a resolver over the given secrets file.
func NewFileResolver(opts ...Option) *FileResolver {
	r := &FileResolver{
		path:   defaultFilePath,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveSecret looks up a secret:// reference. The key is the path portion
// of the reference: secret://payments/paystack maps to the file entry
// "payments/paystack" (or the same key with the secret:// prefix).
func (r *FileResolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := canonicalKey(ref)
	if key == "" {
		return "", fmt.Errorf("secrets: invalid reference %q", ref)
	}

	r.load()
	if r.err != nil {
		return "", r.err
	}

	if value, ok := r.values[key]; ok {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

func canonicalKey(ref string) string {
	key := strings.TrimSpace(ref)
	key = strings.TrimPrefix(key, "secret://")
	return strings.Trim(key, "/")
}

func (r *FileResolver) load() {
	r.once.Do(func() {
		path := r.path
		if path == "" {
			r.values = map[string]string{}
			return
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}

		file, err := os.Open(absPath)
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("secrets: file missing; resolver is empty", zap.String("path", absPath))
			r.values = map[string]string{}
			return
		}
		if err != nil {
			r.err = fmt.Errorf("secrets: unable to open %s: %w", absPath, err)
			r.values = map[string]string{}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		values := make(map[string]string)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := canonicalKey(parts[0])
			value := strings.TrimSpace(parts[1])
			if key == "" {
				continue
			}
			values[key] = value
		}
		if err := scanner.Err(); err != nil {
			r.err = fmt.Errorf("secrets: failed reading %s: %w", absPath, err)
		}
		r.values = values
		r.logger.Debug("secrets: file loaded", zap.String("path", absPath), zap.Int("entries", len(values)))
	})
}
