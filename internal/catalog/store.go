package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jk-autos/storefront/internal/domain"
)

// Lister abstracts the remote catalog read API for easier testing.
type Lister interface {
	List(ctx context.Context) ([]domain.Vehicle, error)
	Get(ctx context.Context, id string) (domain.Vehicle, error)
}

// StoreDeps wires the dependencies required by the catalog store.
type StoreDeps struct {
	Client Lister
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// Store caches the remote vehicle list and answers pure queries over it.
// The cache is the only shared state and is guarded by the mutex; a failed
// reload keeps whatever was cached before.
type Store struct {
	client Lister
	clock  func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)

	mu       sync.RWMutex
	vehicles []domain.Vehicle
	loadedAt time.Time
}

// NewStore constructs a Store validating required dependencies.
func NewStore(deps StoreDeps) (*Store, error) {
	if deps.Client == nil {
		return nil, errors.New("catalog store: client is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Store{
		client: deps.Client,
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Load fetches the full vehicle list and swaps the cache. On failure the
// previous cache (or empty, if none) is retained and ErrFetch is returned.
func (s *Store) Load(ctx context.Context) error {
	vehicles, err := s.client.List(ctx)
	if err != nil {
		s.logger(ctx, "catalog.load_failed", map[string]any{
			"error":  err.Error(),
			"cached": s.Size(),
		})
		return err
	}

	s.mu.Lock()
	s.vehicles = vehicles
	s.loadedAt = s.clock()
	s.mu.Unlock()

	s.logger(ctx, "catalog.loaded", map[string]any{"count": len(vehicles)})
	return nil
}

// Size returns the number of cached vehicles.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles)
}

// LoadedAt returns when the cache was last refreshed, zero if never.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Query filters and sorts the cached list. Pure and synchronous: the result
// is a fresh slice, and the cache is never mutated.
func (s *Store) Query(q domain.CatalogQuery) []domain.Vehicle {
	s.mu.RLock()
	cached := s.vehicles
	s.mu.RUnlock()

	filtered := make([]domain.Vehicle, 0, len(cached))
	for _, v := range cached {
		if matches(v, q) {
			filtered = append(filtered, v)
		}
	}

	sortVehicles(filtered, q.Sort)
	return filtered
}

// Resolve returns the vehicle with the given id, preferring the cache and
// falling back to the remote detail endpoint for ids not yet cached.
func (s *Store) Resolve(ctx context.Context, id string) (domain.Vehicle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Vehicle{}, ErrNotFound
	}

	s.mu.RLock()
	for _, v := range s.vehicles {
		if v.ID == id {
			s.mu.RUnlock()
			return v, nil
		}
	}
	s.mu.RUnlock()

	return s.client.Get(ctx, id)
}

// Brands lists the distinct brands in the cache, ascending.
func (s *Store) Brands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinctStrings(s.vehicles, func(v domain.Vehicle) string { return v.Brand })
}

// Transmissions lists the distinct transmission kinds in the cache, ascending.
func (s *Store) Transmissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinctStrings(s.vehicles, func(v domain.Vehicle) string { return v.Transmission })
}

// Years lists the distinct model years in the cache, newest first.
func (s *Store) Years() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int]struct{}, len(s.vehicles))
	var years []int
	for _, v := range s.vehicles {
		if v.Year == 0 {
			continue
		}
		if _, ok := seen[v.Year]; ok {
			continue
		}
		seen[v.Year] = struct{}{}
		years = append(years, v.Year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

func matches(v domain.Vehicle, q domain.CatalogQuery) bool {
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		if !strings.Contains(strings.ToLower(v.Brand), search) &&
			!strings.Contains(strings.ToLower(v.Model), search) &&
			!strings.Contains(strings.ToLower(v.Description), search) {
			return false
		}
	}
	if q.Brand != "" && v.Brand != q.Brand {
		return false
	}
	if q.Year != 0 && v.Year != q.Year {
		return false
	}
	if q.Transmission != "" && v.Transmission != q.Transmission {
		return false
	}
	return q.Bracket.Contains(v.Price)
}

// sortVehicles orders the slice by the requested key with brand as the
// tie-break; the stable sort preserves filtered order for full ties.
func sortVehicles(vehicles []domain.Vehicle, key domain.SortKey) {
	less := func(a, b domain.Vehicle) int {
		switch key {
		case domain.SortPriceAsc:
			return compareInt64(a.Price, b.Price)
		case domain.SortPriceDesc:
			return compareInt64(b.Price, a.Price)
		case domain.SortYearDesc:
			return b.Year - a.Year
		case domain.SortYearAsc:
			return a.Year - b.Year
		default:
			return 0
		}
	}
	sort.SliceStable(vehicles, func(i, j int) bool {
		if c := less(vehicles[i], vehicles[j]); c != 0 {
			return c < 0
		}
		return strings.ToLower(vehicles[i].Brand) < strings.ToLower(vehicles[j].Brand)
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func distinctStrings(vehicles []domain.Vehicle, pick func(domain.Vehicle) string) []string {
	seen := make(map[string]struct{}, len(vehicles))
	var values []string
	for _, v := range vehicles {
		value := strings.TrimSpace(pick(v))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
