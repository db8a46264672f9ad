package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jk-autos/storefront/internal/domain"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrFetch indicates the remote catalog was unreachable or unparseable.
	ErrFetch = errors.New("catalog: fetch failed")
	// ErrNotFound indicates the requested vehicle does not exist upstream.
	ErrNotFound = errors.New("catalog: vehicle not found")
)

// Client issues read calls against the remote vehicle catalog API.
type Client struct {
	baseURL  string
	http     *http.Client
	sanitize *bluemonday.Policy
}

// NewClient constructs a catalog API client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("catalog: base url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		sanitize: bluemonday.StrictPolicy(),
	}, nil
}

// List fetches the full vehicle list from GET /cars.
func (c *Client) List(ctx context.Context) ([]domain.Vehicle, error) {
	endpoint, err := url.JoinPath(c.baseURL, "cars")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload []vehiclePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode list: %v", ErrFetch, err)
	}

	vehicles := make([]domain.Vehicle, 0, len(payload))
	for _, p := range payload {
		vehicles = append(vehicles, c.toVehicle(p))
	}
	return vehicles, nil
}

// Get fetches a single vehicle from GET /cars/{id}.
func (c *Client) Get(ctx context.Context, id string) (domain.Vehicle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Vehicle{}, ErrNotFound
	}

	endpoint, err := url.JoinPath(c.baseURL, "cars", id)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return domain.Vehicle{}, err
	}

	var payload vehiclePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Vehicle{}, fmt.Errorf("%w: decode vehicle: %v", ErrFetch, err)
	}
	return c.toVehicle(payload), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetch, resp.StatusCode, drainError(resp.Body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return body, nil
}

// vehiclePayload tolerates the field aliases the remote catalog has shipped
// over time (_id vs id, images vs gallery, carModel vs name).
type vehiclePayload struct {
	MongoID      string   `json:"_id"`
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CarModel     string   `json:"carModel"`
	Brand        string   `json:"brand"`
	Price        int64    `json:"price"`
	Year         int      `json:"year"`
	Mileage      string   `json:"mileage"`
	FuelType     string   `json:"fuelType"`
	Transmission string   `json:"transmission"`
	Engine       string   `json:"engine"`
	Condition    string   `json:"condition"`
	Description  string   `json:"description"`
	Images       []string `json:"images"`
	Gallery      []string `json:"gallery"`
	Features     []string `json:"features"`
}

func (c *Client) toVehicle(p vehiclePayload) domain.Vehicle {
	id := strings.TrimSpace(p.MongoID)
	if id == "" {
		id = strings.TrimSpace(p.ID)
	}
	model := strings.TrimSpace(p.CarModel)
	if model == "" {
		model = strings.TrimSpace(p.Name)
	}
	images := p.Images
	if len(images) == 0 {
		images = p.Gallery
	}
	return domain.Vehicle{
		ID:           id,
		Brand:        strings.TrimSpace(p.Brand),
		Model:        model,
		Price:        p.Price,
		Year:         p.Year,
		Mileage:      strings.TrimSpace(p.Mileage),
		FuelType:     strings.TrimSpace(p.FuelType),
		Transmission: strings.TrimSpace(p.Transmission),
		Engine:       strings.TrimSpace(p.Engine),
		Condition:    strings.TrimSpace(p.Condition),
		Description:  strings.TrimSpace(c.sanitize.Sanitize(p.Description)),
		Images:       images,
		Features:     p.Features,
	}
}

func drainError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
