package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jk-autos/storefront/internal/catalog"
	"github.com/jk-autos/storefront/internal/domain"
	"github.com/jk-autos/storefront/internal/format"
	"github.com/jk-autos/storefront/internal/platform/httpx"
)

// CatalogReader is the slice of the catalog store the handlers need.
type CatalogReader interface {
	Query(q domain.CatalogQuery) []domain.Vehicle
	View(ctx context.Context, id string) (*catalog.View, error)
	Brands() []string
	Years() []int
	Transmissions() []string
}

// CatalogHandlers exposes the read-only vehicle listing endpoints.
type CatalogHandlers struct {
	store    CatalogReader
	currency string
}

// NewCatalogHandlers constructs handlers over the catalog store.
func NewCatalogHandlers(store CatalogReader, currency string) *CatalogHandlers {
	return &CatalogHandlers{
		store:    store,
		currency: currency,
	}
}

// Routes wires the /cars endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCars)
	r.Get("/filters", h.listFilters)
	r.Get("/{carID}", h.getCar)
	r.Get("/{carID}/images", h.getImage)
}

type vehiclePayload struct {
	ID           string   `json:"id"`
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	Price        int64    `json:"price"`
	PriceDisplay string   `json:"priceDisplay"`
	Year         int      `json:"year"`
	Mileage      string   `json:"mileage,omitempty"`
	FuelType     string   `json:"fuelType,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	Engine       string   `json:"engine,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	Description  string   `json:"description,omitempty"`
	Images       []string `json:"images,omitempty"`
	Features     []string `json:"features,omitempty"`
}

type quotePayload struct {
	Base            int64  `json:"base"`
	Tax             int64  `json:"tax"`
	DeliveryFee     int64  `json:"deliveryFee"`
	Total           int64  `json:"total"`
	TotalDisplay    string `json:"totalDisplay"`
	BaseDisplay     string `json:"baseDisplay"`
	TaxDisplay      string `json:"taxDisplay"`
	DeliveryDisplay string `json:"deliveryDisplay"`
}

func (h *CatalogHandlers) listCars(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	query, err := parseCatalogQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	vehicles := h.store.Query(query)
	items := make([]vehiclePayload, 0, len(vehicles))
	for _, v := range vehicles {
		items = append(items, h.buildVehiclePayload(v))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"cars":  items,
		"count": len(items),
	})
}

func (h *CatalogHandlers) getCar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	view, err := h.store.View(ctx, chi.URLParam(r, "carID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	quote := domain.QuoteFor(view.Vehicle.Price)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"car":   h.buildVehiclePayload(view.Vehicle),
		"quote": h.buildQuotePayload(quote),
	})
}

// getImage answers the detail page's gallery cursor: given the current index
// and a move of next, prev, or an explicit seek, it returns the new position.
func (h *CatalogHandlers) getImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	view, err := h.store.View(ctx, chi.URLParam(r, "carID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	gallery := view.Gallery
	if raw := strings.TrimSpace(r.URL.Query().Get("index")); raw != "" {
		index, convErr := strconv.Atoi(raw)
		if convErr != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "index must be an integer", http.StatusBadRequest))
			return
		}
		gallery.Seek(index)
	}

	switch move := strings.TrimSpace(r.URL.Query().Get("move")); move {
	case "", "none":
	case "next":
		gallery.Next()
	case "prev":
		gallery.Prev()
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "move must be next, prev, or none", http.StatusBadRequest))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"index": gallery.Index(),
		"image": gallery.Current(),
		"count": gallery.Len(),
	})
}

func (h *CatalogHandlers) listFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"brands":        h.store.Brands(),
		"years":         h.store.Years(),
		"transmissions": h.store.Transmissions(),
		"priceBrackets": []string{
			string(domain.BracketUnder50k),
			string(domain.Bracket50kTo100k),
			string(domain.Bracket100kTo150k),
			string(domain.BracketOver150k),
		},
		"sorts": []string{
			string(domain.SortBrand),
			string(domain.SortPriceAsc),
			string(domain.SortPriceDesc),
			string(domain.SortYearDesc),
			string(domain.SortYearAsc),
		},
	})
}

func parseCatalogQuery(r *http.Request) (domain.CatalogQuery, error) {
	params := r.URL.Query()
	query := domain.CatalogQuery{
		Search:       strings.TrimSpace(params.Get("search")),
		Brand:        strings.TrimSpace(params.Get("brand")),
		Transmission: strings.TrimSpace(params.Get("transmission")),
		Bracket:      domain.PriceBracket(strings.TrimSpace(params.Get("price"))),
		Sort:         domain.SortKey(strings.TrimSpace(params.Get("sort"))),
	}
	if raw := strings.TrimSpace(params.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return domain.CatalogQuery{}, errors.New("year must be an integer")
		}
		query.Year = year
	}
	return query, nil
}

func (h *CatalogHandlers) buildVehiclePayload(v domain.Vehicle) vehiclePayload {
	return vehiclePayload{
		ID:           v.ID,
		Brand:        v.Brand,
		Model:        v.Model,
		Price:        v.Price,
		PriceDisplay: format.Amount(v.Price, h.currency),
		Year:         v.Year,
		Mileage:      v.Mileage,
		FuelType:     v.FuelType,
		Transmission: v.Transmission,
		Engine:       v.Engine,
		Condition:    v.Condition,
		Description:  v.Description,
		Images:       v.Images,
		Features:     v.Features,
	}
}

func (h *CatalogHandlers) buildQuotePayload(q domain.Quote) quotePayload {
	return quotePayload{
		Base:            q.Base,
		Tax:             q.Tax,
		DeliveryFee:     q.Delivery,
		Total:           q.Total,
		BaseDisplay:     format.Amount(q.Base, h.currency),
		TaxDisplay:      format.Amount(q.Tax, h.currency),
		DeliveryDisplay: format.Amount(q.Delivery, h.currency),
		TotalDisplay:    format.Amount(q.Total, h.currency),
	}
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("vehicle_not_found", "vehicle not found", http.StatusNotFound))
	case errors.Is(err, catalog.ErrFetch):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
