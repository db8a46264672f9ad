package catalog

import (
	"context"

	"github.com/jk-autos/storefront/internal/domain"
)

// Gallery is a cursor over a vehicle's ordered image list with wraparound.
// For galleries of length <= 1 every movement is a no-op.
type Gallery struct {
	images []string
	cursor int
}

// NewGallery constructs a cursor positioned at the first image.
func NewGallery(images []string) *Gallery {
	return &Gallery{images: images}
}

// Len returns the number of images.
func (g *Gallery) Len() int { return len(g.images) }

// Index returns the current cursor position.
func (g *Gallery) Index() int { return g.cursor }

// Current returns the image at the cursor, empty for an empty gallery.
func (g *Gallery) Current() string {
	if len(g.images) == 0 {
		return ""
	}
	return g.images[g.cursor]
}

// Next advances the cursor with wraparound and returns the new index.
func (g *Gallery) Next() int {
	if len(g.images) <= 1 {
		return g.cursor
	}
	g.cursor = (g.cursor + 1) % len(g.images)
	return g.cursor
}

// Prev moves the cursor back with wraparound and returns the new index.
func (g *Gallery) Prev() int {
	if len(g.images) <= 1 {
		return g.cursor
	}
	g.cursor = (g.cursor - 1 + len(g.images)) % len(g.images)
	return g.cursor
}

// Seek jumps to the given index (thumbnail selection); out-of-range is a no-op.
func (g *Gallery) Seek(index int) int {
	if index >= 0 && index < len(g.images) {
		g.cursor = index
	}
	return g.cursor
}

// View pairs a resolved vehicle with a gallery cursor for the detail display.
type View struct {
	Vehicle domain.Vehicle
	Gallery *Gallery
}

// View resolves a vehicle by id and wraps it for detail display.
func (s *Store) View(ctx context.Context, id string) (*View, error) {
	vehicle, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{
		Vehicle: vehicle,
		Gallery: NewGallery(vehicle.Images),
	}, nil
}
