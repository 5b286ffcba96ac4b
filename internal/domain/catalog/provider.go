package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Provider is the catalog's view of a service provider. The booking core
// treats it as read-only: it copies MinimumCostCents and Category at booking
// creation time and never reads them back afterwards, so later catalog
// changes cannot retroactively alter an existing booking.
type Provider struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Title            string    `json:"title,omitempty"`
	Category         string    `json:"category"`
	MinimumCostCents int64     `json:"minimum_cost_cents"`
	Specialties      []string  `json:"specialties,omitempty"`
	Verified         bool      `json:"verified"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
