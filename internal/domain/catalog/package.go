package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/serviceloop/service-booking/internal/domain"
)

// CategoryDefault is the fallback package set offered when a provider's
// category has no bespoke packages of its own.
const CategoryDefault = "default"

// PackageStatus represents the lifecycle state of a service package.
type PackageStatus string

const (
	PackageStatusActive   PackageStatus = "active"
	PackageStatusArchived PackageStatus = "archived"
)

// ServicePackage is a named service tier with a fixed price, offered within
// exactly one category. Price and scope are immutable once the package has
// been offered; corrections are made by archiving and re-offering.
type ServicePackage struct {
	id          uuid.UUID
	category    string
	slug        string
	name        string
	description string
	priceCents  int64
	status      PackageStatus
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewServicePackage creates a new active service package with validated fields.
func NewServicePackage(category, slug, name, description string, priceCents int64) (*ServicePackage, error) {
	if category == "" {
		return nil, domain.NewValidationError("category", "category is required")
	}
	if slug == "" {
		return nil, domain.NewValidationError("slug", "slug is required")
	}
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}
	if priceCents < 0 {
		return nil, domain.NewValidationError("price_cents", "price must not be negative")
	}

	now := time.Now().UTC()
	return &ServicePackage{
		id:          uuid.New(),
		category:    category,
		slug:        slug,
		name:        name,
		description: description,
		priceCents:  priceCents,
		status:      PackageStatusActive,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructServicePackage rebuilds a ServicePackage from persistence data (no validation).
func ReconstructServicePackage(
	id uuid.UUID,
	category, slug, name, description string,
	priceCents int64,
	status PackageStatus,
	version int64,
	createdAt, updatedAt time.Time,
) *ServicePackage {
	return &ServicePackage{
		id:          id,
		category:    category,
		slug:        slug,
		name:        name,
		description: description,
		priceCents:  priceCents,
		status:      status,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

func (p *ServicePackage) ID() uuid.UUID         { return p.id }
func (p *ServicePackage) Category() string      { return p.category }
func (p *ServicePackage) Slug() string          { return p.slug }
func (p *ServicePackage) Name() string          { return p.name }
func (p *ServicePackage) Description() string   { return p.description }
func (p *ServicePackage) PriceCents() int64     { return p.priceCents }
func (p *ServicePackage) Status() PackageStatus { return p.status }
func (p *ServicePackage) Version() int64        { return p.version }
func (p *ServicePackage) CreatedAt() time.Time  { return p.createdAt }
func (p *ServicePackage) UpdatedAt() time.Time  { return p.updatedAt }

// IsActive returns true if the package is currently offered.
func (p *ServicePackage) IsActive() bool {
	return p.status == PackageStatusActive
}

// OfferedTo returns true if the package may be booked against a provider in
// the given category, either directly or through the default fallback set.
func (p *ServicePackage) OfferedTo(category string) bool {
	return p.category == category || p.category == CategoryDefault
}

// UpdateDescription amends the human-readable copy of the package. Name,
// price and category stay fixed once offered.
func (p *ServicePackage) UpdateDescription(description string) {
	if description != "" {
		p.description = description
	}
	p.version++
	p.updatedAt = time.Now().UTC()
}

// Archive withdraws the package from the catalog without deleting it.
func (p *ServicePackage) Archive() {
	p.status = PackageStatusArchived
	p.version++
	p.updatedAt = time.Now().UTC()
}
