package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProviderRepository defines the persistence contract for provider profiles.
// The booking core only reads providers; Save exists for catalog seeding and
// administration.
type ProviderRepository interface {
	// FindByID retrieves a provider by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Provider, error)

	// Save persists a new or updated provider profile.
	Save(ctx context.Context, provider *Provider) error
}

// PackageRepository defines the persistence contract for service packages.
type PackageRepository interface {
	// FindByID retrieves a package by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*ServicePackage, error)

	// FindActiveByCategory retrieves all active packages offered in a category.
	FindActiveByCategory(ctx context.Context, category string) ([]*ServicePackage, error)

	// Save persists a new package.
	Save(ctx context.Context, pkg *ServicePackage) error

	// Update persists changes to an existing package with optimistic locking.
	Update(ctx context.Context, pkg *ServicePackage) error
}

// PortfolioRepository defines the persistence contract for portfolio items.
type PortfolioRepository interface {
	// FindByProviderID retrieves all portfolio items for a provider.
	FindByProviderID(ctx context.Context, providerID uuid.UUID) ([]*PortfolioItem, error)

	// Save persists a new portfolio item.
	Save(ctx context.Context, item *PortfolioItem) error
}
