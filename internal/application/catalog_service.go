package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/serviceloop/service-booking/internal/domain"
	"github.com/serviceloop/service-booking/internal/domain/catalog"
)

const providerCacheTTL = 5 * time.Minute

// PackageDTO is the response representation of a service package.
type PackageDTO struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// PortfolioItemDTO is the response representation of a portfolio item.
type PortfolioItemDTO struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Title      string    `json:"title"`
	ImageURL   string    `json:"image_url"`
	Caption    string    `json:"caption,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreatePackageRequest holds the data for a provider-offered package.
type CreatePackageRequest struct {
	Slug        string `json:"slug" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
}

// AddPortfolioItemRequest holds the data for a new portfolio entry.
type AddPortfolioItemRequest struct {
	Title    string `json:"title" binding:"required"`
	ImageURL string `json:"image_url" binding:"required"`
	Caption  string `json:"caption"`
}

// CatalogService serves the provider catalog: provider profiles, the
// category-keyed package table with its default fallback set, and provider
// portfolios. Provider lookups go through a Redis read-through cache since
// every booking creation reads the provider's fee.
type CatalogService struct {
	providers catalog.ProviderRepository
	packages  catalog.PackageRepository
	portfolio catalog.PortfolioRepository
	cache     *redis.Client
	logger    *zap.Logger
}

// NewCatalogService creates a new CatalogService. A nil cache disables
// caching, which is useful in tests.
func NewCatalogService(
	providers catalog.ProviderRepository,
	packages catalog.PackageRepository,
	portfolio catalog.PortfolioRepository,
	cache *redis.Client,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		providers: providers,
		packages:  packages,
		portfolio: portfolio,
		cache:     cache,
		logger:    logger,
	}
}

func providerCacheKey(id uuid.UUID) string {
	return "catalog:provider:" + id.String()
}

// GetProvider retrieves a provider profile, preferring the cache.
func (s *CatalogService) GetProvider(ctx context.Context, id uuid.UUID) (*catalog.Provider, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, providerCacheKey(id)).Bytes()
		if err == nil {
			var provider catalog.Provider
			if err := json.Unmarshal(raw, &provider); err == nil {
				return &provider, nil
			}
		}
	}

	provider, err := s.providers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(provider); err == nil {
			if err := s.cache.Set(ctx, providerCacheKey(id), raw, providerCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache provider", zap.String("provider_id", id.String()), zap.Error(err))
			}
		}
	}
	return provider, nil
}

// InvalidateProvider drops a provider's cache entry after a catalog change.
func (s *CatalogService) InvalidateProvider(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, providerCacheKey(id)).Err(); err != nil {
		s.logger.Warn("failed to invalidate provider cache", zap.String("provider_id", id.String()), zap.Error(err))
	}
}

// GetPackage retrieves a single service package.
func (s *CatalogService) GetPackage(ctx context.Context, id uuid.UUID) (*catalog.ServicePackage, error) {
	return s.packages.FindByID(ctx, id)
}

// GetPackagesForCategory returns the active packages offered in a category,
// falling back to the default set when the category has none of its own.
func (s *CatalogService) GetPackagesForCategory(ctx context.Context, category string) ([]PackageDTO, error) {
	pkgs, err := s.packages.FindActiveByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 && category != catalog.CategoryDefault {
		pkgs, err = s.packages.FindActiveByCategory(ctx, catalog.CategoryDefault)
		if err != nil {
			return nil, err
		}
	}

	dtos := make([]PackageDTO, len(pkgs))
	for i, pkg := range pkgs {
		dtos[i] = toPackageDTO(pkg)
	}
	return dtos, nil
}

// GetProviderProfile returns a provider together with the packages bookable
// against it.
func (s *CatalogService) GetProviderProfile(ctx context.Context, id uuid.UUID) (*catalog.Provider, []PackageDTO, error) {
	provider, err := s.GetProvider(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	packages, err := s.GetPackagesForCategory(ctx, provider.Category)
	if err != nil {
		return nil, nil, err
	}
	return provider, packages, nil
}

// CreatePackage offers a new package in the provider's own category.
func (s *CatalogService) CreatePackage(ctx context.Context, providerID uuid.UUID, req CreatePackageRequest) (*PackageDTO, error) {
	provider, err := s.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	pkg, err := catalog.NewServicePackage(provider.Category, req.Slug, req.Name, req.Description, req.PriceCents)
	if err != nil {
		return nil, err
	}

	if err := s.packages.Save(ctx, pkg); err != nil {
		return nil, err
	}

	dto := toPackageDTO(pkg)
	return &dto, nil
}

// ArchivePackage withdraws a package from the provider's category.
func (s *CatalogService) ArchivePackage(ctx context.Context, providerID, packageID uuid.UUID) (*PackageDTO, error) {
	provider, err := s.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	pkg, err := s.packages.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.Category() != provider.Category {
		return nil, domain.NewForbiddenError("package is not offered in this provider's category")
	}

	pkg.Archive()
	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}

	dto := toPackageDTO(pkg)
	return &dto, nil
}

// AddPortfolioItem adds a work sample to the provider's profile.
func (s *CatalogService) AddPortfolioItem(ctx context.Context, providerID uuid.UUID, req AddPortfolioItemRequest) (*PortfolioItemDTO, error) {
	if _, err := s.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	item, err := catalog.NewPortfolioItem(providerID, req.Title, req.ImageURL, req.Caption)
	if err != nil {
		return nil, err
	}

	if err := s.portfolio.Save(ctx, item); err != nil {
		return nil, err
	}

	dto := toPortfolioItemDTO(item)
	return &dto, nil
}

// GetPortfolio lists a provider's portfolio items.
func (s *CatalogService) GetPortfolio(ctx context.Context, providerID uuid.UUID) ([]PortfolioItemDTO, error) {
	items, err := s.portfolio.FindByProviderID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	dtos := make([]PortfolioItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toPortfolioItemDTO(item)
	}
	return dtos, nil
}

func toPackageDTO(pkg *catalog.ServicePackage) PackageDTO {
	return PackageDTO{
		ID:          pkg.ID(),
		Category:    pkg.Category(),
		Slug:        pkg.Slug(),
		Name:        pkg.Name(),
		Description: pkg.Description(),
		PriceCents:  pkg.PriceCents(),
		Status:      string(pkg.Status()),
		CreatedAt:   pkg.CreatedAt(),
	}
}

func toPortfolioItemDTO(item *catalog.PortfolioItem) PortfolioItemDTO {
	return PortfolioItemDTO{
		ID:         item.ID(),
		ProviderID: item.ProviderID(),
		Title:      item.Title(),
		ImageURL:   item.ImageURL(),
		Caption:    item.Caption(),
		CreatedAt:  item.CreatedAt(),
	}
}
