package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serviceloop/service-booking/internal/domain"
	"github.com/serviceloop/service-booking/internal/domain/catalog"
)

// ProviderModel is the GORM model for the providers table.
type ProviderModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name             string    `gorm:"not null;size:200"`
	Title            string    `gorm:"size:200"`
	Category         string    `gorm:"not null;size:100;index"`
	MinimumCostCents int64     `gorm:"not null"`
	Specialties      []byte    `gorm:"type:jsonb"`
	Verified         bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ProviderModel) TableName() string {
	return "providers"
}

// ServicePackageModel is the GORM model for the service_packages table.
type ServicePackageModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Category    string    `gorm:"not null;size:100;index:idx_packages_category_status"`
	Slug        string    `gorm:"not null;size:100;uniqueIndex:idx_packages_category_slug,composite:category"`
	Name        string    `gorm:"not null;size:200"`
	Description string    `gorm:"size:2000"`
	PriceCents  int64     `gorm:"not null"`
	Status      string    `gorm:"not null;size:20;index:idx_packages_category_status"`
	Version     int64     `gorm:"not null;default:1"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ServicePackageModel) TableName() string {
	return "service_packages"
}

// PortfolioItemModel is the GORM model for the portfolio_items table.
type PortfolioItemModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID `gorm:"type:uuid;index;not null"`
	Title      string    `gorm:"not null;size:200"`
	ImageURL   string    `gorm:"not null;size:1000"`
	Caption    string    `gorm:"size:500"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (PortfolioItemModel) TableName() string {
	return "portfolio_items"
}

// GormProviderRepository is the GORM-based implementation of ProviderRepository.
type GormProviderRepository struct {
	db *gorm.DB
}

// NewGormProviderRepository creates a new GormProviderRepository.
func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

// FindByID retrieves a provider by its unique identifier.
func (r *GormProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Provider, error) {
	var model ProviderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("provider", id.String())
		}
		return nil, fmt.Errorf("failed to find provider by ID: %w", err)
	}
	return toDomainProvider(&model)
}

// Save persists a provider, inserting or replacing the full row.
func (r *GormProviderRepository) Save(ctx context.Context, p *catalog.Provider) error {
	model, err := toProviderModel(p)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	return nil
}

// GormPackageRepository is the GORM-based implementation of PackageRepository.
type GormPackageRepository struct {
	db *gorm.DB
}

// NewGormPackageRepository creates a new GormPackageRepository.
func NewGormPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

// FindByID retrieves a service package by its unique identifier.
func (r *GormPackageRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.ServicePackage, error) {
	var model ServicePackageModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("service package", id.String())
		}
		return nil, fmt.Errorf("failed to find package by ID: %w", err)
	}
	return toDomainPackage(&model), nil
}

// FindActiveByCategory retrieves the active packages offered in a category.
func (r *GormPackageRepository) FindActiveByCategory(ctx context.Context, category string) ([]*catalog.ServicePackage, error) {
	var models []ServicePackageModel
	if err := r.db.WithContext(ctx).
		Where("category = ? AND status = ?", category, string(catalog.PackageStatusActive)).
		Order("price_cents ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find packages by category: %w", err)
	}

	packages := make([]*catalog.ServicePackage, len(models))
	for i, m := range models {
		packages[i] = toDomainPackage(&m)
	}
	return packages, nil
}

// Save persists a new service package.
func (r *GormPackageRepository) Save(ctx context.Context, pkg *catalog.ServicePackage) error {
	if err := r.db.WithContext(ctx).Create(toPackageModel(pkg)).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError("a package with this slug already exists in the category")
		}
		return fmt.Errorf("failed to save package: %w", err)
	}
	return nil
}

// Update persists changes to a service package with optimistic locking.
func (r *GormPackageRepository) Update(ctx context.Context, pkg *catalog.ServicePackage) error {
	model := toPackageModel(pkg)
	result := r.db.WithContext(ctx).
		Model(&ServicePackageModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]interface{}{
			"description": model.Description,
			"status":      model.Status,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update package: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("package was modified by another transaction")
	}
	return nil
}

// GormPortfolioRepository is the GORM-based implementation of PortfolioRepository.
type GormPortfolioRepository struct {
	db *gorm.DB
}

// NewGormPortfolioRepository creates a new GormPortfolioRepository.
func NewGormPortfolioRepository(db *gorm.DB) *GormPortfolioRepository {
	return &GormPortfolioRepository{db: db}
}

// FindByProviderID retrieves a provider's portfolio items, newest first.
func (r *GormPortfolioRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID) ([]*catalog.PortfolioItem, error) {
	var models []PortfolioItemModel
	if err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find portfolio items: %w", err)
	}

	items := make([]*catalog.PortfolioItem, len(models))
	for i, m := range models {
		items[i] = catalog.ReconstructPortfolioItem(m.ID, m.ProviderID, m.Title, m.ImageURL, m.Caption, m.CreatedAt)
	}
	return items, nil
}

// Save persists a new portfolio item.
func (r *GormPortfolioRepository) Save(ctx context.Context, item *catalog.PortfolioItem) error {
	model := &PortfolioItemModel{
		ID:         item.ID(),
		ProviderID: item.ProviderID(),
		Title:      item.Title(),
		ImageURL:   item.ImageURL(),
		Caption:    item.Caption(),
		CreatedAt:  item.CreatedAt(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save portfolio item: %w", err)
	}
	return nil
}

// --- Conversion helpers ---

func toProviderModel(p *catalog.Provider) (*ProviderModel, error) {
	specialties, err := json.Marshal(p.Specialties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal specialties: %w", err)
	}
	return &ProviderModel{
		ID:               p.ID,
		Name:             p.Name,
		Title:            p.Title,
		Category:         p.Category,
		MinimumCostCents: p.MinimumCostCents,
		Specialties:      specialties,
		Verified:         p.Verified,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}

func toDomainProvider(m *ProviderModel) (*catalog.Provider, error) {
	var specialties []string
	if len(m.Specialties) > 0 {
		if err := json.Unmarshal(m.Specialties, &specialties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal specialties: %w", err)
		}
	}
	return &catalog.Provider{
		ID:               m.ID,
		Name:             m.Name,
		Title:            m.Title,
		Category:         m.Category,
		MinimumCostCents: m.MinimumCostCents,
		Specialties:      specialties,
		Verified:         m.Verified,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func toPackageModel(pkg *catalog.ServicePackage) *ServicePackageModel {
	return &ServicePackageModel{
		ID:          pkg.ID(),
		Category:    pkg.Category(),
		Slug:        pkg.Slug(),
		Name:        pkg.Name(),
		Description: pkg.Description(),
		PriceCents:  pkg.PriceCents(),
		Status:      string(pkg.Status()),
		Version:     pkg.Version(),
		CreatedAt:   pkg.CreatedAt(),
		UpdatedAt:   pkg.UpdatedAt(),
	}
}

func toDomainPackage(m *ServicePackageModel) *catalog.ServicePackage {
	return catalog.ReconstructServicePackage(
		m.ID,
		m.Category,
		m.Slug,
		m.Name,
		m.Description,
		m.PriceCents,
		catalog.PackageStatus(m.Status),
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
