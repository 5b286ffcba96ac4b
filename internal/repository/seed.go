package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/serviceloop/service-booking/internal/domain/catalog"
)

type seedPackage struct {
	slug        string
	name        string
	description string
	priceCents  int64
}

// seedCatalog holds the starter package table keyed by category. Categories
// without their own row fall back to the default set at read time.
var seedCatalog = map[string][]seedPackage{
	"electrician": {
		{slug: "basic", name: "Basic Repair", description: "Diagnosis and minor fixes, up to one hour on site", priceCents: 8000},
		{slug: "standard", name: "Standard Installation", description: "Fixture or outlet installation with materials check", priceCents: 15000},
		{slug: "premium", name: "Full Rewiring Visit", description: "Half-day visit for larger wiring jobs", priceCents: 30000},
	},
	"cleaner": {
		{slug: "basic", name: "Quick Clean", description: "Two-hour surface clean of the main living areas", priceCents: 6000},
		{slug: "standard", name: "Deep Clean", description: "Full-home deep clean including kitchen and bathrooms", priceCents: 12000},
		{slug: "premium", name: "Move-Out Clean", description: "End-of-lease clean with appliance interiors", priceCents: 20000},
	},
	"tutor": {
		{slug: "basic", name: "Single Session", description: "One-hour lesson on a topic of your choice", priceCents: 5000},
		{slug: "standard", name: "Weekly Package", description: "Four one-hour sessions over a month", priceCents: 18000},
		{slug: "premium", name: "Exam Prep Intensive", description: "Eight sessions with practice material review", priceCents: 34000},
	},
	catalog.CategoryDefault: {
		{slug: "basic", name: "Basic Service", description: "Entry-level service visit", priceCents: 7500},
		{slug: "standard", name: "Standard Service", description: "Standard scope service visit", priceCents: 15000},
		{slug: "premium", name: "Premium Service", description: "Extended scope service visit", priceCents: 25000},
	},
}

// SeedServicePackages populates the package table with the starter catalog.
// Safe to run repeatedly: it only inserts when the table is empty.
func SeedServicePackages(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&ServicePackageModel{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count packages: %w", err)
	}
	if count > 0 {
		return nil
	}

	repo := NewGormPackageRepository(db)
	for category, pkgs := range seedCatalog {
		for _, p := range pkgs {
			pkg, err := catalog.NewServicePackage(category, p.slug, p.name, p.description, p.priceCents)
			if err != nil {
				return fmt.Errorf("failed to build seed package %s/%s: %w", category, p.slug, err)
			}
			if err := repo.Save(ctx, pkg); err != nil {
				return fmt.Errorf("failed to seed package %s/%s: %w", category, p.slug, err)
			}
		}
	}
	return nil
}
