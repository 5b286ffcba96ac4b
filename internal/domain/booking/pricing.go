package booking

import "github.com/serviceloop/service-booking/internal/domain"

// PricingStrategy defines the interface for calculating booking totals.
type PricingStrategy interface {
	// Calculate returns the booking total in cents for the given parameters.
	Calculate(params PricingParams) (int64, error)
}

// PricingParams holds the inputs for price calculation.
type PricingParams struct {
	MinimumCostCents  int64
	PackagePriceCents int64
}

// ComputeTotalCents returns the booking total: the provider's flat minimum
// fee plus the selected package price. No rounding or surcharges are
// applied; currency formatting belongs to the caller. Side-effect free.
func ComputeTotalCents(minimumCostCents, packagePriceCents int64) (int64, error) {
	if minimumCostCents < 0 {
		return 0, domain.NewValidationError("minimum_cost", "minimum cost must not be negative")
	}
	if packagePriceCents < 0 {
		return 0, domain.NewValidationError("package_price", "package price must not be negative")
	}
	return minimumCostCents + packagePriceCents, nil
}

// FlatRatePricingStrategy implements the marketplace pricing rule: the total
// is the captured minimum fee plus the captured package price, nothing else.
type FlatRatePricingStrategy struct{}

// NewFlatRatePricingStrategy creates a new FlatRatePricingStrategy.
func NewFlatRatePricingStrategy() *FlatRatePricingStrategy {
	return &FlatRatePricingStrategy{}
}

// Calculate computes the booking total in cents.
func (s *FlatRatePricingStrategy) Calculate(params PricingParams) (int64, error) {
	return ComputeTotalCents(params.MinimumCostCents, params.PackagePriceCents)
}
