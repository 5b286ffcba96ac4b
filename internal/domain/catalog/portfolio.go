package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/serviceloop/service-booking/internal/domain"
)

// PortfolioItem is a work sample a provider showcases on their profile.
type PortfolioItem struct {
	id         uuid.UUID
	providerID uuid.UUID
	title      string
	imageURL   string
	caption    string
	createdAt  time.Time
}

// NewPortfolioItem creates a new portfolio item for the given provider.
func NewPortfolioItem(providerID uuid.UUID, title, imageURL, caption string) (*PortfolioItem, error) {
	if providerID == uuid.Nil {
		return nil, domain.NewValidationError("provider_id", "provider ID is required")
	}
	if title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}
	if imageURL == "" {
		return nil, domain.NewValidationError("image_url", "image URL is required")
	}

	return &PortfolioItem{
		id:         uuid.New(),
		providerID: providerID,
		title:      title,
		imageURL:   imageURL,
		caption:    caption,
		createdAt:  time.Now().UTC(),
	}, nil
}

// ReconstructPortfolioItem rebuilds a PortfolioItem from persistence.
func ReconstructPortfolioItem(id, providerID uuid.UUID, title, imageURL, caption string, createdAt time.Time) *PortfolioItem {
	return &PortfolioItem{
		id:         id,
		providerID: providerID,
		title:      title,
		imageURL:   imageURL,
		caption:    caption,
		createdAt:  createdAt,
	}
}

// Getters.
func (p *PortfolioItem) ID() uuid.UUID         { return p.id }
func (p *PortfolioItem) ProviderID() uuid.UUID { return p.providerID }
func (p *PortfolioItem) Title() string         { return p.title }
func (p *PortfolioItem) ImageURL() string      { return p.imageURL }
func (p *PortfolioItem) Caption() string       { return p.caption }
func (p *PortfolioItem) CreatedAt() time.Time  { return p.createdAt }
