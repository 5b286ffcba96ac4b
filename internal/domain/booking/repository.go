package booking

import (
	"context"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates
// and their modification proposals. Implementations must serialize
// concurrent mutations of a single booking: Update and ResolveProposal fail
// with a conflict when the expected version no longer matches.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// FindByConsumerID retrieves bookings created by a consumer with pagination.
	FindByConsumerID(ctx context.Context, consumerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByProviderID retrieves bookings assigned to a provider with pagination.
	FindByProviderID(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, b *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, b *Booking) error

	// FindProposalByID retrieves a modification proposal by its identifier.
	FindProposalByID(ctx context.Context, id uuid.UUID) (*ModificationProposal, error)

	// FindPendingProposal retrieves the booking's pending proposal, if any.
	// A not-found error means the booking has no unresolved proposal.
	FindPendingProposal(ctx context.Context, bookingID uuid.UUID) (*ModificationProposal, error)

	// ListProposals retrieves all proposals ever opened against a booking,
	// newest first, for audit.
	ListProposals(ctx context.Context, bookingID uuid.UUID) ([]*ModificationProposal, error)

	// SaveProposal persists a new proposal. A conflict is reported if the
	// booking already has a pending proposal.
	SaveProposal(ctx context.Context, p *ModificationProposal) error

	// UpdateProposal persists changes to a proposal that leave its booking
	// untouched (a rejection).
	UpdateProposal(ctx context.Context, p *ModificationProposal) error

	// ResolveProposal persists a resolved proposal together with its booking
	// in one transaction, with optimistic locking on the booking.
	ResolveProposal(ctx context.Context, b *Booking, p *ModificationProposal) error
}
