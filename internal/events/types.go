package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/serviceloop/service-booking/internal/domain/booking"
)

// Topics this service produces to and consumes from.
const (
	TopicBookingEvents = "booking.events"
	TopicCatalogEvents = "catalog.events"
)

// Event types published on booking.events.
const (
	BookingRequested     = "booking.requested"
	BookingAccepted      = "booking.accepted"
	BookingRejected      = "booking.rejected"
	BookingStarted       = "booking.started"
	BookingCompleted     = "booking.completed"
	BookingCancelled     = "booking.cancelled"
	ModificationProposed = "booking.modification.proposed"
	ModificationResolved = "booking.modification.resolved"
)

// Event types consumed from catalog.events.
const (
	CatalogProviderUpdated = "catalog.provider.updated"
)

// TypeForTransition maps a lifecycle event to its published event type.
func TypeForTransition(event booking.TransitionEvent) string {
	switch event {
	case booking.EventAccept:
		return BookingAccepted
	case booking.EventReject:
		return BookingRejected
	case booking.EventStart:
		return BookingStarted
	case booking.EventComplete:
		return BookingCompleted
	case booking.EventCancel:
		return BookingCancelled
	default:
		return ""
	}
}

// BookingRequestedEvent announces a newly created booking request.
type BookingRequestedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	ConsumerID    uuid.UUID `json:"consumer_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	PackageID     uuid.UUID `json:"package_id"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	Urgency       string    `json:"urgency"`
	ScheduledDate string    `json:"scheduled_date"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingTransitionedEvent carries the notification intent produced by a
// successful lifecycle transition. The notification collaborator owns
// delivery and retry.
type BookingTransitionedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	Event         string    `json:"event"`
	Status        string    `json:"status"`
	ActorID       uuid.UUID `json:"actor_id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	FeeRefundable bool      `json:"fee_refundable,omitempty"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ModificationProposedEvent announces a pending modification proposal.
type ModificationProposedEvent struct {
	ProposalID         uuid.UUID `json:"proposal_id"`
	BookingID          uuid.UUID `json:"booking_id"`
	ProposedBy         uuid.UUID `json:"proposed_by"`
	ConsumerID         uuid.UUID `json:"consumer_id"`
	OriginalPriceCents int64     `json:"original_price_cents"`
	NewPriceCents      int64     `json:"new_price_cents"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// ModificationResolvedEvent announces a consumer's resolution of a proposal.
type ModificationResolvedEvent struct {
	ProposalID    uuid.UUID `json:"proposal_id"`
	BookingID     uuid.UUID `json:"booking_id"`
	Decision      string    `json:"decision"`
	NewTotalCents int64     `json:"new_total_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ProviderUpdatedEvent is consumed from the catalog service when a provider
// profile changes, so stale cache entries can be dropped.
type ProviderUpdatedEvent struct {
	ProviderID uuid.UUID `json:"provider_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
