package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/serviceloop/service-booking/internal/domain"
	"github.com/serviceloop/service-booking/internal/domain/catalog"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for the booking domain. Price components are
// captured from the provider and package at creation time and never re-read,
// so later catalog changes cannot retroactively alter an existing booking.
// The total is always derived from the captured components, never stored.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	consumerID    uuid.UUID
	providerID    uuid.UUID
	packageID     uuid.UUID
	packageName   string
	scheduledDate time.Time
	timeSlot      string
	urgency       Urgency
	address       string
	contactPhone  string
	description   string
	status        BookingStatus

	minimumCostCents  int64
	packagePriceCents int64
	currency          string

	cancelNote  string
	confirmedAt *time.Time
	completedAt *time.Time
	cancelledAt *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "SB-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "SB-" + string(result), nil
}

// NewBooking creates a new Booking aggregate with status=requested. The
// first failing field is reported as a validation error.
func NewBooking(
	consumerID uuid.UUID,
	provider *catalog.Provider,
	pkg *catalog.ServicePackage,
	scheduledDate time.Time,
	timeSlot string,
	urgency Urgency,
	address string,
	contactPhone string,
	description string,
) (*Booking, error) {
	if consumerID == uuid.Nil {
		return nil, domain.NewValidationError("consumer_id", "consumer ID is required")
	}
	if provider == nil {
		return nil, domain.NewValidationError("provider_id", "provider is required")
	}
	if pkg == nil {
		return nil, domain.NewValidationError("package_id", "package is required")
	}
	today := truncateToDay(time.Now().UTC())
	if truncateToDay(scheduledDate.UTC()).Before(today) {
		return nil, domain.NewValidationError("scheduled_date", "scheduled date must not be in the past")
	}
	if timeSlot == "" {
		return nil, domain.NewValidationError("time_slot", "time slot is required")
	}
	if !urgency.IsValid() {
		return nil, domain.NewValidationError("urgency", fmt.Sprintf("invalid urgency level: %s", urgency))
	}
	if address == "" {
		return nil, domain.NewValidationError("address", "address is required")
	}
	if contactPhone == "" {
		return nil, domain.NewValidationError("contact_phone", "contact phone is required")
	}
	if !pkg.IsActive() {
		return nil, domain.NewValidationError("package_id", "package is no longer offered")
	}
	if !pkg.OfferedTo(provider.Category) {
		return nil, domain.NewValidationError("package_id",
			fmt.Sprintf("package is not offered in category %q", provider.Category))
	}
	if provider.MinimumCostCents < 0 {
		return nil, domain.NewValidationError("minimum_cost", "minimum cost must not be negative")
	}
	if pkg.PriceCents() < 0 {
		return nil, domain.NewValidationError("package_price", "package price must not be negative")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:                uuid.New(),
		bookingNumber:     bookingNumber,
		consumerID:        consumerID,
		providerID:        provider.ID,
		packageID:         pkg.ID(),
		packageName:       pkg.Name(),
		scheduledDate:     truncateToDay(scheduledDate.UTC()),
		timeSlot:          timeSlot,
		urgency:           urgency,
		address:           address,
		contactPhone:      contactPhone,
		description:       description,
		status:            StatusRequested,
		minimumCostCents:  provider.MinimumCostCents,
		packagePriceCents: pkg.PriceCents(),
		currency:          domain.CurrencyUSD,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	consumerID, providerID, packageID uuid.UUID,
	packageName string,
	scheduledDate time.Time,
	timeSlot string,
	urgency Urgency,
	address, contactPhone, description string,
	status BookingStatus,
	minimumCostCents, packagePriceCents int64,
	currency string,
	cancelNote string,
	confirmedAt, completedAt, cancelledAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                id,
		bookingNumber:     bookingNumber,
		consumerID:        consumerID,
		providerID:        providerID,
		packageID:         packageID,
		packageName:       packageName,
		scheduledDate:     scheduledDate,
		timeSlot:          timeSlot,
		urgency:           urgency,
		address:           address,
		contactPhone:      contactPhone,
		description:       description,
		status:            status,
		minimumCostCents:  minimumCostCents,
		packagePriceCents: packagePriceCents,
		currency:          currency,
		cancelNote:        cancelNote,
		confirmedAt:       confirmedAt,
		completedAt:       completedAt,
		cancelledAt:       cancelledAt,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// ConsumerID returns the booking consumer's user ID.
func (b *Booking) ConsumerID() uuid.UUID { return b.consumerID }

// ProviderID returns the booked provider's user ID.
func (b *Booking) ProviderID() uuid.UUID { return b.providerID }

// PackageID returns the identifier of the booked service package.
func (b *Booking) PackageID() uuid.UUID { return b.packageID }

// PackageName returns the package name captured at creation time.
func (b *Booking) PackageName() string { return b.packageName }

// ScheduledDate returns the date the service is scheduled for.
func (b *Booking) ScheduledDate() time.Time { return b.scheduledDate }

// TimeSlot returns the requested time slot.
func (b *Booking) TimeSlot() string { return b.timeSlot }

// Urgency returns the urgency level of the request.
func (b *Booking) Urgency() Urgency { return b.urgency }

// Address returns the service address.
func (b *Booking) Address() string { return b.address }

// ContactPhone returns the consumer's contact number.
func (b *Booking) ContactPhone() string { return b.contactPhone }

// Description returns the consumer's description of the work needed.
func (b *Booking) Description() string { return b.description }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// MinimumCostCents returns the provider's flat fee captured at creation.
func (b *Booking) MinimumCostCents() int64 { return b.minimumCostCents }

// PackagePriceCents returns the package price captured at creation, as
// amended by any accepted modification proposal.
func (b *Booking) PackagePriceCents() int64 { return b.packagePriceCents }

// TotalCostCents returns the authoritative booking total. It is always the
// sum of the captured fee and package price and is never stored separately.
func (b *Booking) TotalCostCents() int64 { return b.minimumCostCents + b.packagePriceCents }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// CancelNote returns the cancellation reason.
func (b *Booking) CancelNote() string { return b.cancelNote }

// ConfirmedAt returns the time the provider accepted the booking.
func (b *Booking) ConfirmedAt() *time.Time { return b.confirmedAt }

// CompletedAt returns the time the service was completed.
func (b *Booking) CompletedAt() *time.Time { return b.completedAt }

// CancelledAt returns the time the booking was cancelled.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// MinimumFeeRefundable returns true if the minimum booking fee is owed back
// to the consumer: the booking was cancelled before the provider accepted it.
func (b *Booking) MinimumFeeRefundable() bool {
	return b.status == StatusCancelled && b.confirmedAt == nil
}

// --- Behavior ---

// Apply performs a lifecycle transition on behalf of an actor. It enforces
// both the transition table and per-event authorization, mutates the booking
// atomically on success and returns the notification intent owed to the
// counterpart actor. The booking is unchanged on any failure.
func (b *Booking) Apply(event TransitionEvent, actor Actor, note string) (NotificationIntent, error) {
	if err := b.authorize(event, actor); err != nil {
		return NotificationIntent{}, err
	}

	next, ok := b.status.Next(event)
	if !ok {
		return NotificationIntent{}, domain.NewInvalidTransitionError(string(b.status), string(event))
	}

	now := time.Now().UTC()
	switch event {
	case EventAccept:
		b.confirmedAt = &now
	case EventComplete:
		b.completedAt = &now
	case EventCancel:
		b.cancelledAt = &now
		b.cancelNote = note
	}
	b.status = next
	b.updatedAt = now

	return NotificationIntent{
		BookingID:   b.id,
		ActorID:     actor.ID,
		RecipientID: b.counterpartOf(actor),
		Event:       event,
	}, nil
}

// Accept transitions the booking from requested to confirmed.
func (b *Booking) Accept(actor Actor) (NotificationIntent, error) {
	return b.Apply(EventAccept, actor, "")
}

// Reject transitions the booking from requested to rejected.
func (b *Booking) Reject(actor Actor) (NotificationIntent, error) {
	return b.Apply(EventReject, actor, "")
}

// Start transitions the booking from confirmed to active.
func (b *Booking) Start(actor Actor) (NotificationIntent, error) {
	return b.Apply(EventStart, actor, "")
}

// Complete transitions the booking from active to completed.
func (b *Booking) Complete(actor Actor) (NotificationIntent, error) {
	return b.Apply(EventComplete, actor, "")
}

// Cancel transitions the booking to cancelled with an optional reason.
func (b *Booking) Cancel(actor Actor, reason string) (NotificationIntent, error) {
	return b.Apply(EventCancel, actor, reason)
}

// applyProposalPrice replaces the package price component so that the
// booking total becomes newTotalCents. Only callable while the booking still
// accepts modifications; the minimum fee component is never amended.
func (b *Booking) applyProposalPrice(newTotalCents int64) error {
	if !b.status.AllowsModification() {
		return domain.NewInvalidStateError("booking", string(b.status))
	}
	if newTotalCents < b.minimumCostCents {
		return domain.NewValidationError("new_price", "proposed total is below the minimum booking fee")
	}
	b.packagePriceCents = newTotalCents - b.minimumCostCents
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// authorize decides whether the actor may apply the event to this booking.
func (b *Booking) authorize(event TransitionEvent, actor Actor) error {
	switch event {
	case EventAccept, EventReject, EventStart, EventComplete:
		if actor.Role != RoleProvider || actor.ID != b.providerID {
			return domain.NewForbiddenError(fmt.Sprintf("only the assigned provider may %s this booking", event))
		}
	case EventCancel:
		if actor.ID != b.consumerID && actor.ID != b.providerID {
			return domain.NewForbiddenError("only the booking's consumer or provider may cancel it")
		}
	default:
		return domain.NewForbiddenError(fmt.Sprintf("unknown event %q", event))
	}
	return nil
}

// counterpartOf returns the party to be notified about an action by actor.
func (b *Booking) counterpartOf(actor Actor) uuid.UUID {
	if actor.ID == b.providerID {
		return b.consumerID
	}
	return b.providerID
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
