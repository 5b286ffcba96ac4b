package booking

import "github.com/google/uuid"

// Role identifies which side of the marketplace an actor is on.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated identity applying an operation to a booking.
// Authorization is decided per operation against the booking's own parties,
// never against ambient state.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// NotificationIntent describes a notification owed to the counterpart actor
// after a successful transition. Delivery and retry belong to the
// notification collaborator, not to the state machine.
type NotificationIntent struct {
	BookingID   uuid.UUID       `json:"booking_id"`
	ActorID     uuid.UUID       `json:"actor_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Event       TransitionEvent `json:"event"`
}
