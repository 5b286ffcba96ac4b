package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusActive    BookingStatus = "active"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusRejected  BookingStatus = "rejected"
)

// TransitionEvent is a lifecycle event applied to a booking by an actor.
type TransitionEvent string

const (
	EventAccept   TransitionEvent = "accept"
	EventReject   TransitionEvent = "reject"
	EventStart    TransitionEvent = "start"
	EventComplete TransitionEvent = "complete"
	EventCancel   TransitionEvent = "cancel"
)

// validTransitions defines the state machine for booking status transitions,
// keyed by current status and the event applied to it.
var validTransitions = map[BookingStatus]map[TransitionEvent]BookingStatus{
	StatusRequested: {
		EventAccept: StatusConfirmed,
		EventReject: StatusRejected,
		EventCancel: StatusCancelled,
	},
	StatusConfirmed: {
		EventStart:  StatusActive,
		EventCancel: StatusCancelled,
	},
	StatusActive: {
		EventComplete: StatusCompleted,
		EventCancel:   StatusCancelled,
	},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRejected:  {},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// Next returns the status reached by applying the event, and whether the
// transition is allowed from this status.
func (s BookingStatus) Next(event TransitionEvent) (BookingStatus, bool) {
	allowed, exists := validTransitions[s]
	if !exists {
		return "", false
	}
	next, ok := allowed[event]
	return next, ok
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// AllowsModification returns true if a modification proposal may be opened
// while the booking is in this status.
func (s BookingStatus) AllowsModification() bool {
	return s == StatusConfirmed || s == StatusActive
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// ParseTransitionEvent converts a string to a TransitionEvent, returning an error if invalid.
func ParseTransitionEvent(s string) (TransitionEvent, error) {
	switch event := TransitionEvent(s); event {
	case EventAccept, EventReject, EventStart, EventComplete, EventCancel:
		return event, nil
	default:
		return "", fmt.Errorf("invalid transition event: %s", s)
	}
}
