package booking

// Urgency expresses how soon the consumer needs the service performed.
type Urgency string

const (
	UrgencyEmergency Urgency = "emergency"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyNormal    Urgency = "normal"
	UrgencyFlexible  Urgency = "flexible"
)

// IsValid returns true if the urgency is a recognized level.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyEmergency, UrgencyUrgent, UrgencyNormal, UrgencyFlexible:
		return true
	default:
		return false
	}
}

// String returns the string representation of the urgency level.
func (u Urgency) String() string {
	return string(u)
}
