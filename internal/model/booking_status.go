package model

import "fmt"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    StatusPending   BookingStatus = "pending"
    StatusConfirmed BookingStatus = "confirmed"
    StatusCancelled BookingStatus = "cancelled"
    StatusCompleted BookingStatus = "completed"
    StatusExpired   BookingStatus = "expired"
    StatusNoShow    BookingStatus = "no_show"
)

// bookingTransitions is the closed state machine for booking statuses.
var bookingTransitions = map[BookingStatus][]BookingStatus{
    StatusPending:   {StatusConfirmed, StatusCancelled, StatusExpired},
    StatusConfirmed: {StatusCancelled, StatusCompleted, StatusExpired, StatusNoShow},
    StatusCancelled: {},
    StatusCompleted: {},
    StatusExpired:   {},
    StatusNoShow:    {},
}

// IsValid reports whether s is a known status.
func (s BookingStatus) IsValid() bool {
    _, ok := bookingTransitions[s]
    return ok
}

// CanTransitionTo reports whether s may move to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
    for _, t := range bookingTransitions[s] {
        if t == target {
            return true
        }
    }
    return false
}

// HoldsCapacity reports whether a booking in status s counts towards
// its slot's occupancy.
func (s BookingStatus) HoldsCapacity() bool {
    return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether no further transitions exist from s.
func (s BookingStatus) IsTerminal() bool {
    return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) String() string { return string(s) }

// ParseBookingStatus converts a stored string into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
    st := BookingStatus(s)
    if !st.IsValid() {
        return "", fmt.Errorf("invalid booking status: %q", s)
    }
    return st, nil
}

// PaymentStatus is the settlement state of a booking's payment.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "pending"
    PaymentCompleted PaymentStatus = "completed"
    PaymentFailed    PaymentStatus = "failed"
    PaymentRefunded  PaymentStatus = "refunded"
)

// TicketType is the ticket category of a booking.
type TicketType string

const (
    TicketAdult   TicketType = "adult"
    TicketChild   TicketType = "child"
    TicketSenior  TicketType = "senior"
    TicketStudent TicketType = "student"
)

// ParseTicketType returns the ticket type for s, defaulting to adult
// when s is empty.
func ParseTicketType(s string) (TicketType, error) {
    switch TicketType(s) {
    case "":
        return TicketAdult, nil
    case TicketAdult, TicketChild, TicketSenior, TicketStudent:
        return TicketType(s), nil
    }
    return "", fmt.Errorf("invalid ticket type: %q", s)
}
