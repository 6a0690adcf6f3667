package service

import (
	"context"
	"errors"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
)

// Availability is a read-only view of one slot.
type Availability struct {
	AttractionID string `json:"attractionId"`
	Date         string `json:"date"`
	TimeSlot     string `json:"timeSlot"`
	Capacity     int    `json:"capacity"`
	Reserved     int    `json:"reserved"`
	Remaining    int    `json:"remaining"`
}

// Ledger admits bookings against slot capacity.  Admission and booking
// insertion happen in one store operation, so the occupancy check can
// never be separated from the write that consumes it.
type Ledger struct {
	bookings BookingStore
}

func NewLedger(bookings BookingStore) *Ledger { return &Ledger{bookings: bookings} }

// Reserve admits b into its slot of a and persists it.  A full slot
// yields CAPACITY_EXCEEDED carrying the tickets still available; nothing
// is written in that case.
func (l *Ledger) Reserve(ctx context.Context, a *model.Attraction, b *model.Booking) error {
	err := l.bookings.ReserveAndCreate(ctx, b, a.CapacityPerSlot)
	if err == nil {
		return nil
	}
	var capErr *repository.CapacityError
	switch {
	case errors.As(err, &capErr):
		return capacityExceeded(capErr.Available)
	case errors.Is(err, repository.ErrConflict):
		return reject(CodeConflictDuplicate, "booking %s collides with an existing booking, retry the request", b.BookingID)
	default:
		return dependency("reserve slot", err)
	}
}

// Availability reports capacity, occupancy and remaining tickets of a
// slot.  It is advisory; only Reserve is authoritative.
func (l *Ledger) Availability(ctx context.Context, a *model.Attraction, date, timeSlot string) (*Availability, error) {
	reserved, err := l.bookings.SlotOccupancy(ctx, model.SlotKey{AttractionID: a.ID, Date: date, TimeSlot: timeSlot})
	if err != nil {
		return nil, dependency("read slot occupancy", err)
	}
	return &Availability{
		AttractionID: a.ID,
		Date:         date,
		TimeSlot:     timeSlot,
		Capacity:     a.CapacityPerSlot,
		Reserved:     reserved,
		Remaining:    max(a.CapacityPerSlot-reserved, 0),
	}, nil
}
