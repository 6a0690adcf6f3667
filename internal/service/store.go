// Package service implements the slot booking and ticket validation
// engine: pricing, the slot capacity ledger, the credential codec, the
// booking lifecycle, gate validation, visitor lookup, notifications, the
// expiry worker and attraction catalog administration.
package service

import (
	"context"
	"time"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
)

// AttractionStore is implemented by repository.AttractionRepo and
// repository.MemoryAttractionRepo.
type AttractionStore interface {
	Create(ctx context.Context, a *model.Attraction) error
	GetByID(ctx context.Context, id string) (*model.Attraction, error)
	List(ctx context.Context, q repository.AttractionQuery) ([]model.Attraction, int, error)
	Update(ctx context.Context, a *model.Attraction) error
	SetActive(ctx context.Context, id string, active bool) error
}

// BookingStore is implemented by repository.BookingRepo and
// repository.MemoryBookingRepo.  ReserveAndCreate and MarkValidated are
// the two linearizable operations the engine relies on.
type BookingStore interface {
	ReserveAndCreate(ctx context.Context, b *model.Booking, capacity int) error
	GetByID(ctx context.Context, bookingID string) (*model.Booking, error)
	FindByIDAndEmail(ctx context.Context, bookingID, email string) (*model.Booking, error)
	MarkValidated(ctx context.Context, bookingID string, at time.Time, by string) error
	Transition(ctx context.Context, bookingID string, to model.BookingStatus, at time.Time) error
	SlotOccupancy(ctx context.Context, slot model.SlotKey) (int, error)
	ListByVisitor(ctx context.Context, q repository.VisitorQuery) ([]model.BookingView, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
}

// UserStore is implemented by repository.UserRepo and
// repository.MemoryUserRepo.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (string, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Clock returns the current time.  Tests inject fixed clocks.
type Clock func() time.Time
