package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
)

const (
	// MaxTicketsPerBooking bounds NumberOfTickets of a single booking.
	MaxTicketsPerBooking = 10
	// ExpiryWindow is added to the slot start to derive the expiry time.
	ExpiryWindow = 2 * time.Hour
)

var timeSlotPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// ParseTimeSlot validates an HH:MM 24-hour label and returns it
// zero-padded together with its hour and minute.
func ParseTimeSlot(s string) (string, int, int, error) {
	m := timeSlotPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", 0, 0, fmt.Errorf("time slot %q must be HH:MM (24-hour)", s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%02d:%02d", h, mm), h, mm, nil
}

// ParseBookingDate accepts YYYY-MM-DD or an RFC 3339 timestamp and
// returns the calendar date as midnight UTC.  Timestamps are converted
// to loc before the date is taken.
func ParseBookingDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(model.DateLayout, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking date %q must be YYYY-MM-DD", s)
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// SlotStart returns the wall-clock start of the slot on date in loc.
func SlotStart(date time.Time, timeSlot string, loc *time.Location) (time.Time, error) {
	_, h, mm, err := ParseTimeSlot(timeSlot)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, h, mm, 0, 0, loc), nil
}

// ExpiryTime derives the booking expiry: slot start plus ExpiryWindow.
// It depends on nothing but its arguments.
func ExpiryTime(date time.Time, timeSlot string, loc *time.Location) (time.Time, error) {
	start, err := SlotStart(date, timeSlot, loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(ExpiryWindow), nil
}

// NewBookingID returns BOOK-<unix millis>-<16 hex digits>.  The random
// part carries 64 bits from r.
func NewBookingID(now time.Time, r io.Reader) (string, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", fmt.Errorf("booking id entropy: %w", err)
	}
	return fmt.Sprintf("BOOK-%d-%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(buf[:]))), nil
}

// NormalizePhone strips everything but digits.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BookingRequest is the input of a booking creation.
type BookingRequest struct {
	AttractionID        string
	BookingDate         string
	TimeSlot            string
	VisitorEmail        string
	VisitorName         string
	PhoneNumber         string
	NumberOfTickets     int
	TicketType          string
	SpecialRequirements string
}

// Lifecycle owns booking construction and status transitions.
type Lifecycle struct {
	bookings BookingStore
	now      Clock
	loc      *time.Location
	entropy  io.Reader
	log      *zap.Logger
}

func NewLifecycle(bookings BookingStore, now Clock, loc *time.Location, log *zap.Logger) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Lifecycle{bookings: bookings, now: now, loc: loc, entropy: rand.Reader, log: log}
}

// Location is the park timezone booking dates are interpreted in.
func (l *Lifecycle) Location() *time.Location { return l.loc }

// NewBooking validates req against a and builds a confirmed, paid,
// unvalidated booking with derived pricing, identity and expiry.  It
// does not touch the store.
func (l *Lifecycle) NewBooking(a *model.Attraction, req BookingRequest) (*model.Booking, error) {
	now := l.now()

	email := strings.ToLower(strings.TrimSpace(req.VisitorEmail))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, reject(CodeValidationFailed, "visitorEmail must be a valid email address")
	}
	name := strings.TrimSpace(req.VisitorName)
	if name == "" {
		return nil, reject(CodeValidationFailed, "visitorName is required")
	}
	if req.NumberOfTickets < 1 || req.NumberOfTickets > MaxTicketsPerBooking {
		return nil, reject(CodeValidationFailed, "numberOfTickets must be between 1 and %d", MaxTicketsPerBooking)
	}
	ticketType, err := model.ParseTicketType(strings.ToLower(strings.TrimSpace(req.TicketType)))
	if err != nil {
		return nil, reject(CodeValidationFailed, "ticketType must be adult, child, senior or student")
	}
	date, err := ParseBookingDate(req.BookingDate, l.loc)
	if err != nil {
		return nil, reject(CodeValidationFailed, "%s", err.Error())
	}
	slot, _, _, err := ParseTimeSlot(req.TimeSlot)
	if err != nil {
		return nil, reject(CodeValidationFailed, "%s", err.Error())
	}
	expiry, err := ExpiryTime(date, slot, l.loc)
	if err != nil {
		return nil, reject(CodeValidationFailed, "%s", err.Error())
	}
	if !now.Before(expiry) {
		return nil, reject(CodeValidationFailed, "time slot %s on %s has already passed", slot, date.Format(model.DateLayout))
	}

	id, err := NewBookingID(now, l.entropy)
	if err != nil {
		return nil, dependency("generate booking id", err)
	}
	price := ComputePricing(a.TicketPriceCents, req.NumberOfTickets)
	return &model.Booking{
		BookingID:           id,
		AttractionID:        a.ID,
		AttractionName:      a.Name,
		BookingDate:         date,
		TimeSlot:            slot,
		VisitorEmail:        email,
		VisitorName:         name,
		PhoneNumber:         NormalizePhone(req.PhoneNumber),
		NumberOfTickets:     req.NumberOfTickets,
		TicketType:          ticketType,
		PricePerTicketCents: price.UnitCents,
		SubtotalCents:       price.SubtotalCents,
		TaxCents:            price.TaxCents,
		DiscountCents:       price.DiscountCents,
		TotalCents:          price.TotalCents,
		BookingStatus:       model.StatusConfirmed,
		PaymentStatus:       model.PaymentCompleted,
		PaymentReference:    "PAY-" + uuid.NewString(),
		IsValidated:         false,
		SpecialRequirements: strings.TrimSpace(req.SpecialRequirements),
		BookingTime:         now.UTC(),
		ExpiryTime:          expiry.UTC(),
	}, nil
}

// Expire moves a confirmed booking whose expiry time has passed to
// expired, releasing its slot capacity.
func (l *Lifecycle) Expire(ctx context.Context, b *model.Booking) error {
	if b.BookingStatus != model.StatusConfirmed {
		return reject(CodeInvalidTransition, "only confirmed bookings can expire, booking is %s", b.BookingStatus)
	}
	if !l.now().After(b.ExpiryTime) {
		return reject(CodeInvalidTransition, "booking %s has not reached its expiry time", b.BookingID)
	}
	return l.transition(ctx, b, model.StatusExpired)
}

// Complete closes a confirmed booking that was redeemed at the gate.
func (l *Lifecycle) Complete(ctx context.Context, b *model.Booking) error {
	if !b.IsValidated {
		return reject(CodeInvalidTransition, "booking %s was never validated", b.BookingID)
	}
	return l.transition(ctx, b, model.StatusCompleted)
}

// Cancel cancels the visitor's booking.  The validation flag is left
// untouched.
func (l *Lifecycle) Cancel(ctx context.Context, bookingID, visitorEmail string) (*model.Booking, error) {
	email := strings.ToLower(strings.TrimSpace(visitorEmail))
	b, err := l.bookings.FindByIDAndEmail(ctx, strings.TrimSpace(bookingID), email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, reject(CodeNotFound, "Booking not found")
	}
	if err != nil {
		return nil, dependency("load booking", err)
	}
	if err := l.transition(ctx, b, model.StatusCancelled); err != nil {
		return nil, err
	}
	updated, err := l.bookings.GetByID(ctx, b.BookingID)
	if err != nil {
		return nil, dependency("reload booking", err)
	}
	return updated, nil
}

func (l *Lifecycle) transition(ctx context.Context, b *model.Booking, to model.BookingStatus) error {
	err := l.bookings.Transition(ctx, b.BookingID, to, l.now())
	switch {
	case err == nil:
		l.log.Info("booking status changed",
			zap.String("booking_id", b.BookingID),
			zap.String("from", b.BookingStatus.String()),
			zap.String("to", to.String()))
		b.BookingStatus = to
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return reject(CodeNotFound, "Booking not found")
	case errors.Is(err, repository.ErrInvalidTransition):
		return reject(CodeInvalidTransition, "booking %s cannot move from %s to %s", b.BookingID, b.BookingStatus, to)
	case errors.Is(err, repository.ErrAlreadyValidated):
		return reject(CodeAlreadyValidated, "booking %s was validated and cannot move to %s", b.BookingID, to)
	default:
		return dependency("update booking status", err)
	}
}
