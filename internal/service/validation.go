package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
)

// ValidationRequest is a credential presented at the gate, either as
// separate fields or as the raw scanned QR content.
type ValidationRequest struct {
	BookingID    string
	VisitorEmail string
	Hash         string
	QRData       string
	ValidatedBy  string // subject of the staff token
}

// Validator redeems ticket credentials exactly once.
type Validator struct {
	bookings BookingStore
	codec    *CredentialCodec
	now      Clock
	loc      *time.Location
	log      *zap.Logger
}

func NewValidator(bookings BookingStore, codec *CredentialCodec, now Clock, loc *time.Location, log *zap.Logger) *Validator {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{bookings: bookings, codec: codec, now: now, loc: loc, log: log}
}

// Validate runs the gate checks in order, stopping at the first failure:
// booking lookup, hash, one-time flag, cancellation, then calendar date.
// Only a same-day, untampered, unused credential is marked validated.
// Rejections never modify the booking.
func (v *Validator) Validate(ctx context.Context, req ValidationRequest) (*model.Booking, error) {
	if strings.TrimSpace(req.QRData) != "" {
		p, err := DecodePayload(req.QRData)
		if err != nil {
			return nil, reject(CodeValidationFailed, "Missing QR code data")
		}
		req.BookingID, req.VisitorEmail, req.Hash = p.BookingID, p.VisitorEmail, p.Hash
	}
	bookingID := strings.TrimSpace(req.BookingID)
	email := strings.ToLower(strings.TrimSpace(req.VisitorEmail))
	if bookingID == "" || email == "" || req.Hash == "" {
		return nil, reject(CodeValidationFailed, "Missing QR code data")
	}

	b, err := v.bookings.FindByIDAndEmail(ctx, bookingID, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, v.rejected(bookingID, reject(CodeInvalidBooking, "Invalid booking"))
	}
	if err != nil {
		return nil, dependency("load booking", err)
	}
	if !v.codec.Verify(b, req.Hash) {
		return nil, v.rejected(bookingID, reject(CodeTampered, "QR code has been tampered with"))
	}
	if b.IsValidated {
		return nil, v.rejected(bookingID, reject(CodeAlreadyValidated, "Ticket already validated"))
	}
	if b.BookingStatus == model.StatusCancelled {
		return nil, v.rejected(bookingID, reject(CodeCancelled, "Booking has been cancelled"))
	}

	now := v.now()
	today := now.In(v.loc).Format(model.DateLayout)
	switch booked := b.BookingDateString(); {
	case today < booked:
		return nil, v.rejected(bookingID, reject(CodeTooEarly, "Booking is for a future date. Please come on your booked date."))
	case today > booked:
		return nil, v.rejected(bookingID, reject(CodeExpired, "Booking date has passed. Ticket is expired."))
	}

	err = v.bookings.MarkValidated(ctx, b.BookingID, now, req.ValidatedBy)
	switch {
	case errors.Is(err, repository.ErrAlreadyValidated):
		return nil, v.rejected(bookingID, reject(CodeAlreadyValidated, "Ticket already validated"))
	case errors.Is(err, repository.ErrBookingClosed):
		return nil, v.rejected(bookingID, v.closed(ctx, b.BookingID))
	case err != nil:
		return nil, dependency("mark booking validated", err)
	}

	at := now.UTC()
	b.IsValidated = true
	b.ValidationTime = &at
	b.ValidatedBy = req.ValidatedBy
	v.log.Info("ticket validated",
		zap.String("booking_id", b.BookingID),
		zap.String("validated_by", req.ValidatedBy))
	return b, nil
}

// closed explains why the store refused to validate a booking whose
// status changed after it was loaded.
func (v *Validator) closed(ctx context.Context, bookingID string) *Rejection {
	b, err := v.bookings.GetByID(ctx, bookingID)
	if err == nil && b.BookingStatus != model.StatusCancelled {
		return reject(CodeExpired, "Booking is %s. Ticket is no longer valid.", b.BookingStatus)
	}
	return reject(CodeCancelled, "Booking has been cancelled")
}

func (v *Validator) rejected(bookingID string, r *Rejection) *Rejection {
	v.log.Info("ticket rejected", zap.String("booking_id", bookingID), zap.String("code", string(r.Code)))
	return r
}
