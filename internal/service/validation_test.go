package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
)

func bookOn(t *testing.T, e *engine, a *model.Attraction, date string) *model.Booking {
	t.Helper()
	req := bookingRequest(a.ID, 2)
	req.BookingDate = date
	b, err := e.bookings.Create(context.Background(), req)
	require.NoError(t, err)
	return b
}

func fieldsOf(b *model.Booking) ValidationRequest {
	return ValidationRequest{BookingID: b.BookingID, VisitorEmail: b.VisitorEmail, Hash: b.CredentialHash, ValidatedBy: "staff-1"}
}

func TestValidateMissingData(t *testing.T) {
	e := newEngine(t)
	for _, req := range []ValidationRequest{
		{},
		{BookingID: "B1", VisitorEmail: "a@b.c"},
		{QRData: "{not json"},
	} {
		_, err := e.validator.Validate(context.Background(), req)
		assert.True(t, IsCode(err, CodeValidationFailed), "%+v", req)
	}
}

func TestValidateUnknownBooking(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-01")

	_, err := e.validator.Validate(ctx, ValidationRequest{BookingID: "BOOK-1-0000000000000000", VisitorEmail: b.VisitorEmail, Hash: b.CredentialHash})
	assert.True(t, IsCode(err, CodeInvalidBooking))

	req := fieldsOf(b)
	req.VisitorEmail = "intruder@example.com"
	_, err = e.validator.Validate(ctx, req)
	assert.True(t, IsCode(err, CodeInvalidBooking))
}

func TestValidateTamperedHash(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAttraction(t, 10, 1000)
	b := bookOn(t, e, a, "2025-06-01")
	other := bookOn(t, e, a, "2025-06-01")

	req := fieldsOf(b)
	req.Hash = other.CredentialHash
	_, err := e.validator.Validate(ctx, req)
	assert.True(t, IsCode(err, CodeTampered))

	req.Hash = b.CredentialHash[:10] + "x" + b.CredentialHash[11:]
	_, err = e.validator.Validate(ctx, req)
	assert.True(t, IsCode(err, CodeTampered))

	stored, err := e.store.Bookings().GetByID(ctx, b.BookingID)
	require.NoError(t, err)
	assert.False(t, stored.IsValidated)
}

func TestValidateAcceptsEmailInAnyCase(t *testing.T) {
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-01")
	req := fieldsOf(b)
	req.VisitorEmail = "VISITOR@example.COM"
	_, err := e.validator.Validate(context.Background(), req)
	assert.NoError(t, err)
}

func TestValidateDateGate(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-02")

	_, err := e.validator.Validate(ctx, fieldsOf(b))
	assert.True(t, IsCode(err, CodeTooEarly))

	e.clock.Set(time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC))
	_, err = e.validator.Validate(ctx, fieldsOf(b))
	assert.True(t, IsCode(err, CodeExpired))

	// any time on the booked day passes, even after the slot
	e.clock.Set(time.Date(2025, 6, 2, 23, 59, 0, 0, time.UTC))
	got, err := e.validator.Validate(ctx, fieldsOf(b))
	require.NoError(t, err)
	require.NotNil(t, got.ValidationTime)
	assert.Equal(t, time.Date(2025, 6, 2, 23, 59, 0, 0, time.UTC), *got.ValidationTime)
	assert.Equal(t, model.StatusConfirmed, got.BookingStatus)
}

func TestValidateUsesParkCalendarDay(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-02")

	// 2025-06-01 20:00 UTC is already 2025-06-02 in UTC+10
	e.clock.Set(time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC))
	v := NewValidator(e.store.Bookings(), e.codec, e.clock.Now, time.FixedZone("east", 10*3600), nil)
	_, err := v.Validate(ctx, fieldsOf(b))
	assert.NoError(t, err)
}

func TestValidateCancelledBooking(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-01")
	_, err := e.bookings.Cancel(ctx, b.BookingID, b.VisitorEmail)
	require.NoError(t, err)

	_, err = e.validator.Validate(ctx, fieldsOf(b))
	assert.True(t, IsCode(err, CodeCancelled))
}

func TestValidateConcurrentRedeemsOnce(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-01")

	const scanners = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		dup int
	)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.validator.Validate(ctx, ValidationRequest{QRData: b.CredentialPayload})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case IsCode(err, CodeAlreadyValidated):
				dup++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, scanners-1, dup)
}

// cancelDuringValidation cancels the booking right before the gate
// writes the validation flag, as a visitor cancelling at the same
// moment would.
type cancelDuringValidation struct {
	*repository.MemoryBookingRepo
	at time.Time
}

func (s cancelDuringValidation) MarkValidated(ctx context.Context, bookingID string, at time.Time, by string) error {
	if err := s.Transition(ctx, bookingID, model.StatusCancelled, s.at); err != nil {
		return err
	}
	return s.MemoryBookingRepo.MarkValidated(ctx, bookingID, at, by)
}

func TestValidateLosesToConcurrentCancel(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-01")

	store := cancelDuringValidation{MemoryBookingRepo: e.store.Bookings(), at: e.clock.Now()}
	v := NewValidator(store, e.codec, e.clock.Now, time.UTC, nil)
	_, err := v.Validate(ctx, fieldsOf(b))
	assert.True(t, IsCode(err, CodeCancelled), "%v", err)

	got, err := e.store.Bookings().GetByID(ctx, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.BookingStatus)
	assert.False(t, got.IsValidated)
	occ, err := e.store.Bookings().SlotOccupancy(ctx, b.Slot())
	require.NoError(t, err)
	assert.Zero(t, occ)
}

func TestValidateRejectsExpiredBookingOnBookedDay(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	b := bookOn(t, e, e.addAttraction(t, 10, 1000), "2025-06-01")

	e.clock.Set(time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC))
	require.NoError(t, e.lifecycle.Expire(ctx, b))

	_, err := e.validator.Validate(ctx, fieldsOf(b))
	assert.True(t, IsCode(err, CodeExpired), "%v", err)
}
