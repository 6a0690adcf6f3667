package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/queue"
)

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAttraction(t, 10, 1000)

	b, err := e.bookings.Create(ctx, bookingRequest(a.ID, 3))
	require.NoError(t, err)
	assert.Equal(t, "Sky Coaster", b.AttractionName)
	assert.Equal(t, int64(3300), b.TotalCents)
	assert.Equal(t, e.codec.Hash(b.BookingID, "visitor@example.com"), b.CredentialHash)
	assert.Equal(t, "http://objects.test/park/bookings/QR_"+b.BookingID+".png", b.QRCodeImageURL)

	obj, err := e.objects.Get(QRKeyPrefix + "QR_" + b.BookingID + ".png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)

	stored, err := e.store.Bookings().GetByID(ctx, b.BookingID)
	require.NoError(t, err)
	assert.Equal(t, b.CredentialPayload, stored.CredentialPayload)
	assert.Equal(t, model.StatusConfirmed, stored.BookingStatus)

	avail, err := e.catalog.Availability(ctx, a.ID, "2025-06-01", "14:30")
	require.NoError(t, err)
	assert.Equal(t, 3, avail.Reserved)
	assert.Equal(t, 7, avail.Remaining)
}

func TestCreateBookingUnknownOrInactiveAttraction(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.bookings.Create(ctx, bookingRequest("missing", 1))
	assert.True(t, IsCode(err, CodeNotFound))

	a := e.addAttraction(t, 10, 1000)
	require.NoError(t, e.store.Attractions().SetActive(ctx, a.ID, false))
	_, err = e.bookings.Create(ctx, bookingRequest(a.ID, 1))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.Zero(t, e.objects.Len())
}

func TestCreateBookingReportsRemainingTickets(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAttraction(t, 5, 1000)

	_, err := e.bookings.Create(ctx, bookingRequest(a.ID, 3))
	require.NoError(t, err)

	_, err = e.bookings.Create(ctx, bookingRequest(a.ID, 3))
	r := AsRejection(err)
	require.NotNil(t, r)
	assert.Equal(t, CodeCapacityExceeded, r.Code)
	require.NotNil(t, r.Available)
	assert.Equal(t, 2, *r.Available)
	assert.Equal(t, "Only 2 tickets left for this slot.", r.Message)

	// the rejected request left no QR image behind
	assert.Equal(t, 1, e.objects.Len())
	assert.Len(t, e.notifier.Messages(), 2)
}

func TestCreateBookingConcurrentNeverOverbooks(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAttraction(t, 5, 1000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected []*Rejection
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.bookings.Create(ctx, bookingRequest(a.ID, 2))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
				return
			}
			rejected = append(rejected, AsRejection(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, admitted)
	require.Len(t, rejected, 3)
	for _, r := range rejected {
		assert.Equal(t, CodeCapacityExceeded, r.Code)
		require.NotNil(t, r.Available)
		assert.Equal(t, 1, *r.Available)
	}
	occ, err := e.store.Bookings().SlotOccupancy(ctx, model.SlotKey{AttractionID: a.ID, Date: "2025-06-01", TimeSlot: "14:30"})
	require.NoError(t, err)
	assert.Equal(t, 4, occ)
	assert.Equal(t, admitted, e.objects.Len())
}

func TestBookAndRedeemEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAttraction(t, 2, 1500)

	results := make(chan error, 2)
	bookings := make(chan *model.Booking, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := e.bookings.Create(ctx, bookingRequest(a.ID, 2))
			results <- err
			if err == nil {
				bookings <- b
			}
		}()
	}
	wg.Wait()
	close(results)
	close(bookings)

	var failures []error
	for err := range results {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)
	r := AsRejection(failures[0])
	assert.Equal(t, CodeCapacityExceeded, r.Code)
	require.NotNil(t, r.Available)
	assert.Zero(t, *r.Available)

	b := <-bookings
	require.NotNil(t, b)

	e.clock.Set(time.Date(2025, 6, 1, 14, 20, 0, 0, time.UTC))
	qr := ValidationRequest{QRData: b.CredentialPayload, ValidatedBy: "staff-1"}
	got, err := e.validator.Validate(ctx, qr)
	require.NoError(t, err)
	assert.True(t, got.IsValidated)
	assert.Equal(t, "staff-1", got.ValidatedBy)

	_, err = e.validator.Validate(ctx, qr)
	assert.True(t, IsCode(err, CodeAlreadyValidated))
}

func TestCreateBookingQueuesNotifications(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	a := e.addAttraction(t, 10, 1000)

	b, err := e.bookings.Create(ctx, bookingRequest(a.ID, 3))
	require.NoError(t, err)

	msgs := e.notifier.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, queue.KindVisitorConfirmation, msgs[0].Kind)
	assert.Equal(t, "visitor@example.com", msgs[0].To)
	assert.Equal(t, "Your Booking Confirmation - Sky Coaster", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, b.BookingID)
	assert.Contains(t, msgs[0].HTML, "$33.00")
	assert.Contains(t, msgs[0].HTML, b.QRCodeImageURL)

	assert.Equal(t, queue.KindAdminAlert, msgs[1].Kind)
	assert.Equal(t, "ops@park.test", msgs[1].To)
	assert.Equal(t, "New Booking - Sky Coaster", msgs[1].Subject)
	assert.Contains(t, msgs[1].HTML, "visitor@example.com")
}
