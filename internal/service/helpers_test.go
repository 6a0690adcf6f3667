package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/queue"
	"github.com/kashf99/park-booking/internal/repository"
	"github.com/kashf99/park-booking/internal/storage"
)

const testSecret = "test-qr-secret"

// fakeClock is a settable clock safe for concurrent use.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []queue.NotificationMessage
}

func (n *recordingNotifier) Submit(msg queue.NotificationMessage) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return true
}

func (n *recordingNotifier) Messages() []queue.NotificationMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]queue.NotificationMessage(nil), n.msgs...)
}

type engine struct {
	store     *repository.MemoryStore
	objects   *storage.MemoryStore
	clock     *fakeClock
	codec     *CredentialCodec
	lifecycle *Lifecycle
	ledger    *Ledger
	bookings  *BookingService
	validator *Validator
	visitors  *VisitorLookup
	catalog   *Catalog
	notifier  *recordingNotifier
}

// newEngine wires the services over in-memory stores.  The clock starts
// at 2025-06-01 08:00 UTC.
func newEngine(t *testing.T) *engine {
	t.Helper()
	store := repository.NewMemoryStore()
	objects := storage.NewMemoryStore("http://objects.test/park")
	clock := newFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	codec, err := NewCredentialCodec(testSecret)
	require.NoError(t, err)

	lifecycle := NewLifecycle(store.Bookings(), clock.Now, time.UTC, nil)
	ledger := NewLedger(store.Bookings())
	notifier := &recordingNotifier{}
	e := &engine{
		store:     store,
		objects:   objects,
		clock:     clock,
		codec:     codec,
		lifecycle: lifecycle,
		ledger:    ledger,
		notifier:  notifier,
		validator: NewValidator(store.Bookings(), codec, clock.Now, time.UTC, nil),
		visitors:  NewVisitorLookup(store.Bookings()),
		catalog:   NewCatalog(store.Attractions(), ledger, objects, time.UTC, nil),
	}
	e.bookings = NewBookingService(BookingServiceDeps{
		Attractions: store.Attractions(),
		Ledger:      ledger,
		Lifecycle:   lifecycle,
		Codec:       codec,
		Objects:     objects,
		Renderer:    NewNotificationRenderer("ops@park.test", clock.Now),
		Notifier:    notifier,
	})
	return e
}

func (e *engine) addAttraction(t *testing.T, capacity int, priceCents int64) *model.Attraction {
	t.Helper()
	a := &model.Attraction{
		Name:             "Sky Coaster",
		Location:         "North Plaza",
		OpeningTime:      "09:00",
		ClosingTime:      "18:00",
		TicketPriceCents: priceCents,
		CapacityPerSlot:  capacity,
		ImageURL:         "http://objects.test/park/attractions/sky.png",
		IsActive:         true,
	}
	require.NoError(t, e.store.Attractions().Create(context.Background(), a))
	return a
}

func bookingRequest(attractionID string, tickets int) BookingRequest {
	return BookingRequest{
		AttractionID:    attractionID,
		BookingDate:     "2025-06-01",
		TimeSlot:        "14:30",
		VisitorEmail:    "Visitor@Example.com",
		VisitorName:     "Ada Visitor",
		PhoneNumber:     "+1 (555) 010-2030",
		NumberOfTickets: tickets,
	}
}
