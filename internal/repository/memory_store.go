package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kashf99/park-booking/internal/model"
)

// MemoryStore is an in-process implementation of the attraction, booking
// and user repositories with the same observable semantics as the MySQL
// ones.  A single mutex serializes every read-check-write sequence, which
// makes slot reservations and one-time validation linearizable.  It backs
// the unit tests and the APP_STORE=memory development mode.
type MemoryStore struct {
	mu          sync.Mutex
	attractions map[string]model.Attraction
	bookings    map[string]model.Booking
	users       map[string]model.User
	now         func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attractions: make(map[string]model.Attraction),
		bookings:    make(map[string]model.Booking),
		users:       make(map[string]model.User),
		now:         time.Now,
	}
}

// Attractions returns the attraction repository view of the store.
func (s *MemoryStore) Attractions() *MemoryAttractionRepo { return &MemoryAttractionRepo{s: s} }

// Bookings returns the booking repository view of the store.
func (s *MemoryStore) Bookings() *MemoryBookingRepo { return &MemoryBookingRepo{s: s} }

// Users returns the user repository view of the store.
func (s *MemoryStore) Users() *MemoryUserRepo { return &MemoryUserRepo{s: s} }

// MemoryAttractionRepo is the attraction view of a MemoryStore.
type MemoryAttractionRepo struct{ s *MemoryStore }

func (r *MemoryAttractionRepo) Create(_ context.Context, a *model.Attraction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	for _, existing := range r.s.attractions {
		if existing.ID == a.ID || strings.EqualFold(existing.Name, a.Name) {
			return ErrConflict
		}
	}
	now := r.s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.attractions[a.ID] = *a
	return nil
}

func (r *MemoryAttractionRepo) GetByID(_ context.Context, id string) (*model.Attraction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attractions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryAttractionRepo) List(_ context.Context, q AttractionQuery) ([]model.Attraction, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]model.Attraction, 0)
	for _, a := range r.s.attractions {
		if !q.IncludeInactive && !a.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Name), search) &&
			!strings.Contains(strings.ToLower(a.Description), search) &&
			!strings.Contains(strings.ToLower(a.Location), search) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	page, limit := normalizePage(q.Page, q.Limit)
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+limit, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *MemoryAttractionRepo) Update(_ context.Context, a *model.Attraction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.attractions[a.ID]; !ok {
		return ErrNotFound
	}
	for _, existing := range r.s.attractions {
		if existing.ID != a.ID && strings.EqualFold(existing.Name, a.Name) {
			return ErrConflict
		}
	}
	a.UpdatedAt = r.s.now().UTC()
	r.s.attractions[a.ID] = *a
	return nil
}

func (r *MemoryAttractionRepo) SetActive(_ context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attractions[id]
	if !ok {
		return ErrNotFound
	}
	a.IsActive = active
	a.UpdatedAt = r.s.now().UTC()
	r.s.attractions[id] = a
	return nil
}

// MemoryBookingRepo is the booking view of a MemoryStore.
type MemoryBookingRepo struct{ s *MemoryStore }

// occupancyLocked sums tickets of capacity-holding bookings in the slot.
// The caller must hold s.mu.
func (r *MemoryBookingRepo) occupancyLocked(slot model.SlotKey) int {
	total := 0
	for _, b := range r.s.bookings {
		if b.Slot() == slot && b.BookingStatus.HoldsCapacity() {
			total += b.NumberOfTickets
		}
	}
	return total
}

func (r *MemoryBookingRepo) ReserveAndCreate(_ context.Context, b *model.Booking, capacity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	occupied := r.occupancyLocked(b.Slot())
	if b.NumberOfTickets > capacity-occupied {
		return &CapacityError{Available: max(capacity-occupied, 0)}
	}
	if _, ok := r.s.bookings[b.BookingID]; ok {
		return ErrConflict
	}
	for _, existing := range r.s.bookings {
		if existing.CredentialHash == b.CredentialHash {
			return ErrConflict
		}
	}
	now := r.s.now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	r.s.bookings[b.BookingID] = *b
	return nil
}

func (r *MemoryBookingRepo) GetByID(_ context.Context, bookingID string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *MemoryBookingRepo) FindByIDAndEmail(_ context.Context, bookingID, email string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok || b.VisitorEmail != email {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *MemoryBookingRepo) MarkValidated(_ context.Context, bookingID string, at time.Time, by string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	if b.IsValidated {
		return ErrAlreadyValidated
	}
	if !b.BookingStatus.HoldsCapacity() {
		return ErrBookingClosed
	}
	t := at.UTC()
	b.IsValidated = true
	b.ValidationTime = &t
	b.ValidatedBy = by
	b.UpdatedAt = r.s.now().UTC()
	r.s.bookings[bookingID] = b
	return nil
}

func (r *MemoryBookingRepo) Transition(_ context.Context, bookingID string, to model.BookingStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	if !b.BookingStatus.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	if to == model.StatusExpired && b.IsValidated {
		return ErrAlreadyValidated
	}
	b.BookingStatus = to
	if to == model.StatusCancelled {
		t := at.UTC()
		b.CancellationTime = &t
	}
	b.UpdatedAt = r.s.now().UTC()
	r.s.bookings[bookingID] = b
	return nil
}

func (r *MemoryBookingRepo) SlotOccupancy(_ context.Context, slot model.SlotKey) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.occupancyLocked(slot), nil
}

func (r *MemoryBookingRepo) ListByVisitor(_ context.Context, q VisitorQuery) ([]model.BookingView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	views := make([]model.BookingView, 0)
	for _, b := range r.s.bookings {
		if q.Email != "" && b.VisitorEmail != q.Email {
			continue
		}
		if q.Email == "" && (q.Phone == "" || b.PhoneNumber != q.Phone) {
			continue
		}
		v := model.BookingView{Booking: b}
		if a, ok := r.s.attractions[b.AttractionID]; ok {
			v.AttractionImage = a.ImageURL
			v.Location = a.Location
			v.OpeningTime = a.OpeningTime
			v.ClosingTime = a.ClosingTime
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].BookingDate.Equal(views[j].BookingDate) {
			return views[i].BookingDate.After(views[j].BookingDate)
		}
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].BookingID > views[j].BookingID
	})
	return views, nil
}

func (r *MemoryBookingRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Booking
	for _, b := range r.s.bookings {
		if b.BookingStatus == model.StatusConfirmed && b.ExpiryTime.Before(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryTime.Before(out[j].ExpiryTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryUserRepo is the user view of a MemoryStore.
type MemoryUserRepo struct{ s *MemoryStore }

func (r *MemoryUserRepo) Create(_ context.Context, name, email, passwordHash, role string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return "", ErrEmailExists
		}
	}
	now := r.s.now().UTC()
	u := model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.users[u.ID] = u
	return u.ID, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}
