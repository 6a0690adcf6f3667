package service

import (
	"context"
	"errors"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
	"github.com/kashf99/park-booking/internal/storage"
)

// ImageKeyPrefix is the object store folder of attraction images.
const ImageKeyPrefix = "attractions/"

// Catalog limits.
const (
	MaxCapacityPerSlot = 1000
	minNameLen         = 3
	maxNameLen         = 100
	maxDescriptionLen  = 2000
)

// AttractionInput carries catalog fields.  Nil fields are left
// unchanged by Update; Create requires Name, TicketPrice and
// CapacityPerSlot.
type AttractionInput struct {
	Name            *string
	Description     *string
	Location        *string
	OpeningTime     *string
	ClosingTime     *string
	TicketPrice     *float64
	CapacityPerSlot *int
	IsActive        *bool
}

// Upload is an image submitted with a catalog change.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Catalog administers attractions and answers availability queries.
type Catalog struct {
	store   AttractionStore
	ledger  *Ledger
	objects storage.ObjectStore
	loc     *time.Location
	log     *zap.Logger
}

func NewCatalog(store AttractionStore, ledger *Ledger, objects storage.ObjectStore, loc *time.Location, log *zap.Logger) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{store: store, ledger: ledger, objects: objects, loc: loc, log: log}
}

func (c *Catalog) List(ctx context.Context, q repository.AttractionQuery) ([]model.Attraction, int, error) {
	list, total, err := c.store.List(ctx, q)
	if err != nil {
		return nil, 0, dependency("list attractions", err)
	}
	return list, total, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*model.Attraction, error) {
	a, err := c.store.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, reject(CodeNotFound, "Attraction not found")
	}
	if err != nil {
		return nil, dependency("load attraction", err)
	}
	return a, nil
}

// Create adds an attraction.  A submitted image is stored first and
// removed again if the insert fails.
func (c *Catalog) Create(ctx context.Context, in AttractionInput, img *Upload) (*model.Attraction, error) {
	if in.Name == nil || in.TicketPrice == nil || in.CapacityPerSlot == nil {
		return nil, reject(CodeValidationFailed, "name, ticketPrice and capacityPerSlot are required")
	}
	a := &model.Attraction{ID: uuid.NewString(), IsActive: true}
	if err := apply(a, in); err != nil {
		return nil, err
	}
	if img != nil {
		if err := c.storeImage(ctx, a, img); err != nil {
			return nil, err
		}
	}
	if err := c.store.Create(ctx, a); err != nil {
		if a.ImageKey != "" {
			c.removeImage(a.ImageKey)
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, reject(CodeConflictDuplicate, "Attraction with this name already exists")
		}
		return nil, dependency("create attraction", err)
	}
	c.log.Info("attraction created", zap.String("attraction_id", a.ID), zap.String("name", a.Name))
	return a, nil
}

// Update applies the non-nil fields of in and optionally replaces the
// image.  The previous image is removed once the update is stored.
func (c *Catalog) Update(ctx context.Context, id string, in AttractionInput, img *Upload) (*model.Attraction, error) {
	a, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(a, in); err != nil {
		return nil, err
	}
	oldKey := a.ImageKey
	if img != nil {
		if err := c.storeImage(ctx, a, img); err != nil {
			return nil, err
		}
	}
	if err := c.store.Update(ctx, a); err != nil {
		if img != nil {
			c.removeImage(a.ImageKey)
		}
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, reject(CodeNotFound, "Attraction not found")
		case errors.Is(err, repository.ErrConflict):
			return nil, reject(CodeConflictDuplicate, "Attraction with this name already exists")
		}
		return nil, dependency("update attraction", err)
	}
	if img != nil && oldKey != "" && oldKey != a.ImageKey {
		c.removeImage(oldKey)
	}
	return a, nil
}

// SetActive soft-deletes or restores an attraction.  Inactive
// attractions cannot be booked; existing bookings are unaffected.
func (c *Catalog) SetActive(ctx context.Context, id string, active bool) (*model.Attraction, error) {
	err := c.store.SetActive(ctx, strings.TrimSpace(id), active)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, reject(CodeNotFound, "Attraction not found")
	}
	if err != nil {
		return nil, dependency("update attraction", err)
	}
	c.log.Info("attraction active flag changed", zap.String("attraction_id", id), zap.Bool("active", active))
	return c.Get(ctx, id)
}

// Availability reports the remaining tickets of one slot.
func (c *Catalog) Availability(ctx context.Context, id, date, timeSlot string) (*Availability, error) {
	a, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := ParseBookingDate(date, c.loc)
	if err != nil {
		return nil, reject(CodeValidationFailed, "%s", err.Error())
	}
	slot, _, _, err := ParseTimeSlot(timeSlot)
	if err != nil {
		return nil, reject(CodeValidationFailed, "%s", err.Error())
	}
	return c.ledger.Availability(ctx, a, d.Format(model.DateLayout), slot)
}

func (c *Catalog) storeImage(ctx context.Context, a *model.Attraction, img *Upload) error {
	if len(img.Data) == 0 {
		return reject(CodeValidationFailed, "image is empty")
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return reject(CodeValidationFailed, "image must be an image file")
	}
	key := ImageKeyPrefix + uuid.NewString() + strings.ToLower(path.Ext(img.Filename))
	url, err := c.objects.Put(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return dependency("store attraction image", err)
	}
	a.ImageKey, a.ImageURL = key, url
	return nil
}

func (c *Catalog) removeImage(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.objects.Remove(ctx, key); err != nil {
		c.log.Warn("remove attraction image failed", zap.String("key", key), zap.Error(err))
	}
}

// apply copies the set fields of in onto a and checks the catalog
// invariants.
func apply(a *model.Attraction, in AttractionInput) error {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		a.Location = strings.TrimSpace(*in.Location)
	}
	if in.OpeningTime != nil {
		a.OpeningTime = strings.TrimSpace(*in.OpeningTime)
	}
	if in.ClosingTime != nil {
		a.ClosingTime = strings.TrimSpace(*in.ClosingTime)
	}
	if in.TicketPrice != nil {
		a.TicketPriceCents = int64(math.Round(*in.TicketPrice * 100))
	}
	if in.CapacityPerSlot != nil {
		a.CapacityPerSlot = *in.CapacityPerSlot
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}

	switch {
	case len(a.Name) < minNameLen || len(a.Name) > maxNameLen:
		return reject(CodeValidationFailed, "Attraction name must be between %d and %d characters", minNameLen, maxNameLen)
	case len(a.Description) > maxDescriptionLen:
		return reject(CodeValidationFailed, "description must not exceed %d characters", maxDescriptionLen)
	case a.TicketPriceCents < 0:
		return reject(CodeValidationFailed, "Ticket price cannot be negative")
	case a.CapacityPerSlot < 1 || a.CapacityPerSlot > MaxCapacityPerSlot:
		return reject(CodeValidationFailed, "Capacity must be between 1 and %d", MaxCapacityPerSlot)
	}
	for _, t := range []string{a.OpeningTime, a.ClosingTime} {
		if t == "" {
			continue
		}
		if _, _, _, err := ParseTimeSlot(t); err != nil {
			return reject(CodeValidationFailed, "opening and closing times must be HH:MM (24-hour)")
		}
	}
	return nil
}
