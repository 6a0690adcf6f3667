package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
	"github.com/kashf99/park-booking/internal/storage"
)

// QRKeyPrefix is the object store folder of ticket QR images.
const QRKeyPrefix = "bookings/"

// BookingService creates bookings: it validates the request, admits it
// through the ledger, issues the credential and hands notifications to
// the dispatcher.
type BookingService struct {
	attractions AttractionStore
	ledger      *Ledger
	lifecycle   *Lifecycle
	codec       *CredentialCodec
	objects     storage.ObjectStore
	renderer    *NotificationRenderer
	notifier    Notifier
	log         *zap.Logger
}

// BookingServiceDeps groups the collaborators of a BookingService.
type BookingServiceDeps struct {
	Attractions AttractionStore
	Ledger      *Ledger
	Lifecycle   *Lifecycle
	Codec       *CredentialCodec
	Objects     storage.ObjectStore
	Renderer    *NotificationRenderer
	Notifier    Notifier
	Log         *zap.Logger
}

func NewBookingService(d BookingServiceDeps) *BookingService {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &BookingService{
		attractions: d.Attractions,
		ledger:      d.Ledger,
		lifecycle:   d.Lifecycle,
		codec:       d.Codec,
		objects:     d.Objects,
		renderer:    d.Renderer,
		notifier:    d.Notifier,
		log:         d.Log,
	}
}

// Create books req.  On success the returned booking is persisted,
// counted against its slot and carries its credential.  The QR image is
// uploaded before the reservation; when the reservation fails the image
// is removed again on a best-effort basis.  Notification problems never
// fail the request.
func (s *BookingService) Create(ctx context.Context, req BookingRequest) (*model.Booking, error) {
	a, err := s.attractions.GetByID(ctx, strings.TrimSpace(req.AttractionID))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !a.IsActive) {
		return nil, reject(CodeNotFound, "Attraction not found")
	}
	if err != nil {
		return nil, dependency("load attraction", err)
	}

	b, err := s.lifecycle.NewBooking(a, req)
	if err != nil {
		return nil, err
	}

	cred, err := s.codec.Issue(b)
	if err != nil {
		return nil, dependency("issue credential", err)
	}
	b.CredentialPayload = cred.Encoded
	b.CredentialHash = cred.Payload.Hash

	key := QRKeyPrefix + "QR_" + b.BookingID + ".png"
	url, err := s.objects.Put(ctx, key, cred.Image, "image/png")
	if err != nil {
		return nil, dependency("store qr code", err)
	}
	b.QRCodeImageURL = url

	if err := s.ledger.Reserve(ctx, a, b); err != nil {
		s.discardArtifact(key)
		if IsCode(err, CodeDependencyFailure) {
			s.log.Error("booking reservation failed", zap.String("booking_id", b.BookingID), zap.Error(err))
		} else {
			s.log.Info("booking rejected", zap.String("attraction_id", a.ID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("booking created",
		zap.String("booking_id", b.BookingID),
		zap.String("attraction_id", a.ID),
		zap.String("date", b.BookingDateString()),
		zap.String("time_slot", b.TimeSlot),
		zap.Int("tickets", b.NumberOfTickets))
	s.notify(b)
	return b, nil
}

func (s *BookingService) discardArtifact(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.objects.Remove(ctx, key); err != nil {
		s.log.Warn("orphaned qr code left in object store", zap.String("key", key), zap.Error(err))
	}
}

func (s *BookingService) notify(b *model.Booking) {
	if s.notifier == nil || s.renderer == nil {
		return
	}
	msgs, err := s.renderer.Render(b)
	if err != nil {
		s.log.Error("render notifications failed", zap.String("booking_id", b.BookingID), zap.Error(err))
		return
	}
	for _, m := range msgs {
		s.notifier.Submit(m)
	}
}

// Cancel cancels a booking on behalf of its visitor and frees its
// tickets.
func (s *BookingService) Cancel(ctx context.Context, bookingID, visitorEmail string) (*model.Booking, error) {
	return s.lifecycle.Cancel(ctx, bookingID, visitorEmail)
}
