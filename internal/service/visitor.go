package service

import (
	"context"
	"strings"

	"github.com/kashf99/park-booking/internal/model"
	"github.com/kashf99/park-booking/internal/repository"
)

// MinPhoneDigits is the shortest phone number accepted for lookups.
const MinPhoneDigits = 10

// ParseVisitorID turns a visitor identifier into a lookup query.  An
// identifier containing "@" is an email and is lower-cased; anything
// else is a phone number reduced to its digits.
func ParseVisitorID(id string) (repository.VisitorQuery, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return repository.VisitorQuery{}, reject(CodeValidationFailed, "visitorId cannot be empty")
	}
	if strings.Contains(id, "@") {
		return repository.VisitorQuery{Email: strings.ToLower(id)}, nil
	}
	phone := NormalizePhone(id)
	if len(phone) < MinPhoneDigits {
		return repository.VisitorQuery{}, reject(CodeValidationFailed, "Invalid phone number. Must contain at least %d digits", MinPhoneDigits)
	}
	return repository.VisitorQuery{Phone: phone}, nil
}

// VisitorLookup lists a visitor's bookings.
type VisitorLookup struct {
	bookings BookingStore
}

func NewVisitorLookup(bookings BookingStore) *VisitorLookup { return &VisitorLookup{bookings: bookings} }

// Find returns the visitor's bookings, newest booking date first, each
// enriched with attraction display fields.  No bookings is NOT_FOUND.
func (l *VisitorLookup) Find(ctx context.Context, visitorID string) ([]model.BookingView, error) {
	q, err := ParseVisitorID(visitorID)
	if err != nil {
		return nil, err
	}
	views, err := l.bookings.ListByVisitor(ctx, q)
	if err != nil {
		return nil, dependency("list visitor bookings", err)
	}
	if len(views) == 0 {
		return nil, reject(CodeNotFound, "No bookings found for this visitor")
	}
	return views, nil
}
