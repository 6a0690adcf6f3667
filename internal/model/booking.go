package model

import "time"

// Booking records a visitor's purchase of tickets for one time slot of
// one attraction.  A booking is never deleted; it only moves through
// the status transition table in booking_status.go.  Monetary fields
// are computed once at creation and stored in cents.
//
// Fields:
//  BookingID          – public identifier (BOOK-<millis>-<random hex>).
//  AttractionID       – attraction being booked.
//  AttractionName     – attraction name at booking time.
//  BookingDate        – calendar date of the visit (midnight UTC).
//  TimeSlot           – slot start label, HH:MM 24-hour.
//  VisitorEmail       – lower-cased visitor email.
//  VisitorName        – visitor display name.
//  PhoneNumber        – digits-only phone number, may be empty.
//  NumberOfTickets    – 1..10 tickets.
//  TicketType         – ticket category.
//  PricePerTicketCents, SubtotalCents, TaxCents, DiscountCents, TotalCents
//                     – pricing, total = subtotal + tax - discount.
//  CredentialPayload  – JSON payload encoded into the QR code.
//  CredentialHash     – keyed integrity hash of the credential.
//  QRCodeImageURL     – object store URL of the rendered QR image.
//  BookingStatus      – lifecycle status.
//  PaymentStatus      – payment status; completed at creation.
//  PaymentReference   – external payment reference.
//  IsValidated        – set once at the gate, never reset.
//  ValidationTime     – when the ticket was validated.
//  ValidatedBy        – staff subject that validated the ticket.
//  SpecialRequirements, Notes – free text.
//  BookingTime        – when the booking was made.
//  ExpiryTime         – slot start + 2h, derived.
//  CancellationTime   – when the booking was cancelled.
//  CreatedAt, UpdatedAt – row timestamps.
type Booking struct {
    BookingID           string
    AttractionID        string
    AttractionName      string
    BookingDate         time.Time
    TimeSlot            string
    VisitorEmail        string
    VisitorName         string
    PhoneNumber         string
    NumberOfTickets     int
    TicketType          TicketType
    PricePerTicketCents int64
    SubtotalCents       int64
    TaxCents            int64
    DiscountCents       int64
    TotalCents          int64
    CredentialPayload   string
    CredentialHash      string
    QRCodeImageURL      string
    BookingStatus       BookingStatus
    PaymentStatus       PaymentStatus
    PaymentReference    string
    IsValidated         bool
    ValidationTime      *time.Time
    ValidatedBy         string
    SpecialRequirements string
    Notes               string
    BookingTime         time.Time
    ExpiryTime          time.Time
    CancellationTime    *time.Time
    CreatedAt           time.Time
    UpdatedAt           time.Time
}

// DateLayout is the calendar date format used for booking dates.
const DateLayout = "2006-01-02"

// BookingDateString returns the booking date as YYYY-MM-DD.
func (b *Booking) BookingDateString() string { return b.BookingDate.Format(DateLayout) }

// SlotKey identifies the capacity bucket a booking counts against.
type SlotKey struct {
    AttractionID string
    Date         string // YYYY-MM-DD
    TimeSlot     string // HH:MM
}

// Slot returns the capacity bucket of the booking.
func (b *Booking) Slot() SlotKey {
    return SlotKey{AttractionID: b.AttractionID, Date: b.BookingDateString(), TimeSlot: b.TimeSlot}
}

// BookingView is a booking enriched with attraction display fields.  It
// is returned by visitor lookups.
type BookingView struct {
    Booking
    AttractionImage string
    Location        string
    OpeningTime     string
    ClosingTime     string
}
