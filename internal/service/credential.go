package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/kashf99/park-booking/internal/model"
)

// CredentialPayload is the logical content of a ticket.  Its JSON form is
// what the QR code encodes and what gate scanners send back as qrData.
type CredentialPayload struct {
	BookingID       string `json:"bookingId"`
	AttractionID    string `json:"attractionId"`
	AttractionName  string `json:"attractionName"`
	BookingDate     string `json:"bookingDate"`
	TimeSlot        string `json:"timeSlot"`
	VisitorEmail    string `json:"visitorEmail"`
	NumberOfTickets int    `json:"numberOfTickets"`
	Hash            string `json:"hash"`
}

// Credential is an issued ticket: the payload, its JSON encoding and
// the rendered QR code image.
type Credential struct {
	Payload CredentialPayload
	Encoded string
	Image   []byte // PNG
}

// CredentialCodec issues and verifies ticket credentials.  The hash is
// HMAC-SHA256 keyed by a server-only secret over the booking id and the
// visitor email, so it can be recomputed from the stored booking alone.
type CredentialCodec struct {
	secret  []byte
	qrSize  int
	qrLevel qrcode.RecoveryLevel
}

// NewCredentialCodec returns a codec keyed by secret.
func NewCredentialCodec(secret string) (*CredentialCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("credential secret is required")
	}
	return &CredentialCodec{secret: []byte(secret), qrSize: 256, qrLevel: qrcode.Medium}, nil
}

// Hash computes the integrity hash for a booking id and visitor email.
func (c *CredentialCodec) Hash(bookingID, visitorEmail string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(bookingID))
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write([]byte(visitorEmail))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue builds the credential of b and renders its QR code.  b must have
// its identity, slot and visitor fields set.
func (c *CredentialCodec) Issue(b *model.Booking) (*Credential, error) {
	p := CredentialPayload{
		BookingID:       b.BookingID,
		AttractionID:    b.AttractionID,
		AttractionName:  b.AttractionName,
		BookingDate:     b.BookingDateString(),
		TimeSlot:        b.TimeSlot,
		VisitorEmail:    b.VisitorEmail,
		NumberOfTickets: b.NumberOfTickets,
		Hash:            c.Hash(b.BookingID, b.VisitorEmail),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}
	png, err := qrcode.Encode(string(raw), c.qrLevel, c.qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return &Credential{Payload: p, Encoded: string(raw), Image: png}, nil
}

// Verify recomputes the hash from the stored booking and compares it to
// the presented value in constant time.
func (c *CredentialCodec) Verify(stored *model.Booking, presented string) bool {
	expected := c.Hash(stored.BookingID, stored.VisitorEmail)
	return hmac.Equal([]byte(expected), []byte(presented))
}

// DecodePayload parses scanned QR content.  Only the fields needed for
// validation are required; the rest is informational.
func DecodePayload(raw string) (*CredentialPayload, error) {
	var p CredentialPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if p.BookingID == "" || p.VisitorEmail == "" || p.Hash == "" {
		return nil, errors.New("credential is missing bookingId, visitorEmail or hash")
	}
	return &p, nil
}
