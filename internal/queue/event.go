// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// NotificationQueue is the durable queue carrying outbound emails.
const NotificationQueue = "notifications.email"

// Notification kinds.
const (
    KindVisitorConfirmation = "visitor_confirmation"
    KindAdminAlert          = "admin_alert"
)

// NotificationMessage is a fully rendered email.  The producer owns the
// content; consumers only deliver it.
type NotificationMessage struct {
    Kind      string    `json:"kind"`
    To        string    `json:"to"`
    Subject   string    `json:"subject"`
    HTML      string    `json:"html"`
    BookingID string    `json:"booking_id"`
    CreatedAt time.Time `json:"created_at"`
}
