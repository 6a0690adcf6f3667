package model

import "time"

// Attraction is a bookable park attraction.  Each attraction sells a
// fixed number of tickets per time slot and a single ticket price.
// The engine never mutates an attraction; only catalog administration
// changes its fields, and deactivation is a soft delete.
//
// Fields:
//  ID               – uuid primary key.
//  Name             – unique display name.
//  Description      – free-form description.
//  Location         – where in the park the attraction is.
//  OpeningTime      – opening time label (HH:MM), informational.
//  ClosingTime      – closing time label (HH:MM), informational.
//  TicketPriceCents – unit price in cents (never negative).
//  CapacityPerSlot  – tickets sold per (date, time slot); at least 1.
//  ImageURL         – public URL of the attraction image, if any.
//  ImageKey         – object store key of the image, if any.
//  IsActive         – inactive attractions cannot be booked.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Attraction struct {
    ID               string    `json:"id"`
    Name             string    `json:"name"`
    Description      string    `json:"description"`
    Location         string    `json:"location"`
    OpeningTime      string    `json:"openingTime"`
    ClosingTime      string    `json:"closingTime"`
    TicketPriceCents int64     `json:"ticketPriceCents"`
    CapacityPerSlot  int       `json:"capacityPerSlot"`
    ImageURL         string    `json:"imageUrl"`
    ImageKey         string    `json:"-"`
    IsActive         bool      `json:"isActive"`
    CreatedAt        time.Time `json:"createdAt"`
    UpdatedAt        time.Time `json:"updatedAt"`
}

// TicketPrice returns the unit price in currency units.
func (a *Attraction) TicketPrice() float64 { return float64(a.TicketPriceCents) / 100 }
