package models

import "time"

// Booking is the part of a booking record that admin alerts need.
type Booking struct {
	Name       string   `json:"name" validate:"required"`
	Phone      string   `json:"phone" validate:"required"`
	Email      string   `json:"email,omitempty"`
	Service    string   `json:"service" validate:"required"`
	EventDate  string   `json:"event_date" validate:"required"`
	EventTime  string   `json:"event_time" validate:"required"`
	Message    string   `json:"message,omitempty"`
	TotalPrice *float64 `json:"total_price,omitempty"`
}

// BookingEvent is published on the booking queue when a booking is recorded.
type BookingEvent struct {
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"`
	Booking   Booking   `json:"booking"`
}

// BookingCreated is the only event type the consumer acts on.
const BookingCreated = "booking.created"
