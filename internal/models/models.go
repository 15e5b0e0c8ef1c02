package models

import (
	"time"

	"github.com/google/uuid"
)

// RegisterEventRequest - body of POST /api/events/:id/register
type RegisterEventRequest struct {
	Tickets *int `json:"tickets"`
}

// BookFacilityRequest - body of POST /api/facilities/:id/book
type BookFacilityRequest struct {
	BookingDate string   `json:"booking_date" binding:"required"`
	TimeSlot    TimeSlot `json:"time_slot" binding:"required"`
}

// BookParkingRequest - body of POST /api/parking/:id/book
type BookParkingRequest struct {
	VehicleNumber string    `json:"vehicle_number" binding:"required"`
	StartTime     time.Time `json:"start_time" binding:"required"`
}

// CheckInRequest - body of POST /api/checkin. The scanner sends the decoded
// QR text, e.g. "event:<uuid>" or "facility:<id>".
type CheckInRequest struct {
	Payload string `json:"registration_id" binding:"required"`
}

// CheckInResponse is returned to the scanning client.
type CheckInResponse struct {
	Message       string     `json:"message"`
	Domain        string     `json:"domain"`
	ReservationID string     `json:"reservation_id"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	VehicleNumber string     `json:"vehicle_number,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListEventsResponse - GET /api/events
type ListEventsResponse []Event

// RegistrationResponse is the serialized result of an event reservation.
type RegistrationResponse struct {
	ID           uuid.UUID  `json:"id"`
	Event        int64      `json:"event"`
	EventTitle   string     `json:"event_title"`
	Tickets      int        `json:"tickets"`
	RegisteredAt time.Time  `json:"registered_at"`
	AttendedAt   *time.Time `json:"attended_at"`
}

// NewRegistrationResponse flattens a registration with its event.
func NewRegistrationResponse(r *Registration) RegistrationResponse {
	resp := RegistrationResponse{
		ID:           r.ID,
		Event:        r.EventID,
		Tickets:      r.Tickets,
		RegisteredAt: r.RegisteredAt,
		AttendedAt:   r.AttendedAt,
	}
	if r.Event != nil {
		resp.EventTitle = r.Event.Title
	}
	return resp
}
