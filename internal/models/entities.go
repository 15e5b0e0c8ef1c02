package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a citizen or staff member. Authentication happens in the
// middleware; the booking core only needs the id and the contact address.
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	Surname      string    `json:"surname" db:"surname"`
	IsStaff      bool      `json:"is_staff" db:"is_staff"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// Event is a catalog entry citizens register for. Price "0.00" means free.
type Event struct {
	ID            int64     `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	StartsAt      time.Time `json:"starts_at" db:"starts_at"`
	Location      string    `json:"location" db:"location"`
	Price         string    `json:"price" db:"price"`
	ImageURL      string    `json:"image_url,omitempty" db:"image_url"`
	GoogleMapsURL string    `json:"google_maps_url,omitempty" db:"google_maps_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Registration is an event reservation. The id is a random UUID because it
// doubles as the bearer credential scanned at the door.
type Registration struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	EventID      int64      `json:"event_id" db:"event_id"`
	Tickets      int        `json:"tickets" db:"tickets"`
	RegisteredAt time.Time  `json:"registered_at" db:"registered_at"`
	AttendedAt   *time.Time `json:"attended_at" db:"attended_at"`
	Event        *Event     `json:"event,omitempty" db:"-"`
}

// Facility is a bookable public space (gym, hall, court, library).
type Facility struct {
	ID            int64  `json:"id" db:"id"`
	Name          string `json:"name" db:"name"`
	Description   string `json:"description" db:"description"`
	Location      string `json:"location" db:"location"`
	Capacity      int    `json:"capacity" db:"capacity"`
	Price         string `json:"price" db:"price"`
	ImageURL      string `json:"image_url,omitempty" db:"image_url"`
	GoogleMapsURL string `json:"google_maps_url,omitempty" db:"google_maps_url"`
}

// Booking is a facility reservation. (FacilityID, BookingDate, TimeSlot) is unique.
type Booking struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	FacilityID  int64      `json:"facility_id" db:"facility_id"`
	BookingDate Date       `json:"booking_date" db:"booking_date"`
	TimeSlot    TimeSlot   `json:"time_slot" db:"time_slot"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CheckedInAt *time.Time `json:"checked_in_at" db:"checked_in_at"`
	Facility    *Facility  `json:"facility,omitempty" db:"-"`
}

// ParkingLot is static reference data; AvailableSpaces and IsFull are
// derived from the count of active bookings and never stored.
type ParkingLot struct {
	ID              int64  `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	Location        string `json:"location" db:"location"`
	TotalCapacity   int    `json:"total_capacity" db:"total_capacity"`
	RatePerHour     string `json:"rate_per_hour" db:"rate_per_hour"`
	ImageURL        string `json:"image_url,omitempty" db:"image_url"`
	GoogleMapsURL   string `json:"google_maps_url,omitempty" db:"google_maps_url"`
	AvailableSpaces int    `json:"available_spaces" db:"-"`
	IsFull          bool   `json:"is_full" db:"-"`
}

// WithAvailability fills the derived fields from the active booking count.
func (l ParkingLot) WithAvailability(active int) ParkingLot {
	l.AvailableSpaces = max(0, l.TotalCapacity-active)
	l.IsFull = l.AvailableSpaces == 0
	return l
}

// ParkingBooking is a parking reservation. IsActive is toggled off manually
// when the session ends; there is no automatic expiry.
type ParkingBooking struct {
	ID            int64       `json:"id" db:"id"`
	UserID        int64       `json:"user_id" db:"user_id"`
	ParkingLotID  int64       `json:"parking_lot" db:"parking_lot_id"`
	VehicleNumber string      `json:"vehicle_number" db:"vehicle_number"`
	StartTime     time.Time   `json:"start_time" db:"start_time"`
	IsActive      bool        `json:"is_active" db:"is_active"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	ParkingLot    *ParkingLot `json:"parking_details,omitempty" db:"-"`
}
