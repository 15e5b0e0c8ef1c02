package models

import "time"

// NATS subjects
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventCheckInCompleted     = "checkin.completed"
)

// ReservationConfirmedEvent is published after a reservation transaction commits.
type ReservationConfirmedEvent struct {
	Domain        string    `json:"domain"`
	ReservationID string    `json:"reservation_id"`
	UserID        int64     `json:"user_id"`
	TargetID      int64     `json:"target_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// CheckInCompletedEvent is published after a credential was accepted.
type CheckInCompletedEvent struct {
	Domain        string    `json:"domain"`
	ReservationID string    `json:"reservation_id"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}
