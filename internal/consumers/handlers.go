package consumers

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"smarthub/internal/models"

	"github.com/nats-io/stan.go"
)

// Handlers turn domain events into activity log lines.
type Handlers struct {
	log *slog.Logger
}

func NewHandlers(log *slog.Logger) *Handlers {
	return &Handlers{log: log.With("component", "activity")}
}

func (h *Handlers) HandleReservationConfirmed(m *stan.Msg) {
	h.ack(m, h.reservationConfirmed(m.Data))
}

func (h *Handlers) HandleCheckInCompleted(m *stan.Msg) {
	h.ack(m, h.checkInCompleted(m.Data))
}

func (h *Handlers) reservationConfirmed(data []byte) error {
	var event models.ReservationConfirmedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal reservation confirmed event: %w", err)
	}

	h.log.Info("Reservation confirmed",
		"domain", event.Domain,
		"reservation_id", event.ReservationID,
		"user_id", event.UserID,
		"target_id", event.TargetID,
		"at", event.Timestamp,
	)
	return nil
}

func (h *Handlers) checkInCompleted(data []byte) error {
	var event models.CheckInCompletedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal check-in completed event: %w", err)
	}

	h.log.Info("Check-in completed",
		"domain", event.Domain,
		"reservation_id", event.ReservationID,
		"message", event.Message,
		"at", event.Timestamp,
	)
	return nil
}

// ack acknowledges every message. A payload that cannot be decoded will
// not decode on redelivery either, so it is logged and dropped.
func (h *Handlers) ack(m *stan.Msg, err error) {
	if err != nil {
		h.log.Error("Dropping malformed message", "subject", m.Subject, "sequence", m.Sequence, "error", err)
	}
	if err := m.Ack(); err != nil {
		h.log.Error("Failed to ack message", "subject", m.Subject, "sequence", m.Sequence, "error", err)
	}
}
