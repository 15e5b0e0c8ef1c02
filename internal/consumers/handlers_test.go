package consumers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"smarthub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(buf *bytes.Buffer) *Handlers {
	return NewHandlers(slog.New(slog.NewJSONHandler(buf, nil)))
}

func TestReservationConfirmed(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandlers(&buf)

	data, err := json.Marshal(models.ReservationConfirmedEvent{
		Domain:        "facility",
		ReservationID: "12",
		UserID:        3,
		TargetID:      7,
		Timestamp:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, h.reservationConfirmed(data))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Reservation confirmed", line["msg"])
	assert.Equal(t, "activity", line["component"])
	assert.Equal(t, "facility", line["domain"])
	assert.Equal(t, "12", line["reservation_id"])
	assert.Equal(t, float64(7), line["target_id"])
}

func TestCheckInCompleted(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandlers(&buf)

	data, err := json.Marshal(models.CheckInCompletedEvent{Domain: "parking", ReservationID: "4", Message: "Access Granted: KZ 777"})
	require.NoError(t, err)
	require.NoError(t, h.checkInCompleted(data))
	assert.Contains(t, buf.String(), "Access Granted: KZ 777")
}

func TestMalformedPayload(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandlers(&buf)

	assert.Error(t, h.reservationConfirmed([]byte("{")))
	assert.Error(t, h.checkInCompleted([]byte("not json")))
	assert.Empty(t, buf.String())
}
