package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smarthub/internal/config"
	"smarthub/internal/notify"
	"smarthub/internal/repository"
	"smarthub/internal/seed"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		GinMode:        gin.TestMode,
		StorageDriver:  config.StorageDriverMemory,
		RequestTimeout: 5 * time.Second,
		Mail:           notify.Config{Driver: config.MailDriverLog, Timeout: time.Second},
	}

	ledger := repository.NewMemoryLedger()
	_, err := seed.Run(context.Background(), ledger, seed.Options{
		AdminEmail:    "admin@smartcity.local",
		AdminPassword: "admin",
		Demo:          true,
	})
	require.NoError(t, err)

	return New(cfg, Options{
		Ledger:   ledger,
		Notifier: notify.NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth_MemoryStorage(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"smarthub-api","storage":"memory"}`, w.Body.String())
}

func TestAPI_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("citizen@smartcity.local", "citizen")
	w = serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Jazz in the Park")
}

func TestCheckIn_StaffOnly(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"registration_id":"bogus"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/checkin", bytes.NewReader(body))
	req.SetBasicAuth("citizen@smartcity.local", "citizen")
	assert.Equal(t, http.StatusForbidden, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/checkin", bytes.NewReader(body))
	req.SetBasicAuth("admin@smartcity.local", "admin")
	assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/facilities/1/book",
		bytes.NewReader([]byte(`{"booking_date":"2024-06-01","time_slot":"09:00-11:00"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("citizen@smartcity.local", "citizen")
	require.Equal(t, http.StatusCreated, serve(s, req).Code)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `smarthub_reservations_total{domain="facility",outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), "smarthub_notification_duration_seconds")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
