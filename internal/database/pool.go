package database

import (
	"context"
	"log/slog"
	"time"
)

const (
	healthPingTimeout = 5 * time.Second
	// pressureRatio is the share of MaxOpenConns in use that triggers a warning.
	pressureRatio = 0.9
)

// Health is the database section of GET /health.
type Health struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	OpenConns    int           `json:"open_connections"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	CheckedAt    time.Time     `json:"checked_at"`
}

func (h Health) Healthy() bool { return h.Status == "healthy" }

// HealthCheck pings the database and snapshots the pool counters.
func (db *DB) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	stats := db.Stats()
	h := Health{
		Status:    "healthy",
		OpenConns: stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		WaitCount: stats.WaitCount,
		CheckedAt: start,
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	}
	h.ResponseTime = time.Since(start)
	return h
}

// WarnOnPoolPressure logs when reservations are about to queue for
// connections. Each reservation holds one connection for the whole
// transaction, including the notification call.
func (db *DB) WarnOnPoolPressure() {
	stats := db.Stats()

	if stats.MaxOpenConnections > 0 && float64(stats.InUse) > float64(stats.MaxOpenConnections)*pressureRatio {
		slog.Warn("Connection pool nearly exhausted",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConnections)
	}
	if stats.WaitCount > 0 && stats.WaitDuration > time.Second {
		slog.Warn("Requests are waiting for database connections",
			"wait_count", stats.WaitCount, "wait_duration", stats.WaitDuration)
	}
}
