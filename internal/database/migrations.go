package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	for i, migration := range Migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// Migrations are idempotent and applied in order.
var Migrations = []string{
	createUsersTable,
	createEventsTable,
	createRegistrationsTable,
	createFacilitiesTable,
	createFacilityBookingsTable,
	createParkingLotsTable,
	createParkingBookingsTable,
	createIndexes,
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    password_hash VARCHAR(64) NOT NULL,
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    surname VARCHAR(100) NOT NULL DEFAULT '',
    is_staff BOOLEAN NOT NULL DEFAULT FALSE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT users_email_key UNIQUE (email)
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    starts_at TIMESTAMPTZ NOT NULL,
    location VARCHAR(200) NOT NULL,
    price NUMERIC(10,2) NOT NULL DEFAULT 0,
    image_url TEXT NOT NULL DEFAULT '',
    google_maps_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (price >= 0)
);`

// Registration ids are generated by the application (UUID v4) because they
// are handed out as check-in credentials.
const createRegistrationsTable = `
CREATE TABLE IF NOT EXISTS registrations (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    tickets INTEGER NOT NULL DEFAULT 1,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    attended_at TIMESTAMPTZ,

    CONSTRAINT registrations_user_event_key UNIQUE (user_id, event_id),
    CHECK (tickets >= 1)
);`

const createFacilitiesTable = `
CREATE TABLE IF NOT EXISTS facilities (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    location VARCHAR(200) NOT NULL,
    capacity INTEGER NOT NULL DEFAULT 0,
    price NUMERIC(10,2) NOT NULL DEFAULT 0,
    image_url TEXT NOT NULL DEFAULT '',
    google_maps_url TEXT NOT NULL DEFAULT '',

    CHECK (capacity >= 0),
    CHECK (price >= 0)
);`

const createFacilityBookingsTable = `
CREATE TABLE IF NOT EXISTS facility_bookings (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    facility_id BIGINT NOT NULL REFERENCES facilities(id) ON DELETE CASCADE,
    booking_date DATE NOT NULL,
    time_slot VARCHAR(11) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    checked_in_at TIMESTAMPTZ,

    CONSTRAINT facility_bookings_slot_key UNIQUE (facility_id, booking_date, time_slot),
    CHECK (time_slot IN ('09:00-11:00', '12:00-14:00', '15:00-17:00', '18:00-20:00'))
);`

const createParkingLotsTable = `
CREATE TABLE IF NOT EXISTS parking_lots (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    location VARCHAR(200) NOT NULL,
    total_capacity INTEGER NOT NULL,
    rate_per_hour NUMERIC(6,2) NOT NULL DEFAULT 0,
    image_url TEXT NOT NULL DEFAULT '',
    google_maps_url TEXT NOT NULL DEFAULT '',

    CHECK (total_capacity >= 0)
);`

const createParkingBookingsTable = `
CREATE TABLE IF NOT EXISTS parking_bookings (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    parking_lot_id BIGINT NOT NULL REFERENCES parking_lots(id) ON DELETE CASCADE,
    vehicle_number VARCHAR(20) NOT NULL,
    start_time TIMESTAMPTZ NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS events_starts_at_idx ON events (starts_at);
CREATE INDEX IF NOT EXISTS registrations_user_idx ON registrations (user_id);
CREATE INDEX IF NOT EXISTS facility_bookings_user_idx ON facility_bookings (user_id);
CREATE INDEX IF NOT EXISTS parking_bookings_active_idx ON parking_bookings (parking_lot_id) WHERE is_active;`
