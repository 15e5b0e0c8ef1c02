package repository

import (
	"context"
	"database/sql"

	"smarthub/internal/models"
)

type pgParkingLotRepository struct {
	q querier
}

const parkingLotColumns = `id, name, location, total_capacity, rate_per_hour, image_url, google_maps_url`

func scanParkingLot(row interface{ Scan(...any) error }) (*models.ParkingLot, error) {
	lot := &models.ParkingLot{}
	err := row.Scan(
		&lot.ID,
		&lot.Name,
		&lot.Location,
		&lot.TotalCapacity,
		&lot.RatePerHour,
		&lot.ImageURL,
		&lot.GoogleMapsURL,
	)
	return lot, err
}

func (r *pgParkingLotRepository) GetByID(ctx context.Context, id int64) (*models.ParkingLot, error) {
	return r.get(ctx, "parking_lots.GetByID", `SELECT `+parkingLotColumns+` FROM parking_lots WHERE id = $1`, id)
}

// GetForUpdate takes a row lock so that concurrent bookings of the same lot
// count active sessions one after another.
func (r *pgParkingLotRepository) GetForUpdate(ctx context.Context, id int64) (*models.ParkingLot, error) {
	return r.get(ctx, "parking_lots.GetForUpdate", `SELECT `+parkingLotColumns+` FROM parking_lots WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgParkingLotRepository) get(ctx context.Context, op, query string, id int64) (*models.ParkingLot, error) {
	lot, err := scanParkingLot(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate(op, err)
	}
	return lot, nil
}

func (r *pgParkingLotRepository) List(ctx context.Context) ([]models.ParkingLot, error) {
	query := `SELECT ` + parkingLotColumns + ` FROM parking_lots ORDER BY name ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, translate("parking_lots.List", err)
	}
	defer rows.Close()

	lots := []models.ParkingLot{}
	for rows.Next() {
		lot, err := scanParkingLot(rows)
		if err != nil {
			return nil, translate("parking_lots.List", err)
		}
		lots = append(lots, *lot)
	}
	return lots, translate("parking_lots.List", rows.Err())
}

func (r *pgParkingLotRepository) Create(ctx context.Context, lot *models.ParkingLot) error {
	query := `
		INSERT INTO parking_lots (name, location, total_capacity, rate_per_hour, image_url, google_maps_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.q.QueryRowContext(ctx, query,
		lot.Name,
		lot.Location,
		lot.TotalCapacity,
		lot.RatePerHour,
		lot.ImageURL,
		lot.GoogleMapsURL,
	).Scan(&lot.ID)

	return translate("parking_lots.Create", err)
}

func (r *pgParkingLotRepository) CountActive(ctx context.Context, lotID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM parking_bookings WHERE parking_lot_id = $1 AND is_active`
	err := r.q.QueryRowContext(ctx, query, lotID).Scan(&n)
	return n, translate("parking_lots.CountActive", err)
}

func (r *pgParkingLotRepository) CountActiveByLot(ctx context.Context) (map[int64]int, error) {
	query := `SELECT parking_lot_id, COUNT(*) FROM parking_bookings WHERE is_active GROUP BY parking_lot_id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, translate("parking_lots.CountActiveByLot", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var lotID int64
		var n int
		if err := rows.Scan(&lotID, &n); err != nil {
			return nil, translate("parking_lots.CountActiveByLot", err)
		}
		counts[lotID] = n
	}
	return counts, translate("parking_lots.CountActiveByLot", rows.Err())
}

type pgParkingBookingRepository struct {
	q querier
}

func (r *pgParkingBookingRepository) Create(ctx context.Context, b *models.ParkingBooking) error {
	query := `
		INSERT INTO parking_bookings (user_id, parking_lot_id, vehicle_number, start_time, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at`

	err := r.q.QueryRowContext(ctx, query,
		b.UserID,
		b.ParkingLotID,
		b.VehicleNumber,
		b.StartTime,
	).Scan(&b.ID, &b.IsActive, &b.CreatedAt)

	return translate("parking_bookings.Create", err)
}

const parkingBookingSelect = `
	SELECT b.id, b.user_id, b.parking_lot_id, b.vehicle_number, b.start_time, b.is_active, b.created_at,
	       l.id, l.name, l.location, l.total_capacity, l.rate_per_hour, l.image_url, l.google_maps_url
	FROM parking_bookings b
	JOIN parking_lots l ON l.id = b.parking_lot_id`

func scanParkingBooking(row interface{ Scan(...any) error }) (*models.ParkingBooking, error) {
	b := &models.ParkingBooking{ParkingLot: &models.ParkingLot{}}
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ParkingLotID,
		&b.VehicleNumber,
		&b.StartTime,
		&b.IsActive,
		&b.CreatedAt,
		&b.ParkingLot.ID,
		&b.ParkingLot.Name,
		&b.ParkingLot.Location,
		&b.ParkingLot.TotalCapacity,
		&b.ParkingLot.RatePerHour,
		&b.ParkingLot.ImageURL,
		&b.ParkingLot.GoogleMapsURL,
	)
	return b, err
}

func (r *pgParkingBookingRepository) GetByID(ctx context.Context, id int64) (*models.ParkingBooking, error) {
	b, err := scanParkingBooking(r.q.QueryRowContext(ctx, parkingBookingSelect+` WHERE b.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("parking_bookings.GetByID", err)
	}
	return b, nil
}

func (r *pgParkingBookingRepository) ListByUser(ctx context.Context, userID int64) ([]models.ParkingBooking, error) {
	query := parkingBookingSelect + ` WHERE b.user_id = $1 ORDER BY b.created_at DESC, b.id DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate("parking_bookings.ListByUser", err)
	}
	defer rows.Close()

	bookings := []models.ParkingBooking{}
	for rows.Next() {
		b, err := scanParkingBooking(rows)
		if err != nil {
			return nil, translate("parking_bookings.ListByUser", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, translate("parking_bookings.ListByUser", rows.Err())
}

func (r *pgParkingBookingRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE parking_bookings SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return false, translate("parking_bookings.Deactivate", err)
	}
	n, err := res.RowsAffected()
	return n == 1, translate("parking_bookings.Deactivate", err)
}
