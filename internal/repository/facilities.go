package repository

import (
	"context"
	"database/sql"
	"time"

	"smarthub/internal/models"
)

type pgFacilityRepository struct {
	q querier
}

const facilityColumns = `id, name, description, location, capacity, price, image_url, google_maps_url`

func scanFacility(row interface{ Scan(...any) error }) (*models.Facility, error) {
	f := &models.Facility{}
	err := row.Scan(
		&f.ID,
		&f.Name,
		&f.Description,
		&f.Location,
		&f.Capacity,
		&f.Price,
		&f.ImageURL,
		&f.GoogleMapsURL,
	)
	return f, err
}

func (r *pgFacilityRepository) GetByID(ctx context.Context, id int64) (*models.Facility, error) {
	query := `SELECT ` + facilityColumns + ` FROM facilities WHERE id = $1`

	f, err := scanFacility(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("facilities.GetByID", err)
	}
	return f, nil
}

func (r *pgFacilityRepository) List(ctx context.Context) ([]models.Facility, error) {
	query := `SELECT ` + facilityColumns + ` FROM facilities ORDER BY name ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, translate("facilities.List", err)
	}
	defer rows.Close()

	facilities := []models.Facility{}
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, translate("facilities.List", err)
		}
		facilities = append(facilities, *f)
	}
	return facilities, translate("facilities.List", rows.Err())
}

func (r *pgFacilityRepository) Create(ctx context.Context, f *models.Facility) error {
	query := `
		INSERT INTO facilities (name, description, location, capacity, price, image_url, google_maps_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.q.QueryRowContext(ctx, query,
		f.Name,
		f.Description,
		f.Location,
		f.Capacity,
		f.Price,
		f.ImageURL,
		f.GoogleMapsURL,
	).Scan(&f.ID)

	return translate("facilities.Create", err)
}

type pgBookingRepository struct {
	q querier
}

// Create relies on the facility_bookings_slot_key unique constraint to reject
// a second booking of the same (facility, date, slot).
func (r *pgBookingRepository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO facility_bookings (user_id, facility_id, booking_date, time_slot)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query,
		b.UserID,
		b.FacilityID,
		b.BookingDate,
		b.TimeSlot,
	).Scan(&b.ID, &b.CreatedAt)

	return translate("facility_bookings.Create", err)
}

const bookingSelect = `
	SELECT b.id, b.user_id, b.facility_id, b.booking_date, b.time_slot, b.created_at, b.checked_in_at,
	       f.id, f.name, f.description, f.location, f.capacity, f.price, f.image_url, f.google_maps_url
	FROM facility_bookings b
	JOIN facilities f ON f.id = b.facility_id`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{Facility: &models.Facility{}}
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.FacilityID,
		&b.BookingDate,
		&b.TimeSlot,
		&b.CreatedAt,
		&b.CheckedInAt,
		&b.Facility.ID,
		&b.Facility.Name,
		&b.Facility.Description,
		&b.Facility.Location,
		&b.Facility.Capacity,
		&b.Facility.Price,
		&b.Facility.ImageURL,
		&b.Facility.GoogleMapsURL,
	)
	return b, err
}

func (r *pgBookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("facility_bookings.GetByID", err)
	}
	return b, nil
}

func (r *pgBookingRepository) MarkCheckedIn(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `UPDATE facility_bookings SET checked_in_at = $2 WHERE id = $1 AND checked_in_at IS NULL`
	res, err := r.q.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, translate("facility_bookings.MarkCheckedIn", err)
	}
	n, err := res.RowsAffected()
	return n == 1, translate("facility_bookings.MarkCheckedIn", err)
}

func (r *pgBookingRepository) ListByUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	query := bookingSelect + ` WHERE b.user_id = $1 ORDER BY b.booking_date DESC, b.time_slot ASC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate("facility_bookings.ListByUser", err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, translate("facility_bookings.ListByUser", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, translate("facility_bookings.ListByUser", rows.Err())
}
