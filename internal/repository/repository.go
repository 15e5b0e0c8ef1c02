package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smarthub/internal/database"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Lookups by id return (nil, nil) when the row does not exist.

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Event, error)
	Create(ctx context.Context, event *models.Event) error
}

type RegistrationRepository interface {
	// Create assigns a random id when reg.ID is zero.
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	Exists(ctx context.Context, userID, eventID int64) (bool, error)
	// MarkAttended sets attended_at only if it is still unset and reports
	// whether this call did it.
	MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Registration, error)
}

type FacilityRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Facility, error)
	List(ctx context.Context) ([]models.Facility, error)
	Create(ctx context.Context, facility *models.Facility) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	MarkCheckedIn(ctx context.Context, id int64, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Booking, error)
}

type ParkingLotRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ParkingLot, error)
	// GetForUpdate reads the lot and holds it locked until the surrounding
	// transaction ends. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id int64) (*models.ParkingLot, error)
	List(ctx context.Context) ([]models.ParkingLot, error)
	Create(ctx context.Context, lot *models.ParkingLot) error
	CountActive(ctx context.Context, lotID int64) (int, error)
	CountActiveByLot(ctx context.Context) (map[int64]int, error)
}

type ParkingBookingRepository interface {
	Create(ctx context.Context, booking *models.ParkingBooking) error
	GetByID(ctx context.Context, id int64) (*models.ParkingBooking, error)
	ListByUser(ctx context.Context, userID int64) ([]models.ParkingBooking, error)
	// Deactivate clears is_active if it is still set and reports whether
	// this call did it.
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// Repositories gives access to every table of the ledger, either directly or
// bound to a transaction.
type Repositories interface {
	Users() UserRepository
	Events() EventRepository
	Registrations() RegistrationRepository
	Facilities() FacilityRepository
	Bookings() BookingRepository
	ParkingLots() ParkingLotRepository
	ParkingBookings() ParkingBookingRepository
}

// Ledger is the reservation store. WithinTx runs fn in one atomic scope: if
// fn returns an error nothing it wrote survives.
type Ledger interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgRepos struct {
	q querier
}

func (r pgRepos) Users() UserRepository                 { return &pgUserRepository{q: r.q} }
func (r pgRepos) Events() EventRepository               { return &pgEventRepository{q: r.q} }
func (r pgRepos) Registrations() RegistrationRepository { return &pgRegistrationRepository{q: r.q} }
func (r pgRepos) Facilities() FacilityRepository        { return &pgFacilityRepository{q: r.q} }
func (r pgRepos) Bookings() BookingRepository           { return &pgBookingRepository{q: r.q} }
func (r pgRepos) ParkingLots() ParkingLotRepository     { return &pgParkingLotRepository{q: r.q} }
func (r pgRepos) ParkingBookings() ParkingBookingRepository {
	return &pgParkingBookingRepository{q: r.q}
}

// PostgresLedger stores reservations in PostgreSQL.
type PostgresLedger struct {
	pgRepos
	db *database.DB
}

func NewPostgresLedger(db *database.DB) *PostgresLedger {
	return &PostgresLedger{pgRepos: pgRepos{q: db.DB}, db: db}
}

func (l *PostgresLedger) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(pgRepos{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const uniqueViolation = pq.ErrorCode("23505")

// translate turns unique violations into ConstraintViolation and wraps
// everything else with op.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.ConstraintViolation(op, pqErr.Constraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
