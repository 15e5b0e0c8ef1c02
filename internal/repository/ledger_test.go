package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"smarthub/internal/config"
	"smarthub/internal/database"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both ledgers run the same suite. The Postgres run needs a reachable
// database: DATABASE_URL, or the DB_* variables read by config.Load.

func TestLedger_Memory(t *testing.T) {
	runLedgerSuite(t, func(t *testing.T) Ledger { return NewMemoryLedger() })
}

func TestLedger_Postgres(t *testing.T) {
	db := openTestDB(t)
	runLedgerSuite(t, func(t *testing.T) Ledger {
		_, err := db.Exec(`TRUNCATE parking_bookings, parking_lots, facility_bookings, facilities,
			registrations, events, users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		return NewPostgresLedger(db)
	})
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" && os.Getenv("DB_HOST") == "" {
		t.Skip("DATABASE_URL or DB_HOST not set")
	}

	var db *database.DB
	if url != "" {
		sqlDB, err := sql.Open("postgres", url)
		require.NoError(t, err)
		require.NoError(t, sqlDB.Ping())
		db = &database.DB{DB: sqlDB}
	} else {
		var err error
		db, err = database.Connect(config.Load().Database)
		require.NoError(t, err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations())
	return db
}

type ledgerFixture struct {
	ledger   Ledger
	alice    *models.User
	bob      *models.User
	event    *models.Event
	facility *models.Facility
	lot      *models.ParkingLot
	date     models.Date
}

func newLedgerFixture(t *testing.T, l Ledger) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	f := &ledgerFixture{ledger: l}

	f.alice = &models.User{Email: "alice@example.com", PasswordHash: "x", FirstName: "Alice", IsActive: true}
	require.NoError(t, l.Users().Create(ctx, f.alice))
	f.bob = &models.User{Email: "bob@example.com", PasswordHash: "x", FirstName: "Bob", IsActive: true}
	require.NoError(t, l.Users().Create(ctx, f.bob))

	f.event = &models.Event{Title: "Jazz Night", Location: "Town Hall", StartsAt: time.Now().Add(48 * time.Hour).UTC(), Price: "0.00"}
	require.NoError(t, l.Events().Create(ctx, f.event))

	f.facility = &models.Facility{Name: "Gym A", Location: "Sports Complex", Capacity: 20, Price: "10.00"}
	require.NoError(t, l.Facilities().Create(ctx, f.facility))

	f.lot = &models.ParkingLot{Name: "Central", Location: "Main Street", TotalCapacity: 1, RatePerHour: "2.50"}
	require.NoError(t, l.ParkingLots().Create(ctx, f.lot))

	var err error
	f.date, err = models.ParseDate("2030-06-01")
	require.NoError(t, err)
	return f
}

func (f *ledgerFixture) booking(user *models.User, slot models.TimeSlot) *models.Booking {
	return &models.Booking{UserID: user.UserID, FacilityID: f.facility.ID, BookingDate: f.date, TimeSlot: slot}
}

// concurrently runs fn from n goroutines and returns every result.
func concurrently(n int, fn func(i int) error) []error {
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

var errLotFull = errors.New("lot full")

func runLedgerSuite(t *testing.T, newLedger func(t *testing.T) Ledger) {
	ctx := context.Background()

	t.Run("email is unique", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))

		err := f.ledger.Users().Create(ctx, &models.User{Email: "alice@example.com", PasswordHash: "y"})
		assert.Equal(t, apperrors.KindConstraintViolation, apperrors.KindOf(err))

		got, err := f.ledger.Users().GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, f.alice.UserID, got.UserID)
		assert.True(t, got.IsActive)
	})

	t.Run("missing rows are nil", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))

		u, err := f.ledger.Users().GetByID(ctx, 999)
		assert.NoError(t, err)
		assert.Nil(t, u)
		b, err := f.ledger.Bookings().GetByID(ctx, 999)
		assert.NoError(t, err)
		assert.Nil(t, b)
		pb, err := f.ledger.ParkingBookings().GetByID(ctx, 999)
		assert.NoError(t, err)
		assert.Nil(t, pb)
		reg, err := f.ledger.Registrations().GetByID(ctx, uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, reg)
	})

	t.Run("registration is unique per user and event", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))

		reg := &models.Registration{UserID: f.alice.UserID, EventID: f.event.ID, Tickets: 2}
		require.NoError(t, f.ledger.Registrations().Create(ctx, reg))
		assert.NotEqual(t, uuid.Nil, reg.ID)

		err := f.ledger.Registrations().Create(ctx, &models.Registration{UserID: f.alice.UserID, EventID: f.event.ID, Tickets: 1})
		assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)
		require.NoError(t, f.ledger.Registrations().Create(ctx, &models.Registration{UserID: f.bob.UserID, EventID: f.event.ID, Tickets: 1}))

		exists, err := f.ledger.Registrations().Exists(ctx, f.alice.UserID, f.event.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := f.ledger.Registrations().GetByID(ctx, reg.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotNil(t, got.Event)
		assert.Equal(t, "Jazz Night", got.Event.Title)
		assert.Equal(t, 2, got.Tickets)
		assert.Nil(t, got.AttendedAt)

		ok, err := f.ledger.Registrations().MarkAttended(ctx, reg.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = f.ledger.Registrations().MarkAttended(ctx, reg.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		mine, err := f.ledger.Registrations().ListByUser(ctx, f.alice.UserID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.NotNil(t, mine[0].AttendedAt)
	})

	t.Run("booking slot is unique and round-trips", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))

		b := f.booking(f.alice, models.SlotMorning)
		require.NoError(t, f.ledger.Bookings().Create(ctx, b))
		assert.NotZero(t, b.ID)

		err := f.ledger.Bookings().Create(ctx, f.booking(f.bob, models.SlotMorning))
		assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)
		require.NoError(t, f.ledger.Bookings().Create(ctx, f.booking(f.bob, models.SlotEvening)))

		got, err := f.ledger.Bookings().GetByID(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2030-06-01", got.BookingDate.String())
		assert.Equal(t, models.SlotMorning, got.TimeSlot)
		require.NotNil(t, got.Facility)
		assert.Equal(t, "Gym A", got.Facility.Name)
		assert.Nil(t, got.CheckedInAt)

		ok, err := f.ledger.Bookings().MarkCheckedIn(ctx, b.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = f.ledger.Bookings().MarkCheckedIn(ctx, b.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		mine, err := f.ledger.Bookings().ListByUser(ctx, f.alice.UserID)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.NotNil(t, mine[0].CheckedInAt)
	})

	t.Run("concurrent bookings of one slot admit exactly one", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))
		users := []*models.User{f.alice, f.bob}

		errs := concurrently(8, func(i int) error {
			return f.ledger.WithinTx(ctx, func(tx Repositories) error {
				return tx.Bookings().Create(ctx, f.booking(users[i%2], models.SlotAfternoon))
			})
		})

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.Equal(t, apperrors.KindConstraintViolation, apperrors.KindOf(err), err)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("lot of capacity one admits exactly one active booking", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))
		users := []*models.User{f.alice, f.bob}

		errs := concurrently(8, func(i int) error {
			return f.ledger.WithinTx(ctx, func(tx Repositories) error {
				lot, err := tx.ParkingLots().GetForUpdate(ctx, f.lot.ID)
				if err != nil {
					return err
				}
				active, err := tx.ParkingLots().CountActive(ctx, lot.ID)
				if err != nil {
					return err
				}
				if active >= lot.TotalCapacity {
					return errLotFull
				}
				return tx.ParkingBookings().Create(ctx, &models.ParkingBooking{
					UserID: users[i%2].UserID, ParkingLotID: lot.ID, VehicleNumber: "ABC123", StartTime: time.Now(),
				})
			})
		})

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, errLotFull)
		}
		assert.Equal(t, 1, succeeded)

		active, err := f.ledger.ParkingLots().CountActive(ctx, f.lot.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, active)
		counts, err := f.ledger.ParkingLots().CountActiveByLot(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[int64]int{f.lot.ID: 1}, counts)
	})

	t.Run("parking booking deactivates once", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))

		pb := &models.ParkingBooking{UserID: f.alice.UserID, ParkingLotID: f.lot.ID, VehicleNumber: "XYZ789", StartTime: time.Now()}
		require.NoError(t, f.ledger.ParkingBookings().Create(ctx, pb))
		assert.True(t, pb.IsActive)

		got, err := f.ledger.ParkingBookings().GetByID(ctx, pb.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotNil(t, got.ParkingLot)
		assert.Equal(t, "Central", got.ParkingLot.Name)

		ok, err := f.ledger.ParkingBookings().Deactivate(ctx, pb.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = f.ledger.ParkingBookings().Deactivate(ctx, pb.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		active, err := f.ledger.ParkingLots().CountActive(ctx, f.lot.ID)
		require.NoError(t, err)
		assert.Zero(t, active)
	})

	t.Run("rolled back writes are discarded and their ids never reused", func(t *testing.T) {
		f := newLedgerFixture(t, newLedger(t))
		boom := errors.New("boom")

		var rolledBack int64
		err := f.ledger.WithinTx(ctx, func(tx Repositories) error {
			b := f.booking(f.alice, models.SlotNight)
			if err := tx.Bookings().Create(ctx, b); err != nil {
				return err
			}
			rolledBack = b.ID
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.NotZero(t, rolledBack)

		gone, err := f.ledger.Bookings().GetByID(ctx, rolledBack)
		require.NoError(t, err)
		assert.Nil(t, gone)

		next := f.booking(f.bob, models.SlotNight)
		require.NoError(t, f.ledger.Bookings().Create(ctx, next))
		assert.Greater(t, next.ID, rolledBack)
	})
}
