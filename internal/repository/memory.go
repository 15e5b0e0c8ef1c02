package repository

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "smarthub/internal/errors"
	"smarthub/internal/models"

	"github.com/google/uuid"
)

// MemoryLedger keeps every table in process memory and enforces the same
// uniqueness rules as the Postgres schema.
//
// Transactions run one at a time. Each works on a snapshot of the state and
// records its writes; commit replays them on the current state, re-checking
// constraints, so reads and single-statement writes outside a transaction
// never wait for a transaction body (the notification call included). Ids
// come from counters that live outside the snapshot and are never reused,
// like Postgres sequences.
type MemoryLedger struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memState
	ids   *sequences
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{state: newMemState(), ids: &sequences{last: map[string]int64{}}}
}

type sequences struct {
	mu   sync.Mutex
	last map[string]int64
}

func (s *sequences) next(table string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[table]++
	return s.last[table]
}

type memState struct {
	users           map[int64]models.User
	events          map[int64]models.Event
	registrations   map[uuid.UUID]models.Registration
	facilities      map[int64]models.Facility
	bookings        map[int64]models.Booking
	parkingLots     map[int64]models.ParkingLot
	parkingBookings map[int64]models.ParkingBooking
}

func newMemState() *memState {
	return &memState{
		users:           map[int64]models.User{},
		events:          map[int64]models.Event{},
		registrations:   map[uuid.UUID]models.Registration{},
		facilities:      map[int64]models.Facility{},
		bookings:        map[int64]models.Booking{},
		parkingLots:     map[int64]models.ParkingLot{},
		parkingBookings: map[int64]models.ParkingBooking{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		users:           maps.Clone(s.users),
		events:          maps.Clone(s.events),
		registrations:   maps.Clone(s.registrations),
		facilities:      maps.Clone(s.facilities),
		bookings:        maps.Clone(s.bookings),
		parkingLots:     maps.Clone(s.parkingLots),
		parkingBookings: maps.Clone(s.parkingBookings),
	}
}

// errStaleRow is returned on commit when a row a transaction updated was
// changed by someone else in the meantime.
var errStaleRow = errors.New("row changed by a concurrent write")

// memOp is one write. It must be deterministic: ids and timestamps are
// chosen before the op is built so a replay stores the same row.
type memOp func(st *memState) error

type memTxState struct {
	work *memState
	ops  []memOp
}

// memRepos reads and writes the committed state, or the snapshot of tx when
// it is set.
type memRepos struct {
	l  *MemoryLedger
	tx *memTxState
}

func (r memRepos) read(fn func(st *memState)) {
	if r.tx != nil {
		fn(r.tx.work)
		return
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	fn(r.l.state)
}

func (r memRepos) write(op memOp) error {
	if r.tx != nil {
		if err := op(r.tx.work); err != nil {
			return err
		}
		r.tx.ops = append(r.tx.ops, op)
		return nil
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return op(r.l.state)
}

// compareAndSet applies update and reports whether it matched a row.
func (r memRepos) compareAndSet(update func(st *memState) bool) bool {
	return r.write(func(st *memState) error {
		if !update(st) {
			return errStaleRow
		}
		return nil
	}) == nil
}

func (l *MemoryLedger) repos() memRepos { return memRepos{l: l} }

func (l *MemoryLedger) Users() UserRepository                 { return memUsers{l.repos()} }
func (l *MemoryLedger) Events() EventRepository               { return memEvents{l.repos()} }
func (l *MemoryLedger) Registrations() RegistrationRepository { return memRegistrations{l.repos()} }
func (l *MemoryLedger) Facilities() FacilityRepository        { return memFacilities{l.repos()} }
func (l *MemoryLedger) Bookings() BookingRepository           { return memBookings{l.repos()} }
func (l *MemoryLedger) ParkingLots() ParkingLotRepository     { return memParkingLots{l.repos()} }
func (l *MemoryLedger) ParkingBookings() ParkingBookingRepository {
	return memParkingBookings{l.repos()}
}

func (l *MemoryLedger) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	tx := &memTxState{work: l.state.clone()}
	l.mu.Unlock()

	if err := fn(memTx{memRepos{l: l, tx: tx}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.commit(tx.ops)
}

func (l *MemoryLedger) commit(ops []memOp) error {
	if len(ops) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.clone()
	for _, op := range ops {
		if err := op(next); err != nil {
			if errors.Is(err, errStaleRow) {
				return apperrors.ConstraintViolation("memory.Commit", "concurrent_update", err)
			}
			return err
		}
	}
	l.state = next
	return nil
}

type memTx struct {
	r memRepos
}

func (t memTx) Users() UserRepository                     { return memUsers{t.r} }
func (t memTx) Events() EventRepository                   { return memEvents{t.r} }
func (t memTx) Registrations() RegistrationRepository     { return memRegistrations{t.r} }
func (t memTx) Facilities() FacilityRepository            { return memFacilities{t.r} }
func (t memTx) Bookings() BookingRepository               { return memBookings{t.r} }
func (t memTx) ParkingLots() ParkingLotRepository         { return memParkingLots{t.r} }
func (t memTx) ParkingBookings() ParkingBookingRepository { return memParkingBookings{t.r} }

type memUsers struct{ memRepos }

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	var found *models.User
	r.read(func(st *memState) {
		if u, ok := st.users[id]; ok {
			found = &u
		}
	})
	return found, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var found *models.User
	r.read(func(st *memState) {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				found = &u
				return
			}
		}
	})
	return found, nil
}

func (r memUsers) Create(_ context.Context, user *models.User) error {
	row := *user
	row.UserID = r.l.ids.next("users")
	row.RegisteredAt = time.Now()
	err := r.write(func(st *memState) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, row.Email) {
				return apperrors.ConstraintViolation("users.Create", "users_email_key", nil)
			}
		}
		st.users[row.UserID] = row
		return nil
	})
	if err != nil {
		return err
	}
	*user = row
	return nil
}

type memEvents struct{ memRepos }

func (r memEvents) GetByID(_ context.Context, id int64) (*models.Event, error) {
	var found *models.Event
	r.read(func(st *memState) {
		if e, ok := st.events[id]; ok {
			found = &e
		}
	})
	return found, nil
}

func (r memEvents) List(_ context.Context) ([]models.Event, error) {
	var events []models.Event
	r.read(func(st *memState) {
		events = valuesSorted(st.events, func(a, b models.Event) bool {
			if !a.StartsAt.Equal(b.StartsAt) {
				return a.StartsAt.Before(b.StartsAt)
			}
			return a.ID < b.ID
		})
	})
	return events, nil
}

func (r memEvents) ListByIDs(_ context.Context, ids []int64) ([]models.Event, error) {
	events := []models.Event{}
	r.read(func(st *memState) {
		for _, id := range ids {
			if e, ok := st.events[id]; ok {
				events = append(events, e)
			}
		}
	})
	return events, nil
}

func (r memEvents) Create(_ context.Context, event *models.Event) error {
	row := *event
	row.ID = r.l.ids.next("events")
	row.CreatedAt = time.Now()
	if err := r.write(func(st *memState) error {
		st.events[row.ID] = row
		return nil
	}); err != nil {
		return err
	}
	*event = row
	return nil
}

type memRegistrations struct{ memRepos }

func (r memRegistrations) Create(_ context.Context, reg *models.Registration) error {
	row := *reg
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.RegisteredAt = time.Now()
	row.Event = nil
	err := r.write(func(st *memState) error {
		for _, existing := range st.registrations {
			if existing.UserID == row.UserID && existing.EventID == row.EventID {
				return apperrors.ConstraintViolation("registrations.Create", "registrations_user_event_key", nil)
			}
		}
		st.registrations[row.ID] = row
		return nil
	})
	if err != nil {
		return err
	}
	reg.ID = row.ID
	reg.RegisteredAt = row.RegisteredAt
	return nil
}

func (r memRegistrations) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	var found *models.Registration
	r.read(func(st *memState) {
		reg, ok := st.registrations[id]
		if !ok {
			return
		}
		if e, ok := st.events[reg.EventID]; ok {
			reg.Event = &e
		}
		found = &reg
	})
	return found, nil
}

func (r memRegistrations) Exists(_ context.Context, userID, eventID int64) (bool, error) {
	exists := false
	r.read(func(st *memState) {
		for _, reg := range st.registrations {
			if reg.UserID == userID && reg.EventID == eventID {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (r memRegistrations) MarkAttended(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.compareAndSet(func(st *memState) bool {
		reg, ok := st.registrations[id]
		if !ok || reg.AttendedAt != nil {
			return false
		}
		reg.AttendedAt = &at
		st.registrations[id] = reg
		return true
	}), nil
}

func (r memRegistrations) ListByUser(_ context.Context, userID int64) ([]models.Registration, error) {
	regs := []models.Registration{}
	r.read(func(st *memState) {
		for _, reg := range st.registrations {
			if reg.UserID != userID {
				continue
			}
			if e, ok := st.events[reg.EventID]; ok {
				reg.Event = &e
			}
			regs = append(regs, reg)
		}
	})
	sort.Slice(regs, func(i, j int) bool {
		a, b := regs[i], regs[j]
		if a.Event != nil && b.Event != nil && !a.Event.StartsAt.Equal(b.Event.StartsAt) {
			return a.Event.StartsAt.Before(b.Event.StartsAt)
		}
		return a.RegisteredAt.Before(b.RegisteredAt)
	})
	return regs, nil
}

type memFacilities struct{ memRepos }

func (r memFacilities) GetByID(_ context.Context, id int64) (*models.Facility, error) {
	var found *models.Facility
	r.read(func(st *memState) {
		if f, ok := st.facilities[id]; ok {
			found = &f
		}
	})
	return found, nil
}

func (r memFacilities) List(_ context.Context) ([]models.Facility, error) {
	var facilities []models.Facility
	r.read(func(st *memState) {
		facilities = valuesSorted(st.facilities, func(a, b models.Facility) bool { return a.Name < b.Name })
	})
	return facilities, nil
}

func (r memFacilities) Create(_ context.Context, f *models.Facility) error {
	row := *f
	row.ID = r.l.ids.next("facilities")
	if err := r.write(func(st *memState) error {
		st.facilities[row.ID] = row
		return nil
	}); err != nil {
		return err
	}
	*f = row
	return nil
}

type memBookings struct{ memRepos }

func (r memBookings) Create(_ context.Context, b *models.Booking) error {
	row := *b
	row.ID = r.l.ids.next("facility_bookings")
	row.CreatedAt = time.Now()
	row.Facility = nil
	err := r.write(func(st *memState) error {
		for _, existing := range st.bookings {
			if existing.FacilityID == row.FacilityID &&
				existing.BookingDate.Equal(row.BookingDate.Time) &&
				existing.TimeSlot == row.TimeSlot {
				return apperrors.ConstraintViolation("facility_bookings.Create", "facility_bookings_slot_key", nil)
			}
		}
		st.bookings[row.ID] = row
		return nil
	})
	if err != nil {
		return err
	}
	b.ID = row.ID
	b.CreatedAt = row.CreatedAt
	return nil
}

func (r memBookings) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	var found *models.Booking
	r.read(func(st *memState) {
		b, ok := st.bookings[id]
		if !ok {
			return
		}
		if f, ok := st.facilities[b.FacilityID]; ok {
			b.Facility = &f
		}
		found = &b
	})
	return found, nil
}

func (r memBookings) MarkCheckedIn(_ context.Context, id int64, at time.Time) (bool, error) {
	return r.compareAndSet(func(st *memState) bool {
		b, ok := st.bookings[id]
		if !ok || b.CheckedInAt != nil {
			return false
		}
		b.CheckedInAt = &at
		st.bookings[id] = b
		return true
	}), nil
}

func (r memBookings) ListByUser(_ context.Context, userID int64) ([]models.Booking, error) {
	bookings := []models.Booking{}
	r.read(func(st *memState) {
		for _, b := range st.bookings {
			if b.UserID != userID {
				continue
			}
			if f, ok := st.facilities[b.FacilityID]; ok {
				b.Facility = &f
			}
			bookings = append(bookings, b)
		}
	})
	sort.Slice(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if !a.BookingDate.Equal(b.BookingDate.Time) {
			return a.BookingDate.After(b.BookingDate.Time)
		}
		return a.TimeSlot < b.TimeSlot
	})
	return bookings, nil
}

type memParkingLots struct{ memRepos }

func (r memParkingLots) GetByID(_ context.Context, id int64) (*models.ParkingLot, error) {
	var found *models.ParkingLot
	r.read(func(st *memState) {
		if lot, ok := st.parkingLots[id]; ok {
			found = &lot
		}
	})
	return found, nil
}

// GetForUpdate needs no extra locking: transactions already run one at a time.
func (r memParkingLots) GetForUpdate(ctx context.Context, id int64) (*models.ParkingLot, error) {
	return r.GetByID(ctx, id)
}

func (r memParkingLots) List(_ context.Context) ([]models.ParkingLot, error) {
	var lots []models.ParkingLot
	r.read(func(st *memState) {
		lots = valuesSorted(st.parkingLots, func(a, b models.ParkingLot) bool { return a.Name < b.Name })
	})
	return lots, nil
}

func (r memParkingLots) Create(_ context.Context, lot *models.ParkingLot) error {
	row := *lot
	row.ID = r.l.ids.next("parking_lots")
	if err := r.write(func(st *memState) error {
		st.parkingLots[row.ID] = row
		return nil
	}); err != nil {
		return err
	}
	*lot = row
	return nil
}

func (r memParkingLots) CountActive(_ context.Context, lotID int64) (int, error) {
	n := 0
	r.read(func(st *memState) {
		for _, b := range st.parkingBookings {
			if b.ParkingLotID == lotID && b.IsActive {
				n++
			}
		}
	})
	return n, nil
}

func (r memParkingLots) CountActiveByLot(_ context.Context) (map[int64]int, error) {
	counts := make(map[int64]int)
	r.read(func(st *memState) {
		for _, b := range st.parkingBookings {
			if b.IsActive {
				counts[b.ParkingLotID]++
			}
		}
	})
	return counts, nil
}

type memParkingBookings struct{ memRepos }

func (r memParkingBookings) Create(_ context.Context, b *models.ParkingBooking) error {
	row := *b
	row.ID = r.l.ids.next("parking_bookings")
	row.IsActive = true
	row.CreatedAt = time.Now()
	row.ParkingLot = nil
	if err := r.write(func(st *memState) error {
		st.parkingBookings[row.ID] = row
		return nil
	}); err != nil {
		return err
	}
	b.ID = row.ID
	b.IsActive = true
	b.CreatedAt = row.CreatedAt
	return nil
}

func (r memParkingBookings) GetByID(_ context.Context, id int64) (*models.ParkingBooking, error) {
	var found *models.ParkingBooking
	r.read(func(st *memState) {
		b, ok := st.parkingBookings[id]
		if !ok {
			return
		}
		if lot, ok := st.parkingLots[b.ParkingLotID]; ok {
			b.ParkingLot = &lot
		}
		found = &b
	})
	return found, nil
}

func (r memParkingBookings) ListByUser(_ context.Context, userID int64) ([]models.ParkingBooking, error) {
	bookings := []models.ParkingBooking{}
	r.read(func(st *memState) {
		for _, b := range st.parkingBookings {
			if b.UserID != userID {
				continue
			}
			if lot, ok := st.parkingLots[b.ParkingLotID]; ok {
				b.ParkingLot = &lot
			}
			bookings = append(bookings, b)
		}
	})
	sort.Slice(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return bookings, nil
}

func (r memParkingBookings) Deactivate(_ context.Context, id int64) (bool, error) {
	return r.compareAndSet(func(st *memState) bool {
		b, ok := st.parkingBookings[id]
		if !ok || !b.IsActive {
			return false
		}
		b.IsActive = false
		st.parkingBookings[id] = b
		return true
	}), nil
}

func valuesSorted[K comparable, V any](m map[K]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
