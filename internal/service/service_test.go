package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smarthub/internal/credential"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/metrics"
	"smarthub/internal/models"
	"smarthub/internal/notify"
	"smarthub/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg *notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type failingNotifier struct{ calls atomic.Int32 }

func (n *failingNotifier) Send(context.Context, *notify.Message) error {
	n.calls.Add(1)
	return errors.New("smtp: connection refused")
}

// stuckNotifier ignores its context.
type stuckNotifier struct{ delay time.Duration }

func (n stuckNotifier) Send(context.Context, *notify.Message) error {
	time.Sleep(n.delay)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	fail     bool
}

func (p *recordingPublisher) Publish(subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("nats: connection closed")
	}
	p.subjects = append(p.subjects, subject)
	return nil
}

type fixture struct {
	ledger    *repository.MemoryLedger
	notifier  *recordingNotifier
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	svc       *Services

	alice, bob int64
	concert    *models.Event
	gym        *models.Facility
	lot        *models.ParkingLot
}

type option func(*Deps)

func withNotifier(n Notifier) option { return func(d *Deps) { d.Notifier = n } }

func withTimeout(t time.Duration) option { return func(d *Deps) { d.NotifyTimeout = t } }

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		ledger:    repository.NewMemoryLedger(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}

	f.alice = f.addUser(t, "alice@example.com")
	f.bob = f.addUser(t, "bob@example.com")

	f.concert = &models.Event{Title: "Jazz Night", StartsAt: time.Date(2024, 7, 1, 19, 0, 0, 0, time.UTC), Location: "Central Park", Price: "0.00"}
	require.NoError(t, f.ledger.Events().Create(ctx, f.concert))

	f.gym = &models.Facility{Name: "Gym A", Location: "Sports Center", Capacity: 30, Price: "10.00"}
	require.NoError(t, f.ledger.Facilities().Create(ctx, f.gym))

	f.lot = &models.ParkingLot{Name: "City Hall Garage", Location: "Main St", TotalCapacity: 1, RatePerHour: "2.50"}
	require.NoError(t, f.ledger.ParkingLots().Create(ctx, f.lot))

	deps := Deps{
		Ledger:    f.ledger,
		Encoder:   credential.NewQREncoder(0),
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Metrics:   f.metrics,
		Now:       func() time.Time { return time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewServices(deps)
	return f
}

func (f *fixture) addUser(t *testing.T, email string) int64 {
	t.Helper()
	u := &models.User{Email: email, FirstName: "Test", IsActive: true}
	require.NoError(t, f.ledger.Users().Create(context.Background(), u))
	return u.UserID
}

func (f *fixture) reservations(domain, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.Reservations.WithLabelValues(domain, outcome))
}

func slotRequest() *models.BookFacilityRequest {
	return &models.BookFacilityRequest{BookingDate: "2024-06-01", TimeSlot: models.SlotMorning}
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Events.Register(ctx, f.alice, f.concert.ID, &models.RegisterEventRequest{})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, reg.ID)
	assert.Equal(t, 1, reg.Tickets)
	require.NotNil(t, reg.Event)
	assert.Equal(t, "Jazz Night", reg.Event.Title)

	require.Equal(t, 1, f.notifier.count())
	msg := f.notifier.sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Your Registration Confirmation for Jazz Night", msg.Subject)
	require.NotNil(t, msg.Attachment)

	payload, err := credential.Decode(msg.Attachment.Data)
	require.NoError(t, err)
	assert.Equal(t, "event:"+reg.ID.String(), payload)

	assert.Equal(t, []string{models.EventReservationConfirmed}, f.publisher.subjects)
	assert.Equal(t, float64(1), f.reservations("event", metrics.OutcomeSuccess))
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	zero := 0

	_, err := f.svc.Events.Register(context.Background(), f.alice, f.concert.ID, &models.RegisterEventRequest{Tickets: &zero})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Events.Register(context.Background(), f.alice, 999, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Equal(t, 0, f.notifier.count())
	assert.Equal(t, float64(1), f.reservations("event", "validation"))
	assert.Equal(t, float64(1), f.reservations("event", "not_found"))
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Events.Register(ctx, f.alice, f.concert.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Events.Register(ctx, f.alice, f.concert.ID, nil)
	require.ErrorIs(t, err, apperrors.ErrDuplicateReservation)
	assert.Equal(t, "You are already registered for this event.", apperrors.Public(err))
	assert.Equal(t, 1, f.notifier.count())
}

func TestReserve_NotifierFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	fail := &failingNotifier{}
	f := newFixture(t, withNotifier(fail))

	_, err := f.svc.Events.Register(ctx, f.alice, f.concert.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)

	_, err = f.svc.Facilities.Book(ctx, f.alice, f.gym.ID, slotRequest())
	assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)

	_, err = f.svc.Parking.Book(ctx, f.alice, f.lot.ID, &models.BookParkingRequest{VehicleNumber: "ABC123", StartTime: time.Now()})
	assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)

	assert.Equal(t, int32(3), fail.calls.Load())

	regs, err := f.ledger.Registrations().ListByUser(ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, regs)
	bookings, err := f.ledger.Bookings().ListByUser(ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, bookings)
	active, err := f.ledger.ParkingLots().CountActive(ctx, f.lot.ID)
	require.NoError(t, err)
	assert.Zero(t, active)

	assert.Empty(t, f.publisher.subjects)
	assert.Equal(t, float64(1), f.reservations("facility", "delivery_failed"))

	// the rolled back slot is free again
	f.svc = NewServices(Deps{Ledger: f.ledger, Encoder: credential.NewQREncoder(0), Notifier: f.notifier})
	_, err = f.svc.Facilities.Book(ctx, f.bob, f.gym.ID, slotRequest())
	assert.NoError(t, err)
}

func TestReserve_NotifierTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withNotifier(stuckNotifier{delay: 2 * time.Second}), withTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := f.svc.Facilities.Book(ctx, f.alice, f.gym.ID, slotRequest())
	require.ErrorIs(t, err, apperrors.ErrDeliveryFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	bookings, err := f.ledger.Bookings().ListByUser(ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestFacilityBook_ConcurrentSlotConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	users := make([]int64, n)
	for i := range users {
		users[i] = f.addUser(t, fmt.Sprintf("user%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Facilities.Book(ctx, users[i], f.gym.ID, slotRequest())
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrSlotConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, float64(n-1), f.reservations("facility", "slot_conflict"))
}

func TestFacilityBook_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Facilities.Book(ctx, f.alice, f.gym.ID, &models.BookFacilityRequest{BookingDate: "01/06/2024", TimeSlot: models.SlotMorning})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Facilities.Book(ctx, f.alice, f.gym.ID, &models.BookFacilityRequest{BookingDate: "2024-06-01", TimeSlot: "07:00-08:00"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Facilities.Book(ctx, f.alice, 404, slotRequest())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGymScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Facilities.Book(ctx, f.alice, f.gym.ID, slotRequest())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", booking.BookingDate.String())
	assert.Equal(t, models.SlotMorning, booking.TimeSlot)

	_, err = f.svc.Facilities.Book(ctx, f.bob, f.gym.ID, slotRequest())
	require.ErrorIs(t, err, apperrors.ErrSlotConflict)

	payload, err := credential.Decode(f.notifier.sent[0].Attachment.Data)
	require.NoError(t, err)

	resp, err := f.svc.CheckIn.CheckIn(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, "Checked in to Gym A", resp.Message)
	require.NotNil(t, resp.CheckedInAt)

	_, err = f.svc.CheckIn.CheckIn(ctx, payload)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCheckedIn)
}

func TestParkingBook_CapacityUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Parking.Book(ctx, f.alice, f.lot.ID, &models.BookParkingRequest{
				VehicleNumber: fmt.Sprintf("CAR%d", i),
				StartTime:     time.Now(),
			})
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	active, err := f.ledger.ParkingLots().CountActive(ctx, f.lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	lots, err := f.svc.Parking.ListLots(ctx)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Zero(t, lots[0].AvailableSpaces)
	assert.True(t, lots[0].IsFull)
}

func TestParkingBook_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []models.BookParkingRequest{
		{VehicleNumber: "   ", StartTime: time.Now()},
		{VehicleNumber: "ABCDEFGHIJKLMNOPQRSTUVWXYZ", StartTime: time.Now()},
		{VehicleNumber: "ABC123"},
	}
	for _, req := range cases {
		_, err := f.svc.Parking.Book(ctx, f.alice, f.lot.ID, &req)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "request %+v", req)
	}
}

func TestParking_CompleteAndCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Parking.Book(ctx, f.alice, f.lot.ID, &models.BookParkingRequest{VehicleNumber: " KZ 777 ", StartTime: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "KZ 777", b.VehicleNumber)
	assert.Equal(t, "Parking Reserved: City Hall Garage", f.notifier.sent[0].Subject)

	payload := credential.ParkingCredential{BookingID: b.ID}.Payload()
	resp, err := f.svc.CheckIn.CheckIn(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, "Access Granted: KZ 777", resp.Message)
	assert.Equal(t, "KZ 777", resp.VehicleNumber)

	// parking check-in does not consume the credential
	_, err = f.svc.CheckIn.CheckIn(ctx, payload)
	require.NoError(t, err)

	_, err = f.svc.Parking.Complete(ctx, f.bob, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	done, err := f.svc.Parking.Complete(ctx, f.alice, b.ID)
	require.NoError(t, err)
	assert.False(t, done.IsActive)

	_, err = f.svc.Parking.Complete(ctx, f.alice, b.ID)
	assert.ErrorIs(t, err, apperrors.ErrExpiredReservation)

	_, err = f.svc.CheckIn.CheckIn(ctx, payload)
	require.ErrorIs(t, err, apperrors.ErrExpiredReservation)
	assert.Equal(t, "Booking Expired", apperrors.Public(err))

	_, err = f.svc.Parking.Complete(ctx, f.alice, 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// the space is free again
	_, err = f.svc.Parking.Book(ctx, f.bob, f.lot.ID, &models.BookParkingRequest{VehicleNumber: "B2", StartTime: time.Now()})
	assert.NoError(t, err)
}

func TestCheckIn_EventTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Events.Register(ctx, f.alice, f.concert.ID, nil)
	require.NoError(t, err)

	resp, err := f.svc.CheckIn.CheckIn(ctx, "event:"+reg.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Jazz Night!", resp.Message)

	stored, err := f.ledger.Registrations().GetByID(ctx, reg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AttendedAt)

	_, err = f.svc.CheckIn.CheckIn(ctx, "event:"+reg.ID.String())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCheckedIn)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CheckIns.WithLabelValues("event", metrics.OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CheckIns.WithLabelValues("event", "already_checked_in")))
	assert.Contains(t, f.publisher.subjects, models.EventCheckInCompleted)
}

func TestCheckIn_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn.CheckIn(ctx, "bogus")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)

	_, err = f.svc.CheckIn.CheckIn(ctx, "event:"+uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrCredentialNotFound)

	_, err = f.svc.CheckIn.CheckIn(ctx, "facility:42")
	assert.ErrorIs(t, err, apperrors.ErrCredentialNotFound)

	_, err = f.svc.CheckIn.CheckInImage(ctx, []byte("not an image"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
}

func TestCheckInImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Events.Register(ctx, f.alice, f.concert.ID, nil)
	require.NoError(t, err)

	resp, err := f.svc.CheckIn.CheckInImage(ctx, f.notifier.sent[0].Attachment.Data)
	require.NoError(t, err)
	assert.Equal(t, reg.ID.String(), resp.ReservationID)
}

func TestPublishFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.publisher.fail = true

	_, err := f.svc.Facilities.Book(context.Background(), f.alice, f.gym.ID, slotRequest())
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PublishFailures.WithLabelValues(models.EventReservationConfirmed)))
	assert.Equal(t, float64(1), f.reservations("facility", metrics.OutcomeSuccess))
}

func TestEventList_SearchFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := &models.Event{Title: "Food Fair", StartsAt: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	require.NoError(t, f.ledger.Events().Create(ctx, second))

	o := f.svc.Events.o
	svc := NewEventService(o, stubSearcher{ids: []int64{f.concert.ID}})
	events, err := svc.List(ctx, "jazz")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Jazz Night", events[0].Title)

	svc = NewEventService(o, stubSearcher{err: errors.New("index unavailable")})
	events, err = svc.List(ctx, "jazz")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Food Fair", events[0].Title)
}

type stubSearcher struct {
	ids []int64
	err error
}

func (s stubSearcher) SearchEventIDs(context.Context, string, int) ([]int64, error) {
	return s.ids, s.err
}
