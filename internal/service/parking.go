package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"smarthub/internal/credential"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/logger"
	"smarthub/internal/models"
	"smarthub/internal/notify"
	"smarthub/internal/repository"
)

const maxVehicleNumberLen = 20

type ParkingService struct {
	o *Orchestrator
}

func NewParkingService(o *Orchestrator) *ParkingService {
	return &ParkingService{o: o}
}

// ListLots returns every lot with its availability computed from the
// current number of active bookings.
func (s *ParkingService) ListLots(ctx context.Context) ([]models.ParkingLot, error) {
	lots, err := s.o.ledger.ParkingLots().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parking lots: %w", err)
	}
	active, err := s.o.ledger.ParkingLots().CountActiveByLot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active bookings: %w", err)
	}
	for i := range lots {
		lots[i] = lots[i].WithAvailability(active[lots[i].ID])
	}
	return lots, nil
}

// Book reserves a space for a vehicle. Capacity is checked once before the
// transaction and again under a row lock on the lot, which is the check
// that decides concurrent requests.
func (s *ParkingService) Book(ctx context.Context, userID, lotID int64, req *models.BookParkingRequest) (*models.ParkingBooking, error) {
	const op = "parking.Book"
	domain := credential.DomainParking

	vehicle := strings.TrimSpace(req.VehicleNumber)
	switch {
	case vehicle == "":
		return nil, s.o.reject(domain, apperrors.Validation(op, "vehicle_number is required"))
	case len(vehicle) > maxVehicleNumberLen:
		return nil, s.o.reject(domain, apperrors.Validation(op, "vehicle_number must be at most %d characters", maxVehicleNumberLen))
	case req.StartTime.IsZero():
		return nil, s.o.reject(domain, apperrors.Validation(op, "start_time is required"))
	}

	lot, err := s.o.ledger.ParkingLots().GetByID(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parking lot: %w", err)
	}
	if lot == nil {
		return nil, s.o.reject(domain, apperrors.NotFound(op, "parking lot"))
	}
	active, err := s.o.ledger.ParkingLots().CountActive(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active bookings: %w", err)
	}
	if lot.WithAvailability(active).IsFull {
		return nil, s.o.reject(domain, full(op))
	}

	var to string
	return reserve(ctx, s.o, reservation[*models.ParkingBooking]{
		domain:   domain,
		op:       op,
		conflict: apperrors.KindCapacityExceeded,
		write: func(ctx context.Context, tx repository.Repositories) (*models.ParkingBooking, error) {
			user, err := recipient(ctx, tx, op, userID)
			if err != nil {
				return nil, err
			}
			to = user.Email

			locked, err := tx.ParkingLots().GetForUpdate(ctx, lotID)
			if err != nil {
				return nil, fmt.Errorf("failed to lock parking lot: %w", err)
			}
			if locked == nil {
				return nil, apperrors.NotFound(op, "parking lot")
			}
			active, err := tx.ParkingLots().CountActive(ctx, lotID)
			if err != nil {
				return nil, fmt.Errorf("failed to count active bookings: %w", err)
			}
			if active >= locked.TotalCapacity {
				return nil, full(op)
			}

			b := &models.ParkingBooking{
				UserID:        userID,
				ParkingLotID:  lotID,
				VehicleNumber: vehicle,
				StartTime:     req.StartTime,
			}
			if err := tx.ParkingBookings().Create(ctx, b); err != nil {
				return nil, err
			}
			details := locked.WithAvailability(active + 1)
			b.ParkingLot = &details
			return b, nil
		},
		credential: func(b *models.ParkingBooking) credential.Credential {
			return credential.ParkingCredential{BookingID: b.ID}
		},
		message: func(b *models.ParkingBooking, qr []byte) (*notify.Message, error) {
			return notify.ParkingConfirmation(to, b.ParkingLot, b, qr)
		},
		confirmed: func(b *models.ParkingBooking) models.ReservationConfirmedEvent {
			return models.ReservationConfirmedEvent{
				Domain:        string(domain),
				ReservationID: strconv.FormatInt(b.ID, 10),
				UserID:        userID,
				TargetID:      lotID,
				Timestamp:     s.o.now(),
			}
		},
	})
}

func (s *ParkingService) ListBookings(ctx context.Context, userID int64) ([]models.ParkingBooking, error) {
	bookings, err := s.o.ledger.ParkingBookings().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parking bookings: %w", err)
	}
	return bookings, nil
}

// Complete ends an active parking session owned by userID.
func (s *ParkingService) Complete(ctx context.Context, userID, bookingID int64) (*models.ParkingBooking, error) {
	const op = "parking.Complete"

	b, err := s.o.ledger.ParkingBookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parking booking: %w", err)
	}
	if b == nil {
		return nil, apperrors.NotFound(op, "parking booking")
	}
	if b.UserID != userID {
		return nil, apperrors.E(apperrors.KindForbidden, op, nil)
	}

	ok, err := s.o.ledger.ParkingBookings().Deactivate(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete parking booking: %w", err)
	}
	if !ok {
		return nil, apperrors.E(apperrors.KindExpiredReservation, op, nil)
	}
	b.IsActive = false

	logger.WithContext(ctx).Info("Parking session completed", "booking_id", bookingID, "vehicle_number", b.VehicleNumber)
	return b, nil
}

func full(op string) error {
	return &apperrors.Error{Kind: apperrors.KindCapacityExceeded, Op: op, Msg: "Parking Lot is Full!"}
}
