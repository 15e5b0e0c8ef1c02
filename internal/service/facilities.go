package service

import (
	"context"
	"fmt"
	"strconv"

	"smarthub/internal/credential"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/models"
	"smarthub/internal/notify"
	"smarthub/internal/repository"
)

type FacilityService struct {
	o *Orchestrator
}

func NewFacilityService(o *Orchestrator) *FacilityService {
	return &FacilityService{o: o}
}

func (s *FacilityService) List(ctx context.Context) ([]models.Facility, error) {
	facilities, err := s.o.ledger.Facilities().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	return facilities, nil
}

func (s *FacilityService) Get(ctx context.Context, id int64) (*models.Facility, error) {
	facility, err := s.o.ledger.Facilities().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}
	if facility == nil {
		return nil, apperrors.NotFound("facilities.Get", "facility")
	}
	return facility, nil
}

func (s *FacilityService) TimeSlots() []models.TimeSlotOption {
	return models.TimeSlots()
}

// Book reserves one slot of a facility on a date. There is no pre-check:
// the ledger's unique key on (facility, date, slot) decides concurrent
// requests and the loser gets SlotConflict.
func (s *FacilityService) Book(ctx context.Context, userID, facilityID int64, req *models.BookFacilityRequest) (*models.Booking, error) {
	const op = "facilities.Book"
	domain := credential.DomainFacility

	date, err := models.ParseDate(req.BookingDate)
	if err != nil {
		return nil, s.o.reject(domain, apperrors.Validation(op, "booking_date must be YYYY-MM-DD"))
	}
	if !req.TimeSlot.Valid() {
		return nil, s.o.reject(domain, apperrors.Validation(op, "unknown time_slot %q", req.TimeSlot))
	}

	facility, err := s.Get(ctx, facilityID)
	if err != nil {
		return nil, s.o.reject(domain, err)
	}

	var to string
	return reserve(ctx, s.o, reservation[*models.Booking]{
		domain:   domain,
		op:       op,
		conflict: apperrors.KindSlotConflict,
		write: func(ctx context.Context, tx repository.Repositories) (*models.Booking, error) {
			user, err := recipient(ctx, tx, op, userID)
			if err != nil {
				return nil, err
			}
			to = user.Email

			b := &models.Booking{
				UserID:      userID,
				FacilityID:  facilityID,
				BookingDate: date,
				TimeSlot:    req.TimeSlot,
			}
			if err := tx.Bookings().Create(ctx, b); err != nil {
				return nil, err
			}
			b.Facility = facility
			return b, nil
		},
		credential: func(b *models.Booking) credential.Credential {
			return credential.FacilityCredential{BookingID: b.ID}
		},
		message: func(b *models.Booking, qr []byte) (*notify.Message, error) {
			return notify.FacilityConfirmation(to, facility, b, qr)
		},
		confirmed: func(b *models.Booking) models.ReservationConfirmedEvent {
			return models.ReservationConfirmedEvent{
				Domain:        string(domain),
				ReservationID: strconv.FormatInt(b.ID, 10),
				UserID:        userID,
				TargetID:      facilityID,
				Timestamp:     s.o.now(),
			}
		},
	})
}

func (s *FacilityService) ListBookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	bookings, err := s.o.ledger.Bookings().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}
