package service

import (
	"context"
	"fmt"

	"smarthub/internal/credential"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/logger"
	"smarthub/internal/metrics"
	"smarthub/internal/models"
)

// CheckInService validates scanned credentials at the venue.
type CheckInService struct {
	o *Orchestrator
}

func NewCheckInService(o *Orchestrator) *CheckInService {
	return &CheckInService{o: o}
}

// CheckIn accepts the text decoded from a credential, "<domain>:<id>".
func (s *CheckInService) CheckIn(ctx context.Context, scanned string) (*models.CheckInResponse, error) {
	cred, err := credential.Parse(scanned)
	if err != nil {
		s.o.metrics.ObserveCheckIn("unknown", apperrors.KindOf(err).String())
		return nil, err
	}

	var resp *models.CheckInResponse
	switch c := cred.(type) {
	case credential.EventCredential:
		resp, err = s.checkInEvent(ctx, c)
	case credential.FacilityCredential:
		resp, err = s.checkInFacility(ctx, c)
	case credential.ParkingCredential:
		resp, err = s.checkInParking(ctx, c)
	default:
		err = apperrors.E(apperrors.KindInvalidCredential, "checkin", fmt.Errorf("unsupported credential %T", cred))
	}

	domain := string(cred.Domain())
	log := logger.WithContext(ctx).With("domain", domain, "reservation_id", cred.ReservationID())
	if err != nil {
		s.o.metrics.ObserveCheckIn(domain, apperrors.KindOf(err).String())
		log.Info("Check-in rejected", "error", err)
		return nil, err
	}
	s.o.metrics.ObserveCheckIn(domain, metrics.OutcomeSuccess)
	log.Info("Check-in accepted")

	s.o.publish(ctx, models.EventCheckInCompleted, models.CheckInCompletedEvent{
		Domain:        domain,
		ReservationID: resp.ReservationID,
		Message:       resp.Message,
		Timestamp:     s.o.now(),
	})
	return resp, nil
}

// CheckInImage decodes an uploaded photo of a credential and checks it in.
func (s *CheckInService) CheckInImage(ctx context.Context, img []byte) (*models.CheckInResponse, error) {
	payload, err := credential.Decode(img)
	if err != nil {
		s.o.metrics.ObserveCheckIn("unknown", apperrors.KindInvalidCredential.String())
		return nil, &apperrors.Error{Kind: apperrors.KindInvalidCredential, Op: "checkin.Image", Msg: "no readable QR code in image", Err: err}
	}
	return s.CheckIn(ctx, payload)
}

func (s *CheckInService) checkInEvent(ctx context.Context, c credential.EventCredential) (*models.CheckInResponse, error) {
	const op = "checkin.Event"
	regs := s.o.ledger.Registrations()

	reg, err := regs.GetByID(ctx, c.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	if reg == nil {
		return nil, apperrors.E(apperrors.KindCredentialNotFound, op, nil)
	}
	if reg.AttendedAt != nil {
		return nil, alreadyCheckedIn(op)
	}

	now := s.o.now()
	ok, err := regs.MarkAttended(ctx, reg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark attendance: %w", err)
	}
	if !ok {
		return nil, alreadyCheckedIn(op)
	}

	title := ""
	if reg.Event != nil {
		title = reg.Event.Title
	}
	return &models.CheckInResponse{
		Message:       "Welcome to " + title + "!",
		Domain:        string(c.Domain()),
		ReservationID: c.ReservationID(),
		CheckedInAt:   &now,
	}, nil
}

func (s *CheckInService) checkInFacility(ctx context.Context, c credential.FacilityCredential) (*models.CheckInResponse, error) {
	const op = "checkin.Facility"
	bookings := s.o.ledger.Bookings()

	b, err := bookings.GetByID(ctx, c.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if b == nil {
		return nil, apperrors.E(apperrors.KindCredentialNotFound, op, nil)
	}
	if b.CheckedInAt != nil {
		return nil, alreadyCheckedIn(op)
	}

	now := s.o.now()
	ok, err := bookings.MarkCheckedIn(ctx, b.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark check-in: %w", err)
	}
	if !ok {
		return nil, alreadyCheckedIn(op)
	}

	name := ""
	if b.Facility != nil {
		name = b.Facility.Name
	}
	return &models.CheckInResponse{
		Message:       "Checked in to " + name,
		Domain:        string(c.Domain()),
		ReservationID: c.ReservationID(),
		CheckedInAt:   &now,
	}, nil
}

// checkInParking only validates the session; it does not change state.
func (s *CheckInService) checkInParking(ctx context.Context, c credential.ParkingCredential) (*models.CheckInResponse, error) {
	const op = "checkin.Parking"

	b, err := s.o.ledger.ParkingBookings().GetByID(ctx, c.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parking booking: %w", err)
	}
	if b == nil {
		return nil, apperrors.E(apperrors.KindCredentialNotFound, op, nil)
	}
	if !b.IsActive {
		return nil, &apperrors.Error{Kind: apperrors.KindExpiredReservation, Op: op, Msg: "Booking Expired"}
	}

	return &models.CheckInResponse{
		Message:       "Access Granted: " + b.VehicleNumber,
		Domain:        string(c.Domain()),
		ReservationID: c.ReservationID(),
		VehicleNumber: b.VehicleNumber,
	}, nil
}

func alreadyCheckedIn(op string) error {
	return &apperrors.Error{Kind: apperrors.KindAlreadyCheckedIn, Op: op, Msg: "Already Checked In"}
}
