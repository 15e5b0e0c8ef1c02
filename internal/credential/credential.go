// Package credential defines the scannable proof of a reservation: a tagged
// value per domain, its "<domain>:<id>" wire form and the QR image encoding.
package credential

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "smarthub/internal/errors"

	"github.com/google/uuid"
)

// Domain is a category of reservable resource.
type Domain string

const (
	DomainEvent    Domain = "event"
	DomainFacility Domain = "facility"
	DomainParking  Domain = "parking"
)

const separator = ":"

// Credential is implemented by EventCredential, FacilityCredential and
// ParkingCredential only.
type Credential interface {
	Domain() Domain
	// Payload is the text encoded into the QR image.
	Payload() string
	// ReservationID is the identifier part of the payload.
	ReservationID() string
	sealed()
}

// EventCredential proves an event registration.
type EventCredential struct {
	RegistrationID uuid.UUID
}

// FacilityCredential proves a facility booking.
type FacilityCredential struct {
	BookingID int64
}

// ParkingCredential proves a parking booking.
type ParkingCredential struct {
	BookingID int64
}

func (EventCredential) Domain() Domain    { return DomainEvent }
func (FacilityCredential) Domain() Domain { return DomainFacility }
func (ParkingCredential) Domain() Domain  { return DomainParking }

func (c EventCredential) ReservationID() string    { return c.RegistrationID.String() }
func (c FacilityCredential) ReservationID() string { return strconv.FormatInt(c.BookingID, 10) }
func (c ParkingCredential) ReservationID() string  { return strconv.FormatInt(c.BookingID, 10) }

func (c EventCredential) Payload() string    { return payload(c) }
func (c FacilityCredential) Payload() string { return payload(c) }
func (c ParkingCredential) Payload() string  { return payload(c) }

func (EventCredential) sealed()    {}
func (FacilityCredential) sealed() {}
func (ParkingCredential) sealed()  {}

func payload(c Credential) string {
	return string(c.Domain()) + separator + c.ReservationID()
}

// Parse decodes a scanned payload. Anything that is not a known domain
// followed by an identifier of that domain's type is ErrInvalidCredential.
func Parse(scanned string) (Credential, error) {
	const op = "credential.Parse"

	prefix, id, ok := strings.Cut(strings.TrimSpace(scanned), separator)
	if !ok || id == "" {
		return nil, apperrors.E(apperrors.KindInvalidCredential, op, fmt.Errorf("missing %q separator", separator))
	}

	switch Domain(prefix) {
	case DomainEvent:
		u, err := uuid.Parse(id)
		if err != nil {
			return nil, apperrors.E(apperrors.KindInvalidCredential, op, err)
		}
		return EventCredential{RegistrationID: u}, nil
	case DomainFacility:
		n, err := parseRowID(id)
		if err != nil {
			return nil, apperrors.E(apperrors.KindInvalidCredential, op, err)
		}
		return FacilityCredential{BookingID: n}, nil
	case DomainParking:
		n, err := parseRowID(id)
		if err != nil {
			return nil, apperrors.E(apperrors.KindInvalidCredential, op, err)
		}
		return ParkingCredential{BookingID: n}, nil
	default:
		return nil, apperrors.E(apperrors.KindInvalidCredential, op, fmt.Errorf("unknown domain %q", prefix))
	}
}

func parseRowID(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid booking id %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("booking id must be positive, got %d", n)
	}
	return n, nil
}
