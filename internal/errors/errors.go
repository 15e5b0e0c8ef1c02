package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// Kind classifies a failure so the transport layer can pick a status code
// and clients can decide whether a retry makes sense.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDuplicateReservation
	KindSlotConflict
	KindCapacityExceeded
	KindDeliveryFailed
	KindCredentialNotFound
	KindInvalidCredential
	KindAlreadyCheckedIn
	KindExpiredReservation
	KindConstraintViolation
	KindUnauthorized
	KindForbidden
)

var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateReservation = errors.New("already registered for this event")
	ErrSlotConflict         = errors.New("this time slot is already booked for this date")
	ErrCapacityExceeded     = errors.New("parking lot is full")
	ErrDeliveryFailed       = errors.New("confirmation delivery failed")
	ErrCredentialNotFound   = errors.New("booking not found")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrAlreadyCheckedIn     = errors.New("already checked in")
	ErrExpiredReservation   = errors.New("booking expired")
	ErrConstraintViolation  = errors.New("constraint violation")
)

var sentinels = map[Kind]error{
	KindValidation:           ErrValidation,
	KindNotFound:             ErrNotFound,
	KindDuplicateReservation: ErrDuplicateReservation,
	KindSlotConflict:         ErrSlotConflict,
	KindCapacityExceeded:     ErrCapacityExceeded,
	KindDeliveryFailed:       ErrDeliveryFailed,
	KindCredentialNotFound:   ErrCredentialNotFound,
	KindInvalidCredential:    ErrInvalidCredential,
	KindAlreadyCheckedIn:     ErrAlreadyCheckedIn,
	KindExpiredReservation:   ErrExpiredReservation,
	KindConstraintViolation:  ErrConstraintViolation,
	KindUnauthorized:         ErrUnauthorized,
	KindForbidden:            ErrForbidden,
}

// Error is a classified failure. Op names the operation that failed and Err,
// when set, is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		if s, ok := sentinels[e.Kind]; ok {
			msg = s.Error()
		} else {
			msg = "internal error"
		}
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against the sentinel of the error's kind, so
// errors.Is(err, ErrSlotConflict) works on wrapped *Error values.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// E builds a classified error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation reports a malformed or missing request field.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing reservation target.
func NotFound(op, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: what + " not found"}
}

// DeliveryFailed wraps a notifier or encoder failure that aborted a reservation.
func DeliveryFailed(op string, err error) *Error {
	return &Error{Kind: KindDeliveryFailed, Op: op, Err: err}
}

// ConstraintViolation is returned by ledgers when a uniqueness rule rejects a write.
func ConstraintViolation(op, constraint string, err error) *Error {
	return &Error{Kind: KindConstraintViolation, Op: op, Msg: "constraint violation: " + constraint, Err: err}
}

// KindOf extracts the kind of err, falling back to sentinel matching and
// finally KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidCredential, KindAlreadyCheckedIn, KindExpiredReservation:
		return http.StatusBadRequest
	case KindNotFound, KindCredentialNotFound:
		return http.StatusNotFound
	case KindDuplicateReservation, KindSlotConflict, KindCapacityExceeded, KindConstraintViolation:
		return http.StatusConflict
	case KindDeliveryFailed:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message safe to show to API clients. Internal errors
// are collapsed so storage details never leak.
func Public(err error) string {
	if KindOf(err) == KindInternal {
		return "internal server error"
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if s, ok := sentinels[e.Kind]; ok {
			return s.Error()
		}
	}
	return err.Error()
}

// String returns the lowercase label used in metrics.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDuplicateReservation:
		return "duplicate_reservation"
	case KindSlotConflict:
		return "slot_conflict"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindDeliveryFailed:
		return "delivery_failed"
	case KindCredentialNotFound:
		return "credential_not_found"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindAlreadyCheckedIn:
		return "already_checked_in"
	case KindExpiredReservation:
		return "expired_reservation"
	case KindConstraintViolation:
		return "constraint_violation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}
