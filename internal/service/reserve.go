package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smarthub/internal/credential"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/logger"
	"smarthub/internal/metrics"
	"smarthub/internal/models"
	"smarthub/internal/notify"
	"smarthub/internal/repository"
)

// Orchestrator runs the reservation workflow shared by all domains:
// ledger write, credential encoding and notification inside one
// transaction, followed by a best-effort domain event.
type Orchestrator struct {
	ledger    repository.Ledger
	encoder   Encoder
	notifier  Notifier
	publisher Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	now       func() time.Time
}

// reservation describes one domain's part of the workflow.
type reservation[R any] struct {
	domain credential.Domain
	op     string
	// conflict is the kind a ledger uniqueness violation is reported as.
	conflict   apperrors.Kind
	write      func(ctx context.Context, tx repository.Repositories) (R, error)
	credential func(R) credential.Credential
	message    func(r R, qr []byte) (*notify.Message, error)
	confirmed  func(R) models.ReservationConfirmedEvent
}

func reserve[R any](ctx context.Context, o *Orchestrator, res reservation[R]) (R, error) {
	var result R

	err := o.ledger.WithinTx(ctx, func(tx repository.Repositories) error {
		r, err := res.write(ctx, tx)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindConstraintViolation {
				return apperrors.E(res.conflict, res.op, err)
			}
			return err
		}

		qr, err := o.encoder.Encode(res.credential(r).Payload())
		if err != nil {
			return apperrors.DeliveryFailed(res.op, fmt.Errorf("encode credential: %w", err))
		}

		msg, err := res.message(r, qr)
		if err != nil {
			return apperrors.DeliveryFailed(res.op, fmt.Errorf("build message: %w", err))
		}

		if err := o.notify(ctx, res.domain, msg); err != nil {
			return apperrors.DeliveryFailed(res.op, err)
		}

		result = r
		return nil
	})

	log := logger.WithContext(ctx).With("domain", string(res.domain))
	if err != nil {
		o.metrics.ObserveReservation(string(res.domain), apperrors.KindOf(err).String())
		if apperrors.KindOf(err) == apperrors.KindDeliveryFailed {
			log.Warn("Reservation rolled back", "error", err)
		}
		var zero R
		return zero, err
	}
	o.metrics.ObserveReservation(string(res.domain), metrics.OutcomeSuccess)

	event := res.confirmed(result)
	log.Info("Reservation confirmed", "reservation_id", event.ReservationID, "target_id", event.TargetID)
	o.publish(ctx, models.EventReservationConfirmed, event)

	return result, nil
}

// notify sends msg under the configured timeout. The send runs in its own
// goroutine so a transport that ignores ctx still cannot hold the
// transaction open past the deadline.
func (o *Orchestrator) notify(ctx context.Context, domain credential.Domain, msg *notify.Message) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- o.notifier.Send(ctx, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	o.metrics.ObserveNotification(string(domain), time.Since(start))

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("notification timed out after %s: %w", o.timeout, err)
	}
	return err
}

// reject records a reservation refused before the transaction started.
func (o *Orchestrator) reject(domain credential.Domain, err error) error {
	o.metrics.ObserveReservation(string(domain), apperrors.KindOf(err).String())
	return err
}

func (o *Orchestrator) publish(ctx context.Context, subject string, data any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(subject, data); err != nil {
		o.metrics.ObservePublishFailure(subject)
		logger.WithContext(ctx).Warn("Failed to publish domain event", "subject", subject, "error", err)
	}
}

// recipient resolves the contact address of the reserving user.
func recipient(ctx context.Context, tx repository.Repositories, op string, userID int64) (*models.User, error) {
	user, err := tx.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.E(apperrors.KindUnauthorized, op, nil)
	}
	return user, nil
}
