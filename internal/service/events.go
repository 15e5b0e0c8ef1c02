package service

import (
	"context"
	"fmt"

	"smarthub/internal/credential"
	apperrors "smarthub/internal/errors"
	"smarthub/internal/logger"
	"smarthub/internal/models"
	"smarthub/internal/notify"
	"smarthub/internal/repository"
)

// searchLimit caps the number of ids requested from the search index.
const searchLimit = 100

type EventService struct {
	o        *Orchestrator
	searcher EventSearcher
}

func NewEventService(o *Orchestrator, searcher EventSearcher) *EventService {
	return &EventService{o: o, searcher: searcher}
}

// List returns the catalog ordered by start time. A non-empty query is
// answered by the search index when one is configured; if the index fails
// the full catalog is returned instead.
func (s *EventService) List(ctx context.Context, query string) ([]models.Event, error) {
	if query != "" && s.searcher != nil {
		ids, err := s.searcher.SearchEventIDs(ctx, query, searchLimit)
		if err == nil {
			events, err := s.o.ledger.Events().ListByIDs(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("failed to list events: %w", err)
			}
			return events, nil
		}
		logger.WithContext(ctx).Warn("Event search failed, falling back to full list", "query", query, "error", err)
	}

	events, err := s.o.ledger.Events().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (s *EventService) Get(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.o.ledger.Events().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NotFound("events.Get", "event")
	}
	return event, nil
}

// Register reserves tickets for userID. Tickets defaults to 1.
func (s *EventService) Register(ctx context.Context, userID, eventID int64, req *models.RegisterEventRequest) (*models.Registration, error) {
	const op = "events.Register"

	tickets := 1
	if req != nil && req.Tickets != nil {
		tickets = *req.Tickets
	}
	if tickets < 1 {
		return nil, s.o.reject(credential.DomainEvent, apperrors.Validation(op, "tickets must be at least 1"))
	}

	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, s.o.reject(credential.DomainEvent, err)
	}

	exists, err := s.o.ledger.Registrations().Exists(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if exists {
		return nil, s.o.reject(credential.DomainEvent, &apperrors.Error{
			Kind: apperrors.KindDuplicateReservation,
			Op:   op,
			Msg:  "You are already registered for this event.",
		})
	}

	var to string
	return reserve(ctx, s.o, reservation[*models.Registration]{
		domain:   credential.DomainEvent,
		op:       op,
		conflict: apperrors.KindDuplicateReservation,
		write: func(ctx context.Context, tx repository.Repositories) (*models.Registration, error) {
			user, err := recipient(ctx, tx, op, userID)
			if err != nil {
				return nil, err
			}
			to = user.Email

			reg := &models.Registration{UserID: userID, EventID: eventID, Tickets: tickets}
			if err := tx.Registrations().Create(ctx, reg); err != nil {
				return nil, err
			}
			reg.Event = event
			return reg, nil
		},
		credential: func(reg *models.Registration) credential.Credential {
			return credential.EventCredential{RegistrationID: reg.ID}
		},
		message: func(reg *models.Registration, qr []byte) (*notify.Message, error) {
			return notify.EventConfirmation(to, event, reg, qr)
		},
		confirmed: func(reg *models.Registration) models.ReservationConfirmedEvent {
			return models.ReservationConfirmedEvent{
				Domain:        string(credential.DomainEvent),
				ReservationID: reg.ID.String(),
				UserID:        userID,
				TargetID:      eventID,
				Timestamp:     s.o.now(),
			}
		},
	})
}

func (s *EventService) ListRegistrations(ctx context.Context, userID int64) ([]models.Registration, error) {
	regs, err := s.o.ledger.Registrations().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}
