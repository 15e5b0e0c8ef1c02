package repository

import (
	"context"
	"database/sql"
	"time"

	"smarthub/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type pgEventRepository struct {
	q querier
}

const eventColumns = `id, title, description, starts_at, location, price, image_url, google_maps_url, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	event := &models.Event{}
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.StartsAt,
		&event.Location,
		&event.Price,
		&event.ImageURL,
		&event.GoogleMapsURL,
		&event.CreatedAt,
	)
	return event, err
}

func (r *pgEventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("events.GetByID", err)
	}
	return event, nil
}

func (r *pgEventRepository) List(ctx context.Context) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY starts_at ASC, id ASC`
	return r.list(ctx, "events.List", query)
}

// ListByIDs keeps the order of ids, which is the relevance order of a search.
func (r *pgEventRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Event, error) {
	if len(ids) == 0 {
		return []models.Event{}, nil
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ANY($1)`
	events, err := r.list(ctx, "events.ListByIDs", query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return orderByIDs(events, ids, func(e models.Event) int64 { return e.ID }), nil
}

func (r *pgEventRepository) list(ctx context.Context, op, query string, args ...any) ([]models.Event, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		events = append(events, *event)
	}
	return events, translate(op, rows.Err())
}

func (r *pgEventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (title, description, starts_at, location, price, image_url, google_maps_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.StartsAt,
		event.Location,
		event.Price,
		event.ImageURL,
		event.GoogleMapsURL,
	).Scan(&event.ID, &event.CreatedAt)

	return translate("events.Create", err)
}

type pgRegistrationRepository struct {
	q querier
}

func (r *pgRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	query := `
		INSERT INTO registrations (id, user_id, event_id, tickets)
		VALUES ($1, $2, $3, $4)
		RETURNING registered_at`

	err := r.q.QueryRowContext(ctx, query,
		reg.ID,
		reg.UserID,
		reg.EventID,
		reg.Tickets,
	).Scan(&reg.RegisteredAt)

	return translate("registrations.Create", err)
}

func (r *pgRegistrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	query := `
		SELECT r.id, r.user_id, r.event_id, r.tickets, r.registered_at, r.attended_at,
		       ` + eventJoinColumns + `
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.id = $1`

	reg, err := scanRegistration(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("registrations.GetByID", err)
	}
	return reg, nil
}

func (r *pgRegistrationRepository) Exists(ctx context.Context, userID, eventID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND event_id = $2)`
	err := r.q.QueryRowContext(ctx, query, userID, eventID).Scan(&exists)
	return exists, translate("registrations.Exists", err)
}

func (r *pgRegistrationRepository) MarkAttended(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE registrations SET attended_at = $2 WHERE id = $1 AND attended_at IS NULL`
	res, err := r.q.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, translate("registrations.MarkAttended", err)
	}
	n, err := res.RowsAffected()
	return n == 1, translate("registrations.MarkAttended", err)
}

func (r *pgRegistrationRepository) ListByUser(ctx context.Context, userID int64) ([]models.Registration, error) {
	query := `
		SELECT r.id, r.user_id, r.event_id, r.tickets, r.registered_at, r.attended_at,
		       ` + eventJoinColumns + `
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1
		ORDER BY e.starts_at ASC, r.registered_at ASC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translate("registrations.ListByUser", err)
	}
	defer rows.Close()

	regs := []models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, translate("registrations.ListByUser", err)
		}
		regs = append(regs, *reg)
	}
	return regs, translate("registrations.ListByUser", rows.Err())
}

const eventJoinColumns = `e.id, e.title, e.description, e.starts_at, e.location, e.price, e.image_url, e.google_maps_url, e.created_at`

func scanRegistration(row interface{ Scan(...any) error }) (*models.Registration, error) {
	reg := &models.Registration{Event: &models.Event{}}
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.EventID,
		&reg.Tickets,
		&reg.RegisteredAt,
		&reg.AttendedAt,
		&reg.Event.ID,
		&reg.Event.Title,
		&reg.Event.Description,
		&reg.Event.StartsAt,
		&reg.Event.Location,
		&reg.Event.Price,
		&reg.Event.ImageURL,
		&reg.Event.GoogleMapsURL,
		&reg.Event.CreatedAt,
	)
	return reg, err
}

func orderByIDs[T any](items []T, ids []int64, idOf func(T) int64) []T {
	byID := make(map[int64]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	out := make([]T, 0, len(items))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}
