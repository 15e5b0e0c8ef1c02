package repository

import (
	"context"
	"database/sql"

	"smarthub/internal/models"
)

type pgUserRepository struct {
	q querier
}

const userColumns = `user_id, email, password_hash, first_name, surname, is_staff, is_active, registered_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.Surname,
		&user.IsStaff,
		&user.IsActive,
		&user.RegisteredAt,
	)
	return user, err
}

func (r *pgUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("users.GetByID", err)
	}
	return user, nil
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.q.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("users.GetByEmail", err)
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, surname, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING user_id, registered_at`

	err := r.q.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.Surname,
		user.IsStaff,
		user.IsActive,
	).Scan(&user.UserID, &user.RegisteredAt)

	return translate("users.Create", err)
}
