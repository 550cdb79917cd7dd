package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func CreateUser(ctx context.Context, db DBTX, name, email, passwordHash, role string) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, name, email, passwordHash, role).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func UserByEmail(ctx context.Context, db DBTX, email string) (*User, error) {
	var u User
	err := db.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, active, created_at, updated_at
		FROM users WHERE lower(email) = lower($1)
	`, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func UserByID(ctx context.Context, db DBTX, id int64) (*User, error) {
	var u User
	err := db.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, active, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeactivateUser marks the login as inactive (e.g. when the patient is anonymized).
func DeactivateUser(ctx context.Context, db DBTX, id int64) error {
	_, err := db.Exec(ctx, `UPDATE users SET active = false, updated_at = now() WHERE id = $1`, id)
	return err
}
