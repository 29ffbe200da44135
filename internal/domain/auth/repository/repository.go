// Package repository persists user accounts.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUserNotFound is returned for lookups that match no account.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the username or email is taken.
	ErrUserExists = errors.New("username or email already registered")
)

// User is one account row.
type User struct {
	ID              int64
	Username        string
	Email           string
	HashedPassword  string
	FullName        string
	ProfilePhotoURL string
	Phone           string
	BirthDate       string
	City            string
	Address         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProfileUpdate carries the editable profile fields. Nil pointers leave
// the stored value untouched.
type ProfileUpdate struct {
	FullName        *string
	ProfilePhotoURL *string
	Phone           *string
	BirthDate       *string
	City            *string
	Address         *string
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UserRepository stores accounts in the users table.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a Postgres-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, hashed_password,
	COALESCE(full_name, ''), COALESCE(profile_photo_url, ''),
	COALESCE(phone, ''), COALESCE(birth_date, ''),
	COALESCE(city, ''), COALESCE(address, ''),
	created_at, updated_at`

// Create inserts a new account. A unique-constraint violation maps to
// ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, username, email, hashedPassword string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (username, email, hashed_password)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		username, email, hashedPassword,
	)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByEmail looks an account up by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return mapNotFound(scanUser(row))
}

// GetByID looks an account up by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return mapNotFound(scanUser(row))
}

// UpdateProfile applies the non-nil fields of the update and returns the
// fresh row.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users SET
			full_name = COALESCE($2, full_name),
			profile_photo_url = COALESCE($3, profile_photo_url),
			phone = COALESCE($4, phone),
			birth_date = COALESCE($5, birth_date),
			city = COALESCE($6, city),
			address = COALESCE($7, address),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, update.FullName, update.ProfilePhotoURL, update.Phone,
		update.BirthDate, update.City, update.Address,
	)
	return mapNotFound(scanUser(row))
}

func mapNotFound(user *User, err error) (*User, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.HashedPassword,
		&u.FullName, &u.ProfilePhotoURL, &u.Phone, &u.BirthDate,
		&u.City, &u.Address, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
