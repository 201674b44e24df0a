// Package storage persists users and their saved stops.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("already exists")
)

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserStop is a stop saved by a user. A user saves each stop at most once.
type UserStop struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	StopID    int       `json:"stopId"`
	StopName  string    `json:"stopName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is implemented by the SQLite and PostgreSQL backends.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)

	// ListUserStops returns the user's stops, newest first.
	ListUserStops(ctx context.Context, userID int64) ([]UserStop, error)
	AddUserStop(ctx context.Context, userID int64, stopID int, stopName string) (UserStop, error)
	RenameUserStop(ctx context.Context, userID, id int64, stopName string) (UserStop, error)
	DeleteUserStop(ctx context.Context, userID, id int64) error

	Ping(ctx context.Context) error
	Close() error
}

// Open picks a backend from the DSN: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pg, err := OpenPostgres(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	db, err := OpenSQLite(dsn, logger)
	if err != nil {
		return nil, err
	}
	return db, nil
}
