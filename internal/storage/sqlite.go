package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
)

// DB is the SQLite backend.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// OpenSQLite creates or opens a SQLite database at the given path and applies migrations.
func OpenSQLite(path string, logger *slog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("database opened", "backend", "sqlite", "path", path)
	return db, nil
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, now)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", sqliteErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return User{ID: id, Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (db *DB) UserByID(ctx context.Context, id int64) (User, error) {
	return db.user(ctx, `WHERE id = ?`, id)
}

func (db *DB) UserByEmail(ctx context.Context, email string) (User, error) {
	return db.user(ctx, `WHERE email = ?`, email)
}

func (db *DB) UserByUsername(ctx context.Context, username string) (User, error) {
	return db.user(ctx, `WHERE username = ?`, username)
}

func (db *DB) user(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (db *DB) ListUserStops(ctx context.Context, userID int64) ([]UserStop, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, stop_id, stop_name, created_at, updated_at
		FROM user_stops
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user stops: %w", err)
	}
	defer rows.Close()

	stops := []UserStop{}
	for rows.Next() {
		var s UserStop
		if err := rows.Scan(&s.ID, &s.UserID, &s.StopID, &s.StopName, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user stop: %w", err)
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func (db *DB) AddUserStop(ctx context.Context, userID int64, stopID int, stopName string) (UserStop, error) {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO user_stops (user_id, stop_id, stop_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		userID, stopID, stopName, now, now)
	if err != nil {
		return UserStop{}, fmt.Errorf("add user stop: %w", sqliteErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return UserStop{}, fmt.Errorf("add user stop: %w", err)
	}
	return UserStop{ID: id, UserID: userID, StopID: stopID, StopName: stopName, CreatedAt: now, UpdatedAt: now}, nil
}

func (db *DB) RenameUserStop(ctx context.Context, userID, id int64, stopName string) (UserStop, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE user_stops SET stop_name = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		stopName, time.Now().UTC(), id, userID)
	if err != nil {
		return UserStop{}, fmt.Errorf("rename user stop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return UserStop{}, ErrNotFound
	}

	var s UserStop
	err = db.QueryRowContext(ctx, `
		SELECT id, user_id, stop_id, stop_name, created_at, updated_at
		FROM user_stops WHERE id = ?`, id).
		Scan(&s.ID, &s.UserID, &s.StopID, &s.StopName, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return UserStop{}, fmt.Errorf("reload user stop: %w", err)
	}
	return s, nil
}

func (db *DB) DeleteUserStop(ctx context.Context, userID, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM user_stops WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete user stop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// sqliteErr maps unique constraint violations to ErrConflict.
func sqliteErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
