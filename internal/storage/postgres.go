package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// Postgres is the PostgreSQL backend.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects to databaseURL and applies migrations.
func OpenPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pg := &Postgres{pool: pool, logger: logger}
	if err := pg.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("database opened", "backend", "postgres")
	return pg, nil
}

func (pg *Postgres) Ping(ctx context.Context) error {
	return pg.pool.Ping(ctx)
}

func (pg *Postgres) Close() error {
	pg.pool.Close()
	return nil
}

func (pg *Postgres) CreateUser(ctx context.Context, username, email, passwordHash string) (User, error) {
	u := User{Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	err := pg.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		username, email, passwordHash, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", pgErr(err))
	}
	return u, nil
}

func (pg *Postgres) UserByID(ctx context.Context, id int64) (User, error) {
	return pg.user(ctx, `WHERE id = $1`, id)
}

func (pg *Postgres) UserByEmail(ctx context.Context, email string) (User, error) {
	return pg.user(ctx, `WHERE email = $1`, email)
}

func (pg *Postgres) UserByUsername(ctx context.Context, username string) (User, error) {
	return pg.user(ctx, `WHERE username = $1`, username)
}

func (pg *Postgres) user(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := pg.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (pg *Postgres) ListUserStops(ctx context.Context, userID int64) ([]UserStop, error) {
	rows, err := pg.pool.Query(ctx, `
		SELECT id, user_id, stop_id, stop_name, created_at, updated_at
		FROM user_stops
		WHERE user_id = $1
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

func (pg *Postgres) AddUserStop(ctx context.Context, userID int64, stopID int, stopName string) (UserStop, error) {
	now := time.Now().UTC()
	s := UserStop{UserID: userID, StopID: stopID, StopName: stopName, CreatedAt: now, UpdatedAt: now}
	err := pg.pool.QueryRow(ctx, `
		INSERT INTO user_stops (user_id, stop_id, stop_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		userID, stopID, stopName, now).Scan(&s.ID)
	if err != nil {
		return UserStop{}, fmt.Errorf("add user stop: %w", pgErr(err))
	}
	return s, nil
}

func (pg *Postgres) RenameUserStop(ctx context.Context, userID, id int64, stopName string) (UserStop, error) {
	var s UserStop
	err := pg.pool.QueryRow(ctx, `
		UPDATE user_stops SET stop_name = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, user_id, stop_id, stop_name, created_at, updated_at`,
		stopName, time.Now().UTC(), id, userID).
		Scan(&s.ID, &s.UserID, &s.StopID, &s.StopName, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserStop{}, ErrNotFound
	}
	if err != nil {
		return UserStop{}, fmt.Errorf("rename user stop: %w", err)
	}
	return s, nil
}

func (pg *Postgres) DeleteUserStop(ctx context.Context, userID, id int64) error {
	tag, err := pg.pool.Exec(ctx, `DELETE FROM user_stops WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete user stop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
