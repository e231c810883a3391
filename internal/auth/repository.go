package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository implements Store on top of a relational users table.
// All statements are parameterized and every mutation is a single
// UPDATE/INSERT, so row-level atomicity comes from the database engine.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HasAnyUser(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check users exist: %w", err)
	}

	return exists, nil
}

func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
	`, user.ID, user.Username, user.PasswordHash, now)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (r *Repository) FindActiveByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	var lastFailed, lockedUntil, lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_active, failed_login_attempts,
		       last_failed_attempt, is_locked, locked_until, last_login, created_at
		FROM users
		WHERE username = $1 AND is_active = TRUE
	`, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.FailedLoginAttempts,
		&lastFailed, &u.IsLocked, &lockedUntil, &lastLogin, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by username: %w", err)
	}

	u.LastFailedAttempt = nullableTime(lastFailed)
	u.LockedUntil = nullableTime(lockedUntil)
	u.LastLogin = nullableTime(lastLogin)

	return &u, nil
}

// FindActiveByID deliberately omits password_hash from the projection;
// only the username lookup on the login path needs credential material.
func (r *Repository) FindActiveByID(ctx context.Context, id string) (*User, error) {
	var u User
	var lastFailed, lockedUntil, lastLogin sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, is_active, failed_login_attempts,
		       last_failed_attempt, is_locked, locked_until, last_login, created_at
		FROM users
		WHERE id = $1 AND is_active = TRUE
	`, id).Scan(
		&u.ID, &u.Username, &u.IsActive, &u.FailedLoginAttempts,
		&lastFailed, &u.IsLocked, &lockedUntil, &lastLogin, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}

	u.LastFailedAttempt = nullableTime(lastFailed)
	u.LockedUntil = nullableTime(lockedUntil)
	u.LastLogin = nullableTime(lastLogin)

	return &u, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_login = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}

	return nil
}

func (r *Repository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    last_failed_attempt = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts
	`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}

	return attempts, nil
}

func (r *Repository) ClearFailedAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    last_failed_attempt = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear failed attempts: %w", err)
	}

	return nil
}

func (r *Repository) Lock(ctx context.Context, id string, duration time.Duration) error {
	until := time.Now().UTC().Add(duration)

	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_locked = TRUE,
		    locked_until = $2
		WHERE id = $1
	`, id, until)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}

	return nil
}

func (r *Repository) Unlock(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_locked = FALSE,
		    locked_until = NULL,
		    failed_login_attempts = 0,
		    last_failed_attempt = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("unlock account: %w", err)
	}

	return nil
}

func (r *Repository) GetLockInfo(ctx context.Context, id string) (LockInfo, error) {
	var info LockInfo
	var lockedUntil sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT is_locked, locked_until, failed_login_attempts
		FROM users
		WHERE id = $1
	`, id).Scan(&info.IsLocked, &lockedUntil, &info.FailedLoginAttempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LockInfo{}, nil
		}
		return LockInfo{}, fmt.Errorf("query lock info: %w", err)
	}

	info.LockedUntil = nullableTime(lockedUntil)

	return info, nil
}

// CleanupResult reports what the maintenance sweep removed.
type CleanupResult struct {
	ReleasedLocks          int64 `json:"released_locks"`
	ClearedFailureCounters int64 `json:"cleared_failure_counters"`
}

// CleanupStaleLockouts releases locks that expired before now and zeroes
// failure counters whose last failure predates the retention cutoff.
// Lazy per-request expiry stays the correctness mechanism; this only
// keeps abandoned state from accumulating on accounts nobody retries.
func (r *Repository) CleanupStaleLockouts(ctx context.Context, retention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	cutoff := time.Now().UTC().Add(-retention)

	released, err := r.releaseExpiredLocks(ctx, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	cleared, err := r.clearStaleFailureCounters(ctx, cutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		ReleasedLocks:          released,
		ClearedFailureCounters: cleared,
	}, nil
}

func (r *Repository) releaseExpiredLocks(ctx context.Context, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH expired AS (
			SELECT id
			FROM users
			WHERE is_locked = TRUE AND locked_until < NOW()
			ORDER BY locked_until ASC
			LIMIT $1
		)
		UPDATE users u
		SET is_locked = FALSE,
		    locked_until = NULL,
		    failed_login_attempts = 0,
		    last_failed_attempt = NULL
		FROM expired
		WHERE u.id = expired.id
	`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("release expired locks: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired locks rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) clearStaleFailureCounters(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM users
			WHERE is_locked = FALSE
			  AND failed_login_attempts > 0
			  AND last_failed_attempt < $1
			ORDER BY last_failed_attempt ASC
			LIMIT $2
		)
		UPDATE users u
		SET failed_login_attempts = 0,
		    last_failed_attempt = NULL
		FROM stale
		WHERE u.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("clear stale failure counters: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale failure counters rows affected: %w", err)
	}

	return affected, nil
}

func nullableTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
