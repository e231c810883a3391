package auth

import (
	"context"
	"time"
)

// Store is the persistence contract for user rows and their lockout
// state. Every mutation must apply as a single atomic statement at the
// row level; the guard and tracker rely on that under concurrent login
// traffic and never do read-modify-write themselves.
//
// Lookups return (nil, nil) for unknown or inactive usernames so
// callers can treat "no such user" differently from a storage failure.
type Store interface {
	HasAnyUser(ctx context.Context) (bool, error)
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	FindActiveByUsername(ctx context.Context, username string) (*User, error)
	FindActiveByID(ctx context.Context, id string) (*User, error)
	UpdateLastLogin(ctx context.Context, id string) error

	// IncrementFailedAttempts bumps the counter, stamps the failure
	// time, and returns the new counter value from the same statement.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ClearFailedAttempts(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, duration time.Duration) error

	// Unlock clears the lock and the failure counter. It writes
	// absolute values, so applying it twice is harmless.
	Unlock(ctx context.Context, id string) error

	// GetLockInfo returns the zero value for unknown ids.
	GetLockInfo(ctx context.Context, id string) (LockInfo, error)
}
