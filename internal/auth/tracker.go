package auth

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultLockDuration = 30 * time.Minute
)

// LockoutMessage is returned when a failure pushes an account over the
// threshold.
const LockoutMessage = "Account has been locked due to too many failed login attempts."

// FailureTracker records the outcome of credential checks. It never
// verifies credentials itself; the caller tells it whether the check
// failed or succeeded.
type FailureTracker struct {
	store        Store
	maxAttempts  int
	lockDuration time.Duration
}

func NewFailureTracker(store Store, maxAttempts int, lockDuration time.Duration) *FailureTracker {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}

	return &FailureTracker{
		store:        store,
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
	}
}

// OnFailure records one failed credential check. Unknown or inactive
// usernames return (nil, nil): nothing to track, no store mutation, and
// the caller's response stays indistinguishable from a known-user
// failure.
func (t *FailureTracker) OnFailure(ctx context.Context, username string) (*TrackResult, error) {
	user, err := t.store.FindActiveByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	attempts, err := t.store.IncrementFailedAttempts(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if attempts >= t.maxAttempts {
		if err := t.store.Lock(ctx, user.ID, t.lockDuration); err != nil {
			return nil, err
		}
		return &TrackResult{
			Locked:   true,
			Attempts: attempts,
			Message:  LockoutMessage,
		}, nil
	}

	return &TrackResult{
		Locked:    false,
		Attempts:  attempts,
		Remaining: t.maxAttempts - attempts,
	}, nil
}

// OnSuccess clears prior failures unconditionally. A concurrent
// OnFailure for the same user may land before or after this reset;
// last write wins, which is acceptable for a defense-in-depth counter.
func (t *FailureTracker) OnSuccess(ctx context.Context, userID string) error {
	return t.store.ClearFailedAttempts(ctx, userID)
}
