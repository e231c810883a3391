package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ErrAccountLocked rejects a login attempt while a lockout is in force.
// It is normal control flow, not a fault; RemainingMinutes feeds the
// user-facing message.
type ErrAccountLocked struct {
	RemainingMinutes int
}

func (e ErrAccountLocked) Error() string {
	return fmt.Sprintf("Account is locked due to too many failed login attempts. Please try again in %d minutes.", e.RemainingMinutes)
}

// AccountGuard decides, before credentials are verified, whether a
// login attempt for a given account may proceed. Lock expiry is
// evaluated lazily here on the request path; there is no background
// sweep.
type AccountGuard struct {
	store Store
	now   func() time.Time
}

func NewAccountGuard(store Store) *AccountGuard {
	return &AccountGuard{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Check returns nil when the attempt may proceed, ErrAccountLocked when
// the account is locked, or a store error. The caller owns the policy
// for store errors; the login service fails open on them.
//
// A blank username is a no-op allow (the IP limiter still applies), and
// an unknown username allows as well so the response cannot be used to
// enumerate which accounts exist.
func (g *AccountGuard) Check(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return nil
	}

	user, err := g.store.FindActiveByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	info, err := g.store.GetLockInfo(ctx, user.ID)
	if err != nil {
		return err
	}
	if !info.IsLocked {
		return nil
	}

	now := g.now()
	if lockExpired(info.LockedUntil, now) {
		// Unlock writes absolute values, so concurrent requests racing
		// past the same expired lock can all apply it safely.
		if err := g.store.Unlock(ctx, user.ID); err != nil {
			return err
		}
		return nil
	}

	return ErrAccountLocked{RemainingMinutes: remainingMinutes(*info.LockedUntil, now)}
}

func lockExpired(until *time.Time, now time.Time) bool {
	return until == nil || !now.Before(*until)
}

// remainingMinutes rounds up: 9 minutes 1 second left reports 10.
func remainingMinutes(until, now time.Time) int {
	return int((until.Sub(now) + time.Minute - 1) / time.Minute)
}
