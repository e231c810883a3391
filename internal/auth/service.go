package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"devdeck/internal/observability"
)

const defaultAccessTTL = 12 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSetupComplete rejects registration once the single user exists.
	ErrSetupComplete = errors.New("setup already complete")
)

// ErrLockoutTriggered is returned when the failed attempt that was just
// recorded pushed the account over the threshold.
type ErrLockoutTriggered struct {
	Attempts int
}

func (e ErrLockoutTriggered) Error() string {
	return LockoutMessage
}

// Service orchestrates the login flow: account guard, credential
// verification, failure tracking, and session issuance.
type Service struct {
	store     Store
	guard     *AccountGuard
	tracker   *FailureTracker
	logger    *observability.Logger
	jwtSecret []byte
	accessTTL time.Duration
}

func NewService(store Store, guard *AccountGuard, tracker *FailureTracker, logger *observability.Logger, jwtSecret string) *Service {
	return &Service{
		store:     store,
		guard:     guard,
		tracker:   tracker,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		accessTTL: defaultAccessTTL,
	}
}

func (s *Service) WithAccessTTL(ttl time.Duration) {
	if ttl > 0 {
		s.accessTTL = ttl
	}
}

// NeedsSetup reports whether no user exists yet (first-run setup).
func (s *Service) NeedsSetup(ctx context.Context) (bool, error) {
	exists, err := s.store.HasAnyUser(ctx)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Register creates the single panel user. It is only available until
// the first user exists.
func (s *Service) Register(ctx context.Context, username, password string) (Session, error) {
	exists, err := s.store.HasAnyUser(ctx)
	if err != nil {
		return Session{}, err
	}
	if exists {
		return Session{}, ErrSetupComplete
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(user)
}

// Login runs the per-request protection chain for one attempt:
// account guard, credential check, then the failure tracker branch.
// The IP limiter wraps the route above this layer.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	// Guard store errors allow the attempt through: fail open, so a
	// storage hiccup during the lock check cannot lock every account
	// out of login.
	if err := s.guard.Check(ctx, username); err != nil {
		var locked ErrAccountLocked
		if errors.As(err, &locked) {
			return Session{}, locked
		}
		s.logger.Warn("account_guard_failed", map[string]any{"error": err.Error()})
	}

	user, err := s.store.FindActiveByUsername(ctx, username)
	if err != nil {
		return Session{}, err
	}
	if user == nil {
		// Still run the tracker (a no-op for unknown users) so the
		// response cannot be timed against the known-user path.
		s.recordFailure(ctx, username)
		return Session{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		track := s.recordFailure(ctx, username)
		if track != nil && track.Locked {
			return Session{}, ErrLockoutTriggered{Attempts: track.Attempts}
		}
		return Session{}, ErrInvalidCredentials
	}

	// Bookkeeping failures never block a successful login.
	if err := s.tracker.OnSuccess(ctx, user.ID); err != nil {
		s.logger.Warn("clear_failed_attempts_failed", map[string]any{"error": err.Error(), "user_id": user.ID})
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("update_last_login_failed", map[string]any{"error": err.Error(), "user_id": user.ID})
	}

	return s.issueSession(*user)
}

// CurrentUser resolves the authenticated principal by id.
func (s *Service) CurrentUser(ctx context.Context, id string) (*User, error) {
	return s.store.FindActiveByID(ctx, id)
}

// recordFailure is best effort: a tracking failure is logged and
// swallowed, it must never block the login flow from completing.
func (s *Service) recordFailure(ctx context.Context, username string) *TrackResult {
	track, err := s.tracker.OnFailure(ctx, username)
	if err != nil {
		s.logger.Warn("track_failed_login_failed", map[string]any{"error": err.Error()})
		return nil
	}
	return track
}

func (s *Service) issueSession(user User) (Session, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
		"typ":      "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return Session{}, fmt.Errorf("sign jwt: %w", err)
	}

	return Session{
		Token:     encoded,
		TokenType: "Bearer",
		ExpiresIn: int64(s.accessTTL.Seconds()),
		User:      user.Public(),
	}, nil
}
