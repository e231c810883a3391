package auth

import "time"

// User is one principal row. PasswordHash is only populated by
// username lookups on the login path; id lookups leave it empty.
type User struct {
	ID                  string
	Username            string
	PasswordHash        string
	IsActive            bool
	FailedLoginAttempts int
	LastFailedAttempt   *time.Time
	IsLocked            bool
	LockedUntil         *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
}

// PublicUser is the JSON shape handed back to clients.
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, LastLogin: u.LastLogin}
}

// LockInfo is the lockout projection of a user row. Unknown ids map to
// the zero value (unlocked, zero attempts) rather than an error.
type LockInfo struct {
	IsLocked            bool
	LockedUntil         *time.Time
	FailedLoginAttempts int
}

// TrackResult reports the outcome of recording one failed login.
type TrackResult struct {
	Locked    bool   `json:"locked"`
	Attempts  int    `json:"attempts"`
	Remaining int    `json:"remaining,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Session is the response body of a successful login or registration.
type Session struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresIn int64      `json:"expires_in"`
	User      PublicUser `json:"user"`
}
