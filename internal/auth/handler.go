package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 6
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Status reports whether first-run setup is still pending. The client
// uses it to decide between the setup screen and the login screen.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	needsSetup, err := h.service.NeedsSetup(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to check auth status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"needs_setup":      needsSetup,
		"is_authenticated": false,
	})
}

// Register handles first-run setup. It is closed as soon as a user
// exists; the panel is single-user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := h.service.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, ErrSetupComplete) {
			writeError(w, http.StatusForbidden, "user already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Login is the protected endpoint: the route wraps it in the IP rate
// limiter, and the service applies the account guard and the failure
// tracker around the credential check.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	// No username/password shape validation here: the service treats
	// anything that doesn't match a stored credential the same way, and
	// a format error would leak which inputs are worth retrying.
	var body credentialsRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	session, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		var locked ErrAccountLocked
		if errors.As(err, &locked) {
			writeError(w, http.StatusTooManyRequests, locked.Error())
			return
		}
		var triggered ErrLockoutTriggered
		if errors.As(err, &triggered) {
			writeError(w, http.StatusTooManyRequests, triggered.Error())
			return
		}
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}

		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// CurrentUser returns the authenticated principal. It sits behind the
// JWT middleware, which injects the user id into the request context.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	id := UserID(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), id)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "user no longer active")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}

// Logout is a stateless acknowledgement; access tokens are discarded
// client-side and expire on their own.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var body credentialsRequest
	if !decodeJSON(w, r, &body) {
		return credentialsRequest{}, false
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Password = strings.TrimSpace(body.Password)
	if !usernameRegex.MatchString(body.Username) {
		writeError(w, http.StatusBadRequest, "username format is invalid")
		return credentialsRequest{}, false
	}
	if len(body.Password) < minPasswordLength || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return credentialsRequest{}, false
	}

	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
