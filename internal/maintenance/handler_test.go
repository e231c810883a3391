package maintenance

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devdeck/internal/observability"
)

// The guarded branches reject before touching storage, so a nil
// repository is fine here.
func newTestHandler(secret string) *CleanupHandler {
	return NewCleanupHandler(nil, observability.NewLogger(), secret, 30*24*time.Hour, 500)
}

func doCleanup(h *CleanupHandler, method, secret string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "/internal/maintenance/cleanup", nil)
	if secret != "" {
		r.Header.Set("Authorization", "Bearer "+secret)
	}
	w := httptest.NewRecorder()
	h.Handle(w, r)
	return w
}

func TestCleanupDisabledWithoutSecret(t *testing.T) {
	h := newTestHandler("")

	// Without a configured secret the endpoint does not exist, even to
	// callers presenting one.
	w := doCleanup(h, http.MethodPost, "cron-secret")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCleanupRejectsBadAuthorization(t *testing.T) {
	h := newTestHandler("cron-secret")

	w := doCleanup(h, http.MethodPost, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")

	w = doCleanup(h, http.MethodPost, "wrong-secret")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCleanupRejectsUnsupportedMethod(t *testing.T) {
	h := newTestHandler("cron-secret")

	w := doCleanup(h, http.MethodDelete, "cron-secret")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
