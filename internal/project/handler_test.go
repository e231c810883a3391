package project

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Validation runs before any repository access, so a nil repository is
// fine for the rejection paths.
func newValidationHandler() *Handler {
	return NewHandler(nil, "/srv/workspace")
}

func postProject(h *Handler, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, r)
	return w
}

func TestCreateRejectsPathOutsideWorkspace(t *testing.T) {
	h := newValidationHandler()

	w := postProject(h, `{"name":"demo","path":"/etc/passwd"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "workspace root")

	w = postProject(h, `{"name":"demo","path":"/srv/workspace/../../root"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRejectsInvalidName(t *testing.T) {
	h := newValidationHandler()

	// A name made entirely of shell metacharacters sanitizes to empty.
	w := postProject(h, `{"name":"$(;)","path":"/srv/workspace/demo"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	long := strings.Repeat("a", 65)
	w = postProject(h, `{"name":"`+long+`","path":"/srv/workspace/demo"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	h := newValidationHandler()

	w := postProject(h, `{"name":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postProject(h, `{"name":"demo","path":"/srv/workspace/demo","extra":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
