package project

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"devdeck/internal/security"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo          *Repository
	workspaceRoot string
}

// NewHandler wires the project registry. workspaceRoot bounds every
// registered project path; requests outside it are rejected.
func NewHandler(repo *Repository, workspaceRoot string) *Handler {
	return &Handler{repo: repo, workspaceRoot: workspaceRoot}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input ProjectInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	// Names end up in spawned shell titles and commands; strip anything
	// the shell could interpret.
	input.Name = strings.TrimSpace(security.SanitizeShellInput(input.Name))
	input.Path = strings.TrimSpace(input.Path)
	if input.Name == "" || len(input.Name) > 64 {
		writeError(w, http.StatusBadRequest, "project name is invalid")
		return
	}
	if input.Path == "" || !security.IsPathWithinProject(input.Path, h.workspaceRoot) {
		writeError(w, http.StatusBadRequest, "project path is outside the workspace root")
		return
	}

	created, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing project id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
