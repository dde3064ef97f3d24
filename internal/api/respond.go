package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/store"
)

const problemBase = "https://switchyard.dev/problems/"

// Problem is an RFC 7807 error body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeProblem(w http.ResponseWriter, status int, slug, detail string) {
	writeProblemBody(w, Problem{
		Type:   problemBase + slug,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

func writeProblemBody(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("encode problem", "error", err)
	}
}

// writeStoreError maps a storage error to a problem response. Unexpected
// errors are logged and reported without detail.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var fe *domain.FieldError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "not-found", err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeProblem(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, store.ErrRuleInUse):
		writeProblem(w, http.StatusConflict, "rule-in-use", err.Error())
	case errors.As(err, &fe):
		writeProblem(w, http.StatusBadRequest, "bad-request", fe.Error())
	default:
		s.logger.ErrorContext(r.Context(), op+" failed", "error", err)
		writeProblem(w, http.StatusInternalServerError, "internal", "")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// queryLimit reads ?limit=, defaulting to def and capping at max.
func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// configText accepts a JSON document either inline or as a JSON string
// holding the document, and returns its text. Absent or null yields "".
func configText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if raw[0] != '{' {
		return "", fmt.Errorf("must be a JSON object or a string")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
