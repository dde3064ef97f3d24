package api

import (
	"errors"
	"net/http"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/store"
)

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.NewEvent
	if err := decodeJSON(r, &ev); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", err.Error())
		return
	}

	stored, err := s.events.Append(r.Context(), ev)
	if err != nil {
		var fe *domain.FieldError
		if errors.As(err, &fe) {
			writeProblem(w, http.StatusBadRequest, "bad-request", fe.Error())
			return
		}
		s.writeStoreError(w, r, "append event", err)
		return
	}
	respondJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryLimit(r, 50, 500)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", err.Error())
		return
	}
	f := store.EventFilter{
		SubjectID: q.Get("subject_id"),
		Type:      domain.EventType(q.Get("type")),
		Limit:     limit,
	}
	events, err := s.store.ListEvents(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, r, "list events", err)
		return
	}
	total, err := s.store.CountEvents(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, r, "count events", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events, "total": total})
}
