package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/rulespec"
	"github.com/roach88/switchyard/internal/store"
)

const createdByAPI = "api"

// ruleResponse is a stored rule plus any problems the engine will hit when
// it reads the rule. Warnings never block a write.
type ruleResponse struct {
	domain.WorkflowRule
	Warnings []rulespec.ValidationError `json:"warnings,omitempty"`
}

type rulesResponse struct {
	Rules []domain.WorkflowRule `json:"rules"`
	Total int                   `json:"total"`
}

// ruleRequest is the create body. Condition and action config may be sent
// inline or as JSON text.
type ruleRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TriggerEvent string          `json:"trigger_event"`
	Condition    json.RawMessage `json:"condition_json"`
	ActionType   string          `json:"action_type"`
	ActionConfig json.RawMessage `json:"action_config"`
	Enabled      *bool           `json:"enabled"`
	Position     int             `json:"position"`
}

// patchRequest is the PATCH body. Absent fields are left unchanged; a null
// condition_json removes the condition.
type patchRequest struct {
	Name         *string         `json:"name"`
	Description  *string         `json:"description"`
	TriggerEvent *string         `json:"trigger_event"`
	Condition    json.RawMessage `json:"condition_json"`
	ActionType   *string         `json:"action_type"`
	ActionConfig json.RawMessage `json:"action_config"`
	Enabled      *bool           `json:"enabled"`
	Position     *int            `json:"position"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rules, err := s.store.ListRules(r.Context(), store.RuleFilter{
		TriggerEvent: domain.EventType(q.Get("trigger_event")),
		EnabledOnly:  q.Get("enabled") == "true",
	})
	if err != nil {
		s.writeStoreError(w, r, "list rules", err)
		return
	}
	if rules == nil {
		rules = []domain.WorkflowRule{}
	}
	respondJSON(w, http.StatusOK, rulesResponse{Rules: rules, Total: len(rules)})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.store.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, "get rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", err.Error())
		return
	}

	cond, err := configText(req.Condition)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", "condition_json "+err.Error())
		return
	}
	config, err := configText(req.ActionConfig)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", "action_config "+err.Error())
		return
	}

	now := s.clock.Now()
	rule := domain.WorkflowRule{
		ID:           req.ID,
		Name:         req.Name,
		Description:  req.Description,
		TriggerEvent: domain.EventType(req.TriggerEvent),
		ConditionRaw: cond,
		ActionType:   domain.ActionType(req.ActionType),
		ActionConfig: config,
		Enabled:      req.Enabled == nil || *req.Enabled,
		Position:     req.Position,
		CreatedBy:    createdByAPI,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rule.ID == "" {
		rule.ID = s.ids.NewID()
	}

	if err := s.store.CreateRule(r.Context(), rule); err != nil {
		s.writeStoreError(w, r, "create rule", err)
		return
	}
	created, err := s.store.GetRule(r.Context(), rule.ID)
	if err != nil {
		s.writeStoreError(w, r, "get rule", err)
		return
	}
	s.logger.InfoContext(r.Context(), "rule created", "rule_id", created.ID, "trigger", created.TriggerEvent)
	respondJSON(w, http.StatusCreated, s.withWarnings(r, created))
}

func (s *Server) handlePatchRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", err.Error())
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", err.Error())
		return
	}

	existing, err := s.store.GetRule(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, "get rule", err)
		return
	}
	if patch.Empty() {
		respondJSON(w, http.StatusOK, s.withWarnings(r, existing))
		return
	}
	updated, err := s.store.UpdateRule(r.Context(), id, patch, s.clock.Now())
	if err != nil {
		s.writeStoreError(w, r, "update rule", err)
		return
	}
	s.logger.InfoContext(r.Context(), "rule updated", "rule_id", id, "enabled", updated.Enabled)
	respondJSON(w, http.StatusOK, s.withWarnings(r, updated))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteRule(r.Context(), id); err != nil {
		s.writeStoreError(w, r, "delete rule", err)
		return
	}
	s.logger.InfoContext(r.Context(), "rule deleted", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// withWarnings attaches the rulespec problems of a stored rule. The engine
// records such rules as FAILED or SKIPPED at run time, so they are accepted.
func (s *Server) withWarnings(r *http.Request, rule domain.WorkflowRule) ruleResponse {
	warnings := rulespec.Validate(rule)
	if len(warnings) > 0 {
		s.logger.WarnContext(r.Context(), "rule stored with problems", "rule_id", rule.ID, "warnings", len(warnings))
	}
	return ruleResponse{WorkflowRule: rule, Warnings: warnings}
}

func (p patchRequest) toPatch() (domain.RulePatch, error) {
	patch := domain.RulePatch{
		Name:        p.Name,
		Description: p.Description,
		Enabled:     p.Enabled,
		Position:    p.Position,
	}
	if p.TriggerEvent != nil {
		t := domain.EventType(*p.TriggerEvent)
		patch.TriggerEvent = &t
	}
	if p.ActionType != nil {
		t := domain.ActionType(*p.ActionType)
		patch.ActionType = &t
	}
	if p.Condition != nil {
		cond, err := configText(p.Condition)
		if err != nil {
			return patch, fmt.Errorf("condition_json %v", err)
		}
		patch.ConditionRaw = &cond
	}
	if p.ActionConfig != nil {
		config, err := configText(p.ActionConfig)
		if err != nil {
			return patch, fmt.Errorf("action_config %v", err)
		}
		patch.ActionConfig = &config
	}
	return patch, nil
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryLimit(r, 100, 1000)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "bad-request", err.Error())
		return
	}
	f := store.ExecutionFilter{
		RuleID:  q.Get("rule_id"),
		EventID: q.Get("event_id"),
		Status:  domain.ExecutionStatus(q.Get("status")),
		Limit:   limit,
	}
	if f.Status != "" && !f.Status.Valid() {
		writeProblem(w, http.StatusBadRequest, "bad-request", "status must be SUCCESS, FAILED or SKIPPED")
		return
	}

	execs, err := s.store.ListExecutions(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, r, "list executions", err)
		return
	}
	f.Limit = 0
	total, err := s.store.CountExecutions(r.Context(), f)
	if err != nil {
		s.writeStoreError(w, r, "count executions", err)
		return
	}
	if execs == nil {
		execs = []domain.RuleExecution{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"executions": execs, "total": total})
}
