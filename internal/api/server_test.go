package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/engine"
	"github.com/roach88/switchyard/internal/eventlog"
	"github.com/roach88/switchyard/internal/metrics"
	"github.com/roach88/switchyard/internal/notify"
	"github.com/roach88/switchyard/internal/rulespec"
	"github.com/roach88/switchyard/internal/store"
	"github.com/roach88/switchyard/internal/testutil"
)

// ServerSuite runs the handlers against a real store and engine.
type ServerSuite struct {
	suite.Suite
	store  *store.Store
	notes  *notify.Recorder
	router http.Handler
}

func (s *ServerSuite) SetupTest() {
	st, err := store.Open(filepath.Join(s.T().TempDir(), "api.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { st.Close() })
	_, err = st.DB().Exec(`DELETE FROM workflow_rules`)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clock := testutil.NewStepClock(testutil.DefaultBase, 0)
	log := eventlog.NewLog(st, testutil.NewSequence("evt"), clock, m)
	s.notes = &notify.Recorder{}
	eng := engine.New(st, log, s.notes,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithClock(clock),
		engine.WithIDs(testutil.NewSequence("exec")),
	)

	srv := New(st, eventlog.NewWriter(log, eng, logger),
		WithLogger(logger),
		WithGatherer(reg),
		WithClock(clock),
		WithIDs(testutil.NewSequence("rule")),
	)
	s.store = st
	s.router = srv.Routes()
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

const assignRule = `{
	"id": "wf-assign",
	"name": "Assign intake",
	"trigger_event": "TriageTicket",
	"action_type": "ASSIGN_TO_STAFF",
	"action_config": {"staff_user_id": "staff-9"}
}`

func (s *ServerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *ServerSuite) TestCreateAndGetRule() {
	rec := s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[domain.WorkflowRule](s.T(), rec)
	s.Equal("wf-assign", created.ID)
	s.True(created.Enabled, "enabled defaults to true")
	s.Equal(`{"staff_user_id":"staff-9"}`, created.ActionConfig)
	s.Equal("api", created.CreatedBy)
	s.Equal(testutil.DefaultBase, created.CreatedAt)

	rec = s.do(http.MethodGet, "/api/v1/admin/workflows/wf-assign", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(created, decode[domain.WorkflowRule](s.T(), rec))
}

func (s *ServerSuite) TestCreateRule_GeneratesIDAndAcceptsStringConfig() {
	body := `{
		"name": "Welcome",
		"trigger_event": "AccountRegistration",
		"condition_json": "{\"field\":\"title\",\"operator\":\"contains\",\"value\":\"New\"}",
		"action_type": "SEND_EMAIL",
		"action_config": "{\"template\":\"welcome\",\"to\":\"contact\"}",
		"enabled": false,
		"position": 3
	}`
	rec := s.do(http.MethodPost, "/api/v1/admin/workflows", body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[domain.WorkflowRule](s.T(), rec)
	s.Equal("rule-0001", created.ID)
	s.False(created.Enabled)
	s.Equal(3, created.Position)
	s.Equal(`{"field":"title","operator":"contains","value":"New"}`, created.ConditionRaw)
}

func (s *ServerSuite) TestCreateRule_Invalid() {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"unknown field", `{"nme":"x"}`, http.StatusBadRequest},
		{"config not object", `{"name":"x","trigger_event":"T","action_type":"SEND_EMAIL","action_config":[1]}`, http.StatusBadRequest},
		{"missing name", `{"trigger_event":"T","action_type":"SEND_EMAIL","action_config":{"template":"t"}}`, http.StatusBadRequest},
		{"unknown action", `{"name":"x","trigger_event":"T","action_type":"PAGE","action_config":{"a":1}}`, http.StatusBadRequest},
		{"missing config", `{"name":"x","trigger_event":"T","action_type":"SEND_EMAIL"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, "/api/v1/admin/workflows", tt.body)
			s.Equal(tt.status, rec.Code, rec.Body.String())
			s.Equal("application/problem+json", rec.Header().Get("Content-Type"))
			p := decode[Problem](s.T(), rec)
			s.Equal(tt.status, p.Status)
		})
	}
}

func (s *ServerSuite) TestCreateRule_StoresWithWarnings() {
	tests := []struct {
		name  string
		body  string
		field string
		code  string
	}{
		{"config missing template", `{"id":"wf-a","name":"x","trigger_event":"T","action_type":"SEND_EMAIL","action_config":{"to":"contact"}}`, "action_config", rulespec.ErrInvalidConfig},
		{"malformed config text", `{"id":"wf-b","name":"x","trigger_event":"T","action_type":"SEND_EMAIL","action_config":"{not json"}`, "action_config", rulespec.ErrInvalidConfig},
		{"unknown operator", `{"id":"wf-c","name":"x","trigger_event":"T","condition_json":{"field":"title","operator":"like","value":"a"},"action_type":"SEND_EMAIL","action_config":{"template":"t"}}`, "condition_json", rulespec.ErrUnknownOperator},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, "/api/v1/admin/workflows", tt.body)
			s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

			resp := decode[ruleResponse](s.T(), rec)
			s.Require().NotEmpty(resp.Warnings)
			s.Equal(tt.field, resp.Warnings[0].Field)
			s.Equal(tt.code, resp.Warnings[0].Code)

			s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/workflows/"+resp.ID, "").Code)
		})
	}
}

func (s *ServerSuite) TestCreateRule_Duplicate() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule).Code)
	rec := s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *ServerSuite) TestListRules() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule).Code)

	rec := s.do(http.MethodGet, "/api/v1/admin/workflows", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	resp := decode[rulesResponse](s.T(), rec)
	s.Equal(1, resp.Total)
	s.Len(resp.Rules, 1)

	rec = s.do(http.MethodGet, "/api/v1/admin/workflows?trigger_event=PayoutStatus", "")
	resp = decode[rulesResponse](s.T(), rec)
	s.Equal(0, resp.Total)
	s.NotNil(resp.Rules)
}

func (s *ServerSuite) TestPatchRule() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule).Code)

	rec := s.do(http.MethodPatch, "/api/v1/admin/workflows/wf-assign", `{"enabled":false,"condition_json":{"field":"title","operator":"eq","value":"x"}}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	got := decode[domain.WorkflowRule](s.T(), rec)
	s.False(got.Enabled)
	s.True(got.HasCondition())
	s.Equal("Assign intake", got.Name)

	rec = s.do(http.MethodPatch, "/api/v1/admin/workflows/wf-assign", `{"condition_json":null}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	got = decode[domain.WorkflowRule](s.T(), rec)
	s.False(got.HasCondition())

	rec = s.do(http.MethodPatch, "/api/v1/admin/workflows/wf-assign", `{"action_type":"SEND_EMAIL"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	warned := decode[ruleResponse](s.T(), rec)
	s.Equal(domain.ActionSendNotification, warned.ActionType)
	s.NotEmpty(warned.Warnings, "config no longer fits the action type")

	rec = s.do(http.MethodPatch, "/api/v1/admin/workflows/wf-assign", `{"name":""}`)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/v1/admin/workflows/missing", `{"enabled":true}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestDeleteRule() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule).Code)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/admin/workflows/wf-assign", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/admin/workflows/wf-assign", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/admin/workflows/wf-assign", "").Code)
}

func (s *ServerSuite) TestDeleteRule_RefusedWhenLedgerReferencesIt() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule).Code)
	s.Require().Equal(http.StatusCreated,
		s.do(http.MethodPost, "/api/v1/events", `{"subject_id":"u1","type":"TriageTicket","title":"Intake"}`).Code)

	rec := s.do(http.MethodDelete, "/api/v1/admin/workflows/wf-assign", "")
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(problemBase+"rule-in-use", decode[Problem](s.T(), rec).Type)
}

func (s *ServerSuite) TestAppendEvent_RunsRules() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateUser(ctx, domain.User{ID: "u1", Email: "u1@example.com"}, testutil.DefaultBase))
	s.Require().NoError(s.store.CreateContact(ctx, domain.Contact{
		ID: "c1", Email: "u1@example.com", UserID: "u1",
		CreatedAt: testutil.DefaultBase, UpdatedAt: testutil.DefaultBase,
	}))
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/admin/workflows", assignRule).Code)

	rec := s.do(http.MethodPost, "/api/v1/events", `{"subject_id":"u1","type":"TriageTicket","title":"Intake"}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[domain.DomainEvent](s.T(), rec)
	s.Equal("evt-0001", ev.ID)

	contact, err := s.store.GetContactByUser(ctx, "u1")
	s.Require().NoError(err)
	s.Equal("staff-9", contact.AssignedTo)

	rec = s.do(http.MethodGet, "/api/v1/admin/workflows/executions?event_id="+ev.ID, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp struct {
		Executions []domain.RuleExecution `json:"executions"`
		Total      int                    `json:"total"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Total)
	s.Require().Len(resp.Executions, 1)
	s.Equal(domain.StatusSuccess, resp.Executions[0].Status)
	s.Equal("wf-assign", resp.Executions[0].RuleID)
}

func (s *ServerSuite) TestAppendEvent_Invalid() {
	rec := s.do(http.MethodPost, "/api/v1/events", `{"subject_id":"u1","type":"TriageTicket"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(decode[Problem](s.T(), rec).Detail, "title")
}

func (s *ServerSuite) TestListEvents() {
	for _, title := range []string{"one", "two", "three"} {
		s.Require().Equal(http.StatusCreated,
			s.do(http.MethodPost, "/api/v1/events", `{"subject_id":"u1","type":"PayoutStatus","title":"`+title+`"}`).Code)
	}
	s.Require().Equal(http.StatusCreated,
		s.do(http.MethodPost, "/api/v1/events", `{"subject_id":"u2","type":"PayoutStatus","title":"other"}`).Code)

	rec := s.do(http.MethodGet, "/api/v1/events?subject_id=u1&limit=2", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp struct {
		Events []domain.DomainEvent `json:"events"`
		Total  int                  `json:"total"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(3, resp.Total)
	s.Require().Len(resp.Events, 2)
	s.Equal("three", resp.Events[0].Title)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/events?limit=zero", "").Code)
}

func (s *ServerSuite) TestListExecutions_BadStatus() {
	rec := s.do(http.MethodGet, "/api/v1/admin/workflows/executions?status=DONE", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestMetrics() {
	s.Require().Equal(http.StatusCreated,
		s.do(http.MethodPost, "/api/v1/events", `{"subject_id":"u1","type":"PayoutStatus","title":"paid"}`).Code)

	rec := s.do(http.MethodGet, "/metrics", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "switchyard_events_appended_total")
}

func TestConfigText(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"", "", false},
		{"null", "", false},
		{`"{\"a\":1}"`, `{"a":1}`, false},
		{`{ "a" : 1 }`, `{"a":1}`, false},
		{`[1]`, "", true},
		{`3`, "", true},
	}
	for _, tt := range tests {
		got, err := configText(json.RawMessage(tt.in))
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
