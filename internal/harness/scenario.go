package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/switchyard/internal/domain"
)

// Scenario is one conformance test: seed data, rules, a sequence of
// events, and assertions on what the engine did.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SchemaVersion migrates the database to this version instead of the
	// latest. Version 1 has no rules table: the engine is absent.
	SchemaVersion uint `yaml:"schema_version,omitempty"`

	// KeepSeedRules keeps the disabled rules the migrations seed.
	KeepSeedRules bool `yaml:"keep_seed_rules,omitempty"`

	// RulesFile is a CUE rule file, relative to the scenario file.
	RulesFile string `yaml:"rules_file,omitempty"`

	Rules    []RuleStep    `yaml:"rules,omitempty"`
	Users    []UserStep    `yaml:"users,omitempty"`
	Contacts []ContactStep `yaml:"contacts,omitempty"`

	// Events are appended in order through the public writer.
	Events []EventStep `yaml:"events"`

	Assertions []Assertion `yaml:"assertions"`

	// Brand and DashboardURL override the notification defaults.
	Brand        string `yaml:"brand,omitempty"`
	DashboardURL string `yaml:"dashboard_url,omitempty"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// RuleStep declares a workflow rule. Condition and Action.Config are
// written as YAML maps; ConditionJSON and Action.ConfigJSON take raw text
// instead, which is how malformed stored rules are reproduced.
type RuleStep struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name,omitempty"`
	Trigger       string         `yaml:"trigger"`
	Condition     map[string]any `yaml:"condition,omitempty"`
	ConditionJSON string         `yaml:"condition_json,omitempty"`
	Action        ActionStep     `yaml:"action"`
	Enabled       *bool          `yaml:"enabled,omitempty"`
	Position      int            `yaml:"position,omitempty"`
}

// ActionStep is a rule's action.
type ActionStep struct {
	Type       string         `yaml:"type"`
	Config     map[string]any `yaml:"config,omitempty"`
	ConfigJSON string         `yaml:"config_json,omitempty"`
}

// UserStep seeds a user account.
type UserStep struct {
	ID          string `yaml:"id"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// ContactStep seeds a CRM contact.
type ContactStep struct {
	ID         string `yaml:"id,omitempty"`
	UserID     string `yaml:"user_id"`
	Email      string `yaml:"email"`
	FullName   string `yaml:"full_name,omitempty"`
	Status     string `yaml:"status,omitempty"`
	AssignedTo string `yaml:"assigned_to,omitempty"`
}

// EventStep is an event appended through the public writer.
type EventStep struct {
	SubjectID   string `yaml:"subject_id"`
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	ActionURL   string `yaml:"action_url,omitempty"`
}

// Assertion checks the final ledger, projection or notifications.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Rule and Event select ledger rows (execution, execution_count).
	Rule  string `yaml:"rule,omitempty"`
	Event string `yaml:"event,omitempty"`

	// Status is the expected row status (execution), or a filter
	// (execution_count).
	Status string `yaml:"status,omitempty"`

	// Error is a substring the row's error must contain (execution).
	Error string `yaml:"error,omitempty"`

	// User selects a contact by its linked user ID (contact).
	User string `yaml:"user,omitempty"`

	// Expect holds contact fields to compare: status, assigned_to.
	Expect map[string]string `yaml:"expect,omitempty"`

	// EventType and SubjectID filter the event log (event_count).
	EventType string `yaml:"event_type,omitempty"`
	SubjectID string `yaml:"subject_id,omitempty"`

	// To, Subject and Tag match notifications (notification).
	To      string `yaml:"to,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Tag     string `yaml:"tag,omitempty"`

	// Count is the exact number expected. For notification a nil Count
	// means at least one.
	Count *int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertExecution      = "execution"
	AssertExecutionCount = "execution_count"
	AssertContact        = "contact"
	AssertEventCount     = "event_count"
	AssertNotification   = "notification"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// ParseScenario parses scenario YAML. A RulesFile is resolved against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, r := range s.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d: id is required", i)
		}
		if r.Condition != nil && r.ConditionJSON != "" {
			return fmt.Errorf("rule %s: condition and condition_json are exclusive", r.ID)
		}
		if r.Action.Config != nil && r.Action.ConfigJSON != "" {
			return fmt.Errorf("rule %s: action config and config_json are exclusive", r.ID)
		}
	}
	for i, e := range s.Events {
		if e.SubjectID == "" || e.Type == "" {
			return fmt.Errorf("event %d: subject_id and type are required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertExecution:
		if a.Rule == "" {
			return fmt.Errorf("execution requires 'rule'")
		}
		if !domain.ExecutionStatus(a.Status).Valid() {
			return fmt.Errorf("execution requires 'status' of SUCCESS, FAILED or SKIPPED")
		}
	case AssertExecutionCount, AssertEventCount:
		if a.Count == nil {
			return fmt.Errorf("%s requires 'count'", a.Type)
		}
	case AssertContact:
		if a.User == "" || len(a.Expect) == 0 {
			return fmt.Errorf("contact requires 'user' and 'expect'")
		}
		for k := range a.Expect {
			if k != "status" && k != "assigned_to" {
				return fmt.Errorf("contact cannot compare field %q", k)
			}
		}
	case AssertNotification:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// rule converts the step into a storable rule.
func (r RuleStep) rule() (domain.WorkflowRule, error) {
	out := domain.WorkflowRule{
		ID:           r.ID,
		Name:         r.Name,
		TriggerEvent: domain.EventType(r.Trigger),
		ConditionRaw: r.ConditionJSON,
		ActionType:   domain.ActionType(r.Action.Type),
		ActionConfig: r.Action.ConfigJSON,
		Enabled:      r.Enabled == nil || *r.Enabled,
		Position:     r.Position,
		CreatedBy:    "harness",
	}
	if out.Name == "" {
		out.Name = r.ID
	}
	if r.Condition != nil {
		b, err := json.Marshal(r.Condition)
		if err != nil {
			return out, fmt.Errorf("rule %s: condition: %w", r.ID, err)
		}
		out.ConditionRaw = string(b)
	}
	if r.Action.Config != nil {
		b, err := json.Marshal(r.Action.Config)
		if err != nil {
			return out, fmt.Errorf("rule %s: config: %w", r.ID, err)
		}
		out.ActionConfig = string(b)
	}
	return out, nil
}
