package domain

import (
	"encoding/json"
	"fmt"
)

// ActionType is the stored discriminator of a rule's action.
type ActionType string

// The closed set of action kinds. Adding one means adding a type below,
// a case in ParseAction and a case in the engine's dispatcher.
const (
	ActionUpdateSubjectStatus ActionType = "UPDATE_CONTACT_STATUS"
	ActionAssignOwner         ActionType = "ASSIGN_TO_STAFF"
	ActionSendNotification    ActionType = "SEND_EMAIL"
	ActionCreateDerivedEvent  ActionType = "CREATE_FEED_EVENT"
)

// ActionTypes lists every action kind in declaration order.
var ActionTypes = []ActionType{
	ActionUpdateSubjectStatus,
	ActionAssignOwner,
	ActionSendNotification,
	ActionCreateDerivedEvent,
}

// Known reports whether t is one of the four action kinds.
func (t ActionType) Known() bool {
	for _, k := range ActionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Recipient tokens understood by SendNotification.To.
const (
	RecipientContact       = "contact"
	RecipientAssignedStaff = "assigned_staff"
)

// Action is the parsed, validated form of a rule's action config.
// The concrete types below are the only implementations.
type Action interface {
	Type() ActionType
	isAction()
}

// UpdateSubjectStatus sets the status of the contact linked to the event subject.
type UpdateSubjectStatus struct {
	ToStatus string `json:"to_status"`
}

// AssignOwner sets the owner of the contact linked to the event subject.
type AssignOwner struct {
	StaffID string `json:"staff_user_id"`
}

// SendNotification hands a templated message to the notification port.
type SendNotification struct {
	Template        string  `json:"template"`
	To              string  `json:"to"`
	SubjectOverride *string `json:"subject_override,omitempty"`
}

// CreateDerivedEvent appends a follow-up event without re-entering the engine.
type CreateDerivedEvent struct {
	EventType   EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DelayHours  *float64  `json:"delay_hours,omitempty"` // accepted, not yet honoured
}

func (UpdateSubjectStatus) Type() ActionType { return ActionUpdateSubjectStatus }
func (AssignOwner) Type() ActionType         { return ActionAssignOwner }
func (SendNotification) Type() ActionType    { return ActionSendNotification }
func (CreateDerivedEvent) Type() ActionType  { return ActionCreateDerivedEvent }

func (UpdateSubjectStatus) isAction() {}
func (AssignOwner) isAction()         {}
func (SendNotification) isAction()    {}
func (CreateDerivedEvent) isAction()  {}

// ConfigError reports an action config that does not fit its action type.
type ConfigError struct {
	ActionType ActionType
	Field      string // empty when the document itself is unreadable
	Message    string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s config: %s", e.ActionType, e.Message)
	}
	return fmt.Sprintf("%s config: %s: %s", e.ActionType, e.Field, e.Message)
}

// ParseAction decodes and validates config for the given action type.
// Keys are accepted in snake_case or camelCase ("to_status" or "toStatus").
// Every failure is a *ConfigError.
func ParseAction(t ActionType, config string) (Action, error) {
	switch t {
	case ActionUpdateSubjectStatus:
		var c struct {
			ToStatus      string `json:"to_status"`
			ToStatusCamel string `json:"toStatus"`
		}
		if err := decodeConfig(t, config, &c); err != nil {
			return nil, err
		}
		a := UpdateSubjectStatus{ToStatus: firstNonEmpty(c.ToStatus, c.ToStatusCamel)}
		if a.ToStatus == "" {
			return nil, required(t, "to_status")
		}
		return a, nil

	case ActionAssignOwner:
		var c struct {
			StaffUserID      string `json:"staff_user_id"`
			StaffUserIDCamel string `json:"staffUserId"`
			StaffID          string `json:"staffId"`
		}
		if err := decodeConfig(t, config, &c); err != nil {
			return nil, err
		}
		a := AssignOwner{StaffID: firstNonEmpty(c.StaffUserID, c.StaffUserIDCamel, c.StaffID)}
		if a.StaffID == "" {
			return nil, required(t, "staff_user_id")
		}
		return a, nil

	case ActionSendNotification:
		var c struct {
			Template             string  `json:"template"`
			To                   string  `json:"to"`
			SubjectOverride      *string `json:"subject_override"`
			SubjectOverrideCamel *string `json:"subjectOverride"`
		}
		if err := decodeConfig(t, config, &c); err != nil {
			return nil, err
		}
		a := SendNotification{Template: c.Template, To: c.To, SubjectOverride: c.SubjectOverride}
		if a.SubjectOverride == nil {
			a.SubjectOverride = c.SubjectOverrideCamel
		}
		if a.Template == "" {
			return nil, required(t, "template")
		}
		if a.To == "" {
			return nil, required(t, "to")
		}
		return a, nil

	case ActionCreateDerivedEvent:
		var c struct {
			Type            EventType `json:"type"`
			Title           string    `json:"title"`
			Description     string    `json:"description"`
			DelayHours      *float64  `json:"delay_hours"`
			DelayHoursCamel *float64  `json:"delayHours"`
		}
		if err := decodeConfig(t, config, &c); err != nil {
			return nil, err
		}
		a := CreateDerivedEvent{EventType: c.Type, Title: c.Title, Description: c.Description, DelayHours: c.DelayHours}
		if a.DelayHours == nil {
			a.DelayHours = c.DelayHoursCamel
		}
		if a.EventType == "" {
			return nil, required(t, "type")
		}
		if a.Title == "" {
			return nil, required(t, "title")
		}
		if a.DelayHours != nil && *a.DelayHours < 0 {
			return nil, &ConfigError{ActionType: t, Field: "delay_hours", Message: "must not be negative"}
		}
		return a, nil
	}

	return nil, &ConfigError{ActionType: t, Message: fmt.Sprintf("unknown action type %q", string(t))}
}

func decodeConfig(t ActionType, config string, dst any) error {
	if err := json.Unmarshal([]byte(config), dst); err != nil {
		return &ConfigError{ActionType: t, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func required(t ActionType, field string) error {
	return &ConfigError{ActionType: t, Field: field, Message: "is required"}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
