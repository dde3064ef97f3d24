package domain

import "time"

// WorkflowRule is a user-configured routing rule. The engine only reads
// rules; administration happens elsewhere.
type WorkflowRule struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	TriggerEvent EventType  `json:"trigger_event"`
	ConditionRaw string     `json:"condition_json,omitempty"` // empty means always match
	ActionType   ActionType `json:"action_type"`
	ActionConfig string     `json:"action_config"`
	Enabled      bool       `json:"enabled"`
	Position     int        `json:"position"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasCondition reports whether the rule carries a condition.
func (r WorkflowRule) HasCondition() bool {
	return r.ConditionRaw != ""
}

// Condition parses the stored condition.
func (r WorkflowRule) Condition() (ConditionSpec, error) {
	return ParseCondition(r.ConditionRaw)
}

// Action parses the stored action config for the declared action type.
func (r WorkflowRule) Action() (Action, error) {
	return ParseAction(r.ActionType, r.ActionConfig)
}

// Validate checks the fields storage requires. It does not parse the
// condition or the action config; those are checked when the rule runs.
func (r WorkflowRule) Validate() error {
	switch {
	case r.ID == "":
		return &FieldError{Field: "id", Message: "id is required"}
	case r.Name == "":
		return &FieldError{Field: "name", Message: "name is required"}
	case r.TriggerEvent == "":
		return &FieldError{Field: "trigger_event", Message: "trigger_event is required"}
	case r.ActionType == "":
		return &FieldError{Field: "action_type", Message: "action_type is required"}
	case !r.ActionType.Known():
		return &FieldError{Field: "action_type", Message: "unknown action_type " + string(r.ActionType)}
	case r.ActionConfig == "":
		return &FieldError{Field: "action_config", Message: "action_config is required"}
	}
	return nil
}

// RulePatch is a partial rule update. Nil fields are left unchanged.
// A non-nil empty ConditionRaw removes the condition.
type RulePatch struct {
	Name         *string     `json:"name,omitempty"`
	Description  *string     `json:"description,omitempty"`
	TriggerEvent *EventType  `json:"trigger_event,omitempty"`
	ConditionRaw *string     `json:"condition_json,omitempty"`
	ActionType   *ActionType `json:"action_type,omitempty"`
	ActionConfig *string     `json:"action_config,omitempty"`
	Enabled      *bool       `json:"enabled,omitempty"`
	Position     *int        `json:"position,omitempty"`
}

// Apply returns r with the patch applied. UpdatedAt is not touched.
func (p RulePatch) Apply(r WorkflowRule) WorkflowRule {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.TriggerEvent != nil {
		r.TriggerEvent = *p.TriggerEvent
	}
	if p.ConditionRaw != nil {
		r.ConditionRaw = *p.ConditionRaw
	}
	if p.ActionType != nil {
		r.ActionType = *p.ActionType
	}
	if p.ActionConfig != nil {
		r.ActionConfig = *p.ActionConfig
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Position != nil {
		r.Position = *p.Position
	}
	return r
}

// Empty reports whether the patch changes nothing.
func (p RulePatch) Empty() bool {
	return p == RulePatch{}
}
