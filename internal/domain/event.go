package domain

import "time"

// TimeLayout is the text form used for every stored timestamp.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// EventType names a kind of domain event. The set is open: rules reference
// types by string and a new business event needs no engine change.
type EventType string

// Event types emitted by the application today.
const (
	EventAccountRegistration EventType = "AccountRegistration"
	EventOnboardingProgress  EventType = "OnboardingProgress"
	EventRoleRequestUpdate   EventType = "RoleRequestUpdate"
	EventReferralActivity    EventType = "ReferralActivity"
	EventPayoutStatus        EventType = "PayoutStatus"
	EventSubscriptionEvent   EventType = "SubscriptionEvent"
	EventTriageTicket        EventType = "TriageTicket"
	EventFollowUpAction      EventType = "FollowUpAction"
)

// DomainEvent is one row of the append-only event log.
type DomainEvent struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ActionURL   string    `json:"action_url,omitempty"` // empty means none
	CreatedAt   time.Time `json:"created_at"`
}

// NewEvent is an event before the log assigns its ID and timestamp.
type NewEvent struct {
	SubjectID   string    `json:"subject_id"`
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ActionURL   string    `json:"action_url,omitempty"`
}

// Validate reports the first missing required field.
func (e NewEvent) Validate() error {
	switch {
	case e.SubjectID == "":
		return &FieldError{Field: "subject_id", Message: "subject_id is required"}
	case e.Type == "":
		return &FieldError{Field: "type", Message: "type is required"}
	case e.Title == "":
		return &FieldError{Field: "title", Message: "title is required"}
	}
	return nil
}

// Materialize stamps the event with its identity and creation time.
func (e NewEvent) Materialize(id string, at time.Time) DomainEvent {
	return DomainEvent{
		ID:          id,
		SubjectID:   e.SubjectID,
		Type:        e.Type,
		Title:       e.Title,
		Description: e.Description,
		ActionURL:   e.ActionURL,
		CreatedAt:   at.UTC().Truncate(time.Millisecond),
	}
}

// FieldError reports an invalid or missing input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}
