package domain

import "time"

// Contact is the CRM projection the engine reads and updates. It is owned
// by the intake subsystem; the engine only touches status and assigned_to.
type Contact struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Contact lifecycle statuses accepted by storage.
var ContactStatuses = []string{"LEAD", "QUALIFIED", "ONBOARDING", "ACTIVE", "CHURNED"}

// User is the subset of an account the engine needs to address mail.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}
