// Package domain provides the record types shared by the workflow routing
// engine and the storage layer.
//
// This package contains type definitions and pure parsing only. All other
// internal packages import domain; domain imports nothing internal.
//
// Key design constraints:
//   - DomainEvent is immutable once written; nothing in this module updates it
//   - Action is a closed sum type: one Go type per action kind
//   - Action configs are parsed when a rule executes, never when it is stored
//   - All JSON tags use snake_case to match the storage columns
package domain
