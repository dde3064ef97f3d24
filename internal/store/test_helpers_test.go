package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/switchyard/internal/domain"
)

var testTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates and stores an event with minimal required fields.
func createTestEvent(t *testing.T, s *Store, id, subjectID string, typ domain.EventType, offset time.Duration) domain.DomainEvent {
	t.Helper()
	ev := domain.NewEvent{SubjectID: subjectID, Type: typ, Title: "title " + id}.Materialize(id, testTime.Add(offset))
	if err := s.AppendEvent(context.Background(), ev); err != nil {
		t.Fatalf("AppendEvent(%s) failed: %v", id, err)
	}
	return ev
}

// createTestRule creates a rule with an AssignOwner action.
func createTestRule(id string, trigger domain.EventType, position int) domain.WorkflowRule {
	return domain.WorkflowRule{
		ID:           id,
		Name:         "rule " + id,
		TriggerEvent: trigger,
		ActionType:   domain.ActionAssignOwner,
		ActionConfig: `{"staff_user_id":"staff-1"}`,
		Enabled:      true,
		Position:     position,
		CreatedBy:    "test",
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
}

// clearSeedRules removes the starter rules shipped by the migrations.
func clearSeedRules(t *testing.T, s *Store) {
	t.Helper()
	if _, err := s.db.Exec(`DELETE FROM workflow_rules`); err != nil {
		t.Fatalf("clear rules: %v", err)
	}
}
