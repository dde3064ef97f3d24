package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/switchyard/internal/notify"
)

func intPtr(n int) *int { return &n }

func TestAssertNotification(t *testing.T) {
	msgs := []notify.Message{
		{To: "a@example.com", Subject: "Studio Ordo - welcome", Tag: "workflow-welcome"},
		{To: "b@example.com", Subject: "Studio Ordo - welcome", Tag: "workflow-welcome"},
		{To: "a@example.com", Subject: "Hi", Tag: "workflow-other"},
	}

	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"any", Assertion{}, true},
		{"by recipient", Assertion{To: "a@example.com"}, true},
		{"by recipient exact count", Assertion{To: "a@example.com", Count: intPtr(2)}, true},
		{"wrong count", Assertion{To: "a@example.com", Count: intPtr(1)}, false},
		{"by tag", Assertion{Tag: "workflow-welcome", Count: intPtr(2)}, true},
		{"all fields", Assertion{To: "b@example.com", Subject: "Studio Ordo - welcome", Tag: "workflow-welcome"}, true},
		{"no match", Assertion{To: "c@example.com"}, false},
		{"zero expected", Assertion{To: "c@example.com", Count: intPtr(0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertNotification(msgs, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertNotification, ae.Type)
		})
	}
}

func TestAssertNotification_NoneSent(t *testing.T) {
	err := assertNotification(nil, Assertion{Tag: "workflow-welcome"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one notification matching tag=workflow-welcome")
	assert.Contains(t, err.Error(), "none among 0 sent")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertContact, Expected: `user u1 status = "ACTIVE"`, Actual: `"LEAD"`}
	assert.Equal(t, "Assertion failed: contact\n  Expected: user u1 status = \"ACTIVE\"\n  Actual: \"LEAD\"", err.Error())
}
