package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/switchyard/internal/domain"
)

func TestEmit_RunsEnabledRules(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "rules", "enable", "wf-intake-assign", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "emit", "--db", db, "--format", "json",
		"--subject", "u1", "--type", "TriageTicket", "--title", "New intake")
	require.NoError(t, err)

	var emitted struct {
		Status string             `json:"status"`
		Data   domain.DomainEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &emitted))
	assert.Equal(t, "ok", emitted.Status)
	assert.Equal(t, domain.EventTriageTicket, emitted.Data.Type)
	assert.Equal(t, "u1", emitted.Data.SubjectID)
	require.NotEmpty(t, emitted.Data.ID)

	out, err = execute(t, "executions", "--db", db, "--format", "json")
	require.NoError(t, err)
	var ledger struct {
		Data ExecutionsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &ledger))
	assert.Equal(t, 1, ledger.Data.Total)
	require.Len(t, ledger.Data.Executions, 1)
	row := ledger.Data.Executions[0]
	assert.Equal(t, "wf-intake-assign", row.RuleID)
	assert.Equal(t, emitted.Data.ID, row.EventID)
	assert.Equal(t, domain.StatusSuccess, row.Status)

	out, err = execute(t, "executions", "--db", db, "--rule", "wf-intake-assign")
	require.NoError(t, err)
	assert.Contains(t, out, "EXECUTED_AT")
	assert.Contains(t, out, "1 of 1 row(s)")

	out, err = execute(t, "executions", "--db", db, "--status", "FAILED")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 row(s)")
}

func TestEmit_TextOutput(t *testing.T) {
	out, err := execute(t, "emit", "--db", tempDB(t),
		"--subject", "u9", "--type", "PayoutStatus", "--title", "Paid")
	require.NoError(t, err)
	assert.Regexp(t, `^\S+ PayoutStatus u9\n$`, out)
}

func TestEmit_RequiredFlags(t *testing.T) {
	_, err := execute(t, "emit", "--db", tempDB(t), "--subject", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s)")
}

func TestExecutions_InvalidStatus(t *testing.T) {
	out, err := execute(t, "executions", "--db", tempDB(t), "--status", "DONE")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `invalid status "DONE"`)
}
