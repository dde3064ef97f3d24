package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_FreshDatabase(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "migrate", "status", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 0 (latest 2)\n", out)

	out, err = execute(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "schema version 2 (latest 2)\n", out)
}

func TestMigrate_DownAndUp(t *testing.T) {
	db := tempDB(t)

	_, err := execute(t, "migrate", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "migrate", "--to", "1", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   MigrationStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, MigrationStatus{Version: 1, Latest: 2}, resp.Data)

	out, err = execute(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2")
}

func TestMigrate_UnknownVersion(t *testing.T) {
	_, err := execute(t, "migrate", "--to", "9", "--db", tempDB(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema version 9")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
