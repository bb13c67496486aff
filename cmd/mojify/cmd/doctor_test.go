package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_Flags(t *testing.T) {
	cmd := newDoctorCmd(&globalOptions{})

	assert.NotNil(t, cmd.Flags().Lookup("json"))
	require.NotNil(t, cmd.Flags().Lookup("verbose"))
	assert.Equal(t, "v", cmd.Flags().Lookup("verbose").Shorthand)
}

func TestDoctorCmd_MissingCatalogFails(t *testing.T) {
	// Given: a project without a catalog database
	dir := emptyProject(t)

	// When: running diagnostics
	out, _, err := run(t, "--dir", dir, "doctor")

	// Then: the catalog check is reported as a critical failure
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system check failed")
	assert.Contains(t, out, "[FAIL] catalog")
	assert.Contains(t, out, "Status: FAILED")
}

func TestDoctorCmd_JSONReport(t *testing.T) {
	// Given: an indexed project using the static embedder
	dir := indexed(t)

	// When: running diagnostics as JSON
	out, _, _ := run(t, "--dir", dir, "doctor", "--json")

	// Then: every check is present and the project-specific ones pass
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Checks, 6)
	assert.NotEmpty(t, report.Status)

	statuses := make(map[string]string)
	for _, c := range report.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "pass", statuses["write_permissions"])
	assert.Equal(t, "pass", statuses["catalog"])
	assert.Equal(t, "pass", statuses["index"])
	assert.Equal(t, "pass", statuses["embedder"])
}

func TestDoctorCmd_VerboseShowsDetails(t *testing.T) {
	dir := newProject(t)

	out, _, _ := run(t, "--dir", dir, "doctor", "--verbose")

	assert.Contains(t, out, "Catalog: ")
	assert.Contains(t, out, "Provider: static")
}
