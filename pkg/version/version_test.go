package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withBuild sets the ldflags-controlled variables for one test.
func withBuild(t *testing.T, v, commit, date string) {
	t.Helper()
	oldV, oldC, oldD := Version, Commit, Date
	Version, Commit, Date = v, commit, date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })
}

func TestString_ReportsReleaseBuild(t *testing.T) {
	withBuild(t, "0.4.1", "3f2c9ab", "2026-10-01T09:00:00Z")

	assert.Equal(t,
		"mojify 0.4.1 (commit: 3f2c9ab, built: 2026-10-01T09:00:00Z, go: "+GoVersion+")",
		String())
	assert.Equal(t, "0.4.1", Short())
}

func TestString_DevBuildDefaults(t *testing.T) {
	withBuild(t, "dev", "unknown", "unknown")

	assert.Equal(t, "mojify dev (commit: unknown, built: unknown, go: "+runtime.Version()+")", String())
}

func TestUserAgent(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"0.4.1", "mojify/0.4.1"},
		{"1.0.0-rc.1", "mojify/1.0.0-rc.1"},
		{"dev", "mojify/dev"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			withBuild(t, tt.version, Commit, Date)
			assert.Equal(t, tt.want, UserAgent())
		})
	}
}

func TestGetInfo_JSONShapeForVersionCommand(t *testing.T) {
	// Given: a release build
	withBuild(t, "0.4.1", "3f2c9ab", "2026-10-01T09:00:00Z")

	// When: encoding the info the way `mojify version --json` does
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	// Then: the keys are snake_case and the platform comes from the runtime
	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, map[string]string{
		"version":    "0.4.1",
		"commit":     "3f2c9ab",
		"date":       "2026-10-01T09:00:00Z",
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}, parsed)
}
