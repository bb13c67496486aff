package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.mojify/logs, or a temp-dir equivalent when the
// home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mojify", "logs")
	}
	return filepath.Join(home, ".mojify", "logs")
}

// DefaultLogPath returns the server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
