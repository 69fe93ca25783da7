package config

import (
	"encoding/json"
	"os"

	"github.com/google/renameio/v2"
)

// SnapshotPath is the advisory runtime snapshot file named in spec §6
// ("Persisted state"), written atomically by WriteSnapshot at startup
// once configuration has loaded and plugins are built, and removed on
// clean process exit. A stale file from a prior crash is simply
// overwritten by the next startup's WriteSnapshot, never read back in-process —
// it exists for other processes in the same deployment to introspect
// the live configuration without re-parsing the environment.
const SnapshotPath = ".config.runtime"

// WriteSnapshot atomically persists settings as JSON to SnapshotPath
// using renameio, so a reader never observes a partially written
// file.
func WriteSnapshot(settings *Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(SnapshotPath, data, 0o644)
}

// RemoveSnapshot deletes the runtime snapshot file on clean shutdown.
// A missing file is not an error.
func RemoveSnapshot() error {
	err := os.Remove(SnapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
