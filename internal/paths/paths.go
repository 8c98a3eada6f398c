// Package paths resolves where qlcli keeps its configuration and traces.
package paths

import (
	"os"
	"path/filepath"
)

// LocalConfigFile is the per-project config, relative to the working directory.
const LocalConfigFile = ".qlcli/config.yaml"

// UserConfigDir returns ~/.config/qlcli, or "" when the home directory is unknown.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "qlcli")
}

// UserConfigFile returns ~/.config/qlcli/config.yaml, or "".
func UserConfigFile() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// TracesFile returns ~/.config/qlcli/traces/traces.jsonl, or "".
func TracesFile() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// ResolveConfigFile picks the config file to load:
//   - explicit, when given
//   - LocalConfigFile, when it exists in the working directory
//   - UserConfigFile otherwise
//
// The bool reports whether the chosen file exists. The path is "" only when
// nothing was given and the home directory is unknown.
func ResolveConfigFile(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, exists(explicit)
	}
	if exists(LocalConfigFile) {
		return LocalConfigFile, true
	}
	user := UserConfigFile()
	if user == "" {
		return "", false
	}
	return user, exists(user)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
