// Package paths resolves where pipewatch keeps its files.
package paths

import (
	"os"
	"path/filepath"
)

const (
	// DirName is the per-project directory holding config and logs.
	DirName = ".pipewatch"
	// ConfigFileName is the config file name in every lookup location.
	ConfigFileName = "config.yaml"
)

// LocalConfig is the config path relative to the working directory.
func LocalConfig() string {
	return filepath.Join(DirName, ConfigFileName)
}

// UserConfigDir returns ~/.config/pipewatch, or "" when the home directory
// is unknown.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "pipewatch")
}

// ResolveConfig picks the config file to read and reports whether it exists.
//
// Lookup order:
//   - explicit, when non-empty (returned as is, even if missing)
//   - ./.pipewatch/config.yaml
//   - ~/.config/pipewatch/config.yaml
//
// When neither default location has a file, LocalConfig is returned with
// found=false so the caller can create it there.
func ResolveConfig(explicit string) (path string, found bool) {
	if explicit != "" {
		return explicit, exists(explicit)
	}
	if local := LocalConfig(); exists(local) {
		return local, true
	}
	if dir := UserConfigDir(); dir != "" {
		if user := filepath.Join(dir, ConfigFileName); exists(user) {
			return user, true
		}
	}
	return LocalConfig(), false
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
