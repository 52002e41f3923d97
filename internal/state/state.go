// Package state persists the reading position between runs.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Saved is the reading state restored at startup.
type Saved struct {
	LastFile string    `json:"last_file,omitempty"`
	Caret    int       `json:"caret"`
	Voice    string    `json:"voice,omitempty"`
	Rate     int       `json:"rate"`
	SavedAt  time.Time `json:"saved_at"`
}

// DefaultPath returns the state file location under the user config dir,
// typically ~/.config/readaloud/state.json.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "readaloud", "state.json"), nil
}

// Load reads the state file. A missing file yields the zero state.
func Load(path string) (*Saved, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Saved{}, nil
		}
		return nil, err
	}

	var s Saved
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Caret < 0 {
		s.Caret = 0
	}
	return &s, nil
}

// Save writes s to path atomically, creating the directory if needed.
func Save(path string, s *Saved) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o640); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
