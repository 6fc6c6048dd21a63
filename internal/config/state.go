package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// State is what ovm remembers between invocations.
type State struct {
	// NextPullCheck is the day the next scheduled pull check is due.
	NextPullCheck time.Time
}

type stateFile struct {
	NextPullCheck string `yaml:"next_pull_check,omitempty"`
}

// LoadState reads the state file. A missing file yields the zero State.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var raw stateFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("parse %s: %w", path, err)
	}
	var state State
	if raw.NextPullCheck != "" {
		next, err := time.ParseInLocation(dateLayout, raw.NextPullCheck, time.Local)
		if err != nil {
			return State{}, fmt.Errorf("parse next_pull_check in %s: %w", path, err)
		}
		state.NextPullCheck = next
	}
	return state, nil
}

// SaveState writes state, keeping only the date of NextPullCheck.
func SaveState(path string, state State) error {
	raw := stateFile{}
	if !state.NextPullCheck.IsZero() {
		raw.NextPullCheck = state.NextPullCheck.Format(dateLayout)
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
