package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StateFile persists the time of the last successful reminder run.
type StateFile struct {
	Path string
}

type runState struct {
	LastRun time.Time `yaml:"last_run"`
}

// Load returns the last run time, or the zero time when the file is missing.
// A broken file yields the zero time together with the parse error.
func (f StateFile) Load() (time.Time, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	var st runState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	return st.LastRun, nil
}

// Save writes t atomically through a temp file in the same directory.
func (f StateFile) Save(t time.Time) error {
	data, err := yaml.Marshal(runState{LastRun: t.Truncate(time.Second)})
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".reminder-state-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}
