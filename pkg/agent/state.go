package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/downtime/pkg/types"
)

// savedState is what the agent keeps on disk so it can enforce the last
// known schedule after a reboot with the controller unreachable
type savedState struct {
	Window   *types.Window   `json:"window,omitempty"`
	Override *types.Override `json:"override,omitempty"`
	SavedAt  time.Time       `json:"saved_at"`
}

func loadState(path string) (savedState, error) {
	var st savedState
	if path == "" {
		return st, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return savedState{}, fmt.Errorf("failed to parse state file: %w", err)
	}
	return st, nil
}

func saveState(path string, st savedState) error {
	if path == "" {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return os.Rename(tmp, path)
}
