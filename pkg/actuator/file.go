package actuator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/downtime/pkg/types"
)

// FileActuator enforces state by rewriting a config file and asking a
// service to reload it, e.g. a proxy whose access rules switch between
// "http_access deny all" and "http_access allow all".
type FileActuator struct {
	Path    string
	Paused  string // file content while paused
	Allowed string // file content while unpaused

	// Reload runs after the file is written; empty skips it
	Reload  []string
	Timeout time.Duration
}

// Apply writes the content for state and reloads
func (f *FileActuator) Apply(ctx context.Context, state types.State) error {
	var content string
	switch state {
	case types.StatePaused:
		content = f.Paused
	case types.StateUnpaused:
		content = f.Allowed
	default:
		return fmt.Errorf("%w: state %q", types.ErrInvalidArgument, state)
	}

	if err := writeAtomic(f.Path, []byte(content)); err != nil {
		return err
	}
	if len(f.Reload) == 0 {
		return nil
	}
	return run(ctx, f.Reload, f.Timeout)
}

// writeAtomic replaces path so readers never see a partial file
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".downtime-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
