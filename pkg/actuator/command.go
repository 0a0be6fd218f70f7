package actuator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cuemby/downtime/pkg/types"
)

// CommandActuator runs operator-configured commands, for example
//
//	block:   ["netsh", "advfirewall", "firewall", "add", "rule", "name=downtime", "dir=out", "action=block"]
//	unblock: ["netsh", "advfirewall", "firewall", "delete", "rule", "name=downtime"]
//
// The commands themselves must be safe to repeat; Idempotent only protects
// against repeats within one agent process.
type CommandActuator struct {
	// Block is run to pause the host
	Block []string

	// Unblock is run to unpause the host
	Unblock []string

	// Timeout is the command execution timeout (default: 30 seconds)
	Timeout time.Duration
}

// NewCommandActuator creates a command actuator
func NewCommandActuator(block, unblock []string) *CommandActuator {
	return &CommandActuator{
		Block:   block,
		Unblock: unblock,
		Timeout: 30 * time.Second,
	}
}

// Apply runs the command for state
func (c *CommandActuator) Apply(ctx context.Context, state types.State) error {
	var command []string
	switch state {
	case types.StatePaused:
		command = c.Block
	case types.StateUnpaused:
		command = c.Unblock
	default:
		return fmt.Errorf("%w: state %q", types.ErrInvalidArgument, state)
	}
	return run(ctx, command, c.Timeout)
}

// run executes command and folds stderr into the error
func run(ctx context.Context, command []string, timeout time.Duration) error {
	if len(command) == 0 {
		return fmt.Errorf("no command specified")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, command[0], command[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		if msg != "" {
			return fmt.Errorf("command %v: %w: %s", command, err, msg)
		}
		return fmt.Errorf("command %v: %w", command, err)
	}
	return nil
}
