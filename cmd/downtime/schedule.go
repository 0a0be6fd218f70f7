package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage downtime windows",
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set ID DISABLE_AT ENABLE_AT",
	Short: "Set a client's daily window",
	Long: `Set the daily window during which a client is paused. Times are HH:MM
or HH:MM:SS in the controller's time zone; both ends are included. A window
whose start is after its end runs past midnight.

Examples:
  # Pause from 21:30 until 07:00 the next morning
  downtime schedule set laptop 21:30 07:00`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		w, err := c.SetWindow(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("failed to set window: %v", err)
		}
		fmt.Printf("✓ Window set: %s paused %s through %s\n", args[0], w.DisableAt, w.EnableAt)
		return nil
	},
}

var scheduleClearCmd = &cobra.Command{
	Use:   "clear ID",
	Short: "Remove a client's window; it stays unpaused",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ClearWindow(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to clear window: %v", err)
		}
		fmt.Printf("✓ Window cleared: %s\n", args[0])
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause ID",
	Short: "Pause a client now, regardless of its window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setOverride(cmd, args[0], "paused")
	},
}

var unpauseCmd = &cobra.Command{
	Use:   "unpause ID",
	Short: "Unpause a client now, regardless of its window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setOverride(cmd, args[0], "unpaused")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume ID",
	Short: "Drop a manual pause or unpause and follow the window again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ClearOverride(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to resume schedule: %v", err)
		}
		fmt.Printf("✓ Following schedule: %s\n", args[0])
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleSetCmd)
	scheduleCmd.AddCommand(scheduleClearCmd)

	for _, cmd := range []*cobra.Command{pauseCmd, unpauseCmd} {
		cmd.Flags().Duration("for", 0, "Expire the override after this long (e.g. 1h30m)")
		cmd.Flags().String("until", "", "Expire the override at this time (RFC 3339)")
		cmd.MarkFlagsMutuallyExclusive("for", "until")
	}
}

func setOverride(cmd *cobra.Command, id, state string) error {
	until, err := overrideUntil(cmd, time.Now())
	if err != nil {
		return err
	}

	c, err := connect(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	o, err := c.SetOverride(cmd.Context(), id, state, until)
	if err != nil {
		return fmt.Errorf("failed to %s client: %v", state[:len(state)-1], err)
	}
	fmt.Printf("✓ Client %s: %s %s\n", o.State, id, untilText(o.Until))
	return nil
}

// overrideUntil turns --for or --until into an expiry; zero means none
func overrideUntil(cmd *cobra.Command, now time.Time) (time.Time, error) {
	if d, _ := cmd.Flags().GetDuration("for"); d != 0 {
		if d < 0 {
			return time.Time{}, fmt.Errorf("--for must be positive, got %s", d)
		}
		return now.Add(d), nil
	}
	s, _ := cmd.Flags().GetString("until")
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --until: %v", err)
	}
	return t, nil
}
