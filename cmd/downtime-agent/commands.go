package main

import (
	"fmt"

	"github.com/cuemby/downtime/pkg/agent"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent in the foreground or under the service manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logCfg := cfg.Log.Logging()
		logCfg.Process = "agent"
		log.Init(logCfg)

		path, _ := cmd.Flags().GetString("config")
		s, err := newService(&program{cfg: cfg}, path)
		if err != nil {
			return err
		}
		return s.Run()
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the agent as a system service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "install", "✓ Service installed")
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the system service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "uninstall", "✓ Service removed")
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the installed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "start", "✓ Service started")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the installed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "stop", "✓ Service stopped")
	},
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print this host's client id, creating it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		id := cfg.ClientID
		if id == "" {
			id, err = agent.LoadOrCreateID(cfg.IDFile)
			if err != nil {
				return err
			}
		}
		fmt.Println(id)
		return nil
	},
}

// control runs a service manager action such as install or stop
func control(cmd *cobra.Command, action, done string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("config")
	s, err := newService(&program{cfg: cfg}, path)
	if err != nil {
		return err
	}
	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("failed to %s service: %v", action, err)
	}
	fmt.Println(done)
	return nil
}
