package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/downtime/pkg/actuator"
	"github.com/cuemby/downtime/pkg/agent"
	"github.com/cuemby/downtime/pkg/client"
	"github.com/cuemby/downtime/pkg/config"
	"github.com/cuemby/downtime/pkg/log"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

const serviceName = "downtime-agent"

// program adapts the agent to the service manager's Start/Stop contract
type program struct {
	cfg config.AgentConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start must not block
func (p *program) Start(s service.Service) error {
	a, closeFn, err := newAgent(p.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		defer closeFn()

		err := a.Run(ctx)
		if errors.Is(err, agent.ErrShutdown) {
			// Removed by the operator; exit cleanly so the service manager
			// does not restart and re-register us
			log.Logger.Info().Msg("Client deleted on the controller, exiting")
			if service.Interactive() {
				os.Exit(0)
			}
			go func() { _ = s.Stop() }()
		}
	}()
	return nil
}

// Stop cancels the agent and waits for it to finish
func (p *program) Stop(s service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// newAgent wires the agent from config. The returned func closes the
// control connection.
func newAgent(cfg config.AgentConfig) (*agent.Agent, func(), error) {
	id := cfg.ClientID
	if id == "" {
		var err error
		id, err = agent.LoadOrCreateID(cfg.IDFile)
		if err != nil {
			return nil, nil, err
		}
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	control, err := client.NewClient(cfg.ServerAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create control client: %v", err)
	}

	a, err := agent.New(agent.Config{
		ClientID:          id,
		Address:           agent.LocalAddress(cfg.ServerAddr),
		Label:             cfg.Label,
		ChannelURL:        cfg.ChannelURL,
		HeartbeatInterval: cfg.HeartbeatInterval,
		OfflineAfter:      cfg.OfflineAfter,
		StateFile:         cfg.StateFile,
		Location:          loc,
	}, control, buildActuator(cfg))
	if err != nil {
		control.Close()
		return nil, nil, err
	}
	return a, func() { control.Close() }, nil
}

// buildActuator picks how the host is blocked: a rules file, a pair of
// commands, or nothing at all (state is tracked and reported only)
func buildActuator(cfg config.AgentConfig) actuator.Actuator {
	switch {
	case cfg.RulesFile.Path != "":
		return &actuator.FileActuator{
			Path:    cfg.RulesFile.Path,
			Paused:  cfg.RulesFile.Paused,
			Allowed: cfg.RulesFile.Allowed,
			Reload:  cfg.RulesFile.Reload,
		}
	case len(cfg.BlockCommand) > 0:
		return actuator.NewCommandActuator(cfg.BlockCommand, cfg.UnblockCommand)
	default:
		log.Logger.Warn().Msg("No block_command or rules_file configured, states will not be enforced")
		return actuator.Noop{}
	}
}

// newService builds the OS service definition. configPath is made
// absolute so the installed service finds it from any working directory.
func newService(p *program, configPath string) (service.Service, error) {
	var args []string
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	args = append(args, "run")

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: "Downtime Agent",
		Description: "Enforces scheduled network downtime for this host.",
		Arguments:   args,
		Option: service.KeyValue{
			// A deleted client exits 0 and must stay down
			"Restart":   "on-failure",
			"OnFailure": "restart",
		},
	}
	return service.New(p, svcConfig)
}

func loadConfig(cmd *cobra.Command) (config.AgentConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAgent(path)
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
