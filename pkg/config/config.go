package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/retry"
	"gopkg.in/yaml.v3"
)

// LogConfig selects log level and format
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Logging converts the file form into log.Config
func (c LogConfig) Logging() log.Config {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return log.Config{Level: level, JSONOutput: c.JSON}
}

func (c LogConfig) validate() error {
	_, err := log.ParseLevel(c.Level)
	return err
}

// PushConfig controls state delivery over agent channels
type PushConfig struct {
	Attempts     int           `yaml:"attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Policy returns the retry policy for pushes
func (c PushConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = c.Attempts
	p.BaseDelay = c.BaseDelay
	return p
}

// ServerConfig is the controller's configuration file
type ServerConfig struct {
	APIAddr      string        `yaml:"api_addr"`
	HTTPAddr     string        `yaml:"http_addr"`
	SocketPath   string        `yaml:"socket_path"`
	DataDir      string        `yaml:"data_dir"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Timezone     string        `yaml:"timezone"`
	Push         PushConfig    `yaml:"push"`
	Log          LogConfig     `yaml:"log"`
}

// DefaultServerConfig returns the configuration used when no file is given
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		APIAddr:      ":7400",
		HTTPAddr:     ":7401",
		DataDir:      "./downtime-data",
		TickInterval: 30 * time.Second,
		Timezone:     "Local",
		Push: PushConfig{
			Attempts:     retry.DefaultAttempts,
			BaseDelay:    retry.DefaultBaseDelay,
			WriteTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks the configuration for values the server cannot run with
func (c ServerConfig) Validate() error {
	var errs []error
	if c.APIAddr == "" {
		errs = append(errs, errors.New("api_addr is required"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval))
	}
	if c.Push.Attempts < 1 {
		errs = append(errs, fmt.Errorf("push.attempts must be at least 1, got %d", c.Push.Attempts))
	}
	if c.Push.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("push.base_delay must be positive, got %s", c.Push.BaseDelay))
	}
	if c.Push.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("push.write_timeout must be positive, got %s", c.Push.WriteTimeout))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location loads the zone windows are evaluated in
func (c ServerConfig) Location() (*time.Location, error) {
	return loadLocation(c.Timezone)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// AgentConfig is the agent's configuration file
type AgentConfig struct {
	ServerAddr        string        `yaml:"server_addr"`
	ChannelURL        string        `yaml:"channel_url"`
	ClientID          string        `yaml:"client_id"`
	IDFile            string        `yaml:"id_file"`
	Label             string        `yaml:"label"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	OfflineAfter      time.Duration `yaml:"offline_after"`
	StateFile         string        `yaml:"state_file"`
	Timezone          string        `yaml:"timezone"` // must match the controller's
	BlockCommand      []string      `yaml:"block_command"`
	UnblockCommand    []string      `yaml:"unblock_command"`
	RulesFile         RulesFile     `yaml:"rules_file"`
	Log               LogConfig     `yaml:"log"`
}

// RulesFile configures enforcement by rewriting a file, such as a proxy's
// access rules, instead of running block/unblock commands
type RulesFile struct {
	Path    string   `yaml:"path"`
	Paused  string   `yaml:"paused"`
	Allowed string   `yaml:"allowed"`
	Reload  []string `yaml:"reload"`
}

// DefaultAgentConfig returns the configuration used when no file is given
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		ServerAddr:        "localhost:7400",
		ChannelURL:        "ws://localhost:7401/ws",
		IDFile:            defaultStatePath("client-id"),
		StateFile:         defaultStatePath("state.json"),
		HeartbeatInterval: 30 * time.Second,
		OfflineAfter:      90 * time.Second,
		Timezone:          "Local",
		Log:               LogConfig{Level: "info"},
	}
}

// Validate checks the configuration for values the agent cannot run with
func (c AgentConfig) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server_addr is required"))
	}
	if c.ChannelURL == "" {
		errs = append(errs, errors.New("channel_url is required"))
	}
	if c.ClientID == "" && c.IDFile == "" {
		errs = append(errs, errors.New("one of client_id or id_file is required"))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat_interval must be positive, got %s", c.HeartbeatInterval))
	}
	if (len(c.BlockCommand) > 0) != (len(c.UnblockCommand) > 0) {
		errs = append(errs, errors.New("block_command and unblock_command must be set together"))
	}
	if c.RulesFile.Path != "" && len(c.BlockCommand) > 0 {
		errs = append(errs, errors.New("rules_file and block_command are mutually exclusive"))
	}
	if c.OfflineAfter < c.HeartbeatInterval {
		errs = append(errs, fmt.Errorf("offline_after (%s) must not be shorter than heartbeat_interval (%s)", c.OfflineAfter, c.HeartbeatInterval))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location loads the zone the agent evaluates its schedule in while offline
func (c AgentConfig) Location() (*time.Location, error) {
	return loadLocation(c.Timezone)
}

// LoadServer reads a server config file over the defaults. An empty path
// returns the defaults.
func LoadServer(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := load(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadAgent reads an agent config file over the defaults. An empty path
// returns the defaults.
func LoadAgent(path string) (AgentConfig, error) {
	cfg := DefaultAgentConfig()
	if err := load(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func load(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func defaultStatePath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "downtime", name)
}
