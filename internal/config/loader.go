package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the optional project configuration file.
const FileName = "adw.yaml"

// Environment variables read during Load.
const (
	EnvAgentPath    = "CLAUDE_CODE_PATH"
	EnvAgentTimeout = "ADW_AGENT_TIMEOUT"
	EnvTracker      = "ADW_TRACKER"
	EnvAgentsDir    = "ADW_AGENTS_DIR"
)

// ErrMissingExecutable is returned when no agent executable is configured.
var ErrMissingExecutable = errors.New("agent executable not configured (set " + EnvAgentPath + ")")

// Load reads configuration from root/adw.yaml and the environment.
// Environment values take priority over the file.
func Load(root string) (*Config, error) {
	return LoadWith(root, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(root string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := NewDefault()

	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}

	// File models extend the defaults instead of replacing them.
	models := DefaultModels()
	for cmd, model := range cfg.Agent.Models {
		models[normalizeCommand(cmd)] = model
	}
	cfg.Agent.Models = models

	if v, ok := lookup(EnvAgentPath); ok && v != "" {
		cfg.Agent.Path = v
	}
	if v, ok := lookup(EnvAgentTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvAgentTimeout, err)
		}
		cfg.Agent.Timeout = d
	}
	if v, ok := lookup(EnvTracker); ok && v != "" {
		cfg.Tracker.Kind = v
	}
	if v, ok := lookup(EnvAgentsDir); ok && v != "" {
		cfg.Storage.AgentsDir = v
	}

	if !filepath.IsAbs(cfg.Storage.AgentsDir) {
		cfg.Storage.AgentsDir = filepath.Join(root, cfg.Storage.AgentsDir)
	}
	if !filepath.IsAbs(cfg.Agent.CommandsDir) {
		cfg.Agent.CommandsDir = filepath.Join(root, cfg.Agent.CommandsDir)
	}
	if cfg.Agent.E2ETestsDir != "" && !filepath.IsAbs(cfg.Agent.E2ETestsDir) {
		cfg.Agent.E2ETestsDir = filepath.Join(root, cfg.Agent.E2ETestsDir)
	}

	cfg.Agent.Env = AgentEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate performs validation beyond decoding
func (c *Config) Validate() error {
	switch c.Tracker.Kind {
	case "github", "gitlab":
		// OK
	default:
		return fmt.Errorf("invalid tracker: %s (must be github or gitlab)", c.Tracker.Kind)
	}

	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("invalid agent timeout: %s", c.Agent.Timeout)
	}

	if c.Agent.DefaultModel == "" {
		return errors.New("agent default_model must not be empty")
	}

	return nil
}

// RequireAgent fails when the agent executable path is not set.
func (c *Config) RequireAgent() error {
	if c.Agent.Path == "" {
		return ErrMissingExecutable
	}

	return nil
}

// ModelFor returns the model for a slash command, falling back to the default.
func (c *Config) ModelFor(command string) string {
	if m, ok := c.Agent.Models[normalizeCommand(command)]; ok && m != "" {
		return m
	}

	return c.Agent.DefaultModel
}

func normalizeCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd != "" && !strings.HasPrefix(cmd, "/") {
		cmd = "/" + cmd
	}

	return cmd
}
