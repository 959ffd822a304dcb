package config

import "time"

// Config holds all application configuration. It is built once per process
// and passed explicitly to the components that need it.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Tracker TrackerConfig `yaml:"tracker"`
	Git     GitConfig     `yaml:"git"`
	Storage StorageConfig `yaml:"storage"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AgentConfig holds external agent CLI settings
type AgentConfig struct {
	// Path is the agent executable (CLAUDE_CODE_PATH). Required by every
	// stage that invokes the agent.
	Path         string            `yaml:"path"`
	Timeout      time.Duration     `yaml:"timeout"`
	DefaultModel string            `yaml:"default_model"`
	Models       map[string]string `yaml:"models,omitempty"`
	CommandsDir  string            `yaml:"commands_dir"`

	// E2ETestsDir holds the end-to-end test prompts of the test stage.
	E2ETestsDir     string `yaml:"e2e_tests_dir"`
	SkipPermissions bool   `yaml:"skip_permissions"`
	MinVersion      string `yaml:"min_version,omitempty"`

	// Env is the scoped environment handed to the agent process.
	Env []string `yaml:"-"`
}

// TrackerConfig selects and configures the issue tracker
type TrackerConfig struct {
	Kind          string `yaml:"kind"` // github or gitlab
	Owner         string `yaml:"owner,omitempty"`
	Repo          string `yaml:"repo,omitempty"`
	GitLabHost    string `yaml:"gitlab_host,omitempty"`
	GitLabProject string `yaml:"gitlab_project,omitempty"`
	DraftPR       bool   `yaml:"draft_pr"`
}

// GitConfig holds git settings
type GitConfig struct {
	Remote     string `yaml:"remote"`
	BaseBranch string `yaml:"base_branch"`
}

// StorageConfig holds on-disk layout settings
type StorageConfig struct {
	// AgentsDir holds per-run state, prompts and agent output.
	AgentsDir string `yaml:"agents_dir"`
}

// MetricsConfig toggles the per-run metrics textfile
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// Default agent settings
const (
	DefaultAgentTimeout = 5 * time.Minute
	DefaultModel        = "sonnet"
	DefaultCommandsDir  = ".claude/commands"
	DefaultE2ETestsDir  = ".claude/commands/e2e"
	DefaultAgentsDir    = "agents"
	DefaultMetricsFile  = "metrics.prom"
)

// NewDefault creates a Config with default values
func NewDefault() *Config {
	return &Config{
		Agent: AgentConfig{
			Timeout:         DefaultAgentTimeout,
			DefaultModel:    DefaultModel,
			Models:          DefaultModels(),
			CommandsDir:     DefaultCommandsDir,
			E2ETestsDir:     DefaultE2ETestsDir,
			SkipPermissions: true,
		},
		Tracker: TrackerConfig{
			Kind: "github",
		},
		Git: GitConfig{
			Remote:     "origin",
			BaseBranch: "main",
		},
		Storage: StorageConfig{
			AgentsDir: DefaultAgentsDir,
		},
		Metrics: MetricsConfig{
			File: DefaultMetricsFile,
		},
	}
}

// DefaultModels is the built-in slash command to model table.
// Commands not listed here run on the default model.
func DefaultModels() map[string]string {
	return map[string]string{
		"/classify_issue":       "sonnet",
		"/generate_branch_name": "sonnet",
		"/commit":               "sonnet",
		"/pull_request":         "sonnet",
		"/chore":                "sonnet",
		"/bug":                  "opus",
		"/feature":              "opus",
		"/patch":                "opus",
		"/implement":            "opus",
		"/test":                 "sonnet",
		"/resolve_failed_test":  "opus",
		"/test_e2e":             "sonnet",
		"/review":               "sonnet",
		"/document":             "sonnet",
	}
}
