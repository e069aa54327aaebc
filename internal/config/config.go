// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	custom_errors "weekend-activity/internal/errors"
)

// Env holds the environment-sourced configuration: credentials, endpoints
// and logging. Loaded once in main and threaded through constructors; there
// are no ambient globals.
type Env struct {
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	GithubToken     string `mapstructure:"GITHUB_TOKEN"`
	AnthropicAPIKey string `mapstructure:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `mapstructure:"ANTHROPIC_MODEL"`
	SlackWebhookURL string `mapstructure:"SLACK_WEBHOOK_URL"`
}

// LoadEnv reads environment configuration from a .env file and/or the
// process environment.
func LoadEnv() (*Env, error) {
	v := viper.New()
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514")

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not register keys for Unmarshal, so bind explicitly.
	for _, key := range []string{"LOG_LEVEL", "DATABASE_URL", "GITHUB_TOKEN", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "SLACK_WEBHOOK_URL"} {
		_ = v.BindEnv(key)
	}

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return nil, err
	}

	if env.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is a required configuration field")
	}
	if env.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}

	return &env, nil
}

// RepoSpec is one tracked repository from the config file.
type RepoSpec struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// SlackConfig carries the webhook message decoration settings.
type SlackConfig struct {
	Channel   string `yaml:"channel"`
	Username  string `yaml:"username"`
	IconEmoji string `yaml:"icon_emoji"`
}

// SummaryConfig bounds report size and diff processing. AI summaries run
// whenever an API key is configured and disable_ai is not set.
type SummaryConfig struct {
	MaxCommitsPerUser int  `yaml:"max_commits_per_user"`
	MaxPRsPerUser     int  `yaml:"max_prs_per_user"`
	DiffCharBudget    int  `yaml:"diff_char_budget"`
	DisableAI         bool `yaml:"disable_ai"`
}

// File is the YAML configuration file: which repositories to track, in which
// time zone the weekend is defined, and how reports are decorated.
type File struct {
	Repositories []RepoSpec    `yaml:"repositories"`
	Timezone     string        `yaml:"timezone"`
	Slack        SlackConfig   `yaml:"slack"`
	Summary      SummaryConfig `yaml:"summary"`
	ExcludeFiles []string      `yaml:"exclude_files"`
}

func setDefaults(cfg *File) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.Slack.Username == "" {
		cfg.Slack.Username = "Weekend Warriors"
	}
	if cfg.Slack.IconEmoji == "" {
		cfg.Slack.IconEmoji = ":rocket:"
	}
	if cfg.Summary.MaxCommitsPerUser == 0 {
		cfg.Summary.MaxCommitsPerUser = 5
	}
	if cfg.Summary.MaxPRsPerUser == 0 {
		cfg.Summary.MaxPRsPerUser = 5
	}
}

func validate(cfg *File) error {
	if len(cfg.Repositories) == 0 {
		return errors.New("config: at least one repository is required")
	}
	for _, r := range cfg.Repositories {
		if r.Owner == "" || r.Repo == "" ||
			strings.Contains(r.Owner, "/") || strings.Contains(r.Repo, "/") {
			return &custom_errors.ErrInvalidRepoFormat{Repo: r.Owner + "/" + r.Repo}
		}
	}
	return nil
}

// LoadFile reads and validates the YAML config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseRepoSpec parses an "owner/repo" command-line argument.
func ParseRepoSpec(s string) (RepoSpec, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoSpec{}, &custom_errors.ErrInvalidRepoFormat{Repo: s}
	}
	return RepoSpec{Owner: parts[0], Repo: parts[1]}, nil
}

// AddRepository appends a repository to the config file, creating the file
// if needed. Adding a repository that is already tracked is a no-op; the
// second return value reports whether the file changed.
func AddRepository(path string, spec RepoSpec) (bool, error) {
	var cfg File
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return false, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Start a fresh file.
	default:
		return false, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	for _, existing := range cfg.Repositories {
		if existing == spec {
			return false, nil
		}
	}
	cfg.Repositories = append(cfg.Repositories, spec)

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("config: failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return false, fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return true, nil
}
