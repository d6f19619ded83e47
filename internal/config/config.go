package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr          string       `toml:"addr"`
	DBPath        string       `toml:"db_path"`
	WorkspaceRoot string       `toml:"workspace_root"`
	Engine        EngineConfig `toml:"engine"`
	Budget        BudgetConfig `toml:"budget"`
	Events        EventsConfig `toml:"events"`
	Agent         AgentConfig  `toml:"agent"`
	GitHub        GitHubConfig `toml:"github"`
	Path          string       `toml:"-"`
}

type EngineConfig struct {
	PollIntervalMS      int `toml:"poll_interval_ms"`
	RetryCeiling        int `toml:"retry_ceiling"`
	RosterTTLMS         int `toml:"roster_ttl_ms"`
	ProgressHeartbeatMS int `toml:"progress_heartbeat_ms"`
}

type BudgetConfig struct {
	DailySoftUSD        float64 `toml:"daily_soft_usd"`
	DailyHardUSD        float64 `toml:"daily_hard_usd"`
	DailyEmergencyUSD   float64 `toml:"daily_emergency_usd"`
	MonthlySoftUSD      float64 `toml:"monthly_soft_usd"`
	MonthlyHardUSD      float64 `toml:"monthly_hard_usd"`
	MonthlyEmergencyUSD float64 `toml:"monthly_emergency_usd"`
}

type EventsConfig struct {
	BufferSize   int `toml:"buffer_size"`
	GraceDelayMS int `toml:"grace_delay_ms"`
}

type AgentConfig struct {
	Binary    string `toml:"binary"`
	Workdir   string `toml:"workdir"`
	TimeoutMS int    `toml:"timeout_ms"`
}

// GitHubConfig carries the publish target. The token itself is read from the
// named environment variable, never from the config file.
type GitHubConfig struct {
	Owner      string `toml:"owner"`
	Repo       string `toml:"repo"`
	BaseBranch string `toml:"base_branch"`
	TokenEnv   string `toml:"token_env"`
}

func (g GitHubConfig) Token() string {
	env := g.TokenEnv
	if env == "" {
		env = "GITHUB_TOKEN"
	}
	return os.Getenv(env)
}

// Load reads a toml config file, expanding a leading ~ to the home directory.
// A missing file at the default path yields zero-value config rather than an
// error, so the binary runs with flag defaults alone.
func Load(path string) (Config, error) {
	explicit := path != ""
	resolved := path
	if resolved == "" {
		resolved = defaultConfigPath()
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{Path: resolved}, nil
		}
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	cfg.Path = resolved
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foundry/config.toml"
	}
	return filepath.Join(home, ".foundry", "config.toml")
}
