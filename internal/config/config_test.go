package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
addr = "127.0.0.1:9090"
db_path = "/tmp/foundry.db"
workspace_root = "/tmp/foundry-work"

[engine]
poll_interval_ms = 2500
retry_ceiling = 4

[budget]
daily_soft_usd = 25.0
daily_hard_usd = 60.0
daily_emergency_usd = 90.0

[events]
buffer_size = 32
grace_delay_ms = 500

[github]
owner = "example"
repo = "widgets"
base_branch = "develop"
token_env = "WIDGETS_GH_TOKEN"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.Engine.PollIntervalMS != 2500 || cfg.Engine.RetryCeiling != 4 {
		t.Fatalf("engine section = %+v", cfg.Engine)
	}
	if cfg.Budget.DailyHardUSD != 60.0 {
		t.Fatalf("budget section = %+v", cfg.Budget)
	}
	if cfg.Events.BufferSize != 32 {
		t.Fatalf("events section = %+v", cfg.Events)
	}
	if cfg.GitHub.Owner != "example" || cfg.GitHub.BaseBranch != "develop" {
		t.Fatalf("github section = %+v", cfg.GitHub)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestGitHubTokenFromEnv(t *testing.T) {
	t.Setenv("WIDGETS_GH_TOKEN", "secret")
	g := GitHubConfig{TokenEnv: "WIDGETS_GH_TOKEN"}
	if g.Token() != "secret" {
		t.Fatalf("token = %q", g.Token())
	}

	t.Setenv("GITHUB_TOKEN", "fallback")
	if (GitHubConfig{}).Token() != "fallback" {
		t.Fatalf("default env not used")
	}
}
