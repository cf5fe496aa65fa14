package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/fungame/internal/application"
	"github.com/bnema/fungame/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	cfg, err := Load(LoadOptions{Home: home, Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, FrontendConsole, cfg.Frontend)
	assert.Equal(t, 5*time.Second, cfg.Arbitration.Window)
	assert.Equal(t, 3, cfg.Narrator.Attempts)
	assert.Equal(t, 3, cfg.Narrator.MaxRequeues)
	assert.Equal(t, 5, cfg.Narrator.ContextTurns)
	assert.Equal(t, 10*time.Minute, cfg.Arbitration.ActiveWithin)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(home, ".fungame", "state.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(home, ".fungame", "sessions.toml"), cfg.Store.SessionsPath)
	assert.Equal(t, filepath.Join(home, ".fungame", "secrets.toml"), cfg.Store.SecretsPath)
	assert.Equal(t, BackendOffline, cfg.Backend.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadReadsTOMLFile(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	path := filepath.Join(home, "game.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
frontend = "websocket"

[channel]
id = "general"
operators = ["gm"]

[game.filter]
default_behavior = "reject"

[game.filter.examples]
accept = ["I jump"]
reject = ["lol"]

[game.engine]
world_properties = ["gravity is weak"]
core_mechanics = ["one step at a time"]
response_guidelines = ["be brief"]

[game.engine.interaction_rules]
do = ["allow failure"]
dont = ["give hints"]

[game.start]
world = ["a moon base"]

[game.start.inventories.alice]
oxygen = 3

[arbitration]
window = "2s"
fairness_rotation = 1
early_resolve = true

[narrator]
attempts = 5
max_requeues = 0

[store]
driver = "bolt"

[log]
level = "debug"
format = "json"
`), 0o600))

	cfg, err := Load(LoadOptions{Path: path, Home: home, Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, FrontendWebsocket, cfg.Frontend)
	assert.Equal(t, "general", cfg.Channel.ID)
	assert.Equal(t, 2*time.Second, cfg.Arbitration.Window)
	assert.True(t, cfg.Arbitration.EarlyResolve)
	assert.Equal(t, 5, cfg.Narrator.Attempts)
	assert.Equal(t, filepath.Join(home, ".fungame", "state.bolt"), cfg.Store.Path)

	gate := cfg.Gate()
	assert.Equal(t, domain.VerdictReject, gate.Default)
	assert.Equal(t, []string{"I jump"}, gate.Examples.Accept)
	assert.Equal(t, []string{"/"}, gate.CommandPrefixes)

	controller := cfg.Controller()
	assert.Equal(t, []string{"a moon base"}, controller.Start.World)
	assert.Equal(t, domain.Inventory{"oxygen": 3}, controller.Start.Inventories["alice"])
	assert.Equal(t, []domain.PlayerID{"gm"}, controller.Operators)
	assert.Equal(t, 1, controller.Arbitration.FairnessRotation)
	assert.Equal(t, []string{"give hints"}, controller.Arbitration.Rules.Dont)
	assert.Equal(t, application.RefusalNarrate, controller.RefusalMode)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	path := filepath.Join(home, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[channel]\nid = \"lobby\"\n"), 0o600))

	cfg, err := Load(LoadOptions{Home: home, Environment: map[string]string{
		"FUNGAME_CONFIG":     path,
		"FUNGAME_LOG_LEVEL":  "warn",
		"FUNGAME_STORE_PATH": filepath.Join(home, "elsewhere.db"),
	}})
	require.NoError(t, err)

	assert.Equal(t, "lobby", cfg.Channel.ID)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, filepath.Join(home, "elsewhere.db"), cfg.Store.Path)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.toml"), Home: t.TempDir(), Environment: map[string]string{}})
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("frontend = [unterminated"), 0o600))

	_, err := Load(LoadOptions{Path: path, Home: t.TempDir(), Environment: map[string]string{}})
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load(LoadOptions{Home: t.TempDir(), Environment: map[string]string{}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "frontend", mutate: func(c *Config) { c.Frontend = "discord" }, wantErr: "frontend"},
		{name: "channel", mutate: func(c *Config) { c.Channel.ID = " " }, wantErr: "channel.id"},
		{name: "default behavior", mutate: func(c *Config) { c.Game.Filter.DefaultBehavior = "maybe" }, wantErr: "default_behavior"},
		{name: "window", mutate: func(c *Config) { c.Arbitration.Window = 0 }, wantErr: "arbitration.window"},
		{name: "attempts", mutate: func(c *Config) { c.Narrator.Attempts = 0 }, wantErr: "narrator.attempts"},
		{name: "context turns", mutate: func(c *Config) { c.Narrator.ContextTurns = -1 }, wantErr: "narrator.context_turns"},
		{name: "threshold", mutate: func(c *Config) { c.Classifier.Threshold = 1.5 }, wantErr: "classifier.threshold"},
		{name: "refusal", mutate: func(c *Config) { c.Refusal.Mode = "loud" }, wantErr: "refusal.mode"},
		{name: "store driver", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "store.driver"},
		{name: "store path", mutate: func(c *Config) { c.Store.Path = "" }, wantErr: "store.path"},
		{name: "gemini model", mutate: func(c *Config) { c.Backend.Kind = BackendGemini; c.Backend.Model = "" }, wantErr: "backend.model"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.wantErr)
		})
	}

	memory := base
	memory.Store.Driver = StoreMemory
	memory.Store.Path = ""
	assert.NoError(t, memory.Validate())
}
