package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("frontend", FrontendConsole)
	v.SetDefault("data_dir", filepath.Join(home, ".fungame"))

	v.SetDefault("channel.id", "console")
	v.SetDefault("channel.command_prefix", "/")
	v.SetDefault("channel.mentions", []string{"@gm"})
	v.SetDefault("channel.operators", []string{})

	v.SetDefault("game.filter.default_behavior", "accept")
	v.SetDefault("game.filter.examples.accept", []string{
		"I open the door",
		"what is in my inventory?",
		"I pick up the rock and throw it at the window",
	})
	v.SetDefault("game.filter.examples.reject", []string{
		"lol",
		"anyone watching the game tonight?",
		"/show world",
	})
	v.SetDefault("game.engine.world_properties", []string{"Physics matches reality"})
	v.SetDefault("game.engine.core_mechanics", []string{"Players must establish every prerequisite explicitly"})
	v.SetDefault("game.engine.interaction_rules.do", []string{"Allow task failure for incomplete instructions"})
	v.SetDefault("game.engine.interaction_rules.dont", []string{"Do not provide hints"})
	v.SetDefault("game.engine.response_guidelines", []string{"Keep responses concise"})
	v.SetDefault("game.start.world", []string{"An empty expanse of space"})

	v.SetDefault("arbitration.window", 5*time.Second)
	v.SetDefault("arbitration.fairness_rotation", 0)
	v.SetDefault("arbitration.early_resolve", false)
	v.SetDefault("arbitration.active_within", 10*time.Minute)

	v.SetDefault("narrator.attempts", 3)
	v.SetDefault("narrator.timeout", 30*time.Second)
	v.SetDefault("narrator.retry_initial", 500*time.Millisecond)
	v.SetDefault("narrator.retry_max", 5*time.Second)
	v.SetDefault("narrator.max_requeues", 3)
	v.SetDefault("narrator.context_turns", 5)

	v.SetDefault("classifier.threshold", 0.5)
	v.SetDefault("classifier.timeout", 10*time.Second)

	v.SetDefault("refusal.mode", "narrate")
	v.SetDefault("refusal.text", "Nothing happens.")

	v.SetDefault("session.idle_timeout", 24*time.Hour)
	v.SetDefault("session.reap_interval", time.Minute)

	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.path", "")
	v.SetDefault("store.sessions_path", "")
	v.SetDefault("store.secrets_path", "")

	v.SetDefault("backend.kind", BackendOffline)
	v.SetDefault("backend.model", "gemini-1.5-flash")
	v.SetDefault("backend.classifier_model", "")
	v.SetDefault("backend.api_key_secret", "gemini/api_key")
	v.SetDefault("backend.requests_per_minute", 60)
	v.SetDefault("backend.temperature", 0.7)

	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.metrics_listen", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
