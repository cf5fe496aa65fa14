package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FrontendConsole   = "console"
	FrontendWebsocket = "websocket"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"

	BackendOffline = "offline"
	BackendGemini  = "gemini"
)

type Config struct {
	Frontend    string            `mapstructure:"frontend"`
	DataDir     string            `mapstructure:"data_dir"`
	Channel     ChannelConfig     `mapstructure:"channel"`
	Game        GameConfig        `mapstructure:"game"`
	Arbitration ArbitrationConfig `mapstructure:"arbitration"`
	Narrator    NarratorConfig    `mapstructure:"narrator"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Refusal     RefusalConfig     `mapstructure:"refusal"`
	Session     SessionConfig     `mapstructure:"session"`
	Store       StoreConfig       `mapstructure:"store"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
}

type ChannelConfig struct {
	ID            string   `mapstructure:"id"`
	CommandPrefix string   `mapstructure:"command_prefix"`
	Mentions      []string `mapstructure:"mentions"`
	Operators     []string `mapstructure:"operators"`
}

type GameConfig struct {
	Filter FilterConfig `mapstructure:"filter"`
	Engine EngineConfig `mapstructure:"engine"`
	Start  StartConfig  `mapstructure:"start"`
}

type FilterConfig struct {
	DefaultBehavior string         `mapstructure:"default_behavior"`
	Examples        FilterExamples `mapstructure:"examples"`
}

type FilterExamples struct {
	Accept []string `mapstructure:"accept"`
	Reject []string `mapstructure:"reject"`
}

type EngineConfig struct {
	WorldProperties    []string         `mapstructure:"world_properties"`
	CoreMechanics      []string         `mapstructure:"core_mechanics"`
	InteractionRules   InteractionRules `mapstructure:"interaction_rules"`
	ResponseGuidelines []string         `mapstructure:"response_guidelines"`
}

type InteractionRules struct {
	Do   []string `mapstructure:"do"`
	Dont []string `mapstructure:"dont"`
}

type StartConfig struct {
	World []string `mapstructure:"world"`
	// Inventories maps a player id to item quantities.
	Inventories map[string]map[string]int `mapstructure:"inventories"`
}

type ArbitrationConfig struct {
	Window           time.Duration `mapstructure:"window"`
	FairnessRotation int           `mapstructure:"fairness_rotation"`
	EarlyResolve     bool          `mapstructure:"early_resolve"`
	ActiveWithin     time.Duration `mapstructure:"active_within"`
}

type NarratorConfig struct {
	Attempts     int           `mapstructure:"attempts"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryInitial time.Duration `mapstructure:"retry_initial"`
	RetryMax     time.Duration `mapstructure:"retry_max"`
	MaxRequeues  int           `mapstructure:"max_requeues"`
	ContextTurns int           `mapstructure:"context_turns"`
}

type ClassifierConfig struct {
	Threshold float64       `mapstructure:"threshold"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RefusalConfig struct {
	Mode string `mapstructure:"mode"`
	Text string `mapstructure:"text"`
}

type SessionConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type StoreConfig struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	SessionsPath string `mapstructure:"sessions_path"`
	SecretsPath  string `mapstructure:"secrets_path"`
}

type BackendConfig struct {
	Kind              string  `mapstructure:"kind"`
	Model             string  `mapstructure:"model"`
	ClassifierModel   string  `mapstructure:"classifier_model"`
	APIKeySecret      string  `mapstructure:"api_key_secret"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
	Temperature       float32 `mapstructure:"temperature"`
}

type ServerConfig struct {
	Listen        string `mapstructure:"listen"`
	MetricsListen string `mapstructure:"metrics_listen"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EnvOverrides are the process-level knobs read before the config file.
type EnvOverrides struct {
	ConfigPath string `env:"FUNGAME_CONFIG"`
	LogLevel   string `env:"FUNGAME_LOG_LEVEL"`
	StorePath  string `env:"FUNGAME_STORE_PATH"`
	DotEnv     string `env:"FUNGAME_DOTENV" envDefault:".env"`
}

type LoadOptions struct {
	// Path overrides FUNGAME_CONFIG and the default location.
	Path string
	Home string
	// Environment replaces the process environment when set. No .env file is read then.
	Environment map[string]string
}

var ErrConfigNotFound = errors.New("config file not found")

func DefaultPath(home string) string {
	return filepath.Join(home, ".fungame", "fungame.toml")
}

// Load resolves configuration from defaults, the TOML file and the environment.
func Load(opts LoadOptions) (Config, error) {
	if opts.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		opts.Home = home
	}

	overrides, err := parseEnv(opts.Environment)
	if err != nil {
		return Config{}, err
	}

	path := opts.Path
	explicit := path != ""
	if !explicit && overrides.ConfigPath != "" {
		path = overrides.ConfigPath
		explicit = true
	}
	if !explicit {
		path = DefaultPath(opts.Home)
	}

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v, opts.Home)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !isNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if explicit {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if overrides.LogLevel != "" {
		cfg.Log.Level = overrides.LogLevel
	}
	if overrides.StorePath != "" {
		cfg.Store.Path = overrides.StorePath
	}
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func parseEnv(environment map[string]string) (EnvOverrides, error) {
	var overrides EnvOverrides
	if environment != nil {
		if err := env.ParseWithOptions(&overrides, env.Options{Environment: environment}); err != nil {
			return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
		}
		return overrides, nil
	}

	if err := env.Parse(&overrides); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	if overrides.DotEnv != "" {
		if err := godotenv.Load(overrides.DotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return EnvOverrides{}, fmt.Errorf("load %s: %w", overrides.DotEnv, err)
		}
		// A .env file may carry the overrides themselves.
		if err := env.Parse(&overrides); err != nil {
			return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
		}
	}

	return overrides, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func (c *Config) resolvePaths() {
	if c.DataDir == "" {
		return
	}
	if c.Store.Path == "" {
		name := "state.db"
		if c.Store.Driver == StoreBolt {
			name = "state.bolt"
		}
		c.Store.Path = filepath.Join(c.DataDir, name)
	}
	if c.Store.SessionsPath == "" {
		c.Store.SessionsPath = filepath.Join(c.DataDir, "sessions.toml")
	}
	if c.Store.SecretsPath == "" {
		c.Store.SecretsPath = filepath.Join(c.DataDir, "secrets.toml")
	}
}

// Validate returns the first violation it finds.
func (c Config) Validate() error {
	switch c.Frontend {
	case FrontendConsole, FrontendWebsocket:
	default:
		return fmt.Errorf("frontend: unsupported value %q", c.Frontend)
	}
	if strings.TrimSpace(c.Channel.ID) == "" {
		return fmt.Errorf("channel.id is required")
	}
	switch c.Game.Filter.DefaultBehavior {
	case "accept", "reject":
	default:
		return fmt.Errorf("game.filter.default_behavior: must be accept or reject, got %q", c.Game.Filter.DefaultBehavior)
	}
	if c.Arbitration.Window <= 0 {
		return fmt.Errorf("arbitration.window must be positive")
	}
	if c.Arbitration.FairnessRotation < 0 {
		return fmt.Errorf("arbitration.fairness_rotation must not be negative")
	}
	if c.Narrator.Attempts < 1 {
		return fmt.Errorf("narrator.attempts must be at least 1")
	}
	if c.Narrator.MaxRequeues < 0 {
		return fmt.Errorf("narrator.max_requeues must not be negative")
	}
	if c.Narrator.ContextTurns < 0 {
		return fmt.Errorf("narrator.context_turns must not be negative")
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		return fmt.Errorf("classifier.threshold must be within [0, 1]")
	}
	switch c.Refusal.Mode {
	case "narrate", "static", "silent":
	default:
		return fmt.Errorf("refusal.mode: unsupported value %q", c.Refusal.Mode)
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StoreBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q", c.Store.Driver)
	}
	if c.Store.SessionsPath == "" {
		return fmt.Errorf("store.sessions_path is required")
	}
	switch c.Backend.Kind {
	case BackendOffline:
	case BackendGemini:
		if c.Backend.Model == "" {
			return fmt.Errorf("backend.model is required for gemini")
		}
		if c.Backend.APIKeySecret == "" {
			return fmt.Errorf("backend.api_key_secret is required for gemini")
		}
	default:
		return fmt.Errorf("backend.kind: unsupported value %q", c.Backend.Kind)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unsupported value %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unsupported value %q", c.Log.Format)
	}

	return nil
}
