// Package config loads chatstate settings from TOML.
//
// Example:
//
//	[storage]
//	backend = "sqlite"          # memory | file | sqlite
//	path = "~/.chatstate/state.db"
//	origin = "https://chat.example"
//	quota_bytes = 5242880
//
//	[activity]
//	enabled = true
//	channel = "chatstate"
//	level = "debug"              # debug | info | warn | error
//
//	[rules]
//	engine = "expr"              # expr | cel | js
//	defaults = true
//	[rules.custom]
//	combined_tokens = ["value < 10000000"]
//
//	[model]
//	code = "gpt-4"
//	name = "GPT 4"
//	input_cost = 0.03
//	output_cost = 0.06
//	token_limit = 8192
//
// Keys missing from the file keep their Defaults values. A [model] naming a
// catalog code may omit the remaining fields.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Rule engines.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Activity ActivityConfig `toml:"activity"`
	Rules    RulesConfig    `toml:"rules"`
	Model    ModelConfig    `toml:"model"`
}

type StorageConfig struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	Origin     string `toml:"origin"`
	QuotaBytes int64  `toml:"quota_bytes"`
}

type ActivityConfig struct {
	Enabled bool   `toml:"enabled"`
	Channel string `toml:"channel"`
	Level   string `toml:"level"`
}

type RulesConfig struct {
	Engine   string              `toml:"engine"`
	Defaults bool                `toml:"defaults"`
	Custom   map[string][]string `toml:"custom"`
}

// ModelConfig overrides the default model descriptor when Code is set.
type ModelConfig struct {
	Code       string  `toml:"code"`
	Name       string  `toml:"name"`
	InputCost  float64 `toml:"input_cost"`
	OutputCost float64 `toml:"output_cost"`
	TokenLimit int     `toml:"token_limit"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{Backend: BackendMemory},
		Activity: ActivityConfig{
			Channel: "chatstate",
			Level:   "info",
		},
		Rules: RulesConfig{Engine: EngineExpr, Defaults: true},
	}
}

// Load reads path over Defaults. A missing file yields Defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(expandHome(path))
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Decode(string(raw))
}

// Decode parses TOML over Defaults and validates the result. Unknown keys
// are rejected.
func Decode(data string) (Config, error) {
	cfg := Defaults()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("%w: storage.path is required for backend %q", ErrInvalidConfig, c.Storage.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("%w: storage.quota_bytes must not be negative", ErrInvalidConfig)
	}
	switch c.Rules.Engine {
	case EngineExpr, EngineCEL, EngineJS:
	default:
		return fmt.Errorf("%w: unknown rules.engine %q", ErrInvalidConfig, c.Rules.Engine)
	}
	if _, err := c.Activity.SlogLevel(); err != nil {
		return err
	}
	if c.Model.TokenLimit < 0 || c.Model.InputCost < 0 || c.Model.OutputCost < 0 {
		return fmt.Errorf("%w: model limits and costs must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel maps Level onto a slog level. An empty level is Info.
func (a ActivityConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(a.Level) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(a.Level)); err != nil {
		return 0, fmt.Errorf("%w: activity.level: %v", ErrInvalidConfig, err)
	}
	return level, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
