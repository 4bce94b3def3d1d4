// Package config loads Parley runtime configuration from a TOML file and
// environment variables, exposing typed structs for all sections.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// thresholdUnset marks a similarity threshold the user never provided.
const thresholdUnset = -1.0

// Config is the runtime configuration loaded from defaults, config.toml, and
// expanded environment variables.
type Config struct {
	// HomeDir is runtime-resolved from PARLEY_HOME and not read from config.
	HomeDir  string         `mapstructure:"-"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Bot      BotConfig      `mapstructure:"bot"`
	Corpus   CorpusConfig   `mapstructure:"corpus"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Camera   CameraConfig   `mapstructure:"camera"`
}

// TelegramConfig configures the chat gateway.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// BotConfig controls the reply decision engine.
type BotConfig struct {
	// Threshold is the similarity cutoff in [0, 1] above which a matched
	// answer is sent without a necessity check.
	Threshold float64 `mapstructure:"threshold"`
	Learning  bool    `mapstructure:"learning"`
	Answering bool    `mapstructure:"answering"`
}

// CorpusConfig locates the learned question/answer store.
type CorpusConfig struct {
	Path string `mapstructure:"path"`
}

// MonitorConfig controls the idle-activity monitor.
type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// OperatorChatID receives idle notifications; 0 disables sending.
	OperatorChatID int64 `mapstructure:"operator_chat_id"`
}

// CameraConfig configures the /photo snapshot source.
type CameraConfig struct {
	SnapshotURL string `mapstructure:"snapshot_url"`
}

var defaultConfig = Config{
	Telegram: TelegramConfig{
		Token: "",
	},
	Bot: BotConfig{
		Threshold: thresholdUnset,
		Learning:  true,
		Answering: true,
	},
	Corpus: CorpusConfig{
		Path: "",
	},
	Monitor: MonitorConfig{
		Interval:       60 * time.Second,
		OperatorChatID: 0,
	},
	Camera: CameraConfig{
		SnapshotURL: "",
	},
}

// homeDir returns the Parley home directory.
// Uses PARLEY_HOME if set, otherwise defaults to ~/.parley.
func homeDir() (string, error) {
	if dir := os.Getenv("PARLEY_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// Load merges hardcoded defaults and config file values in that order.
// Config is always at $PARLEY_HOME/config.toml.
func Load() (*Config, error) {
	homeDir, err := homeDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(homeDir, "config.toml"))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)

	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = homeDir
	if cfg.Corpus.Path == "" {
		cfg.Corpus.Path = filepath.Join(homeDir, "data", "corpus.db")
	}

	return &cfg, nil
}

// Write renders the merged configuration (defaults overlaid by the user
// config file) to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}

	homeDir, err := homeDir()
	if err != nil {
		return err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(homeDir, "config.toml"))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	// Keep duration fields human-readable in generated TOML.
	v.Set("monitor.interval", v.GetDuration("monitor.interval").String())

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", defaultConfig.Telegram.Token)

	v.SetDefault("bot.threshold", defaultConfig.Bot.Threshold)
	v.SetDefault("bot.learning", defaultConfig.Bot.Learning)
	v.SetDefault("bot.answering", defaultConfig.Bot.Answering)

	v.SetDefault("corpus.path", defaultConfig.Corpus.Path)

	v.SetDefault("monitor.interval", defaultConfig.Monitor.Interval)
	v.SetDefault("monitor.operator_chat_id", defaultConfig.Monitor.OperatorChatID)

	v.SetDefault("camera.snapshot_url", defaultConfig.Camera.SnapshotURL)
}

// Validate checks required telegram fields.
func (c TelegramConfig) Validate() error {
	if c.Token == "" {
		return errors.New("token is required")
	}
	return nil
}

// Validate checks the similarity threshold.
func (c BotConfig) Validate() error {
	if c.Threshold == thresholdUnset {
		return errors.New("threshold is required")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v must be in [0, 1]", c.Threshold)
	}
	return nil
}

// Validate checks monitor cadence settings.
func (c MonitorConfig) Validate() error {
	if c.Interval <= 0 {
		return errors.New("interval must be > 0")
	}
	return nil
}

// Validate validates startup configuration and returns the first fatal error.
// Only startup configuration errors are fatal to the process.
func (cfg *Config) Validate() error {
	if err := cfg.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if err := cfg.Bot.Validate(); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	if err := cfg.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

func expandEnvStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		value, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.ExpandEnv(value), nil
	}
}
