package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variable overrides (HOSTCOMPAT_LOG_LEVEL).
const EnvPrefix = "HOSTCOMPAT"

// Settings are the operator-facing knobs of the hostcompat tool. Unlike
// Tables they describe how the tool runs, not what the core does.
type Settings struct {
	Log      LogSettings      `mapstructure:"log"`
	Tables   string           `mapstructure:"tables"`
	Watch    WatchSettings    `mapstructure:"watch"`
	Scenario ScenarioSettings `mapstructure:"scenario"`
}

// LogSettings configures the logger.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WatchSettings configures scenario watch mode.
type WatchSettings struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// ScenarioSettings bounds scenario execution.
type ScenarioSettings struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
		Watch: WatchSettings{
			Debounce: 200 * time.Millisecond,
		},
		Scenario: ScenarioSettings{
			Timeout: 5 * time.Second,
		},
	}
}

// flagKeys maps command-line flag names to setting keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"tables":     "tables",
	"debounce":   "watch.debounce",
	"timeout":    "scenario.timeout",
}

// LoadSettings resolves settings from, in increasing precedence: defaults,
// the settings file at path (optional), HOSTCOMPAT_* environment variables
// and explicitly set flags. Flags absent from the set are ignored.
func LoadSettings(path string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()

	def := DefaultSettings()
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("tables", def.Tables)
	v.SetDefault("watch.debounce", def.Watch.Debounce)
	v.SetDefault("scenario.timeout", def.Scenario.Timeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Settings{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Settings{}, fmt.Errorf("reading settings %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Settings{}, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks setting values.
func (s Settings) Validate() error {
	switch s.Log.Format {
	case "console", "json":
	default:
		return &ValidationError{Section: "log", Name: "format", Message: fmt.Sprintf("unsupported format %q", s.Log.Format)}
	}
	if s.Watch.Debounce < 0 {
		return &ValidationError{Section: "watch", Name: "debounce", Message: "must not be negative"}
	}
	if s.Scenario.Timeout < 0 {
		return &ValidationError{Section: "scenario", Name: "timeout", Message: "must not be negative"}
	}
	return nil
}
