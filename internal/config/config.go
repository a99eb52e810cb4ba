package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultInterval = 1000 * time.Millisecond
	DefaultGrace    = 700 * time.Millisecond
)

// Config holds application configuration.
type Config struct {
	Refresh     RefreshConfig
	Termination TerminationConfig
	Filter      FilterConfig
	Journal     JournalConfig
	Log         LogConfig
}

type RefreshConfig struct {
	Interval time.Duration
}

type TerminationConfig struct {
	Grace time.Duration
}

type FilterConfig struct {
	Text string
}

// JournalConfig controls the JSON snapshot journal. An empty path disables it.
type JournalConfig struct {
	Path   string
	Pretty bool
}

// LogConfig names the diagnostics log file. Empty discards diagnostics.
type LogConfig struct {
	Path string
}

// Source is a loaded configuration that can be re-read when its file changes.
type Source struct {
	v      *viper.Viper
	logger *log.Logger
}

// Open reads configuration from file and env. Env var overrides use prefix
// APPWATCH_. When path is empty, APPWATCH_CONFIG is used, then
// ~/.config/appwatch/config.yaml if it exists.
func Open(path string, logger *log.Logger) (*Source, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	v := viper.New()

	v.SetDefault("refresh.interval", DefaultInterval.String())
	v.SetDefault("termination.grace", DefaultGrace.String())
	v.SetDefault("filter.text", "")
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.pretty", false)
	v.SetDefault("log.path", "")

	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv("APPWATCH_CONFIG")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "appwatch"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("APPWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Source{v: v, logger: logger}, nil
}

// Load is Open followed by Config.
func Load(path string) (Config, error) {
	s, err := Open(path, nil)
	if err != nil {
		return Config{}, err
	}
	return s.Config(), nil
}

func (s *Source) SetLogger(logger *log.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// File is the config file in use, or "" when running on defaults and env.
func (s *Source) File() string {
	return s.v.ConfigFileUsed()
}

// Config returns the current values. Durations that do not parse or are not
// positive fall back to their defaults.
func (s *Source) Config() Config {
	return Config{
		Refresh:     RefreshConfig{Interval: s.duration("refresh.interval", DefaultInterval)},
		Termination: TerminationConfig{Grace: s.duration("termination.grace", DefaultGrace)},
		Filter:      FilterConfig{Text: s.v.GetString("filter.text")},
		Journal: JournalConfig{
			Path:   s.v.GetString("journal.path"),
			Pretty: s.v.GetBool("journal.pretty"),
		},
		Log: LogConfig{Path: s.v.GetString("log.path")},
	}
}

func (s *Source) duration(key string, def time.Duration) time.Duration {
	raw := s.v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != def.String() {
			s.logger.Printf("config %s=%q invalid, using %s", key, raw, def)
		}
		return def
	}
	return d
}

// Watch calls fn with the re-read configuration every time the config file
// changes. fn runs on the watcher goroutine. It does nothing when no file is
// in use.
func (s *Source) Watch(fn func(Config)) bool {
	if s.File() == "" || fn == nil {
		return false
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s.logger.Printf("config changed: %s", e.Name)
		fn(s.Config())
	})
	s.v.WatchConfig()
	return true
}
