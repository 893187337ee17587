/*
Package config resolves process configuration for the workforce binaries.

SOURCES (highest precedence first):
  1. Command-line flags bound with BindFlags
  2. Environment variables: WORKFORCE_<KEY>, dashes and dots become
     underscores (WORKFORCE_DB_PATH, WORKFORCE_SCHEDULER_INTERVAL)
  3. Optional config file (--config, YAML/JSON/TOML)
  4. Defaults

KEYS:
  addr                  HTTP listen address
  db-path               SQLite file, ":memory:" for ephemeral runs
  seed                  Global RNG seed (overrides the scenario seed)
  scenario              Scenario loaded at startup
  catalog               Catalog file; empty uses the preset catalog
  tuning                Tuning file; empty uses DefaultTuning
  telemetry-dir         Directory for zstd JSONL event logs; empty disables
  scheduler.enabled     Step ticks automatically
  scheduler.interval    Wall time between automatic ticks
  cors-origins          Allowed CORS origins
  log.level             debug, info, warn, error
  log.format            text or json
*/
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const EnvPrefix = "WORKFORCE"

type Config struct {
	Addr         string
	DBPath       string
	Seed         string
	Scenario     string
	CatalogPath  string
	TuningPath   string
	TelemetryDir string
	CORSOrigins  []string

	Scheduler SchedulerConfig
	Log       LogConfig
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db-path", "./data/workforce.db")
	v.SetDefault("seed", "")
	v.SetDefault("scenario", "greenhouse-basic")
	v.SetDefault("catalog", "")
	v.SetDefault("tuning", "")
	v.SetDefault("telemetry-dir", "")
	v.SetDefault("cors-origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "1s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	return v
}

// BindFlags binds every flag of cmd (persistent and local) that matches a
// config key.
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for _, key := range []string{
		"addr", "db-path", "seed", "scenario", "catalog", "tuning", "telemetry-dir",
		"cors-origins", "scheduler.enabled", "scheduler.interval", "log.level", "log.format",
	} {
		flag := cmd.Flags().Lookup(key)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(key)
		}
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the optional config file and resolves a Config.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Addr:         v.GetString("addr"),
		DBPath:       v.GetString("db-path"),
		Seed:         v.GetString("seed"),
		Scenario:     v.GetString("scenario"),
		CatalogPath:  v.GetString("catalog"),
		TuningPath:   v.GetString("tuning"),
		TelemetryDir: v.GetString("telemetry-dir"),
		CORSOrigins:  v.GetStringSlice("cors-origins"),
		Scheduler: SchedulerConfig{
			Enabled:  v.GetBool("scheduler.enabled"),
			Interval: v.GetDuration("scheduler.interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db-path is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be > 0, got %s", c.Scheduler.Interval)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Logger builds the process logger.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
