package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
	"github.com/vnykmshr/taskchain/pkg/common/validation"
)

// EnvPrefix prefixes environment overrides, e.g. TASKCHAIN_LOG_LEVEL.
const EnvPrefix = "TASKCHAIN"

// Config is the configuration of the taskchain command. Values come from
// struct defaults, then the YAML config file, then TASKCHAIN_* environment
// variables, then flags.
type Config struct {
	Workers int    `mapstructure:"workers" default:"10"`
	Name    string `mapstructure:"name" default:"taskchain"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Demo    DemoConfig    `mapstructure:"demo"`
}

// LogConfig selects the log level, encoding and an optional rotated file.
type LogConfig struct {
	Level  string `mapstructure:"level" default:"info"`
	Format string `mapstructure:"format" default:"console"`

	// File, when set, receives JSON logs rotated by size.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max-size-mb" default:"100"`
	MaxBackups int    `mapstructure:"max-backups" default:"3"`
	MaxAgeDays int    `mapstructure:"max-age-days" default:"28"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path" default:"/metrics"`
}

// RedisConfig enables publishing failure events when Addr is set.
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel" default:"taskchain:events"`
}

// DemoConfig shapes the demo chain. Scale multiplies every task duration.
type DemoConfig struct {
	Scale           float64       `mapstructure:"scale" default:"1"`
	SyncTimeout     time.Duration `mapstructure:"sync-timeout" default:"1s"`
	TimerDelay      time.Duration `mapstructure:"timer-delay" default:"3s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" default:"2s"`
}

// DefaultConfig returns the configuration with every default applied.
func DefaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("cli: invalid default tags: %v", err))
	}
	return cfg
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return validation.ValidatePositive("cli", "workers", c.Workers)
	case c.Log.Format != "console" && c.Log.Format != "json":
		return tcerrors.NewValidationError("cli", "log.format", c.Log.Format, "must be console or json")
	case c.Demo.Scale <= 0:
		return tcerrors.NewValidationError("cli", "demo.scale", c.Demo.Scale, "must be positive")
	case c.Demo.ShutdownTimeout <= 0:
		return validation.ValidatePositiveDuration("cli", "demo.shutdown-timeout", c.Demo.ShutdownTimeout)
	}
	return nil
}

// DecodeHook converts strings from files, flags and the environment.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// BindFlags registers the configuration flags on fs and binds them to v.
// Flag defaults come from DefaultConfig.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	def := DefaultConfig()

	fs.IntP("workers", "w", def.Workers, "Number of pool workers.")
	fs.String("name", def.Name, "Name used in logs and metric labels.")
	fs.String("log-level", def.Log.Level, "Log level: debug, info, warn or error.")
	fs.String("log-format", def.Log.Format, "Log encoding: console or json.")
	fs.String("log-file", def.Log.File, "Also write JSON logs to this file, rotated by size.")
	fs.Int("log-max-size-mb", def.Log.MaxSizeMB, "Rotate the log file after this many megabytes.")
	fs.Int("log-max-backups", def.Log.MaxBackups, "Rotated log files to keep.")
	fs.Int("log-max-age-days", def.Log.MaxAgeDays, "Days to keep rotated log files.")
	fs.String("metrics-addr", def.Metrics.Addr, "Serve Prometheus metrics on this address, e.g. :9090.")
	fs.String("metrics-path", def.Metrics.Path, "HTTP path of the metrics endpoint.")
	fs.String("redis-addr", def.Redis.Addr, "Publish failure events to this Redis server.")
	fs.String("redis-channel", def.Redis.Channel, "Redis pub/sub channel for failure events.")
	fs.Float64("demo-scale", def.Demo.Scale, "Multiplier applied to demo task durations.")
	fs.Duration("demo-sync-timeout", def.Demo.SyncTimeout, "Timeout of the synchronous demo step.")
	fs.Duration("demo-timer-delay", def.Demo.TimerDelay, "Delay of the timed demo step.")
	fs.Duration("demo-shutdown-timeout", def.Demo.ShutdownTimeout, "How long the demo waits for a graceful shutdown.")

	bindings := map[string]string{
		"workers":               "workers",
		"name":                  "name",
		"log.level":             "log-level",
		"log.format":            "log-format",
		"log.file":              "log-file",
		"log.max-size-mb":       "log-max-size-mb",
		"log.max-backups":       "log-max-backups",
		"log.max-age-days":      "log-max-age-days",
		"metrics.addr":          "metrics-addr",
		"metrics.path":          "metrics-path",
		"redis.addr":            "redis-addr",
		"redis.channel":         "redis-channel",
		"demo.scale":            "demo-scale",
		"demo.sync-timeout":     "demo-sync-timeout",
		"demo.timer-delay":      "demo-timer-delay",
		"demo.shutdown-timeout": "demo-shutdown-timeout",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// Load reads the optional YAML file and the environment into a Config.
func Load(v *viper.Viper, file string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
