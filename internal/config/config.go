// Package config loads cmdrunner settings from defaults, an optional config
// file, CMDRUNNER_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CMDRUNNER_DEADLINE.
const EnvPrefix = "CMDRUNNER"

// Config holds everything needed to wire a runner.
type Config struct {
	Execution ExecutionConfig `mapstructure:"execution"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	LogLevel  string          `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// ExecutionConfig tunes how batches are run.
type ExecutionConfig struct {
	Deadline              time.Duration `mapstructure:"deadline" validate:"gt=0"`
	KillGrace             time.Duration `mapstructure:"kill_grace" validate:"gt=0"`
	Shell                 string        `mapstructure:"shell" validate:"required"`
	WorkDir               string        `mapstructure:"work_dir"`
	QueueCapacity         int           `mapstructure:"queue_capacity" validate:"min=1"`
	SpawnRate             float64       `mapstructure:"spawn_rate" validate:"min=0"`
	PreservePartialOutput bool          `mapstructure:"preserve_partial_output"`
}

// DatabaseConfig locates the result store. An empty URL is assembled from the
// individual connection fields.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	Host           string        `mapstructure:"host" validate:"required_without=URL"`
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name" validate:"required_without=URL"`
	MinConns       int32         `mapstructure:"min_conns" validate:"min=0"`
	MaxConns       int32         `mapstructure:"max_conns" validate:"min=1,gtefield=MinConns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	// MigrationsURL overrides the migrations embedded in the binary, e.g.
	// file:///srv/cmdrunner/migrations. Relative file URLs resolve against the
	// working directory.
	MigrationsURL  string        `mapstructure:"migrations_url"`
}

// TelemetryConfig controls OTLP export. With Enabled false noop providers are used.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string  `mapstructure:"service_name" validate:"required"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"min=0,max=1"`
}

// DSN returns the connection string for the result store.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Name)
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"deadline":     "execution.deadline",
	"kill-grace":   "execution.kill_grace",
	"shell":        "execution.shell",
	"workdir":      "execution.work_dir",
	"spawn-rate":   "execution.spawn_rate",
	"keep-partial": "execution.preserve_partial_output",
	"log-level":    "log_level",
	"database-url": "database.url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("execution.deadline", 60*time.Second)
	v.SetDefault("execution.kill_grace", 5*time.Second)
	v.SetDefault("execution.shell", "/bin/sh")
	v.SetDefault("execution.work_dir", "")
	v.SetDefault("execution.queue_capacity", 16)
	v.SetDefault("execution.spawn_rate", 0.0)
	v.SetDefault("execution.preserve_partial_output", false)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "cmdrunner")
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.connect_timeout", 30*time.Second)
	v.SetDefault("database.migrations_url", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "cmdrunner")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Load resolves the configuration. path names an optional config file in any
// format viper understands; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
