package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/elementstates/pkg/client"
	"github.com/cuemby/elementstates/pkg/log"
	"github.com/cuemby/elementstates/pkg/reconciler"
	"github.com/cuemby/elementstates/pkg/snapshot"
	"github.com/cuemby/elementstates/pkg/types"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values
const (
	EnvEndpoint = "ELEMENTSTATES_ENDPOINT"
	EnvUser     = "ELEMENTSTATES_USER"
	EnvPassword = "ELEMENTSTATES_PASSWORD"
)

// DefaultTimeout is the maximum duration of one run
const DefaultTimeout = 4 * time.Hour

var validate = validator.New()

// Config is the elementstates configuration file
type Config struct {
	// Endpoint is required by every command that talks to the cluster
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	SnapshotDir string `yaml:"snapshot_dir" validate:"required"`
	Retention   int    `yaml:"retention" validate:"gte=1"`

	// JournalPath is the run journal file; empty disables the journal
	JournalPath string `yaml:"journal_path"`
	JournalKeep int    `yaml:"journal_keep" validate:"gte=0"`

	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	ActorTag string        `yaml:"actor_tag" validate:"required"`

	Pacing PacingConfig `yaml:"pacing"`
	Log    LogConfig    `yaml:"log"`

	MetricsFile string `yaml:"metrics_file"`
}

// PacingConfig holds settle delays and the throttle
type PacingConfig struct {
	StartSettle      time.Duration `yaml:"start_settle" validate:"gte=0"`
	StopSettle       time.Duration `yaml:"stop_settle" validate:"gte=0"`
	PauseSettle      time.Duration `yaml:"pause_settle" validate:"gte=0"`
	ActivateSettle   time.Duration `yaml:"activate_settle" validate:"gte=0"`
	ThrottleCeiling  int           `yaml:"throttle_ceiling" validate:"gte=1"`
	ThrottleCooldown time.Duration `yaml:"throttle_cooldown" validate:"gte=0"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	pacing := reconciler.DefaultConfig()
	return &Config{
		SnapshotDir: defaultDataDir("snapshots"),
		Retention:   snapshot.DefaultRetention,
		JournalPath: defaultDataDir("journal.db"),
		JournalKeep: 500,
		Timeout:     DefaultTimeout,
		ActorTag:    types.DefaultAutomatedActor,
		Pacing: PacingConfig{
			StartSettle:      pacing.StartSettle,
			StopSettle:       pacing.StopSettle,
			PauseSettle:      pacing.PauseSettle,
			ActivateSettle:   pacing.ActivateSettle,
			ThrottleCeiling:  pacing.ThrottleCeiling,
			ThrottleCooldown: pacing.ThrottleCooldown,
		},
		Log: LogConfig{Level: string(log.InfoLevel)},
	}
}

func defaultDataDir(name string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "elementstates", name)
	}
	return filepath.Join(".elementstates", name)
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path yields the defaults. Load does not
// validate; callers merge flags first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvEndpoint); ok && v != "" {
		c.Endpoint = v
	}
	if v, ok := os.LookupEnv(EnvUser); ok && v != "" {
		c.User = v
	}
	if v, ok := os.LookupEnv(EnvPassword); ok {
		c.Password = v
	}
}

// Validate checks the configuration and reports every invalid field
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q check", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// RequireEndpoint fails when no endpoint is configured
func (c *Config) RequireEndpoint() error {
	if c.Endpoint == "" {
		return fmt.Errorf("no endpoint configured: use --endpoint, %s or the config file", EnvEndpoint)
	}
	return nil
}

// ClientConfig returns the connection settings
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		Endpoint: c.Endpoint,
		User:     c.User,
		Password: c.Password,
	}
}

// ReconcilerConfig returns the transition pacing
func (c *Config) ReconcilerConfig() reconciler.Config {
	return reconciler.Config{
		StartSettle:      c.Pacing.StartSettle,
		StopSettle:       c.Pacing.StopSettle,
		PauseSettle:      c.Pacing.PauseSettle,
		ThrottleCeiling:  c.Pacing.ThrottleCeiling,
		ThrottleCooldown: c.Pacing.ThrottleCooldown,
		ActivateSettle:   c.Pacing.ActivateSettle,
	}
}

// LogConfig returns the logger settings
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Level:      log.Level(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}
