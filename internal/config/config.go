// Package config loads hermitage settings from defaults, hermitage.yaml,
// HERMITAGE_ environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/avantgardnerio/hermitage/internal/backend"
)

// Defaults.
const (
	DefaultSessions     = 3
	DefaultScenariosDir = "scenarios"
	DefaultBackend      = "postgres"
	EnvPrefix           = "HERMITAGE_"
)

// Config is the resolved hermitage configuration.
type Config struct {
	Target       backend.Target `koanf:"target"`
	Sessions     int            `koanf:"sessions"`
	Settle       time.Duration  `koanf:"settle"`
	StepDelay    time.Duration  `koanf:"step_delay"`
	History      string         `koanf:"history"`
	ScenariosDir string         `koanf:"scenarios_dir"`
	Verbose      bool           `koanf:"verbose"`
	Format       string         `koanf:"format"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`
}

// Backend resolves the configured target type.
func (c *Config) Backend() (*backend.Backend, error) {
	return backend.Lookup(c.Target.Type)
}

// Load reads configuration with precedence flags > env > file > defaults.
// Only flags that were explicitly set override lower layers. Settle and
// step delay fall back to the backend's own values when left unset.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"target.type":   DefaultBackend,
		"sessions":      DefaultSessions,
		"scenarios_dir": DefaultScenariosDir,
		"format":        "text",
		"verbose":       false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// HERMITAGE_TARGET_HOST -> target.host, HERMITAGE_STEP_DELAY -> step_delay
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = path

	expandTargetEnvVars(&cfg.Target)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	b, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	if cfg.Settle == 0 {
		cfg.Settle = b.Settle
	}
	if cfg.StepDelay == 0 {
		cfg.StepDelay = b.StepDelay
	}
	return &cfg, nil
}

// Validate checks the decoded values.
func (c *Config) Validate() error {
	if _, err := c.Backend(); err != nil {
		return err
	}
	if c.Sessions < 2 {
		return fmt.Errorf("sessions must be at least 2, got %d", c.Sessions)
	}
	if c.Settle < 0 {
		return fmt.Errorf("settle must not be negative, got %s", c.Settle)
	}
	if c.StepDelay < 0 {
		return fmt.Errorf("step_delay must not be negative, got %s", c.StepDelay)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", c.Format)
	}
	return nil
}

// flagKeys maps flag names that do not follow the kebab-to-snake rule.
var flagKeys = map[string]string{
	"backend":  "target.type",
	"dsn":      "target.dsn",
	"host":     "target.host",
	"port":     "target.port",
	"database": "target.database",
	"user":     "target.user",
}

// findConfigFile returns the explicit path when given, otherwise
// hermitage.yaml or hermitage.yml in the working directory.
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, name := range []string{"hermitage.yaml", "hermitage.yml"} {
		if _, err := os.Stat(name); err == nil {
			return filepath.Clean(name), nil
		}
	}
	return "", nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "target_"); ok {
		return "target." + rest
	}
	return key
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} references with environment values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		return os.Getenv(name)
	})
}

func expandTargetEnvVars(t *backend.Target) {
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.User = expandEnvVars(t.User)
	t.Password = expandEnvVars(t.Password)
	t.DSN = expandEnvVars(t.DSN)
	for k, v := range t.Options {
		t.Options[k] = expandEnvVars(v)
	}
}
