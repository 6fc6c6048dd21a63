// Package config loads ovm settings from defaults, the config file, OVM_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/tasuku43/ovm/internal/domain/database"
	"github.com/tasuku43/ovm/internal/domain/schedule"
	"github.com/tasuku43/ovm/internal/infra/paths"
)

const envPrefix = "OVM_"

type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
}

func (p PostgresConfig) Conn() database.ConnConfig {
	return database.ConnConfig{
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		SSLMode:  p.SSLMode,
	}
}

type Config struct {
	Root string `koanf:"root"`
	// Protocol used to clone repositories: https or ssh.
	Protocol string `koanf:"protocol"`
	LogLevel string `koanf:"log_level"`
	// AppLogLevel is passed to the application as --log-level.
	AppLogLevel string         `koanf:"app_log_level"`
	WeekStart   string         `koanf:"week_start"`
	Postgres    PostgresConfig `koanf:"postgres"`

	// File is the config file that was read, empty when none exists.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"protocol":      "https",
		"log_level":     "info",
		"app_log_level": "info",
		"week_start":    "monday",
		"postgres.host": "localhost",
		"postgres.port": 5432,
	}
}

// Load resolves the root from flags and the environment, then layers the
// remaining sources on top of the defaults. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	var flagRoot string
	if flags != nil && flags.Lookup("root") != nil {
		flagRoot, _ = flags.GetString("root")
	}
	root, err := paths.ResolveRoot(flagRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	layout := paths.Layout{Root: root}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFile := ""
	if ok, _ := paths.FileExists(layout.ConfigFile()); ok {
		configFile = layout.ConfigFile()
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// OVM_POSTGRES__HOST -> postgres.host
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "verbose" {
				if on, _ := flags.GetBool("verbose"); on {
					return "log_level", "debug"
				}
				return "", nil
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
	cfg.Root = root
	cfg.File = configFile
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Protocol {
	case "https", "ssh":
	default:
		return fmt.Errorf("invalid protocol %q (expected https or ssh)", c.Protocol)
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Layout() paths.Layout {
	return paths.Layout{Root: c.Root}
}

// Schedule returns the pull policy for the configured week start.
func (c *Config) Schedule() (schedule.Policy, error) {
	value := strings.ToLower(strings.TrimSpace(c.WeekStart))
	if value == "" {
		return schedule.Weekly, nil
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if value == name || value == name[:3] {
			return schedule.Policy{WeekStart: day}, nil
		}
	}
	return schedule.Policy{}, fmt.Errorf("invalid week_start %q", c.WeekStart)
}

// EnsureRoot creates the root directory layout.
func (c *Config) EnsureRoot() error {
	layout := c.Layout()
	for _, dir := range []string{layout.Root, layout.Repositories(), layout.Worktrees(), layout.Virtualenvs()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
