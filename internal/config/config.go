// Package config loads semcraft configuration from defaults, an
// optional semcraft.yaml, SEMCRAFT_* environment variables and CLI
// flags, in ascending precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "semcraft.yaml"
	ConfigFileNameAlt = "semcraft.yml"
)

// Default configuration values.
const (
	DefaultStatePath   = ".semcraft/sessions.db"
	DefaultOutput      = "auto"
	DefaultDestDB      = "SNOWFLAKE_SEMANTIC_CONTEXT"
	DefaultDestSchema  = "DEFINITIONS"
	DefaultDestStage   = "TEST"
	DefaultModel       = "mistral-large"
	DefaultServePort   = 8931
	DefaultConnType    = "duckdb"
	DefaultEnvPrefix   = "SEMCRAFT_"
)

// ConnectionConfig holds warehouse connection settings. The credential
// fields mirror what the completion call and stage operations need from
// the hosting account.
type ConnectionConfig struct {
	Type      string `koanf:"type"` // duckdb, postgres
	Path      string `koanf:"path"` // file-based databases
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	Account   string `koanf:"account"`
	User      string `koanf:"user"`
	Password  string `koanf:"password"`
	Role      string `koanf:"role"`
	Warehouse string `koanf:"warehouse"`
	Database  string `koanf:"database"`
	Schema    string `koanf:"schema"`

	// Namespace qualifies the completion function; empty means the
	// built-in default.
	Namespace string `koanf:"namespace"`
}

// CurationConfig holds LLM refinement settings.
type CurationConfig struct {
	Model    string   `koanf:"model"`
	DocsURL  string   `koanf:"docs_url"`
	Sections []string `koanf:"sections"`
}

// DestinationConfig holds the default destination triple offered by the
// Store stage.
type DestinationConfig struct {
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`
	Stage    string `koanf:"stage"`
}

// Config is the root configuration.
type Config struct {
	Connection  ConnectionConfig  `koanf:"connection"`
	Curation    CurationConfig    `koanf:"curation"`
	Destination DestinationConfig `koanf:"destination"`
	StatePath   string            `koanf:"state_path"`
	Output      string            `koanf:"output"`
	Verbose     bool              `koanf:"verbose"`
	Port        int               `koanf:"port"`

	// SessionSecret signs the web UI session cookies. When unset a
	// random secret is generated per process, which invalidates
	// cookies across restarts.
	SessionSecret string `koanf:"session_secret"`
}

// requiredConnectionKeys are the settings that must be present before
// the wizard can leave the Getting started stage. Each maps to the
// environment variable reported when it is missing.
var requiredConnectionKeys = []struct {
	name  string
	value func(*ConnectionConfig) string
}{
	{"SEMCRAFT_USER", func(c *ConnectionConfig) string { return c.User }},
	{"SEMCRAFT_PASSWORD", func(c *ConnectionConfig) string { return c.Password }},
	{"SEMCRAFT_ROLE", func(c *ConnectionConfig) string { return c.Role }},
	{"SEMCRAFT_WAREHOUSE", func(c *ConnectionConfig) string { return c.Warehouse }},
	{"SEMCRAFT_HOST", func(c *ConnectionConfig) string { return c.Host }},
	{"SEMCRAFT_ACCOUNT", func(c *ConnectionConfig) string { return c.Account }},
}

// ConfigError reports missing required connection settings. Every
// missing identifier is enumerated in one message so the user can fix
// all of them in a single pass.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required connection settings: %s", strings.Join(e.Missing, ", "))
}

// CheckConnection verifies that every required connection setting is
// present. It returns nil when the configuration is complete, otherwise
// a ConfigError naming every missing identifier.
func (c *Config) CheckConnection() error {
	var missing []string
	for _, key := range requiredConnectionKeys {
		if strings.TrimSpace(key.value(&c.Connection)) == "" {
			missing = append(missing, key.name)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// connEnvKeys maps SEMCRAFT_<KEY> environment variables onto nested
// connection settings; everything else stays a flat top-level key.
var connEnvKeys = map[string]bool{
	"type": true, "path": true, "host": true, "port": true,
	"account": true, "user": true, "password": true, "role": true,
	"warehouse": true, "database": true, "schema": true, "namespace": true,
}

// Load reads configuration with precedence flags > env > file > defaults.
// cfgFile may be empty, in which case semcraft.yaml / semcraft.yml in
// the working directory is used if present.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"connection.type":      DefaultConnType,
		"curation.model":       DefaultModel,
		"destination.database": DefaultDestDB,
		"destination.schema":   DefaultDestSchema,
		"destination.stage":    DefaultDestStage,
		"state_path":           DefaultStatePath,
		"output":               DefaultOutput,
		"port":                 DefaultServePort,
		"verbose":              false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file.
	configFile := findConfigFile(cfgFile)
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Environment (SEMCRAFT_ prefix).
	if err := k.Load(env.Provider(DefaultEnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, DefaultEnvPrefix))
		if connEnvKeys[key] {
			return "connection." + key
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest precedence, only when explicitly set).
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
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
	return &cfg, nil
}

// findConfigFile finds the config file to use.
// Priority: explicit path > semcraft.yaml > semcraft.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}
