package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/CTAG07/gentpl/pkg/codegen"
	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
	"github.com/spf13/cast"
)

// envPrefix prefixes every environment variable that overrides the config file.
const envPrefix = "GENTPL_"

// GeneratorConfig holds where templates are read from and written to.
type GeneratorConfig struct {
	SourceDir  string         `json:"source_dir"`
	DestDir    string         `json:"dest_dir"`
	VarsFile   string         `json:"vars_file"`
	PruneStale bool           `json:"prune_stale"`
	Engine     codegen.Config `json:"engine"`
}

// LedgerConfig holds the generation ledger settings.
type LedgerConfig struct {
	Enabled      bool   `json:"enabled"`
	DatabasePath string `json:"database_path"`
}

// ServerConfig holds the settings of the preview API.
type ServerConfig struct {
	ApiAddr  string `json:"api_addr"`
	LogLevel string `json:"log_level"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Generator *GeneratorConfig `json:"generator_config"`
	Ledger    *LedgerConfig    `json:"ledger_config"`
	Server    *ServerConfig    `json:"server_config"`
}

func DefaultGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		SourceDir:  "./templates",
		DestDir:    "./generated",
		VarsFile:   "./vars.yaml",
		PruneStale: false,
		Engine:     codegen.DefaultConfig(),
	}
}

func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		Enabled:      true,
		DatabasePath: "./gentpl.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:  ":7278",
		LogLevel: "info",
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
// Environment variables, optionally from a .env file, override the result.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Generator: DefaultGeneratorConfig(),
		Ledger:    DefaultLedgerConfig(),
		Server:    DefaultServerConfig(),
	}

	file, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		var data []byte
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			// The defaults are still usable.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err = json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if config.Generator == nil {
			config.Generator = DefaultGeneratorConfig()
		}
		if config.Ledger == nil {
			config.Ledger = DefaultLedgerConfig()
		}
		if config.Server == nil {
			config.Server = DefaultServerConfig()
		}
	}

	// A missing .env file is normal.
	_ = godotenv.Load()
	if err = applyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides config values from GENTPL_* environment variables.
func applyEnv(config *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	str("SOURCE_DIR", &config.Generator.SourceDir)
	str("DEST_DIR", &config.Generator.DestDir)
	str("VARS_FILE", &config.Generator.VarsFile)
	str("DATABASE_PATH", &config.Ledger.DatabasePath)
	str("API_ADDR", &config.Server.ApiAddr)
	str("LOG_LEVEL", &config.Server.LogLevel)

	if v, ok := os.LookupEnv(envPrefix + "WORKERS"); ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("invalid %sWORKERS: %w", envPrefix, err)
		}
		config.Generator.Engine.Workers = n
	}

	bools := map[string]*bool{
		"PRUNE_STALE":    &config.Generator.PruneStale,
		"SKIP_UNCHANGED": &config.Generator.Engine.SkipUnchanged,
		"LEDGER":         &config.Ledger.Enabled,
	}
	for name, dst := range bools {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			b, err := cast.ToBoolE(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}
	return nil
}

// logLevel parses a configured level name, falling back to info.
func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
