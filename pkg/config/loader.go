package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Base and override file names inside the config directory. The local file
// is optional and is merged on top of the base.
const (
	baseFile  = "config.yaml"
	localFile = "config.local.yaml"
)

// Load reads, merges, and validates the configuration from configDir.
//
// Resolution order (later wins):
//  1. built-in defaults
//  2. config.yaml
//  3. config.local.yaml (optional)
//  4. SERVER_HOST / SERVER_PORT environment variables
func Load(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg := Default()

	base, err := loadFile(filepath.Join(configDir, baseFile))
	if err != nil {
		return nil, NewLoadError(baseFile, err)
	}
	if err := mergo.Merge(cfg, base, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge %s: %w", baseFile, err)
	}

	local, err := loadFile(filepath.Join(configDir, localFile))
	switch {
	case err == nil:
		if err := mergo.Merge(cfg, local, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", localFile, err)
		}
	case os.IsNotExist(err):
		// Local override is optional.
	default:
		return nil, NewLoadError(localFile, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	log.Info("Configuration loaded",
		"llm_mode", cfg.LLM.Mode,
		"max_concurrent_requests", cfg.AI.MaxConcurrentRequests,
		"language", cfg.System.Language,
		"addr", cfg.Addr())
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = expandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies SERVER_HOST / SERVER_PORT, which take priority
// over every file value.
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.System.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.System.Port = p
		} else {
			slog.Warn("Ignoring invalid SERVER_PORT", "value", port)
		}
	}
}

func validate(cfg *Config) error {
	if cfg.AI.MaxConcurrentRequests < 1 {
		return fmt.Errorf("%w: ai.max_concurrent_requests must be >= 1", ErrInvalidValue)
	}
	if cfg.AI.MaxParseRetries < 0 {
		return fmt.Errorf("%w: ai.max_parse_retries must be >= 0", ErrInvalidValue)
	}
	switch cfg.LLM.Mode {
	case "normal", "fast", "default":
	default:
		return fmt.Errorf("%w: llm.mode must be normal, fast, or default", ErrInvalidValue)
	}
	for task, mode := range cfg.LLM.DefaultModes {
		if mode != "normal" && mode != "fast" {
			return fmt.Errorf("%w: llm.default_modes[%s] must be normal or fast", ErrInvalidValue, task)
		}
	}
	if cfg.System.Port < 1 || cfg.System.Port > 65535 {
		return fmt.Errorf("%w: system.port out of range", ErrInvalidValue)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.System.Host, c.System.Port)
}
