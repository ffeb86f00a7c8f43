package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"deskhub/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides. Secrets and per-deployment identity are
// supplied through the environment so config files stay checkout-safe.
const (
	envTenantID          = "DESKHUB_TENANT_ID"
	envAudience          = "DESKHUB_AUDIENCE"
	envSecondaryAudience = "DESKHUB_SECONDARY_AUDIENCE"
	envPort              = "DESKHUB_PORT"
	envMode              = "DESKHUB_MODE"
	envCORSOrigins       = "DESKHUB_CORS_ORIGINS"
)

// Load reads configuration from the given file path, applies environment
// overrides, and validates the result. A missing file is not an error: the
// defaults plus environment are used. A malformed file or invalid resulting
// configuration fails, and must abort startup.
func Load(path string) (Config, error) {
	cfg := GetDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Info("Config", "No config file at %s, using defaults", path)
		case err != nil:
			return Config{}, fmt.Errorf("reading config from %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config from %s: %w", path, err)
			}
			logging.Info("Config", "Loaded configuration from %s", path)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	applyPolicyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(envTenantID); v != "" {
		cfg.Auth.TenantID = v
	}
	if v := os.Getenv(envAudience); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv(envSecondaryAudience); v != "" {
		cfg.Auth.SecondaryAudience = v
	}
	if v := os.Getenv(envMode); v != "" {
		cfg.Server.Mode = ServeMode(v)
	}
	if v := os.Getenv(envCORSOrigins); v != "" {
		cfg.Server.CORSOrigins = splitAndTrim(v)
	}
	if v := os.Getenv(envPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", envPort, v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// applyPolicyDefaults restores the non-empty policy invariant when the file
// cleared the defaults without providing replacements.
func applyPolicyDefaults(cfg *Config) {
	if len(cfg.Policy.AllowedRoles) == 0 && len(cfg.Policy.AllowedScopes) == 0 {
		cfg.Policy.AllowedRoles = append([]string(nil), DefaultAllowedRoles...)
		cfg.Policy.AllowedScopes = append([]string(nil), DefaultAllowedScopes...)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
