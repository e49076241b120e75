package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the fellowship service.
// Values come from an optional YAML file overridden by environment
// variables.
type Config struct {
	HTTPPort           int           `yaml:"http_port"`
	SQLiteDSN          string        `yaml:"sqlite_dsn"`
	GoogleClientID     string        `yaml:"google_client_id"`
	GoogleClientSecret string        `yaml:"google_client_secret"`
	GoogleRedirectURL  string        `yaml:"google_redirect_url"`
	RefreshSchedule    string        `yaml:"refresh_schedule"`
	CredentialCacheTTL time.Duration `yaml:"credential_cache_ttl"`
}

// Load builds the configuration. When FELLOWSHIP_CONFIG names a YAML
// file it is read first; individual FELLOWSHIP_* environment variables
// override file values. Missing and invalid entries are reported
// together so a broken deployment surfaces every problem at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "file:fellowship.db?_foreign_keys=on",
		RefreshSchedule:    "@hourly",
		CredentialCacheTTL: 5 * time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("FELLOWSHIP_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("FELLOWSHIP_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "FELLOWSHIP_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("FELLOWSHIP_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if id := strings.TrimSpace(os.Getenv("FELLOWSHIP_GOOGLE_CLIENT_ID")); id != "" {
		cfg.GoogleClientID = id
	}
	if secret := strings.TrimSpace(os.Getenv("FELLOWSHIP_GOOGLE_CLIENT_SECRET")); secret != "" {
		cfg.GoogleClientSecret = secret
	}
	if redirect := strings.TrimSpace(os.Getenv("FELLOWSHIP_GOOGLE_REDIRECT_URL")); redirect != "" {
		cfg.GoogleRedirectURL = redirect
	}
	if cfg.GoogleClientID == "" {
		missing = append(missing, "FELLOWSHIP_GOOGLE_CLIENT_ID")
	}
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "FELLOWSHIP_GOOGLE_CLIENT_SECRET")
	}

	if schedule := strings.TrimSpace(os.Getenv("FELLOWSHIP_REFRESH_SCHEDULE")); schedule != "" {
		cfg.RefreshSchedule = schedule
	}

	if ttlValue := strings.TrimSpace(os.Getenv("FELLOWSHIP_CREDENTIAL_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "FELLOWSHIP_CREDENTIAL_CACHE_TTL")
		} else {
			cfg.CredentialCacheTTL = ttl
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required configuration values are missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("configuration values are invalid: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
