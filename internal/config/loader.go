package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the configuration values for the reservation service.
// Values come from an optional YAML file first, then environment variables
// override individual fields.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	SessionSecret      string
	SessionTTL         time.Duration
	Timezone           string
	MaxOccurrences     int
	MaxMonths          int
	SessionCleanupSpec string
}

// fileConfig mirrors Config for the YAML file. Durations are written as Go
// duration strings ("24h", "90m").
type fileConfig struct {
	HTTPPort           *int    `yaml:"http_port"`
	SQLiteDSN          *string `yaml:"sqlite_dsn"`
	SessionSecret      *string `yaml:"session_secret"`
	SessionTTL         *string `yaml:"session_ttl"`
	Timezone           *string `yaml:"timezone"`
	MaxOccurrences     *int    `yaml:"max_occurrences"`
	MaxMonths          *int    `yaml:"max_months"`
	SessionCleanupSpec *string `yaml:"session_cleanup_spec"`
}

// Load builds the configuration. When ROOMRESERVE_CONFIG names a YAML file
// its values are applied over the defaults before the environment is read.
//
// The loader applies sensible defaults for optional fields while validating
// required values and reporting localized error messages for missing entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "file:roomreserve.db",
		SessionTTL:         24 * time.Hour,
		Timezone:           "Asia/Tokyo",
		MaxOccurrences:     200,
		MaxMonths:          6,
		SessionCleanupSpec: "@hourly",
	}

	if path := strings.TrimSpace(os.Getenv("ROOMRESERVE_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ROOMRESERVE_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ROOMRESERVE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ROOMRESERVE_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("ROOMRESERVE_SESSION_SECRET")); secret != "" {
		cfg.SessionSecret = secret
	}
	if cfg.SessionSecret == "" {
		missing = append(missing, "ROOMRESERVE_SESSION_SECRET")
	}

	if ttlValue := strings.TrimSpace(os.Getenv("ROOMRESERVE_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ROOMRESERVE_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := strings.TrimSpace(os.Getenv("ROOMRESERVE_TIMEZONE")); tz != "" {
		cfg.Timezone = tz
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		invalid = append(invalid, "ROOMRESERVE_TIMEZONE")
	}

	if value := strings.TrimSpace(os.Getenv("ROOMRESERVE_MAX_OCCURRENCES")); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, "ROOMRESERVE_MAX_OCCURRENCES")
		} else {
			cfg.MaxOccurrences = n
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMRESERVE_MAX_MONTHS")); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, "ROOMRESERVE_MAX_MONTHS")
		} else {
			cfg.MaxMonths = n
		}
	}

	if spec := strings.TrimSpace(os.Getenv("ROOMRESERVE_SESSION_CLEANUP_SPEC")); spec != "" {
		cfg.SessionCleanupSpec = spec
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の設定値が指定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("設定値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured facility timezone. Load has already
// validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("設定ファイルの形式が不正です: %w", err)
	}

	if file.HTTPPort != nil {
		cfg.HTTPPort = *file.HTTPPort
	}
	if file.SQLiteDSN != nil {
		cfg.SQLiteDSN = *file.SQLiteDSN
	}
	if file.SessionSecret != nil {
		cfg.SessionSecret = *file.SessionSecret
	}
	if file.SessionTTL != nil {
		ttl, err := time.ParseDuration(*file.SessionTTL)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("設定ファイルの session_ttl が不正です: %q", *file.SessionTTL)
		}
		cfg.SessionTTL = ttl
	}
	if file.Timezone != nil {
		cfg.Timezone = *file.Timezone
	}
	if file.MaxOccurrences != nil {
		cfg.MaxOccurrences = *file.MaxOccurrences
	}
	if file.MaxMonths != nil {
		cfg.MaxMonths = *file.MaxMonths
	}
	if file.SessionCleanupSpec != nil {
		cfg.SessionCleanupSpec = *file.SessionCleanupSpec
	}
	return nil
}
