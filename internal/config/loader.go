package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BOOKING"

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = EnvPrefix + "_CONFIG_FILE"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures configuration values for the booking service.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	StoreDriver string
	StoreDSN    string

	LogLevel  string
	LogFormat string

	GoogleClientID     string
	GoogleClientSecret string

	SecretPassphrase string
	SecretSalt       string

	ExpoEndpoint    string
	ExpoAccessToken string
	TelegramToken   string

	SyncConcurrency  int
	ReminderSchedule string
	SyncSchedule     string
	LedgerRetention  time.Duration
	ExternalTimeout  time.Duration

	SeedFile string
}

// CalendarEnabled reports whether external calendar sync is configured.
func (c Config) CalendarEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

var defaults = map[string]any{
	"http_addr":         ":8080",
	"shutdown_timeout":  "10s",
	"store_driver":      DriverSQLite,
	"store_dsn":         "data/booking.db",
	"log_level":         "info",
	"log_format":        "json",
	"secret_salt":       "booking-reminder",
	"expo_endpoint":     "https://exp.host/--/api/v2/push/send",
	"sync_concurrency":  "4",
	"reminder_schedule": "* * * * *",
	"sync_schedule":     "*/5 * * * *",
	"ledger_retention":  "72h",
	"external_timeout":  "30s",
}

var keys = []string{
	"http_addr", "shutdown_timeout",
	"store_driver", "store_dsn",
	"log_level", "log_format",
	"google_client_id", "google_client_secret",
	"secret_passphrase", "secret_salt",
	"expo_endpoint", "expo_access_token", "telegram_token",
	"sync_concurrency", "reminder_schedule", "sync_schedule", "ledger_retention", "external_timeout",
	"seed_file",
}

// Load reads configuration from a .env file, an optional YAML file named by
// BOOKING_CONFIG_FILE and BOOKING_* environment variables, in increasing
// precedence. Missing and invalid keys are collected and reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		values, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := v.MergeConfigMap(values); err != nil {
			return Config{}, fmt.Errorf("failed to merge %s: %w", path, err)
		}
	}

	return parse(v)
}

func readFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	values := make(map[string]any)
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return values, nil
}

func parse(v *viper.Viper) (Config, error) {
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)
	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }
	envName := func(key string) string { return EnvPrefix + "_" + strings.ToUpper(key) }

	duration := func(key string) time.Duration {
		d, err := time.ParseDuration(str(key))
		if err != nil || d <= 0 {
			invalid = append(invalid, envName(key))
			return 0
		}
		return d
	}
	schedule := func(key string) string {
		spec := str(key)
		if _, err := cron.ParseStandard(spec); err != nil {
			invalid = append(invalid, envName(key))
		}
		return spec
	}

	cfg := Config{
		HTTPAddr:           str("http_addr"),
		ShutdownTimeout:    duration("shutdown_timeout"),
		StoreDriver:        strings.ToLower(str("store_driver")),
		StoreDSN:           str("store_dsn"),
		LogLevel:           strings.ToLower(str("log_level")),
		LogFormat:          strings.ToLower(str("log_format")),
		GoogleClientID:     str("google_client_id"),
		GoogleClientSecret: str("google_client_secret"),
		SecretPassphrase:   str("secret_passphrase"),
		SecretSalt:         str("secret_salt"),
		ExpoEndpoint:       str("expo_endpoint"),
		ExpoAccessToken:    str("expo_access_token"),
		TelegramToken:      str("telegram_token"),
		ReminderSchedule:   schedule("reminder_schedule"),
		SyncSchedule:       schedule("sync_schedule"),
		LedgerRetention:    duration("ledger_retention"),
		ExternalTimeout:    duration("external_timeout"),
		SeedFile:           str("seed_file"),
	}

	if n, err := strconv.Atoi(str("sync_concurrency")); err != nil || n <= 0 {
		invalid = append(invalid, envName("sync_concurrency"))
	} else {
		cfg.SyncConcurrency = n
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if cfg.StoreDSN == "" {
			missing = append(missing, envName("store_dsn"))
		}
	default:
		invalid = append(invalid, envName("store_driver"))
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, envName("log_format"))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, envName("log_level"))
	}

	if cfg.SecretPassphrase == "" {
		missing = append(missing, envName("secret_passphrase"))
	}
	if (cfg.GoogleClientID == "") != (cfg.GoogleClientSecret == "") {
		if cfg.GoogleClientID == "" {
			missing = append(missing, envName("google_client_id"))
		} else {
			missing = append(missing, envName("google_client_secret"))
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}
