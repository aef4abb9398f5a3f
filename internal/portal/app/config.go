package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names an explicit YAML config file. Without it ./portal.yaml
// is read when present.
const ConfigFileEnv = "PORTAL_CONFIG_FILE"

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	LogFile   string // Optional: also write logs to this size-rotated file

	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	TrustProxy           bool          // Take client IPs from X-Forwarded-For (default: false)
	SecureCookies        bool          // Mark the session cookie Secure (default: true)
	CORSAllowedOrigins   []string      // Browser origins allowed to call the API

	Issuer          string        // Issuer claim for mobile tokens (default: ledgerdesk)
	JWTSecret       string        // HS256 secret, at least 32 bytes. Generated per process when empty
	AccessTokenTTL  time.Duration // Mobile access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Mobile refresh token lifetime (default: 30 days)
	SessionTTL      time.Duration // Web session lifetime (default: 12h)
	BootstrapToken  string        // Optional: enables POST /v1/bootstrap
	PepperFile      string        // Path to the password pepper (default: ./pepper)

	DocumentKey    string // Master secret for document encryption. Documents are disabled when empty
	MaxUploadBytes int64  // Largest accepted document (default: 25 MiB)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite file (default: ./portal.db)
	DatabaseURL    string // Postgres DSN, required for the postgres driver

	StorageBackend    string // local or s3 (default: local)
	StorageDir        string // Root for the local backend (default: ./data/documents)
	S3Bucket          string
	S3Region          string
	S3Endpoint        string // Optional: MinIO or other S3-compatible endpoint
	S3AccessKeyID     string // Optional: falls back to the default AWS credential chain
	S3SecretAccessKey string
	S3UsePathStyle    bool
	S3Prefix          string

	CalendarBaseURL      string // Optional: free/busy API base. Availability is never busy when empty
	CalendarID           string // Falls back to the calendar.id setting
	CalendarTokenURL     string
	CalendarClientID     string // Falls back to the calendar.client_id setting
	CalendarClientSecret string // Falls back to the calendar.client_secret setting
	CalendarTimezone     string // IANA zone for working hours (default: Australia/Sydney)

	MailMode string // smtp or log (default: smtp)

	SettingsCacheSize int           // Settings cache entries (default: 64)
	SettingsCacheTTL  time.Duration // Settings cache lifetime (default: 1m)
	TaskWorkers       int           // Background task workers (default: 2)
	TaskMaxAttempts   int           // Attempts before a task is dead-lettered (default: 5)
}

func defaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("port", 8080)
	v.SetDefault("shutdown_grace_period", "10s")
	v.SetDefault("housekeeping_interval", "1h")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("secure_cookies", true)
	v.SetDefault("cors.allowed_origins", "")

	v.SetDefault("issuer", "ledgerdesk")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("access_token_ttl", "15m")
	v.SetDefault("refresh_token_ttl", "720h")
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("bootstrap_token", "")
	v.SetDefault("pepper_file", "pepper")

	v.SetDefault("document_key", "")
	v.SetDefault("max_upload_bytes", 25<<20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file", "portal.db")
	v.SetDefault("database.url", "")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.dir", "data/documents")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "ap-southeast-2")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.path_style", false)
	v.SetDefault("storage.s3.prefix", "")

	v.SetDefault("calendar.base_url", "")
	v.SetDefault("calendar.id", "")
	v.SetDefault("calendar.token_url", "")
	v.SetDefault("calendar.client_id", "")
	v.SetDefault("calendar.client_secret", "")
	v.SetDefault("calendar.timezone", "Australia/Sydney")

	v.SetDefault("mail.mode", "smtp")

	v.SetDefault("settings.cache_size", 64)
	v.SetDefault("settings.cache_ttl", "1m")
	v.SetDefault("tasks.workers", 2)
	v.SetDefault("tasks.max_attempts", 5)
}

// LoadConfig reads defaults, then the optional YAML file, then PORTAL_*
// environment variables. Nested keys map to env names with dots replaced by
// underscores, so storage.s3.bucket is PORTAL_STORAGE_S3_BUCKET.
func LoadConfig() (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:       v.GetString("env"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
		LogFile:   v.GetString("log.file"),

		Port:                 v.GetInt("port"),
		ShutdownGracePeriod:  durationOrDefault(v, "shutdown_grace_period", 10*time.Second),
		HousekeepingInterval: durationOrDefault(v, "housekeeping_interval", time.Hour),
		TrustProxy:           v.GetBool("trust_proxy"),
		SecureCookies:        v.GetBool("secure_cookies"),
		CORSAllowedOrigins:   stringList(v, "cors.allowed_origins"),

		Issuer:          v.GetString("issuer"),
		JWTSecret:       v.GetString("jwt_secret"),
		AccessTokenTTL:  durationOrDefault(v, "access_token_ttl", 15*time.Minute),
		RefreshTokenTTL: durationOrDefault(v, "refresh_token_ttl", 30*24*time.Hour),
		SessionTTL:      durationOrDefault(v, "session_ttl", 12*time.Hour),
		BootstrapToken:  v.GetString("bootstrap_token"),
		PepperFile:      v.GetString("pepper_file"),

		DocumentKey:    v.GetString("document_key"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),

		DatabaseDriver: strings.ToLower(v.GetString("database.driver")),
		DatabaseFile:   v.GetString("database.file"),
		DatabaseURL:    v.GetString("database.url"),

		StorageBackend:    strings.ToLower(v.GetString("storage.backend")),
		StorageDir:        v.GetString("storage.dir"),
		S3Bucket:          v.GetString("storage.s3.bucket"),
		S3Region:          v.GetString("storage.s3.region"),
		S3Endpoint:        v.GetString("storage.s3.endpoint"),
		S3AccessKeyID:     v.GetString("storage.s3.access_key_id"),
		S3SecretAccessKey: v.GetString("storage.s3.secret_access_key"),
		S3UsePathStyle:    v.GetBool("storage.s3.path_style"),
		S3Prefix:          v.GetString("storage.s3.prefix"),

		CalendarBaseURL:      v.GetString("calendar.base_url"),
		CalendarID:           v.GetString("calendar.id"),
		CalendarTokenURL:     v.GetString("calendar.token_url"),
		CalendarClientID:     v.GetString("calendar.client_id"),
		CalendarClientSecret: v.GetString("calendar.client_secret"),
		CalendarTimezone:     v.GetString("calendar.timezone"),

		MailMode: strings.ToLower(v.GetString("mail.mode")),

		SettingsCacheSize: v.GetInt("settings.cache_size"),
		SettingsCacheTTL:  durationOrDefault(v, "settings.cache_ttl", time.Minute),
		TaskWorkers:       v.GetInt("tasks.workers"),
		TaskMaxAttempts:   v.GetInt("tasks.max_attempts"),
	}

	return cfg, cfg.validate()
}

func readConfigFile(v *viper.Viper) error {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("portal")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (c Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.DatabaseDriver)
	}

	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("config: storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown storage.backend %q", c.StorageBackend)
	}

	if c.MailMode != "smtp" && c.MailMode != "log" {
		return fmt.Errorf("config: unknown mail.mode %q", c.MailMode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}

// durationOrDefault accepts Go duration syntax ("90s", "1h") or a bare
// integer number of minutes.
func durationOrDefault(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if minutes, err := strconv.Atoi(raw); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return def
}

// stringList reads a YAML list or a comma separated env value.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
