// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	DatabaseURL    string
	ServiceToken   string
	ListenAddr     string
	AllowedOrigins []string
	EventTag       string
	LogLevel       string

	SiteContentPath      string
	ScanResumeDelay      time.Duration
	SettingsPollInterval time.Duration
	MetricsInterval      time.Duration

	NATSURL     string
	NATSSubject string

	R2 R2Config
}

// R2Config holds Cloudflare R2 credentials. R2 is optional: when AccountID is
// empty, uploads go to the local uploads directory instead.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough R2 settings are present to build a client.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Default returns the configuration used when no environment overrides exist.
func Default() *Config {
	return &Config{
		ListenAddr:           ":5200",
		AllowedOrigins:       []string{"http://localhost:3000"},
		EventTag:             "CONF2026",
		LogLevel:             "info",
		SiteContentPath:      "content/site.yaml",
		ScanResumeDelay:      2 * time.Second,
		SettingsPollInterval: 15 * time.Second,
		MetricsInterval:      time.Minute,
		NATSSubject:          "conference.events",
	}
}

// Load reads .env (if present) and the process environment on top of Default.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	foundEnv := godotenv.Load() == nil

	cfg := Default()
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ServiceToken = os.Getenv("SERVICE_TOKEN")
	cfg.NATSURL = os.Getenv("NATS_URL")

	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.EventTag, "EVENT_TAG")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.SiteContentPath, "SITE_CONTENT_PATH")
	setString(&cfg.NATSSubject, "NATS_SUBJECT")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	for key, dst := range map[string]*time.Duration{
		"SCAN_RESUME_DELAY":      &cfg.ScanResumeDelay,
		"SETTINGS_POLL_INTERVAL": &cfg.SettingsPollInterval,
		"METRICS_INTERVAL":       &cfg.MetricsInterval,
	} {
		if err := setDuration(dst, key); err != nil {
			return nil, foundEnv, err
		}
	}

	cfg.R2 = R2Config{
		AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		Bucket:          os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
	}

	return cfg, foundEnv, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	if c.EventTag == "" {
		return errors.New("EVENT_TAG must not be empty")
	}
	if strings.Contains(c.EventTag, "|") {
		return errors.New("EVENT_TAG must not contain '|'")
	}
	if c.ScanResumeDelay <= 0 {
		return fmt.Errorf("SCAN_RESUME_DELAY must be positive, got %s", c.ScanResumeDelay)
	}
	if c.SettingsPollInterval <= 0 {
		return fmt.Errorf("SETTINGS_POLL_INTERVAL must be positive, got %s", c.SettingsPollInterval)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ServiceToken == "" {
		return errors.New("SERVICE_TOKEN is not set, service cannot authenticate the gateway")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
