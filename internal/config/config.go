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
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TLSCert        string        `yaml:"tls_cert"`
	TLSKey         string        `yaml:"tls_key"`
	BankPath       string        `yaml:"bank_path"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	AttemptTTL     time.Duration `yaml:"attempt_ttl"`
	RateLimit      int           `yaml:"rate_limit"`  // requests per minute per client, 0 disables
	TrustProxy     bool          `yaml:"trust_proxy"` // take the client address from X-Forwarded-For/X-Real-IP
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	LogMode        string        `yaml:"log_mode"`
}

func Defaults() Config {
	return Config{
		Port:           "8080",
		AllowedOrigins: []string{"http://localhost:5173", "https://localhost:5173"},
		BankPath:       "data/questions.json",
		SessionTTL:     2 * time.Hour,
		SweepInterval:  5 * time.Minute,
		AttemptTTL:     24 * time.Hour,
		RateLimit:      60,
		MaxUploadBytes: 5 << 20,
		FetchTimeout:   8 * time.Second,
		LogMode:        "dev",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE, then environment variables. A .env file in the working
// directory is loaded first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.mergeEnv()
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	c.Port = envOr("PORT", c.Port)
	c.AllowedOrigins = csvOr("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.TLSCert = envOr("TLS_CERT", c.TLSCert)
	c.TLSKey = envOr("TLS_KEY", c.TLSKey)
	c.BankPath = envOr("BANK_PATH", c.BankPath)
	c.SessionTTL = durationOr("SESSION_TTL", c.SessionTTL)
	c.SweepInterval = durationOr("SWEEP_INTERVAL", c.SweepInterval)
	c.AttemptTTL = durationOr("ATTEMPT_TTL", c.AttemptTTL)
	c.RateLimit = intOr("RATE_LIMIT", c.RateLimit)
	c.TrustProxy = boolOr("TRUST_PROXY", c.TrustProxy)
	c.MaxUploadBytes = int64(intOr("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.FetchTimeout = durationOr("FETCH_TIMEOUT", c.FetchTimeout)
	c.LogMode = envOr("LOG_MODE", c.LogMode)
}

func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: port is required")
	case c.SessionTTL <= 0:
		return errors.New("config: session_ttl must be positive")
	case c.SweepInterval <= 0:
		return errors.New("config: sweep_interval must be positive")
	case c.RateLimit < 0:
		return errors.New("config: rate_limit must not be negative")
	case (c.TLSCert == "") != (c.TLSKey == ""):
		return errors.New("config: tls_cert and tls_key must be set together")
	}
	return nil
}

// TLS reports whether the server should listen with HTTPS.
func (c Config) TLS() bool { return c.TLSCert != "" && c.TLSKey != "" }

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func csvOr(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intOr(k string, def int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil {
		return i
	}
	return def
}

func boolOr(k string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k))); err == nil {
		return b
	}
	return def
}

func durationOr(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k))); err == nil {
		return d
	}
	return def
}
