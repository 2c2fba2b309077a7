package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	LogLevel string

	TelegramBotToken string
	WebhookURL       string

	// DefaultEngine is one of gemini, gpt, stub, remote.
	DefaultEngine string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	RemoteURL     string
	// RemoteEngine is the engine the proxy should use; empty means its default.
	RemoteEngine  string
	StubLatency   time.Duration

	// AnalysisTimeout bounds one inference call; it surfaces as a Timeout failure.
	AnalysisTimeout time.Duration
	CacheMaxAge     time.Duration
	MaxImageBytes   int64

	// SpeechModel transcribes voice notes; dictation is disabled without GeminiAPIKey.
	SpeechModel   string
	ListenTimeout time.Duration

	DefaultLanguage string
	RequireProfile  bool

	// DatabaseDSN is empty when no Postgres is configured; history and
	// profiles then live in memory.
	DatabaseDSN string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDurationEnv(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt64Env(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getBoolEnv(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		DefaultEngine: strings.ToLower(getEnv("DIAGNOSIS_ENGINE", "")),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		RemoteURL:     getEnv("DIAGNOSIS_PROXY_URL", ""),
		RemoteEngine:  getEnv("DIAGNOSIS_PROXY_ENGINE", ""),
		StubLatency:   getDurationEnv("STUB_LATENCY", 3*time.Second),

		AnalysisTimeout: getDurationEnv("ANALYSIS_TIMEOUT", 30*time.Second),
		CacheMaxAge:     getDurationEnv("CACHE_MAX_AGE", 30*24*time.Hour),
		MaxImageBytes:   getInt64Env("MAX_IMAGE_BYTES", 5*1024*1024),

		SpeechModel:   getEnv("SPEECH_MODEL", "gemini-2.5-flash"),
		ListenTimeout: getDurationEnv("LISTEN_TIMEOUT", 30*time.Second),

		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),
		RequireProfile:  getBoolEnv("REQUIRE_PROFILE", false),

		DatabaseDSN: resolveDSN(),
	}
	if cfg.DefaultEngine == "" {
		cfg.DefaultEngine = cfg.inferEngine()
	}
	return cfg
}

// inferEngine picks the first engine that has credentials, ending with the offline stub.
func (c *Config) inferEngine() string {
	switch {
	case c.RemoteURL != "":
		return "remote"
	case c.GeminiAPIKey != "":
		return "gemini"
	case c.OpenAIAPIKey != "":
		return "gpt"
	default:
		return "stub"
	}
}

// SpeechEnabled reports whether voice dictation can be offered.
func (c *Config) SpeechEnabled() bool { return c.GeminiAPIKey != "" }

// ValidateBot checks the settings the Telegram binary cannot run without.
func (c *Config) ValidateBot() error {
	var errs []error
	if c.TelegramBotToken == "" {
		errs = append(errs, errors.New("missing required env TELEGRAM_BOT_TOKEN"))
	}
	if c.DefaultEngine == "remote" && c.RemoteURL == "" {
		errs = append(errs, errors.New("DIAGNOSIS_ENGINE=remote needs DIAGNOSIS_PROXY_URL"))
	}
	if c.AnalysisTimeout <= 0 {
		errs = append(errs, errors.New("ANALYSIS_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// resolveDSN prefers DATABASE_URL and otherwise builds a DSN from POSTGRES_* /
// PG* variables when any of them is set.
func resolveDSN() string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	if getEnv("PGHOST", "") == "" && getEnv("POSTGRES_DB", "") == "" && os.Getenv("POSTGRES_PASSWORD") == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "leafdoctor"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(getEnv("PGHOST", "db"), getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "leafdoctor"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary describes a DSN without its password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
