// Package config loads runtime settings from the environment and an optional JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// App environments
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Settings is the complete runtime configuration. Zero values mean "use the default".
type Settings struct {
	AppEnv    string `json:"app_env,omitempty"`
	HTTPPort  int    `json:"http_port,omitempty"`
	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	DatabaseURL string `json:"database_url,omitempty"`
	RedisURL    string `json:"redis_url,omitempty"`

	DataDir        string `json:"data_dir,omitempty"`
	ResumeDir      string `json:"resume_dir,omitempty"`
	CoverLetterDir string `json:"cover_letter_dir,omitempty"`

	DefaultRunMode string   `json:"default_run_mode,omitempty"`
	CORSOrigins    []string `json:"cors_origins,omitempty"`

	Browser   BrowserSettings   `json:"browser"`
	LLM       LLMSettings       `json:"llm"`
	Auth      AuthSettings      `json:"auth"`
	RateLimit RateLimitSettings `json:"rate_limit"`
}

// BrowserSettings configures the browser executor and job fetching
type BrowserSettings struct {
	Enabled              bool     `json:"enabled,omitempty"` // drive a real Chrome instead of the dry-run driver
	Headless             bool     `json:"headless,omitempty"`
	NavTimeoutSeconds    int      `json:"nav_timeout_seconds,omitempty"`
	ActionTimeoutSeconds int      `json:"action_timeout_seconds,omitempty"`
	AdaptersFile         string   `json:"adapters_file,omitempty"`
	AllowedDomains       []string `json:"allowed_domains,omitempty"`
	BlockedDomains       []string `json:"blocked_domains,omitempty"`
}

// LLMSettings configures providers and per-task routing
type LLMSettings struct {
	GeminiAPIKey        string `json:"gemini_api_key,omitempty"`
	LocalEnabled        bool   `json:"local_enabled,omitempty"`
	LocalBaseURL        string `json:"local_base_url,omitempty"`
	LocalAPIKey         string `json:"local_api_key,omitempty"`
	LocalModel          string `json:"local_model,omitempty"`
	LocalTimeoutSeconds int    `json:"local_timeout_seconds,omitempty"`
	ExtractProvider     string `json:"extract_provider,omitempty"`
	WriterProvider      string `json:"writer_provider,omitempty"`
	DBPatchProvider     string `json:"db_patch_provider,omitempty"`
}

// AuthSettings configures operator authentication on the HTTP API
type AuthSettings struct {
	Enabled              bool   `json:"enabled,omitempty"`
	Operator             string `json:"operator,omitempty"`
	OperatorPasswordHash string `json:"operator_password_hash,omitempty"`
	JWTSecret            string `json:"jwt_secret,omitempty"`
	JWTExpirationHours   int    `json:"jwt_expiration_hours,omitempty"`
	BcryptCost           int    `json:"bcrypt_cost,omitempty"`
	PasswordPepper       string `json:"password_pepper,omitempty"`
}

// RateLimitSettings configures the per-client request limiter
type RateLimitSettings struct {
	Enabled bool    `json:"enabled,omitempty"`
	RPS     float64 `json:"rps,omitempty"`
	Burst   int     `json:"burst,omitempty"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		AppEnv:         EnvDevelopment,
		HTTPPort:       8080,
		LogLevel:       "info",
		LogFormat:      "text",
		DataDir:        "./data",
		ResumeDir:      "./data/resumes",
		CoverLetterDir: "./data/cover_letters",
		DefaultRunMode: "medium",
		Browser: BrowserSettings{
			Headless:             true,
			NavTimeoutSeconds:    30,
			ActionTimeoutSeconds: 15,
		},
		LLM: LLMSettings{
			LocalBaseURL:        "http://localhost:11434/v1",
			LocalModel:          "llama3.1",
			LocalTimeoutSeconds: 60,
			ExtractProvider:     "gemini",
			WriterProvider:      "gemini",
			DBPatchProvider:     "local",
		},
		Auth: AuthSettings{
			Operator:           "operator",
			JWTExpirationHours: 24,
			BcryptCost:         12,
		},
		RateLimit: RateLimitSettings{
			RPS:   10,
			Burst: 20,
		},
	}
}

// Load reads settings from the environment, fills gaps from the JSON file at path
// (if non-empty), applies defaults and validates the result.
func Load(path string) (*Settings, error) {
	s := FromEnv()
	if path != "" {
		file, err := LoadSettingsFile(path)
		if err != nil {
			return nil, err
		}
		s = s.MergeWithDefaults(*file)
	}
	s = s.MergeWithDefaults(Defaults())
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// FromEnv reads every setting present in the environment. Unset variables stay zero.
func FromEnv() Settings {
	return Settings{
		AppEnv:         os.Getenv("APP_ENV"),
		HTTPPort:       getEnvInt("HTTP_PORT", 0),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		LogFormat:      os.Getenv("LOG_FORMAT"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		DataDir:        os.Getenv("DATA_DIR"),
		ResumeDir:      os.Getenv("RESUME_DIR"),
		CoverLetterDir: os.Getenv("COVER_LETTER_DIR"),
		DefaultRunMode: os.Getenv("DEFAULT_RUN_MODE"),
		CORSOrigins:    getEnvList("CORS_ORIGINS"),
		Browser: BrowserSettings{
			Enabled:              getEnvBool("BROWSER_ENABLED", false),
			Headless:             getEnvBool("BROWSER_HEADLESS", true),
			NavTimeoutSeconds:    getEnvInt("BROWSER_NAV_TIMEOUT", 0),
			ActionTimeoutSeconds: getEnvInt("BROWSER_ACTION_TIMEOUT", 0),
			AdaptersFile:         os.Getenv("BROWSER_ADAPTERS_FILE"),
			AllowedDomains:       getEnvList("BROWSER_ALLOWED_DOMAINS"),
			BlockedDomains:       getEnvList("BROWSER_BLOCKED_DOMAINS"),
		},
		LLM: LLMSettings{
			GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
			LocalEnabled:        getEnvBool("LOCAL_LLM_ENABLED", false),
			LocalBaseURL:        os.Getenv("LOCAL_LLM_BASE_URL"),
			LocalAPIKey:         os.Getenv("LOCAL_LLM_API_KEY"),
			LocalModel:          os.Getenv("LOCAL_LLM_MODEL"),
			LocalTimeoutSeconds: getEnvInt("LOCAL_LLM_TIMEOUT", 0),
			ExtractProvider:     os.Getenv("LLM_ROUTER_EXTRACT_PROVIDER"),
			WriterProvider:      os.Getenv("LLM_ROUTER_WRITER_PROVIDER"),
			DBPatchProvider:     os.Getenv("LLM_ROUTER_DB_PATCH_PROVIDER"),
		},
		Auth: AuthSettings{
			Enabled:              getEnvBool("AUTH_ENABLED", false),
			Operator:             os.Getenv("OPERATOR_NAME"),
			OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
			JWTSecret:            os.Getenv("JWT_SECRET"),
			JWTExpirationHours:   getEnvInt("JWT_EXPIRATION_HOURS", 0),
			BcryptCost:           getEnvInt("BCRYPT_COST", 0),
			PasswordPepper:       os.Getenv("PASSWORD_PEPPER"),
		},
		RateLimit: RateLimitSettings{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 0),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 0),
		},
	}
}

// LoadSettingsFile loads settings from a JSON file.
func LoadSettingsFile(path string) (*Settings, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &s, nil
}

// Validate checks enumerations and numeric ranges.
func (s *Settings) Validate() error {
	switch s.AppEnv {
	case EnvDevelopment, EnvStaging, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("config error: app_env must be one of development, staging, production, test (got %q)", s.AppEnv)
	}

	switch s.DefaultRunMode {
	case "strict", "medium", "yolo":
	default:
		return fmt.Errorf("config error: default_run_mode must be strict, medium or yolo (got %q)", s.DefaultRunMode)
	}

	if s.HTTPPort < 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("config error: http_port out of range: %d", s.HTTPPort)
	}
	if s.Browser.NavTimeoutSeconds < 0 || s.Browser.ActionTimeoutSeconds < 0 {
		return fmt.Errorf("config error: browser timeouts must be non-negative")
	}
	if s.RateLimit.Enabled && (s.RateLimit.RPS <= 0 || s.RateLimit.Burst < 1) {
		return fmt.Errorf("config error: rate limit requires positive rps and burst")
	}
	if s.Auth.Enabled {
		if s.Auth.JWTSecret == "" {
			return fmt.Errorf("config error: JWT_SECRET is required when auth is enabled")
		}
		if s.Auth.OperatorPasswordHash == "" {
			return fmt.Errorf("config error: OPERATOR_PASSWORD_HASH is required when auth is enabled")
		}
	}
	return nil
}

// MergeWithDefaults returns a copy of s with zero fields filled from defaults.
// Booleans are OR'ed, so a default can switch a feature on but never off.
func (s Settings) MergeWithDefaults(defaults Settings) Settings {
	r := s

	r.AppEnv = firstString(r.AppEnv, defaults.AppEnv)
	r.HTTPPort = firstInt(r.HTTPPort, defaults.HTTPPort)
	r.LogLevel = firstString(r.LogLevel, defaults.LogLevel)
	r.LogFormat = firstString(r.LogFormat, defaults.LogFormat)
	r.DatabaseURL = firstString(r.DatabaseURL, defaults.DatabaseURL)
	r.RedisURL = firstString(r.RedisURL, defaults.RedisURL)
	r.DataDir = firstString(r.DataDir, defaults.DataDir)
	r.ResumeDir = firstString(r.ResumeDir, defaults.ResumeDir)
	r.CoverLetterDir = firstString(r.CoverLetterDir, defaults.CoverLetterDir)
	r.DefaultRunMode = firstString(r.DefaultRunMode, defaults.DefaultRunMode)
	if len(r.CORSOrigins) == 0 {
		r.CORSOrigins = defaults.CORSOrigins
	}

	b, db := &r.Browser, defaults.Browser
	b.Enabled = b.Enabled || db.Enabled
	b.Headless = b.Headless || db.Headless
	b.NavTimeoutSeconds = firstInt(b.NavTimeoutSeconds, db.NavTimeoutSeconds)
	b.ActionTimeoutSeconds = firstInt(b.ActionTimeoutSeconds, db.ActionTimeoutSeconds)
	b.AdaptersFile = firstString(b.AdaptersFile, db.AdaptersFile)
	if len(b.AllowedDomains) == 0 {
		b.AllowedDomains = db.AllowedDomains
	}
	if len(b.BlockedDomains) == 0 {
		b.BlockedDomains = db.BlockedDomains
	}

	l, dl := &r.LLM, defaults.LLM
	l.GeminiAPIKey = firstString(l.GeminiAPIKey, dl.GeminiAPIKey)
	l.LocalEnabled = l.LocalEnabled || dl.LocalEnabled
	l.LocalBaseURL = firstString(l.LocalBaseURL, dl.LocalBaseURL)
	l.LocalAPIKey = firstString(l.LocalAPIKey, dl.LocalAPIKey)
	l.LocalModel = firstString(l.LocalModel, dl.LocalModel)
	l.LocalTimeoutSeconds = firstInt(l.LocalTimeoutSeconds, dl.LocalTimeoutSeconds)
	l.ExtractProvider = firstString(l.ExtractProvider, dl.ExtractProvider)
	l.WriterProvider = firstString(l.WriterProvider, dl.WriterProvider)
	l.DBPatchProvider = firstString(l.DBPatchProvider, dl.DBPatchProvider)

	a, da := &r.Auth, defaults.Auth
	a.Enabled = a.Enabled || da.Enabled
	a.Operator = firstString(a.Operator, da.Operator)
	a.OperatorPasswordHash = firstString(a.OperatorPasswordHash, da.OperatorPasswordHash)
	a.JWTSecret = firstString(a.JWTSecret, da.JWTSecret)
	a.JWTExpirationHours = firstInt(a.JWTExpirationHours, da.JWTExpirationHours)
	a.BcryptCost = firstInt(a.BcryptCost, da.BcryptCost)
	a.PasswordPepper = firstString(a.PasswordPepper, da.PasswordPepper)

	rl, drl := &r.RateLimit, defaults.RateLimit
	rl.Enabled = rl.Enabled || drl.Enabled
	if rl.RPS == 0 {
		rl.RPS = drl.RPS
	}
	rl.Burst = firstInt(rl.Burst, drl.Burst)

	return r
}

// NavTimeout returns the browser navigation timeout.
func (b BrowserSettings) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutSeconds) * time.Second
}

// ActionTimeout returns the per-action browser timeout.
func (b BrowserSettings) ActionTimeout() time.Duration {
	return time.Duration(b.ActionTimeoutSeconds) * time.Second
}

// LocalTimeout returns the local LLM request timeout.
func (l LLMSettings) LocalTimeout() time.Duration {
	return time.Duration(l.LocalTimeoutSeconds) * time.Second
}

func firstString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func firstInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
