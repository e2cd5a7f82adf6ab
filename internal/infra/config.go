package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StorageProvider enumerates the supported artifact store backends. The
// variant is chosen once at startup and validated here, so nothing
// downstream ever switches on raw strings.
type StorageProvider string

const (
	StorageFilesystem StorageProvider = "filesystem"
	StorageSupabase   StorageProvider = "supabase"
	StorageDatabase   StorageProvider = "database"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Text and speech generation (Gemini over HTTP).
	GeminiAPIKey       string
	GeminiBaseURL      string
	GeminiTextModel    string
	GeminiTextFallback string
	GeminiTTSModel     string
	GeminiTTSVoice     string
	AIMaxAttempts      int
	AIBaseRetryDelay   time.Duration

	// Artifact store.
	StorageProvider StorageProvider
	StoragePath     string
	StorageBaseURL  string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseBucket  string

	// Admin alerting (SendGrid).
	SendgridAPIKey    string
	SendgridFromEmail string
	AdminEmail        string
	SendSuccessEmails bool

	GeoIPDBPath       string
	DefaultLocale     string
	MonthlyStoryQuota int
	RateLimitPerMin   int
	AllowedOrigins    []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables, reading an
// optional .env first, and applies defaults where a value is not required.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTextModel:    getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiTextFallback: getEnv("GEMINI_TEXT_FALLBACK_MODEL", "gemini-2.5-pro"),
		GeminiTTSModel:     getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:     getEnv("GEMINI_TTS_VOICE", "Achernar"),
		AIMaxAttempts:      getEnvInt("AI_MAX_ATTEMPTS", 3),
		AIBaseRetryDelay:   time.Second * time.Duration(getEnvInt("AI_RETRY_BASE_DELAY_SECONDS", 2)),

		StorageProvider: StorageProvider(strings.ToLower(getEnv("STORAGE_PROVIDER", string(StorageFilesystem)))),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseKey:     os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:  getEnv("SUPABASE_AUDIO_BUCKET", "story-audio"),

		SendgridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SendgridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "alerts@localhost"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		SendSuccessEmails: getEnvBool("SEND_SUCCESS_EMAILS", false),

		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:     getEnv("DEFAULT_LOCALE", "pl"),
		MonthlyStoryQuota: getEnvInt("MONTHLY_STORY_QUOTA", 30),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.AIMaxAttempts < 1 {
		return nil, fmt.Errorf("AI_MAX_ATTEMPTS must be at least 1")
	}

	switch cfg.StorageProvider {
	case StorageFilesystem, StorageDatabase:
	case StorageSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase storage provider")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_PROVIDER %q (supported: filesystem, supabase, database)", cfg.StorageProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
