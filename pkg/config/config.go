package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	GinMode    string
	LogLevel   string
	LogFormat  string
	BaseURL    string
	CronSecret string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	TokenEncryptionKey string

	ReminderScanInterval     time.Duration
	ReminderSchedulerEnabled bool

	SyncWindow         time.Duration
	SyncDedupEnabled   bool
	SyncDedupThreshold float64
	SyncDedupTolerance time.Duration

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	FirebaseCredentials string

	PusherAppID   string
	PusherKey     string
	PusherSecret  string
	PusherCluster string

	GoogleProjectID         string
	NotificationPubSubTopic string

	TelegramBotToken string

	AIProvider    string
	GroqAPIKeys   []string
	GroqModel     string
	GeminiAPIKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string

	YouTubeAPIKeys []string

	ChromaAPIKey   string
	ChromaTenant   string
	ChromaDatabase string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:       getEnv("PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "release"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
		BaseURL:    strings.TrimRight(getEnv("NEXT_PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		CronSecret: getEnv("CRON_SECRET", ""),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=codentor port=5432 sslmode=disable"),
		SQLitePath:  getEnv("SQLITE_PATH", "codentor.db"),

		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:  getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: getDuration("JWT_REFRESH_EXPIRY", 168*time.Hour), // 7 days

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/auth/google/callback"),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		ReminderScanInterval:     getDuration("REMINDER_SCAN_INTERVAL", time.Minute),
		ReminderSchedulerEnabled: getBool("REMINDER_SCHEDULER_ENABLED", true),

		SyncWindow:         getDuration("SYNC_WINDOW", 30*24*time.Hour),
		SyncDedupEnabled:   getBool("SYNC_DEDUP_ENABLED", true),
		SyncDedupThreshold: getFloat("SYNC_DEDUP_THRESHOLD", 0.8),
		SyncDedupTolerance: getDuration("SYNC_DEDUP_TOLERANCE", 15*time.Minute),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", getEnv("SMTP_USER", "")),

		VAPIDPublicKey:  getEnv("NEXT_PUBLIC_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@codentor.dev"),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		PusherAppID:   getEnv("PUSHER_APP_ID", ""),
		PusherKey:     getEnv("PUSHER_KEY", ""),
		PusherSecret:  getEnv("PUSHER_SECRET", ""),
		PusherCluster: getEnv("PUSHER_CLUSTER", "ap2"),

		GoogleProjectID:         getEnv("GOOGLE_PROJECT_ID", ""),
		NotificationPubSubTopic: getEnv("NOTIFICATION_PUBSUB_TOPIC", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GroqAPIKeys:   getList("GROQ_API_KEY"),
		GroqModel:     getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", ""),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		YouTubeAPIKeys: getList("NEXT_PUBLIC_YOUTUBE_API_KEY"),

		ChromaAPIKey:   getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:   getEnv("CHROMA_TENANT", ""),
		ChromaDatabase: getEnv("CHROMA_DATABASE", ""),
	}
}

// MissingProviders reports, per external provider, the environment variables
// that still need a value. Providers that are fully configured are omitted.
func (c *Config) MissingProviders() map[string][]string {
	checks := map[string]map[string]string{
		"google_calendar": {
			"GOOGLE_CLIENT_ID":     c.GoogleClientID,
			"GOOGLE_CLIENT_SECRET": c.GoogleClientSecret,
			"GOOGLE_REDIRECT_URI":  c.GoogleRedirectURI,
		},
		"email": {
			"SMTP_HOST": c.SMTPHost,
			"SMTP_USER": c.SMTPUser,
			"SMTP_PASS": c.SMTPPass,
		},
		"web_push": {
			"NEXT_PUBLIC_VAPID_PUBLIC_KEY": c.VAPIDPublicKey,
			"VAPID_PRIVATE_KEY":            c.VAPIDPrivateKey,
		},
		"fcm": {
			"FIREBASE_CREDENTIALS": c.FirebaseCredentials,
		},
		"pusher": {
			"PUSHER_APP_ID": c.PusherAppID,
			"PUSHER_KEY":    c.PusherKey,
			"PUSHER_SECRET": c.PusherSecret,
		},
		"groq": {
			"GROQ_API_KEY": strings.Join(c.GroqAPIKeys, ","),
		},
		"youtube": {
			"NEXT_PUBLIC_YOUTUBE_API_KEY": strings.Join(c.YouTubeAPIKeys, ","),
		},
		"chroma": {
			"CHROMA_API_KEY": c.ChromaAPIKey,
		},
		"telegram": {
			"TELEGRAM_BOT_TOKEN": c.TelegramBotToken,
		},
	}

	missing := make(map[string][]string)
	for provider, vars := range checks {
		for name, value := range vars {
			if value == "" {
				missing[provider] = append(missing[provider], name)
			}
		}
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getList splits a comma-separated variable, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
