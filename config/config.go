package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StoreDriver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string
	DBConnectRetries int

	GeminiAPIKey        string
	GeminiModel         string
	AssistTimeout       time.Duration
	AssistMinConfidence int
	AssistSampleRows    int

	UpsertBatchSize  int
	IgnoreDuplicates bool

	LogLevel  string
	LogFormat string

	HTTPAddr             string
	MaxConcurrentUploads int
	MaxUploadBytes       int64
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "dealflow"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "dealflow"),
		PostgresDB:       getEnv("POSTGRES_DB", "dealflow"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/dealflow.sqlite"),
		DBConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AssistTimeout:       getEnvDuration("ASSIST_TIMEOUT", 20*time.Second),
		AssistMinConfidence: getEnvInt("ASSIST_MIN_CONFIDENCE", 0),
		AssistSampleRows:    getEnvInt("ASSIST_SAMPLE_ROWS", 5),

		UpsertBatchSize:  getEnvInt("UPSERT_BATCH_SIZE", 200),
		IgnoreDuplicates: getEnvBool("IGNORE_DUPLICATES", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		MaxConcurrentUploads: getEnvInt("MAX_CONCURRENT_UPLOADS", 4),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// AssistEnabled reports whether the Gemini resolver has credentials.
func (c *Config) AssistEnabled() bool {
	return c.GeminiAPIKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
