package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"findoc-gateway/internal/shared/telemetry"
)

const (
	DurableObject   = "object"
	DurablePostgres = "postgres"
	DurableMemory   = "memory"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	Port               string
	Env                string
	CORSAllowOrigin    []string
	AnalysisAPIURL     string
	AnalysisAPITimeout time.Duration
	MaxUploadBytes     int64

	DurableStore    string
	DatabaseURL     string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	S3Endpoint      string

	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	NewsCacheTTL  time.Duration

	KPISpecFile string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	durable := normalizeDurable(getEnv("DURABLE_STORE", DurableObject))
	dbURL := os.Getenv("DATABASE_URL")

	if durable == DurablePostgres && dbURL == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL", "durable_store": durable})
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		Env:                env,
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		AnalysisAPIURL:     getEnv("ANALYSIS_API_URL", "http://127.0.0.1:8000"),
		AnalysisAPITimeout: getDuration("ANALYSIS_API_TIMEOUT", 120*time.Second),
		MaxUploadBytes:     getInt64("MAX_UPLOAD_BYTES", 50<<20),
		DurableStore:       durable,
		DatabaseURL:        dbURL,
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		SessionStore:       normalizeSession(getEnv("SESSION_STORE", SessionMemory)),
		RedisAddr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            int(getInt64("REDIS_DB", 0)),
		SessionTTL:         getDuration("SESSION_TTL", 12*time.Hour),
		NewsCacheTTL:       getDuration("NEWS_CACHE_TTL", 0),
		KPISpecFile:        strings.TrimSpace(os.Getenv("KPI_SPEC_FILE")),
	}
}

// loadEnvFiles loads the given dotenv files if present. Variables already
// set in the environment win.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			telemetry.Warn("config.dotenv_failed", map[string]any{"path": path, "error": err})
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return v
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeDurable(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return DurablePostgres
	case "memory":
		return DurableMemory
	default:
		return DurableObject
	}
}

func normalizeSession(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return SessionRedis
	default:
		return SessionMemory
	}
}
