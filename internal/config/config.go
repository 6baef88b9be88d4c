package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config is the server configuration read from the environment
type Config struct {
	Port         int
	DBPath       string
	AllowOrigins []string
	LogLevel     string
	LogConsole   bool

	Storage StorageConfig

	JWTSecret string
	JWTTTL    time.Duration

	RateLimit RateLimitConfig

	SweepInterval time.Duration
	SweepGrace    time.Duration
}

type StorageConfig struct {
	Backend   string
	UploadDir string

	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// RateLimitConfig is a per-client token bucket
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load reads .env when present, then the process environment, applying defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := parseIntEnv("PORT", 5000)
	if err != nil || port <= 0 || port > 65535 {
		return nil, errors.New("PORT must be a valid port number")
	}
	cfg.Port = port

	cfg.DBPath = getEnv("SQLITE_DB_PATH", "./storefront.db")
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.LogConsole = strings.EqualFold(getEnv("LOG_FORMAT", ""), "console")

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.Storage = StorageConfig{
		Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", BackendLocal)),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Prefix:    getEnv("S3_PREFIX", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
	}
	if cfg.Storage.S3UsePathStyle, err = parseBoolEnv("S3_USE_PATH_STYLE", true); err != nil {
		return nil, err
	}
	switch cfg.Storage.Backend {
	case BackendLocal:
	case BackendS3:
		if cfg.Storage.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q", BackendLocal, BackendS3)
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	rps, err := parseFloatEnv("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, err
	}
	burst, err := parseIntEnv("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = RateLimitConfig{RequestsPerSecond: rps, Burst: burst}

	if cfg.SweepInterval, err = parseDurationEnv("SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepGrace, err = parseDurationEnv("SWEEP_GRACE", 15*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %w", key, err)
	}
	return dur, nil
}

func parseIntEnv(key string, def int) (int, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %w", key, err)
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid number: %w", key, err)
	}
	return f, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s is not a valid boolean: %w", key, err)
	}
	return b, nil
}
