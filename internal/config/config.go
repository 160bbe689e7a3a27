package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	LogLevel  string
	API       APIConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Tracing   TracingConfig
}

type APIConfig struct {
	Addr              string
	MaxUploadBytes    int64
	MaxActiveRequests int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

type EngineConfig struct {
	Background      string
	JPEGQuality     int
	VipsCacheMB     int
	MaxOutputPixels int
}

type RateLimitConfig struct {
	Enabled       bool
	Capacity      int
	Window        time.Duration
	SubjectHeader string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TracingConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

// Load reads the process environment. Values from .env.local and then .env
// fill in anything not already set; missing files are skipped.
func Load() Config {
	_ = loadDotenv(".env.local", ".env")

	return Config{
		Env:      env("APP_ENV", "production"),
		LogLevel: env("LOG_LEVEL", "info"),
		API: APIConfig{
			Addr:              env("IMAGES_API_ADDR", ":8080"),
			MaxUploadBytes:    envInt64("IMAGES_MAX_UPLOAD_BYTES", 32<<20),
			MaxActiveRequests: envInt("IMAGES_MAX_ACTIVE_REQUESTS", max(1, runtime.NumCPU())),
			ReadTimeout:       envDuration("IMAGES_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      envDuration("IMAGES_WRITE_TIMEOUT", 60*time.Second),
		},
		Engine: EngineConfig{
			Background:      env("IMAGES_BACKGROUND", "#000000"),
			JPEGQuality:     envInt("IMAGES_JPEG_QUALITY", 80),
			VipsCacheMB:     envInt("IMAGES_VIPS_CACHE_MB", 128),
			MaxOutputPixels: envInt("IMAGES_MAX_OUTPUT_PIXELS", 64_000_000),
		},
		RateLimit: RateLimitConfig{
			Enabled:       envBool("RATE_LIMIT_ENABLED", false),
			Capacity:      envInt("RATE_LIMIT_CAPACITY", 120),
			Window:        envDuration("RATE_LIMIT_WINDOW", time.Minute),
			SubjectHeader: env("RATE_LIMIT_SUBJECT_HEADER", "X-Client-ID"),
		},
		Redis: RedisConfig{
			Addr:     env("REDIS_ADDR", "localhost:6379"),
			Password: env("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		Tracing: TracingConfig{
			ServiceName:  env("OTEL_SERVICE_NAME", "image-binding"),
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
}

// loadDotenv loads each file on its own so a missing one does not stop the
// rest. godotenv never overrides variables that are already set, so earlier
// files take precedence.
func loadDotenv(files ...string) error {
	var errs []error
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("load %s: %w", file, err))
		}
	}
	return errors.Join(errs...)
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
