package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool

	BackendURL         string
	BackendCredentials string

	CacheDir        string
	JobsDir         string
	OutputDir       string
	CacheTTL        time.Duration
	CacheMemEntries int

	MaxDays    int
	MaxAreaKm2 float64

	JobWorkers   int
	JobQueue     int
	JobRetention time.Duration

	// Declared limit; not enforced anywhere yet.
	RateLimitPerMin int

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	return Config{
		Addr:       getenv("ADDR", ":8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),

		BackendURL:         getenv("BACKEND_URL", "http://localhost:9000"),
		BackendCredentials: os.Getenv("BACKEND_CREDENTIALS_JSON"),

		CacheDir:        getenv("CACHE_DIR", "/var/lib/datahub/cache"),
		JobsDir:         getenv("JOBS_DIR", "/var/lib/datahub/jobs"),
		OutputDir:       getenv("OUTPUT_DIR", "/var/lib/datahub/outputs"),
		CacheTTL:        getduration("CACHE_TTL", 24*time.Hour),
		CacheMemEntries: getint("CACHE_MEM_ENTRIES", 256),

		MaxDays:    getint("MAX_DAYS", 5000),
		MaxAreaKm2: getfloat("MAX_AREA_KM2", 0),

		JobWorkers:   getint("JOB_WORKERS", 4),
		JobQueue:     getint("JOB_QUEUE", 64),
		JobRetention: getduration("JOB_RETENTION", 7*24*time.Hour),

		RateLimitPerMin: getint("RATE_LIMIT_PER_MIN", 60),

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
