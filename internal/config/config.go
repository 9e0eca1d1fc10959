package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"travelmap/internal/pipeline"
)

type Config struct {
	DatabaseURL       string
	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	RouteAPIURL       string
	RouteTimeout      time.Duration
	Level             pipeline.Level
	Priority          pipeline.Priority
	HTTPAddr          string
	MetricsAddr       string
	RefreshInterval   time.Duration
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database: DATABASE_URL, else build from PG* vars, else a local sqlite file
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
	if cfg.DatabaseURL == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		} else {
			cfg.DatabaseURL = "sqlite://travelmap.db"
		}
	}

	// Empty NATS_URL disables timeline publishing and edit subscriptions
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "itinerary")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	cfg.RouteAPIURL = getenvDefault("ROUTE_API_URL", "https://router.project-osrm.org")
	if v := os.Getenv("ROUTE_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid ROUTE_TIMEOUT_MS: %q", v)
		}
		cfg.RouteTimeout = time.Duration(ms) * time.Millisecond
	} else {
		cfg.RouteTimeout = 10 * time.Second
	}

	level, err := pipeline.ParseLevel(os.Getenv("PIPELINE_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_LEVEL: %q", os.Getenv("PIPELINE_LEVEL"))
	}
	cfg.Level = level

	priority, err := pipeline.ParsePriority(os.Getenv("PIPELINE_PRIORITY"))
	if err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_PRIORITY: %q", os.Getenv("PIPELINE_PRIORITY"))
	}
	cfg.Priority = priority

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	// Periodic re-run of every trip (seconds); 0 disables
	if v := os.Getenv("REFRESH_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL_SEC: %q", v)
		}
		cfg.RefreshInterval = time.Duration(sec) * time.Second
	}

	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
