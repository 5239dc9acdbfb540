package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinRefreshInterval is the smallest refresh interval the backend tolerates.
const MinRefreshInterval = 30 * time.Second

type Config struct {
	RefreshInterval  time.Duration
	RequestTimeout   time.Duration
	StaleDataTimeout time.Duration

	RouterBaseURL     string
	RouterAccessToken string
	RouterRatePerMin  int

	DatabaseURL string
	NATSURL     string
	SessionID   string
	MetricsAddr string

	LogLevel string
	LogFile  string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	if cfg.RefreshInterval, err = durationMS("REFRESH_INTERVAL_MS", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval < MinRefreshInterval {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL_MS: must be at least %d", MinRefreshInterval.Milliseconds())
	}
	if cfg.RequestTimeout, err = durationMS("REFRESH_REQUEST_TIMEOUT_MS", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StaleDataTimeout, err = durationMS("STALE_DATA_TIMEOUT_MS", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.RouterBaseURL = getenvDefault("ROUTER_BASE_URL", "https://api.mapbox.com")
	cfg.RouterAccessToken = os.Getenv("ROUTER_ACCESS_TOKEN")
	if v := os.Getenv("ROUTER_RATE_LIMIT_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid ROUTER_RATE_LIMIT_PER_MIN: %q", v)
		}
		cfg.RouterRatePerMin = n
	} else {
		cfg.RouterRatePerMin = 60
	}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// Empty disables persistence.
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
		}
	}

	// DB_NAME points the refresher at its own database on a shared cluster.
	if name := strings.TrimSpace(os.Getenv("DB_NAME")); name != "" && cfg.DatabaseURL != "" {
		if cfg.DatabaseURL, err = withDatabase(cfg.DatabaseURL, name); err != nil {
			return nil, fmt.Errorf("invalid DB_NAME: %w", err)
		}
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.SessionID = getenvDefault("SESSION_ID", "default")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFile = getenvDefault("LOG_FILE", "route-refresh.log")

	return cfg, nil
}

func durationMS(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// withDatabase replaces the database of a postgres URL, keeping credentials
// and query parameters. A DSN without scheme is read as postgres://.
func withDatabase(dsn, database string) (string, error) {
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if strings.ContainsAny(database, "/?#") {
		return "", fmt.Errorf("database name %q contains URL separators", database)
	}
	u.Path = "/" + database
	u.RawPath = ""
	return u.String(), nil
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
