package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures every tunable for the gateway process. Values come
// from environment variables with defaults that let the binary run
// against a local backend without setup.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BackendBaseURL is the pickup/bins backend root; RouteBaseURL
	// defaults to it and exists because deployments sometimes front
	// the optimizer separately.
	BackendBaseURL string
	RouteBaseURL   string

	// Nominatim-compatible geocoder.
	GeocoderBaseURL string
	SearchLimit     int
	MinQueryLen     int

	// Firebase Auth REST (identity provider).
	FirebaseAPIKey string

	// Optional Redis for the geocode cache; in-memory when empty.
	RedisAddr       string
	RedisPassword   string
	GeocodeCacheTTL time.Duration

	// Optional webhook receiving review decisions; disabled when empty.
	NotifyWebhookURL string

	AllowedOrigins []string

	LogLevel string
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		BackendBaseURL:  "http://127.0.0.1:8000",
		GeocoderBaseURL: "https://nominatim.openstreetmap.org",
		SearchLimit:     5,
		MinQueryLen:     3,
		GeocodeCacheTTL: 10 * time.Minute,
		AllowedOrigins:  []string{"*"},
		LogLevel:        "info",
	}
}

func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.BackendBaseURL, "BACKEND_BASE_URL")
	setStringFromEnv(&cfg.RouteBaseURL, "ROUTE_BASE_URL")
	if cfg.RouteBaseURL == "" {
		cfg.RouteBaseURL = cfg.BackendBaseURL
	}

	setStringFromEnv(&cfg.GeocoderBaseURL, "GEOCODER_BASE_URL")
	setIntFromEnv(&cfg.SearchLimit, "GEOCODER_SEARCH_LIMIT", &errs)
	setIntFromEnv(&cfg.MinQueryLen, "GEOCODER_MIN_QUERY_LEN", &errs)

	cfg.FirebaseAPIKey = strings.TrimSpace(os.Getenv("FIREBASE_API_KEY"))

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.GeocodeCacheTTL, "GEOCODE_CACHE_TTL", &errs)

	cfg.NotifyWebhookURL = strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL"))

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.SearchLimit <= 0 {
		errs = append(errs, fmt.Errorf("GEOCODER_SEARCH_LIMIT must be > 0"))
	}
	if cfg.MinQueryLen <= 0 {
		errs = append(errs, fmt.Errorf("GEOCODER_MIN_QUERY_LEN must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
