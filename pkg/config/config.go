// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Authentication
	APIPassword string

	// Proxy settings
	GlobalProxies   []string
	TransportRoutes []TransportRoute
	UTLSDomains     []string

	// Origin site
	SiteURL             string
	DefaultPlayerDomain string
	PlayerScheme        string
	UserAgent           string

	// Resolution chain
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
	MaxCandidates    int
	BootstrapRetries int
	PlaylistWorkers  int
	PlaylistRPS      int
	PreviewBytes     int // capped by failure.MaxPreviewBytes

	// Challenge solver (FlareSolverr); empty URL disables it
	FlareSolverrURL     string
	FlareSolverrTimeout time.Duration

	// Logging
	LogLevel string
	LogJSON  bool
}

// TransportRoute defines URL-specific proxy routing.
type TransportRoute struct {
	URLPattern string
	Proxy      string
	DisableSSL bool
	Direct     bool // If true, bypass global proxy and connect directly
}

const (
	DefaultSiteURL      = "https://allmovieland.ac"
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultPlayerScheme = "https"
)

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honoured if present; real
// environment variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnvInt("PORT", 5000)
	cfg := &Config{
		Port:                port,
		BaseURL:             getEnvString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		ReadTimeout:         getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        getEnvDuration("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:         getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		APIPassword:         os.Getenv("API_PASSWORD"),
		GlobalProxies:       getEnvStringSlice("GLOBAL_PROXIES", nil),
		UTLSDomains:         getEnvStringSlice("UTLS_DOMAINS", nil),
		SiteURL:             strings.TrimSuffix(getEnvString("SITE_URL", DefaultSiteURL), "/"),
		DefaultPlayerDomain: getEnvString("DEFAULT_PLAYER_DOMAIN", ""),
		PlayerScheme:        getEnvString("PLAYER_SCHEME", DefaultPlayerScheme),
		UserAgent:           getEnvString("USER_AGENT", DefaultUserAgent),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 8<<20)),
		MaxCandidates:       getEnvInt("MAX_CANDIDATES", 3),
		BootstrapRetries:    getEnvInt("BOOTSTRAP_RETRIES", 1),
		PlaylistWorkers:     getEnvInt("PLAYLIST_WORKERS", 4),
		PlaylistRPS:         getEnvInt("PLAYLIST_RPS", 10),
		PreviewBytes:        getEnvInt("PREVIEW_BYTES", 200),
		FlareSolverrURL:     strings.TrimSuffix(os.Getenv("FLARESOLVERR_URL"), "/"),
		FlareSolverrTimeout: getEnvDuration("FLARESOLVERR_TIMEOUT", 60*time.Second),
		LogLevel:            getEnvString("LOG_LEVEL", "info"),
		LogJSON:             getEnvBool("LOG_JSON", false),
	}

	cfg.TransportRoutes = parseTransportRoutes(os.Getenv("TRANSPORT_ROUTES"))

	// Legacy single proxy support
	if globalProxy := os.Getenv("GLOBAL_PROXY"); globalProxy != "" && len(cfg.GlobalProxies) == 0 {
		cfg.GlobalProxies = []string{globalProxy}
	}

	return cfg.WithDefaults()
}

// WithDefaults fills zero values so hand-built configs (tests, CLI) behave
// like loaded ones.
func (c *Config) WithDefaults() *Config {
	if c.SiteURL == "" {
		c.SiteURL = DefaultSiteURL
	}
	if c.PlayerScheme == "" {
		c.PlayerScheme = DefaultPlayerScheme
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 8 << 20
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 3
	}
	if c.BootstrapRetries < 0 {
		c.BootstrapRetries = 0
	}
	if c.PlaylistWorkers <= 0 {
		c.PlaylistWorkers = 4
	}
	if c.PreviewBytes <= 0 {
		c.PreviewBytes = 200
	}
	if c.FlareSolverrTimeout <= 0 {
		c.FlareSolverrTimeout = 60 * time.Second
	}
	if c.DefaultPlayerDomain == "" {
		c.DefaultPlayerDomain = hostOf(c.SiteURL)
	}
	return c
}

// SiteRoot returns the site URL with a trailing slash, as used for Referer.
func (c *Config) SiteRoot() string {
	return strings.TrimSuffix(c.SiteURL, "/") + "/"
}

func hostOf(u string) string {
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	if i := strings.IndexByte(u, '/'); i >= 0 {
		u = u[:i]
	}
	return u
}

// parseTransportRoutes parses the TRANSPORT_ROUTES env var.
// Format: {URL=pattern, PROXY=url, DISABLE_SSL=true}, {URL=pattern2}
func parseTransportRoutes(s string) []TransportRoute {
	if s == "" {
		return nil
	}

	var routes []TransportRoute
	s = strings.TrimSpace(s)

	parts := strings.Split(s, "}, {")
	for _, part := range parts {
		part = strings.Trim(part, "{} ")
		if part == "" {
			continue
		}

		route := TransportRoute{}
		for _, field := range strings.Split(part, ", ") {
			kv := strings.SplitN(field, "=", 2)
			if len(kv) != 2 {
				continue
			}
			value := strings.TrimSpace(kv[1])

			switch strings.ToUpper(strings.TrimSpace(kv[0])) {
			case "URL":
				route.URLPattern = value
			case "PROXY":
				route.Proxy = value
			case "DISABLE_SSL":
				route.DisableSSL = strings.ToLower(value) == "true"
			case "DIRECT":
				route.Direct = strings.ToLower(value) == "true"
			}
		}
		if route.URLPattern != "" {
			routes = append(routes, route)
		}
	}

	return routes
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Plain integers are seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultVal
}
