package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string

	// SigningSecret is the shared HMAC secret used to sign and verify
	// terminal credentials.
	SigningSecret string

	// Shell is the command spawned for each terminal session. Empty means
	// the host picks $SHELL.
	Shell string

	// ResumeWindow is how long a detached session waits for the client to
	// come back before it is reaped.
	ResumeWindow time.Duration

	// RateLimit / RateWindow bound connection attempts per API key.
	RateLimit  int
	RateWindow time.Duration

	// LogLevel is a pkg/logger level name.
	LogLevel string

	AllowedOrigins []string
}

// Overrides optionally overrides values from environment variables.
//
// A nil pointer means "use the environment/default value".
type Overrides struct {
	Addr          *string
	SigningSecret *string
	Shell         *string
}

// Load loads server configuration from environment variables and applies any
// explicit overrides.
func Load(overrides Overrides) (*Config, error) {
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	addr := fmt.Sprintf(":%d", port)
	if overrides.Addr != nil {
		addr = *overrides.Addr
	}

	secret := os.Getenv("WEBCLI_SIGNING_SECRET")
	if overrides.SigningSecret != nil {
		secret = *overrides.SigningSecret
	}
	if secret == "" {
		return nil, fmt.Errorf("WEBCLI_SIGNING_SECRET environment variable is required")
	}

	shell := os.Getenv("WEBCLI_SHELL")
	if overrides.Shell != nil {
		shell = *overrides.Shell
	}

	resumeWindow := 5 * time.Minute
	if raw := os.Getenv("WEBCLI_RESUME_WINDOW"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("WEBCLI_RESUME_WINDOW: %w", err)
		}
		resumeWindow = d
	}

	rateLimit := 0
	if raw := os.Getenv("WEBCLI_RATE_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("WEBCLI_RATE_LIMIT: %w", err)
		}
		rateLimit = n
	}
	rateWindow := time.Duration(0)
	if raw := os.Getenv("WEBCLI_RATE_WINDOW"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("WEBCLI_RATE_WINDOW: %w", err)
		}
		rateWindow = d
	}

	logLevel := os.Getenv("WEBCLI_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		Addr:           addr,
		SigningSecret:  secret,
		Shell:          shell,
		ResumeWindow:   resumeWindow,
		RateLimit:      rateLimit,
		RateWindow:     rateWindow,
		LogLevel:       logLevel,
		AllowedOrigins: []string{"*"}, // Self-hosted embedding needs open CORS.
	}, nil
}
