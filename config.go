package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/imeyer/leaseqa/pkg/api"
)

type Config struct {
	ListenAddr string
	APIBase    string

	LogDebug          bool
	Logger            *slog.Logger
	ServiceName       string
	ServiceVersion    string
	TraceMaxBatchSize int
	TraceSampleRate   float64
	OTLP              bool

	SessionTTL     time.Duration
	SessionIdle    time.Duration
	RequestTimeout time.Duration
	SecureCookies  bool

	Tailnet  bool
	Hostname string
	DataDir  string
	TsnetLog bool
}

// loadDotEnv reads .env files into the process environment. Variables that
// are already set win. A missing file is not an error.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig parses flags from args, falling back to environment variables
// for anything not given on the command line.
func LoadConfig(args []string) (*Config, error) {
	config := &Config{
		ServiceName:       "leaseqa",
		TraceMaxBatchSize: 512,
	}

	fs := flag.NewFlagSet("leaseqa", flag.ContinueOnError)
	fs.StringVar(&config.ListenAddr, "listen", envOr("LEASEQA_LISTEN", ":8080"), "Address to listen on when not on a tailnet")
	fs.StringVar(&config.APIBase, "api", api.ResolveBase(os.Getenv), "Backend API base URL")
	fs.BoolVar(&config.LogDebug, "debug", envBool("LEASEQA_DEBUG", false), "Enable debug logging")
	fs.BoolVar(&config.OTLP, "otlp", envBool("LEASEQA_OTLP", false), "Export telemetry over OTLP instead of Prometheus")
	fs.Float64Var(&config.TraceSampleRate, "trace-sample-rate", envFloat("LEASEQA_TRACE_SAMPLE_RATE", 1.0), "Fraction of traces to sample")
	fs.DurationVar(&config.SessionTTL, "session-ttl", envDuration("LEASEQA_SESSION_TTL", 5*time.Minute), "How long a session's user is trusted before asking the backend again")
	fs.DurationVar(&config.SessionIdle, "session-idle", envDuration("LEASEQA_SESSION_IDLE", 24*time.Hour), "Evict browser sessions idle for this long")
	fs.DurationVar(&config.RequestTimeout, "request-timeout", envDuration("LEASEQA_REQUEST_TIMEOUT", 15*time.Second), "Timeout for backend calls")
	fs.BoolVar(&config.SecureCookies, "secure-cookies", envBool("LEASEQA_SECURE_COOKIES", false), "Mark the session cookie Secure")
	fs.BoolVar(&config.Tailnet, "tailnet", envBool("LEASEQA_TAILNET", false), "Serve on a Tailscale tailnet via tsnet")
	fs.StringVar(&config.Hostname, "hostname", envOr("TSNET_HOSTNAME", "leaseqa"), "Hostname to use on your tailnet")
	fs.StringVar(&config.DataDir, "data-location", dataLocation(), "Configuration data location")
	fs.BoolVar(&config.TsnetLog, "tsnet-log", false, "Enable tsnet logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api base %q", c.APIBase)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("trace sample rate must be between 0 and 1, got %v", c.TraceSampleRate)
	}
	if !c.Tailnet && c.ListenAddr == "" {
		return errors.New("a listen address is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
