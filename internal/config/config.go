package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/srt-reserver/internal/domain/reservation"
	"github.com/example/srt-reserver/internal/poller"
)

type Config struct {
	ListenAddr     string
	DatabaseURL    string
	RedisURL       string
	CookieHashKey  []byte
	CookieBlockKey []byte

	// booking site
	SRTID          string
	SRTPassword    string
	SRTBaseURL     string
	HTTPTimeout    time.Duration
	RequestsPerSec float64

	// polling
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
	MaxListingMisses int
	MaxRounds        int
	PollTimeout      time.Duration

	SlackWebhookURL string
	NotifyFailures  bool

	LogLevel  string
	LogFormat string

	hashKeyRaw  string
	blockKeyRaw string
}

// FromEnv reads the process environment. Cookie keys are decoded lazily by
// RequireServer so CLI-only commands work without them.
func FromEnv() (Config, error) {
	return FromLookup(os.Getenv)
}

// FromLookup is FromEnv over an arbitrary lookup function.
func FromLookup(lookup func(string) string) (Config, error) {
	get := func(k, def string) string {
		v := strings.TrimSpace(lookup(k))
		if v == "" {
			return def
		}
		return v
	}

	cfg := Config{
		ListenAddr:      get("LISTEN_ADDR", ":8080"),
		DatabaseURL:     get("DATABASE_URL", ""),
		RedisURL:        get("REDIS_URL", ""),
		SRTID:           get("SRT_ID", ""),
		SRTPassword:     lookup("SRT_PW"),
		SRTBaseURL:      strings.TrimRight(get("SRT_BASE_URL", "https://etk.srail.kr"), "/"),
		SlackWebhookURL: get("SLACK_WEBHOOK_URL", ""),
		LogLevel:        get("LOG_LEVEL", "info"),
		LogFormat:       get("LOG_FORMAT", "text"),
		hashKeyRaw:      get("COOKIE_HASH_KEY", ""),
		blockKeyRaw:     get("COOKIE_BLOCK_KEY", ""),
	}

	var err error
	if cfg.HTTPTimeout, err = seconds(get("SRT_HTTP_TIMEOUT_SECONDS", "10"), "SRT_HTTP_TIMEOUT_SECONDS", 1); err != nil {
		return Config{}, err
	}
	rps, err := strconv.ParseFloat(get("SRT_REQUESTS_PER_SECOND", "2"), 64)
	if err != nil || rps <= 0 {
		return Config{}, fmt.Errorf("invalid SRT_REQUESTS_PER_SECOND")
	}
	cfg.RequestsPerSec = rps

	if cfg.MinBackoff, err = seconds(get("POLL_BACKOFF_MIN_SECONDS", "2"), "POLL_BACKOFF_MIN_SECONDS", 0); err != nil {
		return Config{}, err
	}
	if cfg.MaxBackoff, err = seconds(get("POLL_BACKOFF_MAX_SECONDS", "4"), "POLL_BACKOFF_MAX_SECONDS", 0); err != nil {
		return Config{}, err
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		return Config{}, fmt.Errorf("POLL_BACKOFF_MAX_SECONDS must not be below POLL_BACKOFF_MIN_SECONDS")
	}
	if cfg.MaxListingMisses, err = integer(get("POLL_MAX_LISTING_MISSES", "5"), "POLL_MAX_LISTING_MISSES", 1); err != nil {
		return Config{}, err
	}
	if cfg.MaxRounds, err = integer(get("POLL_MAX_ROUNDS", "0"), "POLL_MAX_ROUNDS", 0); err != nil {
		return Config{}, err
	}
	if v := get("POLL_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid POLL_TIMEOUT %q", v)
		}
		cfg.PollTimeout = d
	}

	switch get("NOTIFY_FAILURES", "0") {
	case "1", "true", "yes":
		cfg.NotifyFailures = true
	case "0", "false", "no":
	default:
		return Config{}, fmt.Errorf("invalid NOTIFY_FAILURES")
	}

	return cfg, nil
}

// PollPolicy is the poller policy described by the POLL_* settings.
func (c Config) PollPolicy() poller.Policy {
	return poller.Policy{
		MinBackoff:       c.MinBackoff,
		MaxBackoff:       c.MaxBackoff,
		MaxListingMisses: c.MaxListingMisses,
		MaxRounds:        c.MaxRounds,
		Timeout:          c.PollTimeout,
	}
}

// StaleRunAfter is how long a pending run may go without a heartbeat before
// it is taken for dead. A round is at most one backoff plus four site requests
// (fetch, attempt, follow, resubmit); three such rounds are allowed, and never
// less than a minute.
func (c Config) StaleRunAfter() time.Duration {
	d := 3 * (c.MaxBackoff + 4*c.HTTPTimeout)
	if d < time.Minute {
		return time.Minute
	}
	return d
}

func (c Config) Credentials() reservation.Credentials {
	return reservation.Credentials{ID: c.SRTID, Password: c.SRTPassword}
}

// RequireServer checks and decodes the settings only the web server needs.
func (c *Config) RequireServer() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.hashKeyRaw == "" || c.blockKeyRaw == "" {
		return fmt.Errorf("COOKIE_HASH_KEY and COOKIE_BLOCK_KEY are required (32 and 16/24/32 bytes base64)")
	}
	var err error
	if c.CookieHashKey, err = decodeB64(c.hashKeyRaw); err != nil {
		return fmt.Errorf("COOKIE_HASH_KEY: %w", err)
	}
	if c.CookieBlockKey, err = decodeB64(c.blockKeyRaw); err != nil {
		return fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
	}
	switch len(c.CookieBlockKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("COOKIE_BLOCK_KEY must decode to 16, 24 or 32 bytes (got %d)", len(c.CookieBlockKey))
	}
	return nil
}

// decodeB64 accepts the key itself or a path to a file holding it, for
// k8s secret mounts.
func decodeB64(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func seconds(v, name string, min int) (time.Duration, error) {
	n, err := integer(v, name, min)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func integer(v, name string, min int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
