package config

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "gopkg.in/yaml.v3"

    "geprices/internal/feed"
    "geprices/internal/logging"
    "geprices/internal/prices"
)

type Server struct {
    Port              string `json:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Feed struct {
    Endpoint             string  `json:"endpoint"`
    UserAgent            string  `json:"user_agent"`
    InitialDelay         string  `json:"initial_delay"` // Go duration string
    Period               string  `json:"period"`        // Go duration string
    MaxBodyBytes         int64   `json:"max_body_bytes"`
    MaxRequestsPerMinute float64 `json:"max_requests_per_minute"`
    Burst                int     `json:"burst"`
}

type Config struct {
    Server Server         `json:"server"`
    Feed   Feed           `json:"feed"`
    Log    logging.Config `json:"log"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "8080", RequestTimeoutSec: 20},
        Feed: Feed{
            Endpoint:             prices.DefaultEndpoint,
            UserAgent:            "geprices/1.0",
            InitialDelay:         feed.DefaultInitialDelay.String(),
            Period:               feed.DefaultPeriod.String(),
            MaxBodyBytes:         prices.DefaultMaxBodyBytes,
            MaxRequestsPerMinute: 2,
            Burst:                1,
        },
        Log: logging.Config{Level: "info", Format: "console"},
    }
}

// Load reads a JSON or YAML config from path. If path is empty it looks for
// config.json, config.yaml and config.yml in that order; a missing file means
// defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        for _, candidate := range []string{"config.json", "config.yaml", "config.yml"} {
            if _, err := os.Stat(candidate); err == nil {
                path = candidate
                break
            }
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := decode(path, b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg)
    return cfg, cfg.Validate()
}

// decode treats YAML as JSON after conversion so both formats share one
// strict decoder.
func decode(path string, b []byte, cfg *Config) error {
    ext := strings.ToLower(filepath.Ext(path))
    if ext == ".yaml" || ext == ".yml" {
        var v any
        if err := yaml.Unmarshal(b, &v); err != nil {
            return fmt.Errorf("yaml unmarshal: %w", err)
        }
        j, err := json.Marshal(v)
        if err != nil {
            return fmt.Errorf("yaml->json marshal: %w", err)
        }
        b = j
    }
    dec := json.NewDecoder(bytes.NewReader(b))
    dec.DisallowUnknownFields()
    return dec.Decode(cfg)
}

// ErrInvalid is wrapped by every error Validate returns.
var ErrInvalid = errors.New("invalid config")

// Validate checks the fields the feed cannot run without.
func (c Config) Validate() error {
    if strings.TrimSpace(c.Feed.Endpoint) == "" {
        return fmt.Errorf("%w: feed.endpoint is required", ErrInvalid)
    }
    if strings.TrimSpace(c.Feed.UserAgent) == "" {
        return fmt.Errorf("%w: feed.user_agent is required", ErrInvalid)
    }
    if _, err := parseDuration("feed.initial_delay", c.Feed.InitialDelay, 0); err != nil {
        return fmt.Errorf("%w: %w", ErrInvalid, err)
    }
    period, err := parseDuration("feed.period", c.Feed.Period, 0)
    if err != nil {
        return fmt.Errorf("%w: %w", ErrInvalid, err)
    }
    if period <= 0 {
        return fmt.Errorf("%w: feed.period must be > 0", ErrInvalid)
    }
    return nil
}

// InitialDelayDuration returns the parsed delay, falling back to the feed default.
func (f Feed) InitialDelayDuration() time.Duration {
    d, err := parseDuration("feed.initial_delay", f.InitialDelay, feed.DefaultInitialDelay)
    if err != nil {
        return feed.DefaultInitialDelay
    }
    return d
}

// PeriodDuration returns the parsed period, falling back to the feed default.
func (f Feed) PeriodDuration() time.Duration {
    d, err := parseDuration("feed.period", f.Period, feed.DefaultPeriod)
    if err != nil || d <= 0 {
        return feed.DefaultPeriod
    }
    return d
}

func parseDuration(path, raw string, def time.Duration) (time.Duration, error) {
    s := strings.TrimSpace(raw)
    if s == "" {
        return def, nil
    }
    d, err := time.ParseDuration(s)
    if err != nil {
        return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
    }
    if d < 0 {
        return 0, fmt.Errorf("%s: duration must be >= 0", path)
    }
    return d, nil
}

func applyEnv(cfg *Config) {
    if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
    if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Server.RequestTimeoutSec = x }
    }
    if v := os.Getenv("FEED_ENDPOINT"); v != "" { cfg.Feed.Endpoint = v }
    if v := os.Getenv("FEED_USER_AGENT"); v != "" { cfg.Feed.UserAgent = v }
    if v := os.Getenv("FEED_INITIAL_DELAY"); v != "" { cfg.Feed.InitialDelay = v }
    if v := os.Getenv("FEED_PERIOD"); v != "" { cfg.Feed.Period = v }
    if v := os.Getenv("FEED_MAX_BODY_BYTES"); v != "" {
        var x int64; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Feed.MaxBodyBytes = x }
    }
    if v := os.Getenv("FEED_MAX_RPM"); v != "" {
        var x float64; fmt.Sscanf(v, "%g", &x); if x >= 0 { cfg.Feed.MaxRequestsPerMinute = x }
    }
    if v := os.Getenv("FEED_BURST"); v != "" {
        var x int; fmt.Sscanf(v, "%d", &x); if x > 0 { cfg.Feed.Burst = x }
    }
    if v := os.Getenv("LOG_LEVEL"); v != "" { cfg.Log.Level = v }
    if v := os.Getenv("LOG_FORMAT"); v != "" { cfg.Log.Format = v }
}

// SplitCSV splits a comma separated list, dropping empty entries.
func SplitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
