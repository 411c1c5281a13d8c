package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 5*time.Second, cfg.Feed.InitialDelayDuration())
	require.Equal(t, time.Minute, cfg.Feed.PeriodDuration())
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"server": {"port": "9090"},
		"feed": {"user_agent": "my-app - @me on Discord", "period": "2m"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "my-app - @me on Discord", cfg.Feed.UserAgent)
	require.Equal(t, 2*time.Minute, cfg.Feed.PeriodDuration())
	// untouched fields keep their defaults
	require.Equal(t, Default().Feed.Endpoint, cfg.Feed.Endpoint)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
feed:
  endpoint: https://prices.runescape.wiki/api/v1/osrs/5m
  initial_delay: 1s
  max_requests_per_minute: 4
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://prices.runescape.wiki/api/v1/osrs/5m", cfg.Feed.Endpoint)
	require.Equal(t, time.Second, cfg.Feed.InitialDelayDuration())
	require.InDelta(t, 4.0, cfg.Feed.MaxRequestsPerMinute, 0.0001)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeFile(t, "config.json", `{"feed": {"interval": "1m"}}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FEED_USER_AGENT", "env-agent")
	t.Setenv("FEED_PERIOD", "90s")
	t.Setenv("FEED_MAX_RPM", "0.5")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Equal(t, "env-agent", cfg.Feed.UserAgent)
	require.Equal(t, 90*time.Second, cfg.Feed.PeriodDuration())
	require.InDelta(t, 0.5, cfg.Feed.MaxRequestsPerMinute, 0.0001)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	noAgent := Default()
	noAgent.Feed.UserAgent = " "
	require.ErrorIs(t, noAgent.Validate(), ErrInvalid)

	badPeriod := Default()
	badPeriod.Feed.Period = "soon"
	require.Error(t, badPeriod.Validate())

	zeroPeriod := Default()
	zeroPeriod.Feed.Period = "0s"
	require.Error(t, zeroPeriod.Validate())
}

func TestSplitCSV(t *testing.T) {
	require.Equal(t, []string{"4151", "2"}, SplitCSV(" 4151, ,2,"))
}
