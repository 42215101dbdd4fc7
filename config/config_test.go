package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeConfig(t, `
cargo:
  base_url: "https://b2b.example.net"
  token: "from-file"
  timeout_seconds: 15
  rps: 5
  burst: 2
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  claim_outcomes_topic_name: "claim.outcomes"
redis:
  host: "localhost"
  port: 6379
claimbox:
  http_addr: ":8080"
  concurrency: 8
  same_day: false
  accept_delay_ms: 2000
  report_statuses: ["delivered"]
  time_zones:
    ru: 3
    kz: 5
  cancel_originals: true
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Cargo.Token)
	require.Equal(t, 5.0, cfg.Cargo.RPS)
	require.Equal(t, "claim.outcomes", cfg.Kafka.ClaimOutcomesTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.ClaimBox.HTTPAddr)
	require.False(t, cfg.ClaimBox.SameDayEnabled())
	require.True(t, cfg.ClaimBox.CancelOriginals)

	tz, ok := cfg.ClaimBox.TimeZone("KZ")
	require.True(t, ok)
	require.Equal(t, 5, tz)

	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.PostgresDSN())
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers())
	require.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	p := writeConfig(t, "cargo:\n  token: from-file\n")
	t.Setenv("CLAIMBOX_CARGO_TOKEN", "from-env")
	t.Setenv("CLAIMBOX_CONCURRENCY", "3")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Cargo.Token)
	require.Equal(t, 3, cfg.ClaimBox.Concurrency)
	require.True(t, cfg.ClaimBox.SameDayEnabled())
	require.Empty(t, cfg.PostgresDSN())
	require.Nil(t, cfg.KafkaBrokers())
	require.Empty(t, cfg.RedisAddr())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "cargo: [not, a, map"))
	require.Error(t, err)

	t.Setenv("CLAIMBOX_CONCURRENCY", "many")
	_, err = LoadConfig(writeConfig(t, "{}"))
	require.ErrorContains(t, err, "CLAIMBOX_CONCURRENCY")
}

func TestLoadConfig_Example(t *testing.T) {
	cfg, err := LoadConfig("config.example.yaml")
	require.NoError(t, err)
	require.True(t, cfg.Cargo.Emulator)
	require.Empty(t, cfg.PostgresDSN())
	require.Nil(t, cfg.KafkaBrokers())
	require.True(t, cfg.ClaimBox.SameDayEnabled())
	tz, ok := cfg.ClaimBox.TimeZone("RU")
	require.True(t, ok)
	require.Equal(t, 3, tz)
	require.Equal(t, []string{"delivered", "returning"}, cfg.ClaimBox.ReportStatuses)
}

func TestLoadConfig_TimeZoneKeysAnyCase(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
claimbox:
  time_zones:
    Russia: 3
    KZ: 5
`))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"russia": 3, "kz": 5}, cfg.ClaimBox.TimeZones)

	for _, country := range []string{"russia", "Russia", "RUSSIA"} {
		tz, ok := cfg.ClaimBox.TimeZone(country)
		require.True(t, ok, country)
		require.Equal(t, 3, tz)
	}
	_, ok := cfg.ClaimBox.TimeZone("xx")
	require.False(t, ok)
}

func TestPostgresDSN_EscapesCredentials(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{
		Host:     "db.local",
		Port:     5432,
		Username: "svc:ro",
		Password: "p@ss/w:rd?",
		DBName:   "claims",
		SSLMode:  "require",
	}}

	dsn := cfg.PostgresDSN()
	require.Contains(t, dsn, "p%40ss%2Fw%3Ard%3F@db.local:5432")

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	require.Equal(t, "postgres", u.Scheme)
	require.Equal(t, "svc:ro", u.User.Username())
	pass, _ := u.User.Password()
	require.Equal(t, "p@ss/w:rd?", pass)
	require.Equal(t, "db.local:5432", u.Host)
	require.Equal(t, "/claims", u.Path)
	require.Equal(t, "require", u.Query().Get("sslmode"))
}
