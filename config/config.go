package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Cargo    CargoConfig    `yaml:"cargo"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	ClaimBox ClaimBoxConfig `yaml:"claimbox"`
}

type CargoConfig struct {
	BaseURL        string  `yaml:"base_url"`
	RoutePrefix    string  `yaml:"route_prefix"`
	Token          string  `yaml:"token"`
	Language       string  `yaml:"language"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RPS            float64 `yaml:"rps"`
	Burst          int     `yaml:"burst"`

	// Emulator serves the claims API from the in-process fake (demo and dry runs).
	Emulator bool `yaml:"emulator"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ClaimOutcomesTopicName string `yaml:"claim_outcomes_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ClaimBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	LogLevel           string `yaml:"log_level"`

	Concurrency          int   `yaml:"concurrency"`
	SameDay              *bool `yaml:"same_day"`
	AcceptDelayMs        int   `yaml:"accept_delay_ms"`
	AcceptDelayThreshold int   `yaml:"accept_delay_threshold"`

	// RateLimitPerMinute включает общий для процессов лимит через redis.
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	Client             string `yaml:"client"`

	ReportStatuses []string       `yaml:"report_statuses"`
	TimeZones      map[string]int `yaml:"time_zones"` // country -> UTC offset, hours

	CancelOriginals bool `yaml:"cancel_originals"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.ClaimBox.TimeZones = normalizeTimeZones(config.ClaimBox.TimeZones)

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ключи стран храним в нижнем регистре, как их ищет TimeZone
func normalizeTimeZones(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// ApplyEnv overrides secrets and addresses from CLAIMBOX_* variables.
func (c *Config) ApplyEnv() error {
	str := map[string]*string{
		"CLAIMBOX_CARGO_TOKEN":       &c.Cargo.Token,
		"CLAIMBOX_CARGO_BASE_URL":    &c.Cargo.BaseURL,
		"CLAIMBOX_DATABASE_PASSWORD": &c.Database.Password,
		"CLAIMBOX_DATABASE_HOST":     &c.Database.Host,
		"CLAIMBOX_KAFKA_HOST":        &c.Kafka.Host,
		"CLAIMBOX_REDIS_HOST":        &c.Redis.Host,
		"CLAIMBOX_HTTP_ADDR":         &c.ClaimBox.HTTPAddr,
		"CLAIMBOX_LOG_LEVEL":         &c.ClaimBox.LogLevel,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("CLAIMBOX_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CLAIMBOX_CONCURRENCY: %w", err)
		}
		c.ClaimBox.Concurrency = n
	}
	return nil
}

func (c *Config) PostgresDSN() string {
	if c.Database.Host == "" {
		return ""
	}
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.Username, c.Database.Password),
		Host:     net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:     "/" + c.Database.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

func (c *Config) KafkaBrokers() []string {
	if c.Kafka.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, c.Kafka.Port)}
}

func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// SameDayEnabled defaults to true when same_day is not set.
func (c ClaimBoxConfig) SameDayEnabled() bool {
	return c.SameDay == nil || *c.SameDay
}

// TimeZone returns the UTC offset configured for country.
func (c ClaimBoxConfig) TimeZone(country string) (int, bool) {
	tz, ok := c.TimeZones[strings.ToLower(country)]
	return tz, ok
}
