// Package config loads process configuration from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Hub repository backends.
const (
	HubsMemory   = "memory"
	HubsPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	App       AppConfig
	Transport TransportConfig
	Transfer  TransferConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Hubs      HubsConfig
	Database  DatabaseConfig
	Telemetry TelemetryConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Port     int    `validate:"min=1,max=65535"`
	Env      string `validate:"required"`
	LogLevel string `validate:"oneof=trace debug info warn error"`
}

// TransportConfig points at the upstream transport search API.
type TransportConfig struct {
	BaseURL string        `validate:"omitempty,url"`
	Timeout time.Duration `validate:"gt=0"`
	APIKey  string
}

type TransferConfig struct {
	StrategyTimeout time.Duration `validate:"gt=0"`
	Blend           string        `validate:"oneof=sequential weighted_sum"`
}

type CacheConfig struct {
	Backend string        `validate:"oneof=memory redis"`
	TTL     time.Duration `validate:"gt=0"`
	Size    int           `validate:"gt=0"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"min=0"`
}

// HubsConfig selects the hub store. Seed hubs come from the pickup_hubs list
// in CONFIG_FILE and are upserted at startup.
type HubsConfig struct {
	Backend string    `validate:"oneof=memory postgres"`
	Seed    []HubSeed `validate:"dive"`
}

// HubSeed is a pickup point loaded from the config file.
type HubSeed struct {
	ID         string   `mapstructure:"id" validate:"required"`
	Name       string   `mapstructure:"name"`
	Kind       string   `mapstructure:"kind" validate:"omitempty,oneof=transit_hub taxi_rank through_street"`
	Lat        float64  `mapstructure:"lat" validate:"min=-90,max=90"`
	Lng        float64  `mapstructure:"lng" validate:"min=-180,max=180"`
	Facilities []string `mapstructure:"facilities"`
	Accessible bool     `mapstructure:"accessible"`
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	SampleRatio    float64       `validate:"gte=0,lte=1"`
	MetricInterval time.Duration `validate:"gt=0"`
}

// WorkerConfig drives the cache-warming worker.
type WorkerConfig struct {
	ProjectID       string
	Subscription    string
	WarmConcurrency int        `validate:"min=1"`
	Corridors       []Corridor `validate:"dive"`
}

// Endpoint is one end of a corridor.
type Endpoint struct {
	Name string  `mapstructure:"name"`
	Type string  `mapstructure:"type"`
	Lat  float64 `mapstructure:"lat" validate:"min=-90,max=90"`
	Lng  float64 `mapstructure:"lng" validate:"min=-180,max=180"`
}

// Corridor is an origin and destination pair composed ahead of demand.
type Corridor struct {
	Name        string   `mapstructure:"name"`
	Origin      Endpoint `mapstructure:"origin"`
	Destination Endpoint `mapstructure:"destination"`
	TimeOfDay   string   `mapstructure:"time_of_day" validate:"omitempty,oneof=early_morning morning afternoon evening night"`
	DayOfWeek   string   `mapstructure:"day_of_week"`
}

var defaults = map[string]any{
	"APP_PORT":                    8080,
	"APP_ENV":                     "development",
	"LOG_LEVEL":                   "info",
	"TRANSPORT_TIMEOUT":           "8s",
	"STRATEGY_TIMEOUT":            "10s",
	"SCORING_BLEND":               "sequential",
	"CACHE_BACKEND":               CacheMemory,
	"CACHE_TTL":                   "30m",
	"CACHE_SIZE":                  10000,
	"REDIS_ADDR":                  "localhost:6379",
	"REDIS_DB":                    0,
	"HUBS_BACKEND":                HubsMemory,
	"DB_HOST":                     "localhost",
	"DB_PORT":                     5432,
	"DB_USER":                     "transferroute",
	"DB_PASSWORD":                 "localdev",
	"DB_NAME":                     "transferroute",
	"DB_SSL_MODE":                 "disable",
	"DB_MAX_OPEN_CONNS":           10,
	"DB_MAX_IDLE_CONNS":           2,
	"DB_CONN_MAX_LIFETIME":        "5m",
	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_SAMPLE_RATIO":           1.0,
	"OTEL_METRIC_INTERVAL":        "15s",
	"PUBSUB_SUBSCRIPTION":         "transfer-warm-jobs",
	"WARM_CONCURRENCY":            3,
}

// Load reads configuration from the environment. If CONFIG_FILE is set, that
// file is read first and may also carry the worker corridors and seed hub
// lists; environment variables win over file values.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Port:     v.GetInt("APP_PORT"),
			Env:      v.GetString("APP_ENV"),
			LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
		},
		Transport: TransportConfig{
			BaseURL: v.GetString("TRANSPORT_API_URL"),
			APIKey:  v.GetString("TRANSPORT_API_KEY"),
			Timeout: v.GetDuration("TRANSPORT_TIMEOUT"),
		},
		Transfer: TransferConfig{
			StrategyTimeout: v.GetDuration("STRATEGY_TIMEOUT"),
			Blend:           v.GetString("SCORING_BLEND"),
		},
		Cache: CacheConfig{
			Backend: v.GetString("CACHE_BACKEND"),
			TTL:     v.GetDuration("CACHE_TTL"),
			Size:    v.GetInt("CACHE_SIZE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Hubs: HubsConfig{
			Backend: v.GetString("HUBS_BACKEND"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Telemetry: TelemetryConfig{
			Enabled:        v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio:    v.GetFloat64("OTEL_SAMPLE_RATIO"),
			MetricInterval: v.GetDuration("OTEL_METRIC_INTERVAL"),
		},
		Worker: WorkerConfig{
			ProjectID:       v.GetString("PUBSUB_PROJECT_ID"),
			Subscription:    v.GetString("PUBSUB_SUBSCRIPTION"),
			WarmConcurrency: v.GetInt("WARM_CONCURRENCY"),
		},
	}

	if err := v.UnmarshalKey("corridors", &cfg.Worker.Corridors); err != nil {
		return nil, fmt.Errorf("decode corridors: %w", err)
	}
	if err := v.UnmarshalKey("pickup_hubs", &cfg.Hubs.Seed); err != nil {
		return nil, fmt.Errorf("decode pickup hubs: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == CacheRedis && c.Redis.Addr == "" {
		return fmt.Errorf("invalid config: REDIS_ADDR is required for the redis cache backend")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
