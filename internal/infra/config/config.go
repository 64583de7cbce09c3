package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Cache     CacheSettings     `mapstructure:"cache"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection backing the role-permission
// cache. When Enabled is false the service runs on the in-process cache.
type RedisSettings struct {
	Enabled              bool   `mapstructure:"enabled"`
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	DB                   int    `mapstructure:"db"`
	Password             string `mapstructure:"password"`
	TLSEnabled           bool   `mapstructure:"tls_enabled"`
	RolePermissionPrefix string `mapstructure:"role_permission_prefix"`
}

// KafkaSettings configures the change-event producer and the invalidation
// consumer. Empty Brokers degrade both to in-process stubs.
type KafkaSettings struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	Async         bool     `mapstructure:"async"`
}

// CacheSettings tunes the permission and context caches.
type CacheSettings struct {
	RolePermissionTTL time.Duration `mapstructure:"role_permission_ttl"`
	UserContextTTL    time.Duration `mapstructure:"user_context_ttl"`
	MaxEntries        int           `mapstructure:"max_entries"`
}

type JWTSettings struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// RateLimitSettings throttles the check endpoints per caller. Requires Redis;
// ignored when the limit is zero or Redis is disabled.
type RateLimitSettings struct {
	CheckMaxRequests int           `mapstructure:"check_max_requests"`
	Window           time.Duration `mapstructure:"window"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTHZ")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.enabled",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.role_permission_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.consumer_group",
		"kafka.async",
		"cache.role_permission_ttl",
		"cache.user_context_ttl",
		"cache.max_entries",
		"jwt.secret",
		"jwt.issuer",
		"rate_limit.check_max_requests",
		"rate_limit.window",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "authz-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "authz")
	v.SetDefault("postgres.password", "authz_password")
	v.SetDefault("postgres.database", "authz")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.role_permission_prefix", "authz:role_permissions")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "authz")
	v.SetDefault("kafka.consumer_group", "authz-invalidation")
	v.SetDefault("kafka.async", true)

	v.SetDefault("cache.role_permission_ttl", "5m")
	v.SetDefault("cache.user_context_ttl", "1m")
	v.SetDefault("cache.max_entries", 8192)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "authz-service")

	v.SetDefault("rate_limit.check_max_requests", 0)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "authz-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTHZ_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
