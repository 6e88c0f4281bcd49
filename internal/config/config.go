package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthJWTSecret string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Observability ObservabilityConfig

	Benefit   BenefitConfig
	Redis     RedisConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Seed      SeedConfig
}

// ObservabilityConfig carries the logging and OpenTelemetry exporter settings.
type ObservabilityConfig struct {
	// Environment is DEPLOYMENT_ENV when set, else ENVIRONMENT.
	Environment      string
	Version          string
	LogLevel         string
	LogFormat        string
	OtelEnabled      bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// BenefitConfig controls the points economy and redemption tokens.
type BenefitConfig struct {
	// Timezone is the business location used for daily/weekly/monthly usage windows.
	Timezone      string
	TokenTTL      time.Duration
	SignupPoints  int64
	SnowflakeNode int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RealtimeConfig struct {
	// Broker is "local" for a single instance or "redis" for pub/sub fan-out.
	Broker        string
	ChannelPrefix string
}

type RateLimitConfig struct {
	Enabled     bool
	RedeemRate  float64
	RedeemBurst int
}

type SchedulerConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// SeedConfig bootstraps the first admin and the category list on startup.
type SeedConfig struct {
	AdminEmail     string
	AdminFirstName string
	AdminLastName  string
	AdminCity      string
	Categories     []string
}

const (
	BrokerLocal = "local"
	BrokerRedis = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	environment := v.GetString("ENVIRONMENT")

	cfg := Config{
		AppName:           v.GetString("APP_SERVICE"),
		AppVersion:        v.GetString("APP_VERSION"),
		Environment:       environment,
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		AuthJWTSecret:     strings.TrimSpace(v.GetString("AUTH_JWT_SECRET")),
		OTLPEndpoint:      v.GetString("OTLP_ENDPOINT"),
		DBType:            strings.ToLower(v.GetString("DATABASE_TYPE")),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBPath:            v.GetString("DATABASE_PATH"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime: v.GetInt("DATABASE_CONN_MAX_IDLE_TIME"),
		Observability: loadObservability(v, environment),
		Benefit: BenefitConfig{
			Timezone:      strings.TrimSpace(v.GetString("BENEFIT_TIMEZONE")),
			TokenTTL:      v.GetDuration("REDEMPTION_TOKEN_TTL"),
			SignupPoints:  v.GetInt64("USER_SIGNUP_POINTS"),
			SnowflakeNode: v.GetInt64("SNOWFLAKE_NODE"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: strings.TrimSpace(v.GetString("REDIS_PASSWORD")),
			DB:       v.GetInt("REDIS_DB"),
		},
		Realtime: RealtimeConfig{
			Broker:        normalizeBroker(v.GetString("REALTIME_BROKER")),
			ChannelPrefix: v.GetString("REALTIME_CHANNEL_PREFIX"),
		},
		RateLimit: RateLimitConfig{
			Enabled:     v.GetBool("RATE_LIMIT_ENABLED"),
			RedeemRate:  v.GetFloat64("REDEEM_RATE"),
			RedeemBurst: v.GetInt("REDEEM_BURST"),
		},
		Scheduler: SchedulerConfig{
			Enabled:   v.GetBool("SCHEDULER_ENABLED"),
			Interval:  v.GetDuration("SCHEDULER_INTERVAL"),
			BatchSize: v.GetInt("SCHEDULER_BATCH_SIZE"),
		},
		Seed: SeedConfig{
			AdminEmail:     strings.TrimSpace(v.GetString("SEED_ADMIN_EMAIL")),
			AdminFirstName: strings.TrimSpace(v.GetString("SEED_ADMIN_FIRST_NAME")),
			AdminLastName:  strings.TrimSpace(v.GetString("SEED_ADMIN_LAST_NAME")),
			AdminCity:      strings.TrimSpace(v.GetString("SEED_ADMIN_CITY")),
			Categories:     splitList(v.GetString("SEED_CATEGORIES")),
		},
	}

	return cfg
}

func loadObservability(v *viper.Viper, environment string) ObservabilityConfig {
	if deployment := strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")); deployment != "" {
		environment = deployment
	}
	protocol := v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")
	if strings.TrimSpace(protocol) == "" {
		protocol = v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	}
	endpoint := strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		endpoint = strings.TrimSpace(v.GetString("OTLP_ENDPOINT"))
	}

	// Exporting defaults to on in production only, so local runs need no collector.
	enabled := strings.EqualFold(environment, "production")
	if v.IsSet("OTEL_ENABLED") {
		enabled = v.GetBool("OTEL_ENABLED")
	}

	return ObservabilityConfig{
		Environment:      strings.TrimSpace(environment),
		Version:          strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:        strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		OtelEnabled:      enabled,
		ExporterEndpoint: endpoint,
		ExporterProtocol: strings.ToLower(strings.TrimSpace(protocol)),
		SamplingRatio:    v.GetFloat64("OTEL_SAMPLING_RATIO"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_SERVICE", "perkhub")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4317")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "postgres")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_PATH", "perkhub.db")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 50)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 300)
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", 60)

	v.SetDefault("BENEFIT_TIMEZONE", "UTC")
	v.SetDefault("REDEMPTION_TOKEN_TTL", 5*time.Minute)
	v.SetDefault("USER_SIGNUP_POINTS", 4000)
	v.SetDefault("SNOWFLAKE_NODE", 1)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REALTIME_BROKER", BrokerLocal)
	v.SetDefault("REALTIME_CHANNEL_PREFIX", "realtime:user:")

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("REDEEM_RATE", 1.0)
	v.SetDefault("REDEEM_BURST", 10)

	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_INTERVAL", time.Minute)
	v.SetDefault("SCHEDULER_BATCH_SIZE", 100)

	v.SetDefault("SEED_ADMIN_FIRST_NAME", "Perkhub")
	v.SetDefault("SEED_ADMIN_LAST_NAME", "Admin")
}

// Location resolves the business timezone, falling back to UTC.
func (c BenefitConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func normalizeBroker(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case BrokerRedis:
		return BrokerRedis
	default:
		return BrokerLocal
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
