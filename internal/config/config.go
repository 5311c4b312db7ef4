package config

import (
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/pkg/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Tracing  TracingConfig
	Alerts   AlertConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	AppEnv      string
	Port        string
	CORSOrigins []string
}

type LoggerConfig struct {
	Level  string
	Pretty bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ApplySchema     bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// RedisConfig configures the realtime broker. An empty Addr disables publishing.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	JaegerEndpoint string
}

// AlertConfig holds the alert engine knobs. Defaults match the historical behavior:
// a 7 day expiry window, medium for low stock and expiring batches, high for out of stock.
type AlertConfig struct {
	ExpiringWithinDays int
	LowStockSeverity   string
	OutOfStockSeverity string
	ExpiringSeverity   string
	ListingWindowDays  int
}

type AdminConfig struct {
	DefaultPassword string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	appEnv := utils.Getenv("APP_ENV", "development")
	adminPassword := ""
	if appEnv == "development" {
		adminPassword = "admin123"
	}
	return &Config{
		Server: ServerConfig{
			AppEnv:      appEnv,
			Port:        utils.Getenv("PORT", "8080"),
			CORSOrigins: utils.GetenvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),
		},
		Logger: LoggerConfig{
			Level:  utils.Getenv("LOG_LEVEL", "info"),
			Pretty: utils.GetenvBool("LOG_PRETTY", appEnv == "development"),
		},
		Postgres: PostgresConfig{
			Host:            utils.Getenv("DB_HOST", "localhost"),
			Port:            utils.Getenv("DB_PORT", "5432"),
			User:            utils.Getenv("DB_USER", "venue_ops"),
			Password:        utils.Getenv("DB_PASSWORD", "venue_ops"),
			DBName:          utils.Getenv("DB_NAME", "venue_ops"),
			SSLMode:         utils.Getenv("DB_SSLMODE", "disable"),
			MaxOpenConns:    utils.GetenvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    utils.GetenvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: utils.GetenvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ApplySchema:     utils.GetenvBool("DB_APPLY_SCHEMA", true),
		},
		JWT: JWTConfig{
			Secret: utils.Getenv("JWT_SECRET", ""),
			TTL:    utils.GetenvDuration("JWT_EXPIRES_IN", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     utils.Getenv("REDIS_ADDR", ""),
			Password: utils.Getenv("REDIS_PASSWORD", ""),
			DB:       utils.GetenvInt("REDIS_DB", 0),
			Channel:  utils.Getenv("REDIS_EVENTS_CHANNEL", "venue_ops:events"),
		},
		Tracing: TracingConfig{
			Enabled:        utils.GetenvBool("TRACING_ENABLED", false),
			ServiceName:    utils.Getenv("OTEL_SERVICE_NAME", "venue-ops-backend"),
			JaegerEndpoint: utils.Getenv("JAEGER_ENDPOINT", ""),
		},
		Alerts: AlertConfig{
			ExpiringWithinDays: utils.GetenvInt("ALERT_EXPIRING_WITHIN_DAYS", 7),
			LowStockSeverity:   utils.Getenv("ALERT_LOW_STOCK_SEVERITY", "medium"),
			OutOfStockSeverity: utils.Getenv("ALERT_OUT_OF_STOCK_SEVERITY", "high"),
			ExpiringSeverity:   utils.Getenv("ALERT_EXPIRING_SEVERITY", "medium"),
			ListingWindowDays:  utils.GetenvInt("EXPIRING_LIST_DEFAULT_DAYS", 30),
		},
		Admin: AdminConfig{
			DefaultPassword: utils.Getenv("DEFAULT_ADMIN_PASSWORD", adminPassword),
		},
	}
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development"
}

// Validate rejects configurations that would run outside development on
// built-in credentials.
func (c *Config) Validate() error {
	if c.IsDevelopment() {
		return nil
	}
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Admin.DefaultPassword == "" {
		missing = append(missing, "DEFAULT_ADMIN_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s must be set when APP_ENV=%s", strings.Join(missing, " and "), c.Server.AppEnv)
	}
	return nil
}
