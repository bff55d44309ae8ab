package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // SCHEDULER_TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
	Lock      LockConfig      `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string `mapstructure:"SERVER_PORT"`
	Host         string `mapstructure:"SERVER_HOST"`
	Env          string `mapstructure:"ENV"`
	ReadTimeout  string `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout string `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	OverdueSpec  string `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
	ReminderSpec string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	Timezone     string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
	Output string `mapstructure:"LOG_OUTPUT"`
}

type BusinessConfig struct {
	WeeklyDivisor         int64  `mapstructure:"WEEKLY_DIVISOR"`
	MonthlyDivisor        int64  `mapstructure:"MONTHLY_DIVISOR"`
	DailyDivisor          int64  `mapstructure:"DAILY_DIVISOR"`
	DefaultPenaltyPercent string `mapstructure:"DEFAULT_PENALTY_PERCENT"`
	DelinquencyThreshold  int    `mapstructure:"DELINQUENCY_THRESHOLD"`
	AutoDefaultAfterDays  int    `mapstructure:"AUTO_DEFAULT_AFTER_DAYS"`
	ReminderWindowDays    int    `mapstructure:"REMINDER_WINDOW_DAYS"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

type LockConfig struct {
	Backend string `mapstructure:"LOCK_BACKEND"`
	TTL     string `mapstructure:"LOCK_TTL"`
}

const (
	LockBackendRedis = "redis"
	LockBackendLocal = "local"
)

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// .env values never override variables already set in the environment
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("WEEKLY_DIVISOR", 10)
	v.SetDefault("MONTHLY_DIVISOR", 5)
	v.SetDefault("DAILY_DIVISOR", 100)
	v.SetDefault("DEFAULT_PENALTY_PERCENT", "2")
	v.SetDefault("DELINQUENCY_THRESHOLD", 2)
	v.SetDefault("AUTO_DEFAULT_AFTER_DAYS", 0)
	v.SetDefault("REMINDER_WINDOW_DAYS", 3)
	v.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 0 0 * * *")
	v.SetDefault("SCHEDULER_REMINDER_SPEC", "0 0 9 * * *")
	v.SetDefault("SCHEDULER_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
	v.SetDefault("LOCK_BACKEND", LockBackendRedis)
	v.SetDefault("LOCK_TTL", "10s")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Business.WeeklyDivisor <= 0 || c.Business.MonthlyDivisor <= 0 || c.Business.DailyDivisor <= 0 {
		return fmt.Errorf("WEEKLY_DIVISOR, MONTHLY_DIVISOR and DAILY_DIVISOR must be greater than 0")
	}

	if c.Business.DelinquencyThreshold <= 0 {
		return fmt.Errorf("DELINQUENCY_THRESHOLD must be greater than 0")
	}

	if c.Business.AutoDefaultAfterDays < 0 {
		return fmt.Errorf("AUTO_DEFAULT_AFTER_DAYS must not be negative")
	}

	if c.Business.ReminderWindowDays < 0 {
		return fmt.Errorf("REMINDER_WINDOW_DAYS must not be negative")
	}

	penalty, err := decimal.NewFromString(c.Business.DefaultPenaltyPercent)
	if err != nil {
		return fmt.Errorf("DEFAULT_PENALTY_PERCENT must be a valid decimal: %w", err)
	}
	if penalty.IsNegative() {
		return fmt.Errorf("DEFAULT_PENALTY_PERCENT must not be negative")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if c.Lock.Backend != LockBackendRedis && c.Lock.Backend != LockBackendLocal {
		return fmt.Errorf("LOCK_BACKEND must be %q or %q", LockBackendRedis, LockBackendLocal)
	}

	for key, value := range map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
		"LOCK_TTL":                   c.Lock.TTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
	}

	return nil
}

// ValidateForServer additionally requires the settings the HTTP server and
// scheduler cannot run without.
func (c *Config) ValidateForServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetDefaultPenaltyPercent returns the foreclosure penalty as decimal
func (c *Config) GetDefaultPenaltyPercent() decimal.Decimal {
	penalty, _ := decimal.NewFromString(c.Business.DefaultPenaltyPercent)
	return penalty
}

// GetLocation returns the business time zone used for "today"
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ReadTimeout)
	return d
}

func (c *Config) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.WriteTimeout)
	return d
}

func (c *Config) GetConnMaxLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Database.ConnMaxLifetime)
	return d
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

// GetLockTTL returns how long a per-loan lock is held before it expires
func (c *Config) GetLockTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Lock.TTL)
	return ttl
}

// RedisAddr returns host:port for the redis client
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}
