package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sitequote/billing/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig   `validate:"required"`
	Server       ServerConfig       `validate:"required"`
	Logging      LoggingConfig      `validate:"required"`
	Postgres     PostgresConfig     `validate:"required"`
	Stripe       StripeConfig       `validate:"required"`
	Locker       LockerConfig       `validate:"required"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Notification NotificationConfig `mapstructure:"notification"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
	ConnectRetries         uint64 `mapstructure:"connect_retries" default:"5"`
}

// StripeConfig holds the billing provider credentials and the fixed billing
// parameters every recurring price and service fee is created with.
type StripeConfig struct {
	SecretKey           string        `mapstructure:"secret_key" validate:"required"`
	Currency            string        `mapstructure:"currency" validate:"required,len=3"`
	RecurringProductID  string        `mapstructure:"recurring_product_id" validate:"required"`
	ServiceFeeProductID string        `mapstructure:"service_fee_product_id" validate:"required"`
	Interval            string        `mapstructure:"interval" validate:"required,oneof=day week month year"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout" validate:"required"`
}

type LockerConfig struct {
	Backend types.LockerBackend `mapstructure:"backend" validate:"required,oneof=memory redis"`
	// TTL bounds how long a redis lease survives a crashed holder
	TTL time.Duration `mapstructure:"ttl"`
	// WaitTimeout bounds how long a caller queues behind another holder
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type NotificationConfig struct {
	Topic     string        `mapstructure:"topic"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only feeds the environment viper reads below
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/sitequote")

	v.SetEnvPrefix("SITEQUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("postgres.connect_retries", 5)
	v.SetDefault("stripe.currency", types.DefaultCurrency)
	v.SetDefault("stripe.interval", "month")
	v.SetDefault("stripe.request_timeout", 15*time.Second)
	v.SetDefault("locker.backend", types.LockerBackendMemory)
	v.SetDefault("locker.ttl", 2*time.Minute)
	v.SetDefault("locker.wait_timeout", 30*time.Second)
	v.SetDefault("redis.prefix", "sitequote:lock")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("notification.topic", "quote_updates")
	v.SetDefault("notification.heartbeat", "30s")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Locker.Backend == types.LockerBackendRedis && c.Redis.Address == "" {
		return errors.New("redis.address is required when locker.backend is redis")
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// and tests that never talk to the real provider
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Stripe: StripeConfig{
			SecretKey:           "sk_test_local",
			Currency:            types.DefaultCurrency,
			RecurringProductID:  "prod_recurring_quote",
			ServiceFeeProductID: "prod_service_fee",
			Interval:            "month",
			RequestTimeout:      15 * time.Second,
		},
		Locker: LockerConfig{
			Backend:     types.LockerBackendMemory,
			TTL:         2 * time.Minute,
			WaitTimeout: 30 * time.Second,
		},
		Cache:        CacheConfig{Enabled: true, TTL: 5 * time.Minute},
		Notification: NotificationConfig{Topic: "quote_updates", Heartbeat: 30 * time.Second},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
