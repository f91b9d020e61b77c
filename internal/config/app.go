package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type HTTPServer struct {
	Port string `mapstructure:"port" validate:"required,numeric"`
}

type DbServer struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Pass     string `mapstructure:"pass"`
	Name     string `mapstructure:"name"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (config *DbServer) GetConnectionStr() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		config.User, config.Pass, config.Host, config.Port, config.Name,
	)
}

type RedisServer struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

type HTTPClient struct {
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds" validate:"gt=0"`
	ReadTimeoutSeconds    int `mapstructure:"read_timeout_seconds" validate:"gt=0"`
}

type ExchangeRateAPI struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// Rates holds the constants the sync pipeline is built around.
type Rates struct {
	WorkingBase         string        `mapstructure:"working_base" validate:"required,alphanum,uppercase"`
	SourceBase          string        `mapstructure:"source_base" validate:"required,alphanum,uppercase"`
	StalenessWindow     time.Duration `mapstructure:"staleness_window" validate:"gt=0"`
	SupportedCurrencies []string      `mapstructure:"supported_currencies" validate:"required,min=1,dive,required,alphanum,uppercase"`
}

type History struct {
	Limit int `mapstructure:"limit" validate:"gt=0"`
}

type Scheduler struct {
	// zero disables the periodic recheck
	RecheckIntervalSec int `mapstructure:"recheck_interval_sec" validate:"gte=0"`
}

type Logging struct {
	Level string `mapstructure:"level"`
}

type Storage struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory postgres redis"`
}

type AppConfig struct {
	HTTPServer      HTTPServer      `mapstructure:"http_server"`
	DbServer        DbServer        `mapstructure:"db_server"`
	Redis           RedisServer     `mapstructure:"redis"`
	HTTPClient      HTTPClient      `mapstructure:"http_client"`
	ExchangeRateAPI ExchangeRateAPI `mapstructure:"exchange_rate_api"`
	Rates           Rates           `mapstructure:"rates"`
	History         History         `mapstructure:"history"`
	Scheduler       Scheduler       `mapstructure:"scheduler"`
	Logging         Logging         `mapstructure:"logging"`
	Storage         Storage         `mapstructure:"storage"`
}

func Init() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return Load("config.yaml")
}

// Load reads the yaml file at path, applies defaults and env overrides and
// validates the result.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	v.SetDefault("http_server.port", "8080")
	v.SetDefault("db_server.max_conns", 10)
	v.SetDefault("http_client.connect_timeout_seconds", 10)
	v.SetDefault("http_client.read_timeout_seconds", 10)
	v.SetDefault("exchange_rate_api.base_url", "https://open.er-api.com/v6/latest")
	v.SetDefault("rates.working_base", "USDT")
	v.SetDefault("rates.source_base", "USD")
	v.SetDefault("rates.staleness_window", time.Hour)
	v.SetDefault("history.limit", 20)
	v.SetDefault("scheduler.recheck_interval_sec", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("storage.backend", StorageMemory)

	// db server env vars
	_ = v.BindEnv("db_server.host", "DB_HOST")
	_ = v.BindEnv("db_server.port", "DB_PORT")
	_ = v.BindEnv("db_server.user", "DB_USER")
	_ = v.BindEnv("db_server.pass", "DB_PASS")
	_ = v.BindEnv("db_server.name", "DB_NAME")
	_ = v.BindEnv("db_server.max_conns", "DB_MAX_CONNS")

	// redis env vars
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.pass", "REDIS_PASS")

	// http client env vars
	_ = v.BindEnv("http_client.connect_timeout_seconds", "HTTP_CLIENT_CONNECT_TIMEOUT_SECONDS")
	_ = v.BindEnv("http_client.read_timeout_seconds", "HTTP_CLIENT_READ_TIMEOUT_SECONDS")

	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.DbServer.Host == "" {
		return nil, errors.New("invalid config: db_server.host is required for postgres storage")
	}
	if cfg.Storage.Backend == StorageRedis && cfg.Redis.Addr == "" {
		return nil, errors.New("invalid config: redis.addr is required for redis storage")
	}

	return &cfg, nil
}
