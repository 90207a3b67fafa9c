package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Worker     WorkerConfig
	Redis      RedisConfig
	Cache      CacheConfig
	SuperAdmin SuperAdminConfig
}

type ServerConfig struct {
	Host           string        `envconfig:"SERVER_HOST" default:"localhost"`
	Port           int           `envconfig:"SERVER_PORT" default:"8080"`
	PublicURL      string        `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"30s"`
	RateLimit      float64       `envconfig:"SERVER_RATE_LIMIT" default:"20"`
	LoginAttempts  int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"10"`
	LoginWindow    time.Duration `envconfig:"LOGIN_WINDOW" default:"1m"`
}

type DatabaseConfig struct {
	Host         string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port         int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User         string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password     string `envconfig:"POSTGRES_PASSWORD" default:""`
	Name         string `envconfig:"POSTGRES_DB" default:"cms0"`
	SSLMode      string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns int    `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns int    `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"10"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type JWTConfig struct {
	Secret     string        `envconfig:"JWT_SECRET" default:"your-secret-key"`
	TTL        time.Duration `envconfig:"JWT_TTL" default:"24h"`
	RefreshTTL time.Duration `envconfig:"JWT_REFRESH_TTL" default:"168h"`
}

type StorageConfig struct {
	Provider string `envconfig:"STORAGE_PROVIDER" default:"local"` // local, s3, r2
	BasePath string `envconfig:"STORAGE_BASE_PATH" default:"./storage"`
	S3       S3Config
}

type S3Config struct {
	BucketName string `envconfig:"S3_BUCKET_NAME"`
	Endpoint   string `envconfig:"S3_ENDPOINT"`
	Region     string `envconfig:"S3_REGION"`
	AccessKey  string `envconfig:"S3_ACCESS_KEY"`
	SecretKey  string `envconfig:"S3_SECRET_KEY"`
}

// Enabled reports whether enough S3 settings are present to build a client.
func (s S3Config) Enabled() bool {
	return s.BucketName != "" && s.AccessKey != "" && s.SecretKey != ""
}

type WorkerConfig struct {
	Concurrency      int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	SessionPurgeCron string `envconfig:"WORKER_SESSION_PURGE_CRON" default:"0 * * * *"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	Username string `envconfig:"REDIS_USERNAME" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Addr returns host:port for redis clients.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CacheConfig struct {
	PermissionTTL time.Duration `envconfig:"CACHE_PERMISSION_TTL" default:"10m"`
}

type SuperAdminConfig struct {
	Email    string `envconfig:"SUPERADMIN_EMAIL"`
	Password string `envconfig:"SUPERADMIN_PASSWORD"`
	Name     string `envconfig:"SUPERADMIN_NAME"`
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	return cfg, nil
}
