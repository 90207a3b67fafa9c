package config

import "time"

func LoadTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8081,
			RequestTimeout: 5 * time.Second,
			RateLimit:      1000,
			LoginAttempts:  5,
			LoginWindow:    time.Minute,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "cms0_test",
			User:     "test_user",
			Password: "test_password",
			SSLMode:  "disable",
		},
		JWT: JWTConfig{
			Secret:     "test-secret",
			TTL:        time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Cache: CacheConfig{
			PermissionTTL: time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:      1,
			SessionPurgeCron: "0 * * * *",
		},
	}
}
