package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Addr     string
		Password string
	}
	Services struct {
		TripServicePort   int
		RelayServicePort  int
		DriverGatewayPort int
	}
	RelayURL         string
	RiderProfileURL  string
	DriverProfileURL string
	JWTSecret        string
	WaitTimeout      time.Duration
	LogLevel         string
	RunMigrations    bool
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "emotion_user")
	cfg.Database.Password = getEnv("DB_PASSWORD", "emotion_pass")
	cfg.Database.Name = getEnv("DB_NAME", "emotion_db")

	cfg.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	cfg.RabbitMQ.Port = getEnvInt("RABBITMQ_PORT", 5672)
	cfg.RabbitMQ.User = getEnv("RABBITMQ_USER", "guest")
	cfg.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	cfg.Services.TripServicePort = getEnvInt("TRIP_SERVICE_PORT", 3000)
	cfg.Services.RelayServicePort = getEnvInt("RELAY_SERVICE_PORT", 8080)
	cfg.Services.DriverGatewayPort = getEnvInt("DRIVER_GATEWAY_PORT", 3002)

	cfg.RelayURL = getEnv("RELAY_URL", "http://localhost:8080")
	cfg.RiderProfileURL = getEnv("RIDER_PROFILE_URL", "http://localhost:8001")
	cfg.DriverProfileURL = getEnv("DRIVER_PROFILE_URL", "http://localhost:8002")

	cfg.JWTSecret = getEnv("JWT_SECRET", "super-secret-key")
	cfg.WaitTimeout = getEnvDuration("WAIT_TIMEOUT", 30*time.Second)
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.RunMigrations = getEnv("MIGRATE", "true") == "true"

	if cfg.WaitTimeout <= 0 {
		return nil, fmt.Errorf("WAIT_TIMEOUT must be positive")
	}

	return cfg, nil
}

func (c *Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password,
		c.Database.Host, c.Database.Port, c.Database.Name)
}
