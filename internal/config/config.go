package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	DynamoDB DynamoDBConfig
	Redis    RedisConfig
	OTP      OTPConfig
	Auth     AuthConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

// ChallengeStoreDynamoDB and ChallengeStoreRedis are the supported OTP
// challenge backends.
const (
	ChallengeStoreDynamoDB = "dynamodb"
	ChallengeStoreRedis    = "redis"
)

type OTPConfig struct {
	// TTL is the challenge lifetime. 30 seconds matches the final revision
	// of the service; earlier deployments briefly ran 15 seconds.
	TTL   time.Duration
	Store string
}

type AuthConfig struct {
	BcryptCost int
}

// AdminConfig seeds the privileged account at startup. Left empty, no admin is
// created.
type AdminConfig struct {
	Email    string
	Password string
}

func Load() (*Config, error) {
	// A local .env is a development convenience; missing is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "DuoAuthTable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OTP: OTPConfig{
			TTL:   getEnvAsDuration("OTP_TTL", 30*time.Second),
			Store: getEnv("CHALLENGE_STORE", ChallengeStoreDynamoDB),
		},
		Auth: AuthConfig{
			BcryptCost: getEnvAsInt("BCRYPT_COST", 10),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if cfg.OTP.TTL <= 0 {
		return nil, fmt.Errorf("OTP_TTL must be positive")
	}

	if cfg.OTP.Store != ChallengeStoreDynamoDB && cfg.OTP.Store != ChallengeStoreRedis {
		return nil, fmt.Errorf("CHALLENGE_STORE must be %q or %q", ChallengeStoreDynamoDB, ChallengeStoreRedis)
	}

	if cfg.Admin.Email != "" && cfg.Admin.Password == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
