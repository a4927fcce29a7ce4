// Package config provides configuration management for the Mezo Lite services.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Chain     ChainConfig
	Contracts ContractsConfig
	Explorer  ExplorerConfig
	Backend   BackendConfig
	Wallet    WalletConfig
	Auth      AuthConfig
	Polling   PollingConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds RPC endpoint configuration for the Mezo testnet
type ChainConfig struct {
	ChainID      int64
	RPCPrimary   string
	RPCSecondary string
	WSEndpoint   string
}

// ContractsConfig holds the deployed contract addresses the wallet talks to
type ContractsConfig struct {
	Token          string // MUSD stablecoin (ERC-20 with EIP-2612 permit)
	CashlinkEscrow string
	Donation       string
}

// ExplorerConfig holds block-explorer API configuration
type ExplorerConfig struct {
	BaseURL           string
	RequestsPerSecond float64
}

// BackendConfig holds the backend API endpoint used by the wallet engine
type BackendConfig struct {
	BaseURL string
}

// WalletConfig holds the signing key for the wallet CLI. Never set in the
// backend services.
type WalletConfig struct {
	PrivateKey string
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	Secret     string // HMAC secret for session tokens
	APIKey     string // static x-auth-key expected on write paths
	SessionTTL time.Duration
}

// PollingConfig holds balance poller configuration
type PollingConfig struct {
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "mezo_lite"),
				User:           getEnv("POSTGRES_USER", "mezo"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			ChainID:      getEnvAsInt64("CHAIN_ID", 31611),
			RPCPrimary:   getEnv("RPC_PRIMARY", "https://rpc.test.mezo.org"),
			RPCSecondary: getEnv("RPC_SECONDARY", ""),
			WSEndpoint:   getEnv("RPC_WEBSOCKET", "wss://mezo-testnet.drpc.org"),
		},
		Contracts: ContractsConfig{
			Token:          getEnv("TOKEN_ADDRESS", "0x118917a40FAF1CD7a13dB0Ef56C86De7973Ac503"),
			CashlinkEscrow: getEnv("CASHLINK_ESCROW_ADDRESS", "0xD60e914Ff6f3E86B3ACf060AF98152E38702fCcC"),
			Donation:       getEnv("DONATION_ADDRESS", "0x6e80164ea60673D64d5d6228beb684a1274Bb017"),
		},
		Explorer: ExplorerConfig{
			BaseURL:           getEnv("EXPLORER_BASE_URL", "https://api.explorer.test.mezo.org/api/v2"),
			RequestsPerSecond: getEnvAsFloat("EXPLORER_RPS", 3.0),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8080"),
		},
		Wallet: WalletConfig{
			PrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		},
		Auth: AuthConfig{
			Secret:     getEnv("AUTH_SECRET", ""),
			APIKey:     getEnv("X_AUTH_KEY", ""),
			SessionTTL: getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		},
		Polling: PollingConfig{
			Interval:     getEnvAsDuration("BALANCE_POLL_INTERVAL", 30*time.Second),
			MaxRetries:   getEnvAsInt("BALANCE_MAX_RETRIES", 3),
			RetryBackoff: getEnvAsDuration("BALANCE_RETRY_BACKOFF", time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate checks that configuration required at runtime is present
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("X_AUTH_KEY is required")
	}
	if c.Chain.RPCPrimary == "" {
		return fmt.Errorf("RPC_PRIMARY is required")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 gets an environment variable as an int64 with a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float64 with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
