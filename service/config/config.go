package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Admin wallet that receives commission and may open the dashboard
	AdminWallet string

	// Solana configuration
	SolanaRPCURL   string
	SolanaNetwork  string  // "mainnet" or "devnet"; metrics label and explorer links
	RPCRateLimit   float64 // requests per second, 0 disables
	ConfirmTimeout time.Duration

	// Wallet configuration. Empty means no connected identity.
	WalletKeypairPath string

	// Optional payment history storage
	DatabaseURL string

	// Optional payment event stream
	NATSURL string

	// Optional settlement tracking. Empty TemporalHost disables it.
	TemporalHost           string
	TemporalNamespace      string
	TemporalTaskQueue      string
	SettlementTimeout      time.Duration
	SettlementPollInterval time.Duration

	// Worker metrics endpoint
	MetricsAddr string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Admin wallet
	cfg.AdminWallet = os.Getenv("ADMIN_WALLET")
	if cfg.AdminWallet == "" {
		errs = append(errs, fmt.Errorf("ADMIN_WALLET is required"))
	} else if _, err := solanago.PublicKeyFromBase58(cfg.AdminWallet); err != nil {
		errs = append(errs, fmt.Errorf("ADMIN_WALLET: invalid public key %q: %w", cfg.AdminWallet, err))
	}

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "mainnet")
	if cfg.SolanaNetwork != "mainnet" && cfg.SolanaNetwork != "devnet" {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK must be \"mainnet\" or \"devnet\", got %q", cfg.SolanaNetwork))
	}

	rateLimit, err := parseFloat("RPC_RATE_LIMIT", 5)
	if err != nil {
		errs = append(errs, err)
	} else if rateLimit < 0 {
		errs = append(errs, fmt.Errorf("RPC_RATE_LIMIT cannot be negative"))
	} else {
		cfg.RPCRateLimit = rateLimit
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else if confirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("CONFIRM_TIMEOUT must be at least 1 second"))
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	// Wallet, storage and events are optional
	cfg.WalletKeypairPath = os.Getenv("WALLET_KEYPAIR_PATH")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Settlement tracking
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solpay-settlement")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9090")

	settlementTimeout, err := parseDuration("SETTLEMENT_TIMEOUT", "24h")
	if err != nil {
		errs = append(errs, err)
	} else if settlementTimeout < time.Minute {
		errs = append(errs, fmt.Errorf("SETTLEMENT_TIMEOUT must be at least 1 minute"))
	} else {
		cfg.SettlementTimeout = settlementTimeout
	}

	pollInterval, err := parseDuration("SETTLEMENT_POLL_INTERVAL", "30s")
	if err != nil {
		errs = append(errs, err)
	} else if pollInterval < time.Second {
		errs = append(errs, fmt.Errorf("SETTLEMENT_POLL_INTERVAL must be at least 1 second"))
	} else {
		cfg.SettlementPollInterval = pollInterval
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.AdminWallet == "" {
		errs = append(errs, fmt.Errorf("AdminWallet is required"))
	} else if _, err := solanago.PublicKeyFromBase58(c.AdminWallet); err != nil {
		errs = append(errs, fmt.Errorf("AdminWallet is not a valid public key"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.RPCRateLimit < 0 {
		errs = append(errs, fmt.Errorf("RPCRateLimit cannot be negative"))
	}

	if c.ConfirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be at least 1 second"))
	}

	if c.TemporalHost != "" {
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TemporalTaskQueue is required when TemporalHost is set"))
		}
		if c.SettlementPollInterval < time.Second {
			errs = append(errs, fmt.Errorf("SettlementPollInterval must be at least 1 second"))
		}
		if c.SettlementTimeout < c.SettlementPollInterval {
			errs = append(errs, fmt.Errorf("SettlementTimeout must not be shorter than SettlementPollInterval"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// AdminPublicKey returns the parsed admin wallet address.
func (c *Config) AdminPublicKey() (solanago.PublicKey, error) {
	return solanago.PublicKeyFromBase58(c.AdminWallet)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
