package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rozo-hq/intent-relayer/pkg/logger"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// Config holds the configuration for the relayer service
type Config struct {
	RelayerAddress    types.Address
	RepaymentAddress  types.Address
	SignerKey         string
	FeeBps            int64
	FallbackRelayer   types.Address
	FallbackThreshold time.Duration
	AdapterOrder      []uint8
	RescanInterval    time.Duration
	WorkerCount       int
	MaxRetries        int
	MinSpread         *big.Int
	MetricsPort       string
	MetricsAPIKey     string
	Chains            []ChainConfig
	CircuitBreaker    CircuitBreakerConfig
	LoggerConfig      LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// ChainConfig holds the configuration for a specific chain
type ChainConfig struct {
	ChainID uint64
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	relayerAddress, err := GetEnvRelayerAddress()
	if err != nil {
		return nil, err
	}

	repaymentAddress, err := GetEnvRepaymentAddress(relayerAddress)
	if err != nil {
		return nil, err
	}

	feeBps, err := GetEnvFeeBps()
	if err != nil {
		return nil, err
	}

	fallbackRelayer, err := GetEnvFallbackRelayer()
	if err != nil {
		return nil, err
	}

	fallbackThreshold, err := GetEnvFallbackThreshold()
	if err != nil {
		return nil, err
	}

	adapterOrder, err := GetEnvAdapterOrder()
	if err != nil {
		return nil, err
	}

	rescanInterval, err := GetEnvRescanInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	maxRetries, err := GetEnvMaxRetries()
	if err != nil {
		return nil, err
	}

	minSpread, err := GetEnvMinSpread()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	chains, err := GetEnvChainConfigs()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RelayerAddress:    relayerAddress,
		RepaymentAddress:  repaymentAddress,
		SignerKey:         os.Getenv("SIGNER_KEY"),
		FeeBps:            feeBps,
		FallbackRelayer:   fallbackRelayer,
		FallbackThreshold: fallbackThreshold,
		AdapterOrder:      adapterOrder,
		RescanInterval:    rescanInterval,
		WorkerCount:       workerCount,
		MaxRetries:        maxRetries,
		MinSpread:         minSpread,
		MetricsPort:       metricsPort,
		MetricsAPIKey:     GetEnvMetricsAPIKey(),
		Chains:            chains,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.RelayerAddress.IsZero() {
		return fmt.Errorf("RELAYER_ADDRESS environment variable is required")
	}
	if cfg.SignerKey == "" {
		return fmt.Errorf("SIGNER_KEY environment variable is required")
	}
	if len(cfg.Chains) < 2 {
		return fmt.Errorf("at least two chain configurations are required")
	}
	if len(cfg.AdapterOrder) == 0 {
		return fmt.Errorf("at least one messenger adapter is required")
	}
	seen := make(map[uint64]bool)
	for _, chain := range cfg.Chains {
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain ID %d", chain.ChainID)
		}
		seen[chain.ChainID] = true
	}
	return nil
}
