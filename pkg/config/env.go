package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rozo-hq/intent-relayer/pkg/fees"
	"github.com/rozo-hq/intent-relayer/pkg/logger"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

const (
	// DefaultFeeBps defines the default protocol fee in basis points
	DefaultFeeBps = 3

	// DefaultFallbackThreshold defines how long an assigned intent stays
	// exclusive before the fallback relayer may fill it
	DefaultFallbackThreshold = 5 * time.Minute

	// DefaultAdapterOrder defines the messenger adapter preference order
	DefaultAdapterOrder = "0"

	// DefaultRescanInterval defines the default pending-intent rescan interval in seconds
	DefaultRescanInterval = 30

	// DefaultWorkerCount defines the default number of workers to process intents
	DefaultWorkerCount = 5

	// DefaultMaxRetries defines the maximum number of retries for failed fills
	DefaultMaxRetries = 10

	// DefaultMinSpread defines the minimum source-minus-destination amount
	// for an intent to be worth filling
	DefaultMinSpread = "0"

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultChainIDs defines the default corridor
	DefaultChainIDs = "1500,8453"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5 * time.Second

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15 * time.Second
)

// GetEnvRelayerAddress returns the relayer address from environment variables
func GetEnvRelayerAddress() (types.Address, error) {
	raw := os.Getenv("RELAYER_ADDRESS")
	if raw == "" {
		return types.Address{}, fmt.Errorf("RELAYER_ADDRESS environment variable is required")
	}

	addr, ok := types.AddressFromHex(raw)
	if !ok {
		return types.Address{}, fmt.Errorf("invalid RELAYER_ADDRESS value: %s, must be a hex-encoded address", raw)
	}
	return addr, nil
}

// GetEnvRepaymentAddress returns the repayment address from environment
// variables, defaulting to the relayer address itself
func GetEnvRepaymentAddress(relayer types.Address) (types.Address, error) {
	raw := os.Getenv("REPAYMENT_ADDRESS")
	if raw == "" {
		return relayer, nil
	}

	addr, ok := types.AddressFromHex(raw)
	if !ok {
		return types.Address{}, fmt.Errorf("invalid REPAYMENT_ADDRESS value: %s, must be a hex-encoded address", raw)
	}
	return addr, nil
}

// GetEnvFeeBps returns the protocol fee in basis points from environment variables
func GetEnvFeeBps() (int64, error) {
	raw := os.Getenv("FEE_BPS")
	if raw == "" {
		return DefaultFeeBps, nil
	}

	bps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid FEE_BPS value: %s, must be an integer", raw)
	}
	if bps < 0 || bps > fees.MaxFeeBps {
		return 0, fmt.Errorf("FEE_BPS must be between 0 and %d", fees.MaxFeeBps)
	}
	return bps, nil
}

// GetEnvFallbackRelayer returns the fallback relayer address from environment
// variables. An empty value disables the fallback path.
func GetEnvFallbackRelayer() (types.Address, error) {
	raw := os.Getenv("FALLBACK_RELAYER")
	if raw == "" {
		return types.Address{}, nil
	}

	addr, ok := types.AddressFromHex(raw)
	if !ok {
		return types.Address{}, fmt.Errorf("invalid FALLBACK_RELAYER value: %s, must be a hex-encoded address", raw)
	}
	return addr, nil
}

// GetEnvFallbackThreshold returns the exclusivity window duration from environment variables
func GetEnvFallbackThreshold() (time.Duration, error) {
	raw := os.Getenv("FALLBACK_THRESHOLD")
	if raw == "" {
		return DefaultFallbackThreshold, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid FALLBACK_THRESHOLD value: %s, must be a valid duration string", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("FALLBACK_THRESHOLD must not be negative")
	}
	return parsed, nil
}

// GetEnvAdapterOrder returns the messenger adapter preference order from
// environment variables, as a comma-separated list of adapter IDs
func GetEnvAdapterOrder() ([]uint8, error) {
	raw := os.Getenv("ADAPTER_ORDER")
	if raw == "" {
		raw = DefaultAdapterOrder
	}

	parts := strings.Split(raw, ",")
	order := make([]uint8, 0, len(parts))
	seen := make(map[uint8]bool)
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid ADAPTER_ORDER value: %s, must be a comma-separated list of adapter IDs", raw)
		}
		if seen[uint8(id)] {
			return nil, fmt.Errorf("duplicate adapter ID %d in ADAPTER_ORDER", id)
		}
		seen[uint8(id)] = true
		order = append(order, uint8(id))
	}
	return order, nil
}

// GetEnvRescanInterval returns the pending-intent rescan interval in seconds from environment variables
func GetEnvRescanInterval() (time.Duration, error) {
	raw := os.Getenv("RESCAN_INTERVAL")
	if raw == "" {
		return time.Duration(DefaultRescanInterval) * time.Second, nil
	}

	interval, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid RESCAN_INTERVAL value: %s, must be an integer", raw)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("RESCAN_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	raw := os.Getenv("WORKER_COUNT")
	if raw == "" {
		return DefaultWorkerCount, nil
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid WORKER_COUNT value: %s, must be an integer", raw)
	}
	if count <= 0 {
		return 0, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	return count, nil
}

// GetEnvMaxRetries returns the maximum number of retries from environment variables
func GetEnvMaxRetries() (int, error) {
	raw := os.Getenv("MAX_RETRIES")
	if raw == "" {
		return DefaultMaxRetries, nil
	}

	maxRetries, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_RETRIES value: %s, must be an integer", raw)
	}
	if maxRetries < 0 {
		return 0, fmt.Errorf("MAX_RETRIES must be greater than or equal to 0")
	}
	return maxRetries, nil
}

// GetEnvMinSpread returns the minimum profitable spread from environment variables
func GetEnvMinSpread() (*big.Int, error) {
	raw := os.Getenv("MIN_SPREAD")
	if raw == "" {
		raw = DefaultMinSpread
	}

	spread := new(big.Int)
	if _, ok := spread.SetString(raw, 10); !ok {
		return nil, fmt.Errorf("invalid MIN_SPREAD value: %s, must be a valid integer string", raw)
	}
	if spread.Sign() < 0 {
		return nil, fmt.Errorf("MIN_SPREAD must be greater than or equal to 0")
	}
	return spread, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvMetricsAPIKey returns the metrics API key. Empty disables auth.
func GetEnvMetricsAPIKey() string {
	return os.Getenv("METRICS_API_KEY")
}

// GetEnvChainConfigs returns the chain configurations from environment
// variables, as a comma-separated list of chain IDs
func GetEnvChainConfigs() ([]ChainConfig, error) {
	raw := os.Getenv("CHAIN_IDS")
	if raw == "" {
		raw = DefaultChainIDs
	}

	parts := strings.Split(raw, ",")
	chains := make([]ChainConfig, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAIN_IDS value: %s, must be a comma-separated list of chain IDs", raw)
		}
		chains = append(chains, ChainConfig{ChainID: id})
	}
	return chains, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch strings.ToLower(level) {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}
