package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment
// variables. These are populated at startup by the LoadConfig function.
var (
	// Mode is the run mode: "live" broadcasts approved deployments to
	// the deployment executor, anything else runs dry.
	Mode string

	// PoolID identifies the pool this optimizer instance manages.
	PoolID uint64

	// MarketAnalyzerURL is the base URL of the external market analyzer.
	MarketAnalyzerURL string
	// ROIServiceURL is the base URL of the external ROI strategy module.
	ROIServiceURL string
	// DeployerURL is the base URL of the external deployment executor.
	DeployerURL string

	// RedisAddr is the address of the Redis instance used for the ROI
	// recommendation event channel. Empty disables the subscription and
	// the engine falls back to pull-only delivery.
	RedisAddr string
	// RedisChannel is the pub/sub channel ROI recommendations arrive on.
	RedisChannel string

	// WebPort is the port for the monitoring HTTP server.
	WebPort string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Collaborator endpoints are required; everything
// else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PoolID, err = getEnvAsUint64("APO_POOL_ID")
	if err != nil {
		return err
	}

	MarketAnalyzerURL, err = getEnv("MARKET_ANALYZER_URL")
	if err != nil {
		return err
	}

	ROIServiceURL, err = getEnv("ROI_SERVICE_URL")
	if err != nil {
		return err
	}

	DeployerURL, err = getEnv("DEPLOYER_URL")
	if err != nil {
		return err
	}

	Mode = getEnvOr("APO_MODE", "")
	RedisAddr = getEnvOr("REDIS_ADDR", "")
	RedisChannel = getEnvOr("REDIS_ROI_CHANNEL", "apo.roi.recommendations")
	WebPort = getEnvOr("WEB_PORT", "8080")

	log.Debug().
		Uint64("PoolID", PoolID).
		Str("MarketAnalyzerURL", MarketAnalyzerURL).
		Str("ROIServiceURL", ROIServiceURL).
		Str("DeployerURL", DeployerURL).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a fallback.
func getEnvOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns
// error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// GetEnvAsDuration retrieves an optional duration override (e.g.
// "45s", "2m") used to tune scheduling intervals per deployment.
func GetEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid duration override, using default")
		return fallback
	}
	return value
}
