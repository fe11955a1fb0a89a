package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/adaptive-amm/apo/internal/config"
	"github.com/adaptive-amm/apo/internal/deploy"
	"github.com/adaptive-amm/apo/internal/engine"
	"github.com/adaptive-amm/apo/internal/logger"
	"github.com/adaptive-amm/apo/internal/market"
	"github.com/adaptive-amm/apo/internal/state"
	"github.com/adaptive-amm/apo/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the adaptive parameter optimization engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("APO Engine Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Optimizer Parameters
	optimizerParams, err := state.LoadActiveOptimizerParameters(engine.DEFAULT_OPTIMIZER_CONFIG_NAME)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active optimizer parameters, using defaults and saving.")
		defaultParams := config.DefaultOptimizerParameters
		if _, err := state.SaveOptimizerParameters(defaultParams, engine.DEFAULT_OPTIMIZER_CONFIG_NAME, engine.DEFAULT_OPTIMIZER_CONFIG_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default optimizer parameters.")
		}
		optimizerParams = &defaultParams
	}
	log.Info().Msg("Optimizer parameters loaded successfully.")

	// Create context for graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- 2. External Collaborator Clients ---
	marketClient := market.NewClient(config.MarketAnalyzerURL)

	roiClient := market.NewROIClient(config.ROIServiceURL, config.RedisAddr, config.RedisChannel, optimizerParams.ROIStaleAfter)
	roiClient.Start(ctx)
	defer roiClient.Close()

	// --- 3. Deployer Initialization (with Safety Switch) ---
	var deployer deploy.Deployer
	if config.Mode == "live" {
		log.Warn().Msg("Initializing APO in LIVE mode. Approved parameters will be broadcast to the deployment executor.")
		deployer = deploy.NewHTTPDeployer(config.DeployerURL, config.PoolID)
	} else {
		log.Warn().Msg("APO_MODE is not set to 'live'. Running in dry-run mode; deployments are recorded but not broadcast.")
		deployer = deploy.NewDryRunDeployer()
	}
	defer deployer.Close()

	// --- 4. Create Engine Instance with Dependency Injection ---
	log.Info().Msg("Creating engine instance with dependency injection...")

	engineConfig := engine.Config{
		Params:        *optimizerParams,
		MarketClient:  marketClient,
		ROIClient:     roiClient,
		Deployer:      deployer,
		PoolID:        config.PoolID,
		ConfigName:    engine.DEFAULT_OPTIMIZER_CONFIG_NAME,
		ConfigVersion: engine.DEFAULT_OPTIMIZER_CONFIG_VERSION,
	}

	optimizer, err := engine.NewOptimizer(engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine instance")
	}

	optimizer.RestoreState()
	log.Info().Msg("Engine instance created successfully")

	// --- Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, optimizer, engine.DEFAULT_OPTIMIZER_CONFIG_NAME)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting APO monitoring server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Start Engine Main Loop ---
	// Blocks until the shutdown signal arrives, then persists state.
	optimizer.Run(ctx)

	log.Info().Msg("APO Engine stopped.")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
