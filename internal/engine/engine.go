package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/adaptive-amm/apo/internal/analyzer"
	"github.com/adaptive-amm/apo/internal/config"
	"github.com/adaptive-amm/apo/internal/consensus"
	"github.com/adaptive-amm/apo/internal/deploy"
	"github.com/adaptive-amm/apo/internal/feedback"
	"github.com/adaptive-amm/apo/internal/genetic"
	"github.com/adaptive-amm/apo/internal/logger"
	"github.com/adaptive-amm/apo/internal/market"
	"github.com/adaptive-amm/apo/internal/policy"
	"github.com/adaptive-amm/apo/internal/safety"
	"github.com/adaptive-amm/apo/internal/state"
	"github.com/adaptive-amm/apo/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Export constants for use in main.go
	DEFAULT_OPTIMIZER_CONFIG_NAME    = "default_apo_strategy"
	DEFAULT_OPTIMIZER_CONFIG_VERSION = 1
)

// pendingUpdate is the state/action pair awaiting its realized reward.
// The reward for a deployment only materializes one cycle later, when
// the performance reader has observed the parameters live.
type pendingUpdate struct {
	stateKey string
	action   int
	params   types.ParameterSet
}

// Optimizer is the adaptive parameter optimization engine: it owns the
// learning state and drives the periodic observe-decide-deploy loop.
type Optimizer struct {
	// Core dependencies
	logger   zerolog.Logger
	market   *market.Client
	roi      *market.ROIClient
	deployer deploy.Deployer

	// Configuration
	cfg           types.OptimizerParameters
	poolID        uint64
	configName    string
	configVersion int

	// Learning state. Everything below mu is owned by the engine and
	// mutated only while holding it.
	mu           sync.Mutex
	policy       *policy.QPolicy
	refiner      *genetic.Refiner
	blender      *consensus.Blender
	gate         *safety.Gate
	emergency    *safety.EmergencyController
	history      *feedback.History
	lastDeployed *types.ParameterSet
	pending      *pendingUpdate

	// emergencyGen counts emergency deployments. A normal cycle records
	// it before releasing the lock for its deploy call; if the counter
	// moved while the call was in flight, the conservative set is
	// authoritative and the cycle's result is discarded.
	emergencyGen uint64

	cycleCount           int
	lastOptimizationTime time.Time
	lastRejectionReason  string
}

// Config holds the configuration for creating a new Optimizer instance
type Config struct {
	Params        types.OptimizerParameters
	MarketClient  *market.Client
	ROIClient     *market.ROIClient
	Deployer      deploy.Deployer
	PoolID        uint64
	ConfigName    string
	ConfigVersion int

	// Rng seeds the policy and refiner. Nil gets a time-seeded source.
	Rng *rand.Rand
}

// NewOptimizer creates a new engine instance with dependency injection
func NewOptimizer(cfg Config) (*Optimizer, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	o := &Optimizer{
		logger:        logger.GetForComponent("engine_core"),
		market:        cfg.MarketClient,
		roi:           cfg.ROIClient,
		deployer:      cfg.Deployer,
		cfg:           cfg.Params,
		poolID:        cfg.PoolID,
		configName:    cfg.ConfigName,
		configVersion: cfg.ConfigVersion,
		policy:        policy.NewQPolicy(cfg.Params, rng, logger.GetForComponent("policy")),
		refiner:       genetic.NewRefiner(cfg.Params, rng, logger.GetForComponent("genetic")),
		blender:       consensus.NewBlender(cfg.Params.Bounds, logger.GetForComponent("consensus")),
		gate:          safety.NewGate(cfg.Params),
		emergency:     safety.NewEmergencyController(cfg.Params, logger.GetForComponent("emergency")),
		history:       feedback.NewHistory(cfg.Params.HistoryCapacity),
	}

	o.logger.Info().
		Str("configName", o.configName).
		Int("configVersion", o.configVersion).
		Uint64("poolID", o.poolID).
		Str("deployMode", o.deployer.Mode()).
		Msg("Optimizer instance created successfully with dependency injection")

	return o, nil
}

// validateConfig validates the engine configuration
func validateConfig(cfg Config) error {
	if cfg.MarketClient == nil {
		return fmt.Errorf("market client cannot be nil")
	}
	if cfg.Deployer == nil {
		return fmt.Errorf("deployer cannot be nil")
	}
	if cfg.ConfigName == "" {
		return fmt.Errorf("config name cannot be empty")
	}
	if cfg.ConfigVersion <= 0 {
		return fmt.Errorf("config version must be positive")
	}
	if cfg.Params.CycleInterval <= 0 {
		return fmt.Errorf("cycle interval must be positive")
	}
	return nil
}

// RestoreState loads the persisted Q-table snapshot and the last
// deployed parameter set so learning survives restarts. Missing
// persisted state is not an error; the engine just starts cold.
func (o *Optimizer) RestoreState() {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap, err := state.LoadLatestQTableSnapshot()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to load Q-table snapshot, starting with empty table")
	} else if snap != nil {
		o.policy.Restore(*snap)
		o.logger.Info().Int("states", o.policy.Size()).Msg("Restored Q-table from snapshot")
	}

	deployed, err := state.LoadActiveDeployedParameters()
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to load last deployed parameters")
	} else if deployed != nil {
		o.lastDeployed = deployed
		o.lastOptimizationTime = time.Unix(deployed.LastUpdate, 0)
		o.logger.Info().
			Int64("feeRate", deployed.FeeRate).
			Int64("spread", deployed.SpreadMultiplier).
			Msg("Restored last deployed parameters")
	}
}

// Run starts the main engine loop: the optimization cycle ticker, the
// faster emergency volatility monitor, and the health check ticker. It
// blocks until the context is cancelled, then persists learning state.
func (o *Optimizer) Run(ctx context.Context) {
	o.logger.Info().
		Dur("cycleInterval", o.cfg.CycleInterval).
		Dur("emergencyInterval", o.cfg.EmergencyCheckInterval).
		Dur("healthInterval", o.cfg.HealthCheckInterval).
		Msg("Starting engine main loop")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.runEmergencyMonitor(ctx)
	}()
	go func() {
		defer wg.Done()
		o.runHealthChecks(ctx)
	}()

	ticker := time.NewTicker(o.cfg.CycleInterval)
	defer ticker.Stop()

	// Run first cycle immediately
	o.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("Engine loop stopped due to context cancellation")
			wg.Wait()
			o.persistState()
			return
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

// RunCycle executes a complete optimization cycle
func (o *Optimizer) RunCycle(ctx context.Context) {
	cycleStartTime := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := o.logger.With().Str("cycle_id", cycleID).Logger()

	cycleLogger.Info().Msg("--- Starting Optimization Cycle ---")

	cycleNumber := o.nextCycleNumber()

	// --- Step 1: Observe the market ---
	cycleLogger.Info().Msg("Step 1: Fetching market analysis...")
	analysis, err := o.market.FetchAnalysis(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: Failed to fetch market analysis.")
		return
	}

	// --- Step 2: Settle the previous deployment's reward ---
	cycleLogger.Info().Msg("Step 2: Settling performance feedback...")
	o.settleFeedback(ctx, cycleLogger)

	// --- Step 3: Pull the ROI recommendation ---
	// Fetched before taking the lock: the pull is a network call and the
	// emergency monitor must never wait on one to run Observe.
	roiRec := o.latestROI(ctx, cycleLogger)

	// --- Step 4: Encode state and select an action ---
	marketState := analyzer.EncodeMarketState(analysis)
	stateKey := policy.StateKey(marketState)

	o.mu.Lock()
	o.cycleCount++

	if roiRec != nil {
		o.policy.TuneLearningRate(roiRec.Confidence)
	} else {
		o.policy.TuneLearningRate(0)
	}

	decision := o.policy.SelectAction(marketState)
	baseParams := o.activeParameters()
	candidate := policy.ApplyAction(baseParams, decision.Action, o.cfg)

	cycleLogger.Info().
		Str("state", stateKey).
		Str("action", policy.ActionName(decision.Action)).
		Float64("confidence", decision.Confidence).
		Str("reasoning", decision.Reasoning).
		Msg("Step 4: Action selected.")

	// --- Step 5: Genetic refinement ---
	env := genetic.Environment{
		Volatility: analysis.Overview.AvgVolatility,
		RiskScore:  analysis.Risk.RiskScore,
		ROITarget:  roiRec,
	}
	if latest, ok := o.history.Latest(); ok {
		env.Profitability = latest.Profitability
		env.HasHistory = true
	}

	refined, fitness, err := o.refiner.Refine(candidate, env)
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Genetic refinement failed, using unrefined candidate")
		refined = candidate
		fitness = 0
	}
	cycleLogger.Info().
		Int64("feeRate", refined.FeeRate).
		Int64("spread", refined.SpreadMultiplier).
		Float64("fitness", fitness).
		Msg("Step 5: Genetic refinement complete.")

	// --- Step 6: Consensus blend ---
	blended := o.blender.Blend(consensus.Candidate{
		Parameters: refined,
		Confidence: decision.Confidence,
		Reasoning:  []string{decision.Reasoning},
	}, roiRec)
	blended.ExpectedImprovement = fitness

	// --- Step 7: Safety gate ---
	now := time.Now()
	emergencyActive := o.emergency.Active()
	verdict := o.gate.Evaluate(blended, o.lastDeployed, emergencyActive, now)

	cycleDecision := types.CycleDecision{
		CycleNumber:   cycleNumber,
		Timestamp:     now,
		State:         marketState,
		ActionIndex:   decision.Action,
		Decision:      blended,
		Approved:      verdict.Approved,
		EmergencyMode: emergencyActive,
	}

	if !verdict.Approved {
		o.lastRejectionReason = verdict.ReasonCode
		cycleDecision.RejectionReason = verdict.ReasonCode
		o.mu.Unlock()

		cycleLogger.Warn().
			Str("reason", verdict.ReasonCode).
			Str("detail", verdict.Detail).
			Msg("Step 7: Candidate rejected by safety gate.")
		o.saveCycleDecision(cycleDecision)
		o.logCycleDuration(cycleStartTime, cycleLogger)
		return
	}
	o.lastRejectionReason = ""
	genBefore := o.emergencyGen
	o.mu.Unlock()

	cycleLogger.Info().Float64("confidence", blended.Confidence).Msg("Step 7: Candidate approved by safety gate.")

	// --- Step 8: Deploy ---
	// The deploy call runs outside the mutex; only the bookkeeping after
	// a confirmed deployment takes it again.
	result, err := o.deployer.Deploy(ctx, blended.Parameters)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Deployment failed, parameters remain unchanged.")
		o.saveCycleDecision(cycleDecision)
		o.logCycleDuration(cycleStartTime, cycleLogger)
		return
	}

	cycleDecision.Deployed = true
	cycleDecision.DeployReference = result.Reference

	deployed, kept := o.recordDeployment(blended.Parameters, result, stateKey, decision.Action, genBefore)
	if !kept {
		cycleLogger.Warn().
			Str("reference", result.Reference).
			Msg("Emergency deployment landed mid-cycle, conservative parameters stay authoritative")
		o.saveCycleDecision(cycleDecision)
		o.logCycleDuration(cycleStartTime, cycleLogger)
		return
	}

	if _, err := state.SaveDeployedParameters(deployed, emergencyActive, result.Reference); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist deployed parameters")
	}

	cycleLogger.Info().
		Str("reference", result.Reference).
		Int64("feeRate", deployed.FeeRate).
		Int64("spread", deployed.SpreadMultiplier).
		Msg("Step 8: Parameters deployed.")

	o.saveCycleDecision(cycleDecision)
	o.logCycleDuration(cycleStartTime, cycleLogger)
	cycleLogger.Info().Msg("--- Optimization Cycle Completed Successfully ---")
}

// recordDeployment commits the bookkeeping for a confirmed normal-cycle
// deployment. If an emergency deployment landed while the deploy call
// was in flight (the generation counter moved past genBefore), the
// conservative set stays authoritative and the result is discarded.
func (o *Optimizer) recordDeployment(params types.ParameterSet, result *types.DeploymentResult, stateKey string, action int, genBefore uint64) (types.ParameterSet, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.emergencyGen != genBefore {
		return types.ParameterSet{}, false
	}

	deployed := params.Clone()
	deployed.LastUpdate = result.Timestamp.Unix()
	deployed.IsActive = true
	o.lastDeployed = &deployed
	o.lastOptimizationTime = result.Timestamp
	o.pending = &pendingUpdate{stateKey: stateKey, action: action, params: deployed}
	return deployed, true
}

// recordEmergencyDeployment commits a conservative deployment and bumps
// the generation counter so any normal-cycle deploy still in flight is
// discarded when it completes.
func (o *Optimizer) recordEmergencyDeployment(conservative types.ParameterSet, result *types.DeploymentResult) types.ParameterSet {
	o.mu.Lock()
	defer o.mu.Unlock()

	deployed := conservative.Clone()
	deployed.LastUpdate = result.Timestamp.Unix()
	deployed.IsActive = true
	o.lastDeployed = &deployed
	o.lastOptimizationTime = result.Timestamp
	// Any pending reward belongs to parameters that are no longer live.
	o.pending = nil
	o.emergencyGen++
	return deployed
}

// settleFeedback fetches realized performance for the previous
// deployment and applies the Q-learning update. Missing metrics skip
// the update entirely rather than fabricating a reward.
func (o *Optimizer) settleFeedback(ctx context.Context, cycleLogger zerolog.Logger) {
	o.mu.Lock()
	pending := o.pending
	o.mu.Unlock()

	if pending == nil {
		cycleLogger.Debug().Msg("No pending deployment awaiting feedback")
		return
	}

	metrics, err := o.market.FetchPerformance(ctx, o.poolID)
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Performance metrics unavailable, skipping reward update")
		return
	}

	reward := feedback.Reward(*metrics)
	record := feedback.NewRecord(pending.params, *metrics, time.Now())

	o.mu.Lock()
	o.policy.Update(pending.stateKey, pending.action, reward)
	o.history.Append(record)
	o.pending = nil
	o.mu.Unlock()

	if _, err := state.SavePerformanceRecord(record); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist performance record")
	}

	cycleLogger.Info().
		Float64("reward", reward).
		Float64("profitability", metrics.Profitability).
		Float64("volumeChange", metrics.VolumeChange).
		Msg("Reward settled for previous deployment")
}

// runEmergencyMonitor polls volatility on the fast interval and forces
// conservative parameters the moment the threshold is crossed. It does
// not wait for the optimization cycle.
func (o *Optimizer) runEmergencyMonitor(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.EmergencyCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.emergencyCheck(ctx)
		}
	}
}

func (o *Optimizer) emergencyCheck(ctx context.Context) {
	analysis, err := o.market.FetchAnalysis(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Emergency check skipped: market analysis unavailable")
		return
	}

	now := time.Now()
	o.mu.Lock()
	transition, conservative := o.emergency.Observe(analysis.Overview.AvgVolatility, now)
	o.mu.Unlock()

	if transition != safety.TransitionEntered || conservative == nil {
		return
	}

	// Conservative parameters bypass the normal pipeline: they are the
	// defensive posture, not a candidate to be second-guessed.
	result, err := o.deployer.Deploy(ctx, *conservative)
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to deploy conservative emergency parameters")
		return
	}

	deployed := o.recordEmergencyDeployment(*conservative, result)

	if _, err := state.SaveDeployedParameters(deployed, true, result.Reference); err != nil {
		o.logger.Error().Err(err).Msg("Failed to persist emergency deployment")
	}

	o.logger.Warn().
		Float64("volatility", analysis.Overview.AvgVolatility).
		Int64("feeRate", deployed.FeeRate).
		Int64("spread", deployed.SpreadMultiplier).
		Str("reference", result.Reference).
		Msg("Emergency mode entered, conservative parameters deployed")
}

// runHealthChecks periodically logs a status snapshot and verifies the
// database connection. Read-only; never mutates learning state.
func (o *Optimizer) runHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := o.Status()
			event := o.logger.Info().
				Bool("emergencyMode", snapshot.EmergencyMode).
				Int("cycleCount", snapshot.CycleCount).
				Int("qTableSize", snapshot.QTableSize).
				Int("historySize", snapshot.HistorySize).
				Int64("activeFeeRate", snapshot.ActiveFeeRate).
				Int64("activeSpread", snapshot.ActiveSpread)
			if err := state.TestDBConnection(); err != nil {
				o.logger.Error().Err(err).Msg("Health check: database connection unhealthy")
			}
			event.Msg("Health check")
		}
	}
}

// Status returns a copy of the engine's observable state.
func (o *Optimizer) Status() types.StatusSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snapshot := types.StatusSnapshot{
		Mode:                 o.deployer.Mode(),
		EmergencyMode:        o.emergency.Active(),
		CycleCount:           o.cycleCount,
		LastOptimizationTime: o.lastOptimizationTime,
		QTableSize:           o.policy.Size(),
		HistorySize:          o.history.Size(),
		LastRejectionReason:  o.lastRejectionReason,
	}
	if o.lastDeployed != nil {
		snapshot.ActiveFeeRate = o.lastDeployed.FeeRate
		snapshot.ActiveSpread = o.lastDeployed.SpreadMultiplier
	}
	return snapshot
}

// activeParameters returns the baseline for the next candidate: the
// last deployed set if one exists, otherwise the configured default.
// Caller must hold o.mu.
func (o *Optimizer) activeParameters() types.ParameterSet {
	if o.lastDeployed != nil {
		return o.lastDeployed.Clone()
	}
	return config.DefaultParameterSet(o.cfg.AssetCount)
}

// persistState snapshots the Q-table on shutdown.
func (o *Optimizer) persistState() {
	o.mu.Lock()
	snap := o.policy.Snapshot()
	o.mu.Unlock()

	if len(snap.States) == 0 {
		o.logger.Info().Msg("Q-table empty, nothing to persist")
		return
	}
	if _, err := state.SaveQTableSnapshot(snap); err != nil {
		o.logger.Error().Err(err).Msg("Failed to persist Q-table snapshot")
		return
	}
	o.logger.Info().Int("states", len(snap.States)).Msg("Q-table snapshot persisted on shutdown")
}

// latestROI returns a fresh ROI recommendation or nil. A nil client
// (configured without the ROI module) degrades to ML-only blending.
func (o *Optimizer) latestROI(ctx context.Context, cycleLogger zerolog.Logger) *types.ROIRecommendation {
	if o.roi == nil {
		return nil
	}
	rec, err := o.roi.Latest(ctx)
	if err != nil {
		cycleLogger.Debug().Err(err).Msg("No fresh ROI recommendation, blending ML-only")
		return nil
	}
	return rec
}

// nextCycleNumber increments and returns the persistent cycle counter from database
func (o *Optimizer) nextCycleNumber() int {
	cycleNumber, err := state.IncrementCycleNumber()
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to increment cycle number, using fallback")
		// Fallback to a simple counter if database fails
		return int(time.Now().Unix() % 1000000) // Use timestamp as fallback
	}
	return cycleNumber
}

// saveCycleDecision saves the cycle decision record to database
func (o *Optimizer) saveCycleDecision(decision types.CycleDecision) {
	decisionID, err := state.SaveCycleDecision(decision)
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to save cycle decision to database")
		return
	}
	o.logger.Info().Int64("decision_id", decisionID).Msg("Cycle decision saved successfully")
}

func (o *Optimizer) logCycleDuration(cycleStartTime time.Time, cycleLogger zerolog.Logger) {
	cycleLogger.Info().Str("cycleDuration", time.Since(cycleStartTime).String()).Msg("Optimization Cycle Duration")
}
