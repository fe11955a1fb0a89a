package safety

import (
	"time"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
	"github.com/rs/zerolog"
)

// Mode is the emergency controller state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeEmergency
)

func (m Mode) String() string {
	if m == ModeEmergency {
		return "EMERGENCY"
	}
	return "NORMAL"
}

// Transition describes what an observation did to the controller state.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionEntered
	TransitionExited
)

// Hard ceilings on the conservative parameter set, below the absolute
// bounds so an extreme volatility reading cannot push fees off the map.
const (
	emergencyFeeCap     int64 = 500
	emergencySpreadCap  int64 = 3000
	emergencySpreadBase int64 = 1500
)

// EmergencyController is the two-state protective controller. It enters
// EMERGENCY when measured aggregate volatility crosses the threshold and
// exits with hysteresis at exitFactor x threshold. It is not safe for
// concurrent use; the engine serializes access.
type EmergencyController struct {
	cfg    types.OptimizerParameters
	logger zerolog.Logger

	mode      Mode
	enteredAt time.Time
	lastVol   float64
}

// NewEmergencyController creates a controller in NORMAL state.
func NewEmergencyController(cfg types.OptimizerParameters, logger zerolog.Logger) *EmergencyController {
	return &EmergencyController{cfg: cfg, logger: logger, mode: ModeNormal}
}

// Mode returns the current state.
func (c *EmergencyController) Mode() Mode {
	return c.mode
}

// Active reports whether the controller is in EMERGENCY.
func (c *EmergencyController) Active() bool {
	return c.mode == ModeEmergency
}

// Observe feeds a raw aggregate volatility measurement into the state
// machine. On the NORMAL->EMERGENCY transition it returns the
// conservative parameter set to deploy immediately; every other outcome
// returns nil parameters. Exiting EMERGENCY performs no deployment by
// itself, it only clears the flag.
func (c *EmergencyController) Observe(volatility float64, now time.Time) (Transition, *types.ParameterSet) {
	c.lastVol = volatility

	switch c.mode {
	case ModeNormal:
		if volatility > c.cfg.EmergencyThreshold {
			c.mode = ModeEmergency
			c.enteredAt = now
			params := c.conservativeParameters(volatility, now)
			c.logger.Warn().
				Float64("volatility", volatility).
				Float64("threshold", c.cfg.EmergencyThreshold).
				Int64("fee_rate", params.FeeRate).
				Int64("spread", params.SpreadMultiplier).
				Msg("Entering EMERGENCY mode, deploying conservative parameters")
			return TransitionEntered, params
		}
	case ModeEmergency:
		if volatility < c.cfg.EmergencyExitFactor*c.cfg.EmergencyThreshold {
			c.mode = ModeNormal
			c.logger.Info().
				Float64("volatility", volatility).
				Dur("emergency_duration", now.Sub(c.enteredAt)).
				Msg("Exiting EMERGENCY mode")
			return TransitionExited, nil
		}
	}
	return TransitionNone, nil
}

// conservativeParameters builds the defensive set deployed on entering
// EMERGENCY: fee = min(500, volatility·1000), spread = min(3000,
// 1500 + volatility·2000), equal weights, still clamped into the
// absolute bounds.
func (c *EmergencyController) conservativeParameters(volatility float64, now time.Time) *types.ParameterSet {
	fee := utils.RoundToInt64(volatility*1000, emergencyFeeCap)
	if fee > emergencyFeeCap {
		fee = emergencyFeeCap
	}
	spread := utils.RoundToInt64(float64(emergencySpreadBase)+volatility*2000, emergencySpreadCap)
	if spread > emergencySpreadCap {
		spread = emergencySpreadCap
	}

	params := types.ParameterSet{
		FeeRate:          c.cfg.Bounds.ClampFee(fee),
		SpreadMultiplier: c.cfg.Bounds.ClampSpread(spread),
		Weights:          types.EqualWeights(c.cfg.AssetCount),
		LastUpdate:       now.Unix(),
	}
	return &params
}
