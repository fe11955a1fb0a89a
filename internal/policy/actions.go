package policy

import (
	"github.com/adaptive-amm/apo/internal/types"
)

// ApplyAction produces the candidate parameter set that results from
// applying a discrete action to the base set, clamped into the absolute
// bounds. Weights pass through untouched.
func ApplyAction(base types.ParameterSet, action int, cfg types.OptimizerParameters) types.ParameterSet {
	out := base.Clone()

	switch action {
	case ActionIncreaseFee:
		out.FeeRate += cfg.FeeStep
	case ActionDecreaseFee:
		out.FeeRate -= cfg.FeeStep
	case ActionIncreaseSpread:
		out.SpreadMultiplier += cfg.SpreadStep
	case ActionDecreaseSpread:
		out.SpreadMultiplier -= cfg.SpreadStep
	case ActionIncreaseBoth:
		out.FeeRate += cfg.FeeStep
		out.SpreadMultiplier += cfg.SpreadStep
	case ActionDecreaseBoth:
		out.FeeRate -= cfg.FeeStep
		out.SpreadMultiplier -= cfg.SpreadStep
	case ActionLargeIncreaseFee:
		out.FeeRate += cfg.LargeFeeStep
	case ActionLargeDecreaseFee:
		out.FeeRate -= cfg.LargeFeeStep
	}

	out.FeeRate = cfg.Bounds.ClampFee(out.FeeRate)
	out.SpreadMultiplier = cfg.Bounds.ClampSpread(out.SpreadMultiplier)
	return out
}
