// Package genetic implements the population-based local search that
// fine-tunes the continuous parameter values around the policy's chosen
// candidate.
package genetic

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/adaptive-amm/apo/internal/types"
	"github.com/adaptive-amm/apo/internal/utils"
	"github.com/rs/zerolog"
)

// Seeding spreads around the base individual, per field.
const (
	seedFeeSpread    = 0.20
	seedSpreadSpread = 0.20
	seedWeightSpread = 0.10
)

// Mutation strengths, per field.
const (
	feeMutationStrength    = 0.2
	spreadMutationStrength = 0.2
	weightMutationStrength = 0.1
)

// Environment is the per-cycle context the fitness function evaluates
// candidates against.
type Environment struct {
	Volatility    float64 // raw aggregate volatility (fraction)
	RiskScore     float64 // normalized [0,1]
	Profitability float64 // most recent realized profitability
	HasHistory    bool    // whether Profitability comes from real records
	ROITarget     *types.ROIRecommendation
}

type individual struct {
	params  types.ParameterSet
	fitness float64
}

// Refiner runs the genetic search. A local rand.Rand is injected to keep
// runs reproducible and race-free.
type Refiner struct {
	cfg    types.OptimizerParameters
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewRefiner creates a refiner with the given configuration.
func NewRefiner(cfg types.OptimizerParameters, rng *rand.Rand, logger zerolog.Logger) *Refiner {
	return &Refiner{cfg: cfg, rng: rng, logger: logger}
}

// Refine runs the fixed-generation search seeded around base and returns
// the best individual of the final population along with its fitness.
// Termination is generation-count based, never convergence based. Any
// degenerate input surfaces as an error so the caller can fall back to
// the unmodified base set.
func (r *Refiner) Refine(base types.ParameterSet, env Environment) (types.ParameterSet, float64, error) {
	if len(base.Weights) == 0 {
		return base, 0, fmt.Errorf("base parameter set has no weights")
	}
	if types.WeightsSum(base.Weights) == 0 {
		return base, 0, fmt.Errorf("base weight vector sums to zero")
	}
	popSize := r.cfg.PopulationSize
	if popSize < 2 {
		return base, 0, fmt.Errorf("population size %d too small", popSize)
	}

	population := r.seedPopulation(base)

	generations := r.cfg.Generations
	if generations < 1 {
		generations = 1
	}

	for gen := 0; gen < generations; gen++ {
		for i := range population {
			population[i].fitness = r.Fitness(population[i].params, env)
		}
		rank(population)

		if gen < generations-1 {
			population = r.nextGeneration(population)
		}
	}

	best := population[0]
	r.logger.Debug().
		Float64("fitness", best.fitness).
		Int64("fee_rate", best.params.FeeRate).
		Int64("spread", best.params.SpreadMultiplier).
		Msg("Genetic refinement complete")

	return best.params, best.fitness, nil
}

// seedPopulation builds the initial population by mutating the base
// individual within the per-field seeding spreads. The base itself is
// kept as the first individual so refinement can never do worse than the
// policy's candidate on the final ranking.
func (r *Refiner) seedPopulation(base types.ParameterSet) []individual {
	population := make([]individual, r.cfg.PopulationSize)
	population[0] = individual{params: types.ValidateParameters(base.Clone(), r.cfg.Bounds)}

	for i := 1; i < len(population); i++ {
		candidate := base.Clone()
		candidate.FeeRate = r.perturbInt(candidate.FeeRate, seedFeeSpread)
		candidate.SpreadMultiplier = r.perturbInt(candidate.SpreadMultiplier, seedSpreadSpread)
		for w := range candidate.Weights {
			candidate.Weights[w] = r.perturbInt(candidate.Weights[w], seedWeightSpread)
		}
		population[i] = individual{params: types.ValidateParameters(candidate, r.cfg.Bounds)}
	}
	return population
}

// perturbInt applies value ± value·spread·U(−1,1).
func (r *Refiner) perturbInt(value int64, spread float64) int64 {
	delta := float64(value) * spread * (r.rng.Float64()*2 - 1)
	return utils.RoundToInt64(float64(value)+delta, value)
}

// rank sorts descending by fitness. The sort is stable so equal-fitness
// individuals keep population order and the first found wins ties.
func rank(population []individual) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].fitness > population[j].fitness
	})
}

// nextGeneration keeps the elite fraction unchanged and fills the
// remainder with crossover children of parents drawn from the ranked
// survivors, then mutates them.
func (r *Refiner) nextGeneration(ranked []individual) []individual {
	popSize := len(ranked)
	eliteCount := int(float64(popSize) * r.cfg.ElitismRate)
	if eliteCount < 1 {
		eliteCount = 1
	}

	// Parents come from the top half of the ranking.
	survivorCount := popSize / 2
	if survivorCount < 2 {
		survivorCount = 2
	}

	next := make([]individual, popSize)
	for i := 0; i < eliteCount; i++ {
		next[i] = individual{params: ranked[i].params.Clone(), fitness: ranked[i].fitness}
	}

	for i := eliteCount; i < popSize; i++ {
		p1 := ranked[r.rng.Intn(survivorCount)]
		p2 := ranked[r.rng.Intn(survivorCount)]
		child := r.crossover(p1.params, p2.params)
		r.mutate(&child)
		next[i] = individual{params: types.ValidateParameters(child, r.cfg.Bounds)}
	}
	return next
}

// crossover inherits each field from one parent. A single coin flip is
// shared across the scalar fields; each weight element flips its own
// coin.
func (r *Refiner) crossover(a, b types.ParameterSet) types.ParameterSet {
	child := a.Clone()

	if r.rng.Float64() < 0.5 {
		child.FeeRate = b.FeeRate
		child.SpreadMultiplier = b.SpreadMultiplier
	}

	for i := range child.Weights {
		if i < len(b.Weights) && r.rng.Float64() < 0.5 {
			child.Weights[i] = b.Weights[i]
		}
	}
	return child
}

// mutate applies per-field mutation with probability MutationRate using
// the bounded perturbation value ± value·strength·U(−1,1).
func (r *Refiner) mutate(p *types.ParameterSet) {
	if r.rng.Float64() < r.cfg.MutationRate {
		p.FeeRate = r.perturbInt(p.FeeRate, feeMutationStrength)
	}
	if r.rng.Float64() < r.cfg.MutationRate {
		p.SpreadMultiplier = r.perturbInt(p.SpreadMultiplier, spreadMutationStrength)
	}
	for i := range p.Weights {
		if r.rng.Float64() < r.cfg.MutationRate {
			p.Weights[i] = r.perturbInt(p.Weights[i], weightMutationStrength)
		}
	}
}
