package sim

import (
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible episode sequence.
// Two environments with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical observations and rewards.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

// Every stochastic call site in the step pipeline draws from its own subsystem,
// so adding a draw in one stage never shifts the sequence seen by another.
const (
	// SubsystemWages samples household wages at reset and on immigration.
	SubsystemWages = "wages"

	// SubsystemPrices drives the daily raw-material price fluctuation.
	SubsystemPrices = "prices"

	// SubsystemEmployment drives firm hire/fire coin flips.
	SubsystemEmployment = "employment"

	// SubsystemShock decides whether a shock fires this step.
	SubsystemShock = "shock"

	// SubsystemExit drives household exit decisions.
	SubsystemExit = "exit"

	// SubsystemImmigration decides whether a household joins this step.
	SubsystemImmigration = "immigration"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Each environment owns its own PartitionedRNG;
// parallel episodes use separate environments.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// uniformInt draws an integer uniformly from [lo, hi] inclusive.
func uniformInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// uniformFloat draws a float uniformly from [lo, hi).
func uniformFloat(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
