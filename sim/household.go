package sim

import "math/rand"

// HappinessMode selects the multiplier pair a household uses when it
// updates happiness. It follows the environment's reward mode.
type HappinessMode int

const (
	// HappinessStandard weighs leftover pay at 0.02 and infrastructure at 0.03.
	HappinessStandard HappinessMode = iota
	// HappinessBasic weighs leftover pay at 0.06 and infrastructure at 0.08.
	HappinessBasic
	// HappinessDarkLord weighs leftover pay at 0.02 and ignores infrastructure.
	HappinessDarkLord
)

const (
	maxHappiness      = 100.0
	infraEffectCap    = 60.0
	defaultHappiness  = 50.0
	severeUnhappiness = 5.0
	mildUnhappiness   = 10.0
)

// Household is a single resident: it earns a wage when employed, pays a
// cost of living, and accumulates happiness step over step.
type Household struct {
	Wage         float64
	Happiness    float64 // always within [0, 100] after an update
	Employed     bool
	CostOfLiving float64
	Mode         HappinessMode
}

// NetPay is the household's after-tax wage, or 0 when unemployed.
func (h *Household) NetPay(taxRate float64) float64 {
	if !h.Employed {
		return 0
	}
	return h.Wage * (1 - taxRate)
}

// Leftover is net pay minus cost of living, floored at 0.
func (h *Household) Leftover(taxRate float64) float64 {
	return max(0, h.NetPay(taxRate)-h.CostOfLiving)
}

// multipliers returns the (leftover, infrastructure) weights for the mode.
func (m HappinessMode) multipliers() (float64, float64) {
	switch m {
	case HappinessBasic:
		return 0.06, 0.08
	case HappinessDarkLord:
		return 0.02, 0
	default:
		return 0.02, 0.03
	}
}

// UpdateHappiness applies one step of pay and infrastructure effects.
// Infrastructure counts at most infraEffectCap; dark-lord households skip it.
func (h *Household) UpdateHappiness(infrastructure, taxRate float64) {
	leftoverMul, infraMul := h.Mode.multipliers()
	h.Happiness += leftoverMul * (h.NetPay(taxRate) - h.CostOfLiving)
	if h.Mode != HappinessDarkLord {
		h.Happiness += infraMul * min(infrastructure, infraEffectCap)
	}
	h.clampHappiness()
}

func (h *Household) clampHappiness() {
	h.Happiness = clamp(h.Happiness, 0, maxHappiness)
}

// DecideIfLeave draws once from rng when the household is unhappy enough to
// consider leaving. Below 5 it leaves with probability 0.3; in [5, 10) with
// probability 0.1; otherwise it stays without consuming a draw.
func (h *Household) DecideIfLeave(rng *rand.Rand) bool {
	switch {
	case h.Happiness < severeUnhappiness:
		return rng.Float64() < 0.3
	case h.Happiness < mildUnhappiness:
		return rng.Float64() < 0.1
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
