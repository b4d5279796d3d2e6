package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// RewardMode is the closed set of reward formulas. The unexported marker
// method keeps the set sealed to this package; Reward dispatches with a
// type switch.
type RewardMode interface {
	// Name is the configuration tag the mode was parsed from.
	Name() string
	rewardMode()
}

// BasicHappiness rewards twice the average happiness.
type BasicHappiness struct{}

// Growth rewards population and output alongside happiness.
type Growth struct{}

// StrictBudget punishes deficits superlinearly and rewards surpluses.
type StrictBudget struct{}

// DarkLord rewards misery, deficits and losses.
type DarkLord struct{}

// Custom is a caller-weighted linear reward.
type Custom struct {
	Weights CustomWeights
}

// Baseline is average happiness less the profit penalty. Unrecognized tags
// resolve to it.
type Baseline struct{}

// CustomWeights are the coefficients of the Custom reward.
type CustomWeights struct {
	Happiness      float64 `json:"hap"`
	Population     float64 `json:"pop"`
	Infrastructure float64 `json:"infra"`
	Profit         float64 `json:"profit"`
	Deficit        float64 `json:"deficit"`
}

func (BasicHappiness) Name() string { return "basic_happiness" }
func (Growth) Name() string         { return "growth" }
func (StrictBudget) Name() string   { return "strict_budget" }
func (DarkLord) Name() string       { return "dark_lord" }
func (Custom) Name() string         { return "custom" }
func (Baseline) Name() string       { return "baseline" }

func (BasicHappiness) rewardMode() {}
func (Growth) rewardMode()         {}
func (StrictBudget) rewardMode()   {}
func (DarkLord) rewardMode()       {}
func (Custom) rewardMode()         {}
func (Baseline) rewardMode()       {}

// ParseRewardMode resolves a configuration tag. "custom" with no weights and
// any unrecognized tag fall back to Baseline; neither is an error.
func ParseRewardMode(tag string, weights map[string]float64) RewardMode {
	switch tag {
	case "basic_happiness":
		return BasicHappiness{}
	case "growth":
		return Growth{}
	case "strict_budget":
		return StrictBudget{}
	case "dark_lord":
		return DarkLord{}
	case "custom":
		if len(weights) == 0 {
			logrus.Warn("reward_mode custom without custom_weights; using baseline reward")
			return Baseline{}
		}
		w := CustomWeights{Happiness: 1}
		for k, v := range weights {
			switch k {
			case "hap":
				w.Happiness = v
			case "pop":
				w.Population = v
			case "infra":
				w.Infrastructure = v
			case "profit":
				w.Profit = v
			case "deficit":
				w.Deficit = v
			default:
				logrus.Warnf("ignoring unknown custom weight %q", k)
			}
		}
		return Custom{Weights: w}
	}
	logrus.Warnf("unknown reward_mode %q; using baseline reward", tag)
	return Baseline{}
}

// RewardInputs are the step aggregates a reward formula may read.
type RewardInputs struct {
	AvgHappiness   float64
	Budget         float64
	Population     int
	TotalProfits   float64
	TotalWages     float64
	Infrastructure float64
}

// Reward evaluates mode on in. It is a pure function of its arguments.
func Reward(mode RewardMode, in RewardInputs) float64 {
	profitPenalty := 0.05 * max(0, -in.TotalProfits)
	deficit := 0.0
	if in.Budget < 0 {
		deficit = math.Abs(in.Budget)
	}
	pop := float64(in.Population)

	switch m := mode.(type) {
	case BasicHappiness:
		return 2*in.AvgHappiness - 0.05*deficit - profitPenalty
	case Growth:
		gdp := in.TotalWages + in.TotalProfits
		return 0.3*in.AvgHappiness + 2*pop + 0.03*gdp - 0.05*deficit - profitPenalty
	case StrictBudget:
		r := 0.8 * in.AvgHappiness
		if in.Budget < 0 {
			r -= 0.3 * math.Pow(deficit, 1.1)
		} else {
			r += 0.2 * math.Sqrt(in.Budget)
		}
		return r - profitPenalty
	case DarkLord:
		r := -5*in.AvgHappiness + 0.3*deficit + 0.1*pop
		if in.TotalProfits < 0 {
			r += 0.2 * math.Abs(in.TotalProfits)
		}
		return r
	case Custom:
		w := m.Weights
		r := w.Happiness*in.AvgHappiness + w.Population*pop +
			w.Infrastructure*in.Infrastructure + w.Profit*in.TotalProfits
		if in.Budget < 0 && w.Deficit > 0 {
			r -= w.Deficit * deficit
		}
		return r - profitPenalty
	default:
		return in.AvgHappiness - profitPenalty
	}
}

// happinessModeFor maps the reward mode to the household happiness variant.
func happinessModeFor(mode RewardMode) HappinessMode {
	switch mode.(type) {
	case BasicHappiness:
		return HappinessBasic
	case DarkLord:
		return HappinessDarkLord
	default:
		return HappinessStandard
	}
}

// immigrationChance is the per-step probability that a household joins a
// city whose average happiness exceeds 50.
func immigrationChance(mode RewardMode) float64 {
	switch mode.(type) {
	case DarkLord:
		return 0
	case Growth:
		return 0.5
	default:
		return 0.3
	}
}
