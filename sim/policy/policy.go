// Package policy defines the episodic contract an external trainer consumes
// and the policies it produces: callables from an observation to a discrete
// action index.
package policy

import (
	"fmt"
	"math/rand"

	"github.com/city-sim/city-sim/sim"
)

// Environment is the reset/step contract. *sim.CityEnvironment implements it.
type Environment interface {
	Reset() sim.Observation
	Step(action int) (sim.StepResult, error)
	ActionCount() int
}

// Policy maps an observation to an action index.
type Policy interface {
	Act(obs sim.Observation) int
}

// Func adapts a plain function to Policy.
type Func func(obs sim.Observation) int

func (f Func) Act(obs sim.Observation) int { return f(obs) }

// Fixed always plays the same action.
type Fixed struct {
	Action int
}

func (p Fixed) Act(_ sim.Observation) int { return p.Action }

// Uniform plays an action drawn uniformly from [0, n).
type Uniform struct {
	n   int
	rng *rand.Rand
}

// NewUniform creates a Uniform policy over n actions seeded with seed.
func NewUniform(n int, seed int64) *Uniform {
	return &Uniform{n: n, rng: rand.New(rand.NewSource(seed))}
}

func (p *Uniform) Act(_ sim.Observation) int { return p.rng.Intn(p.n) }

// ValidPolicies is the set of recognized policy names for NewPolicy.
var ValidPolicies = map[string]bool{"fixed": true, "random": true}

// NewPolicy creates a policy by name.
// Valid names: "fixed" (plays action), "random" (uniform over n, seeded).
func NewPolicy(name string, action, n int, seed int64) (Policy, error) {
	switch name {
	case "fixed":
		if action < 0 || action >= n {
			return nil, fmt.Errorf("fixed action %d not in [0, %d)", action, n)
		}
		return Fixed{Action: action}, nil
	case "random":
		if n <= 0 {
			return nil, fmt.Errorf("random policy needs a non-empty action space")
		}
		return NewUniform(n, seed), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// EpisodeResult summarizes one episode played by a policy.
type EpisodeResult struct {
	Steps       int
	TotalReward float64
	LastInfo    sim.StepInfo
}

// RunEpisode resets env and plays p until the environment reports done.
func RunEpisode(env Environment, p Policy) (EpisodeResult, error) {
	var res EpisodeResult
	obs := env.Reset()
	for {
		out, err := env.Step(p.Act(obs))
		if err != nil {
			return res, fmt.Errorf("step %d: %w", res.Steps+1, err)
		}
		res.Steps++
		res.TotalReward += out.Reward
		res.LastInfo = out.Info
		obs = out.Observation
		if out.Done {
			return res, nil
		}
	}
}
