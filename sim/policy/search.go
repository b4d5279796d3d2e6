package policy

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"slices"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/city-sim/city-sim/sim"
)

// EnvFactory builds a fresh environment for one evaluation episode.
type EnvFactory func(key sim.SimulationKey) (Environment, error)

// SearchConfig controls Search.
type SearchConfig struct {
	Candidates  int   // actions to evaluate; 0 or more than the table means all
	Episodes    int   // episodes per candidate (default 1)
	Seed        int64 // master seed for candidate sampling and episode keys
	Parallelism int   // concurrent evaluations (default GOMAXPROCS)
}

// CandidateScore is the evaluation of one fixed action.
type CandidateScore struct {
	Action     int     `json:"action"`
	MeanReward float64 `json:"mean_reward"`
	StdDev     float64 `json:"stddev"`
}

// SearchResult holds the chosen policy and every candidate's score, in
// ascending action order.
type SearchResult struct {
	Best   Fixed
	Score  CandidateScore
	Scores []CandidateScore
}

// Search evaluates fixed-action policies and returns the one with the
// highest mean total episode reward. Every candidate plays the same episode
// keys (Seed, Seed+1, ...), so candidates are compared on identical random
// streams. Ties go to the lower action index. Each evaluation runs on its
// own environment, so results do not depend on scheduling.
func Search(ctx context.Context, newEnv EnvFactory, cfg SearchConfig) (*SearchResult, error) {
	if cfg.Episodes <= 0 {
		cfg.Episodes = 1
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.GOMAXPROCS(0)
	}

	probe, err := newEnv(sim.NewSimulationKey(cfg.Seed))
	if err != nil {
		return nil, fmt.Errorf("building probe environment: %w", err)
	}
	candidates := sampleActions(probe.ActionCount(), cfg.Candidates, cfg.Seed)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("empty action space")
	}
	logrus.Infof("Evaluating %d candidate actions x %d episodes", len(candidates), cfg.Episodes)

	scores := make([]CandidateScore, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism)
	for i, action := range candidates {
		g.Go(func() error {
			totals := make([]float64, cfg.Episodes)
			for ep := 0; ep < cfg.Episodes; ep++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				env, err := newEnv(sim.NewSimulationKey(cfg.Seed + int64(ep)))
				if err != nil {
					return fmt.Errorf("action %d: %w", action, err)
				}
				res, err := RunEpisode(env, Fixed{Action: action})
				if err != nil {
					return fmt.Errorf("action %d: %w", action, err)
				}
				totals[ep] = res.TotalReward
			}
			scores[i] = scoreTotals(action, totals)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := range scores {
		if scores[i].MeanReward > scores[best].MeanReward {
			best = i
		}
	}
	logrus.Infof("Best fixed action %d (mean reward %.3f)", scores[best].Action, scores[best].MeanReward)
	return &SearchResult{
		Best:   Fixed{Action: scores[best].Action},
		Score:  scores[best],
		Scores: scores,
	}, nil
}

func scoreTotals(action int, totals []float64) CandidateScore {
	if len(totals) == 1 {
		return CandidateScore{Action: action, MeanReward: totals[0]}
	}
	mean, std := stat.MeanStdDev(totals, nil)
	return CandidateScore{Action: action, MeanReward: mean, StdDev: std}
}

// sampleActions returns k distinct action indices from [0, n) in ascending
// order, or all of them when k is 0 or at least n.
func sampleActions(n, k int, seed int64) []int {
	if k <= 0 || k >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	picked := rand.New(rand.NewSource(seed)).Perm(n)[:k]
	slices.Sort(picked)
	return picked
}
