// Package report turns a played episode into the recorded time series and
// final statistics that reporting front ends render, and exports step
// traces.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/city-sim/city-sim/sim"
	"github.com/city-sim/city-sim/sim/policy"
	"github.com/city-sim/city-sim/sim/trace"
)

// Series holds one entry per day, day 0 being the state right after reset.
type Series struct {
	TimeSteps     []int     `json:"time_steps"`
	Happiness     []float64 `json:"happiness_series"`
	Population    []int     `json:"population_series"`
	Budget        []float64 `json:"budget_series"`
	LeftoverSpend []float64 `json:"leftover_spend_series"`
	Profit        []float64 `json:"profit_series"`
}

func (s *Series) append(day int, happiness float64, population int, budget, leftover, profit float64) {
	s.TimeSteps = append(s.TimeSteps, day)
	s.Happiness = append(s.Happiness, happiness)
	s.Population = append(s.Population, population)
	s.Budget = append(s.Budget, budget)
	s.LeftoverSpend = append(s.LeftoverSpend, leftover)
	s.Profit = append(s.Profit, profit)
}

// FinalStats are the last entries of each series.
type FinalStats struct {
	FinalHappiness  float64 `json:"final_happiness"`
	FinalPopulation int     `json:"final_population"`
	FinalBudget     float64 `json:"final_budget"`
	FinalProfit     float64 `json:"final_profit"`
}

// Run is the complete record of one played episode.
type Run struct {
	Series
	FinalStats  FinalStats            `json:"final_stats"`
	RewardMode  string                `json:"chosen_gov_mode"`
	Seed        int64                 `json:"seed"`
	TotalReward float64               `json:"total_reward"`
	Summary     *trace.EpisodeSummary `json:"summary"`
	DebugSteps  []trace.StepRecord    `json:"debug_steps"`
}

// Rollout resets env and plays p until done, recording day 0 and every
// step after it.
func Rollout(env *sim.CityEnvironment, p policy.Policy) (*Run, error) {
	run := &Run{
		RewardMode: env.Mode().Name(),
		Seed:       int64(env.Key()),
	}

	obs := env.Reset()
	run.append(0, env.AvgHappiness(), env.Population(), env.Budget(), 0, 0)

	limit := env.Config().EpisodeLength
	for day := 1; day <= limit; day++ {
		res, err := env.Step(p.Act(obs))
		if err != nil {
			return nil, fmt.Errorf("rollout day %d: %w", day, err)
		}
		run.TotalReward += res.Reward
		run.append(day, res.Info.AvgHappiness, env.Population(), env.Budget(), res.Info.LeftoverSpend, res.Info.DailyProfits)
		obs = res.Observation
		if res.Done {
			break
		}
	}

	last := len(run.TimeSteps) - 1
	run.FinalStats = FinalStats{
		FinalHappiness:  run.Happiness[last],
		FinalPopulation: run.Population[last],
		FinalBudget:     run.Budget[last],
		FinalProfit:     run.Profit[last],
	}
	run.DebugSteps = env.Trace().Records
	run.Summary = trace.Summarize(env.Trace())
	logrus.Infof("Rollout finished after %d steps, total reward %.2f, final happiness %.2f",
		last, run.TotalReward, run.FinalStats.FinalHappiness)
	return run, nil
}

// WriteJSON encodes run as indented JSON.
func WriteJSON(w io.Writer, run *Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// SaveJSON writes run to path as indented JSON.
func SaveJSON(path string, run *Run) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	if err := WriteJSON(f, run); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing results file: %w", err)
	}
	return f.Close()
}
