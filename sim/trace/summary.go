package trace

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EpisodeSummary aggregates statistics from an EpisodeTrace.
type EpisodeSummary struct {
	Steps             int     `json:"steps"`
	TotalReward       float64 `json:"total_reward"`
	MeanReward        float64 `json:"mean_reward"`
	RewardStdDev      float64 `json:"reward_stddev"`
	MeanHappiness     float64 `json:"mean_happiness"`
	MinHappiness      float64 `json:"min_happiness"`
	MaxHappiness      float64 `json:"max_happiness"`
	CumulativeProfit  float64 `json:"cumulative_profit"`
	FinalBudget       float64 `json:"final_budget"`
	FinalPopulation   int     `json:"final_population"`
	TotalBankruptcies int     `json:"total_bankruptcies"`
	ShockCount        int     `json:"shock_count"`
	PeakPopulation    int     `json:"peak_population"`
}

// Summarize computes aggregate statistics from an EpisodeTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(et *EpisodeTrace) *EpisodeSummary {
	summary := &EpisodeSummary{}
	if et == nil || len(et.Records) == 0 {
		return summary
	}

	n := len(et.Records)
	rewards := make([]float64, n)
	happiness := make([]float64, n)
	for i, r := range et.Records {
		rewards[i] = r.Reward
		happiness[i] = r.AvgHappiness
		summary.CumulativeProfit += r.DailyProfitsSum
		summary.TotalBankruptcies += r.BankruptCount
		if r.ShockTriggered {
			summary.ShockCount++
		}
		summary.PeakPopulation = max(summary.PeakPopulation, r.Population)
	}

	summary.Steps = n
	summary.TotalReward = floats.Sum(rewards)
	if n > 1 {
		summary.MeanReward, summary.RewardStdDev = stat.MeanStdDev(rewards, nil)
	} else {
		summary.MeanReward = rewards[0]
	}
	summary.MeanHappiness = stat.Mean(happiness, nil)
	summary.MinHappiness = floats.Min(happiness)
	summary.MaxHappiness = floats.Max(happiness)

	last := et.Records[n-1]
	summary.FinalBudget = last.GovBudget
	summary.FinalPopulation = last.Population
	return summary
}
