package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/city-sim/city-sim/sim"
	"github.com/city-sim/city-sim/sim/policy"
	"github.com/city-sim/city-sim/sim/report"
	"github.com/city-sim/city-sim/sim/store"
)

func parseEnvFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	registerEnvFlags(c)
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestApplyEnvOverrides_OnlyChangedFlags(t *testing.T) {
	// GIVEN a file configuration with non-default values
	cfg := sim.DefaultEnvConfig()
	cfg.NumHouseholds = 80
	cfg.EpisodeLength = 90
	cfg.RewardMode = "growth"

	// WHEN only --households is set on the command line
	c := parseEnvFlags(t, "--households", "12")
	applyEnvOverrides(c, &cfg)

	// THEN only that value is overridden
	assert.Equal(t, 12, cfg.NumHouseholds)
	assert.Equal(t, 90, cfg.EpisodeLength)
	assert.Equal(t, "growth", cfg.RewardMode)
}

func TestApplyEnvOverrides_AllFlags(t *testing.T) {
	cfg := sim.DefaultEnvConfig()
	c := parseEnvFlags(t, "--episode-length", "7", "--reward-mode", "dark_lord", "--households", "3")
	applyEnvOverrides(c, &cfg)

	assert.Equal(t, 7, cfg.EpisodeLength)
	assert.Equal(t, "dark_lord", cfg.RewardMode)
	assert.Equal(t, 3, cfg.NumHouseholds)
}

func TestNewEnvFactory_BuildsIndependentEnvironments(t *testing.T) {
	cfg := sim.DefaultEnvConfig()
	cfg.EpisodeLength = 4
	factory := newEnvFactory(cfg)

	a, err := factory(sim.NewSimulationKey(1))
	require.NoError(t, err)
	b, err := factory(sim.NewSimulationKey(1))
	require.NoError(t, err)

	ra, err := policy.RunEpisode(a, policy.Fixed{Action: 3})
	require.NoError(t, err)
	rb, err := policy.RunEpisode(b, policy.Fixed{Action: 3})
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
}

func playTestRun(t *testing.T) *report.Run {
	t.Helper()
	cfg := sim.DefaultEnvConfig()
	cfg.EpisodeLength = 6
	env, err := sim.NewCityEnvironment(cfg, sim.NewSimulationKey(42))
	require.NoError(t, err)
	run, err := report.Rollout(env, policy.Fixed{Action: 0})
	require.NoError(t, err)
	return run
}

func TestPrintSummary(t *testing.T) {
	run := playTestRun(t)
	var buf bytes.Buffer

	printSummary(&buf, run, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "Episode Summary")
	assert.Contains(t, out, "basic_happiness")
	assert.Contains(t, out, "Steps            : 6")
	assert.Contains(t, out, "1.5s")
}

func TestPrintActions(t *testing.T) {
	table := sim.NewActionTable([]float64{0, 0.5}, []float64{0}, []float64{0, 0.1})
	var buf bytes.Buffer

	printActions(&buf, table)

	out := buf.String()
	assert.Contains(t, out, "4 actions")
	assert.Contains(t, out, "     3      0.50      0.00      0.10")
}

func TestPrintSearchResult_RanksByMeanReward(t *testing.T) {
	table := sim.NewActionTable([]float64{0, 0.5}, []float64{0}, []float64{0, 0.1})
	res := &policy.SearchResult{
		Best:  policy.Fixed{Action: 2},
		Score: policy.CandidateScore{Action: 2, MeanReward: 9},
		Scores: []policy.CandidateScore{
			{Action: 0, MeanReward: 1}, {Action: 1, MeanReward: 5},
			{Action: 2, MeanReward: 9}, {Action: 3, MeanReward: 3},
		},
	}
	var buf bytes.Buffer

	printSearchResult(&buf, table, res, 2)

	out := buf.String()
	assert.Contains(t, out, "Best action 2: tax=0.50 infra=0.00 subsidy=0.00")
	assert.Contains(t, out, "Top 2 of 4 candidates")
	assert.Contains(t, out, "  1. action    2")
	assert.Contains(t, out, "  2. action    1")
	assert.NotContains(t, out, "action    3")
}

func TestPrintRuns(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	rows := []store.RunRow{{
		ID:              "7d3c0a8e-0000-4000-8000-000000000001",
		CreatedAt:       now.Add(-2 * time.Hour).Format(time.RFC3339),
		RewardMode:      "growth",
		Seed:            5,
		Steps:           60,
		TotalReward:     12345.678,
		FinalHappiness:  55.5,
		FinalPopulation: 1200,
	}}
	var buf bytes.Buffer

	printRuns(&buf, rows, now)

	out := buf.String()
	assert.Contains(t, out, "7d3c0a8e-0000-4000-8000-000000000001")
	assert.Contains(t, out, "12,345.68")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "2 hours ago")

	buf.Reset()
	printRuns(&buf, nil, now)
	assert.Contains(t, buf.String(), "No stored runs.")
}

func TestSaveRun_StoresInDatabase(t *testing.T) {
	path := t.TempDir() + "/runs.db"
	id, err := saveRun(t.Context(), path, playTestRun(t))
	require.NoError(t, err)

	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()
	steps, err := db.LoadSteps(t.Context(), id)
	require.NoError(t, err)
	assert.Len(t, steps, 6)

	var buf bytes.Buffer
	printSteps(&buf, steps)
	assert.Contains(t, buf.String(), "reward")
}
