package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/city-sim/city-sim/sim"
)

func scriptedFactory(rewards []float64, length int) EnvFactory {
	return func(sim.SimulationKey) (Environment, error) {
		return &scriptedEnv{rewards: rewards, length: length}, nil
	}
}

func TestSearch_PicksHighestMeanReward(t *testing.T) {
	// GIVEN an environment where action 2 pays most
	factory := scriptedFactory([]float64{1, 3, 5, 2}, 10)

	// WHEN every action is searched
	res, err := Search(context.Background(), factory, SearchConfig{Episodes: 2, Seed: 1, Parallelism: 3})

	// THEN action 2 wins with its total episode reward
	require.NoError(t, err)
	assert.Equal(t, Fixed{Action: 2}, res.Best)
	assert.Equal(t, 50.0, res.Score.MeanReward)
	require.Len(t, res.Scores, 4)
	for i, s := range res.Scores {
		assert.Equal(t, i, s.Action, "scores are in ascending action order")
	}
}

func TestSearch_TiesGoToLowerIndex(t *testing.T) {
	factory := scriptedFactory([]float64{0, 4, 1, 4}, 3)

	res, err := Search(context.Background(), factory, SearchConfig{Seed: 9})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Best.Action)
}

func TestSearch_DeterministicOnRealEnvironment(t *testing.T) {
	// GIVEN a short real episode and a sampled subset of candidates
	cfg := sim.DefaultEnvConfig()
	cfg.EpisodeLength = 10
	cfg.ShockProbability = 0.2
	factory := func(key sim.SimulationKey) (Environment, error) {
		return sim.NewCityEnvironment(cfg, key)
	}
	sc := SearchConfig{Candidates: 12, Episodes: 2, Seed: 77, Parallelism: 4}

	// WHEN searched twice
	a, err := Search(context.Background(), factory, sc)
	require.NoError(t, err)
	b, err := Search(context.Background(), factory, sc)
	require.NoError(t, err)

	// THEN scheduling does not change the outcome
	assert.Equal(t, a.Scores, b.Scores)
	assert.Equal(t, a.Best, b.Best)
	assert.Len(t, a.Scores, 12)
}

func TestSearch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Search(ctx, scriptedFactory([]float64{1, 2}, 5), SearchConfig{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleActions(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, sampleActions(4, 0, 1))
	assert.Equal(t, []int{0, 1, 2, 3}, sampleActions(4, 9, 1))

	got := sampleActions(100, 10, 3)
	require.Len(t, got, 10)
	assert.IsIncreasing(t, got)
	assert.Equal(t, got, sampleActions(100, 10, 3))
}
