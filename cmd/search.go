package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/city-sim/city-sim/sim"
	"github.com/city-sim/city-sim/sim/policy"
)

var searchTop int // Candidates listed after the best one

// searchCmd evaluates fixed-action policies and prints the best ones
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find the fixed action with the highest mean episode reward",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadEnvConfig(cmd)
		table := sim.NewActionTable(cfg.TaxRateValues, cfg.InfraFractionValues, cfg.SubsidyFractionValues)

		res, err := policy.Search(cmd.Context(), newEnvFactory(cfg), searchConfig())
		if err != nil {
			logrus.Fatalf("Policy search failed: %v", err)
		}
		printSearchResult(os.Stdout, table, res, searchTop)
	},
}

func printSearchResult(w io.Writer, table *sim.ActionTable, res *policy.SearchResult, top int) {
	fmt.Fprintf(w, "Best action %d: %s (mean reward %.3f, stddev %.3f)\n",
		res.Score.Action, table.Decode(res.Score.Action), res.Score.MeanReward, res.Score.StdDev)
	if top <= 0 {
		return
	}

	ranked := slices.Clone(res.Scores)
	slices.SortStableFunc(ranked, func(a, b policy.CandidateScore) int {
		switch {
		case a.MeanReward > b.MeanReward:
			return -1
		case a.MeanReward < b.MeanReward:
			return 1
		}
		return 0
	})
	fmt.Fprintf(w, "Top %d of %d candidates:\n", min(top, len(ranked)), len(ranked))
	for i, s := range ranked[:min(top, len(ranked))] {
		fmt.Fprintf(w, "%3d. action %4d  %-36s  %10.3f\n", i+1, s.Action, table.Decode(s.Action), s.MeanReward)
	}
}

func init() {
	registerEnvFlags(searchCmd)
	searchCmd.Flags().IntVar(&searchCandidates, "candidates", 0, "Fixed actions evaluated (0 = all)")
	searchCmd.Flags().IntVar(&searchEpisodes, "episodes", 1, "Episodes per candidate")
	searchCmd.Flags().IntVar(&searchWorkers, "workers", 0, "Concurrent evaluations (0 = GOMAXPROCS)")
	searchCmd.Flags().IntVar(&searchTop, "top", 10, "Candidates listed in ranked order (0 = best only)")

	rootCmd.AddCommand(searchCmd)
}
