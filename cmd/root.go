package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/city-sim/city-sim/sim"
	"github.com/city-sim/city-sim/sim/policy"
	"github.com/city-sim/city-sim/sim/report"
	"github.com/city-sim/city-sim/sim/store"
)

var (
	// Environment flags shared by run and search
	seed          int64  // Master seed every random stream derives from
	logLevel      string // Log verbosity level
	configPath    string // YAML environment configuration file
	episodeLength int    // Steps per episode
	rewardMode    string // Reward mode tag
	numHouseholds int    // Initial household population

	// Policy flags
	policyName       string // fixed, random or search
	actionIndex      int    // Action played by the fixed policy
	searchCandidates int    // Fixed actions evaluated by search (0 = all)
	searchEpisodes   int    // Episodes per candidate during search
	searchWorkers    int    // Concurrent search evaluations (0 = GOMAXPROCS)

	// Outputs
	resultsPath string // Results JSON file
	tracePath   string // zstd-compressed JSONL step trace
	dbPath      string // SQLite run store
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "city-sim",
	Short: "Agent-based city economy environment for training government policies",
}

// runCmd plays one episode with the chosen policy and writes its outputs
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play one episode and report its time series",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadEnvConfig(cmd)

		env, err := sim.NewCityEnvironment(cfg, sim.NewSimulationKey(seed))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Starting episode: mode=%s households=%d length=%d actions=%d seed=%d",
			env.Mode().Name(), cfg.NumHouseholds, cfg.EpisodeLength, env.ActionCount(), seed)

		startTime := time.Now()
		p := choosePolicy(cmd.Context(), cfg, env.ActionCount())
		run, err := report.Rollout(env, p)
		if err != nil {
			logrus.Fatalf("Rollout failed: %v", err)
		}
		printSummary(os.Stdout, run, time.Since(startTime))

		if resultsPath != "" {
			if err := report.SaveJSON(resultsPath, run); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("Results written to %s", resultsPath)
		}
		if tracePath != "" {
			if err := report.WriteTrace(tracePath, run.DebugSteps); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("Trace written to %s", tracePath)
		}
		if dbPath != "" {
			id, err := saveRun(cmd.Context(), dbPath, run)
			if err != nil {
				logrus.Fatalf("Storing run: %v", err)
			}
			fmt.Printf("Stored run %s\n", id)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// registerEnvFlags adds the environment flags to c. File values from
// --config are overridden only by flags the user actually set.
func registerEnvFlags(c *cobra.Command) {
	c.Flags().Int64Var(&seed, "seed", 42, "Master seed for every random stream")
	c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().StringVar(&configPath, "config", "", "YAML environment configuration (defaults when empty)")
	c.Flags().IntVar(&episodeLength, "episode-length", 60, "Steps per episode")
	c.Flags().StringVar(&rewardMode, "reward-mode", "basic_happiness", "Reward mode (basic_happiness, growth, strict_budget, dark_lord, custom)")
	c.Flags().IntVar(&numHouseholds, "households", 50, "Initial household population")
}

// loadEnvConfig builds the environment configuration from --config and the
// flags set on cmd.
func loadEnvConfig(cmd *cobra.Command) sim.EnvConfig {
	cfg := sim.DefaultEnvConfig()
	if configPath != "" {
		var err error
		cfg, err = sim.LoadEnvConfig(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
	}
	applyEnvOverrides(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func applyEnvOverrides(cmd *cobra.Command, cfg *sim.EnvConfig) {
	if cmd.Flags().Changed("episode-length") {
		cfg.EpisodeLength = episodeLength
	}
	if cmd.Flags().Changed("reward-mode") {
		cfg.RewardMode = rewardMode
	}
	if cmd.Flags().Changed("households") {
		cfg.NumHouseholds = numHouseholds
	}
}

func newEnvFactory(cfg sim.EnvConfig) policy.EnvFactory {
	return func(key sim.SimulationKey) (policy.Environment, error) {
		return sim.NewCityEnvironment(cfg, key)
	}
}

func searchConfig() policy.SearchConfig {
	return policy.SearchConfig{
		Candidates:  searchCandidates,
		Episodes:    searchEpisodes,
		Seed:        seed,
		Parallelism: searchWorkers,
	}
}

func choosePolicy(ctx context.Context, cfg sim.EnvConfig, n int) policy.Policy {
	if policyName == "search" {
		res, err := policy.Search(ctx, newEnvFactory(cfg), searchConfig())
		if err != nil {
			logrus.Fatalf("Policy search failed: %v", err)
		}
		return res.Best
	}
	if !policy.ValidPolicies[policyName] {
		logrus.Fatalf("Unknown policy %q; valid: fixed, random, search", policyName)
	}
	p, err := policy.NewPolicy(policyName, actionIndex, n, seed)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return p
}

func saveRun(ctx context.Context, path string, run *report.Run) (string, error) {
	db, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return db.SaveRun(ctx, run)
}

func printSummary(w io.Writer, run *report.Run, elapsed time.Duration) {
	fmt.Fprintln(w, "=== Episode Summary ===")
	fmt.Fprintf(w, "Reward mode      : %s\n", run.RewardMode)
	fmt.Fprintf(w, "Steps            : %d\n", len(run.TimeSteps)-1)
	fmt.Fprintf(w, "Total reward     : %s\n", humanize.FormatFloat("#,###.##", run.TotalReward))
	fmt.Fprintf(w, "Final happiness  : %.2f\n", run.FinalStats.FinalHappiness)
	fmt.Fprintf(w, "Final population : %s\n", humanize.Comma(int64(run.FinalStats.FinalPopulation)))
	fmt.Fprintf(w, "Final budget     : %s\n", humanize.FormatFloat("#,###.##", run.FinalStats.FinalBudget))
	if s := run.Summary; s != nil {
		fmt.Fprintf(w, "Cumulative profit: %s\n", humanize.FormatFloat("#,###.##", s.CumulativeProfit))
		fmt.Fprintf(w, "Bankruptcies     : %d\n", s.TotalBankruptcies)
		fmt.Fprintf(w, "Shocks           : %d\n", s.ShockCount)
	}
	fmt.Fprintf(w, "Wall time        : %s\n", elapsed.Round(time.Millisecond))
}

// init sets up CLI flags and subcommands
func init() {
	registerEnvFlags(runCmd)

	runCmd.Flags().StringVar(&policyName, "policy", "fixed", "Policy to play (fixed, random, search)")
	runCmd.Flags().IntVar(&actionIndex, "action", 0, "Action index played by the fixed policy")
	runCmd.Flags().IntVar(&searchCandidates, "search-candidates", 0, "Fixed actions evaluated by search (0 = all)")
	runCmd.Flags().IntVar(&searchEpisodes, "search-episodes", 1, "Episodes per candidate during search")
	runCmd.Flags().IntVar(&searchWorkers, "search-workers", 0, "Concurrent search evaluations (0 = GOMAXPROCS)")

	runCmd.Flags().StringVar(&resultsPath, "results", "", "Write the run as JSON to this file")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "Write the step trace as zstd-compressed JSONL to this file")
	runCmd.Flags().StringVar(&dbPath, "db", "", "Store the run in this SQLite database")

	rootCmd.AddCommand(runCmd)
}
