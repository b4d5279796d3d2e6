package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/city-sim/city-sim/sim/store"
	"github.com/city-sim/city-sim/sim/trace"
)

var runsDBPath string // SQLite run store read by runs

// runsCmd lists runs stored by `run --db`
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Run: func(cmd *cobra.Command, args []string) {
		db := openRunStore()
		defer db.Close()
		rows, err := db.ListRuns(cmd.Context())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printRuns(os.Stdout, rows, time.Now())
	},
}

// runsStepsCmd prints the step records of one stored run
var runsStepsCmd = &cobra.Command{
	Use:   "steps <run-id>",
	Short: "Show the step records of a stored run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db := openRunStore()
		defer db.Close()
		records, err := db.LoadSteps(cmd.Context(), args[0])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if len(records) == 0 {
			logrus.Fatalf("No steps stored for run %s", args[0])
		}
		printSteps(os.Stdout, records)
	},
}

func openRunStore() *store.DB {
	if runsDBPath == "" {
		logrus.Fatalf("--db is required")
	}
	db, err := store.Open(runsDBPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return db
}

func printRuns(w io.Writer, rows []store.RunRow, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No stored runs.")
		return
	}
	for _, r := range rows {
		created := r.CreatedAt
		if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			created = humanize.RelTime(t, now, "ago", "from now")
		}
		fmt.Fprintf(w, "%s  %-16s seed=%-6d steps=%-4d reward=%-12s happiness=%6.2f pop=%-5s bankrupt=%d  (%s)\n",
			r.ID, r.RewardMode, r.Seed, r.Steps,
			humanize.FormatFloat("#,###.##", r.TotalReward), r.FinalHappiness,
			humanize.Comma(int64(r.FinalPopulation)), r.TotalBankruptcies, created)
	}
}

func printSteps(w io.Writer, records []trace.StepRecord) {
	fmt.Fprintf(w, "%5s  %6s  %5s  %5s  %5s  %10s  %8s  %7s  %4s  %9s\n",
		"step", "action", "tax", "infra", "sub", "budget", "infra", "hap", "pop", "reward")
	for _, r := range records {
		fmt.Fprintf(w, "%5d  %6d  %5.2f  %5.2f  %5.2f  %10.2f  %8.2f  %7.2f  %4d  %9.3f\n",
			r.Step, r.ActionIndex, r.ChosenTax, r.ChosenInfra, r.ChosenSubsidy,
			r.GovBudget, r.Infrastructure, r.AvgHappiness, r.Population, r.Reward)
	}
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsDBPath, "db", "", "SQLite run store")
	runsCmd.AddCommand(runsStepsCmd)
	rootCmd.AddCommand(runsCmd)
}
