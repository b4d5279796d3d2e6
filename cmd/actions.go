package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/city-sim/city-sim/sim"
)

// actionsCmd prints the lever table an action index decodes through
var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the action table",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := sim.DefaultEnvConfig()
		if configPath != "" {
			var err error
			if cfg, err = sim.LoadEnvConfig(configPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		table := sim.NewActionTable(cfg.TaxRateValues, cfg.InfraFractionValues, cfg.SubsidyFractionValues)
		printActions(os.Stdout, table)
	},
}

func printActions(w io.Writer, table *sim.ActionTable) {
	fmt.Fprintf(w, "%6s  %8s  %8s  %8s\n", "index", "tax", "infra", "subsidy")
	for i, a := range table.Actions() {
		fmt.Fprintf(w, "%6d  %8.2f  %8.2f  %8.2f\n", i, a.TaxRate, a.InfraFraction, a.SubsidyFraction)
	}
	fmt.Fprintf(w, "%d actions\n", table.Len())
}

func init() {
	actionsCmd.Flags().StringVar(&configPath, "config", "", "YAML environment configuration (defaults when empty)")
	rootCmd.AddCommand(actionsCmd)
}
