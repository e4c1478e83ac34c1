package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/traceability-cli/internal/report"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent reconciliation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st := openLedger(ctx, cfg.History.Path)
		if st == nil {
			return eris.New("runs: ledger unavailable")
		}
		defer st.Close()

		rows, err := st.List(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}

		return report.PrintRuns(os.Stdout, rows)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}
