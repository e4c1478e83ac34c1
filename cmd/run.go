package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/traceability-cli/internal/config"
	"github.com/sells-group/traceability-cli/internal/history"
	"github.com/sells-group/traceability-cli/internal/match"
	"github.com/sells-group/traceability-cli/internal/model"
	"github.com/sells-group/traceability-cli/internal/normalize"
	"github.com/sells-group/traceability-cli/internal/recon"
	"github.com/sells-group/traceability-cli/internal/report"
	"github.com/sells-group/traceability-cli/pkg/ado"
	"github.com/sells-group/traceability-cli/pkg/jira"
)

var (
	runOutput string
	runJQL    string
	runInput  string
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full reconciliation and write the traceability report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runInput != "" {
			cfg.Source.Mode = "file"
			cfg.Source.Input = runInput
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		output := runOutput
		if output == "" {
			output = cfg.Report.Output
		}

		result, err := executeRun(cmd.Context(), runJQL, output, runDryRun)
		if err != nil {
			return err
		}

		return report.PrintSummary(os.Stdout, result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runOutput, "output", "", "report path (default from config)")
	runCmd.Flags().StringVar(&runJQL, "jql", "", "issue search query (default from config)")
	runCmd.Flags().StringVar(&runInput, "input", "", "exported search payload; forces file mode")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "reconcile without writing the xlsx report")
	rootCmd.AddCommand(runCmd)
}

// executeRun performs one reconciliation: fetch, classify, rank, report.
// The run ledger is best-effort throughout; ledger problems are logged and
// never abort a run.
func executeRun(ctx context.Context, jql, output string, dryRun bool) (*model.Result, error) {
	if jql == "" {
		jql = cfg.Jira.JQL
	}

	source, mode := sourceForRun(cfg)
	targets := ado.NewClient(cfg.ADO.Server, cfg.ADO.Collection, cfg.ADO.Project, cfg.ADO.PAT,
		ado.WithConcurrency(cfg.Recon.Workers))
	rec := newReconciler(cfg, source, targets, jql)

	zap.L().Info("reconciliation starting",
		zap.String("source", mode),
		zap.String("project", cfg.ADO.Project),
	)

	ledger := openLedger(ctx, cfg.History.Path)
	if ledger != nil {
		defer ledger.Close()
	}
	runID := recordStart(ctx, ledger)

	result, err := rec.Run(ctx)
	if err != nil {
		finishLedger(ctx, ledger, runID, model.Summary{}, "", err)
		return nil, err
	}

	artifact := ""
	if !dryRun {
		if werr := report.WriteWorkbook(output, result); werr != nil {
			finishLedger(ctx, ledger, runID, result.Summary, "", werr)
			return nil, werr
		}
		artifact = output
		zap.L().Info("report written", zap.String("path", output))
	}

	finishLedger(ctx, ledger, runID, result.Summary, artifact, nil)
	return result, nil
}

// sourceForRun picks the issue source from config: file mode replays an
// exported search payload, anything else talks to the Jira API.
func sourceForRun(c *config.Config) (recon.Source, string) {
	if c.Source.Mode == "file" {
		return &jira.FileSource{
			Path:          c.Source.Input,
			SeverityField: c.Jira.SeverityField,
			ADOIDField:    c.Jira.ADOIDField,
			ADOStateField: c.Jira.ADOStateField,
		}, "file"
	}
	return jira.NewClient(c.Jira.URL, c.Jira.Email, c.Jira.Token,
		jira.WithCustomFields(c.Jira.SeverityField, c.Jira.ADOIDField, c.Jira.ADOStateField),
	), "api"
}

func newReconciler(c *config.Config, source recon.Source, targets recon.Targets, jql string) *recon.Reconciler {
	norm := normalize.New(normalize.Config{
		ClosedStatuses: c.Normalize.ClosedStatuses,
		OpenStatuses:   c.Normalize.OpenStatuses,
	})
	matcher := match.New(match.Config{
		Threshold: c.Match.Threshold,
		Limit:     c.Match.Limit,
	})
	return recon.New(recon.Config{
		JQL:          jql,
		ScanDays:     c.Recon.ScanDays,
		ScanLimit:    c.Recon.ScanLimit,
		Workers:      c.Recon.Workers,
		TopAssignees: c.Recon.TopAssignees,
	}, source, targets, norm, matcher)
}

// openLedger opens and migrates the run ledger, returning nil when it is
// unavailable.
func openLedger(ctx context.Context, path string) history.Store {
	st, err := history.Open(path)
	if err != nil {
		zap.L().Warn("run ledger unavailable", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run ledger migration failed", zap.Error(err))
		_ = st.Close()
		return nil
	}
	return st
}

func recordStart(ctx context.Context, ledger history.Store) string {
	if ledger == nil {
		return ""
	}
	run, err := ledger.Record(ctx)
	if err != nil {
		zap.L().Warn("run ledger record failed", zap.Error(err))
		return ""
	}
	return run.ID
}

func finishLedger(ctx context.Context, ledger history.Store, runID string, s model.Summary, artifact string, runErr error) {
	if ledger == nil || runID == "" {
		return
	}
	if err := ledger.Finish(ctx, runID, s, artifact, runErr); err != nil {
		zap.L().Warn("run ledger finish failed", zap.Error(err))
	}
}
