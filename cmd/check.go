package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/traceability-cli/pkg/ado"
	"github.com/sells-group/traceability-cli/pkg/jira"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe Jira and Azure DevOps connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("check"); err != nil {
			return err
		}

		jc := jira.NewClient(cfg.Jira.URL, cfg.Jira.Email, cfg.Jira.Token)
		ac := ado.NewClient(cfg.ADO.Server, cfg.ADO.Collection, cfg.ADO.Project, cfg.ADO.PAT)

		return runChecks(cmd.Context(), jc, ac, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runChecks probes each system and reports per-system status to w. Both
// probes always run so a single failure doesn't hide the other result.
func runChecks(ctx context.Context, jc jira.Client, ac ado.Client, w io.Writer) error {
	failed := false

	name, err := jc.Myself(ctx)
	if err != nil {
		failed = true
		fmt.Fprintf(w, "Jira: FAILED (%v)\n", err)
	} else {
		fmt.Fprintf(w, "Jira: OK (authenticated as %s)\n", name)
	}

	project, err := ac.Project(ctx)
	if err != nil {
		failed = true
		fmt.Fprintf(w, "ADO: FAILED (%v)\n", err)
	} else {
		fmt.Fprintf(w, "ADO: OK (project %s)\n", project)
	}

	if failed {
		return eris.New("check: one or more probes failed")
	}
	return nil
}
