package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/onkernel/amirotate/cmd/rotator/config"
	"github.com/onkernel/amirotate/lib/rotation"
	"github.com/spf13/cobra"
)

var errRunAborted = errors.New("rotation aborted")

type appFactory func(ctx context.Context, overrides config.Overrides) (*application, func(), error)

func newRootCmd(newApp appFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "rotator",
		Short: "Roll EC2 launch templates onto their newest AMI and prune old versions",
		Long: `rotator finds every launch template tagged with ami-search-string, points it at
the newest AMI whose name matches the tag value, and deletes versions older than
the retention window together with their AMIs and snapshots.

Settings come from the environment (or a .env file); flags override them.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Rotate and prune all tagged launch templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRotation(cmd, newApp, overridesFromFlags(cmd))
		},
	}
	addRunFlags(runCmd)
	runCmd.Flags().Bool("dry-run", false, "report what would change without modifying anything")

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what run would change, without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := overridesFromFlags(cmd)
			dryRun := true
			overrides.DryRun = &dryRun
			return runRotation(cmd, newApp, overrides)
		},
	}
	addRunFlags(planCmd)

	root.AddCommand(runCmd, planCmd)
	return root
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("keep", 0, "number of most recent versions to retain (KEEP_AMIS)")
	cmd.Flags().Int("parallelism", 0, "templates processed concurrently (PARALLELISM)")
	cmd.Flags().String("source-version", "", "version new versions are based on, $Latest or $Default (SOURCE_VERSION)")
}

// overridesFromFlags collects only the flags the user actually set
func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	flags := cmd.Flags()

	if flags.Changed("keep") {
		v, _ := flags.GetInt("keep")
		o.KeepAMIs = &v
	}
	if flags.Changed("parallelism") {
		v, _ := flags.GetInt("parallelism")
		o.Parallelism = &v
	}
	if flags.Changed("source-version") {
		v, _ := flags.GetString("source-version")
		o.SourceVersion = &v
	}
	if flags.Lookup("dry-run") != nil && flags.Changed("dry-run") {
		v, _ := flags.GetBool("dry-run")
		o.DryRun = &v
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		o.LogLevel = &v
	}
	return o
}

func runRotation(cmd *cobra.Command, newApp appFactory, overrides config.Overrides) error {
	ctx := cmd.Context()

	app, cleanup, err := newApp(ctx, overrides)
	if err != nil {
		return err
	}
	defer cleanup()

	report := app.Rotator.Run(ctx)
	printReport(cmd.OutOrStdout(), report)

	if report.Outcome.Status == rotation.StatusAborted {
		return fmt.Errorf("%w: %w", errRunAborted, report.Outcome.Reason)
	}
	return nil
}

func printReport(w io.Writer, r *rotation.Report) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "run %s: %s%s\n", r.RunID, r.Outcome.Status, mode)
	if len(r.Templates) == 0 {
		fmt.Fprintln(w, "no launch templates carry the search tag")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEMPLATE\tACTION\tIMAGE\tVERSION\tPRUNED\tFAILURES\tRECLAIMED")
	for _, t := range r.Templates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			t.TemplateName,
			t.Action,
			orDash(t.ImageID),
			versionColumn(t),
			len(t.Pruned),
			len(t.CleanupFailures()),
			t.Reclaimed().HumanReadable(),
		)
	}
	tw.Flush()

	for _, t := range r.Templates {
		if t.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", t.TemplateName, t.Err)
		}
		for _, f := range t.CleanupFailures() {
			fmt.Fprintf(w, "%s: %s %s: %v\n", t.TemplateName, f.Step, orDash(f.ResourceID), f.Err)
		}
	}
}

func versionColumn(t rotation.TemplateReport) string {
	switch {
	case t.CurrentVersion == 0:
		return "-"
	case t.Action == rotation.ActionPromoted:
		return fmt.Sprintf("%d -> %d", t.PreviousVersion, t.CurrentVersion)
	default:
		return strconv.FormatInt(t.CurrentVersion, 10)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
