package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/johnwards/orgseed/internal/config"
	"github.com/johnwards/orgseed/internal/orgconn"
	"github.com/johnwards/orgseed/internal/pipeline"
	"github.com/johnwards/orgseed/internal/schema"
)

// ConnectionDialer authenticates against orgAlias and returns a Connection
// built against apiVersion. This is the "org-credentials layer" spec.md §1
// names as an external collaborator; cmd/orgseed wires in whatever
// credential flow and connection library a deployment needs, and orgseed's
// own Execute never constructs one itself.
type ConnectionDialer func(ctx context.Context, orgAlias, apiVersion string) (orgconn.Connection, error)

// InteractivePrompt fills in the fields Flags is missing by prompting the
// operator. Per spec.md §1 the interactive prompt loop is an external
// collaborator; a caller that wants the interactive path supplies one,
// else Execute reports that -s/-t/-o are required.
type InteractivePrompt func(ctx context.Context, partial Flags) (Flags, error)

// Execute runs the orgseed CLI: parses flags, resolves a SeedPlan, dials
// both connections via dial, runs the pipeline, and prints the spec.md §7
// report. Returns the process exit code — 0 on completion (even with
// per-record failures recorded), non-zero only on an unrecoverable error,
// per spec.md §6.
func Execute(dial ConnectionDialer, prompt InteractivePrompt) int {
	cfg := config.Load()
	var f Flags
	rootCmd := newRootCmd(&f, cfg, dial, prompt)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(f *Flags, cfg config.Config, dial ConnectionDialer, prompt InteractivePrompt) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orgseed",
		Short:         "Seed a target CRM org from a source org, preserving referential integrity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), f, cfg, dial, prompt)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.SourceOrg, "source-org", "s", "", "source org alias/credential name")
	flags.StringVarP(&f.TargetOrg, "target-org", "t", "", "target org alias/credential name")
	flags.StringVarP(&f.Object, "object", "o", "", "root object type to seed")
	flags.StringSliceVarP(&f.Children, "children", "c", nil, "CSV of child object names to include")
	flags.StringSliceVarP(&f.Grandchildren, "grandchildren", "g", nil, "CSV of grandchild object names to include")
	flags.BoolVar(&f.IncludeTasks, "include-tasks", false, "include related Task activities")
	flags.BoolVar(&f.IncludeEvents, "include-events", false, "include related Event activities")
	flags.BoolVar(&f.IncludeFiles, "include-files", false, "include related files (ContentDocumentLink/ContentVersion)")
	flags.StringVarP(&f.Count, "count", "n", strconv.Itoa(cfg.DefaultRecordCount), `number of root records to seed, or "All"`)
	flags.StringVarP(&f.Where, "where", "w", "", "additional SOQL WHERE clause for the root query")
	flags.StringVarP(&f.UpsertField, "upsert-field", "u", "", "external-id field to upsert the root object on, instead of insert")
	flags.BoolVarP(&f.DryRun, "dry-run", "d", false, "compute everything but make no writes")

	return cmd
}

func runSeed(ctx context.Context, f *Flags, cfg config.Config, dial ConnectionDialer, prompt InteractivePrompt) error {
	if !f.NonInteractive() {
		if prompt == nil {
			return fmt.Errorf("-s, -t, and -o are required (no interactive prompt loop configured)")
		}
		filled, err := prompt(ctx, *f)
		if err != nil {
			return fmt.Errorf("interactive prompt: %w", err)
		}
		*f = filled
	}
	if !f.NonInteractive() {
		return fmt.Errorf("-s, -t, and -o are required")
	}

	limits := orgconn.DefaultLimits()
	limits.RequestsPerSecond = cfg.RateLimitPerSecond
	limits.Burst = cfg.RateLimitBurst
	limits.MaxRetries = uint64(cfg.MaxRetries)

	rawSourceConn, err := dial(ctx, f.SourceOrg, cfg.APIVersion)
	if err != nil {
		return fmt.Errorf("connect to source org %s: %w", f.SourceOrg, err)
	}
	rawTargetConn, err := dial(ctx, f.TargetOrg, cfg.APIVersion)
	if err != nil {
		return fmt.Errorf("connect to target org %s: %w", f.TargetOrg, err)
	}
	sourceConn := orgconn.WithLimits(rawSourceConn, limits)
	targetConn := orgconn.WithLimits(rawTargetConn, limits)

	sourceInsp := schema.New(sourceConn)
	plan, err := BuildPlan(ctx, sourceInsp, *f)
	if err != nil {
		return fmt.Errorf("build seed plan: %w", err)
	}

	logger := NewConsoleLogger()
	runID := NewRunID()
	logger.Log(fmt.Sprintf("run %s: seeding %s from %s into %s", runID, plan.RootObject, f.SourceOrg, f.TargetOrg))

	driver := pipeline.New(sourceConn, targetConn, logger)
	results, state, err := driver.Run(ctx, plan)
	if err != nil {
		return fmt.Errorf("run %s: pipeline aborted in %s: %w", runID, state, err)
	}

	fmt.Print(Report(results))
	logger.Log(fmt.Sprintf("run %s: finished in state %s", runID, state))
	return nil
}
