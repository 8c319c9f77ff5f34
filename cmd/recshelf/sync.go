package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/recshelf/internal/app"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and print its summary",
		Long: `Run one sync cycle in this process. The cycle is recorded in the sync
history like scheduled ones. Exits non-zero when the cycle fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), ctx, cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().Int("workers", 0, "concurrent probes (default from config)")
	_ = ctx.v.BindPFlag("probe_workers", cmd.Flags().Lookup("workers"))
	return cmd
}

func runSync(parent context.Context, cc *commandContext, out io.Writer, asJSON bool) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := cc.validConfig()
	if err != nil {
		return err
	}

	db, err := cc.openStore()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read side is done

	svc, err := cc.newSyncService(cfg, db)
	if err != nil {
		return err
	}

	coord := app.NewSyncCoordinator(svc, db, cfg.WatchDir, cc.logger())
	defer coord.Stop()

	cycle, _ := coord.StartOrJoin()
	summary, err := cycle.Wait(parent)
	if summary != nil {
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(summary); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintln(out, renderSummary(summary))
		}
	}
	if err != nil {
		return fmt.Errorf("sync failed (%s): %w", app.ErrorKind(err), err)
	}
	return nil
}

func renderSummary(s *app.SyncSummary) string {
	rows := [][]string{
		{"Discovered", strconv.Itoa(s.Discovered)},
		{"New", strconv.Itoa(s.New)},
		{"Updated", strconv.Itoa(s.Updated)},
		{"Relinked", strconv.Itoa(s.Relinked)},
		{"Missing", strconv.Itoa(s.Missing)},
		{"Ambiguous", strconv.Itoa(s.Ambiguous)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	var b strings.Builder
	b.WriteString(renderTable([]string{"Result", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

	for _, amb := range s.AmbiguousMatches {
		fmt.Fprintf(&b, "\nambiguous %s match for %s: %s", amb.Reason, amb.FilePath, strings.Join(amb.CandidateIDs, ", "))
	}
	for _, path := range s.FailedPaths {
		fmt.Fprintf(&b, "\nfailed to probe %s", path)
	}
	return b.String()
}
