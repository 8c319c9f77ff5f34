package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/domain"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the sync history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}
			db, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read only

			runs, err := db.ListSyncRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", constants.MaxHistoryItems, "maximum number of runs to show")
	return cmd
}

func printRuns(out io.Writer, runs []*domain.SyncRun, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No sync runs recorded.")
		return
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		took := "-"
		if run.FinishedAt != nil {
			took = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		errMsg := ""
		if run.Error != nil {
			errMsg = *run.Error
		}
		rows = append(rows, []string{
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			string(run.Status),
			strconv.Itoa(run.Discovered),
			strconv.Itoa(run.New),
			strconv.Itoa(run.Updated),
			strconv.Itoa(run.Missing),
			strconv.Itoa(run.Ambiguous),
			strconv.Itoa(run.Failed),
			took,
			errMsg,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Started", "Status", "Found", "New", "Updated", "Missing", "Ambiguous", "Failed", "Took", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}
