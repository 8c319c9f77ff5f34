package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cesargomez89/recshelf/internal/app"
	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/domain"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	var (
		status   string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "List cataloged recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *domain.RecordingStatus
			if status != "" {
				s, err := domain.ParseRecordingStatus(status)
				if err != nil {
					return err
				}
				filter = &s
			}

			db, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read only

			svc := app.NewRecordingService(db, ctx.logger())
			result, err := svc.List(cmd.Context(), filter, page, pageSize)
			if err != nil {
				return err
			}
			printRecordings(cmd.OutOrStdout(), result, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "only list recordings in this status")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", constants.DefaultPageSize, "recordings per page")
	return cmd
}

func printRecordings(out io.Writer, page *app.RecordingPage, now time.Time) {
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No recordings found.")
		return
	}

	rows := make([][]string, 0, len(page.Items))
	for _, rec := range page.Items {
		checked := "never"
		if rec.LastCheckedAt != nil {
			checked = humanize.RelTime(*rec.LastCheckedAt, now, "ago", "from now")
		}
		var size uint64
		if rec.FileSizeBytes > 0 {
			size = uint64(rec.FileSizeBytes)
		}
		rows = append(rows, []string{
			rec.ID,
			rec.Status.String(),
			rec.FilePath,
			strconv.FormatFloat(rec.DurationSeconds, 'f', 1, 64) + "s",
			humanize.Bytes(size),
			checked,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Status", "Path", "Duration", "Size", "Checked"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Page %d, %d of %d recordings.\n", page.Page, len(page.Items), page.Total)
}
