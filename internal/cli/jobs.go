package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"kitchenprint/internal/database"
	"kitchenprint/internal/models"
	"kitchenprint/internal/report"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// JobsCmd inspects and reprints print jobs.
func JobsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect print jobs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List print jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			orderID, _ := cmd.Flags().GetInt64("order")
			limit, _ := cmd.Flags().GetInt("limit")
			if status != "" && !models.ValidJobStatus(status) {
				return fmt.Errorf("invalid status %q", status)
			}

			dispatch, err := app.dispatch()
			if err != nil {
				return err
			}
			jobs, err := dispatch.ListJobs(context.Background(), database.JobFilter{
				TenantID: tenantID,
				Status:   status,
				OrderID:  orderID,
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			return printJobs(app.Out, jobs)
		},
	}
	list.Flags().Int64("tenant", 0, "tenant id")
	list.Flags().String("status", "", "filter by status (pending, sent, done, failed)")
	list.Flags().Int64("order", 0, "filter by order id")
	list.Flags().Int("limit", 100, "maximum number of jobs")

	stuck := &cobra.Command{
		Use:   "stuck",
		Short: "List jobs not printed in time",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			olderThan, _ := cmd.Flags().GetDuration("older-than")

			dispatch, err := app.dispatch()
			if err != nil {
				return err
			}
			jobs, err := dispatch.StuckJobs(context.Background(), tenantID, olderThan)
			if err != nil {
				return fmt.Errorf("failed to list stuck jobs: %w", err)
			}
			return printJobs(app.Out, jobs)
		},
	}
	stuck.Flags().Int64("tenant", 0, "tenant id")
	stuck.Flags().Duration("older-than", models.StuckJobThreshold, "sent or queued at least this long ago")

	reprint := &cobra.Command{
		Use:   "reprint [job-id]",
		Short: "Reprint a job as a new attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			jobID, err := parseID(args[0])
			if err != nil {
				return err
			}
			dispatch, err := app.dispatch()
			if err != nil {
				return err
			}
			job, err := dispatch.Reprint(context.Background(), tenantID, jobID)
			if err != nil {
				return fmt.Errorf("failed to reprint job: %w", err)
			}
			fmt.Fprintf(app.Out, "%s Reprint job %d created (generation %d), status %s\n",
				okColor.Sprint("✓"), job.ID, job.Generation, statusColor(job.Status))
			return nil
		},
	}
	reprint.Flags().Int64("tenant", 0, "tenant id")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export a tenant's jobs to xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			dir, _ := cmd.Flags().GetString("dir")

			from, to, err := parseRange(fromStr, toStr, time.Now().UTC())
			if err != nil {
				return err
			}

			dispatch, err := app.dispatch()
			if err != nil {
				return err
			}
			jobs, err := dispatch.ListJobs(context.Background(), database.JobFilter{
				TenantID: tenantID,
				From:     from,
				To:       to,
			})
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			path, err := report.ExportJobs(jobs, tenantID, from, to, dir)
			if err != nil {
				return fmt.Errorf("failed to export jobs: %w", err)
			}
			fmt.Fprintf(app.Out, "%s Exported %d jobs to %s\n", okColor.Sprint("✓"), len(jobs), path)
			return nil
		},
	}
	export.Flags().Int64("tenant", 0, "tenant id")
	export.Flags().String("from", "", "first day, YYYY-MM-DD (default: 7 days ago)")
	export.Flags().String("to", "", "last day inclusive, YYYY-MM-DD (default: today)")
	export.Flags().String("dir", "exports", "output directory")

	cmd.AddCommand(list, stuck, reprint, export)
	return cmd
}

// parseRange returns [from, to) covering whole UTC days.
func parseRange(fromStr, toStr string, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -7)
	to := today.AddDate(0, 0, 1)

	if fromStr != "" {
		t, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = t.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from must be before --to")
	}
	return from, to, nil
}

func printJobs(out io.Writer, jobs []*models.PrintJob) error {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tPRINTER\tDEVICE\tROLE\tSTATUS\tGEN\tATTEMPTS\tCREATED\tERROR")
	for _, j := range jobs {
		device := "direct"
		if j.DeviceID != nil {
			device = strconv.FormatInt(*j.DeviceID, 10)
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			j.ID, j.OrderID, j.PrinterID, device, j.Role, statusColor(j.Status),
			j.Generation, j.Attempts, j.CreatedAt.Format(time.RFC3339), orDash(j.ErrorMessage))
	}
	return w.Flush()
}
