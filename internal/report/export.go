package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"kitchenprint/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	jobsSheet    = "Jobs"
	summarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04:05"
)

var jobHeaders = []string{
	"Job", "Order", "Printer", "Device", "Role", "Status", "Attempts",
	"Generation", "Reprint of", "Error", "Created (UTC)", "Completed (UTC)",
}

var statusColors = map[string]string{
	models.JobStatusDone:    "#C6EFCE",
	models.JobStatusFailed:  "#FFC7CE",
	models.JobStatusSent:    "#FFEB9C",
	models.JobStatusPending: "#FFFFFF",
}

// ExportJobs writes the jobs to an xlsx file in dir and returns its path.
func ExportJobs(jobs []*models.PrintJob, tenantID int64, from, to time.Time, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	fileName := fmt.Sprintf("jobs_%d_%s_to_%s.xlsx", tenantID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(dir, fileName)

	out, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("error creating export file: %w", err)
	}
	defer out.Close()

	if err := WriteJobs(out, jobs); err != nil {
		return "", err
	}
	return filePath, out.Close()
}

// WriteJobs renders a workbook with a Jobs sheet and a per-printer Summary sheet.
func WriteJobs(w io.Writer, jobs []*models.PrintJob) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(jobsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeJobRows(f, jobs); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	writeSummary(f, jobs)

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeJobRows(f *excelize.File, jobs []*models.PrintJob) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	for i, h := range jobHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(jobsSheet, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(jobHeaders), 1)
	_ = f.SetCellStyle(jobsSheet, "A1", lastHeader, headerStyle)

	styles := make(map[string]int, len(statusColors))
	for status, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("error creating style: %w", err)
		}
		styles[status] = id
	}

	for i, j := range jobs {
		row := i + 2
		values := []any{
			j.ID, j.OrderID, j.PrinterID, optionalID(j.DeviceID), j.Role, j.Status, j.Attempts,
			j.Generation, optionalID(j.ReprintOf), j.ErrorMessage, j.CreatedAt.UTC().Format(timeLayout), optionalTime(j.CompletedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(jobsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[j.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(6, row)
			_ = f.SetCellStyle(jobsSheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(jobsSheet, "A", "I", 12)
	_ = f.SetColWidth(jobsSheet, "J", "J", 40)
	_ = f.SetColWidth(jobsSheet, "K", "L", 20)
	_ = f.SetPanes(jobsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return nil
}

type printerCounts struct {
	total, done, failed, open int
}

func writeSummary(f *excelize.File, jobs []*models.PrintJob) {
	counts := make(map[int64]*printerCounts)
	for _, j := range jobs {
		c, ok := counts[j.PrinterID]
		if !ok {
			c = &printerCounts{}
			counts[j.PrinterID] = c
		}
		c.total++
		switch j.Status {
		case models.JobStatusDone:
			c.done++
		case models.JobStatusFailed:
			c.failed++
		default:
			c.open++
		}
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	_ = f.SetSheetRow(summarySheet, "A1", &[]any{"Printer", "Total", "Done", "Failed", "Open"})
	for i, id := range ids {
		c := counts[id]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(summarySheet, cell, &[]any{id, c.total, c.done, c.failed, c.open})
	}
}

func optionalID(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
