package printer

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/styles"
)

// TablePrinter prints installer information in a table format.
type TablePrinter struct {
	writer io.Writer
}

var _ Printer = &TablePrinter{}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintSteps prints the steps in execution order with their estimates.
func (t *TablePrinter) PrintSteps(steps []model.Step, totalEstimatedSeconds int, fastMode bool) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "#\tSTEP\tWORK\tESTIMATE")
	for _, s := range steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Number(), s.Name, s.WorkID, eta(s.EstimatedSeconds, fastMode))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(t.writer, "\n%d steps, ~%s total\n", len(steps), eta(totalEstimatedSeconds, fastMode))
	return nil
}

// PrintCompletion prints where the last run landed.
func (t *TablePrinter) PrintCompletion(c model.Completion) error {
	fmt.Fprintf(t.writer, "Run:        %s\n", c.RunID)
	fmt.Fprintf(t.writer, "Version:    %s\n", c.Version)
	fmt.Fprintf(t.writer, "Distro:     %s\n", c.Distro)
	fmt.Fprintf(t.writer, "Completed:  %s (%s)\n", FormatTimestamp(c.CompletedAt), TimeAgo(c.CompletedAt))
	fmt.Fprintf(t.writer, "Successful: %d/%d\n", c.SuccessfulSteps, c.TotalSteps)
	fmt.Fprintf(t.writer, "Failed:     %d\n", c.FailedSteps)
	return nil
}

// PrintSnapshotList prints snapshots in a table format.
func (t *TablePrinter) PrintSnapshotList(snapshots []model.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tID\tDISTRO\tSIZE\tCREATED")
	for _, s := range snapshots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.Name,
			s.ID,
			s.Distro,
			FormatBytes(s.SizeBytes),
			TimeAgo(s.CreatedAt),
		)
	}

	return nil
}

// PrintSnapshot prints a single snapshot.
func (t *TablePrinter) PrintSnapshot(s model.Snapshot) error {
	fmt.Fprintf(t.writer, "Name:     %s\n", s.Name)
	fmt.Fprintf(t.writer, "ID:       %s\n", s.ID)
	fmt.Fprintf(t.writer, "Distro:   %s\n", s.Distro)
	fmt.Fprintf(t.writer, "Path:     %s\n", s.Path)
	fmt.Fprintf(t.writer, "Size:     %s\n", FormatBytes(s.SizeBytes))
	fmt.Fprintf(t.writer, "Created:  %s\n", FormatTimestamp(s.CreatedAt))
	return nil
}

// PrintChecks prints one line per check and the counts.
func (t *TablePrinter) PrintChecks(results []model.CheckResult) error {
	for _, r := range results {
		var symbol string
		switch r.Status {
		case model.CheckStatusOK:
			symbol = styles.SuccessText.Render(styles.SymbolSuccess)
		case model.CheckStatusWarning:
			symbol = styles.WarningText.Render(styles.SymbolWarning)
		default:
			symbol = styles.ErrorText.Render(styles.SymbolFailure)
		}
		fmt.Fprintf(t.writer, "%s %s %s\n", symbol, styles.Title.Render(r.ID), r.Message)
	}

	ok, warnings, errs := model.CountByStatus(results)
	fmt.Fprintln(t.writer, styles.MutedText.Render(fmt.Sprintf("\n%d ok, %d warnings, %d errors", ok, warnings, errs)))
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func eta(seconds int, fastMode bool) string {
	return FormatDuration(time.Duration(displayedSeconds(seconds, fastMode)) * time.Second)
}
