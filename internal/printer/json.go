package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/devdroid/internal/model"
)

// JSONPrinter prints installer information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

var _ Printer = &JSONPrinter{}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type stepItem struct {
	Number           int    `json:"number"`
	Name             string `json:"name"`
	WorkID           string `json:"work_id"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

type stepsOutput struct {
	Steps                 []stepItem `json:"steps"`
	TotalSteps            int        `json:"total_steps"`
	TotalEstimatedSeconds int        `json:"total_estimated_seconds"`
	FastMode              bool       `json:"fast_mode"`
}

type completionOutput struct {
	Version         string    `json:"version"`
	RunID           string    `json:"run_id"`
	CompletedAt     time.Time `json:"completed_at"`
	Distro          string    `json:"distro"`
	SuccessfulSteps int       `json:"successful_steps"`
	FailedSteps     int       `json:"failed_steps"`
	TotalSteps      int       `json:"total_steps"`
}

type snapshotItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Distro    string    `json:"distro"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type checkItem struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintSteps prints the steps and totals in JSON format, estimates are shrunk in fast mode.
func (j *JSONPrinter) PrintSteps(steps []model.Step, totalEstimatedSeconds int, fastMode bool) error {
	out := stepsOutput{
		Steps:                 make([]stepItem, len(steps)),
		TotalSteps:            len(steps),
		TotalEstimatedSeconds: displayedSeconds(totalEstimatedSeconds, fastMode),
		FastMode:              fastMode,
	}
	for i, s := range steps {
		out.Steps[i] = stepItem{
			Number:           s.Number(),
			Name:             s.Name,
			WorkID:           s.WorkID,
			EstimatedSeconds: displayedSeconds(s.EstimatedSeconds, fastMode),
		}
	}

	return j.encode(out)
}

// PrintCompletion prints the completion in JSON format.
func (j *JSONPrinter) PrintCompletion(c model.Completion) error {
	return j.encode(completionOutput{
		Version:         c.Version,
		RunID:           c.RunID,
		CompletedAt:     c.CompletedAt.UTC(),
		Distro:          c.Distro,
		SuccessfulSteps: c.SuccessfulSteps,
		FailedSteps:     c.FailedSteps,
		TotalSteps:      c.TotalSteps,
	})
}

// PrintSnapshotList prints snapshots in JSON format.
func (j *JSONPrinter) PrintSnapshotList(snapshots []model.Snapshot) error {
	items := make([]snapshotItem, len(snapshots))
	for i, s := range snapshots {
		items[i] = toSnapshotItem(s)
	}
	return j.encode(items)
}

// PrintSnapshot prints a single snapshot in JSON format.
func (j *JSONPrinter) PrintSnapshot(s model.Snapshot) error {
	return j.encode(toSnapshotItem(s))
}

// PrintChecks prints the check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	items := make([]checkItem, len(results))
	for i, r := range results {
		items[i] = checkItem{ID: r.ID, Status: string(r.Status), Message: r.Message}
	}
	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toSnapshotItem(s model.Snapshot) snapshotItem {
	return snapshotItem{
		ID:        s.ID,
		Name:      s.Name,
		Distro:    s.Distro,
		Path:      s.Path,
		SizeBytes: s.SizeBytes,
		CreatedAt: s.CreatedAt.UTC(),
	}
}
