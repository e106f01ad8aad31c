// Package printer renders the installer command outputs for humans (tables) or machines (JSON).
package printer

import "github.com/slok/devdroid/internal/model"

// Printer knows how to print installer information in different formats.
type Printer interface {
	// PrintSteps prints the registered steps and their estimated total. FAST_MODE ETAs are a
	// fourth of the estimation.
	PrintSteps(steps []model.Step, totalEstimatedSeconds int, fastMode bool) error
	PrintCompletion(c model.Completion) error
	PrintSnapshotList(snapshots []model.Snapshot) error
	PrintSnapshot(s model.Snapshot) error
	PrintChecks(results []model.CheckResult) error
	PrintMessage(msg string) error
}

// FastModeDivisor shrinks the displayed ETAs in fast mode.
const FastModeDivisor = 4

func displayedSeconds(seconds int, fastMode bool) int {
	if fastMode {
		return seconds / FastModeDivisor
	}
	return seconds
}
