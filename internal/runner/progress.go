package runner

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/x/ansi"

	"github.com/slok/devdroid/internal/printer"
	"github.com/slok/devdroid/internal/safemath"
	"github.com/slok/devdroid/internal/styles"
)

// Estimate bounds for a single background operation, in seconds.
const (
	DefaultEstimate = 30
	MinEstimate     = 5
	MaxEstimate     = 3600
)

const (
	rampPercent       = 90
	maxRunningPercent = 99
	minOvertimeTail   = 5
)

// ParseEstimate returns the estimate in seconds from a raw (env, config) value. Malformed or
// out of range values resolve to DefaultEstimate.
func ParseEstimate(raw string) int {
	n, ok := safemath.ParseNonNeg(raw)
	if !ok {
		return DefaultEstimate
	}
	return ValidEstimate(n)
}

// ValidEstimate returns the estimate if it is inside [MinEstimate, MaxEstimate], otherwise
// DefaultEstimate.
func ValidEstimate(n int) int {
	if n < MinEstimate || n > MaxEstimate {
		return DefaultEstimate
	}
	return n
}

// Percent returns the completion percentage of a running operation that has been running for
// elapsed seconds and was estimated to take estimated seconds.
//
// The value ramps linearly up to 90 at the estimate. On overtime it approaches 100 in steps of
// a third of the estimate (at least 5s) and never goes over 99.
func Percent(elapsed, estimated int) int {
	if estimated < 1 {
		estimated = 1
	}
	if elapsed < 0 {
		elapsed = 0
	}

	if elapsed <= estimated {
		// 128 bit product, the quotient always fits as elapsed <= estimated.
		hi, lo := bits.Mul64(uint64(elapsed), rampPercent)
		pct, _ := bits.Div64(hi, lo, uint64(estimated))
		return int(pct)
	}

	over, _ := safemath.Sub(elapsed, estimated)
	tail := max(minOvertimeTail, estimated/3)
	scaled, _ := safemath.Mul(over, 10)
	add := min(10, scaled/tail)

	return min(maxRunningPercent, rampPercent+add)
}

// statusRenderer renders the in progress status line of an operation.
type statusRenderer struct {
	bar      progress.Model
	width    int
	fastMode bool
}

func newStatusRenderer(width int, fastMode bool) statusRenderer {
	from, to := styles.ProgressGradient()
	return statusRenderer{
		bar: progress.New(
			progress.WithGradient(from, to),
			progress.WithWidth(20),
			progress.WithoutPercentage(),
		),
		width:    width,
		fastMode: fastMode,
	}
}

func (s statusRenderer) running(label string, elapsed time.Duration, estimated int) string {
	secs := int(elapsed / time.Second)
	pct := Percent(secs, estimated)

	line := fmt.Sprintf("%s %s %3d%% %s",
		label,
		s.bar.ViewAs(float64(pct)/100),
		pct,
		styles.MutedText.Render(s.eta(secs, estimated)),
	)

	return ansi.Truncate(line, s.width, "…")
}

func (s statusRenderer) eta(elapsed, estimated int) string {
	left, _ := safemath.Sub(estimated, elapsed)
	if left == 0 {
		return "(taking longer than expected)"
	}
	if s.fastMode {
		left /= 4
	}
	return "(~" + printer.FormatDuration(time.Duration(left)*time.Second) + " left)"
}

func (s statusRenderer) success(label string, d time.Duration) string {
	return fmt.Sprintf("%s %s %s", styles.SuccessText.Render(styles.SymbolSuccess), label,
		styles.MutedText.Render("("+printer.FormatDuration(d)+")"))
}

func (s statusRenderer) failure(label string, exitCode int, d time.Duration) string {
	return fmt.Sprintf("%s %s %s", styles.ErrorText.Render(styles.SymbolFailure), label,
		styles.MutedText.Render(fmt.Sprintf("(exit %d, %s)", exitCode, printer.FormatDuration(d))))
}
