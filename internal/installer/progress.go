package installer

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/slok/devdroid/internal/printer"
)

const progressBarWidth = 30

// ProgressWriter wraps an io.Writer to report the download progress as `\r` lines.
type ProgressWriter struct {
	dst          io.Writer
	statusWriter io.Writer
	total        int64
	written      int64
	lastPct      int
	mu           sync.Mutex
}

// NewProgressWriter creates a new progress writer.
// dst receives the data, statusWriter receives the progress lines.
// If total is 0 or negative only the downloaded bytes are shown.
func NewProgressWriter(dst io.Writer, statusWriter io.Writer, total int64) *ProgressWriter {
	return &ProgressWriter{
		dst:          dst,
		statusWriter: statusWriter,
		total:        total,
		lastPct:      -1,
	}
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.dst.Write(p)

	pw.mu.Lock()
	pw.written += int64(n)
	pw.printProgress(false)
	pw.mu.Unlock()

	return n, err
}

// Written returns the number of bytes written so far.
func (pw *ProgressWriter) Written() int64 {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.written
}

// Finish prints the final progress line ending with a newline.
func (pw *ProgressWriter) Finish() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.printProgress(true)
	fmt.Fprintln(pw.statusWriter)
}

func (pw *ProgressWriter) printProgress(force bool) {
	if pw.total <= 0 {
		fmt.Fprintf(pw.statusWriter, "\r%s downloaded", printer.FormatBytes(pw.written))
		return
	}

	pct := int(min(pw.written*100/pw.total, 100))
	if pct == pw.lastPct && !force {
		return
	}
	pw.lastPct = pct

	filled := pct * progressBarWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)
	fmt.Fprintf(pw.statusWriter, "\r[%s] %3d%% %s / %s", bar, pct, printer.FormatBytes(pw.written), printer.FormatBytes(pw.total))
}
