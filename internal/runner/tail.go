package runner

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

const (
	maxTailLineWidth = 240
	// Raw bytes kept per line, escape sequences included.
	maxTailLineBytes = 4 * maxTailLineWidth
)

// tailBuffer is an io.Writer that only keeps the last lines written to it.
// It is written by the background work and read by the foreground once the work ends.
type tailBuffer struct {
	max     int
	lines   []string
	partial strings.Builder
	// cr is set when the last byte was a carriage return.
	cr bool
	mu sync.Mutex
}

func newTailBuffer(max int) *tailBuffer {
	if max < 1 {
		max = 1
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range p {
		switch {
		case b == '\n':
			t.push(t.partial.String())
			t.partial.Reset()
			t.cr = false
		case b == '\r':
			t.cr = true
		default:
			// Progress bars of package managers rewrite the same line.
			if t.cr {
				t.partial.Reset()
				t.cr = false
			}
			if t.partial.Len() < maxTailLineBytes {
				t.partial.WriteByte(b)
			}
		}
	}

	return len(p), nil
}

func (t *tailBuffer) push(line string) {
	line = ansi.Truncate(ansi.Strip(line), maxTailLineWidth, "…")
	if strings.TrimSpace(line) == "" {
		return
	}

	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

// Lines returns the kept lines, including the last unterminated one.
func (t *tailBuffer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := make([]string, 0, len(t.lines)+1)
	lines = append(lines, t.lines...)
	if last := ansi.Strip(t.partial.String()); strings.TrimSpace(last) != "" {
		lines = append(lines, ansi.Truncate(last, maxTailLineWidth, "…"))
	}
	if len(lines) > t.max {
		lines = lines[len(lines)-t.max:]
	}

	return lines
}
