package scan

import (
	"sync"

	"github.com/HerbHall/taproot/pkg/models"
)

// logBufferSize is how many recent lines a scan keeps in memory for
// late subscribers before the database rows are queryable.
const logBufferSize = 500

// logBuffer is a bounded ring of the most recent log lines for one
// scan. Appends never block and never fail; the oldest line falls off.
type logBuffer struct {
	mu    sync.Mutex
	lines []models.ScanLog
	next  int64 // monotonically increasing line counter
}

func newLogBuffer() *logBuffer {
	return &logBuffer{}
}

// Append stores a line and stamps it with the next sequence number.
func (b *logBuffer) Append(line models.ScanLog) models.ScanLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	line.ID = b.next
	b.lines = append(b.lines, line)
	if len(b.lines) > logBufferSize {
		b.lines = b.lines[len(b.lines)-logBufferSize:]
	}
	return line
}

// After returns buffered lines with ID greater than after, oldest
// first.
func (b *logBuffer) After(after int64) []models.ScanLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.ScanLog
	for _, l := range b.lines {
		if l.ID > after {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the total number of lines appended over the buffer's
// lifetime, not just those retained.
func (b *logBuffer) Len() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}
