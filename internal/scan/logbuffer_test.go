package scan

import (
	"fmt"
	"testing"

	"github.com/HerbHall/taproot/pkg/models"
)

func TestLogBufferSequencing(t *testing.T) {
	b := newLogBuffer()
	for i := 0; i < 3; i++ {
		line := b.Append(models.ScanLog{Message: fmt.Sprintf("line %d", i)})
		if line.ID != int64(i+1) {
			t.Errorf("Append assigned ID %d, want %d", line.ID, i+1)
		}
	}
	if got := b.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestLogBufferAfterCursor(t *testing.T) {
	b := newLogBuffer()
	for i := 0; i < 5; i++ {
		b.Append(models.ScanLog{Message: fmt.Sprintf("line %d", i)})
	}

	tail := b.After(3)
	if len(tail) != 2 {
		t.Fatalf("After(3) returned %d lines, want 2", len(tail))
	}
	if tail[0].ID != 4 || tail[1].ID != 5 {
		t.Errorf("After(3) IDs = %d, %d; want 4, 5", tail[0].ID, tail[1].ID)
	}
}

func TestLogBufferEviction(t *testing.T) {
	b := newLogBuffer()
	for i := 0; i < logBufferSize+10; i++ {
		b.Append(models.ScanLog{Message: "x"})
	}

	all := b.After(0)
	if len(all) != logBufferSize {
		t.Fatalf("buffer holds %d lines, want %d", len(all), logBufferSize)
	}
	// Oldest retained line is the 11th ever appended.
	if all[0].ID != 11 {
		t.Errorf("oldest retained ID = %d, want 11", all[0].ID)
	}
	if got := b.Len(); got != int64(logBufferSize+10) {
		t.Errorf("Len() = %d, want %d", got, logBufferSize+10)
	}
}
