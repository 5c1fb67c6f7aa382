// Package console holds a bounded in-memory buffer of game-server output.
//
// The process runner feeds captured stdout/stderr lines into a Buffer, and
// the API serves the retained lines so a browser can show a live console
// without the panel ever writing server output to disk.
package console

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of lines retained when no capacity is given.
const DefaultCapacity = 500

// Line is a single captured output line with its arrival time and stream.
type Line struct {
	Time   time.Time `json:"time"`
	Stream string    `json:"stream"` // "stdout" or "stderr"
	Text   string    `json:"text"`
}

// Buffer is a fixed-capacity ring of output lines. When full, the oldest
// line is dropped for each new one appended.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	lines []Line
	next  int
	full  bool
}

// NewBuffer creates a Buffer retaining at most capacity lines.
// A non-positive capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		lines: make([]Line, capacity),
	}
}

// Append adds a line to the buffer, evicting the oldest if at capacity.
func (b *Buffer) Append(stream, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.next] = Line{
		Time:   time.Now().UTC(),
		Stream: stream,
		Text:   text,
	}
	b.next++
	if b.next == len(b.lines) {
		b.next = 0
		b.full = true
	}
}

// Lines returns the retained lines in arrival order, oldest first.
func (b *Buffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]Line, b.next)
		copy(out, b.lines[:b.next])
		return out
	}

	out := make([]Line, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	out = append(out, b.lines[:b.next]...)
	return out
}

// Len returns the number of retained lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.lines)
	}
	return b.next
}

// Clear discards all retained lines.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = 0
	b.full = false
}
