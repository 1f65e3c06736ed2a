package log

import (
	"io"
	"sync"
)

// RingBuffer keeps the most recent log records in memory, implementing
// [io.Writer]. Records are held while a redrawing view owns the terminal
// and flushed once the view exits.
type RingBuffer struct {
	records [][]byte
	next    int
	mu      sync.Mutex
	full    bool
}

// NewRingBuffer creates a [RingBuffer] holding up to capacity records.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 100
	}

	return &RingBuffer{records: make([][]byte, capacity)}
}

// Write stores a copy of p as one record, evicting the oldest record when
// the buffer is full.
func (b *RingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[b.next] = append([]byte(nil), p...)
	b.next = (b.next + 1) % len(b.records)
	if b.next == 0 {
		b.full = true
	}

	return len(p), nil
}

// Len returns the number of stored records.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.full {
		return len(b.records)
	}

	return b.next
}

// Truncated reports whether older records were evicted.
func (b *RingBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.full
}

// WriteTo writes all records, oldest first, to w and empties the buffer.
func (b *RingBuffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered [][]byte
	if b.full {
		ordered = append(ordered, b.records[b.next:]...)
	}
	ordered = append(ordered, b.records[:b.next]...)

	var total int64
	for _, rec := range ordered {
		n, err := w.Write(rec)
		total += int64(n)
		if err != nil {
			return total, err //nolint:wrapcheck // Return the writer's error.
		}
	}

	clear(b.records)
	b.next = 0
	b.full = false

	return total, nil
}
