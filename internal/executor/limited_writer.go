package executor

import (
	"fmt"
	"strings"
	"sync"
)

// limitedWriter captures a stream up to a byte cap. Writes past the cap
// are counted, not stored, and the rendered output ends with a
// truncation note. Write never returns a short count so the child
// process never sees a pipe error.
type limitedWriter struct {
	mu        sync.Mutex
	buf       strings.Builder
	max       int64
	written   int64
	discarded int64
}

func newLimitedWriter(max int64) *limitedWriter {
	return &limitedWriter{max: max}
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	remaining := w.max - w.written
	if remaining <= 0 {
		w.discarded += int64(len(p))
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		w.buf.Write(p[:remaining])
		w.written += remaining
		w.discarded += int64(len(p)) - remaining
		return len(p), nil
	}
	w.buf.Write(p)
	w.written += int64(len(p))
	return len(p), nil
}

// String renders the captured stream, with a truncation summary when
// bytes were dropped.
func (w *limitedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.discarded > 0 {
		return w.buf.String() + fmt.Sprintf("\n[truncated: %d bytes]", w.discarded)
	}
	return w.buf.String()
}

// Discarded returns the number of dropped bytes.
func (w *limitedWriter) Discarded() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.discarded
}
