package generator

import (
	"fmt"
	"sync"
	"time"
)

// LogLine is one entry in a task log.
type LogLine struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// LogBuffer is the append-only log of a single task. One writer (the task
// goroutine) appends; any number of readers snapshot or subscribe.
// Subscribers pull from the shared line slice at their own cursor, so a
// slow reader delays only itself: the writer never blocks and no line is
// ever skipped.
type LogBuffer struct {
	mu     sync.Mutex
	wake   *sync.Cond
	lines  []LogLine
	closed bool
}

// NewLogBuffer creates an empty task log.
func NewLogBuffer() *LogBuffer {
	b := &LogBuffer{}
	b.wake = sync.NewCond(&b.mu)
	return b
}

func (b *LogBuffer) append(level, format string, args ...interface{}) {
	line := LogLine{Time: time.Now().UTC(), Level: level, Message: fmt.Sprintf(format, args...)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.lines = append(b.lines, line)
	b.wake.Broadcast()
}

// Infof records an informational line.
func (b *LogBuffer) Infof(format string, args ...interface{}) {
	b.append("info", format, args...)
}

// Warnf records a warning line.
func (b *LogBuffer) Warnf(format string, args ...interface{}) {
	b.append("warning", format, args...)
}

// Errorf records an error line.
func (b *LogBuffer) Errorf(format string, args ...interface{}) {
	b.append("error", format, args...)
}

// Lines returns a snapshot of all lines recorded so far.
func (b *LogBuffer) Lines() []LogLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LogLine, len(b.lines))
	copy(out, b.lines)
	return out
}

// Subscribe returns a channel that replays the lines recorded so far and
// then delivers every subsequent line, in order and without gaps, until
// the log is closed. The returned cancel function detaches the
// subscription; the channel is closed either way.
func (b *LogBuffer) Subscribe() (<-chan LogLine, func()) {
	ch := make(chan LogLine)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			// taking the lock pairs the stop signal with the wakeup, so a
			// reader about to wait cannot miss it
			b.mu.Lock()
			close(stop)
			b.wake.Broadcast()
			b.mu.Unlock()
		})
	}

	go func() {
		defer close(ch)
		cursor := 0
		for {
			b.mu.Lock()
			for cursor == len(b.lines) && !b.closed && !stopRequested(stop) {
				b.wake.Wait()
			}
			if stopRequested(stop) || cursor == len(b.lines) {
				b.mu.Unlock()
				return
			}
			line := b.lines[cursor]
			cursor++
			b.mu.Unlock()

			select {
			case ch <- line:
			case <-stop:
				return
			}
		}
	}()
	return ch, cancel
}

func stopRequested(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Close marks the log complete. Subscribers drain the remaining lines and
// then see their channel closed.
func (b *LogBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.wake.Broadcast()
}
