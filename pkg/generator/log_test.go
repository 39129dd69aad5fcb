package generator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_Lines(t *testing.T) {
	b := NewLogBuffer()
	b.Infof("reading %d resources", 7)
	b.Warnf("skipping grant")
	b.Errorf("boom")

	lines := b.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "info", lines[0].Level)
	assert.Equal(t, "reading 7 resources", lines[0].Message)
	assert.Equal(t, "warning", lines[1].Level)
	assert.Equal(t, "error", lines[2].Level)
}

func TestLogBuffer_SubscribeReplaysAndStreams(t *testing.T) {
	b := NewLogBuffer()
	b.Infof("first")

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Infof("second")
	b.Close()

	var messages []string
	for line := range ch {
		messages = append(messages, line.Message)
	}
	assert.Equal(t, []string{"first", "second"}, messages)
}

func TestLogBuffer_SubscribeAfterClose(t *testing.T) {
	b := NewLogBuffer()
	b.Infof("only")
	b.Close()
	b.Infof("dropped after close")

	ch, cancel := b.Subscribe()
	defer cancel()

	var messages []string
	for line := range ch {
		messages = append(messages, line.Message)
	}
	assert.Equal(t, []string{"only"}, messages)
	assert.Len(t, b.Lines(), 1)
}

func TestLogBuffer_SlowSubscriberReceivesEveryLine(t *testing.T) {
	b := NewLogBuffer()
	ch, cancel := b.Subscribe()
	defer cancel()

	// write far ahead of the reader before it drains anything
	const total = 300
	for i := 0; i < total; i++ {
		b.Infof("line %d", i)
	}
	b.Close()

	var messages []string
	for line := range ch {
		messages = append(messages, line.Message)
	}
	require.Len(t, messages, total)
	assert.Equal(t, "line 0", messages[0])
	assert.Equal(t, fmt.Sprintf("line %d", total-1), messages[total-1])
}

func TestLogBuffer_CancelDetaches(t *testing.T) {
	b := NewLogBuffer()
	ch, cancel := b.Subscribe()
	cancel()

	b.Infof("after cancel")
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
