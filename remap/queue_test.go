package remap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qr(b byte) queuedReport {
	var r queuedReport
	r[0] = b
	return r
}

func TestReportQueueOrdering(t *testing.T) {
	var q reportQueue

	_, ok := q.pop()
	assert.False(t, ok, "pop on empty queue must fail")

	for i := 0; i < queueDepth; i++ {
		require.True(t, q.push(qr(byte(i))), "push %d", i)
	}
	assert.False(t, q.push(qr(0xFF)), "push on full queue must fail")
	assert.Equal(t, queueDepth, q.len())

	for i := 0; i < queueDepth; i++ {
		r, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, byte(i), r[0], "FIFO order")
	}
	assert.True(t, q.empty())
}

func TestReportQueueWraparound(t *testing.T) {
	var q reportQueue

	// Drive head/tail well past the buffer size so the mask wraps.
	for i := 0; i < queueDepth*5; i++ {
		require.True(t, q.push(qr(byte(i))))
		r, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, byte(i), r[0])
	}
}

func TestReportQueuePeekKeepsHead(t *testing.T) {
	var q reportQueue
	require.True(t, q.push(qr(1)))
	require.True(t, q.push(qr(2)))

	r, ok := q.peek()
	require.True(t, ok)
	assert.Equal(t, byte(1), r[0])
	assert.Equal(t, 2, q.len(), "peek must not consume")

	q.dropHead()
	r, ok = q.peek()
	require.True(t, ok)
	assert.Equal(t, byte(2), r[0])
}
