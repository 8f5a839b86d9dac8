package remap

import "github.com/ramseymcgrath/kmbridge/hid"

// queueDepth must stay a power of two; indices wrap by masking.
const queueDepth = 16

// queuedReport is an opaque, fully-encoded wire report.
type queuedReport = [hid.ReportLen]byte

// reportQueue is a fixed-capacity FIFO ring. head and tail grow without
// bound; the difference is the fill level and the mask selects the slot.
// Push refuses when full, pop refuses when empty; neither ever waits.
type reportQueue struct {
	buf  [queueDepth]queuedReport
	head uint32
	tail uint32
}

func (q *reportQueue) push(r queuedReport) bool {
	if q.tail-q.head == queueDepth {
		return false
	}
	q.buf[q.tail&(queueDepth-1)] = r
	q.tail++
	return true
}

func (q *reportQueue) pop() (queuedReport, bool) {
	if q.tail == q.head {
		return queuedReport{}, false
	}
	r := q.buf[q.head&(queueDepth-1)]
	q.head++
	return r, true
}

// peek returns the oldest entry without consuming it, so a failed transmit
// attempt leaves the queue order intact.
func (q *reportQueue) peek() (queuedReport, bool) {
	if q.tail == q.head {
		return queuedReport{}, false
	}
	return q.buf[q.head&(queueDepth-1)], true
}

func (q *reportQueue) dropHead() {
	if q.tail != q.head {
		q.head++
	}
}

func (q *reportQueue) len() int { return int(q.tail - q.head) }

func (q *reportQueue) empty() bool { return q.tail == q.head }
