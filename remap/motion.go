package remap

import (
	"sync"

	"github.com/ramseymcgrath/kmbridge/hid"
)

// motionState accumulates command-issued relative motion. X/Y accumulate in
// int32 so repeated merges never lose precision to an intermediate narrow
// type; the wheel is clamped to the int8 report range on every update.
//
// Accumulators survive merge cycles: they are read by the pipeline and
// cleared only when a transmit completes, which is why this struct carries
// its own mutex (the completion signal arrives from the transport context).
type motionState struct {
	mu    sync.Mutex
	x, y  int32
	wheel int32
	lockX bool
	lockY bool
}

// move adds a command delta. A locked axis drops its contribution silently.
func (m *motionState) move(dx, dy int32) {
	m.mu.Lock()
	if !m.lockX {
		m.x += dx
	}
	if !m.lockY {
		m.y += dy
	}
	m.mu.Unlock()
}

func (m *motionState) addWheel(w int32) {
	m.mu.Lock()
	m.wheel = int32(hid.ClampInt8(m.wheel + w))
	m.mu.Unlock()
}

func (m *motionState) snapshot() (x, y, wheel int32, lockX, lockY bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.x, m.y, m.wheel, m.lockX, m.lockY
}

// clear drops accumulated motion. Locks are configuration, not motion, and
// are left untouched.
func (m *motionState) clear() {
	m.mu.Lock()
	m.x, m.y, m.wheel = 0, 0, 0
	m.mu.Unlock()
}

func (m *motionState) setLockX(locked bool) {
	m.mu.Lock()
	m.lockX = locked
	m.mu.Unlock()
}

func (m *motionState) setLockY(locked bool) {
	m.mu.Lock()
	m.lockY = locked
	m.mu.Unlock()
}

func (m *motionState) lockedX() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockX
}

func (m *motionState) lockedY() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockY
}
