package remap

import "time"

// buttonPhase tracks which source drives a button's forced state.
type buttonPhase uint8

const (
	// phasePhysical: not forced, the physical bit flows through (unless locked).
	phasePhysical buttonPhase = iota
	// phaseForcedPressed: a command override holds the button down.
	phaseForcedPressed
	// phaseForcedReleasing: released by command, forced-off until the timer runs out.
	phaseForcedReleasing
	// phaseClicking: timed press-hold then release-hold sequence.
	phaseClicking
)

// buttonState is one per-button machine. pressed is the state presented
// downstream whenever the button is forced or locked; the physical bit wins
// only in phasePhysical with the lock clear.
type buttonState struct {
	phase     buttonPhase
	pressed   bool
	locked    bool
	releaseAt time.Time
	// click deadlines: forced-off at releaseStart, back to physical at end.
	releaseStart time.Time
	clickEnd     time.Time
}

func (b *buttonState) press() {
	b.phase = phaseForcedPressed
	b.pressed = true
	b.releaseAt = time.Time{}
	b.releaseStart = time.Time{}
	b.clickEnd = time.Time{}
}

// release is only effective from phaseForcedPressed; the forced-off state
// auto-clears after hold so the transition back to physical follow is not
// machine-regular.
func (b *buttonState) release(now time.Time, hold time.Duration) {
	if b.phase != phaseForcedPressed {
		return
	}
	b.pressed = false
	b.releaseAt = now.Add(hold)
	b.phase = phaseForcedReleasing
}

func (b *buttonState) beginClick(now time.Time, pressHold, releaseHold time.Duration) {
	b.phase = phaseClicking
	b.pressed = true
	b.releaseAt = time.Time{}
	b.releaseStart = now.Add(pressHold)
	b.clickEnd = b.releaseStart.Add(releaseHold)
}

// tick advances the timers. Deadlines are checked, never awaited.
func (b *buttonState) tick(now time.Time) {
	switch b.phase {
	case phaseForcedReleasing:
		if !now.Before(b.releaseAt) {
			b.phase = phasePhysical
		}
	case phaseClicking:
		if !now.Before(b.clickEnd) {
			b.phase = phasePhysical
			b.pressed = false
			return
		}
		if !now.Before(b.releaseStart) {
			b.pressed = false
		}
	}
}

// merged resolves the downstream bit. The lock is consulted fresh on every
// call so a lock toggle takes effect on the very next merge cycle.
func (b *buttonState) merged(physical bool) bool {
	if b.locked {
		return b.pressed
	}
	if b.phase != phasePhysical {
		return b.pressed
	}
	return physical
}

// forced reports whether a command override currently drives the button.
func (b *buttonState) forced() bool { return b.phase != phasePhysical }
