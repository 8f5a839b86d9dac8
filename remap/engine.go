// Package remap implements the report remapping core: per-button override
// state machines, command-issued motion accumulation, report injection, the
// merge pipeline, and the at-most-one-in-flight outbound delivery queue.
//
// The core performs no I/O. Physical reports, command effects, and ticks are
// pushed in from a single polling goroutine; the only entry point safe to
// call from another goroutine is TransmitComplete, which mirrors the
// transmit-completion interrupt of the hardware this replaces.
package remap

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramseymcgrath/kmbridge/hid"
)

// Sink is the transport's transmit side. TryTransmit never blocks: false
// means busy or rejected and the report is queued by the caller. Exactly one
// call to Engine.TransmitComplete must follow every true return.
type Sink interface {
	TryTransmit(report []byte) bool
}

// Timing bounds the randomized button sequences. Forced releases hold for
// uniform [ReleaseMin, ReleaseMax); clicks hold pressed for uniform
// [ClickHoldMin, ClickHoldMax) and then forced-released for a release hold.
type Timing struct {
	ReleaseMin   time.Duration
	ReleaseMax   time.Duration
	ClickHoldMin time.Duration
	ClickHoldMax time.Duration
}

// DefaultTiming mirrors the hold windows of the original hardware box.
func DefaultTiming() Timing {
	return Timing{
		ReleaseMin:   125 * time.Millisecond,
		ReleaseMax:   175 * time.Millisecond,
		ClickHoldMin: 75 * time.Millisecond,
		ClickHoldMax: 125 * time.Millisecond,
	}
}

// Config carries engine construction options.
type Config struct {
	Timing Timing
	// IdleAfter demotes Active to Idle after this much quiet time.
	IdleAfter time.Duration
	// RandDur overrides the uniform duration source. Nil uses math/rand/v2.
	// Only the distribution over [min, max) is contractual.
	RandDur func(min, max time.Duration) time.Duration
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	Transmitted      uint64
	Suppressed       uint64
	Injected         uint64
	DroppedDelivery  uint64
	DroppedInjection uint64
	BadReports       uint64
}

// Engine is the single-instance core state aggregate. All fields except
// the outbound sub-struct and motion are owned by the polling goroutine.
type Engine struct {
	cfg    Config
	sink   Sink
	status StatusSink
	logger *slog.Logger

	buttons     [hid.ButtonCount]buttonState
	motion      motionState
	inject      reportQueue
	physButtons uint8

	// out is the only state shared with the transmit-completion context.
	// Every access runs under mu and the critical sections stay short.
	out struct {
		mu       sync.Mutex
		inflight bool
		queue    reportQueue
		lastSent queuedReport
		sentAny  bool
	}

	transmitted      atomic.Uint64
	suppressed       atomic.Uint64
	injected         atomic.Uint64
	droppedDelivery  atomic.Uint64
	droppedInjection atomic.Uint64
	badReports       atomic.Uint64

	cur          Status
	lastActivity time.Time
}

// New builds an engine in boot phase 1. Call Ready once transports are up.
func New(cfg Config, sink Sink, status StatusSink, logger *slog.Logger) *Engine {
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = 500 * time.Millisecond
	}
	if cfg.RandDur == nil {
		cfg.RandDur = uniformDur
	}
	e := &Engine{
		cfg:    cfg,
		sink:   sink,
		status: status,
		logger: logger,
		cur:    -1,
	}
	e.setStatus(StatusBootPhase1)
	return e
}

func uniformDur(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// SetTiming replaces the randomized hold windows; zero fields keep defaults.
func (e *Engine) SetTiming(t Timing) {
	def := DefaultTiming()
	if t.ReleaseMin <= 0 || t.ReleaseMax <= t.ReleaseMin {
		t.ReleaseMin, t.ReleaseMax = def.ReleaseMin, def.ReleaseMax
	}
	if t.ClickHoldMin <= 0 || t.ClickHoldMax <= t.ClickHoldMin {
		t.ClickHoldMin, t.ClickHoldMax = def.ClickHoldMin, def.ClickHoldMax
	}
	e.cfg.Timing = t
}

// Ready marks the transports attached (boot phase 2). The first merge cycle
// after this emits a report unconditionally to establish host state.
func (e *Engine) Ready() {
	e.setStatus(StatusBootPhase2)
}

// HandleReport feeds one raw physical report through the merge pipeline.
// Unrecognized lengths are counted and dropped with no state change.
func (e *Engine) HandleReport(raw []byte, now time.Time) {
	rep, ok := hid.DecodeReport(raw)
	if !ok {
		e.badReports.Add(1)
		if e.logger != nil {
			e.logger.Debug("dropping physical report with unrecognized length", "len", len(raw))
		}
		return
	}
	e.physButtons = rep.Buttons
	e.merge(rep, now)
}

// Tick advances button timers, runs a merge cycle against the last physical
// button state (command-driven motion rides out on ticks when the physical
// device is quiet), and demotes Active to Idle after the quiet period.
// Call at 100 Hz or faster.
func (e *Engine) Tick(now time.Time) {
	for i := range e.buttons {
		e.buttons[i].tick(now)
	}
	e.merge(hid.MouseReport{Buttons: e.physButtons}, now)
	if e.cur == StatusActive && now.Sub(e.lastActivity) >= e.cfg.IdleAfter {
		e.setStatus(StatusIdle)
	}
}

// merge is one cycle of the report pipeline: injected reports bypass the
// computation wholesale; otherwise buttons resolve through the lock/forced/
// physical priority and motion sums clamp exactly once, here.
func (e *Engine) merge(phys hid.MouseReport, now time.Time) {
	if enc, ok := e.inject.pop(); ok {
		e.injected.Add(1)
		e.deliver(enc, true, now)
		return
	}

	var out hid.MouseReport
	out.Buttons = e.mergeButtons(phys.Buttons)
	x, y, wheel, lockX, lockY := e.motion.snapshot()
	if lockX {
		out.X = phys.X
	} else {
		out.X = hid.ClampInt16(int32(phys.X) + x)
	}
	if lockY {
		out.Y = phys.Y
	} else {
		out.Y = hid.ClampInt16(int32(phys.Y) + y)
	}
	out.Wheel = hid.ClampInt8(int32(phys.Wheel) + wheel)
	out.Pan = phys.Pan

	e.deliver(out.Encode(), false, now)
}

func (e *Engine) mergeButtons(physical uint8) uint8 {
	var mask uint8
	for i := range e.buttons {
		if e.buttons[i].merged(physical&(1<<i) != 0) {
			mask |= 1 << i
		}
	}
	return mask
}

// deliver enforces the outbound contract: duplicate suppression (injected
// reports are deliberate and exempt), at most one report in flight, FIFO
// buffering under backpressure, drop-and-count when the queue is full.
func (e *Engine) deliver(enc queuedReport, injected bool, now time.Time) {
	e.out.mu.Lock()
	if !injected && e.out.sentAny && enc == e.out.lastSent {
		e.out.mu.Unlock()
		e.suppressed.Add(1)
		return
	}
	if e.out.inflight {
		if !e.out.queue.push(enc) {
			e.droppedDelivery.Add(1)
		}
		e.out.mu.Unlock()
		return
	}
	if !e.out.queue.empty() {
		// Older reports are still waiting on a busy transport; keep FIFO
		// order by queueing behind them and retrying the head.
		if !e.out.queue.push(enc) {
			e.droppedDelivery.Add(1)
		}
		e.drainLocked()
		e.out.mu.Unlock()
		return
	}
	if e.sink.TryTransmit(enc[:]) {
		e.out.inflight = true
		e.out.lastSent = enc
		e.out.sentAny = true
		e.out.mu.Unlock()
		e.transmitted.Add(1)
		e.markActive(now)
		return
	}
	if !e.out.queue.push(enc) {
		e.droppedDelivery.Add(1)
	}
	e.out.mu.Unlock()
}

// TransmitComplete is the asynchronous completion signal: exactly one call
// per accepted transmit, from any goroutine. It releases the accumulated
// motion that rode out on the completed report and chains the next queued
// report immediately instead of waiting for a tick.
func (e *Engine) TransmitComplete() {
	e.motion.clear()
	e.out.mu.Lock()
	e.out.inflight = false
	e.drainLocked()
	e.out.mu.Unlock()
}

// drainLocked attempts to transmit the queue head. The head is consumed
// only on success so a refused attempt stays first in line.
func (e *Engine) drainLocked() {
	enc, ok := e.out.queue.peek()
	if !ok {
		return
	}
	if e.sink.TryTransmit(enc[:]) {
		e.out.queue.dropHead()
		e.out.inflight = true
		e.out.lastSent = enc
		e.out.sentAny = true
		e.transmitted.Add(1)
	}
}

// Inject queues a fully-formed report that will replace the next merge
// cycle's output. False means the injection queue is full and the report
// was dropped.
func (e *Engine) Inject(r hid.MouseReport) bool {
	if e.inject.push(r.Encode()) {
		return true
	}
	e.droppedInjection.Add(1)
	return false
}

// Press forces a button down until Release or a lock override.
func (e *Engine) Press(btn int) {
	if btn < 0 || btn >= hid.ButtonCount {
		return
	}
	e.buttons[btn].press()
}

// Release ends a forced press; the button stays forced-off for a
// randomized hold before physical follow resumes.
func (e *Engine) Release(btn int, now time.Time) {
	if btn < 0 || btn >= hid.ButtonCount {
		return
	}
	t := e.cfg.Timing
	e.buttons[btn].release(now, e.cfg.RandDur(t.ReleaseMin, t.ReleaseMax))
}

// Click starts the two-phase timed click sequence on a button.
func (e *Engine) Click(btn int, now time.Time) {
	if btn < 0 || btn >= hid.ButtonCount {
		return
	}
	t := e.cfg.Timing
	e.buttons[btn].beginClick(now,
		e.cfg.RandDur(t.ClickHoldMin, t.ClickHoldMax),
		e.cfg.RandDur(t.ReleaseMin, t.ReleaseMax))
}

// SetButtonLock makes command overrides the sole source for a button.
func (e *Engine) SetButtonLock(btn int, locked bool) {
	if btn < 0 || btn >= hid.ButtonCount {
		return
	}
	e.buttons[btn].locked = locked
}

// ButtonLocked reports the per-button lock flag.
func (e *Engine) ButtonLocked(btn int) bool {
	if btn < 0 || btn >= hid.ButtonCount {
		return false
	}
	return e.buttons[btn].locked
}

// Buttons returns the merged bitmask exactly as the next cycle would emit it.
func (e *Engine) Buttons() uint8 {
	return e.mergeButtons(e.physButtons)
}

// Move accumulates command motion; locked axes drop their share.
func (e *Engine) Move(dx, dy int32) { e.motion.move(dx, dy) }

// AddWheel accumulates wheel motion, clamped to the report range immediately.
func (e *Engine) AddWheel(w int32) { e.motion.addWheel(w) }

func (e *Engine) SetAxisLockX(locked bool) { e.motion.setLockX(locked) }
func (e *Engine) SetAxisLockY(locked bool) { e.motion.setLockY(locked) }
func (e *Engine) AxisLockedX() bool        { return e.motion.lockedX() }
func (e *Engine) AxisLockedY() bool        { return e.motion.lockedY() }

// QueuedReports returns the delivery queue depth, for tests and diagnostics.
func (e *Engine) QueuedReports() int {
	e.out.mu.Lock()
	defer e.out.mu.Unlock()
	return e.out.queue.len()
}

// Stats returns a counter snapshot.
func (e *Engine) Stats() Stats {
	return Stats{
		Transmitted:      e.transmitted.Load(),
		Suppressed:       e.suppressed.Load(),
		Injected:         e.injected.Load(),
		DroppedDelivery:  e.droppedDelivery.Load(),
		DroppedInjection: e.droppedInjection.Load(),
		BadReports:       e.badReports.Load(),
	}
}

func (e *Engine) markActive(now time.Time) {
	e.lastActivity = now
	e.setStatus(StatusActive)
}

func (e *Engine) setStatus(s Status) {
	if e.cur == s {
		return
	}
	e.cur = s
	if e.status != nil {
		e.status.SetStatus(s)
	}
}
