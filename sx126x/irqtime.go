package sx126x

import "sync/atomic"

// IRQ timestamp capture, for timing diagnostics.  When a clock is
// installed, every IRQ status read records its capture time, shared
// across all Device instances in the process.
var (
	lastIrqMicros atomic.Uint64
	irqClock      atomic.Pointer[func() uint64]
)

// SetIrqClock installs a monotonic microsecond clock used to timestamp
// IRQ status reads.  Passing nil disables capture.
func SetIrqClock(f func() uint64) {
	if f == nil {
		irqClock.Store(nil)
		return
	}
	irqClock.Store(&f)
}

// LastIrqTimestamp returns the capture time, in microseconds, of the
// most recent IRQ status read, or 0 if no clock is installed or no IRQ
// has been observed yet.
func LastIrqTimestamp() uint64 {
	return lastIrqMicros.Load()
}

func recordIrqTimestamp() {
	if f := irqClock.Load(); f != nil {
		lastIrqMicros.Store((*f)())
	}
}
