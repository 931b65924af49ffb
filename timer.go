package futures

import (
	"math"
	"time"
)

// Timer schedules a one-shot callback after a delay, in seconds. It is
// the second external collaborator (§4.B): the core only ever calls
// Schedule and Stop on the returned handle, and treats both as best
// effort -- a callback already in flight when Stop is called may still
// run.
type Timer interface {
	// Schedule arranges for callback to run at most once, after delaySec
	// seconds, and returns a handle that can cancel the pending callback.
	Schedule(delaySec float64, callback func()) TimerHandle
}

// TimerHandle cancels a scheduled callback. Stop is idempotent and safe
// to call after the callback has already fired (in which case it is a
// no-op).
type TimerHandle interface {
	Stop()
}

// WallClockTimer is the package's minimal default [Timer], backed by
// [time.AfterFunc]. It is sufficient for [AfterDelay] and for tests; a
// caller embedding this library in an existing scheduler should supply
// its own Timer wired to that scheduler instead.
type WallClockTimer struct{}

type wallClockHandle struct {
	t *time.Timer
}

func (h *wallClockHandle) Stop() {
	if h.t != nil {
		h.t.Stop()
	}
}

// Schedule implements [Timer].
func (WallClockTimer) Schedule(delaySec float64, callback func()) TimerHandle {
	if callback == nil {
		return &wallClockHandle{}
	}
	if delaySec <= 0 {
		callback()
		return &wallClockHandle{}
	}
	return &wallClockHandle{t: time.AfterFunc(durationFromSeconds(delaySec), callback)}
}

func durationFromSeconds(s float64) time.Duration {
	if math.IsInf(s, 1) || s > float64(math.MaxInt64/int64(time.Second)) {
		// Never actually fires; AfterDelay handles +Inf itself and
		// never passes it to Schedule.
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s * float64(time.Second))
}
