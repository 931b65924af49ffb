package futures

import (
	"runtime"
	"time"
)

// forceGCCycle forces a garbage collection cycle and gives the runtime a
// little time to run any pending runtime.AddCleanup callbacks, which
// fire asynchronously on their own goroutine rather than synchronously
// inside runtime.GC.
func forceGCCycle() {
	for i := 0; i < 3; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}
