package futures

// Dispatcher runs a closure "on" a logical thread or queue. It is the
// sole external collaborator used to implement the thread-affinity
// guarantee (§5 of the design): a handler registered while a dispatcher
// is in effect is invoked through that dispatcher rather than on
// whichever goroutine causes the subject's terminal transition.
//
// The core package is agnostic to how a Dispatcher is implemented; it
// only ever calls Run. Callers embedding this library in an existing
// event loop (a UI main loop, an actor mailbox, ...) should supply their
// own Dispatcher rather than use [GoroutineDispatcher].
type Dispatcher interface {
	// Run schedules fn to execute on the dispatcher's thread. Run must
	// not block waiting for fn to complete.
	Run(fn func())
}

// GoroutineDispatcher is the package's minimal default [Dispatcher]: it
// runs every closure on a new goroutine. It provides no actual thread
// affinity (two calls to Run may execute on different goroutines
// concurrently) -- it exists so the library is usable without a
// caller-supplied event loop, not to demonstrate real affinity.
//
// A Dispatcher that does provide genuine single-thread affinity (for
// example, one backed by a single worker goroutine draining a channel,
// the way the teacher's Loop.Submit works) should be supplied by the
// embedding application instead.
type GoroutineDispatcher struct{}

// Run implements [Dispatcher] by launching fn on a new goroutine.
func (GoroutineDispatcher) Run(fn func()) {
	go fn()
}

// InlineDispatcher is a [Dispatcher] that runs fn synchronously, on the
// calling goroutine. Useful for tests and for callers that want
// registration-order execution with no scheduling indirection at all.
type InlineDispatcher struct{}

// Run implements [Dispatcher] by calling fn directly.
func (InlineDispatcher) Run(fn func()) {
	fn()
}
