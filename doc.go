// Package futures provides two tightly-coupled asynchronous primitives:
// a [CancelToken] (a one-shot notification that some scope's work should
// be abandoned) and a [Future] (an eventual value that either succeeds
// with a result or fails with a failure).
//
// # Architecture
//
// A [CancelTokenSource] uniquely owns the write capability for its
// [CancelToken]; a [FutureSource] uniquely owns the write capability for
// its [Future]. The corresponding handle ([CancelToken]/[Future]) is
// freely shared among observers. Completion of a source fans out to a
// registered observer list, which may schedule further sources.
// Combinators ([Then], [Catch], [Finally], [MinToken], [MaxToken],
// [Race], [ThenAll], ...) are built by subscribing internal sources to
// their inputs.
//
// # States
//
// A [CancelToken] is one of [StillCancellable] (transient), [Cancelled]
// (terminal), or [Immortal] (terminal, reached when its source is
// garbage collected without ever cancelling). A [Future] is one of
// [AbleToBeSet] (transient), [Flattening] (transient, adopting another
// future's terminal state), [CompletedWithResult] (terminal), [Failed]
// (terminal), or [Immortal] (terminal, reached when its source is
// garbage collected without ever being set).
//
// # Thread Safety
//
// All handles and sources are safe for concurrent use from multiple
// goroutines. State transitions are atomic; concurrent writers to the
// same source compete, and exactly one wins.
//
// # External Collaborators
//
// The core is agnostic to wall-clock time and work scheduling. See
// [Dispatcher] and [Timer] for the two interfaces it depends on; both
// ship with a minimal default implementation sufficient to use the
// library without a caller-supplied event loop.
package futures
