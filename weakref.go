package futures

import "weak"

// registerConfig is the resolved form of a [RegisterOption] list.
type registerConfig struct {
	dispatcher Dispatcher
	unless     *CancelToken
}

// RegisterOption configures a single observer registration
// (WhenCancelledDo, ThenDo, Then, ...).
type RegisterOption interface {
	apply(*registerConfig)
}

type registerOptionFunc func(*registerConfig)

func (f registerOptionFunc) apply(c *registerConfig) { f(c) }

// WithDispatcher makes the thread-affinity guarantee concrete: a
// handler registered with WithDispatcher(d) fires via d.Run, rather
// than inline on whatever goroutine causes the subject's terminal
// transition (see the package doc and DESIGN.md's "thread affinity"
// open-question resolution for why this is explicit rather than an
// ambient "current thread" probe).
func WithDispatcher(d Dispatcher) RegisterOption {
	return registerOptionFunc(func(c *registerConfig) { c.dispatcher = d })
}

// WithUnlessToken discards the registered handler (for CancelToken
// observers) or fails the returned future with the token as its
// failure value (for Future continuations) if tok cancels, or is
// already cancelled, before the receiver reaches a matching terminal
// state.
func WithUnlessToken(tok *CancelToken) RegisterOption {
	return registerOptionFunc(func(c *registerConfig) { c.unless = tok })
}

func resolveRegisterOptions(opts []RegisterOption) registerConfig {
	var c registerConfig
	for _, o := range opts {
		if o != nil {
			o.apply(&c)
		}
	}
	return c
}

func wrapDispatch(fn func(), d Dispatcher) func() {
	if d == nil {
		return fn
	}
	return func() { d.Run(fn) }
}

// SourceOption configures a [CancelTokenSource] or [FutureSource] at
// construction time.
type SourceOption interface {
	apply(*sourceConfig)
}

type sourceConfig struct {
	logger Logger
}

type sourceOptionFunc func(*sourceConfig)

func (f sourceOptionFunc) apply(c *sourceConfig) { f(c) }

// WithLogger attaches a [Logger] a source uses to report internal
// anomalies (a panicking observer, for example). The default is
// [NewNoOpLogger].
func WithLogger(l Logger) SourceOption {
	return sourceOptionFunc(func(c *sourceConfig) { c.logger = l })
}

func resolveSourceOptions(opts []SourceOption) sourceConfig {
	c := sourceConfig{logger: NewNoOpLogger()}
	for _, o := range opts {
		if o != nil {
			o.apply(&c)
		}
	}
	return c
}

// crossLink is the doubly-linked, weak-referenced pair described in
// spec §5 and §9: an unless-subscription installs one node on the
// receiving subject and a cleanup node on the unless token, and each
// holds only a [weak.Pointer] to the other. Whichever side fires first
// marks the other side's node removed through that pointer; the other
// side discovers this for free the next (and only) time it is drained,
// instead of eagerly splicing the dead node out of a slice it may never
// touch again.
//
// Grounded on the teacher's registry.go, which holds weak.Pointer[promise]
// entries for exactly the same reason: so one side of a relationship
// can be garbage collected without the other side's bookkeeping keeping
// it alive.
type crossLink[T any] struct {
	ptr weak.Pointer[T]
}

func newCrossLink[T any](v *T) crossLink[T] {
	return crossLink[T]{ptr: weak.Make(v)}
}

// resolve upgrades the weak reference. It returns nil if the other side
// has already been collected (which only happens after it has also been
// unlinked from whatever list it lived in, so treating a nil result the
// same as an already-removed node is always correct).
func (c crossLink[T]) resolve() *T {
	return c.ptr.Value()
}

