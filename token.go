package futures

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// CancelTokenState is the observable state of a [CancelToken].
type CancelTokenState int32

const (
	// Immortal means the token is permanently uncancelled: it will
	// never be cancelled. A nil *CancelToken behaves as Immortal for
	// every method on this type (see the package doc).
	Immortal CancelTokenState = iota
	// StillCancellable means the token has not yet been cancelled, but
	// may be. This state is volatile under concurrent observers.
	StillCancellable
	// Cancelled means the token has been cancelled. Terminal.
	Cancelled
)

// String implements [fmt.Stringer].
func (s CancelTokenState) String() string {
	switch s {
	case Immortal:
		return "Immortal"
	case StillCancellable:
		return "StillCancellable"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// cancelObserverMode selects whether a node fires only when the token is
// cancelled, or on any terminal transition (the mode WhenCancelledDo uses
// for its unless-subscription bookkeeping node).
type cancelObserverMode int8

const (
	cancelOnCancelOnly cancelObserverMode = iota
	cancelOnAnyTerminal
)

type cancelObserverNode struct {
	handler  func()
	onDetach func()
	mode     cancelObserverMode
	removed  atomic.Bool
}

// CancelToken is a one-shot notification that some scope's work should
// be abandoned. See the package doc and spec §3/§4.C for the full state
// machine. The zero value is not usable; obtain a token from a
// [CancelTokenSource], or via [AlreadyCancelledToken] / [ImmortalToken].
//
// A nil *CancelToken is valid to call every method on, and behaves
// exactly like a token permanently in the [Immortal] state.
type CancelToken struct {
	mu        sync.Mutex
	state     atomic.Int32
	observers []*cancelObserverNode
	watchers  []func(CancelTokenState)
}

var (
	sharedCancelled = newTerminalToken(Cancelled)
	sharedImmortal  = newTerminalToken(Immortal)
)

func newTerminalToken(s CancelTokenState) *CancelToken {
	t := &CancelToken{}
	t.state.Store(int32(s))
	return t
}

// AlreadyCancelledToken returns a token already in the [Cancelled] state.
func AlreadyCancelledToken() *CancelToken { return sharedCancelled }

// ImmortalToken returns a real, non-nil token permanently in the
// [Immortal] state, distinguishable from a nil *[CancelToken] only by
// identity (both observe identically).
func ImmortalToken() *CancelToken { return sharedImmortal }

// State returns the token's current state. For a token in
// [StillCancellable], the result is volatile: it may already be stale
// by the time the caller inspects it.
func (t *CancelToken) State() CancelTokenState {
	if t == nil {
		return Immortal
	}
	return CancelTokenState(t.state.Load())
}

// IsAlreadyCancelled reports whether the token is in the [Cancelled] state.
func (t *CancelToken) IsAlreadyCancelled() bool { return t.State() == Cancelled }

// CanStillBeCancelled reports whether the token is in the
// [StillCancellable] state. The result is volatile.
func (t *CancelToken) CanStillBeCancelled() bool { return t.State() == StillCancellable }

// WhenCancelledDo registers handler to run once the token is cancelled.
//
// If the token is already cancelled, handler runs inline, synchronously,
// before WhenCancelledDo returns. If the token is (or becomes) immortal,
// handler is discarded without running.
//
// With [WithUnlessToken](other): handler is discarded, without running,
// if other cancels (or was already cancelled) before the receiver does,
// or if either token becomes immortal first. If the receiver and other
// are the same token, handler is discarded immediately.
//
// With [WithDispatcher](d): handler runs via d.Run instead of inline on
// whatever goroutine causes the cancellation, unless the token was
// already cancelled at registration time (in which case it always runs
// inline, per the fast path above).
func (t *CancelToken) WhenCancelledDo(handler func(), opts ...RegisterOption) {
	if handler == nil {
		return
	}
	cfg := resolveRegisterOptions(opts)
	unless := cfg.unless

	// Fast paths (spec §4.C algorithm, step 1).
	if t.IsAlreadyCancelled() {
		handler()
		return
	}
	if t.State() != StillCancellable {
		return // immortal (including nil): discard
	}
	if unless != nil {
		if t == unless {
			return
		}
		if unless.IsAlreadyCancelled() {
			return
		}
	}

	n := &cancelObserverNode{handler: wrapDispatch(handler, cfg.dispatcher), mode: cancelOnCancelOnly}

	if unless != nil && unless.State() == StillCancellable {
		m := &cancelObserverNode{mode: cancelOnAnyTerminal}
		linkNtoM := newCrossLink(m)
		linkMtoN := newCrossLink(n)
		n.onDetach = func() {
			if mm := linkNtoM.resolve(); mm != nil {
				mm.removed.Store(true)
			}
		}
		m.handler = func() {
			if nn := linkMtoN.resolve(); nn != nil {
				nn.removed.Store(true)
			}
		}
		if !unless.appendObserver(m) {
			// unless raced to a terminal state; whichever it was, the
			// handler is discarded (cancelled-first or immortal-first
			// are both discard outcomes for a plain WhenCancelledDo).
			return
		}
	}

	if !t.appendObserver(n) {
		// t raced to a terminal state between the check above and now.
		if t.IsAlreadyCancelled() && !n.removed.Load() {
			n.handler()
		}
	}
}

// appendObserver installs n if the token is still in StillCancellable,
// returning false (without installing) otherwise.
func (t *CancelToken) appendObserver(n *cancelObserverNode) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if CancelTokenState(t.state.Load()) != StillCancellable {
		return false
	}
	t.observers = append(t.observers, n)
	return true
}

// drain atomically empties the observer list and fires each live node,
// per the matching predicate for final.
func (t *CancelToken) drain(final CancelTokenState) {
	t.mu.Lock()
	nodes := t.observers
	watchers := t.watchers
	t.observers = nil
	t.watchers = nil
	t.mu.Unlock()

	for _, n := range nodes {
		if n.removed.Swap(true) {
			continue
		}
		fire := n.mode == cancelOnAnyTerminal || final == Cancelled
		if fire && n.handler != nil {
			n.handler()
		}
		if n.onDetach != nil {
			n.onDetach()
		}
	}
	for _, w := range watchers {
		w(final)
	}
}

// watchTerminal is an internal-only subscription used by the token
// combinators (MinToken, MaxToken, NewDependentCancelTokenSource): unlike
// WhenCancelledDo, fn runs on every terminal transition, cancelled or
// immortal alike. If t is already terminal, fn runs inline and
// watchTerminal reports false (nothing was registered).
func (t *CancelToken) watchTerminal(fn func(CancelTokenState)) bool {
	if t == nil {
		fn(Immortal)
		return false
	}
	t.mu.Lock()
	if CancelTokenState(t.state.Load()) != StillCancellable {
		s := CancelTokenState(t.state.Load())
		t.mu.Unlock()
		fn(s)
		return false
	}
	t.watchers = append(t.watchers, fn)
	t.mu.Unlock()
	return true
}

func (t *CancelToken) tryCancel() bool {
	if !t.state.CompareAndSwap(int32(StillCancellable), int32(Cancelled)) {
		return false
	}
	t.drain(Cancelled)
	return true
}

func (t *CancelToken) transitionImmortal() {
	if !t.state.CompareAndSwap(int32(StillCancellable), int32(Immortal)) {
		return
	}
	t.drain(Immortal)
}

// CancelTokenSource uniquely owns the write capability for a
// [CancelToken]. If the source is garbage collected without its token
// ever having been cancelled, the token transitions to [Immortal].
type CancelTokenSource struct {
	token  *CancelToken
	logger Logger
}

// NewCancelTokenSource creates a new source, whose token starts in
// [StillCancellable].
func NewCancelTokenSource(opts ...SourceOption) *CancelTokenSource {
	cfg := resolveSourceOptions(opts)
	tok := newTerminalToken(StillCancellable)
	src := &CancelTokenSource{token: tok, logger: cfg.logger}
	// Source->subject is the strong link (src.token); subject->source
	// has no back-reference at all, so src is only kept alive by
	// whoever holds *CancelTokenSource directly. Once that's nobody,
	// this cleanup runs and immortalises the token -- the Go analogue
	// of the spec's "reference-counted source, attempts the transition
	// on last drop" (§9), using runtime.AddCleanup instead of a
	// manual refcount.
	logger := cfg.logger
	runtime.AddCleanup(src, func(t *CancelToken) {
		if t.state.CompareAndSwap(int32(StillCancellable), int32(Immortal)) {
			if logger != nil && logger.IsEnabled(LevelDebug) {
				logger.Log(NewLogEntry(LevelDebug, "cancel_token", "transitioned to immortal").Build())
			}
			t.drain(Immortal)
		}
	}, tok)
	return src
}

// Token returns the token controlled by this source.
func (s *CancelTokenSource) Token() *CancelToken { return s.token }

// Cancel cancels the source's token. Idempotent.
func (s *CancelTokenSource) Cancel() { s.token.tryCancel() }

// TryCancel attempts to cancel the source's token, returning true
// exactly once across all concurrent callers (the first to win the
// CAS), false for every other caller.
func (s *CancelTokenSource) TryCancel() bool { return s.token.tryCancel() }
