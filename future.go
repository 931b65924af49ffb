package futures

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// FutureState is the observable state of a [Future].
type FutureState int32

const (
	// AbleToBeSet is the initial state: no result or failure has been
	// set, and the future is not adopting another future's outcome.
	AbleToBeSet FutureState = iota
	// Flattening is a transient state entered when a source sets the
	// future's result to another *[Future] (auto-collapse, spec §6):
	// the future is now waiting on that inner future's own outcome.
	Flattening
	// CompletedWithResult is terminal: the future holds a non-future result.
	CompletedWithResult
	// Failed is terminal: the future holds a failure value.
	Failed
	// Immortal is terminal: the future will never complete with either
	// a result or a failure (its source was dropped, or it was part of
	// a flattening cycle).
	Immortal
)

// String implements [fmt.Stringer].
func (s FutureState) String() string {
	switch s {
	case AbleToBeSet:
		return "AbleToBeSet"
	case Flattening:
		return "Flattening"
	case CompletedWithResult:
		return "CompletedWithResult"
	case Failed:
		return "Failed"
	case Immortal:
		return "Immortal"
	default:
		return "Unknown"
	}
}

type futureObserverMode int8

const (
	futureOnSettleOnly futureObserverMode = iota
	futureOnAnyTerminal
)

type futureObserverNode struct {
	fire     func(FutureState, Result, Failure)
	onDetach func()
	mode     futureObserverMode
	removed  atomic.Bool
}

// Future is a read-only handle on a value that will eventually either
// complete with a [Result], fail with a [Failure], or become [Immortal]
// (never do either). See the package doc and spec §3/§4.F.
//
// The zero value is not usable; obtain one from a [FutureSource].
type Future struct {
	mu            sync.Mutex
	state         atomic.Int32
	result        Result
	failure       Failure
	observers     []*futureObserverNode
	flattenTarget *Future
	logger        Logger
}

// State returns the future's current state.
func (f *Future) State() FutureState {
	return FutureState(f.state.Load())
}

func (f *Future) snapshot() (FutureState, Result, Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FutureState(f.state.Load()), f.result, f.failure
}

// ForceGetResult returns the future's result, panicking with a
// *[PreconditionError] if the future is not [CompletedWithResult].
func (f *Future) ForceGetResult() Result {
	st, res, _ := f.snapshot()
	if st != CompletedWithResult {
		panic(newPreconditionError("ForceGetResult called on a future that has not completed with a result"))
	}
	return res
}

// ForceGetFailure returns the future's failure, panicking with a
// *[PreconditionError] if the future is not [Failed].
func (f *Future) ForceGetFailure() Failure {
	st, _, fail := f.snapshot()
	if st != Failed {
		panic(newPreconditionError("ForceGetFailure called on a future that has not failed"))
	}
	return fail
}

// addObserver installs n if the future has not yet reached a terminal
// state (CompletedWithResult, Failed, Immortal), returning false
// otherwise. A future that is Flattening still accepts observers: they
// are carried forward and fire once the flatten chain resolves.
func (f *Future) addObserver(n *futureObserverNode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch FutureState(f.state.Load()) {
	case CompletedWithResult, Failed, Immortal:
		return false
	default:
		f.observers = append(f.observers, n)
		return true
	}
}

func (f *Future) fire(state FutureState, result Result, failure Failure) {
	f.mu.Lock()
	nodes := f.observers
	f.observers = nil
	f.mu.Unlock()

	for _, n := range nodes {
		if n.removed.Swap(true) {
			continue
		}
		doFire := n.mode == futureOnAnyTerminal || state != Immortal
		if doFire && n.fire != nil {
			n.fire(state, result, failure)
		}
		if n.onDetach != nil {
			n.onDetach()
		}
	}
}

// trySetTerminal is the non-flattening completion path: it only ever
// succeeds from AbleToBeSet, so a future mid-flatten cannot be completed
// directly -- only the inner future it adopted can drive it now.
func (f *Future) trySetTerminal(state FutureState, result Result, failure Failure) bool {
	f.mu.Lock()
	if FutureState(f.state.Load()) != AbleToBeSet {
		f.mu.Unlock()
		return false
	}
	f.state.Store(int32(state))
	f.result = result
	f.failure = failure
	f.mu.Unlock()
	f.fire(state, result, failure)
	return true
}

// settleFromFlatten is the completion path used once an adopted inner
// future itself reaches a terminal state.
func (f *Future) settleFromFlatten(state FutureState, result Result, failure Failure) {
	f.mu.Lock()
	if FutureState(f.state.Load()) != Flattening {
		f.mu.Unlock()
		return
	}
	f.state.Store(int32(state))
	f.result = result
	f.failure = failure
	f.flattenTarget = nil
	f.mu.Unlock()
	f.fire(state, result, failure)
}

// forceImmortalIfPending transitions f straight to Immortal, provided it
// is still AbleToBeSet. Used both by the source-drop [runtime.AddCleanup]
// hook and, explicitly and deterministically, whenever a continuation
// needs to propagate an upstream Immortal without waiting on GC timing.
func (f *Future) forceImmortalIfPending() {
	f.mu.Lock()
	if FutureState(f.state.Load()) != AbleToBeSet {
		// Already terminal, or mid-flatten (in which case the inner
		// future -- not this source -- now drives completion).
		f.mu.Unlock()
		return
	}
	f.state.Store(int32(Immortal))
	f.mu.Unlock()
	if f.logger != nil && f.logger.IsEnabled(LevelDebug) {
		f.logger.Log(NewLogEntry(LevelDebug, "future", "transitioned to immortal").Build())
	}
	f.fire(Immortal, nil, nil)
}

// trySetResultOrFlatten implements the auto-collapse rule (spec §6): if
// v is itself a non-nil *Future, f adopts its outcome instead of
// completing with v as a literal result.
func (f *Future) trySetResultOrFlatten(v Result) bool {
	if inner, ok := v.(*Future); ok && inner != nil {
		return f.trySetFlatten(inner)
	}
	return f.trySetTerminal(CompletedWithResult, v, nil)
}

func (f *Future) trySetFlatten(inner *Future) bool {
	f.mu.Lock()
	if FutureState(f.state.Load()) != AbleToBeSet {
		f.mu.Unlock()
		return false
	}
	if f == inner || detectsFlattenCycle(f, inner) {
		f.mu.Unlock()
		forceImmortalChain(f, inner)
		return true
	}
	f.state.Store(int32(Flattening))
	f.flattenTarget = inner
	f.mu.Unlock()
	f.subscribeFlatten(inner)
	return true
}

func (f *Future) subscribeFlatten(inner *Future) {
	node := &futureObserverNode{mode: futureOnAnyTerminal}
	node.fire = func(st FutureState, res Result, fail Failure) {
		f.settleFromFlatten(st, res, fail)
	}
	if !inner.addObserver(node) {
		st, res, fail := inner.snapshot()
		f.settleFromFlatten(st, res, fail)
	}
}

// detectsFlattenCycle walks start's chain of flatten targets looking for
// f. Every future that is, or ever was mid-flatten, can only ever have
// been set once, so this chain is stable to read one hop at a time even
// though we cannot hold every future's lock simultaneously.
func detectsFlattenCycle(f, start *Future) bool {
	cur := start
	visited := map[*Future]bool{}
	for cur != nil {
		if cur == f {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		cur.mu.Lock()
		var next *Future
		if FutureState(cur.state.Load()) == Flattening {
			next = cur.flattenTarget
		}
		cur.mu.Unlock()
		cur = next
	}
	return false
}

// forceImmortalChain forces f, and every future reachable from start by
// following flatten targets, to Immortal. No observer anywhere in the
// chain is ever invoked with a result or failure (spec §6): a cyclic
// flatten chain can never validly resolve.
func forceImmortalChain(f *Future, start *Future) {
	forceOneImmortal(f)
	cur := start
	visited := map[*Future]bool{}
	for cur != nil && !visited[cur] {
		visited[cur] = true
		cur.mu.Lock()
		next := cur.flattenTarget
		st := FutureState(cur.state.Load())
		cur.mu.Unlock()
		if st == Flattening || st == AbleToBeSet {
			forceOneImmortal(cur)
		}
		cur = next
	}
}

func forceOneImmortal(f *Future) {
	f.mu.Lock()
	st := FutureState(f.state.Load())
	if st != Flattening && st != AbleToBeSet {
		f.mu.Unlock()
		return
	}
	f.state.Store(int32(Immortal))
	f.flattenTarget = nil
	f.mu.Unlock()
	f.fire(Immortal, nil, nil)
}

// registerDo is the shared implementation behind ThenDo, CatchDo and
// FinallyDo: onFire is invoked once f reaches the relevant terminal
// condition, and is discarded if (with WithUnlessToken) the unless token
// cancels first. It follows [CancelToken.WhenCancelledDo]'s algorithm,
// except that the cleanup node on the unless token fires only when that
// token cancels, not when it becomes immortal.
func (f *Future) registerDo(anyTerminal bool, onFire func(FutureState, Result, Failure), opts []RegisterOption) {
	if onFire == nil {
		return
	}
	cfg := resolveRegisterOptions(opts)
	dispatchCall := func(fn func()) {
		if cfg.dispatcher != nil {
			cfg.dispatcher.Run(fn)
			return
		}
		fn()
	}

	if st := FutureState(f.state.Load()); st == CompletedWithResult || st == Failed || (anyTerminal && st == Immortal) {
		st, res, fail := f.snapshot()
		onFire(st, res, fail)
		return
	}
	if !anyTerminal && FutureState(f.state.Load()) == Immortal {
		return
	}

	unless := cfg.unless
	if unless != nil && unless.IsAlreadyCancelled() {
		return
	}

	n := &futureObserverNode{mode: futureOnSettleOnly}
	if anyTerminal {
		n.mode = futureOnAnyTerminal
	}
	n.fire = func(st FutureState, res Result, fail Failure) {
		dispatchCall(func() { onFire(st, res, fail) })
	}

	if unless != nil && unless.State() == StillCancellable {
		m := &cancelObserverNode{mode: cancelOnCancelOnly}
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
			return
		}
	}

	if !f.addObserver(n) {
		if n.removed.Load() {
			if n.onDetach != nil {
				n.onDetach()
			}
			return
		}
		st, res, fail := f.snapshot()
		if st == CompletedWithResult || st == Failed || (anyTerminal && st == Immortal) {
			onFire(st, res, fail)
		}
		if n.onDetach != nil {
			n.onDetach()
		}
	}
}

// ThenDo registers handler to run with f's result once f completes
// successfully. Discarded (never run) if f fails or becomes immortal, or
// (with [WithUnlessToken]) if the unless token cancels first.
func (f *Future) ThenDo(handler func(Result), opts ...RegisterOption) {
	f.registerDo(false, func(st FutureState, res Result, _ Failure) {
		if st == CompletedWithResult {
			handler(res)
		}
	}, opts)
}

// CatchDo registers handler to run with f's failure once f fails.
// Discarded if f completes successfully or becomes immortal, or (with
// [WithUnlessToken]) if the unless token cancels first.
func (f *Future) CatchDo(handler func(Failure), opts ...RegisterOption) {
	f.registerDo(false, func(st FutureState, _ Result, fail Failure) {
		if st == Failed {
			handler(fail)
		}
	}, opts)
}

// FinallyDo registers handler to run once f reaches any terminal state,
// including [Immortal]. handler receives f itself (per the original's
// finally: contract) rather than separate result/failure parameters, so
// it can inspect [Future.State], [Future.ForceGetResult] or
// [Future.ForceGetFailure] as appropriate. Discarded only if (with
// [WithUnlessToken]) the unless token cancels before f settles.
func (f *Future) FinallyDo(handler func(*Future), opts ...RegisterOption) {
	if handler == nil {
		return
	}
	f.registerDo(true, func(FutureState, Result, Failure) {
		handler(f)
	}, opts)
}

// FutureSource uniquely owns the write capability for a [Future]. If the
// source is garbage collected before its future is ever set, the future
// transitions to [Immortal].
type FutureSource struct {
	future *Future
	logger Logger
}

// NewFutureSource creates a new source, whose future starts in
// [AbleToBeSet].
func NewFutureSource(opts ...SourceOption) *FutureSource {
	cfg := resolveSourceOptions(opts)
	f := &Future{logger: cfg.logger}
	f.state.Store(int32(AbleToBeSet))
	src := &FutureSource{future: f, logger: cfg.logger}
	runtime.AddCleanup(src, func(ff *Future) { ff.forceImmortalIfPending() }, f)
	return src
}

// Future returns the future controlled by this source.
func (s *FutureSource) Future() *Future { return s.future }

// TrySetResult attempts to complete the future with v, returning false
// if it was already settled (or mid-flatten). If v is itself a non-nil
// *[Future], the future instead adopts v's eventual outcome (spec §6's
// auto-collapse rule) rather than completing with v as a literal value.
func (s *FutureSource) TrySetResult(v Result) bool {
	return s.future.trySetResultOrFlatten(v)
}

// TrySetFailure attempts to fail the future with v, returning false if
// it was already settled (or mid-flatten).
func (s *FutureSource) TrySetFailure(v Failure) bool {
	return s.future.trySetTerminal(Failed, nil, v)
}

// ForceSetResult is [FutureSource.TrySetResult], panicking with a
// *[PreconditionError] instead of returning false.
func (s *FutureSource) ForceSetResult(v Result) {
	if !s.TrySetResult(v) {
		panic(newPreconditionError("ForceSetResult called on a future that is already settled"))
	}
}

// ForceSetFailure is [FutureSource.TrySetFailure], panicking with a
// *[PreconditionError] instead of returning false.
func (s *FutureSource) ForceSetFailure(v Failure) {
	if !s.TrySetFailure(v) {
		panic(newPreconditionError("ForceSetFailure called on a future that is already settled"))
	}
}

// CancelledOnCompletionToken returns a [CancelToken] that cancels once f
// completes with a result or fails, and becomes immortal instead if f
// itself becomes [Immortal] (an immortal future never "completed", so
// there is nothing here to signal cancellation -- the returned token
// mirrors that by becoming permanently uncancelled too). It is the
// inverse collaborator to [WithUnlessToken]: useful for tearing down
// resources a continuation allocated, regardless of how f ended.
func (f *Future) CancelledOnCompletionToken() *CancelToken {
	src := NewCancelTokenSource()
	f.registerDo(true, func(st FutureState, _ Result, _ Failure) {
		if st == Immortal {
			src.token.transitionImmortal()
			return
		}
		src.TryCancel()
	}, nil)
	return src.Token()
}
