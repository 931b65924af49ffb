package futures

import (
	"errors"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// FutureWithResult returns a future already [CompletedWithResult] with v.
// If v is itself a non-nil *Future, the usual auto-collapse rule (spec
// §6) applies.
func FutureWithResult(v Result) *Future {
	src := NewFutureSource()
	src.TrySetResult(v)
	return src.Future()
}

// FutureWithFailure returns a future already [Failed] with v.
func FutureWithFailure(v Failure) *Future {
	src := NewFutureSource()
	src.TrySetFailure(v)
	return src.Future()
}

// AfterDelay returns a future that completes with a nil result after
// delaySec seconds on timer (or [WallClockTimer] if timer is nil). If
// until cancels first, the returned future instead fails with until as
// its failure value (see [HasFailedWithCancel]), and the pending timer
// callback is stopped.
//
// A negative or NaN delaySec panics with a *[PreconditionError]. A
// delaySec of +Inf returns an already-[Immortal] future without
// scheduling anything on timer.
func AfterDelay(delaySec float64, timer Timer, until *CancelToken) *Future {
	if math.IsNaN(delaySec) || delaySec < 0 {
		panic(newPreconditionError("AfterDelay called with a negative or NaN delay"))
	}
	if timer == nil {
		timer = WallClockTimer{}
	}
	src := NewFutureSource()
	if math.IsInf(delaySec, 1) {
		src.future.forceImmortalIfPending()
		return src.Future()
	}
	handle := timer.Schedule(delaySec, func() { src.TrySetResult(nil) })
	if until != nil {
		until.WhenCancelledDo(func() {
			handle.Stop()
			src.TrySetFailure(until)
		})
	}
	return src.Future()
}

// FinallyAll returns a future that completes with futures itself, once
// every element of futures has reached some terminal state (result,
// failure, or immortal -- any mix). Grounded on the original's
// finallyAll:/finallyAllUnless:.
//
// With [WithUnlessToken](tok): the returned future instead fails with
// tok as soon as tok cancels, before every input has settled.
func FinallyAll(futures []*Future, opts ...RegisterOption) *Future {
	cfg := resolveRegisterOptions(opts)
	src := continuationSource(cfg.unless)
	if len(futures) == 0 {
		src.TrySetResult([]*Future{})
		return src.Future()
	}
	var remaining atomic.Int64
	remaining.Store(int64(len(futures)))
	for _, fut := range futures {
		fut.FinallyDo(func(*Future) {
			if remaining.Add(-1) == 0 {
				src.TrySetResult(futures)
			}
		}, opts...)
	}
	return src.Future()
}

// ThenAll returns a future that completes with the []Result of every
// element of futures, in order, once all of them have completed
// successfully. It fails with an *[AggregateAwaitError] as soon as any
// input fails, and becomes immortal if any input does (since it can then
// never collect every result). Grounded on the original's
// thenAll:/thenAllUnless:.
//
// With [WithUnlessToken](tok): the returned future instead fails with
// tok as soon as tok cancels, before every input has succeeded.
func ThenAll(futures []*Future, opts ...RegisterOption) *Future {
	cfg := resolveRegisterOptions(opts)
	src := continuationSource(cfg.unless)
	if len(futures) == 0 {
		src.TrySetResult([]Result{})
		return src.Future()
	}
	results := make([]Result, len(futures))
	var remaining atomic.Int64
	remaining.Store(int64(len(futures)))
	for i, fut := range futures {
		i, fut := i, fut
		fut.FinallyDo(func(done *Future) {
			switch done.State() {
			case CompletedWithResult:
				results[i] = done.ForceGetResult()
				if remaining.Add(-1) == 0 {
					src.TrySetResult(results)
				}
			case Failed:
				src.TrySetFailure(&AggregateAwaitError{Futures: futures})
			case Immortal:
				src.future.forceImmortalIfPending()
			}
		}, opts...)
	}
	return src.Future()
}

// OrderedByCompletion returns a slice the same length as futures, where
// out[i] adopts the outcome of the i-th element of futures to reach a
// terminal state (ties broken by input order). Grounded on the
// original's orderedByCompletion:/orderedByCompletionUnless:.
func OrderedByCompletion(futures []*Future) []*Future {
	n := len(futures)
	out := make([]*Future, n)
	srcs := make([]*FutureSource, n)
	for i := range out {
		srcs[i] = NewFutureSource()
		out[i] = srcs[i].Future()
	}
	var next atomic.Int64
	for _, fut := range futures {
		fut.FinallyDo(func(done *Future) {
			idx := next.Add(1) - 1
			if idx < int64(n) {
				srcs[idx].TrySetResult(done)
			}
		})
	}
	return out
}

// Starter is the function shape passed to [Race]: given a token rooted on
// the race's until token, it begins work and returns a future for its own
// outcome. A starter whose result must be cleaned up once it loses (even
// if its own future already completed) should register that cleanup via
// the token's WhenCancelledDo itself -- mirroring the original's contract
// that a starter's result is torn down once its token cancels, win or
// lose.
type Starter func(token *CancelToken) *Future

// Race runs every starter concurrently against its own token (a fresh
// [NewDependentCancelTokenSource] rooted on until, so cancelling until
// cascades to every contender). The first starter whose future reaches a
// result-bearing terminal wins: its result is adopted by the returned
// future, and every per-starter token is cancelled -- including the
// winner's, per the original's contract that even an already-completed
// winner must still observe its own token's cancellation.
//
// A starter failing does not win the race by itself: Race only fails, as
// an *[AggregateAwaitError] carrying every starter's future, once every
// one of them has either failed or become immortal.
//
// A panic inside a starter is recovered and treated as that starter
// failing with the recovered value, mirroring the package's general
// panic-becomes-rejection convention.
func Race(starters []Starter, until *CancelToken) *Future {
	src := NewFutureSource(WithLogger(getGlobalLogger()))
	n := len(starters)
	if n == 0 {
		src.TrySetFailure(&AggregateAwaitError{Futures: nil})
		return src.Future()
	}

	tokenSrcs := make([]*CancelTokenSource, n)
	futures := make([]*Future, n)
	for i := range tokenSrcs {
		tokenSrcs[i] = NewDependentCancelTokenSource(until)
	}
	cancelAll := func() {
		for _, s := range tokenSrcs {
			s.TryCancel()
		}
	}

	var remainingFailures atomic.Int64
	remainingFailures.Store(int64(n))

	attemptWin := func(done *Future) {
		switch done.State() {
		case CompletedWithResult:
			if src.TrySetResult(done.ForceGetResult()) {
				cancelAll()
			}
		case Failed, Immortal:
			// Immortal never wins either, but still counts toward "every
			// starter has settled without winning" so a starter that can
			// never complete doesn't hang the race forever.
			if remainingFailures.Add(-1) == 0 {
				src.TrySetFailure(&AggregateAwaitError{Futures: futures})
			}
		}
	}

	var g errgroup.Group
	for i, starter := range starters {
		i, starter := i, starter
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logRecoveredPanic(src, "future.race", r)
					fut := FutureWithFailure(r)
					futures[i] = fut
					attemptWin(fut)
				}
			}()
			resultFut := starter(tokenSrcs[i].Token())
			if resultFut == nil {
				if src.logger != nil && src.logger.IsEnabled(LevelWarn) {
					src.logger.Log(NewLogEntry(LevelWarn, "future.race", "starter returned a nil future").Build())
				}
				resultFut = FutureWithFailure(errors.New("futures: Race starter returned a nil future"))
			}
			futures[i] = resultFut
			resultFut.FinallyDo(attemptWin)
			return nil
		})
	}
	go func() { _ = g.Wait() }()

	return src.Future()
}
