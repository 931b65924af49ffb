package futures

// continuationSource builds the [FutureSource] backing a derived future
// returned by Then/Catch/Finally, wiring unless (if given) to fail it
// with the cancelling token. TrySetResult/TrySetFailure are one-shot and
// idempotent, so whichever of the upstream completion or the unless
// cancellation happens first simply wins; the other call becomes a
// harmless no-op.
func continuationSource(unless *CancelToken) *FutureSource {
	src := NewFutureSource(WithLogger(getGlobalLogger()))
	if unless != nil {
		unless.WhenCancelledDo(func() { src.TrySetFailure(unless) })
	}
	return src
}

func logRecoveredPanic(src *FutureSource, category string, r any) {
	if src.logger == nil || !src.logger.IsEnabled(LevelWarn) {
		return
	}
	src.logger.Log(NewLogEntry(LevelWarn, category, "continuation panicked, converting to failure").
		Field("panic", r).Build())
}

func callReturningResult(fn func(Result) Result, arg Result) (out Result, panicVal any) {
	defer func() {
		if r := recover(); r != nil {
			panicVal = r
		}
	}()
	out = fn(arg)
	return
}

func callReturningResultFromFailure(fn func(Failure) Result, arg Failure) (out Result, panicVal any) {
	defer func() {
		if r := recover(); r != nil {
			panicVal = r
		}
	}()
	out = fn(arg)
	return
}

// Then returns a future that completes with transform(result) once f
// completes successfully. If transform panics, the returned future fails
// with the recovered value, mirroring the package's general
// panic-becomes-rejection convention. The returned future fails with f's
// own failure if f fails, and becomes immortal if f does.
//
// With [WithUnlessToken](tok): the returned future instead fails with
// tok as soon as tok cancels, if that happens before f settles. The same
// tok is passed to the underlying subscription on f, so once tok cancels
// that subscription is marked removed and never runs; its node is not
// taken out of f's observer list, but stays there until f settles.
func (f *Future) Then(transform func(Result) Result, opts ...RegisterOption) *Future {
	cfg := resolveRegisterOptions(opts)
	src := continuationSource(cfg.unless)
	f.FinallyDo(func(done *Future) {
		switch done.State() {
		case CompletedWithResult:
			out, panicVal := callReturningResult(transform, done.ForceGetResult())
			if panicVal != nil {
				logRecoveredPanic(src, "future.then", panicVal)
				src.TrySetFailure(panicVal)
			} else {
				src.TrySetResult(out)
			}
		case Failed:
			src.TrySetFailure(done.ForceGetFailure())
		case Immortal:
			src.future.forceImmortalIfPending()
		}
	}, opts...)
	return src.Future()
}

// Catch returns a future that completes with recover(failure) once f
// fails -- recovering the failure into a successful result. If recover
// panics, the returned future fails with the recovered value. The
// returned future completes with f's own result if f succeeds, and
// becomes immortal if f does.
//
// With [WithUnlessToken](tok): the returned future instead fails with
// tok as soon as tok cancels, if that happens before f settles. The same
// tok is passed to the underlying subscription on f, so once tok cancels
// that subscription is marked removed and never runs; its node is not
// taken out of f's observer list, but stays there until f settles.
func (f *Future) Catch(recover_ func(Failure) Result, opts ...RegisterOption) *Future {
	cfg := resolveRegisterOptions(opts)
	src := continuationSource(cfg.unless)
	f.FinallyDo(func(done *Future) {
		switch done.State() {
		case CompletedWithResult:
			src.TrySetResult(done.ForceGetResult())
		case Failed:
			out, panicVal := callReturningResultFromFailure(recover_, done.ForceGetFailure())
			if panicVal != nil {
				logRecoveredPanic(src, "future.catch", panicVal)
				src.TrySetFailure(panicVal)
			} else {
				src.TrySetResult(out)
			}
		case Immortal:
			src.future.forceImmortalIfPending()
		}
	}, opts...)
	return src.Future()
}

// Finally returns a future that runs tap once f reaches any terminal
// state (including immortal), then passes f's own outcome through
// unchanged -- a "tap" for side effects (closing a resource, logging)
// that does not alter the result.
//
// With [WithUnlessToken](tok): the returned future instead fails with
// tok as soon as tok cancels, if that happens before f settles (tap
// never runs in that case). The same tok is passed to the underlying
// subscription on f, so once tok cancels that subscription is marked
// removed; its node is not taken out of f's observer list, but stays
// there until f settles.
func (f *Future) Finally(tap func(*Future), opts ...RegisterOption) *Future {
	cfg := resolveRegisterOptions(opts)
	src := continuationSource(cfg.unless)
	f.FinallyDo(func(done *Future) {
		if tap != nil {
			tap(done)
		}
		switch done.State() {
		case CompletedWithResult:
			src.TrySetResult(done.ForceGetResult())
		case Failed:
			src.TrySetFailure(done.ForceGetFailure())
		case Immortal:
			src.future.forceImmortalIfPending()
		}
	}, opts...)
	return src.Future()
}
