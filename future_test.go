package futures

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureSource_TrySetResult_CompletesAndFiresThenDo(t *testing.T) {
	src := NewFutureSource()
	fut := src.Future()
	require.Equal(t, AbleToBeSet, fut.State())

	var got Result
	fut.ThenDo(func(r Result) { got = r })

	assert.True(t, src.TrySetResult(42))
	assert.Equal(t, CompletedWithResult, fut.State())
	assert.Equal(t, 42, got)
	assert.Equal(t, 42, fut.ForceGetResult())

	// Idempotent: second set fails.
	assert.False(t, src.TrySetResult(99))
}

func TestFutureSource_TrySetFailure_FiresCatchDo(t *testing.T) {
	src := NewFutureSource()
	fut := src.Future()

	var got Failure
	fut.CatchDo(func(f Failure) { got = f })

	assert.True(t, src.TrySetFailure("boom"))
	assert.Equal(t, Failed, fut.State())
	assert.Equal(t, "boom", got)
	assert.Equal(t, "boom", fut.ForceGetFailure())
}

func TestFuture_ForceGet_PanicsOnWrongState(t *testing.T) {
	src := NewFutureSource()
	fut := src.Future()

	assert.Panics(t, func() { fut.ForceGetResult() })
	assert.Panics(t, func() { fut.ForceGetFailure() })

	src.ForceSetResult("ok")
	assert.Panics(t, func() { fut.ForceGetFailure() })
	assert.Equal(t, "ok", fut.ForceGetResult())
}

func TestFutureSource_ForceSetResult_PanicsWhenAlreadySet(t *testing.T) {
	src := NewFutureSource()
	src.ForceSetResult(1)
	assert.Panics(t, func() { src.ForceSetResult(2) })
}

func TestFuture_AlreadyCompleted_ThenDoFiresInline(t *testing.T) {
	fut := FutureWithResult("done")
	var ran bool
	fut.ThenDo(func(r Result) {
		ran = true
		assert.Equal(t, "done", r)
	})
	assert.True(t, ran)
}

func TestFuture_FinallyDo_FiresOnFailureAndSuccess(t *testing.T) {
	okSrc := NewFutureSource()
	var okFired bool
	okSrc.Future().FinallyDo(func(f *Future) {
		okFired = true
		assert.Equal(t, CompletedWithResult, f.State())
	})
	okSrc.TrySetResult(1)
	assert.True(t, okFired)

	failSrc := NewFutureSource()
	var failFired bool
	failSrc.Future().FinallyDo(func(f *Future) {
		failFired = true
		assert.Equal(t, Failed, f.State())
	})
	failSrc.TrySetFailure("err")
	assert.True(t, failFired)
}

func TestFuture_AutoCollapse_AdoptsInnerFutureOutcome(t *testing.T) {
	outerSrc := NewFutureSource()
	innerSrc := NewFutureSource()

	var got Result
	outerSrc.Future().ThenDo(func(r Result) { got = r })

	assert.True(t, outerSrc.TrySetResult(innerSrc.Future()))
	assert.Equal(t, Flattening, outerSrc.Future().State())

	innerSrc.TrySetResult("inner value")
	assert.Equal(t, CompletedWithResult, outerSrc.Future().State())
	assert.Equal(t, "inner value", got)
}

func TestFuture_AutoCollapse_PropagatesInnerFailure(t *testing.T) {
	outerSrc := NewFutureSource()
	innerSrc := NewFutureSource()

	outerSrc.TrySetResult(innerSrc.Future())
	innerSrc.TrySetFailure("inner failure")

	assert.Equal(t, Failed, outerSrc.Future().State())
	assert.Equal(t, "inner failure", outerSrc.Future().ForceGetFailure())
}

func TestFuture_FlattenCycle_ForcesChainImmortal(t *testing.T) {
	a := NewFutureSource()
	b := NewFutureSource()

	// a adopts b, then b adopts a -- a two-cycle.
	require.True(t, a.TrySetResult(b.Future()))
	require.True(t, b.TrySetResult(a.Future()))

	assert.Equal(t, Immortal, a.Future().State())
	assert.Equal(t, Immortal, b.Future().State())
}

func TestFuture_FlattenSelfCycle_ForcesImmortal(t *testing.T) {
	src := NewFutureSource()
	assert.True(t, src.TrySetResult(src.Future()))
	assert.Equal(t, Immortal, src.Future().State())
}

func TestFutureSource_DropWithoutSettlingBecomesImmortal(t *testing.T) {
	src := NewFutureSource()
	fut := src.Future()
	require.Equal(t, AbleToBeSet, fut.State())

	src = nil
	forceGCCycle()

	assert.Equal(t, Immortal, fut.State())
}

func TestFuture_ConcurrentRegistrationAndCompletion(t *testing.T) {
	src := NewFutureSource()
	fut := src.Future()

	var wg sync.WaitGroup
	var fired atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fut.ThenDo(func(Result) { fired.Add(1) })
		}()
	}
	wg.Wait()
	src.TrySetResult("x")

	assert.Equal(t, int64(50), fired.Load())
}

func TestFuture_Unless_DiscardsThenDoWhenTokenCancelsFirst(t *testing.T) {
	src := NewFutureSource()
	unless := NewCancelTokenSource()

	var ran atomic.Bool
	src.Future().ThenDo(func(Result) { ran.Store(true) }, WithUnlessToken(unless.Token()))

	unless.Cancel()
	src.TrySetResult(1)

	assert.False(t, ran.Load())
}

func TestFuture_CancelledOnCompletionToken(t *testing.T) {
	src := NewFutureSource()
	tok := src.Future().CancelledOnCompletionToken()
	require.True(t, tok.CanStillBeCancelled())

	src.TrySetResult(nil)
	assert.True(t, tok.IsAlreadyCancelled())
}

func TestFuture_CancelledOnCompletionToken_ImmortalReceiverYieldsImmortalToken(t *testing.T) {
	src := NewFutureSource()
	fut := src.Future()
	tok := fut.CancelledOnCompletionToken()
	require.True(t, tok.CanStillBeCancelled())

	src = nil
	forceGCCycle()
	require.Equal(t, Immortal, fut.State())

	assert.Equal(t, Immortal, tok.State())
	assert.False(t, tok.IsAlreadyCancelled())
}
