package futures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureWithResultAndFailure(t *testing.T) {
	ok := FutureWithResult(5)
	assert.Equal(t, CompletedWithResult, ok.State())
	assert.Equal(t, 5, ok.ForceGetResult())

	bad := FutureWithFailure("nope")
	assert.Equal(t, Failed, bad.State())
	assert.Equal(t, "nope", bad.ForceGetFailure())
}

func TestAfterDelay_CompletesAfterTimer(t *testing.T) {
	fut := AfterDelay(0, nil, nil)
	require.Eventually(t, func() bool {
		return fut.State() == CompletedWithResult
	}, time.Second, time.Millisecond)
}

func TestAfterDelay_CancelledByUntilToken(t *testing.T) {
	src := NewCancelTokenSource()
	fut := AfterDelay(10, nil, src.Token())
	src.Cancel()

	require.Eventually(t, func() bool {
		return fut.State() == Failed
	}, time.Second, time.Millisecond)
	tok, ok := HasFailedWithCancel(fut)
	require.True(t, ok)
	assert.Same(t, src.Token(), tok)
}

func TestFinallyAll_WaitsForEveryInput(t *testing.T) {
	a := NewFutureSource()
	b := NewFutureSource()
	all := FinallyAll([]*Future{a.Future(), b.Future()})

	a.TrySetResult(1)
	assert.Equal(t, AbleToBeSet, all.State())

	b.TrySetFailure("x")
	require.Equal(t, CompletedWithResult, all.State())
	got := all.ForceGetResult().([]*Future)
	assert.Len(t, got, 2)
}

func TestFinallyAll_Empty(t *testing.T) {
	all := FinallyAll(nil)
	require.Equal(t, CompletedWithResult, all.State())
	assert.Empty(t, all.ForceGetResult())
}

func TestThenAll_SucceedsWithAllResultsInOrder(t *testing.T) {
	a := NewFutureSource()
	b := NewFutureSource()
	all := ThenAll([]*Future{a.Future(), b.Future()})

	b.TrySetResult("second")
	assert.Equal(t, AbleToBeSet, all.State())

	a.TrySetResult("first")
	require.Equal(t, CompletedWithResult, all.State())
	assert.Equal(t, []Result{"first", "second"}, all.ForceGetResult())
}

func TestThenAll_FailsAsSoonAsOneFails(t *testing.T) {
	a := NewFutureSource()
	b := NewFutureSource()
	all := ThenAll([]*Future{a.Future(), b.Future()})

	a.TrySetFailure("broken")
	require.Equal(t, Failed, all.State())
	aggErr, ok := all.ForceGetFailure().(*AggregateAwaitError)
	require.True(t, ok)
	assert.Len(t, aggErr.Futures, 2)
}

func TestOrderedByCompletion_ReordersByFinishTime(t *testing.T) {
	a := NewFutureSource()
	b := NewFutureSource()
	ordered := OrderedByCompletion([]*Future{a.Future(), b.Future()})
	require.Len(t, ordered, 2)

	b.TrySetResult("fast")
	require.Eventually(t, func() bool { return ordered[0].State() == CompletedWithResult }, time.Second, time.Millisecond)
	assert.Equal(t, "fast", ordered[0].ForceGetResult())

	a.TrySetResult("slow")
	require.Eventually(t, func() bool { return ordered[1].State() == CompletedWithResult }, time.Second, time.Millisecond)
	assert.Equal(t, "slow", ordered[1].ForceGetResult())
}

func TestRace_FirstSuccessWins(t *testing.T) {
	winner := Race([]Starter{
		func(token *CancelToken) *Future {
			return AfterDelay(0.01, nil, token).Then(func(Result) Result { return "slow" })
		},
		func(token *CancelToken) *Future {
			return FutureWithResult("fast")
		},
	}, nil)

	require.Eventually(t, func() bool { return winner.State() == CompletedWithResult }, time.Second, time.Millisecond)
	assert.Equal(t, "fast", winner.ForceGetResult())
}

func TestRace_WinnerCleanup_CancelsLoserToken(t *testing.T) {
	loserCleanedUp := make(chan struct{})

	winner := Race([]Starter{
		func(token *CancelToken) *Future {
			return FutureWithResult("winner")
		},
		func(token *CancelToken) *Future {
			loserFut := FutureWithResult("already done, but still loses")
			token.WhenCancelledDo(func() { close(loserCleanedUp) })
			return loserFut
		},
	}, nil)

	require.Eventually(t, func() bool { return winner.State() == CompletedWithResult }, time.Second, time.Millisecond)
	select {
	case <-loserCleanedUp:
	case <-time.After(time.Second):
		t.Fatal("loser's token was never cancelled")
	}
}

func TestRace_WinnerCleanup_WinnerOwnTokenAlsoCancelled(t *testing.T) {
	winnerCleanedUp := make(chan struct{})

	result := Race([]Starter{
		func(token *CancelToken) *Future {
			token.WhenCancelledDo(func() { close(winnerCleanedUp) })
			return FutureWithResult(1)
		},
	}, nil)

	require.Eventually(t, func() bool { return result.State() == CompletedWithResult }, time.Second, time.Millisecond)
	select {
	case <-winnerCleanedUp:
	case <-time.After(time.Second):
		t.Fatal("winner's own token was never cancelled")
	}
}

func TestRace_AllFail_FailsWithEveryFuture(t *testing.T) {
	result := Race([]Starter{
		func(token *CancelToken) *Future { return FutureWithFailure("a") },
		func(token *CancelToken) *Future { return FutureWithFailure("b") },
	}, nil)

	require.Eventually(t, func() bool { return result.State() == Failed }, time.Second, time.Millisecond)
	aggErr, ok := result.ForceGetFailure().(*AggregateAwaitError)
	require.True(t, ok)
	require.Len(t, aggErr.Futures, 2)
	assert.Equal(t, "a", aggErr.Futures[0].ForceGetFailure())
	assert.Equal(t, "b", aggErr.Futures[1].ForceGetFailure())
}

func TestRace_OneFailureDoesNotWin(t *testing.T) {
	winner := Race([]Starter{
		func(token *CancelToken) *Future { return FutureWithFailure("early failure") },
		func(token *CancelToken) *Future {
			return AfterDelay(0.01, nil, token).Then(func(Result) Result { return "eventual success" })
		},
	}, nil)

	require.Eventually(t, func() bool { return winner.State() == CompletedWithResult }, time.Second, time.Millisecond)
	assert.Equal(t, "eventual success", winner.ForceGetResult())
}

func TestRace_CancellingUntilCascadesToEveryStarterToken(t *testing.T) {
	until := NewCancelTokenSource()
	cancelled := make(chan struct{}, 2)

	Race([]Starter{
		func(token *CancelToken) *Future {
			token.WhenCancelledDo(func() { cancelled <- struct{}{} })
			return NewFutureSource().Future()
		},
		func(token *CancelToken) *Future {
			token.WhenCancelledDo(func() { cancelled <- struct{}{} })
			return NewFutureSource().Future()
		},
	}, until.Token())

	until.Cancel()
	for i := 0; i < 2; i++ {
		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("not every starter token was cancelled by until")
		}
	}
}

func TestRace_PanicBecomesStarterFailure(t *testing.T) {
	result := Race([]Starter{
		func(token *CancelToken) *Future {
			panic("starter exploded")
		},
	}, nil)

	require.Eventually(t, func() bool { return result.State() == Failed }, time.Second, time.Millisecond)
	aggErr, ok := result.ForceGetFailure().(*AggregateAwaitError)
	require.True(t, ok)
	require.Len(t, aggErr.Futures, 1)
	assert.Equal(t, "starter exploded", aggErr.Futures[0].ForceGetFailure())
}
