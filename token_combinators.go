package futures

import (
	"sync/atomic"
	"weak"
)

// MinToken returns a token that cancels as soon as the first of tokens
// cancels ("first past the post" -- grounded on the original's
// matchFirstToCancelBetween:and:, generalised here to N tokens). It
// becomes [Immortal] only once every token in tokens is immortal without
// any of them ever cancelling.
//
// A call with zero tokens, or where every token is already immortal,
// returns [ImmortalToken]. A call where any token is already cancelled
// returns [AlreadyCancelledToken]. Duplicate tokens (by identity) are
// collapsed before deciding how many distinct inputs remain, so a single
// repeated still-cancellable token is returned as-is rather than wrapped
// in a fresh, pointless composite.
func MinToken(tokens ...*CancelToken) *CancelToken {
	for _, tk := range tokens {
		if tk.IsAlreadyCancelled() {
			return AlreadyCancelledToken()
		}
	}

	var pending []*CancelToken
	seen := make(map[*CancelToken]bool, len(tokens))
	for _, tk := range tokens {
		if tk.State() == StillCancellable && !seen[tk] {
			seen[tk] = true
			pending = append(pending, tk)
		}
	}
	if len(pending) == 0 {
		return ImmortalToken()
	}
	if len(pending) == 1 {
		return pending[0]
	}

	src := NewCancelTokenSource()
	var remaining atomic.Int64
	remaining.Store(int64(len(pending)))
	for _, tk := range pending {
		tk.watchTerminal(func(s CancelTokenState) {
			if s == Cancelled {
				src.TryCancel()
				return
			}
			if remaining.Add(-1) == 0 {
				src.token.transitionImmortal()
			}
		})
	}
	return src.Token()
}

// MaxToken returns a token that cancels only once every one of tokens
// has cancelled ("last past the post" -- grounded on the original's
// matchLastToCancelBetween:and:). It becomes [Immortal] as soon as any
// single token in tokens is immortal, since an immortal input can never
// contribute its cancellation.
//
// A call with zero tokens returns [ImmortalToken]. A call where every
// token is already cancelled returns [AlreadyCancelledToken]. Duplicate
// tokens (by identity) are collapsed the same way as in [MinToken].
func MaxToken(tokens ...*CancelToken) *CancelToken {
	if len(tokens) == 0 {
		return ImmortalToken()
	}
	for _, tk := range tokens {
		if tk.State() == Immortal {
			return ImmortalToken()
		}
	}

	var pending []*CancelToken
	seen := make(map[*CancelToken]bool, len(tokens))
	for _, tk := range tokens {
		if !tk.IsAlreadyCancelled() && !seen[tk] {
			seen[tk] = true
			pending = append(pending, tk)
		}
	}
	if len(pending) == 0 {
		return AlreadyCancelledToken()
	}
	if len(pending) == 1 {
		return pending[0]
	}

	src := NewCancelTokenSource()
	var remaining atomic.Int64
	remaining.Store(int64(len(pending)))
	for _, tk := range pending {
		tk.watchTerminal(func(s CancelTokenState) {
			if s == Immortal {
				src.token.transitionImmortal()
				return
			}
			if remaining.Add(-1) == 0 {
				src.TryCancel()
			}
		})
	}
	return src.Token()
}

// NewDependentCancelTokenSource creates a [CancelTokenSource] whose token
// cancels automatically when until cancels, in addition to the normal
// manual Cancel/TryCancel and drop-to-immortal behaviour of any other
// source. Grounded on the original's cancelTokenSourceUntil:.
func NewDependentCancelTokenSource(until *CancelToken, opts ...SourceOption) *CancelTokenSource {
	src := NewCancelTokenSource(opts...)
	// until's observer holds src only weakly, so dropping src while until
	// is still pending lets its cleanup immortalise the token.
	weakSrc := weak.Make(src)
	until.WhenCancelledDo(func() {
		if s := weakSrc.Value(); s != nil {
			s.TryCancel()
		}
	})
	return src
}
