package pipeline

import (
	"travelmap/internal/itinerary"
)

// ResolveDirections decides which pinned endpoint fills each run of unpinned
// endpoints. A gap with a single eligible neighbor is claimed by it; a gap
// bracketed on both sides goes to the lower rank, then to opts.Priority.
func ResolveDirections(seq itinerary.Sequence, em Emitters, opts Options) Emitters {
	out := em.clone()
	for k, e := range out {
		e.WillEmitForward, e.WillEmitBackward = false, false
		out[k] = e
	}
	n := 2 * len(seq)
	prev := -1
	for p := 0; p <= n; p++ {
		if p < n && !out[keyAt(seq, p)].Pinned {
			continue
		}
		if p-prev > 1 {
			resolveGap(seq, out, prev, p, opts.Priority)
		}
		prev = p
	}
	return out
}

// resolveGap handles the unpinned endpoints strictly between left and right.
// left is -1 for a leading gap, right is len for a trailing one.
func resolveGap(seq itinerary.Sequence, em Emitters, left, right int, priority Priority) {
	var lk, rk EndpointKey
	var l, r Emitter
	if left >= 0 {
		lk = keyAt(seq, left)
		l = em[lk]
	}
	if right < 2*len(seq) {
		rk = keyAt(seq, right)
		r = em[rk]
	}
	fwd := left >= 0 && l.EmitsForward
	bwd := right < 2*len(seq) && r.EmitsBackward

	if fwd && bwd {
		switch {
		case l.Rank < r.Rank:
			bwd = false
		case r.Rank < l.Rank:
			fwd = false
		case priority == BackwardFirst:
			fwd = false
		default:
			bwd = false
		}
	}
	if fwd {
		l.WillEmitForward = true
		em[lk] = l
	}
	if bwd {
		r.WillEmitBackward = true
		em[rk] = r
	}
}
