package pipeline

import (
	"time"

	"travelmap/internal/itinerary"
)

// Propagate fills unset endpoints from the emitters chosen by
// ResolveDirections. Manual and pinned endpoints are never written. A chain
// stops at the first segment whose duration is unknown.
func Propagate(seq itinerary.Sequence, em Emitters) itinerary.Sequence {
	out := seq.Clone()
	n := 2 * len(out)
	for p := 0; p < n; p++ {
		e := em[keyAt(out, p)]
		if e.WillEmitForward {
			emit(out, em, p, 1)
		}
		if e.WillEmitBackward {
			emit(out, em, p, -1)
		}
	}
	deriveDurations(out)
	return out
}

func emit(seq itinerary.Sequence, em Emitters, from, dir int) {
	t, ok := endpointAt(seq, from).Time()
	if !ok {
		return
	}
	n := 2 * len(seq)
	for q := from + dir; q >= 0 && q < n; q += dir {
		if em[keyAt(seq, q)].Pinned {
			return
		}
		t, ok = step(seq, q-dir, q, t)
		if !ok {
			return
		}
		ep := endpointAt(seq, q)
		if ep.IsSet() || seq[q/2].Manual(sideAt(q)) {
			continue
		}
		*ep = itinerary.Endpoint{UTC: itinerary.FormatTime(t), Lock: itinerary.LockAuto}
	}
}

// step moves an instant from endpoint position from to its neighbor to.
// Crossing a segment boundary keeps the instant; crossing a segment adds or
// subtracts its duration.
func step(seq itinerary.Sequence, from, to int, t time.Time) (time.Time, bool) {
	if from/2 != to/2 {
		return t, true
	}
	d, ok := segmentDuration(seq[from/2])
	if !ok {
		return time.Time{}, false
	}
	if to > from {
		return t.Add(d), true
	}
	return t.Add(-d), true
}

func segmentDuration(seg itinerary.Segment) (time.Duration, bool) {
	if seg.Type.IsAnchor() {
		return 0, true
	}
	if !seg.Duration.Known() {
		return 0, false
	}
	return seg.Duration.Get(), true
}

// deriveDurations records the elapsed time of segments whose ends are both
// known, unless the user supplied a duration.
func deriveDurations(seq itinerary.Sequence) {
	for i := range seq {
		seg := &seq[i]
		if seg.Type.IsAnchor() {
			continue
		}
		if seg.Duration.Known() && seg.Duration.Lock != itinerary.LockAuto {
			continue
		}
		start, okStart := seg.Start.Time()
		end, okEnd := seg.End.Time()
		if !okStart || !okEnd || end.Before(start) {
			continue
		}
		mins := int(end.Sub(start) / time.Minute)
		seg.Duration = itinerary.Duration{Val: &mins, Lock: itinerary.LockAuto}
	}
}

// ResetDerived clears every endpoint time that is not an authoritative
// source and every auto duration, so a run recomputes them from scratch.
// Manual endpoints are kept.
func ResetDerived(seq itinerary.Sequence) itinerary.Sequence {
	out := seq.Clone()
	for i := range out {
		seg := &out[i]
		for _, side := range []itinerary.Side{itinerary.SideStart, itinerary.SideEnd} {
			if _, pinned := pinRank(*seg, side); pinned || seg.Manual(side) {
				continue
			}
			*seg.Endpoint(side) = itinerary.Endpoint{Lock: itinerary.LockUnlocked}
		}
		if seg.Duration.Lock == itinerary.LockAuto {
			seg.Duration = itinerary.Duration{Lock: itinerary.LockUnlocked}
		}
	}
	return out
}
