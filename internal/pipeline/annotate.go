package pipeline

import (
	"travelmap/internal/itinerary"
)

// Rank orders competing pinned endpoints; lower wins.
type Rank int

const (
	RankAnchor Rank = iota
	RankHard
	RankSoft
	RankNone
)

type EndpointKey struct {
	SegmentID string
	Side      itinerary.Side
}

// Emitter is the per-run metadata of one endpoint.
type Emitter struct {
	Rank             Rank `json:"rank"`
	Pinned           bool `json:"pinned"`
	EmitsForward     bool `json:"emitsForward"`
	EmitsBackward    bool `json:"emitsBackward"`
	WillEmitForward  bool `json:"willEmitForward"`
	WillEmitBackward bool `json:"willEmitBackward"`
}

// Emitters is a side table scoped to one pipeline run.
type Emitters map[EndpointKey]Emitter

func (em Emitters) clone() Emitters {
	out := make(Emitters, len(em))
	for k, v := range em {
		out[k] = v
	}
	return out
}

// Endpoints are addressed by their position in the flattened order
// seg0.start, seg0.end, seg1.start, ...
func sideAt(p int) itinerary.Side {
	if p%2 == 0 {
		return itinerary.SideStart
	}
	return itinerary.SideEnd
}

func keyAt(seq itinerary.Sequence, p int) EndpointKey {
	return EndpointKey{SegmentID: seq[p/2].ID, Side: sideAt(p)}
}

func endpointAt(seq itinerary.Sequence, p int) *itinerary.Endpoint {
	return seq[p/2].Endpoint(sideAt(p))
}

// pinRank reports whether the endpoint is an authoritative time source.
// Values written by propagation carry the auto lock and never pin.
func pinRank(seg itinerary.Segment, side itinerary.Side) (Rank, bool) {
	ep := seg.Start
	if side == itinerary.SideEnd {
		ep = seg.End
	}
	if !ep.IsSet() || ep.Lock == itinerary.LockAuto {
		return RankNone, false
	}
	switch {
	case seg.Type.IsAnchor():
		return RankAnchor, true
	case ep.Lock == itinerary.LockHard:
		return RankHard, true
	case ep.Lock == itinerary.LockSoft, seg.Manual(side):
		return RankSoft, true
	}
	return RankNone, false
}

// Annotate computes pinning and emit eligibility for every endpoint.
func Annotate(seq itinerary.Sequence) Emitters {
	n := 2 * len(seq)
	em := make(Emitters, n)
	pinned := make([]bool, n)
	for p := 0; p < n; p++ {
		rank, ok := pinRank(seq[p/2], sideAt(p))
		pinned[p] = ok
		em[keyAt(seq, p)] = Emitter{Rank: rank, Pinned: ok}
	}
	for p := 0; p < n; p++ {
		if !pinned[p] {
			continue
		}
		k := keyAt(seq, p)
		e := em[k]
		typ := seq[p/2].Type
		e.EmitsForward = typ != itinerary.TypeTripEnd && p+1 < n && !pinned[p+1]
		e.EmitsBackward = typ != itinerary.TypeTripStart && p > 0 && !pinned[p-1]
		em[k] = e
	}
	return em
}
