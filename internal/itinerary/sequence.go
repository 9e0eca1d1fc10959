package itinerary

import (
	"github.com/google/uuid"
)

// Sequence is the ordered timeline of a trip.
type Sequence []Segment

// Clone returns a deep copy; stages work on clones so their input stays intact.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	for i, seg := range s {
		out[i] = seg.clone()
	}
	return out
}

func (s Segment) clone() Segment {
	if s.Location != nil {
		loc := *s.Location
		s.Location = &loc
	}
	if s.Duration.Val != nil {
		v := *s.Duration.Val
		s.Duration.Val = &v
	}
	if s.Route != nil {
		r := *s.Route
		if r.Geometry != nil {
			r.Geometry = append([][2]float64(nil), r.Geometry...)
		}
		s.Route = &r
	}
	return s
}

// IndexOf returns the position of id, or -1.
func (s Sequence) IndexOf(id string) int {
	for i := range s {
		if s[i].ID == id {
			return i
		}
	}
	return -1
}

func (s Sequence) Find(id string) (Segment, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s[i], true
	}
	return Segment{}, false
}

// Normalize materializes defaults once at ingestion: missing locks become
// unlocked, segments without an id or with an id already used earlier in the
// sequence get a fresh one, and anchors hold a single instant (see
// syncAnchor).
func Normalize(seq Sequence) Sequence {
	out := seq.Clone()
	seen := make(map[string]struct{}, len(out))
	for i := range out {
		seg := &out[i]
		if _, dup := seen[seg.ID]; dup || seg.ID == "" {
			seg.ID = uuid.NewString()
		}
		seen[seg.ID] = struct{}{}
		seg.Start.Lock = parseLock(string(seg.Start.Lock))
		seg.End.Lock = parseLock(string(seg.End.Lock))
		seg.Duration.Lock = parseLock(string(seg.Duration.Lock))
		if seg.ManualEdit && !seg.ManualStart && !seg.ManualEnd {
			seg.ManualStart, seg.ManualEnd = true, true
		}
		if seg.Type.IsAnchor() {
			syncAnchor(seg)
			seg.Duration = Duration{Lock: LockUnlocked}
		}
	}
	return out
}

// syncAnchor makes both sides of an anchor carry the same instant. The outer
// side (trip_start's start, trip_end's end) wins when it holds a user value;
// otherwise a user value on the inner side is copied out. Values written by
// propagation never override a user value, and an anchor holding only
// propagated values is left for the reset stage to clear.
func syncAnchor(seg *Segment) {
	outer, inner := &seg.Start, &seg.End
	if seg.Type == TypeTripEnd {
		outer, inner = &seg.End, &seg.Start
	}
	switch {
	case userValue(*outer):
		*inner = *outer
	case userValue(*inner):
		*outer = *inner
	}
}

func userValue(ep Endpoint) bool {
	return ep.IsSet() && ep.Lock != LockAuto
}

// EnsureAnchors returns a copy with exactly one trip_start first and one
// trip_end last, creating the missing ones. Extra anchors are dropped.
func EnsureAnchors(seq Sequence) Sequence {
	var start, end *Segment
	body := make(Sequence, 0, len(seq)+2)
	for _, seg := range seq.Clone() {
		switch seg.Type {
		case TypeTripStart:
			if start == nil {
				start = &seg
			}
		case TypeTripEnd:
			if end == nil {
				end = &seg
			}
		default:
			body = append(body, seg)
		}
	}
	if start == nil {
		start = newAnchor(TypeTripStart, "Trip start")
	}
	if end == nil {
		end = newAnchor(TypeTripEnd, "Trip end")
	}
	out := make(Sequence, 0, len(body)+2)
	out = append(out, *start)
	out = append(out, body...)
	out = append(out, *end)
	return out
}

func newAnchor(t Type, name string) *Segment {
	return &Segment{
		ID:       uuid.NewString(),
		Type:     t,
		Name:     name,
		Start:    Endpoint{Lock: LockUnlocked},
		End:      Endpoint{Lock: LockUnlocked},
		Duration: Duration{Lock: LockUnlocked},
	}
}

// HasAnchors reports whether seq starts with trip_start and ends with trip_end.
func HasAnchors(seq Sequence) bool {
	n := len(seq)
	return n >= 2 && seq[0].Type == TypeTripStart && seq[n-1].Type == TypeTripEnd
}
