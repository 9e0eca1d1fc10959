package itinerary

import (
	"errors"
	"fmt"
)

var (
	ErrSegmentNotFound = errors.New("segment not found")
	ErrNotMovable      = errors.New("only stops can be queued or moved")
)

// ClearTimes empties endpoint times and durations. With onlyUnlocked, hard and
// soft values and manual endpoints survive; auto values are always cleared.
func ClearTimes(seq Sequence, onlyUnlocked bool) Sequence {
	out := seq.Clone()
	for i := range out {
		seg := &out[i]
		for _, side := range []Side{SideStart, SideEnd} {
			ep := seg.Endpoint(side)
			if onlyUnlocked && (ep.Lock.Authoritative() || seg.Manual(side)) {
				continue
			}
			*ep = Endpoint{Lock: LockUnlocked}
		}
		if !onlyUnlocked {
			seg.ManualEdit, seg.ManualStart, seg.ManualEnd = false, false, false
		}
		if onlyUnlocked && seg.Duration.Lock.Authoritative() {
			continue
		}
		seg.Duration = Duration{Lock: LockUnlocked}
	}
	return out
}

// Enqueue moves a stop from the timeline into the queue.
func (t *Trip) Enqueue(id string) error {
	i := t.Segments.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("enqueue %s: %w", id, ErrSegmentNotFound)
	}
	seg := t.Segments[i]
	if seg.Type != TypeStop {
		return fmt.Errorf("enqueue %s: %w", id, ErrNotMovable)
	}
	seg.Start = Endpoint{Lock: LockUnlocked}
	seg.End = Endpoint{Lock: LockUnlocked}
	seg.ManualStart, seg.ManualEnd, seg.ManualEdit = false, false, false
	t.Segments = remove(t.Segments, i)
	t.Queue = append(t.Queue, seg)
	return nil
}

// Dequeue inserts a queued stop into the timeline before position at. The
// position is clamped so the stop lands between the anchors.
func (t *Trip) Dequeue(id string, at int) error {
	qi := -1
	for i := range t.Queue {
		if t.Queue[i].ID == id {
			qi = i
			break
		}
	}
	if qi < 0 {
		return fmt.Errorf("dequeue %s: %w", id, ErrSegmentNotFound)
	}
	seg := t.Queue[qi]
	t.Queue = append(t.Queue[:qi:qi], t.Queue[qi+1:]...)
	t.Segments = insert(t.Segments, t.clampIndex(at), seg)
	return nil
}

// Move relocates a stop within the timeline. Drives left stale by the move
// are cleaned up by the next repair.
func (t *Trip) Move(id string, to int) error {
	i := t.Segments.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("move %s: %w", id, ErrSegmentNotFound)
	}
	seg := t.Segments[i]
	if seg.Type != TypeStop {
		return fmt.Errorf("move %s: %w", id, ErrNotMovable)
	}
	rest := remove(t.Segments, i)
	t.Segments = rest
	t.Segments = insert(rest, t.clampIndex(to), seg)
	return nil
}

func (t *Trip) clampIndex(at int) int {
	lo, hi := 0, len(t.Segments)
	if len(t.Segments) > 0 && t.Segments[0].Type == TypeTripStart {
		lo = 1
	}
	if n := len(t.Segments); n > 0 && t.Segments[n-1].Type == TypeTripEnd {
		hi = n - 1
	}
	if at < lo {
		return lo
	}
	if at > hi {
		return hi
	}
	return at
}

func remove(seq Sequence, i int) Sequence {
	out := make(Sequence, 0, len(seq)-1)
	out = append(out, seq[:i]...)
	return append(out, seq[i+1:]...)
}

func insert(seq Sequence, i int, seg Segment) Sequence {
	out := make(Sequence, 0, len(seq)+1)
	out = append(out, seq[:i]...)
	out = append(out, seg)
	return append(out, seq[i:]...)
}
