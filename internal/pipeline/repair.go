package pipeline

import (
	"context"
	"log"
	"math"

	"github.com/google/uuid"

	"travelmap/internal/itinerary"
)

// Repairer fixes the drive structure of a sequence and attaches route data.
type Repairer struct {
	routes   RouteLookup
	observer Observer
}

func NewRepairer(routes RouteLookup, observer Observer) *Repairer {
	return &Repairer{routes: routes, observer: observer}
}

// Repair returns a copy of seq where no two drives are adjacent, every drive
// sits between the segments it references, and every adjacent pair of
// non-drive segments is joined by a drive. Route failures leave the drive
// without route data.
func (r *Repairer) Repair(ctx context.Context, seq itinerary.Sequence) itinerary.Sequence {
	out := collapseDrives(seq.Clone())
	out = dropDanglingDrives(out)
	out = insertMissingDrives(out)
	r.fillRoutes(ctx, out)
	return out
}

// collapseDrives removes every run of two or more consecutive drives.
func collapseDrives(seq itinerary.Sequence) itinerary.Sequence {
	for {
		i := firstAdjacentDrive(seq)
		if i < 0 {
			return seq
		}
		j := i
		for j < len(seq) && seq[j].Type == itinerary.TypeDrive {
			j++
		}
		log.Printf("repair: removing %d adjacent drives at %d", j-i, i)
		next := make(itinerary.Sequence, 0, len(seq)-(j-i))
		next = append(next, seq[:i]...)
		seq = append(next, seq[j:]...)
	}
}

func firstAdjacentDrive(seq itinerary.Sequence) int {
	for i := 0; i+1 < len(seq); i++ {
		if seq[i].Type == itinerary.TypeDrive && seq[i+1].Type == itinerary.TypeDrive {
			return i
		}
	}
	return -1
}

// dropDanglingDrives removes drives whose endpoints no longer resolve or no
// longer sit next to them.
func dropDanglingDrives(seq itinerary.Sequence) itinerary.Sequence {
	ids := make(map[string]struct{}, len(seq))
	for _, seg := range seq {
		ids[seg.ID] = struct{}{}
	}
	out := make(itinerary.Sequence, 0, len(seq))
	for i, seg := range seq {
		if seg.Type != itinerary.TypeDrive {
			out = append(out, seg)
			continue
		}
		_, okOrigin := ids[seg.OriginID]
		_, okDest := ids[seg.DestinationID]
		if !okOrigin || !okDest {
			log.Printf("repair: dropping drive %s with missing endpoint", seg.ID)
			continue
		}
		if i == 0 || i == len(seq)-1 || seq[i-1].ID != seg.OriginID || seq[i+1].ID != seg.DestinationID {
			log.Printf("repair: dropping stale drive %s", seg.ID)
			continue
		}
		out = append(out, seg)
	}
	return out
}

func insertMissingDrives(seq itinerary.Sequence) itinerary.Sequence {
	out := make(itinerary.Sequence, 0, 2*len(seq))
	for i, seg := range seq {
		out = append(out, seg)
		if i+1 == len(seq) {
			break
		}
		next := seq[i+1]
		if seg.Type != itinerary.TypeDrive && next.Type != itinerary.TypeDrive {
			out = append(out, newDrive(seg, next))
		}
	}
	return out
}

func newDrive(origin, destination itinerary.Segment) itinerary.Segment {
	return itinerary.Segment{
		ID:            uuid.NewString(),
		Type:          itinerary.TypeDrive,
		Name:          origin.Name + " → " + destination.Name,
		Start:         itinerary.Endpoint{Lock: itinerary.LockUnlocked},
		End:           itinerary.Endpoint{Lock: itinerary.LockUnlocked},
		Duration:      itinerary.Duration{Lock: itinerary.LockUnlocked},
		OriginID:      origin.ID,
		DestinationID: destination.ID,
	}
}

// fillRoutes runs after insertMissingDrives, so every drive has its origin
// just before it and its destination just after it.
func (r *Repairer) fillRoutes(ctx context.Context, seq itinerary.Sequence) {
	for i := range seq {
		drive := &seq[i]
		if drive.Type != itinerary.TypeDrive {
			continue
		}
		if drive.Route == nil && r.routes != nil {
			drive.Route = r.lookup(ctx, seq[i-1], seq[i+1])
		}
		if drive.Route != nil && !drive.Duration.Lock.Authoritative() {
			mins := int(math.Round(drive.Route.DurationMin))
			drive.Duration = itinerary.Duration{Val: &mins, Lock: itinerary.LockAuto}
		}
	}
}

func (r *Repairer) lookup(ctx context.Context, origin, destination itinerary.Segment) *itinerary.RouteInfo {
	if origin.Location == nil || destination.Location == nil {
		r.count("skipped")
		return nil
	}
	info, err := r.routes.RouteInfo(ctx, *origin.Location, *destination.Location)
	if err != nil {
		log.Printf("route lookup %s -> %s failed: %v", origin.ID, destination.ID, err)
		r.count("error")
		return nil
	}
	if info == nil {
		log.Printf("no route between %s and %s", origin.ID, destination.ID)
		r.count("empty")
		return nil
	}
	r.count("ok")
	return info
}

func (r *Repairer) count(result string) {
	if r.observer != nil {
		r.observer.RouteLookupInc(result)
	}
}
