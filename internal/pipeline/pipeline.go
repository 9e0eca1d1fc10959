// Package pipeline derives a consistent timetable for an itinerary.
//
// A run repairs the segment structure, annotates which endpoints are
// authoritative time sources, resolves the direction each source emits in,
// propagates times into the unset endpoints, and finally reports slack and
// overlap between neighbors. Every stage takes a sequence and returns a new
// one; inputs are never modified.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"travelmap/internal/itinerary"
)

type Level string

const (
	LevelRouting            Level = "routing"
	LevelTiming             Level = "timing"
	LevelConflictResolution Level = "conflictresolution"
)

func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelRouting, LevelTiming, LevelConflictResolution:
		return l, nil
	case "":
		return LevelTiming, nil
	default:
		return "", fmt.Errorf("unknown pipeline level %q", s)
	}
}

// Priority decides which side wins a gap bracketed by two pinned endpoints
// of equal rank.
type Priority string

const (
	ForwardFirst  Priority = "forward-first"
	BackwardFirst Priority = "backward-first"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case ForwardFirst, BackwardFirst:
		return p, nil
	case "":
		return ForwardFirst, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

type Options struct {
	Priority Priority
}

// RouteLookup returns driving data between two points. A nil result with a
// nil error means no route exists.
type RouteLookup interface {
	RouteInfo(ctx context.Context, origin, destination itinerary.LatLng) (*itinerary.RouteInfo, error)
}

// Observer receives per-stage timings and route lookup outcomes.
type Observer interface {
	StageObserve(stage string, d time.Duration)
	RouteLookupInc(result string)
}

type Result struct {
	Level    Level              `json:"level"`
	Segments itinerary.Sequence `json:"segments"`
	Report   Report             `json:"report"`
}

type Runner struct {
	repairer *Repairer
	opts     Options
	observer Observer
}

// NewRunner builds a runner. routes may be nil to skip route lookups;
// observer may be nil.
func NewRunner(routes RouteLookup, opts Options, observer Observer) *Runner {
	if opts.Priority == "" {
		opts.Priority = ForwardFirst
	}
	return &Runner{
		repairer: NewRepairer(routes, observer),
		opts:     opts,
		observer: observer,
	}
}

// Run executes the stages enabled by level on a private copy of seq. The
// caller guarantees both anchors are present.
func (r *Runner) Run(ctx context.Context, seq itinerary.Sequence, level Level) Result {
	work := itinerary.Normalize(seq)
	res := Result{Level: level}

	if level != LevelRouting {
		r.stage("reset", func() { work = ResetDerived(work) })
	}
	r.stage("repair", func() { work = r.repairer.Repair(ctx, work) })
	if level == LevelRouting {
		res.Segments = work
		return res
	}

	var em Emitters
	r.stage("annotate", func() { em = Annotate(work) })
	r.stage("direction", func() { em = ResolveDirections(work, em, r.opts) })
	r.stage("propagate", func() { work = Propagate(work, em) })
	if level == LevelConflictResolution {
		r.stage("conflict", func() { work = resolveConflicts(work) })
	}
	r.stage("slack", func() { res.Report = ComputeSlackAndOverlap(work) })

	res.Segments = work
	return res
}

func (r *Runner) stage(name string, fn func()) {
	start := time.Now()
	fn()
	if r.observer != nil {
		r.observer.StageObserve(name, time.Since(start))
	}
}

// resolveConflicts is reserved for automatic conflict resolution.
func resolveConflicts(seq itinerary.Sequence) itinerary.Sequence { return seq }
