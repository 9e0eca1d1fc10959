package itinerary

import (
	"strings"
	"time"
)

type Type string

const (
	TypeTripStart Type = "trip_start"
	TypeTripEnd   Type = "trip_end"
	TypeStop      Type = "stop"
	TypeDrive     Type = "drive"
)

func (t Type) IsAnchor() bool { return t == TypeTripStart || t == TypeTripEnd }

// Lock is the authority level of a time or duration value.
type Lock string

const (
	LockUnlocked Lock = "unlocked"
	LockSoft     Lock = "soft"
	LockHard     Lock = "hard"
	LockAuto     Lock = "auto" // system computed
)

// Authoritative reports whether the value must survive propagation and
// clear operations restricted to unlocked fields.
func (l Lock) Authoritative() bool { return l == LockHard || l == LockSoft }

func parseLock(s string) Lock {
	switch Lock(strings.ToLower(strings.TrimSpace(s))) {
	case LockSoft:
		return LockSoft
	case LockHard:
		return LockHard
	case LockAuto:
		return LockAuto
	default:
		return LockUnlocked
	}
}

type Side string

const (
	SideStart Side = "start"
	SideEnd   Side = "end"
)

// Endpoint is a segment's start or end instant plus its lock.
// UTC is empty when unset.
type Endpoint struct {
	UTC  string `json:"utc" yaml:"utc"`
	Lock Lock   `json:"lock" yaml:"lock"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Time parses UTC. Empty or unparseable values report ok=false.
func (e Endpoint) Time() (time.Time, bool) {
	s := strings.TrimSpace(e.UTC)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Minute), true
		}
	}
	return time.Time{}, false
}

func (e Endpoint) IsSet() bool {
	_, ok := e.Time()
	return ok
}

// FormatTime renders an instant the way endpoints store it.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(time.RFC3339)
}

// Duration is a length in whole minutes. Val is nil when unknown.
type Duration struct {
	Val  *int `json:"val" yaml:"val"`
	Lock Lock `json:"lock" yaml:"lock"`
}

func Minutes(n int) Duration {
	return Duration{Val: &n, Lock: LockUnlocked}
}

func (d Duration) Known() bool { return d.Val != nil }

func (d Duration) Get() time.Duration {
	if d.Val == nil {
		return 0
	}
	return time.Duration(*d.Val) * time.Minute
}

type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// RouteInfo is the routing data attached to a drive.
type RouteInfo struct {
	Geometry    [][2]float64 `json:"geometry,omitempty" yaml:"geometry,omitempty"` // lon,lat pairs
	DistanceMi  float64      `json:"distanceMi" yaml:"distance_mi"`
	DurationMin float64      `json:"durationMin" yaml:"duration_min"`
}

type Segment struct {
	ID       string   `json:"id" yaml:"id"`
	Type     Type     `json:"type" yaml:"type"`
	Name     string   `json:"name" yaml:"name"`
	Location *LatLng  `json:"location,omitempty" yaml:"location,omitempty"`
	Start    Endpoint `json:"start" yaml:"start"`
	End      Endpoint `json:"end" yaml:"end"`
	Duration Duration `json:"duration" yaml:"duration"`

	ManualEdit  bool `json:"manualEdit,omitempty" yaml:"manual_edit,omitempty"`
	ManualStart bool `json:"manualStart,omitempty" yaml:"manual_start,omitempty"`
	ManualEnd   bool `json:"manualEnd,omitempty" yaml:"manual_end,omitempty"`

	// drive only
	OriginID      string     `json:"originId,omitempty" yaml:"origin_id,omitempty"`
	DestinationID string     `json:"destinationId,omitempty" yaml:"destination_id,omitempty"`
	Route         *RouteInfo `json:"route,omitempty" yaml:"route,omitempty"`
}

func (s *Segment) Endpoint(side Side) *Endpoint {
	if side == SideStart {
		return &s.Start
	}
	return &s.End
}

// Manual reports whether the user overrode the given side.
func (s Segment) Manual(side Side) bool {
	if side == SideStart {
		return s.ManualStart
	}
	return s.ManualEnd
}

// Trip is the persisted unit: the ordered timeline plus stops parked in the queue.
type Trip struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Segments  Sequence  `json:"segments" yaml:"segments"`
	Queue     []Segment `json:"queue,omitempty" yaml:"queue,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}
