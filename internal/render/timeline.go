// Package render prints an itinerary as a colored text timeline.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"travelmap/internal/itinerary"
	"travelmap/internal/pipeline"
	"travelmap/internal/route"
)

var (
	anchorColor = color.New(color.FgHiBlue, color.Bold)
	stopColor   = color.New(color.FgHiGreen)
	driveColor  = color.New(color.FgHiBlack)
	slackColor  = color.New(color.FgCyan)
	overlapRed  = color.New(color.FgRed, color.Bold)
	hardColor   = color.New(color.FgRed)
	softColor   = color.New(color.FgYellow)
)

// Timeline writes one line per segment followed by the slack and overlap
// summary.
func Timeline(w io.Writer, name string, seq itinerary.Sequence, rep pipeline.Report) {
	if name != "" {
		fmt.Fprintln(w, color.New(color.Bold).Sprint(name))
	}
	overlapAfter := map[string]int{}
	for _, g := range rep.Overlaps {
		overlapAfter[g.A] = g.Minutes
	}

	for _, seg := range seq {
		when := fmt.Sprintf("%s %s", clock(seg.Start), clock(seg.End))
		switch seg.Type {
		case itinerary.TypeTripStart, itinerary.TypeTripEnd:
			at := seg.Start
			if !at.IsSet() {
				at = seg.End
			}
			fmt.Fprintf(w, "%s%s  %s\n", clock(at), lockMark(at.Lock), anchorColor.Sprint(label(seg)))
		case itinerary.TypeDrive:
			fmt.Fprintf(w, "  %s  %s %s%s\n", when, driveColor.Sprint("drive"), driveColor.Sprint(duration(seg.Duration)), driveColor.Sprint(distance(seg, seq)))
		default:
			fmt.Fprintf(w, "  %s%s  %s %s%s\n", when, lockMark(seg.End.Lock), stopColor.Sprint(label(seg)), duration(seg.Duration), lockMark(seg.Duration.Lock))
		}
		if m, ok := overlapAfter[seg.ID]; ok {
			fmt.Fprintln(w, overlapRed.Sprintf("  !! overlaps next by %s", minutes(m)))
		}
	}

	var slack int
	for _, g := range rep.Slack {
		slack += g.Minutes
	}
	summary := fmt.Sprintf("%d gaps, %s free", len(rep.Slack), minutes(slack))
	fmt.Fprintln(w, slackColor.Sprint(summary))
	if len(rep.Overlaps) > 0 {
		fmt.Fprintln(w, overlapRed.Sprintf("%d overlaps", len(rep.Overlaps)))
	}
}

func label(seg itinerary.Segment) string {
	if seg.Name != "" {
		return seg.Name
	}
	return strings.ReplaceAll(string(seg.Type), "_", " ")
}

func clock(ep itinerary.Endpoint) string {
	t, ok := ep.Time()
	if !ok {
		return "--:--"
	}
	return t.Format("15:04")
}

func lockMark(l itinerary.Lock) string {
	switch l {
	case itinerary.LockHard:
		return hardColor.Sprint("!")
	case itinerary.LockSoft:
		return softColor.Sprint("~")
	default:
		return ""
	}
}

func duration(d itinerary.Duration) string {
	if !d.Known() {
		return "(?)"
	}
	return "(" + minutes(*d.Val) + ")"
}

func minutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	if m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}

// distance prefers the routed distance and falls back to the straight line
// between the drive's neighbors.
func distance(seg itinerary.Segment, seq itinerary.Sequence) string {
	if seg.Route != nil {
		return fmt.Sprintf(" %.1f mi", seg.Route.DistanceMi)
	}
	o, ok1 := seq.Find(seg.OriginID)
	d, ok2 := seq.Find(seg.DestinationID)
	if !ok1 || !ok2 || o.Location == nil || d.Location == nil {
		return ""
	}
	return fmt.Sprintf(" ~%.1f mi", route.StraightLineMiles(*o.Location, *d.Location))
}
