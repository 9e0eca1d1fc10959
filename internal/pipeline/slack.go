package pipeline

import (
	"travelmap/internal/itinerary"
)

// Gap is the slack or overlap between segment A and the segment B after it.
type Gap struct {
	A       string `json:"a"`
	B       string `json:"b"`
	Minutes int    `json:"minutes"`
}

type Report struct {
	Slack    []Gap `json:"slack"`
	Overlaps []Gap `json:"overlaps"`
}

// ComputeSlackAndOverlap measures the gap between each segment's end and the
// next segment's start. Pairs missing either time are skipped.
func ComputeSlackAndOverlap(seq itinerary.Sequence) Report {
	var rep Report
	for i := 0; i+1 < len(seq); i++ {
		cur, next := seq[i], seq[i+1]
		end, ok := cur.End.Time()
		if !ok {
			continue
		}
		start, ok := next.Start.Time()
		if !ok {
			continue
		}
		gap := int(start.Sub(end).Minutes())
		switch {
		case gap > 0:
			rep.Slack = append(rep.Slack, Gap{A: cur.ID, B: next.ID, Minutes: gap})
		case gap < 0:
			rep.Overlaps = append(rep.Overlaps, Gap{A: cur.ID, B: next.ID, Minutes: -gap})
		}
	}
	return rep
}
