package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineSubject(t *testing.T) {
	assert.Equal(t, "itinerary.timeline.coast_run", timelineSubject("itinerary", "coast run"))
	assert.Equal(t, "itinerary.timeline.a_b_c", timelineSubject("itinerary", "a.b*c"))
	assert.Equal(t, "itinerary.timeline._", timelineSubject("itinerary", " "))
}

func TestDecodeEdit(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		want    EditMessage
		wantErr bool
	}{
		{name: "body", subject: "itinerary.edited.x", data: `{"tripId":"coast","level":"routing"}`, want: EditMessage{TripID: "coast", Level: "routing"}},
		{name: "subject only", subject: "itinerary.edited.coast", want: EditMessage{TripID: "coast"}},
		{name: "body without id", subject: "itinerary.edited.coast", data: `{"level":"timing"}`, want: EditMessage{TripID: "coast", Level: "timing"}},
		{name: "bad json", subject: "itinerary.edited.coast", data: `{`, wantErr: true},
		{name: "no id", subject: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEdit(tt.subject, []byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
