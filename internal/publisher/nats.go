package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"travelmap/internal/itinerary"
	"travelmap/internal/pipeline"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("travelmap-planner"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// TimelineMessage is what renderers receive after a pipeline run.
type TimelineMessage struct {
	TripID      string             `json:"tripId"`
	Level       pipeline.Level     `json:"level"`
	Segments    itinerary.Sequence `json:"segments"`
	Report      pipeline.Report    `json:"report"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// EditMessage asks for a pipeline run of one trip. An empty level means the
// configured default.
type EditMessage struct {
	TripID string `json:"tripId"`
	Level  string `json:"level,omitempty"`
}

func (p *NATSPublisher) PublishTimeline(msg TimelineMessage) error {
	subject := timelineSubject(p.prefix, msg.TripID)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// SubscribeEdits calls fn for every edit notification. The trip id comes
// from the message body, or from the last subject token when the body is empty.
func (p *NATSPublisher) SubscribeEdits(fn func(EditMessage)) (*nats.Subscription, error) {
	subject := fmt.Sprintf("%s.edited.*", p.prefix)
	return p.nc.Subscribe(subject, func(m *nats.Msg) {
		msg, err := decodeEdit(m.Subject, m.Data)
		if err != nil {
			log.Printf("ignoring edit on %s: %v", m.Subject, err)
			return
		}
		fn(msg)
	})
}

func decodeEdit(subject string, data []byte) (EditMessage, error) {
	var msg EditMessage
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return msg, err
		}
	}
	if msg.TripID == "" {
		if i := strings.LastIndex(subject, "."); i >= 0 {
			msg.TripID = subject[i+1:]
		}
	}
	if msg.TripID == "" {
		return msg, fmt.Errorf("no trip id")
	}
	return msg, nil
}

func timelineSubject(prefix, tripID string) string {
	return fmt.Sprintf("%s.timeline.%s", prefix, subjectToken(tripID))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
