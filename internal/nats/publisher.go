package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/edgevision/perceptd/internal/events"
)

// Publisher forwards event bus detections and session state changes to
// a NATS server. It degrades to offline mode when the server is
// unreachable.
type Publisher struct {
	url     string
	subject string

	eventBus *events.Bus
	logger   *slog.Logger

	mu        sync.RWMutex
	conn      *nats.Conn
	connected bool
	unsubs    []func()
}

// NewPublisher creates a NATS publisher for the given event bus.
// subject overrides the detection subject; empty means the default.
func NewPublisher(url, subject string, eventBus *events.Bus, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = SubjectDetections
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		url:      url,
		subject:  subject,
		eventBus: eventBus,
		logger:   logger.With("component", "nats-publisher"),
	}
}

// Start connects to NATS and subscribes to the event bus. A failed
// connection is logged and returned, but the subscriptions are still
// installed so publishing resumes once the client reconnects.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := nats.Connect(p.url,
		nats.Name("perceptd"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.mu.Lock()
			p.connected = false
			p.mu.Unlock()
			if err != nil {
				p.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.mu.Lock()
			p.connected = true
			p.mu.Unlock()
			p.logger.Info("NATS reconnected")
		}),
		nats.ConnectHandler(func(_ *nats.Conn) {
			p.mu.Lock()
			p.connected = true
			p.mu.Unlock()
			p.logger.Info("Connected to NATS", "url", p.url)
		}),
	)
	if err != nil {
		p.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}
	p.conn = conn
	p.connected = conn.IsConnected()

	p.unsubs = []func(){
		p.eventBus.Subscribe(func(ev events.DetectionEvent) {
			p.publishDetection(ev)
		}),
		p.eventBus.Subscribe(func(ev events.SessionStateEvent) {
			p.publishState(ev)
		}),
	}

	return nil
}

// publishDetection sends a detection to NATS. No-op while offline.
func (p *Publisher) publishDetection(ev events.DetectionEvent) {
	scores := make([]ScoreEntry, len(ev.Scores))
	for i, sc := range ev.Scores {
		scores[i] = ScoreEntry{ClassID: sc.ClassID, Label: sc.Label, Confidence: sc.Confidence}
	}
	msg := DetectionMessage{
		Timestamp:   ev.Timestamp,
		Top:         ScoreEntry{ClassID: ev.Top.ClassID, Label: ev.Top.Label, Confidence: ev.Top.Confidence},
		Scores:      scores,
		FrameWidth:  ev.FrameWidth,
		FrameHeight: ev.FrameHeight,
		InferenceMS: ev.InferenceMS,
	}
	p.publish(p.subject, msg.Marshal)
}

// publishState sends a session state change to NATS. No-op while offline.
func (p *Publisher) publishState(ev events.SessionStateEvent) {
	msg := StateMessage{
		Timestamp:  ev.Timestamp,
		State:      ev.State,
		DevicePath: ev.DevicePath,
	}
	p.publish(SubjectSessionState, msg.Marshal)
}

func (p *Publisher) publish(subject string, marshal func() ([]byte, error)) {
	p.mu.RLock()
	conn := p.conn
	connected := p.connected
	p.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := marshal()
	if err != nil {
		p.logger.Warn("Failed to marshal message", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish message", "subject", subject, "error", err)
	}
}

// IsConnected returns true if the publisher is connected to NATS.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn != nil && p.conn.IsConnected()
}

// Stop unsubscribes from the event bus and closes the connection.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
		p.connected = false
	}
	p.logger.Info("NATS publisher stopped")
}
