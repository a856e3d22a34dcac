package nats

import (
	"io"
	"log/slog"
	"testing"

	"github.com/edgevision/perceptd/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisherGracefulDegradation(t *testing.T) {
	bus := events.New()
	pub := NewPublisher("nats://127.0.0.1:59999", "", bus, testLogger())

	// RetryOnFailedConnect means Start succeeds even with no server;
	// the client keeps retrying in the background.
	if err := pub.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pub.Stop()

	if pub.IsConnected() {
		t.Error("publisher should not be connected to a non-existent server")
	}

	// Publishing through the bus while offline must be a no-op, not a
	// panic or a block.
	bus.Publish(events.DetectionEvent{
		Top:       events.Score{ClassID: 1, Label: "person", Confidence: 0.9},
		Timestamp: "2025-01-27T10:30:00Z",
	})
	bus.Publish(events.SessionStateEvent{
		State:      "streaming",
		DevicePath: "/dev/video0",
		Timestamp:  "2025-01-27T10:30:00Z",
	})
}

func TestPublisherStopIdempotent(t *testing.T) {
	bus := events.New()
	pub := NewPublisher("nats://127.0.0.1:59999", "", bus, testLogger())

	if err := pub.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	pub.Stop()
	pub.Stop()

	// Events after Stop go nowhere but must not panic.
	bus.Publish(events.DetectionEvent{Timestamp: "2025-01-27T10:30:00Z"})
}

func TestDefaultSubject(t *testing.T) {
	pub := NewPublisher("nats://127.0.0.1:4222", "", events.New(), testLogger())
	if pub.subject != SubjectDetections {
		t.Errorf("subject = %q, want %q", pub.subject, SubjectDetections)
	}

	pub = NewPublisher("nats://127.0.0.1:4222", "fleet.cam1.detections", events.New(), testLogger())
	if pub.subject != "fleet.cam1.detections" {
		t.Errorf("subject = %q, want override", pub.subject)
	}
}
