package pipeline

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/internal/infer"
	"github.com/edgevision/perceptd/internal/pixel"
)

type fakeClassifier struct {
	input      infer.InputSpec
	detections []infer.Detection
	lastImage  []byte
}

func (c *fakeClassifier) Input() infer.InputSpec { return c.input }

func (c *fakeClassifier) RunInference(image []byte) []infer.Detection {
	c.lastImage = append([]byte(nil), image...)
	return c.detections
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFrame(w, h int) *pixel.Frame {
	return &pixel.Frame{Width: w, Height: h, Pix: make([]byte, w*h*3)}
}

func TestConsumePublishesTopDetection(t *testing.T) {
	classifier := &fakeClassifier{
		input: infer.InputSpec{Width: 4, Height: 4, Channels: 3, Type: infer.TypeUInt8},
		detections: []infer.Detection{
			{ClassID: 0, Confidence: -20},
			{ClassID: 1, Confidence: 75},
			{ClassID: 2, Confidence: -25},
			{ClassID: 3, Confidence: -25},
		},
	}
	bus := events.New()
	received := make(chan events.DetectionEvent, 1)
	unsub := bus.Subscribe(func(e events.DetectionEvent) {
		received <- e
	})
	defer unsub()

	o := New(classifier, []string{"background", "person", "cat", "dog"}, 0.0, bus, testLogger())
	o.Consume(testFrame(4, 4))

	// Threshold 0.0 with a positive winner publishes.
	select {
	case ev := <-received:
		if ev.Top.ClassID != 1 {
			t.Errorf("top class = %d, want 1", ev.Top.ClassID)
		}
		if ev.Top.Label != "person" {
			t.Errorf("top label = %q, want person", ev.Top.Label)
		}
		if ev.Top.Confidence != 75 {
			t.Errorf("top confidence = %v, want 75", ev.Top.Confidence)
		}
		if len(ev.Scores) != 4 {
			t.Errorf("got %d scores, want 4", len(ev.Scores))
		}
		for i, s := range ev.Scores {
			if s.ClassID != i {
				t.Errorf("score %d has class %d, want ascending order", i, s.ClassID)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no detection event published")
	}

	latest, ok := o.Latest()
	if !ok {
		t.Fatal("Latest() empty after a classified frame")
	}
	if latest.Top.ClassID != 1 {
		t.Errorf("latest top class = %d, want 1", latest.Top.ClassID)
	}
}

func TestConsumeBelowThresholdStaysLocal(t *testing.T) {
	classifier := &fakeClassifier{
		input: infer.InputSpec{Width: 4, Height: 4, Channels: 3, Type: infer.TypeUInt8},
		detections: []infer.Detection{
			{ClassID: 0, Confidence: 0.1},
			{ClassID: 1, Confidence: 0.3},
		},
	}
	bus := events.New()
	received := make(chan events.DetectionEvent, 1)
	unsub := bus.Subscribe(func(e events.DetectionEvent) {
		received <- e
	})
	defer unsub()

	o := New(classifier, nil, 0.5, bus, testLogger())
	o.Consume(testFrame(4, 4))

	select {
	case <-received:
		t.Fatal("below-threshold detection must not be published")
	case <-time.After(20 * time.Millisecond):
	}

	// The result is still observable through Latest.
	latest, ok := o.Latest()
	if !ok {
		t.Fatal("Latest() empty, below-threshold results should still be recorded")
	}
	if latest.Top.ClassID != 1 {
		t.Errorf("latest top class = %d, want 1", latest.Top.ClassID)
	}
}

func TestConsumeEmptyDetectionsDropsCycle(t *testing.T) {
	classifier := &fakeClassifier{
		input: infer.InputSpec{Width: 4, Height: 4, Channels: 3, Type: infer.TypeUInt8},
	}
	bus := events.New()
	dropped := make(chan events.CycleDroppedEvent, 1)
	unsub := bus.Subscribe(func(e events.CycleDroppedEvent) {
		dropped <- e
	})
	defer unsub()

	o := New(classifier, nil, 0.0, bus, testLogger())
	o.Consume(testFrame(4, 4))

	select {
	case ev := <-dropped:
		if ev.Stage != "inference" {
			t.Errorf("drop stage = %q, want inference", ev.Stage)
		}
	case <-time.After(time.Second):
		t.Fatal("no cycle dropped event published")
	}

	if _, ok := o.Latest(); ok {
		t.Error("Latest() must stay empty when inference produced nothing")
	}
}

func TestConsumeResizesToModelInput(t *testing.T) {
	classifier := &fakeClassifier{
		input: infer.InputSpec{Width: 8, Height: 8, Channels: 3, Type: infer.TypeUInt8},
		detections: []infer.Detection{
			{ClassID: 0, Confidence: 1},
		},
	}
	o := New(classifier, nil, 0.0, nil, testLogger())

	// Uniform gray survives resampling exactly.
	frame := testFrame(16, 16)
	for i := range frame.Pix {
		frame.Pix[i] = 120
	}
	o.Consume(frame)

	if len(classifier.lastImage) != 8*8*3 {
		t.Fatalf("model received %d bytes, want %d", len(classifier.lastImage), 8*8*3)
	}
	for i, b := range classifier.lastImage {
		if b != 120 {
			t.Fatalf("byte %d = %d, want 120", i, b)
		}
	}

	latest, _ := o.Latest()
	if latest.FrameWidth != 16 || latest.FrameHeight != 16 {
		t.Errorf("result frame size = %dx%d, want source 16x16", latest.FrameWidth, latest.FrameHeight)
	}
}

func TestConsumePassthroughWhenSizeMatches(t *testing.T) {
	classifier := &fakeClassifier{
		input: infer.InputSpec{Width: 4, Height: 4, Channels: 3, Type: infer.TypeUInt8},
		detections: []infer.Detection{
			{ClassID: 0, Confidence: 1},
		},
	}
	o := New(classifier, nil, 0.0, nil, testLogger())

	frame := testFrame(4, 4)
	for i := range frame.Pix {
		frame.Pix[i] = byte(i)
	}
	o.Consume(frame)

	for i := range frame.Pix {
		if classifier.lastImage[i] != byte(i) {
			t.Fatalf("byte %d altered by passthrough", i)
		}
	}
}

func TestArgmaxTieGoesToLowestClass(t *testing.T) {
	classifier := &fakeClassifier{
		input: infer.InputSpec{Width: 4, Height: 4, Channels: 3, Type: infer.TypeUInt8},
		detections: []infer.Detection{
			{ClassID: 0, Confidence: 0.4},
			{ClassID: 1, Confidence: 0.9},
			{ClassID: 2, Confidence: 0.9},
		},
	}
	o := New(classifier, nil, 0.0, nil, testLogger())
	o.Consume(testFrame(4, 4))

	latest, _ := o.Latest()
	if latest.Top.ClassID != 1 {
		t.Errorf("tie resolved to class %d, want 1 (lowest)", latest.Top.ClassID)
	}
}
