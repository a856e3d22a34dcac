package camera

import (
	"errors"
	"log/slog"
	"time"

	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/internal/metrics"
	"github.com/edgevision/perceptd/internal/pixel"
)

// Source describes the negotiated capture stream. Fixed once the
// session is initialized.
type Source struct {
	PixelFormat uint32 // fourcc
	Width       int
	Height      int
	Stride      int
}

// Normalizer converts a raw source frame into a packed RGB frame.
type Normalizer interface {
	Normalize(src pixel.SourceFrame) (*pixel.Frame, error)
}

// FrameSink consumes normalized frames. It runs synchronously on the
// capture loop; the buffer it came from is already unmapped, so the
// frame is safe to hold.
type FrameSink interface {
	Consume(frame *pixel.Frame)
}

// Dispatcher is the completion handler for the live pipeline. For each
// completed cycle it maps the buffer, copies the pixels out through
// normalization, unmaps, and feeds the frame to the sink. The request
// is requeued exactly once on every path, including drops.
type Dispatcher struct {
	source     Source
	normalizer Normalizer
	sink       FrameSink
	eventBus   *events.Bus
	logger     *slog.Logger

	// mapBuffer is overridable for tests.
	mapBuffer func(buf HardwareBuffer) (*Mapping, error)
}

// NewDispatcher creates a dispatcher for the given negotiated source.
func NewDispatcher(source Source, normalizer Normalizer, sink FrameSink, eventBus *events.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:     source,
		normalizer: normalizer,
		sink:       sink,
		eventBus:   eventBus,
		logger:     logger,
		mapBuffer:  MapBuffer,
	}
}

// HandleCompletion processes one capture cycle synchronously.
func (d *Dispatcher) HandleCompletion(c Completion, rq Requeuer) {
	defer func() {
		if err := rq.Requeue(c.Request); err != nil {
			d.logger.Error("failed to requeue buffer",
				"buffer", c.Request.Buffer.Index, "error", err)
			return
		}
		metrics.BufferRequeued()
	}()

	if c.Status == StatusError {
		d.dropCycle("capture", "driver_error", nil)
		return
	}

	frame, err := d.extractFrame(c)
	if err != nil {
		return
	}
	metrics.FrameCompleted()

	d.sink.Consume(frame)
}

// extractFrame maps the completed buffer, normalizes its pixels into a
// process-owned frame, and unmaps before returning. The mapping never
// escapes this function.
func (d *Dispatcher) extractFrame(c Completion) (*pixel.Frame, error) {
	mapping, err := d.mapBuffer(c.Request.Buffer)
	if err != nil {
		d.dropCycle("map", "map_failed", err)
		return nil, err
	}
	defer mapping.Close()

	data := mapping.Data()
	if c.BytesUsed > 0 && c.BytesUsed < len(data) {
		data = data[:c.BytesUsed]
	}

	frame, err := d.normalizer.Normalize(pixel.SourceFrame{
		PixelFormat: d.source.PixelFormat,
		Width:       d.source.Width,
		Height:      d.source.Height,
		Stride:      d.source.Stride,
		Data:        data,
	})
	if err != nil {
		reason := "decode_failed"
		if errors.Is(err, pixel.ErrUnsupportedFormat) {
			reason = "unsupported_format"
		}
		d.dropCycle("normalize", reason, err)
		return nil, err
	}

	return frame, nil
}

func (d *Dispatcher) dropCycle(stage, reason string, err error) {
	metrics.CycleDropped(stage, reason)

	errText := ""
	if err != nil {
		errText = err.Error()
		d.logger.Warn("dropped capture cycle", "stage", stage, "reason", reason, "error", err)
	} else {
		d.logger.Warn("dropped capture cycle", "stage", stage, "reason", reason)
	}

	if d.eventBus != nil {
		d.eventBus.Publish(events.CycleDroppedEvent{
			Stage:     stage,
			Reason:    reason,
			Error:     errText,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
