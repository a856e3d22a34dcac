// Package pipeline connects normalized frames to the model and turns
// raw class scores into detections for downstream consumers.
package pipeline

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/internal/infer"
	"github.com/edgevision/perceptd/internal/metrics"
	"github.com/edgevision/perceptd/internal/pixel"
)

// Classifier is the inference seam. *infer.Adapter satisfies it.
type Classifier interface {
	Input() infer.InputSpec
	RunInference(image []byte) []infer.Detection
}

// Result is one classified frame.
type Result struct {
	Top         events.Score
	Scores      []events.Score
	FrameWidth  int
	FrameHeight int
	InferenceMS float64
	Timestamp   time.Time
}

// Orchestrator consumes frames from the capture dispatcher, resizes
// them to the model input, classifies, and publishes detections. It
// runs synchronously on the capture loop, so the buffer pool naturally
// throttles capture to inference speed.
type Orchestrator struct {
	classifier Classifier
	labels     []string
	eventBus   *events.Bus
	logger     *slog.Logger

	mu            sync.RWMutex
	minConfidence float32
	latest        *Result
}

// New creates an orchestrator. labels may be empty, in which case
// detections carry class IDs only.
func New(classifier Classifier, labels []string, minConfidence float32, eventBus *events.Bus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		classifier:    classifier,
		labels:        labels,
		minConfidence: minConfidence,
		eventBus:      eventBus,
		logger:        logger,
	}
}

// Consume classifies one frame. Implements the capture dispatcher's
// sink interface.
func (o *Orchestrator) Consume(frame *pixel.Frame) {
	spec := o.classifier.Input()
	input := resizeForModel(frame, spec.Width, spec.Height)

	start := time.Now()
	detections := o.classifier.RunInference(input)
	elapsed := time.Since(start)

	if len(detections) == 0 {
		metrics.CycleDropped("inference", "no_detections")
		if o.eventBus != nil {
			o.eventBus.Publish(events.CycleDroppedEvent{
				Stage:     "inference",
				Reason:    "no_detections",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}
		return
	}
	metrics.InferenceCompleted(elapsed.Seconds())

	result := o.buildResult(detections, frame, elapsed)

	o.mu.Lock()
	o.latest = &result
	threshold := o.minConfidence
	o.mu.Unlock()

	if result.Top.Confidence < threshold {
		o.logger.Debug("detection below confidence threshold",
			"class", result.Top.ClassID,
			"confidence", result.Top.Confidence)
		return
	}

	o.logger.Info("detection",
		"class", result.Top.ClassID,
		"label", result.Top.Label,
		"confidence", result.Top.Confidence,
		"inference_ms", result.InferenceMS)

	if o.eventBus != nil {
		o.eventBus.Publish(events.DetectionEvent{
			Top:         result.Top,
			Scores:      result.Scores,
			FrameWidth:  result.FrameWidth,
			FrameHeight: result.FrameHeight,
			InferenceMS: result.InferenceMS,
			Timestamp:   result.Timestamp.UTC().Format(time.RFC3339),
		})
	}
}

// buildResult labels the scores and picks the winning class. Ties go to
// the lowest class ID.
func (o *Orchestrator) buildResult(detections []infer.Detection, frame *pixel.Frame, elapsed time.Duration) Result {
	scores := make([]events.Score, len(detections))
	best := 0
	for i, d := range detections {
		scores[i] = events.Score{
			ClassID:    d.ClassID,
			Label:      o.label(d.ClassID),
			Confidence: d.Confidence,
		}
		if d.Confidence > detections[best].Confidence {
			best = i
		}
	}

	return Result{
		Top:         scores[best],
		Scores:      scores,
		FrameWidth:  frame.Width,
		FrameHeight: frame.Height,
		InferenceMS: float64(elapsed) / float64(time.Millisecond),
		Timestamp:   time.Now(),
	}
}

// SetMinConfidence updates the publish threshold. Called by the config
// watcher on reload.
func (o *Orchestrator) SetMinConfidence(v float32) {
	o.mu.Lock()
	o.minConfidence = v
	o.mu.Unlock()
}

// Latest returns the most recent classified result.
func (o *Orchestrator) Latest() (Result, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.latest == nil {
		return Result{}, false
	}
	return *o.latest, true
}

// Labels returns the loaded class labels.
func (o *Orchestrator) Labels() []string {
	return o.labels
}

func (o *Orchestrator) label(classID int) string {
	if classID >= 0 && classID < len(o.labels) {
		return o.labels[classID]
	}
	return ""
}

// resizeForModel scales a packed RGB frame to the model input size.
// Frames already at the right size pass through without copying.
func resizeForModel(frame *pixel.Frame, width, height int) []byte {
	if frame.Width == width && frame.Height == height {
		return frame.Pix
	}

	src := image.NewNRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		srcRow := frame.Pix[y*frame.Width*3:]
		dstRow := src.Pix[y*src.Stride:]
		for x := 0; x < frame.Width; x++ {
			dstRow[x*4+0] = srcRow[x*3+0]
			dstRow[x*4+1] = srcRow[x*3+1]
			dstRow[x*4+2] = srcRow[x*3+2]
			dstRow[x*4+3] = 0xff
		}
	}

	resized := imaging.Resize(src, width, height, imaging.Linear)

	out := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		srcRow := resized.Pix[y*resized.Stride:]
		dstRow := out[y*width*3:]
		for x := 0; x < width; x++ {
			dstRow[x*3+0] = srcRow[x*4+0]
			dstRow[x*3+1] = srcRow[x*4+1]
			dstRow[x*3+2] = srcRow[x*4+2]
		}
	}
	return out
}
