package infer

import (
	"fmt"
	"log/slog"
)

// InputNorm selects how byte pixels are presented to a float32 input
// tensor.
type InputNorm string

const (
	// NormNone widens each byte to its exact numeric value, 0..255.
	NormNone InputNorm = "none"
	// NormUnit scales each byte into 0..1.
	NormUnit InputNorm = "unit"
)

// ParseInputNorm validates a configured normalization mode.
func ParseInputNorm(s string) (InputNorm, error) {
	switch InputNorm(s) {
	case NormNone, NormUnit:
		return InputNorm(s), nil
	default:
		return "", fmt.Errorf("unknown input normalization %q", s)
	}
}

// Adapter feeds packed RGB images through an engine and dequantizes the
// classification output. Inference failures are per-frame conditions:
// the adapter logs them and returns an empty detection list so the
// pipeline keeps streaming.
type Adapter struct {
	engine Engine
	norm   InputNorm
	logger *slog.Logger

	// scratch buffer for float widening, reused across frames.
	floatIn []float32
}

// NewAdapter wraps a loaded engine.
func NewAdapter(engine Engine, norm InputNorm, logger *slog.Logger) *Adapter {
	return &Adapter{engine: engine, norm: norm, logger: logger}
}

// Input exposes the model's input requirements so the pipeline can
// resize frames to fit.
func (a *Adapter) Input() InputSpec {
	return a.engine.Input()
}

// RunInference classifies one packed RGB image. The returned detections
// hold every class in ascending class ID order with dequantized
// confidences. On any failure the list is empty.
func (a *Adapter) RunInference(image []byte) []Detection {
	spec := a.engine.Input()
	n := spec.PixelCount()
	if len(image) < n {
		a.logger.Error("input image too small for model",
			"got", len(image), "need", n)
		return nil
	}

	switch spec.Type {
	case TypeUInt8:
		if err := a.engine.SetInputUInt8(image[:n]); err != nil {
			a.logger.Error("failed to set input tensor", "error", err)
			return nil
		}
	case TypeFloat32:
		if cap(a.floatIn) < n {
			a.floatIn = make([]float32, n)
		}
		in := a.floatIn[:n]
		if a.norm == NormUnit {
			for i := 0; i < n; i++ {
				in[i] = float32(image[i]) / 255
			}
		} else {
			for i := 0; i < n; i++ {
				in[i] = float32(image[i])
			}
		}
		if err := a.engine.SetInputFloat32(in); err != nil {
			a.logger.Error("failed to set input tensor", "error", err)
			return nil
		}
	default:
		a.logger.Error("unsupported input tensor type", "type", spec.Type)
		return nil
	}

	if err := a.engine.Invoke(); err != nil {
		a.logger.Error("model invocation failed", "error", err)
		return nil
	}

	return a.collectOutput()
}

// collectOutput validates the output shape and dequantizes scores.
func (a *Adapter) collectOutput() []Detection {
	dims := a.engine.OutputDims()
	if len(dims) != 2 || dims[0] != 1 {
		a.logger.Error("unexpected output tensor shape", "dims", dims)
		return nil
	}
	numClasses := dims[1]

	detections := make([]Detection, 0, numClasses)
	switch a.engine.OutputType() {
	case TypeUInt8:
		q := a.engine.OutputQuantization()
		raw := a.engine.OutputUInt8()
		if len(raw) < numClasses {
			a.logger.Error("output tensor shorter than declared shape",
				"got", len(raw), "want", numClasses)
			return nil
		}
		for classID := 0; classID < numClasses; classID++ {
			confidence := q.Scale * float32(int(raw[classID])-q.ZeroPoint)
			detections = append(detections, Detection{ClassID: classID, Confidence: confidence})
		}
	case TypeFloat32:
		raw := a.engine.OutputFloat32()
		if len(raw) < numClasses {
			a.logger.Error("output tensor shorter than declared shape",
				"got", len(raw), "want", numClasses)
			return nil
		}
		for classID := 0; classID < numClasses; classID++ {
			detections = append(detections, Detection{ClassID: classID, Confidence: raw[classID]})
		}
	default:
		a.logger.Error("unsupported output tensor type")
		return nil
	}

	return detections
}

// Close releases the underlying engine.
func (a *Adapter) Close() error {
	return a.engine.Close()
}
