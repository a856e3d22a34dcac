// Package infer runs image classification through a quantized TFLite
// model. The Engine interface isolates the cgo-backed runtime so the
// rest of the pipeline, and the tests, never touch tensors directly.
package infer

import "errors"

// ErrNotBuilt is returned by NewTFLiteEngine when the binary was
// compiled without the tflite build tag.
var ErrNotBuilt = errors.New("infer: built without tflite support")

// ElemType is the element type of a model tensor. Only the two types
// quantized classification models actually use are supported.
type ElemType int

const (
	TypeUnsupported ElemType = iota
	TypeUInt8
	TypeFloat32
)

func (t ElemType) String() string {
	switch t {
	case TypeUInt8:
		return "uint8"
	case TypeFloat32:
		return "float32"
	default:
		return "unsupported"
	}
}

// Quantization maps raw quantized tensor values to real numbers:
// real = Scale * (raw - ZeroPoint).
type Quantization struct {
	Scale     float32
	ZeroPoint int
}

// InputSpec describes the model's input tensor in NHWC layout with a
// batch of one.
type InputSpec struct {
	Width    int
	Height   int
	Channels int
	Type     ElemType
}

// PixelCount returns the number of scalar elements in one input image.
func (s InputSpec) PixelCount() int {
	return s.Width * s.Height * s.Channels
}

// Detection is one class score from a classification pass.
type Detection struct {
	ClassID    int     `json:"class_id"`
	Confidence float32 `json:"confidence"`
}

// Engine is one loaded model instance. Implementations are not safe
// for concurrent use; the pipeline invokes from a single goroutine.
type Engine interface {
	// Input describes the input tensor. Fixed for the engine lifetime.
	Input() InputSpec

	// SetInputUInt8 copies packed bytes into a uint8 input tensor.
	SetInputUInt8(data []byte) error
	// SetInputFloat32 copies values into a float32 input tensor.
	SetInputFloat32(data []float32) error

	// Invoke runs the model on the current input tensor.
	Invoke() error

	// OutputDims returns the shape of output tensor 0.
	OutputDims() []int
	// OutputType returns the element type of output tensor 0.
	OutputType() ElemType
	// OutputUInt8 returns the raw quantized output values.
	OutputUInt8() []byte
	// OutputFloat32 returns the output values of a float model.
	OutputFloat32() []float32
	// OutputQuantization returns the declared dequantization parameters
	// of output tensor 0.
	OutputQuantization() Quantization

	// Close releases the model and interpreter.
	Close() error
}
