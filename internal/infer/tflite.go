//go:build tflite

package infer

import (
	"fmt"

	"github.com/mattn/go-tflite"
)

// TFLiteEngine runs a flatbuffer model through the TensorFlow Lite C
// API. Requires the tflite build tag and the TFLite C library at link
// time.
type TFLiteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	input       InputSpec
}

// NewTFLiteEngine loads a model file and allocates its tensors.
func NewTFLiteEngine(modelPath string, threads int) (Engine, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to load model from %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to create interpreter for %s", modelPath)
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to allocate tensors for %s", modelPath)
	}

	input := interpreter.GetInputTensor(0)
	if input.NumDims() != 4 || input.Dim(0) != 1 {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("model input must be NHWC with batch 1, got %d dims", input.NumDims())
	}

	spec := InputSpec{
		Height:   input.Dim(1),
		Width:    input.Dim(2),
		Channels: input.Dim(3),
		Type:     elemTypeOf(input.Type()),
	}
	if spec.Type == TypeUnsupported {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("unsupported input tensor type %v", input.Type())
	}

	return &TFLiteEngine{
		model:       model,
		options:     options,
		interpreter: interpreter,
		input:       spec,
	}, nil
}

func elemTypeOf(t tflite.TensorType) ElemType {
	switch t {
	case tflite.UInt8:
		return TypeUInt8
	case tflite.Float32:
		return TypeFloat32
	default:
		return TypeUnsupported
	}
}

func (e *TFLiteEngine) Input() InputSpec {
	return e.input
}

func (e *TFLiteEngine) SetInputUInt8(data []byte) error {
	dst := e.interpreter.GetInputTensor(0).UInt8s()
	if len(dst) < len(data) {
		return fmt.Errorf("input tensor holds %d values, got %d", len(dst), len(data))
	}
	copy(dst, data)
	return nil
}

func (e *TFLiteEngine) SetInputFloat32(data []float32) error {
	dst := e.interpreter.GetInputTensor(0).Float32s()
	if len(dst) < len(data) {
		return fmt.Errorf("input tensor holds %d values, got %d", len(dst), len(data))
	}
	copy(dst, data)
	return nil
}

func (e *TFLiteEngine) Invoke() error {
	if status := e.interpreter.Invoke(); status != tflite.OK {
		return fmt.Errorf("invoke returned status %d", status)
	}
	return nil
}

func (e *TFLiteEngine) OutputDims() []int {
	out := e.interpreter.GetOutputTensor(0)
	dims := make([]int, out.NumDims())
	for i := range dims {
		dims[i] = out.Dim(i)
	}
	return dims
}

func (e *TFLiteEngine) OutputType() ElemType {
	return elemTypeOf(e.interpreter.GetOutputTensor(0).Type())
}

func (e *TFLiteEngine) OutputUInt8() []byte {
	return e.interpreter.GetOutputTensor(0).UInt8s()
}

func (e *TFLiteEngine) OutputFloat32() []float32 {
	return e.interpreter.GetOutputTensor(0).Float32s()
}

func (e *TFLiteEngine) OutputQuantization() Quantization {
	params := e.interpreter.GetOutputTensor(0).QuantizationParams()
	return Quantization{
		Scale:     float32(params.Scale),
		ZeroPoint: params.ZeroPoint,
	}
}

func (e *TFLiteEngine) Close() error {
	e.interpreter.Delete()
	e.options.Delete()
	e.model.Delete()
	return nil
}
