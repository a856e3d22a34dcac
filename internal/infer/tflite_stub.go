//go:build !tflite

package infer

// NewTFLiteEngine requires the tflite build tag. Without it the daemon
// still builds and runs everything except inference, which keeps CI and
// cross-compilation simple on hosts without the TFLite C library.
func NewTFLiteEngine(modelPath string, threads int) (Engine, error) {
	return nil, ErrNotBuilt
}
