// Package pixel converts raw capture buffers into packed interleaved
// RGB frames. Two source encodings are supported: semi-planar YUV (NV12)
// and JPEG-family compressed data (MJPEG). Anything else is rejected
// with ErrUnsupportedFormat so the caller can drop the cycle.
package pixel

import (
	"errors"
	"fmt"

	"github.com/edgevision/perceptd/pkg/linuxav/v4l2"
)

// Channels is the channel count of every normalized frame.
const Channels = 3

// ErrUnsupportedFormat indicates the source pixel format has no
// normalization path. Distinct from ErrDecode: the data was never
// inspected.
var ErrUnsupportedFormat = errors.New("pixel: unsupported source format")

// ErrDecode indicates the source data could not be decoded (truncated
// buffer, corrupt compressed payload).
var ErrDecode = errors.New("pixel: decode failed")

// SourceFrame is a view into a mapped hardware buffer for one capture
// cycle. Data is only valid until the buffer is unmapped; normalization
// must copy everything it needs.
type SourceFrame struct {
	PixelFormat uint32 // fourcc
	Width       int
	Height      int
	Stride      int // row stride in bytes of the luma plane; 0 means Width
	Data        []byte
}

// Frame is a packed interleaved RGB image owned by the process. Pix is a
// fresh allocation, never an alias into kernel-shared memory.
type Frame struct {
	Width  int
	Height int
	Pix    []byte // len = Width * Height * Channels
}

// Normalizer converts source frames into packed RGB frames.
type Normalizer struct{}

// Normalize converts one source frame. Returns ErrUnsupportedFormat for
// encodings with no conversion path and an error wrapping ErrDecode for
// malformed data. Both are per-cycle failures, not terminal conditions.
func (Normalizer) Normalize(src SourceFrame) (*Frame, error) {
	switch src.PixelFormat {
	case v4l2.PixFmtNV12:
		return nv12ToRGB(src)
	case v4l2.PixFmtMJPEG, v4l2.PixFmtJPEG:
		return jpegToRGB(src.Data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, v4l2.FourCC(src.PixelFormat))
	}
}
