//go:build linux

package v4l2

import "errors"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// PixFormat describes a negotiated capture format. SetFormat submits the
// requested values and returns the values the driver actually selected,
// which may differ.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32 // row stride in bytes for the first plane
	SizeImage    uint32 // total buffer size the driver expects
}

// DequeuedBuffer describes one completed capture buffer returned by
// DequeueBuffer.
type DequeuedBuffer struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
	Sequence  uint32
}

// Failed reports whether the driver flagged this capture cycle as bad
// (transfer error, corrupt data). The buffer must still be requeued.
func (b DequeuedBuffer) Failed() bool {
	return b.Flags&V4L2_BUF_FLAG_ERROR != 0
}

// ErrTimeout is returned by DequeueBuffer when no buffer completed within
// the poll deadline. It is not an error condition; callers typically check
// a stop flag and retry.
var ErrTimeout = errors.New("v4l2: dequeue timed out")

// Capability flags.
const (
	V4L2_CAP_VIDEO_CAPTURE = 0x00000001
	V4L2_CAP_STREAMING     = 0x04000000
	V4L2_CAP_DEVICE_CAPS   = 0x80000000
)

// Format flags.
const (
	V4L2_FMT_FLAG_EMULATED = 0x0002
)

// Common pixel formats (fourcc codes).
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtJPEG  = 0x4745504A // 'JPEG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtNV12  = 0x3231564E // 'NV12'
	PixFmtRGB24 = 0x33424752 // 'RGB3'
)

// FourCC renders a pixel format code as its four-character tag.
func FourCC(pixelFormat uint32) string {
	return string([]byte{
		byte(pixelFormat),
		byte(pixelFormat >> 8),
		byte(pixelFormat >> 16),
		byte(pixelFormat >> 24),
	})
}

// Buffer and streaming constants.
const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_FIELD_NONE             = 1
	V4L2_MEMORY_MMAP            = 1
	V4L2_BUF_FLAG_ERROR         = 0x00000040
)

// Frame size types.
const (
	V4L2_FRMSIZE_TYPE_DISCRETE   = 1
	V4L2_FRMSIZE_TYPE_CONTINUOUS = 2
	V4L2_FRMSIZE_TYPE_STEPWISE   = 3
)

// Frame interval types.
const (
	V4L2_FRMIVAL_TYPE_DISCRETE = 1
)
