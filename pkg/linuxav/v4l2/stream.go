//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"time"
	"unsafe"
)

// Device is an open V4L2 capture device configured for memory-mapped
// streaming I/O. It is not safe for concurrent use; the capture read
// loop is expected to be the only caller once streaming starts.
type Device struct {
	fd   int
	path string
}

// Open opens a V4L2 device node and verifies it supports memory-mapped
// video capture.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	cap := v4l2_capability{}
	if err := ioctl(fd, VIDIOC_QUERYCAP, unsafe.Pointer(&cap)); err != nil {
		closeFd(fd)
		return nil, fmt.Errorf("failed to query capabilities of %s: %w", path, err)
	}

	caps := cap.capabilities
	if caps&V4L2_CAP_DEVICE_CAPS != 0 {
		caps = cap.device_caps
	}
	if caps&V4L2_CAP_VIDEO_CAPTURE == 0 {
		closeFd(fd)
		return nil, fmt.Errorf("%s is not a video capture device", path)
	}
	if caps&V4L2_CAP_STREAMING == 0 {
		closeFd(fd)
		return nil, fmt.Errorf("%s does not support streaming I/O", path)
	}

	return &Device{fd: fd, path: path}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// FD returns the device file descriptor. Buffer mappings use this
// descriptor together with the per-buffer offset from QueryBuffer.
func (d *Device) FD() int {
	return d.fd
}

// SetFormat submits the requested capture format and returns the format
// the driver actually configured. Drivers are free to adjust any field,
// so callers must check the returned values rather than assume the
// request was honored.
func (d *Device) SetFormat(req PixFormat) (PixFormat, error) {
	format := v4l2_format{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
		pix: v4l2_pix_format{
			width:       req.Width,
			height:      req.Height,
			pixelformat: req.PixelFormat,
			field:       V4L2_FIELD_NONE,
		},
	}

	if err := ioctl(d.fd, VIDIOC_S_FMT, unsafe.Pointer(&format)); err != nil {
		return PixFormat{}, fmt.Errorf("failed to set format on %s: %w", d.path, err)
	}

	return PixFormat{
		Width:        format.pix.width,
		Height:       format.pix.height,
		PixelFormat:  format.pix.pixelformat,
		BytesPerLine: format.pix.bytesperline,
		SizeImage:    format.pix.sizeimage,
	}, nil
}

// RequestBuffers asks the driver to allocate count memory-mapped buffers
// and returns the number actually allocated, which may be higher or lower
// than requested.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2_requestbuffers{
		count:  count,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}

	if err := ioctl(d.fd, VIDIOC_REQBUFS, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("failed to request %d buffers on %s: %w", count, d.path, err)
	}
	if req.count == 0 {
		return 0, fmt.Errorf("driver allocated no buffers on %s", d.path)
	}

	return req.count, nil
}

// ReleaseBuffers frees the driver-side buffer allocation. Must not be
// called while any buffer is still mapped.
func (d *Device) ReleaseBuffers() error {
	req := v4l2_requestbuffers{
		count:  0,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := ioctl(d.fd, VIDIOC_REQBUFS, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("failed to release buffers on %s: %w", d.path, err)
	}
	return nil
}

// QueryBuffer returns the mmap offset and byte length of the buffer at
// the given index.
func (d *Device) QueryBuffer(index uint32) (offset, length uint32, err error) {
	buf := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}

	if err := ioctl(d.fd, VIDIOC_QUERYBUF, unsafe.Pointer(&buf)); err != nil {
		return 0, 0, fmt.Errorf("failed to query buffer %d on %s: %w", index, d.path, err)
	}

	return buf.offset, buf.length, nil
}

// QueueBuffer hands the buffer at the given index back to the driver for
// the next capture cycle.
func (d *Device) QueueBuffer(index uint32) error {
	buf := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}

	if err := ioctl(d.fd, VIDIOC_QBUF, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("failed to queue buffer %d on %s: %w", index, d.path, err)
	}
	return nil
}

// DequeueBuffer waits up to timeout for a completed capture buffer.
// Returns ErrTimeout if no buffer completed in time so the caller can
// check a stop flag and retry.
func (d *Device) DequeueBuffer(timeout time.Duration) (DequeuedBuffer, error) {
	ready, err := waitReadable(d.fd, int(timeout.Milliseconds()))
	if err != nil {
		return DequeuedBuffer{}, fmt.Errorf("failed to wait on %s: %w", d.path, err)
	}
	if !ready {
		return DequeuedBuffer{}, ErrTimeout
	}

	buf := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}

	if err := ioctl(d.fd, VIDIOC_DQBUF, unsafe.Pointer(&buf)); err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return DequeuedBuffer{}, ErrTimeout
		}
		return DequeuedBuffer{}, fmt.Errorf("failed to dequeue buffer on %s: %w", d.path, err)
	}

	return DequeuedBuffer{
		Index:     buf.index,
		BytesUsed: buf.bytesused,
		Flags:     buf.flags,
		Sequence:  buf.sequence,
	}, nil
}

// StreamOn starts capture streaming.
func (d *Device) StreamOn() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	if err := ioctl(d.fd, VIDIOC_STREAMON, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("failed to start streaming on %s: %w", d.path, err)
	}
	return nil
}

// StreamOff stops capture streaming. All queued buffers are returned to
// the driver's free pool; none remain dequeued.
func (d *Device) StreamOff() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	if err := ioctl(d.fd, VIDIOC_STREAMOFF, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("failed to stop streaming on %s: %w", d.path, err)
	}
	return nil
}

// Close closes the device node.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := closeFd(d.fd)
	d.fd = -1
	return err
}
