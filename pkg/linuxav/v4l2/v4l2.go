//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format queries, and memory-mapped streaming I/O.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
// Query supported formats and resolutions:
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    resolutions, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	}
//
// # Streaming
//
// Open a device, negotiate a format, and stream with kernel-shared
// memory-mapped buffers:
//
//	dev, _ := v4l2.Open("/dev/video0")
//	actual, _ := dev.SetFormat(v4l2.PixFormat{Width: 640, Height: 480, PixelFormat: v4l2.PixFmtNV12})
//	count, _ := dev.RequestBuffers(4) // driver may adjust the count
//	for i := uint32(0); i < count; i++ {
//	    offset, length, _ := dev.QueryBuffer(i)
//	    _ = dev.QueueBuffer(i)
//	}
//	_ = dev.StreamOn()
//	for {
//	    buf, err := dev.DequeueBuffer(500 * time.Millisecond)
//	    if errors.Is(err, v4l2.ErrTimeout) {
//	        continue // no frame yet, caller may check a stop flag
//	    }
//	    // mmap dev.FD() at the buffer's offset, consume, then requeue:
//	    _ = dev.QueueBuffer(buf.Index)
//	}
//
// Buffers requested with RequestBuffers stay owned by the kernel; the
// process only maps them. The driver may raise the buffer count beyond
// the request, so callers must use the returned count, never the hint.
package v4l2
