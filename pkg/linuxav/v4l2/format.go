//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"
)

// GetFormats returns all supported pixel formats for a device.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2_fmtdesc{
			index: i,
			typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		}

		if ioctlErr := ioctl(fd, VIDIOC_ENUM_FMT, unsafe.Pointer(&fmtdesc)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, ioctlErr)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&V4L2_FMT_FLAG_EMULATED != 0,
		})
	}

	return formats, nil
}

// GetResolutions returns all supported discrete resolutions for a device
// and pixel format.
func GetResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2_frmsizeenum{
			index:        i,
			pixel_format: pixelFormat,
		}

		if ioctlErr := ioctl(fd, VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(&frmsize)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, ioctlErr)
		}

		// Only discrete sizes are reported; stepwise devices accept arbitrary
		// sizes and are negotiated via SetFormat directly.
		if frmsize.typ != V4L2_FRMSIZE_TYPE_DISCRETE {
			break
		}

		resolutions = append(resolutions, Resolution{
			Width:  frmsize.discrete.width,
			Height: frmsize.discrete.height,
		})
	}

	return resolutions, nil
}

// GetFramerates returns all supported discrete framerates for a device,
// pixel format, and resolution.
func GetFramerates(devicePath string, pixelFormat, width, height uint32) ([]Framerate, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFd(fd)

	var framerates []Framerate

	for i := uint32(0); ; i++ {
		frmival := v4l2_frmivalenum{
			index:        i,
			pixel_format: pixelFormat,
			width:        width,
			height:       height,
		}

		if ioctlErr := ioctl(fd, VIDIOC_ENUM_FRAMEINTERVALS, unsafe.Pointer(&frmival)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, ioctlErr)
		}

		if frmival.typ != V4L2_FRMIVAL_TYPE_DISCRETE {
			break
		}

		framerates = append(framerates, Framerate{
			Numerator:   frmival.discrete.numerator,
			Denominator: frmival.discrete.denominator,
		})
	}

	return framerates, nil
}
