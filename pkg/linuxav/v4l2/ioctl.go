//go:build linux

package v4l2

import (
	"syscall"
	"unsafe"
)

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno == syscall.EINTR {
			continue
		}
		return errno
	}
}

func open(path string) (int, error) {
	return syscall.Open(path, syscall.O_RDWR|syscall.O_NONBLOCK, 0)
}

func closeFd(fd int) error {
	return syscall.Close(fd)
}

// waitReadable blocks until fd has data to read or the timeout expires.
// Returns false on timeout.
func waitReadable(fd int, timeoutMs int) (bool, error) {
	for {
		var fds syscall.FdSet
		fdsetAdd(&fds, fd)
		n, err := syscall.Select(fd+1, &fds, nil, nil, makeTimeval(timeoutMs))
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return false, err
		}
		return n > 0, nil
	}
}
