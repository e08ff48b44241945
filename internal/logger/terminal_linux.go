//go:build linux

package logger

import (
	"syscall"
	"unsafe"
)

const ioctlGetTermios = 0x5401 // TCGETS

// isTerminal reports whether fd is attached to a terminal, which decides
// whether log lines get ANSI colors.
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, errno := syscall.Syscall6(
		syscall.SYS_IOCTL, fd, ioctlGetTermios,
		uintptr(unsafe.Pointer(&termios)), 0, 0, 0,
	)
	return errno == 0
}
