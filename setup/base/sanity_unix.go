//go:build linux || darwin || netbsd || freebsd || openbsd || solaris || dragonfly || aix
// +build linux darwin netbsd freebsd openbsd solaris dragonfly aix

package base

import (
	"syscall"

	"github.com/sirupsen/logrus"
)

func platformSanityChecks() {
	// SQLite keeps a file descriptor per connection and Postgres pools can be
	// large. Complain at startup if we think the number of file descriptors
	// is too low.
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err == nil && rLimit.Cur < 4096 {
		logrus.Warnf("IMPORTANT: Process file descriptor limit is currently %d, it is recommended to raise the limit to at least 4096", rLimit.Cur)
	}
}
