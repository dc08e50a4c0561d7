//go:build linux

package gpio

import "golang.org/x/sys/unix"

func lockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}

func unlockMemory() error {
	return unix.Munlockall()
}
