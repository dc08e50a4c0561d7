//go:build !linux

package gpio

func lockMemory() error {
	return nil
}

func unlockMemory() error {
	return nil
}
