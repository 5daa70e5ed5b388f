//go:build linux

package entropy

import "golang.org/x/sys/unix"

// Read issues exactly one getrandom(2) call. A short count is returned as is
// so the caller can reject it.
func (systemReader) Read(p []byte) (int, error) {
	return unix.Getrandom(p, 0)
}
