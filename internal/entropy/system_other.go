//go:build !linux

package entropy

import "crypto/rand"

func (systemReader) Read(p []byte) (int, error) {
	return rand.Read(p)
}
