package entropy

// Handle is an open device handle. Its concrete type belongs to the Driver
// that returned it.
type Handle any

// Driver is the hardware QRNG driver. Reads report the number of bytes
// written into p; anything other than len(p) is treated as a failure by the
// Adapter.
type Driver interface {
	Open(kind Kind, index int) (Handle, error)
	ReadHandled(h Handle, p []byte) (int, error)
	ReadDirect(kind Kind, index int, p []byte) (int, error)
	Close(h Handle) error
}
