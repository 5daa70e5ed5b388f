// Package quantis drives Quantis QRNG devices through the character device
// nodes their kernel driver exposes.
package quantis

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"

	"github.com/ArowuTest/qrng-bridge/internal/entropy"
)

// MaxReadSize is the largest single read the device accepts.
const MaxReadSize = entropy.DefaultMaxRequestSize

// Driver implements entropy.Driver on top of device nodes. Handles returned
// by Open hold an exclusive advisory lock on the node until Close.
type Driver struct {
	paths map[entropy.Kind]string
}

var _ entropy.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithDevicePath overrides the printf path pattern used for kind.
func WithDevicePath(kind entropy.Kind, format string) Option {
	return func(d *Driver) { d.paths[kind] = format }
}

// New returns a Driver using /dev/qrandom<N> for PCIe devices and
// /dev/qrandom_usb<N> for USB devices unless overridden.
func New(opts ...Option) *Driver {
	d := &Driver{paths: map[entropy.Kind]string{
		entropy.KindPCIe: entropy.DefaultPathFormat(entropy.KindPCIe),
		entropy.KindUSB:  entropy.DefaultPathFormat(entropy.KindUSB),
	}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type handle struct {
	file *os.File
	lock *flock.Flock
}

func (d *Driver) path(kind entropy.Kind, index int) (string, error) {
	format, ok := d.paths[kind]
	if !ok {
		return "", &DriverError{Op: "open", Code: ErrorNoModule}
	}
	if index < 0 {
		return "", &DriverError{Op: "open", Code: ErrorInvalidDeviceNumber}
	}
	return fmt.Sprintf(format, index), nil
}

func statDevice(op, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &DriverError{Op: op, Code: ErrorNoSuchDevice, Err: err}
		}
		return &DriverError{Op: op, Code: ErrorIO, Err: err}
	}
	return nil
}

// Open acquires an exclusive handle on the device. A device already held by
// another handle reports ErrorDeviceBusy.
func (d *Driver) Open(kind entropy.Kind, index int) (entropy.Handle, error) {
	path, err := d.path(kind, index)
	if err != nil {
		return nil, err
	}
	// flock creates missing files, so existence is checked first.
	if err := statDevice("open", path); err != nil {
		return nil, err
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, &DriverError{Op: "open", Code: ErrorIO, Err: err}
	}
	if !locked {
		return nil, &DriverError{Op: "open", Code: ErrorDeviceBusy}
	}

	f, err := os.Open(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, &DriverError{Op: "open", Code: ErrorIO, Err: err}
	}
	return &handle{file: f, lock: lock}, nil
}

func readFull(op string, r io.Reader, p []byte) (int, error) {
	if len(p) > MaxReadSize {
		return 0, &DriverError{Op: op, Code: ErrorInvalidReadSize}
	}
	n, err := io.ReadFull(r, p)
	if err != nil {
		return n, &DriverError{Op: op, Code: ErrorIO, Err: err}
	}
	return n, nil
}

// ReadHandled reads len(p) bytes through an open handle.
func (d *Driver) ReadHandled(h entropy.Handle, p []byte) (int, error) {
	hd, ok := h.(*handle)
	if !ok || hd == nil || hd.file == nil {
		return 0, &DriverError{Op: "read", Code: ErrorInvalidParameter}
	}
	return readFull("read", hd.file, p)
}

// ReadDirect opens the device, reads len(p) bytes and closes it again
// without taking the handle lock.
func (d *Driver) ReadDirect(kind entropy.Kind, index int, p []byte) (int, error) {
	path, err := d.path(kind, index)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, &DriverError{Op: "read", Code: ErrorNoSuchDevice, Err: err}
		}
		return 0, &DriverError{Op: "read", Code: ErrorIO, Err: err}
	}
	defer f.Close()

	return readFull("read", f, p)
}

// Close releases the handle and its lock. Closing twice is harmless.
func (d *Driver) Close(h entropy.Handle) error {
	hd, ok := h.(*handle)
	if !ok || hd == nil {
		return &DriverError{Op: "close", Code: ErrorInvalidParameter}
	}
	var result *multierror.Error
	if hd.file != nil {
		if err := hd.file.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		hd.file = nil
	}
	if hd.lock != nil {
		if err := hd.lock.Unlock(); err != nil {
			result = multierror.Append(result, err)
		}
		hd.lock = nil
	}
	if err := result.ErrorOrNil(); err != nil {
		return &DriverError{Op: "close", Code: ErrorIO, Err: err}
	}
	return nil
}
