// Package entropy normalises the QRNG hardware read paths and the OS entropy
// fallback to a single contract: fill exactly len(p) bytes or fail.
package entropy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

var (
	// ErrShortRead means a source produced fewer bytes than requested.
	ErrShortRead = errors.New("entropy: short read")

	// ErrDeviceUnavailable means the hardware could not be opened or read.
	ErrDeviceUnavailable = errors.New("entropy: device unavailable")
)

// Source identifies which origin filled a buffer.
type Source int

const (
	SourceNone Source = iota
	SourceHardware
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceHardware:
		return "hardware"
	case SourceFallback:
		return "fallback"
	default:
		return "none"
	}
}

type systemReader struct{}

// SystemReader reads from the operating system entropy syscall. Each Read is
// a single syscall.
var SystemReader io.Reader = systemReader{}

// hardwareReader is one of the three read strategies, fixed at construction.
type hardwareReader interface {
	read(p []byte) error
	String() string
}

// Adapter reads from the configured hardware strategy and falls back to OS
// entropy when the hardware fails.
type Adapter struct {
	cfg      Config
	hw       hardwareReader
	fallback io.Reader
	logger   hclog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithFallback replaces the OS entropy reader.
func WithFallback(r io.Reader) Option {
	return func(a *Adapter) { a.fallback = r }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l hclog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter validates cfg and binds the read strategy it names. driver may
// be nil only for StrategyDeviceFileRead.
func NewAdapter(cfg Config, driver Driver, opts ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("entropy: invalid configuration: %w", err)
	}

	a := &Adapter{
		cfg:      cfg,
		fallback: SystemReader,
		logger:   hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	switch cfg.ReadStrategy {
	case StrategyDirectRead, StrategyHandledRead:
		if driver == nil {
			return nil, fmt.Errorf("entropy: strategy %s requires a driver", cfg.ReadStrategy)
		}
		if cfg.ReadStrategy == StrategyDirectRead {
			a.hw = &directRead{driver: driver, kind: cfg.SourceKind, index: cfg.DeviceIndex}
		} else {
			a.hw = &handledRead{driver: driver, kind: cfg.SourceKind, index: cfg.DeviceIndex, logger: a.logger}
		}
	case StrategyDeviceFileRead:
		a.hw = &deviceFileRead{path: cfg.DevicePath()}
	}

	return a, nil
}

// Config returns the configuration the adapter was built with.
func (a *Adapter) Config() Config {
	return a.cfg
}

// Strategy names the bound hardware read strategy.
func (a *Adapter) Strategy() string {
	return a.hw.String()
}

// ReadHardware fills p from the hardware, or from OS entropy if the hardware
// fails. The error is non-nil only when the fallback also failed.
func (a *Adapter) ReadHardware(p []byte) (Source, error) {
	err := a.hw.read(p)
	if err == nil {
		return SourceHardware, nil
	}

	a.logger.Warn("hardware read failed, falling back to OS entropy",
		"strategy", a.hw.String(),
		"kind", a.cfg.SourceKind.String(),
		"index", a.cfg.DeviceIndex,
		"length", len(p),
		"error", err)

	if err := a.ReadFallback(p); err != nil {
		return SourceNone, err
	}
	return SourceFallback, nil
}

// ReadFallback fills p with one OS entropy read. It never pads or retries.
func (a *Adapter) ReadFallback(p []byte) error {
	n, err := a.fallback.Read(p)
	if err != nil {
		a.logger.Error("OS entropy read failed", "length", len(p), "read", n, "error", err)
		return fmt.Errorf("entropy: OS entropy read: %w", err)
	}
	if n != len(p) {
		a.logger.Error("OS entropy returned too few bytes", "length", len(p), "read", n)
		return fmt.Errorf("%w: OS entropy returned %d of %d bytes", ErrShortRead, n, len(p))
	}
	return nil
}

type directRead struct {
	driver Driver
	kind   Kind
	index  int
}

func (r *directRead) String() string { return StrategyDirectRead.String() }

func (r *directRead) read(p []byte) error {
	n, err := r.driver.ReadDirect(r.kind, r.index, p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: device returned %d of %d bytes", ErrShortRead, n, len(p))
	}
	return nil
}

type handledRead struct {
	driver Driver
	kind   Kind
	index  int
	logger hclog.Logger
}

func (r *handledRead) String() string { return StrategyHandledRead.String() }

func (r *handledRead) read(p []byte) error {
	h, err := r.driver.Open(r.kind, r.index)
	if err != nil {
		return fmt.Errorf("%w: open: %w", ErrDeviceUnavailable, err)
	}

	n, readErr := r.driver.ReadHandled(h, p)
	if err := r.driver.Close(h); err != nil {
		r.logger.Warn("closing device handle failed", "kind", r.kind.String(), "index", r.index, "error", err)
	}

	if readErr != nil {
		return fmt.Errorf("%w: read: %w", ErrDeviceUnavailable, readErr)
	}
	if n != len(p) {
		return fmt.Errorf("%w: device returned %d of %d bytes", ErrShortRead, n, len(p))
	}
	return nil
}

type deviceFileRead struct {
	path string
}

func (r *deviceFileRead) String() string { return StrategyDeviceFileRead.String() }

func (r *deviceFileRead) read(p []byte) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer f.Close()

	n, err := io.ReadFull(f, p)
	if err != nil {
		return fmt.Errorf("%w: read %d of %d bytes from %s: %w", ErrShortRead, n, len(p), r.path, err)
	}
	return nil
}
