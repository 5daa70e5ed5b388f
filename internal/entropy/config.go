// internal/entropy/config.go
package entropy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Kind selects the hardware transport of the QRNG.
type Kind int

const (
	KindUSB Kind = iota
	KindPCIe
)

func (k Kind) String() string {
	switch k {
	case KindUSB:
		return "usb"
	case KindPCIe:
		return "pcie"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "usb" or "pcie" (case-insensitive, "pci" is an alias).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "usb":
		return KindUSB, nil
	case "pcie", "pci":
		return KindPCIe, nil
	default:
		return 0, fmt.Errorf("entropy: unknown source kind %q", s)
	}
}

// Strategy selects how bytes are pulled from the hardware.
type Strategy int

const (
	// StrategyDirectRead issues a stateless read against kind/index.
	StrategyDirectRead Strategy = iota
	// StrategyHandledRead opens a handle, reads, and always closes it.
	StrategyHandledRead
	// StrategyDeviceFileRead reads the raw device file for the index.
	StrategyDeviceFileRead
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirectRead:
		return "direct"
	case StrategyHandledRead:
		return "handled"
	case StrategyDeviceFileRead:
		return "devicefile"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts "direct", "handled" or "devicefile".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return StrategyDirectRead, nil
	case "handled":
		return StrategyHandledRead, nil
	case "devicefile", "device_file", "file":
		return StrategyDeviceFileRead, nil
	default:
		return 0, fmt.Errorf("entropy: unknown read strategy %q", s)
	}
}

const (
	// DefaultDevicePathFormat is the per-index device node of the PCIe driver.
	DefaultDevicePathFormat = "/dev/qrandom%d"
	// DefaultUSBDevicePathFormat is the per-index device node of the USB driver.
	DefaultUSBDevicePathFormat = "/dev/qrandom_usb%d"

	// DefaultMaxRequestSize matches the vendor driver's largest single read.
	DefaultMaxRequestSize = 16 * 1024 * 1024
)

// Config is the process-wide device configuration. It is built once and
// passed by value; nothing mutates it afterwards.
type Config struct {
	SourceKind       Kind
	DeviceIndex      int
	ReadStrategy     Strategy
	MixWithFallback  bool
	// Locking permits per-context locks; LockOnCreate creates one with
	// every new context instead of waiting for EnableLocking.
	Locking          bool
	LockOnCreate     bool
	DevicePathFormat string
	MaxRequestSize   int
}

// DefaultConfig returns a PCIe device 0 configuration using direct reads,
// no mixing and per-context locking.
func DefaultConfig() Config {
	return Config{
		SourceKind:       KindPCIe,
		DeviceIndex:      0,
		ReadStrategy:     StrategyDirectRead,
		Locking:          true,
		MaxRequestSize:   DefaultMaxRequestSize,
	}
}

// DefaultPathFormat returns the device node pattern the kernel driver uses
// for kind.
func DefaultPathFormat(kind Kind) string {
	if kind == KindUSB {
		return DefaultUSBDevicePathFormat
	}
	return DefaultDevicePathFormat
}

// DevicePath is the device file used by StrategyDeviceFileRead. An empty
// DevicePathFormat selects the default node for SourceKind.
func (c Config) DevicePath() string {
	format := c.DevicePathFormat
	if format == "" {
		format = DefaultPathFormat(c.SourceKind)
	}
	return fmt.Sprintf(format, c.DeviceIndex)
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.SourceKind != KindUSB && c.SourceKind != KindPCIe {
		result = multierror.Append(result, fmt.Errorf("invalid source kind %d", int(c.SourceKind)))
	}
	if c.DeviceIndex < 0 {
		result = multierror.Append(result, fmt.Errorf("device index must not be negative, got %d", c.DeviceIndex))
	}
	switch c.ReadStrategy {
	case StrategyDirectRead, StrategyHandledRead, StrategyDeviceFileRead:
	default:
		result = multierror.Append(result, fmt.Errorf("invalid read strategy %d", int(c.ReadStrategy)))
	}
	if c.MaxRequestSize <= 0 {
		result = multierror.Append(result, errors.New("max request size must be positive"))
	} else if c.MaxRequestSize > DefaultMaxRequestSize {
		result = multierror.Append(result, fmt.Errorf("max request size %d exceeds the driver limit of %d bytes", c.MaxRequestSize, DefaultMaxRequestSize))
	}
	if c.DevicePathFormat != "" && strings.Count(c.DevicePathFormat, "%d") != 1 {
		result = multierror.Append(result, fmt.Errorf("device path format %q must contain exactly one %%d", c.DevicePathFormat))
	}

	return result.ErrorOrNil()
}
