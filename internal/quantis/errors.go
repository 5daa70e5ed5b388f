package quantis

import "fmt"

// Driver status codes. Success is zero; failures are negative.
const (
	Success                    = 0
	ErrorNoDriver              = -1
	ErrorInvalidDeviceNumber   = -2
	ErrorInvalidReadSize       = -3
	ErrorInvalidParameter      = -4
	ErrorInsufficientMemory    = -5
	ErrorNoModule              = -6
	ErrorIO                    = -7
	ErrorNoSuchDevice          = -8
	ErrorOperationNotSupported = -9
	ErrorDeviceBusy            = -10
	ErrorOther                 = -99
)

// ErrorString returns the human readable description of a status code.
func ErrorString(code int) string {
	switch code {
	case Success:
		return "no error"
	case ErrorNoDriver:
		return "no driver installed"
	case ErrorInvalidDeviceNumber:
		return "invalid device number"
	case ErrorInvalidReadSize:
		return "invalid size to read"
	case ErrorInvalidParameter:
		return "invalid parameter"
	case ErrorInsufficientMemory:
		return "insufficient memory"
	case ErrorNoModule:
		return "no module available"
	case ErrorIO:
		return "input/output error"
	case ErrorNoSuchDevice:
		return "no such device"
	case ErrorOperationNotSupported:
		return "operation not supported"
	case ErrorDeviceBusy:
		return "device is busy"
	default:
		return "unknown error"
	}
}

// DriverError carries a status code and, when there is one, the OS error
// behind it.
type DriverError struct {
	Op   string
	Code int
	Err  error
}

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quantis: %s: %s: %v", e.Op, ErrorString(e.Code), e.Err)
	}
	return fmt.Sprintf("quantis: %s: %s", e.Op, ErrorString(e.Code))
}

func (e *DriverError) Unwrap() error { return e.Err }
