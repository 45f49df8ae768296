package camera

import "fmt"

// Error represents a domain-specific error
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeConfiguration      = "CONFIGURATION_INVALID"
	ErrCodeUnknownCommand     = "UNKNOWN_COMMAND"
	ErrCodeChannelUnavailable = "CHANNEL_UNAVAILABLE"
	ErrCodeNoLightControl     = "NO_LIGHT_CONTROL"
	ErrCodeNotCalibrated      = "NOT_CALIBRATED"
	ErrCodeBusy               = "CAMERA_BUSY"
	ErrCodeCaptureFailed      = "CAPTURE_FAILED"
	ErrCodeStorageFailed      = "STORAGE_FAILED"
	ErrCodeCameraFault        = "CAMERA_FAULT"
	ErrCodeCancelled          = "CANCELLED"
)

// NewError creates a new camera error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
