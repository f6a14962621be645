package position

import (
	"errors"
	"fmt"
)

// SensorErrorCode classifies location sensor failures. The first three values
// line up with the W3C GeolocationPositionError codes.
type SensorErrorCode int

const (
	PermissionDenied SensorErrorCode = iota + 1
	PositionUnavailable
	SensorTimeout
	SensorAbsent
)

func (c SensorErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case SensorTimeout:
		return "timeout"
	case SensorAbsent:
		return "sensor_absent"
	default:
		return "unknown"
	}
}

// ParseSensorErrorCode accepts either the numeric browser code or the string form.
func ParseSensorErrorCode(code int, name string) (SensorErrorCode, error) {
	if code >= int(PermissionDenied) && code <= int(SensorAbsent) {
		return SensorErrorCode(code), nil
	}
	for c := PermissionDenied; c <= SensorAbsent; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor error code %d %q", code, name)
}

// SensorError is broadcast to subscribers instead of being returned from calls.
type SensorError struct {
	Code    SensorErrorCode `json:"code"`
	Message string          `json:"message"`
}

func NewSensorError(code SensorErrorCode, message string) *SensorError {
	return &SensorError{Code: code, Message: message}
}

func (e *SensorError) Error() string {
	if e.Message == "" {
		return "location sensor: " + e.Code.String()
	}
	return fmt.Sprintf("location sensor: %s: %s", e.Code, e.Message)
}

// Is matches any SensorError carrying the same code, so errors.Is(err, ErrPermissionDenied) works.
func (e *SensorError) Is(target error) bool {
	var t *SensorError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrPermissionDenied    = &SensorError{Code: PermissionDenied}
	ErrPositionUnavailable = &SensorError{Code: PositionUnavailable}
	ErrSensorTimeout       = &SensorError{Code: SensorTimeout}
	ErrSensorAbsent        = &SensorError{Code: SensorAbsent}
)

var (
	ErrOrientationUnavailable = errors.New("orientation not available to calibrate")
	ErrNoOrientationData      = errors.New("no orientation data available")
	ErrServiceClosed          = errors.New("position service closed")
)
