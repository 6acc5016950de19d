package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrClinicianNotFound   = errors.New("clinician not found")
	ErrRoomNotFound        = errors.New("room not found")

	ErrSlotAlreadyBooked = errors.New("slot already has an appointment")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrAlreadyCompleted  = errors.New("appointment is already completed")
)

// Validation error codes that do not come from the slot policy.
const (
	CodeValidationFailed  = "validation_failed"
	CodeServiceNotFound   = "service_not_found"
	CodeClinicianNotFound = "clinician_not_found"
	CodeRoomNotFound      = "room_not_found"
	CodeServiceInactive   = "service_inactive"
)

// ValidationError is returned for input the caller can fix: malformed
// fields, unknown references and slot policy rejections.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func invalid(code, reason string) *ValidationError {
	return &ValidationError{Code: code, Reason: reason}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
