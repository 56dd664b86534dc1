package response

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

//Error Codes
type ErrCode string

var (
	FAILED_REQUEST            ErrCode = "REQUEST_FAILED"
	BAD_REQUEST               ErrCode = "FAILED_TO_DECODE"
	VALIDATION_FAILED         ErrCode = "VALIDATION_FAILED"
	LOCKED                    ErrCode = "LOCKED"
	SLOT_ALREADY_BOOKED       ErrCode = "SLOT_ALREADY_BOOKED"
	SLOT_OUTSIDE_AVAILABILITY ErrCode = "SLOT_OUTSIDE_AVAILABILITY"
	INVALID_DURATION          ErrCode = "INVALID_DURATION"
	INVALID_TIMEZONE          ErrCode = "INVALID_TIMEZONE"
	TEACHER_NOT_FOUND         ErrCode = "TEACHER_NOT_FOUND"
	STUDENT_NOT_FOUND         ErrCode = "STUDENT_NOT_FOUND"
	BOOKING_NOT_FOUND         ErrCode = "BOOKING_NOT_FOUND"
	ALREADY_COMPLETED         ErrCode = "ALREADY_COMPLETED"
	ALREADY_CANCELLED         ErrCode = "ALREADY_CANCELLED"
	TOO_CLOSE_TO_START        ErrCode = "TOO_CLOSE_TO_START"
	QUOTA_EXHAUSTED           ErrCode = "QUOTA_EXHAUSTED"
	INVALID_STATE_TRANSITION  ErrCode = "INVALID_STATE_TRANSITION"
)

// The closed set of expected business failures. Anything else bubbling out
// of the service layer is a bug to fix, not a condition to surface.
var (
	ErrBadRequest              = errors.New("bad request")
	ErrLocked                  = errors.New("resource is locked")
	ErrSlotAlreadyBooked       = errors.New("slot is already booked")
	ErrSlotOutsideAvailability = errors.New("slot is outside teacher availability")
	ErrInvalidDuration         = errors.New("invalid class duration")
	ErrInvalidTimezone         = errors.New("invalid timezone identifier")
	ErrTeacherNotFound         = errors.New("teacher not found")
	ErrStudentNotFound         = errors.New("student not found")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrAlreadyCompleted        = errors.New("booking already completed")
	ErrAlreadyCancelled        = errors.New("booking already cancelled")
	ErrTooCloseToStart         = errors.New("class is too close to its start time")
	ErrQuotaExhausted          = errors.New("reschedule quota exhausted")
	ErrInvalidStateTransition  = errors.New("invalid booking state transition")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

// CodeFor maps a sentinel from the taxonomy to its stable wire code.
func CodeFor(err error) ErrCode {
	switch {
	case errors.Is(err, ErrSlotAlreadyBooked):
		return SLOT_ALREADY_BOOKED
	case errors.Is(err, ErrSlotOutsideAvailability):
		return SLOT_OUTSIDE_AVAILABILITY
	case errors.Is(err, ErrInvalidDuration):
		return INVALID_DURATION
	case errors.Is(err, ErrInvalidTimezone):
		return INVALID_TIMEZONE
	case errors.Is(err, ErrTeacherNotFound):
		return TEACHER_NOT_FOUND
	case errors.Is(err, ErrStudentNotFound):
		return STUDENT_NOT_FOUND
	case errors.Is(err, ErrBookingNotFound):
		return BOOKING_NOT_FOUND
	case errors.Is(err, ErrAlreadyCompleted):
		return ALREADY_COMPLETED
	case errors.Is(err, ErrAlreadyCancelled):
		return ALREADY_CANCELLED
	case errors.Is(err, ErrTooCloseToStart):
		return TOO_CLOSE_TO_START
	case errors.Is(err, ErrQuotaExhausted):
		return QUOTA_EXHAUSTED
	case errors.Is(err, ErrInvalidStateTransition):
		return INVALID_STATE_TRANSITION
	case errors.Is(err, ErrLocked):
		return LOCKED
	case errors.Is(err, ErrBadRequest):
		return BAD_REQUEST
	default:
		return FAILED_REQUEST
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsg []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' is required", err.Field()))
		case "min":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' must be at least %s", err.Field(), err.Param()))
		case "max":
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' must be at most %s", err.Field(), err.Param()))
		default:
			errMsg = append(errMsg, fmt.Sprintf("Field '%s' is invalid", err.Field()))
		}
	}

	return Response{
		ResponseError: ResponseError{
			Code:    string(VALIDATION_FAILED),
			Message: strings.Join(errMsg, ", "),
		},
	}
}
