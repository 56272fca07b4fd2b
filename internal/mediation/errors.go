package mediation

import (
	"errors"
	"fmt"
)

// ErrorCode is a mediation platform error category
type ErrorCode string

const (
	// Initialization
	ErrInitializationUnknown            ErrorCode = "CM_INITIALIZATION_FAILURE_UNKNOWN"
	ErrInitializationInvalidCredentials ErrorCode = "CM_INITIALIZATION_FAILURE_INVALID_CREDENTIALS"

	// Load
	ErrLoadUnknown             ErrorCode = "CM_LOAD_FAILURE_UNKNOWN"
	ErrLoadUnsupportedAdFormat ErrorCode = "CM_LOAD_FAILURE_UNSUPPORTED_AD_FORMAT"
	ErrLoadNoFill              ErrorCode = "CM_LOAD_FAILURE_NO_FILL"
	ErrLoadTimeout             ErrorCode = "CM_LOAD_FAILURE_TIMEOUT"
	ErrLoadInvalidAdRequest    ErrorCode = "CM_LOAD_FAILURE_INVALID_AD_REQUEST"
	ErrLoadNoConnectivity      ErrorCode = "CM_LOAD_FAILURE_NO_CONNECTIVITY"
	ErrLoadServerError         ErrorCode = "CM_LOAD_FAILURE_SERVER_ERROR"
	ErrLoadAdExpired           ErrorCode = "CM_LOAD_FAILURE_AD_EXPIRED"
	ErrLoadAdAlreadyShown      ErrorCode = "CM_LOAD_FAILURE_AD_ALREADY_SHOWN"
	ErrLoadAborted             ErrorCode = "CM_LOAD_FAILURE_ABORTED"

	// Show
	ErrShowAdNotReady          ErrorCode = "CM_SHOW_FAILURE_AD_NOT_READY"
	ErrShowAdNotFound          ErrorCode = "CM_SHOW_FAILURE_AD_NOT_FOUND"
	ErrShowWrongResourceType   ErrorCode = "CM_SHOW_FAILURE_WRONG_RESOURCE_TYPE"
	ErrShowUnsupportedAdFormat ErrorCode = "CM_SHOW_FAILURE_UNSUPPORTED_AD_FORMAT"

	// Invalidate
	ErrInvalidateWrongResourceType ErrorCode = "CM_INVALIDATE_FAILURE_WRONG_RESOURCE_TYPE"

	// Other
	ErrPartnerError ErrorCode = "CM_PARTNER_ERROR"
)

// Error is a typed failure returned to the mediation platform
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code so callers can compare against NewError(code)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates an error with the given code
func NewError(code ErrorCode) *Error {
	return &Error{Code: code}
}

// Errorf creates an error with a formatted message
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an error with an underlying cause
func WrapError(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// CodeOf returns the mediation error code carried by err, or "" when err carries none
func CodeOf(err error) ErrorCode {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}
