package partner

import (
	"fmt"
	"strconv"
)

// ErrorCode is a partner SDK failure reason
type ErrorCode int

const (
	ErrorCodeInternalUnknown ErrorCode = 0
	ErrorCodeNoConnection    ErrorCode = 100
	ErrorCodeBadContent      ErrorCode = 101
	ErrorCodeTimeout         ErrorCode = 102
	ErrorCodeNoContent       ErrorCode = 103
	ErrorCodeAlreadyShown    ErrorCode = 104
	ErrorCodeServer          ErrorCode = 105
	ErrorCodeExpired         ErrorCode = 107
	ErrorCodeDestroyed       ErrorCode = 111
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeInternalUnknown: "INTERNAL_UNKNOWN_ERROR",
	ErrorCodeNoConnection:    "NO_CONNECTION",
	ErrorCodeBadContent:      "BAD_CONTENT",
	ErrorCodeTimeout:         "TIMEOUT",
	ErrorCodeNoContent:       "NO_CONTENT",
	ErrorCodeAlreadyShown:    "ALREADY_SHOWN",
	ErrorCodeServer:          "SERVER",
	ErrorCodeExpired:         "EXPIRED",
	ErrorCodeDestroyed:       "DESTROYED",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN_" + strconv.Itoa(int(c))
}

// Error is a failure reported by the partner SDK
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bidmachine error %d (%s)", int(e.Code), e.Code)
	}
	return fmt.Sprintf("bidmachine error %d (%s): %s", int(e.Code), e.Code, e.Message)
}

// NewError creates a partner error
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}
