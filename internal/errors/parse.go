package errors

import (
	"errors"
	"fmt"
)

// ParseReason classifies structurally fatal file problems
type ParseReason string

const (
	ReasonTooLarge          ParseReason = "file_too_large"
	ReasonNoRows            ParseReason = "no_rows"
	ReasonUnsupportedFormat ParseReason = "unsupported_format"
	ReasonUnreadable        ParseReason = "unreadable"
)

// ParseError aborts the pipeline before a parsed file exists.
// Row-level problems are never reported through this type.
type ParseError struct {
	Reason  ParseReason `json:"reason"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (pe *ParseError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("parse error (%s): %s: %v", pe.Reason, pe.Message, pe.Err)
	}
	return fmt.Sprintf("parse error (%s): %s", pe.Reason, pe.Message)
}

func (pe *ParseError) Unwrap() error {
	return pe.Err
}

// NewParseError creates a new fatal parse error
func NewParseError(reason ParseReason, message string, err error) *ParseError {
	return &ParseError{
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// IsParseError reports whether err is a fatal parse error, optionally of the given reasons
func IsParseError(err error, reasons ...ParseReason) bool {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return false
	}
	if len(reasons) == 0 {
		return true
	}
	for _, r := range reasons {
		if pe.Reason == r {
			return true
		}
	}
	return false
}
