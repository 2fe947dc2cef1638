package model

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-readable failure class.
type ErrorCode int

// Error codes.
const (
	CodeInvalidGeometry ErrorCode = iota + 1
	CodeDanglingReference
	CodeCyclicReference
	CodeReferencedObjectInUse
	CodeUnsupportedFormat
	CodeWriteIO
	CodeMalformedDocument
	CodeUseAfterFree
	CodeInvalidParameter
)

// String returns the code name.
func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidGeometry:
		return "InvalidGeometry"
	case CodeDanglingReference:
		return "DanglingReference"
	case CodeCyclicReference:
		return "CyclicReference"
	case CodeReferencedObjectInUse:
		return "ReferencedObjectInUse"
	case CodeUnsupportedFormat:
		return "UnsupportedFormat"
	case CodeWriteIO:
		return "WriteIOError"
	case CodeMalformedDocument:
		return "MalformedDocument"
	case CodeUseAfterFree:
		return "UseAfterFree"
	case CodeInvalidParameter:
		return "InvalidParameter"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is the error type returned by every model operation.
type Error struct {
	Code ErrorCode
	Op   string // operation that failed, e.g. "AddComponent"
	Msg  string
	Err  error // underlying cause, if any
}

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrInvalidGeometry       = &Error{Code: CodeInvalidGeometry}
	ErrDanglingReference     = &Error{Code: CodeDanglingReference}
	ErrCyclicReference       = &Error{Code: CodeCyclicReference}
	ErrReferencedObjectInUse = &Error{Code: CodeReferencedObjectInUse}
	ErrUnsupportedFormat     = &Error{Code: CodeUnsupportedFormat}
	ErrWriteIO               = &Error{Code: CodeWriteIO}
	ErrMalformedDocument     = &Error{Code: CodeMalformedDocument}
	ErrUseAfterFree          = &Error{Code: CodeUseAfterFree}
	ErrInvalidParameter      = &Error{Code: CodeInvalidParameter}
)

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}
