// Package oops is the decoder's error type: a kind from a small taxonomy,
// a precise code, an optional wrapped cause and the call stack at the point
// the error was raised.
package oops

import (
	"fmt"

	"github.com/go-stack/stack"
	"github.com/rs/zerolog"
)

// Kind is the broad class of a decoding failure. Kinds implement error so
// that errors.Is(err, oops.CorruptData) works on any *Error.
type Kind int

const (
	IoError Kind = iota + 1
	FormatError
	CorruptData
	LimitExceeded
	UnsupportedFeature
	UsageError
)

var kindNames = map[Kind]string{
	IoError:            "i/o error",
	FormatError:        "format error",
	CorruptData:        "corrupt data",
	LimitExceeded:      "limit exceeded",
	UnsupportedFeature: "unsupported feature",
	UsageError:         "usage error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Error() string { return "png: " + k.String() }

type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Wrapped error
	Stack   CallStack
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("png: %s: %s: %v", e.Kind.String(), msg, e.Wrapped)
	}
	return fmt.Sprintf("png: %s: %s", e.Kind.String(), msg)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target names this error's kind or code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case Code:
		return e.Code == t
	}
	return false
}

type CallStack []StackFrame

func (s CallStack) MarshalZerologArray(a *zerolog.Array) {
	for _, frame := range s {
		a.Object(frame)
	}
}

type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) MarshalZerologObject(e *zerolog.Event) {
	e.
		Str("file", f.File).
		Int("line", f.Line).
		Str("function", f.Function)
}

var ZerologStackMarshaler = func(err error) interface{} {
	if asOops, ok := err.(*Error); ok {
		return asOops.Stack
	}
	return nil
}

// New builds an error of the given kind and code. wrapped may be nil.
func New(kind Kind, code Code, wrapped error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
		Stack:   callers(1),
	}
}

// Newc builds an error whose message is the code's description.
func Newc(kind Kind, code Code) *Error {
	return &Error{
		Kind:  kind,
		Code:  code,
		Stack: callers(1),
	}
}

// callers skips skip frames above its own caller.
func callers(skip int) CallStack {
	trace := stack.Trace().TrimRuntime()
	if len(trace) > skip+1 {
		trace = trace[skip+1:]
	}
	frames := make(CallStack, len(trace))
	for i, call := range trace {
		callFrame := call.Frame()
		frames[i] = StackFrame{
			File:     callFrame.File,
			Line:     callFrame.Line,
			Function: callFrame.Function,
		}
	}
	return frames
}
