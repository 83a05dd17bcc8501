package parser

import (
	"errors"
	"fmt"

	"github.com/Discord-CSS-Datamining/discord-css-differ/stream"
	"github.com/Discord-CSS-Datamining/discord-css-differ/token"
)

var (
	// ErrMalformedSelector is reported for a selector the grammar cannot read.
	ErrMalformedSelector = errors.New("malformed selector")

	// ErrMalformedDeclaration is reported for a declaration that is not
	// "name: value".
	ErrMalformedDeclaration = errors.New("malformed declaration")

	// ErrUnsupportedSelectorSyntax is reported for valid selector syntax the
	// rule tree cannot represent, such as pseudo-elements.
	ErrUnsupportedSelectorSyntax = errors.New("unsupported selector syntax")

	// ErrUnsupportedAtRule is reported for an unknown at-keyword.
	ErrUnsupportedAtRule = errors.New("unsupported at-rule")

	// ErrUnexpectedBlock is reported for a {}-block where a rule should start.
	ErrUnexpectedBlock = errors.New("unexpected block")

	// ErrNestingTooDeep is reported when nested at-rules exceed the maximum depth.
	ErrNestingTooDeep = errors.New("nesting too deep")
)

// Error represents a syntax error.
type Error struct {
	Kind    error
	Message string
	Pos     token.Pos

	// Err is the underlying stream error, if any.
	Err error
}

// Error returns the formatted string error message.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Unwrap returns the error kind and the underlying error.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, pos token.Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: kind.Error() + ": " + fmt.Sprintf(format, args...), Pos: pos}
}

// wrapError converts a stream error into an *Error. A stream mismatch keeps
// its own kind unless kind is set.
func wrapError(kind error, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var mismatch *stream.MismatchError
	if errors.As(err, &mismatch) {
		if kind == nil {
			return &Error{Kind: mismatch.Kind, Message: mismatch.Error(), Pos: mismatch.Pos(), Err: mismatch}
		}
		return &Error{Kind: kind, Message: kind.Error() + ": " + mismatch.Error(), Pos: mismatch.Pos(), Err: mismatch}
	}
	if kind == nil {
		kind = err
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// ErrorList represents a list of syntax errors.
type ErrorList []error

// Error returns the formatted string error message.
func (a ErrorList) Error() string {
	switch len(a) {
	case 0:
		return "no errors"
	case 1:
		return a[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", a[0], len(a)-1)
}

// Unwrap returns the errors in the list.
func (a ErrorList) Unwrap() []error {
	return a
}

// Err returns the list as an error, or nil if it is empty.
func (a ErrorList) Err() error {
	if len(a) == 0 {
		return nil
	}
	return a
}
