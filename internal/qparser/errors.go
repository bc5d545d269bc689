package qparser

import "fmt"

// ErrorKind classifies a parse failure.
type ErrorKind string

const (
	KindMalformedLiteral     ErrorKind = "malformed_literal"
	KindInvalidDateCast      ErrorKind = "invalid_date_cast"
	KindInvalidCast          ErrorKind = "invalid_cast"
	KindUnresolvedTemplate   ErrorKind = "unresolved_template"
	KindInvalidTemplateShape ErrorKind = "invalid_template_shape"
	KindStructuralParse      ErrorKind = "structural_parse"
)

// Error is returned by every failing parse operation. Any error aborts the
// whole parse call; there are no partial results.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind, so errors.Is(err, ErrMalformedLiteral)
// holds for any malformed literal failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrMalformedLiteral     = &Error{Kind: KindMalformedLiteral}
	ErrInvalidDateCast      = &Error{Kind: KindInvalidDateCast}
	ErrInvalidCast          = &Error{Kind: KindInvalidCast}
	ErrUnresolvedTemplate   = &Error{Kind: KindUnresolvedTemplate}
	ErrInvalidTemplateShape = &Error{Kind: KindInvalidTemplateShape}
	ErrStructuralParse      = &Error{Kind: KindStructuralParse}
)

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}
