package decoder

import (
	"errors"

	"github.com/indigo-web/httpdec/tokenizer"
)

// ParseError is returned by Execute and Finish. Name is the textual form of the tokenizer
// error code.
type ParseError struct {
	Code tokenizer.Errno
	Name string
}

func newParseError(code tokenizer.Errno) ParseError {
	return ParseError{
		Code: code,
		Name: code.String(),
	}
}

func (p ParseError) Error() string {
	return "parse error: " + p.Name
}

// Is matches any ParseError with the same code, so errors.Is(err, ErrPaused) works.
func (p ParseError) Is(target error) bool {
	other, ok := target.(ParseError)
	return ok && other.Code == p.Code
}

var (
	ErrPaused           = newParseError(tokenizer.Paused)
	ErrInvalidEOFState  = newParseError(tokenizer.InvalidEOFState)
	ErrClosedConnection = newParseError(tokenizer.ClosedConnection)
	ErrHeaderOverflow   = newParseError(tokenizer.HeaderOverflow)

	ErrBadConfig = errors.New("bad decoder config")
)
