package quiz

import (
	"fmt"

	"study-assistant/internal/apperr"
)

type ErrorKind string

const (
	KindNoContent ErrorKind = "no_content"
	KindParse     ErrorKind = "parse"
	KindMalformed ErrorKind = "malformed"
)

// Error is a rejected quiz. Raw holds the model output that could not be used.
type Error struct {
	Kind   ErrorKind
	Reason string
	Raw    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("quiz generation failed (%s): %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	if e.Kind == KindNoContent {
		return apperr.ErrNoContent
	}
	return apperr.ErrParse
}
