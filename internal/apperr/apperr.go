// Package apperr is the error taxonomy shared by the engine, the server and the CLI.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation_failed"
	KindUpstream      Kind = "upstream_failed"
	KindParse         Kind = "parse_failed"
	KindNotFound      Kind = "not_found"
	KindStateConflict Kind = "state_conflict"
	KindInternal      Kind = "internal"
)

// Stage failures. They wrap into an *Error with the matching Kind.
var (
	ErrResearchFailed   = errors.New("research failed")
	ErrScoreParseFailed = errors.New("score parse failed")
	ErrCompileFailed    = errors.New("compile failed")
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

func Conflict(op, format string, args ...any) *Error {
	return New(KindStateConflict, op, fmt.Sprintf(format, args...))
}

func NotFound(op, what string) *Error {
	return New(KindNotFound, op, what+" not found")
}

// KindOf returns the Kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
