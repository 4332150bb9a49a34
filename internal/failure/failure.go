// Package failure tags pipeline errors with the kind of failure that produced them so callers
// can pick a fallback without inspecting log output.
package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNone         Kind = ""
	KindRemoteLookup Kind = "remote_lookup"
	KindStore        Kind = "store"
	KindValidation   Kind = "validation"
)

// ErrNotFound is returned by stores for a point lookup that matched nothing.
var ErrNotFound = errors.New("record not found")

// Error carries the failing operation and its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func RemoteLookup(op string, err error) error {
	return &Error{Kind: KindRemoteLookup, Op: op, Err: err}
}

func Store(op string, err error) error {
	return &Error{Kind: KindStore, Op: op, Err: err}
}

func Validation(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost tagged error in the chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNone
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
