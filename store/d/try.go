// Copyright 2016 Attic Labs, Inc. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package d holds small invariant-checking helpers used throughout the
// storage core. These panic on programming errors (violated
// preconditions); they are not part of the boundary error taxonomy in
// store/herr, which models expected runtime conditions.
package d

import "fmt"

// PanicIfTrue panics if cond is true.
func PanicIfTrue(cond bool) {
	if cond {
		panic("expected condition to be false")
	}
}

// PanicIfFalse panics if cond is false.
func PanicIfFalse(cond bool) {
	if !cond {
		panic("expected condition to be true")
	}
}

// PanicIfError panics if err is non-nil.
func PanicIfError(err error) {
	if err != nil {
		panic(err)
	}
}

// PanicIfNotType panics unless err's concrete type matches one of types.
// Returns err so it can be used inline.
func PanicIfNotType(err error, types ...error) error {
	if !causeInTypes(err, types...) {
		panic(fmt.Sprintf("unexpected error type: %T: %v", err, err))
	}
	return err
}

func causeInTypes(err error, types ...error) bool {
	cause := Unwrap(err)
	for _, t := range types {
		if fmt.Sprintf("%T", cause) == fmt.Sprintf("%T", t) {
			return true
		}
	}
	return false
}

type wrappedError struct {
	msg   string
	cause error
}

func (w wrappedError) Error() string {
	return fmt.Sprintf("%s: %s", w.msg, w.cause.Error())
}

func (w wrappedError) Cause() error {
	return w.cause
}

// Wrap attaches a fixed message to err so that its origin is clear in
// logs; Unwrap/Cause recovers the original error. Wrapping an
// already-wrapped error is a no-op. Wrap(nil) is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if we, ok := err.(wrappedError); ok {
		return we
	}
	return wrappedError{msg: "wrapped error", cause: err}
}

// Unwrap returns the original error beneath any wrapping applied by Wrap.
func Unwrap(err error) error {
	if we, ok := err.(wrappedError); ok {
		return we.cause
	}
	return err
}
